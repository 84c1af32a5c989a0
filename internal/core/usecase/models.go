package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/kirillkom/tabular-rag/internal/core/ports"
)

// ModelCatalogUseCase lists generation models. A backend failure yields an empty list, never an error.
type ModelCatalogUseCase struct {
	gateway      ports.GenerationGateway
	defaultModel string
}

func NewModelCatalogUseCase(gateway ports.GenerationGateway, defaultModel string) *ModelCatalogUseCase {
	return &ModelCatalogUseCase{gateway: gateway, defaultModel: defaultModel}
}

func (uc *ModelCatalogUseCase) DefaultModel() string { return uc.defaultModel }

func (uc *ModelCatalogUseCase) ListModels(ctx context.Context) []string {
	names, err := uc.gateway.ListModels(ctx)
	if err != nil {
		slog.Warn("list_models_failed", "error", err)
		return []string{}
	}

	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
