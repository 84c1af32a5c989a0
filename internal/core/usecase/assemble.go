package usecase

import "github.com/kirillkom/tabular-rag/internal/core/domain"

// AssembleContext places every upload-derived text before every retrieved document,
// keeping the input order of each group. No dedup, re-ranking or truncation happens here.
func AssembleContext(uploads, retrieved []string) []domain.ContextItem {
	out := make([]domain.ContextItem, 0, len(uploads)+len(retrieved))
	for _, text := range uploads {
		out = append(out, domain.ContextItem{Origin: domain.OriginUpload, Text: text, Order: len(out)})
	}
	for _, text := range retrieved {
		out = append(out, domain.ContextItem{Origin: domain.OriginIndexed, Text: text, Order: len(out)})
	}
	return out
}
