package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/tabular-rag/internal/core/domain"
	"github.com/kirillkom/tabular-rag/internal/core/ports"
)

// IngestJobUseCase stores a raw file and hands it to the worker through the queue.
type IngestJobUseCase struct {
	repo    ports.IngestJobRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestJobUseCase(
	repo ports.IngestJobRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestJobUseCase {
	return &IngestJobUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *IngestJobUseCase) Submit(ctx context.Context, filename string, body io.Reader) (*domain.IngestJob, error) {
	if !domain.DetectFileType(filename).IsTabular() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit ingest job", errNotTabular)
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	job := &domain.IngestJob{
		ID:          id,
		Filename:    filename,
		StoragePath: storageKey,
		Status:      domain.IngestStatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create ingest job: %w", err)
	}

	if err := uc.queue.PublishIngestJob(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("publish ingest job: %w", err)
	}
	return job, nil
}

func (uc *IngestJobUseCase) GetByID(ctx context.Context, id string) (*domain.IngestJob, error) {
	return uc.repo.GetByID(ctx, id)
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "upload.bin"
	}
	return base
}
