package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/kirillkom/tabular-rag/internal/core/domain"
	"github.com/kirillkom/tabular-rag/internal/core/ports"
)

type fileIngestor interface {
	IngestOne(ctx context.Context, file domain.UploadedFile) (string, error)
}

// ProcessIngestJobUseCase runs a queued ingest job: load the stored file, ingest it, record the outcome.
type ProcessIngestJobUseCase struct {
	repo     ports.IngestJobRepository
	storage  ports.ObjectStorage
	ingestor fileIngestor
}

func NewProcessIngestJobUseCase(
	repo ports.IngestJobRepository,
	storage ports.ObjectStorage,
	ingestor fileIngestor,
) *ProcessIngestJobUseCase {
	return &ProcessIngestJobUseCase{
		repo:     repo,
		storage:  storage,
		ingestor: ingestor,
	}
}

func (uc *ProcessIngestJobUseCase) ProcessByID(ctx context.Context, jobID string) error {
	if err := uc.repo.UpdateStatus(ctx, jobID, domain.IngestStatusProcessing, "", ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	documentID, err := uc.processPipeline(ctx, jobID)
	if err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, jobID, domain.IngestStatusFailed, "", err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, jobID, domain.IngestStatusReady, documentID, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessIngestJobUseCase) processPipeline(ctx context.Context, jobID string) (string, error) {
	job, err := uc.repo.GetByID(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("fetch ingest job: %w", err)
	}

	data, err := uc.loadFile(ctx, job)
	if err != nil {
		return "", err
	}

	documentID, err := uc.ingestor.IngestOne(ctx, domain.UploadedFile{Filename: job.Filename, Data: data})
	if err != nil {
		return "", fmt.Errorf("ingest file: %w", err)
	}
	return documentID, nil
}

func (uc *ProcessIngestJobUseCase) loadFile(ctx context.Context, job *domain.IngestJob) ([]byte, error) {
	reader, err := uc.storage.Open(ctx, job.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open stored file: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read stored file: %w", err)
	}
	return data, nil
}
