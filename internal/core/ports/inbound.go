package ports

import (
	"context"
	"io"

	"github.com/kirillkom/tabular-rag/internal/core/domain"
)

// Ingestor is the inbound contract for synchronous batch ingestion of tabular files.
type Ingestor interface {
	IngestBatch(ctx context.Context, files []domain.UploadedFile) domain.IngestReport
}

// IngestJobSubmitter is the inbound contract for asynchronous ingestion.
type IngestJobSubmitter interface {
	Submit(ctx context.Context, filename string, body io.Reader) (*domain.IngestJob, error)
}

// IngestJobReader is the inbound read model for ingest job state.
type IngestJobReader interface {
	GetByID(ctx context.Context, id string) (*domain.IngestJob, error)
}

// IngestJobProcessor is the inbound contract for the ingestion worker.
type IngestJobProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}

// ChatService answers questions over indexed and uploaded context.
type ChatService interface {
	Ask(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)
}

// ModelCatalog lists generation models available to callers.
type ModelCatalog interface {
	ListModels(ctx context.Context) []string
	DefaultModel() string
}
