package ports

import (
	"context"
	"io"

	"github.com/kirillkom/tabular-rag/internal/core/domain"
)

// TextNormalizer converts raw upload bytes into plain text.
// It returns domain.ErrUnsupportedType for file types it does not handle.
type TextNormalizer interface {
	Normalize(filename string, data []byte) (string, error)
}

// Embedder returns one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores records and answers similarity queries, most similar first.
type VectorIndex interface {
	Add(ctx context.Context, records []domain.Record) error
	Query(ctx context.Context, vector []float32, k int) ([]domain.Match, error)
	Name() string
}

// GenerationGateway is a chat-completion backend.
type GenerationGateway interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

// IngestJobRepository persists async ingest job state.
type IngestJobRepository interface {
	Create(ctx context.Context, job *domain.IngestJob) error
	GetByID(ctx context.Context, id string) (*domain.IngestJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.IngestStatus, documentID, errMessage string) error
}

// ObjectStorage stores raw files for async ingestion.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingest job events.
type MessageQueue interface {
	PublishIngestJob(ctx context.Context, jobID string) error
	SubscribeIngestJobs(ctx context.Context, handler func(context.Context, string) error) error
}
