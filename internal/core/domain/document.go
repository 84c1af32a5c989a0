package domain

import "time"

type IngestStatus string

const (
	IngestStatusUploaded   IngestStatus = "uploaded"
	IngestStatusProcessing IngestStatus = "processing"
	IngestStatusReady      IngestStatus = "ready"
	IngestStatusFailed     IngestStatus = "failed"
)

// IngestJob tracks an asynchronously ingested file through the worker.
type IngestJob struct {
	ID          string       `json:"id"`
	Filename    string       `json:"filename"`
	StoragePath string       `json:"storage_path"`
	Status      IngestStatus `json:"status"`
	DocumentID  string       `json:"document_id,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type IngestFileResult struct {
	Filename   string       `json:"filename"`
	Status     IngestStatus `json:"status"`
	DocumentID string       `json:"document_id,omitempty"`
	Error      string       `json:"error,omitempty"`
}

type IngestReport struct {
	Collection string             `json:"collection"`
	Added      int                `json:"added"`
	Results    []IngestFileResult `json:"results"`
}
