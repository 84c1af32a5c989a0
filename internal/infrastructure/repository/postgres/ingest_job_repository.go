package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/tabular-rag/internal/core/domain"
)

type IngestJobRepository struct {
	db *sql.DB
}

func NewIngestJobRepository(db *sql.DB) *IngestJobRepository {
	return &IngestJobRepository{db: db}
}

func (r *IngestJobRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ingest_jobs (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	document_id TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ingest_jobs_status ON ingest_jobs(status);
CREATE INDEX IF NOT EXISTS idx_ingest_jobs_created_at ON ingest_jobs(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *IngestJobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ingest_jobs (
	id, filename, storage_path, status, document_id, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		job.ID, job.Filename, job.StoragePath, string(job.Status), job.DocumentID, job.Error, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ingest job: %w", err)
	}
	return nil
}

func (r *IngestJobRepository) GetByID(ctx context.Context, id string) (*domain.IngestJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, storage_path, status, document_id, error_message, created_at, updated_at
FROM ingest_jobs
WHERE id = $1
`, id)

	var job domain.IngestJob
	var status string
	err := row.Scan(
		&job.ID, &job.Filename, &job.StoragePath, &status, &job.DocumentID, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get ingest job", fmt.Errorf("ingest job %s", id))
		}
		return nil, fmt.Errorf("scan ingest job: %w", err)
	}
	job.Status = domain.IngestStatus(status)
	return &job, nil
}

func (r *IngestJobRepository) UpdateStatus(
	ctx context.Context,
	id string,
	status domain.IngestStatus,
	documentID string,
	errMessage string,
) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE ingest_jobs
SET status = $2, document_id = $3, error_message = $4, updated_at = $5
WHERE id = $1
`, id, string(status), documentID, errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update ingest job status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update ingest job status rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "update ingest job status", fmt.Errorf("ingest job %s", id))
	}
	return nil
}
