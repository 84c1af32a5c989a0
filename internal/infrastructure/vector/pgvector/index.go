package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	pgv "github.com/pgvector/pgvector-go"

	"github.com/kirillkom/tabular-rag/internal/core/domain"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Index stores records in a Postgres table with a pgvector column and ranks by cosine distance (<=>).
type Index struct {
	db    *sql.DB
	table string
}

func New(db *sql.DB, table string) (*Index, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("pgvector: invalid table name %q", table)
	}
	return &Index{db: db, table: table}, nil
}

func (i *Index) Name() string { return i.table }

func (i *Index) EnsureSchema(ctx context.Context) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101802)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	query := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS %[1]s (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	source TEXT NOT NULL,
	embedding vector NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_source ON %[1]s(source);
`, i.table)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Add inserts all records in one transaction; a failure stores none of them.
func (i *Index) Add(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := fmt.Sprintf(`INSERT INTO %s (id, text, source, embedding) VALUES ($1,$2,$3,$4)`, i.table)
	for _, r := range records {
		if len(r.Embedding) == 0 {
			return fmt.Errorf("pgvector add: record %s has no vector", r.ID)
		}
		if _, err := tx.ExecContext(ctx, query, r.ID, r.Text, r.Metadata.Source, pgv.NewVector(r.Embedding)); err != nil {
			return fmt.Errorf("insert record %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add tx: %w", err)
	}
	return nil
}

func (i *Index) Query(ctx context.Context, vector []float32, k int) ([]domain.Match, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := i.db.QueryContext(ctx, fmt.Sprintf(`
SELECT id, text, source, embedding <=> $1 AS distance
FROM %s
ORDER BY distance ASC, created_at ASC
LIMIT $2
`, i.table), pgv.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	matches := make([]domain.Match, 0, k)
	for rows.Next() {
		var m domain.Match
		if err := rows.Scan(&m.ID, &m.Text, &m.Metadata.Source, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return matches, nil
}
