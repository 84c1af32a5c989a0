package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/tabular-rag/internal/core/domain"
	"github.com/kirillkom/tabular-rag/internal/core/ports"
)

var errNotTabular = errors.New("only tabular files (.xlsx, .xls, .csv) can be ingested")

// IngestUseCase normalizes tabular files, embeds them and adds one record per file to the index.
type IngestUseCase struct {
	normalizer ports.TextNormalizer
	embedder   ports.Embedder
	index      ports.VectorIndex
	newID      func() string
}

func NewIngestUseCase(
	normalizer ports.TextNormalizer,
	embedder ports.Embedder,
	index ports.VectorIndex,
) *IngestUseCase {
	return &IngestUseCase{
		normalizer: normalizer,
		embedder:   embedder,
		index:      index,
		newID:      NewRecordID,
	}
}

// IngestBatch reports every file independently; a failing file never aborts the batch.
func (uc *IngestUseCase) IngestBatch(ctx context.Context, files []domain.UploadedFile) domain.IngestReport {
	report := domain.IngestReport{
		Collection: uc.index.Name(),
		Results:    make([]domain.IngestFileResult, 0, len(files)),
	}
	for _, f := range files {
		id, err := uc.IngestOne(ctx, f)
		if err != nil {
			slog.Warn("ingest_file_failed", "filename", f.Filename, "error", err)
			report.Results = append(report.Results, domain.IngestFileResult{
				Filename: f.Filename,
				Status:   domain.IngestStatusFailed,
				Error:    err.Error(),
			})
			continue
		}
		report.Added++
		report.Results = append(report.Results, domain.IngestFileResult{
			Filename:   f.Filename,
			Status:     domain.IngestStatusReady,
			DocumentID: id,
		})
	}
	return report
}

// IngestOne stores a single tabular file and returns its record id.
func (uc *IngestUseCase) IngestOne(ctx context.Context, file domain.UploadedFile) (string, error) {
	if !file.Type().IsTabular() {
		return "", fmt.Errorf("%s: %w: %w", file.Filename, domain.ErrUnsupportedType, errNotTabular)
	}

	text, err := uc.normalizer.Normalize(file.Filename, file.Data)
	if err != nil {
		return "", err
	}

	vectors, err := uc.embedder.Embed(ctx, []string{text})
	if err != nil {
		return "", domain.WrapError(domain.ErrEmbeddingGateway, "embed document", err)
	}
	if len(vectors) != 1 {
		return "", domain.WrapError(
			domain.ErrEmbeddingGateway,
			"embed document",
			fmt.Errorf("vectors/texts mismatch: %d/1", len(vectors)),
		)
	}

	record := domain.Record{
		ID:        uc.newID(),
		Text:      text,
		Embedding: vectors[0],
		Metadata:  domain.Metadata{Source: file.Filename},
	}
	if err := uc.index.Add(ctx, []domain.Record{record}); err != nil {
		return "", domain.WrapError(domain.ErrVectorIndex, "add document", err)
	}
	return record.ID, nil
}
