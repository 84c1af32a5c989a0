package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/kirillkom/tabular-rag/internal/core/domain"
)

type embedderFake struct {
	mu       sync.Mutex
	queries  []string
	embedded []string
	queryErr error
	embedErr error
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	f.embedded = append(f.embedded, texts...)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return []float32{0.1, 0.2}, nil
}

type indexFake struct {
	mu       sync.Mutex
	matches  []domain.Match
	queryErr error
	addErr   error
	added    []domain.Record
	lastK    int
	queried  bool
}

func (f *indexFake) Name() string { return "test_collection" }

func (f *indexFake) Add(_ context.Context, records []domain.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, records...)
	return nil
}

func (f *indexFake) Query(_ context.Context, _ []float32, k int) ([]domain.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queried = true
	f.lastK = k
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.matches) > k {
		return f.matches[:k], nil
	}
	return f.matches, nil
}

type generatorFake struct {
	answer  string
	err     error
	calls   int
	lastReq domain.GenerationRequest
	block   bool
}

func (f *generatorFake) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	f.calls++
	f.lastReq = req
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *generatorFake) ListModels(context.Context) ([]string, error) {
	return nil, errors.New("not implemented")
}

func matchesOf(texts ...string) []domain.Match {
	out := make([]domain.Match, 0, len(texts))
	for i, text := range texts {
		out = append(out, domain.Match{ID: "doc_" + text, Text: text, Distance: float64(i) / 10})
	}
	return out
}
