package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/tabular-rag/internal/core/domain"
)

// Index is a process-local vector index with cosine distance. Contents are lost on restart.
type Index struct {
	name string

	mu      sync.RWMutex
	records []domain.Record
}

func New(name string) *Index {
	return &Index{name: name}
}

func (i *Index) Name() string { return i.name }

func (i *Index) Add(_ context.Context, records []domain.Record) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, r := range records {
		if len(r.Embedding) == 0 {
			return fmt.Errorf("memory index add: record %s has no vector", r.ID)
		}
		if len(i.records) > 0 && len(i.records[0].Embedding) != len(r.Embedding) {
			return fmt.Errorf("memory index add: record %s has vector size %d, want %d", r.ID, len(r.Embedding), len(i.records[0].Embedding))
		}
	}
	for _, r := range records {
		r.Embedding = append([]float32(nil), r.Embedding...)
		i.records = append(i.records, r)
	}
	return nil
}

// Query ranks by cosine distance; ties keep insertion order.
func (i *Index) Query(_ context.Context, vector []float32, k int) ([]domain.Match, error) {
	if k <= 0 {
		return nil, nil
	}

	i.mu.RLock()
	matches := make([]domain.Match, 0, len(i.records))
	for _, r := range i.records {
		if len(r.Embedding) != len(vector) {
			i.mu.RUnlock()
			return nil, fmt.Errorf("memory index query: vector size %d, index holds %d", len(vector), len(r.Embedding))
		}
		matches = append(matches, domain.Match{
			ID:       r.ID,
			Text:     r.Text,
			Metadata: r.Metadata,
			Distance: cosineDistance(vector, r.Embedding),
		})
	}
	i.mu.RUnlock()

	sort.SliceStable(matches, func(a, b int) bool { return matches[a].Distance < matches[b].Distance })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.records)
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for idx := range a {
		dot += float64(a[idx]) * float64(b[idx])
		na += float64(a[idx]) * float64(a[idx])
		nb += float64(b[idx]) * float64(b[idx])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
