package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type storeFake struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttl    time.Duration
	getErr error
	setErr error
}

func newStoreFake() *storeFake {
	return &storeFake{data: map[string][]byte{}}
}

func (s *storeFake) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *storeFake) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	s.ttl = ttl
	return nil
}

type countingEmbedder struct {
	queryCalls int
	embedCalls int
	err        error
}

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.embedCalls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func (e *countingEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.queryCalls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text)), 0.5}, nil
}

func TestEmbedQueryHitsCacheOnSecondCall(t *testing.T) {
	store := newStoreFake()
	next := &countingEmbedder{}
	c := NewEmbeddingCache(next, store, "nomic", time.Minute)

	first, err := c.EmbedQuery(context.Background(), "hello")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	second, err := c.EmbedQuery(context.Background(), "hello")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if next.queryCalls != 1 {
		t.Fatalf("expected one upstream call, got %d", next.queryCalls)
	}
	if len(first) != 2 || first[0] != second[0] || first[1] != second[1] {
		t.Fatalf("cached vector differs: %v vs %v", first, second)
	}
	if store.ttl != time.Minute {
		t.Fatalf("expected ttl to be passed through, got %s", store.ttl)
	}
	for key := range store.data {
		if !strings.HasPrefix(key, "embed:query:nomic:") {
			t.Fatalf("unexpected key %s", key)
		}
	}
}

func TestEmbedQueryBypassesBrokenStore(t *testing.T) {
	store := newStoreFake()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")
	next := &countingEmbedder{}
	c := NewEmbeddingCache(next, store, "nomic", 0)

	for i := 0; i < 2; i++ {
		if _, err := c.EmbedQuery(context.Background(), "hello"); err != nil {
			t.Fatalf("EmbedQuery() error = %v", err)
		}
	}
	if next.queryCalls != 2 {
		t.Fatalf("expected upstream call each time, got %d", next.queryCalls)
	}
}

func TestEmbedQueryDoesNotCacheErrors(t *testing.T) {
	store := newStoreFake()
	c := NewEmbeddingCache(&countingEmbedder{err: errors.New("down")}, store, "m", 0)

	if _, err := c.EmbedQuery(context.Background(), "q"); err == nil {
		t.Fatalf("expected error")
	}
	if len(store.data) != 0 {
		t.Fatalf("errors must not be cached")
	}
}

func TestEmbedPassesThrough(t *testing.T) {
	next := &countingEmbedder{}
	c := NewEmbeddingCache(next, newStoreFake(), "m", 0)
	vectors, err := c.Embed(context.Background(), []string{"a", "b"})
	if err != nil || len(vectors) != 2 || next.embedCalls != 1 {
		t.Fatalf("unexpected pass-through: %v %v %d", vectors, err, next.embedCalls)
	}
}

func TestEmbedQueryIgnoresCorruptEntry(t *testing.T) {
	store := newStoreFake()
	next := &countingEmbedder{}
	c := NewEmbeddingCache(next, store, "m", 0)
	store.data[c.key("q")] = []byte("not json")

	vector, err := c.EmbedQuery(context.Background(), "q")
	if err != nil || len(vector) == 0 || next.queryCalls != 1 {
		t.Fatalf("expected recompute on corrupt entry, got %v %v", vector, err)
	}
}
