package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/kirillkom/tabular-rag/internal/core/ports"
)

const defaultEmbeddingTTL = 24 * time.Hour

// Store is a byte-oriented key/value store with expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// EmbeddingCache memoizes query embeddings. Document embeddings pass straight through.
// Store failures are logged and never fail the call.
type EmbeddingCache struct {
	next  ports.Embedder
	store Store
	model string
	ttl   time.Duration
}

func NewEmbeddingCache(next ports.Embedder, store Store, model string, ttl time.Duration) *EmbeddingCache {
	if ttl <= 0 {
		ttl = defaultEmbeddingTTL
	}
	return &EmbeddingCache{
		next:  next,
		store: store,
		model: model,
		ttl:   ttl,
	}
}

func (c *EmbeddingCache) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.Embed(ctx, texts)
}

func (c *EmbeddingCache) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		slog.Warn("embedding_cache_get_failed", "error", err)
	}
	if ok {
		var vector []float32
		if err := json.Unmarshal(raw, &vector); err == nil && len(vector) > 0 {
			return vector, nil
		}
		slog.Warn("embedding_cache_entry_invalid", "key", key)
	}

	vector, err := c.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(vector)
	if err == nil {
		err = c.store.Set(ctx, key, payload, c.ttl)
	}
	if err != nil {
		slog.Warn("embedding_cache_set_failed", "error", err)
	}
	return vector, nil
}

func (c *EmbeddingCache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embed:query:" + c.model + ":" + hex.EncodeToString(sum[:])
}
