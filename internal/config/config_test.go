package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"RAG_TOP_K", "GENERATION_TIMEOUT_SECONDS", "CHAT_MAX_UPLOADS", "VECTOR_BACKEND", "LLM_BACKEND", "QDRANT_COLLECTION"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.RAGTopK != 5 {
		t.Fatalf("expected default top k 5, got %d", cfg.RAGTopK)
	}
	if cfg.GenerationTimeout != 120*time.Second {
		t.Fatalf("expected default generation timeout 120s, got %s", cfg.GenerationTimeout)
	}
	if cfg.ChatMaxUploads != 10 {
		t.Fatalf("expected default max uploads 10, got %d", cfg.ChatMaxUploads)
	}
	if cfg.VectorBackend != VectorBackendQdrant || cfg.LLMBackend != LLMBackendOllama {
		t.Fatalf("unexpected default backends %q/%q", cfg.VectorBackend, cfg.LLMBackend)
	}
	if cfg.QdrantCollection != "rag_collection" {
		t.Fatalf("unexpected default collection %q", cfg.QdrantCollection)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("VECTOR_BACKEND", "PGVECTOR")
	t.Setenv("LLM_BACKEND", "openai")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("API_BACKPRESSURE_WAIT", "1s")
	t.Setenv("ASYNC_INGEST_ENABLED", "true")
	t.Setenv("OPENAI_GEN_MODEL", "gpt-test")

	cfg := Load()
	if cfg.VectorBackend != VectorBackendPgvector {
		t.Fatalf("expected lower-cased backend, got %q", cfg.VectorBackend)
	}
	if cfg.APIRateLimitRPS != 2.5 || cfg.APIBackpressureWait != time.Second {
		t.Fatalf("unexpected api limits %+v", cfg)
	}
	if !cfg.AsyncIngestEnabled {
		t.Fatalf("expected async ingest enabled")
	}
	if cfg.GenModel() != "gpt-test" {
		t.Fatalf("expected openai gen model, got %q", cfg.GenModel())
	}
}

func TestLoadResilienceSettings(t *testing.T) {
	t.Setenv("RESILIENCE_RETRY_MAX_ATTEMPTS", "4")
	t.Setenv("RESILIENCE_RETRY_INITIAL_BACKOFF", "250ms")
	t.Setenv("RESILIENCE_RETRY_MAX_BACKOFF", "3s")
	t.Setenv("RESILIENCE_RETRY_MULTIPLIER", "1.5")
	t.Setenv("RESILIENCE_BREAKER_ENABLED", "false")
	t.Setenv("RESILIENCE_BREAKER_MIN_REQUESTS", "20")
	t.Setenv("RESILIENCE_BREAKER_FAILURE_RATIO", "0.8")
	t.Setenv("RESILIENCE_BREAKER_OPEN_TIMEOUT", "45s")
	t.Setenv("RESILIENCE_BREAKER_HALF_OPEN_MAX_CALLS", "3")

	cfg := Load()
	if cfg.ResilienceRetryMaxAttempts != 4 || cfg.ResilienceRetryInitialBackoff != 250*time.Millisecond ||
		cfg.ResilienceRetryMaxBackoff != 3*time.Second || cfg.ResilienceRetryMultiplier != 1.5 {
		t.Fatalf("unexpected retry settings %+v", cfg)
	}
	if cfg.ResilienceBreakerEnabled || cfg.ResilienceBreakerMinRequests != 20 || cfg.ResilienceBreakerFailureRatio != 0.8 ||
		cfg.ResilienceBreakerOpenTimeout != 45*time.Second || cfg.ResilienceBreakerHalfOpenMaxCalls != 3 {
		t.Fatalf("unexpected breaker settings %+v", cfg)
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("RAG_TOP_K", "five")
	t.Setenv("EMBEDDING_CACHE_TTL", "soon")
	cfg := Load()
	if cfg.RAGTopK != 5 || cfg.EmbeddingCacheTTL != 24*time.Hour {
		t.Fatalf("expected fallbacks, got top_k=%d ttl=%s", cfg.RAGTopK, cfg.EmbeddingCacheTTL)
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	t.Setenv("VECTOR_BACKEND", "chroma")
	if err := Load().Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("QDRANT_COLLECTION=from_file\nOLLAMA_GEN_MODEL=from_file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QDRANT_COLLECTION", "from_env")
	t.Setenv("OLLAMA_GEN_MODEL", "")
	os.Unsetenv("OLLAMA_GEN_MODEL")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	cfg := Load()
	if cfg.QdrantCollection != "from_env" {
		t.Fatalf("environment must win, got %q", cfg.QdrantCollection)
	}
	if cfg.OllamaGenModel != "from_file" {
		t.Fatalf("expected value from .env, got %q", cfg.OllamaGenModel)
	}
}

func TestLoadDotEnvIgnoresMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file must be ignored, got %v", err)
	}
}
