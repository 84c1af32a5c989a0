package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/tabular-rag/internal/config"
	"github.com/kirillkom/tabular-rag/internal/infrastructure/resilience"
)

func memoryConfig() config.Config {
	return config.Config{
		VectorBackend:              config.VectorBackendMemory,
		LLMBackend:                 config.LLMBackendOllama,
		OllamaURL:                  "http://127.0.0.1:1",
		OllamaGenModel:             "mistral",
		OllamaEmbedModel:           "nomic-embed-text",
		QdrantCollection:           "rag_collection",
		RAGTopK:                    5,
		GenerationTimeout:          time.Second,
		ResilienceRetryMaxAttempts: 1,
	}
}

func TestNewWiresInMemoryStack(t *testing.T) {
	app, err := New(context.Background(), memoryConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Ingest == nil || app.Chat == nil || app.Models == nil {
		t.Fatalf("expected sync use cases to be wired: %+v", app)
	}
	if app.IngestJobs != nil || app.ProcessUC != nil || app.Queue != nil {
		t.Fatalf("async ingestion must stay disabled by default")
	}
	if got := app.Models.DefaultModel(); got != "mistral" {
		t.Fatalf("DefaultModel() = %q, want mistral", got)
	}
}

func TestNewOpenAIBackendUsesOpenAIModel(t *testing.T) {
	cfg := memoryConfig()
	cfg.LLMBackend = config.LLMBackendOpenAI
	cfg.OpenAIBaseURL = "http://127.0.0.1:1/v1"
	cfg.OpenAIGenModel = "gpt-4o-mini"

	app, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if got := app.Models.DefaultModel(); got != "gpt-4o-mini" {
		t.Fatalf("DefaultModel() = %q, want gpt-4o-mini", got)
	}
}

func TestNewRejectsUnknownVectorBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.VectorBackend = "faiss"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("expected config validation error")
	}
}

func TestNewRejectsUnknownPrompt(t *testing.T) {
	cfg := memoryConfig()
	cfg.PromptActive = "missing@v9"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("expected unknown prompt error")
	}
}

func TestResilienceConfigFromEnvSettings(t *testing.T) {
	rc := resilienceConfig(config.Config{
		ResilienceRetryMaxAttempts:        5,
		ResilienceRetryInitialBackoff:     50 * time.Millisecond,
		ResilienceRetryMaxBackoff:         time.Second,
		ResilienceRetryMultiplier:         3,
		ResilienceBreakerEnabled:          false,
		ResilienceBreakerMinRequests:      4,
		ResilienceBreakerFailureRatio:     0.25,
		ResilienceBreakerOpenTimeout:      time.Minute,
		ResilienceBreakerHalfOpenMaxCalls: 1,
	})
	want := resilience.Config{
		RetryMaxAttempts:        5,
		RetryInitialBackoff:     50 * time.Millisecond,
		RetryMaxBackoff:         time.Second,
		RetryMultiplier:         3,
		BreakerEnabled:          false,
		BreakerMinRequests:      4,
		BreakerFailureRatio:     0.25,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	}
	if rc != want {
		t.Fatalf("resilienceConfig() = %+v, want %+v", rc, want)
	}
}

func TestResilienceConfigDropsNegativeCounts(t *testing.T) {
	rc := resilienceConfig(config.Config{
		ResilienceBreakerEnabled:          true,
		ResilienceBreakerMinRequests:      -1,
		ResilienceBreakerHalfOpenMaxCalls: -3,
	})
	if rc.BreakerMinRequests != 0 || rc.BreakerHalfOpenMaxCalls != 0 || !rc.BreakerEnabled {
		t.Fatalf("negative counts must be left for the executor defaults, got %+v", rc)
	}
}
