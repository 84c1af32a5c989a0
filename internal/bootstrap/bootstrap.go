package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"

	"github.com/kirillkom/tabular-rag/internal/config"
	"github.com/kirillkom/tabular-rag/internal/core/ports"
	"github.com/kirillkom/tabular-rag/internal/core/usecase"
	"github.com/kirillkom/tabular-rag/internal/infrastructure/cache"
	"github.com/kirillkom/tabular-rag/internal/infrastructure/extractor"
	"github.com/kirillkom/tabular-rag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/tabular-rag/internal/infrastructure/llm/openai"
	"github.com/kirillkom/tabular-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/tabular-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/tabular-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/tabular-rag/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/tabular-rag/internal/infrastructure/vector/memory"
	"github.com/kirillkom/tabular-rag/internal/infrastructure/vector/pgvector"
	"github.com/kirillkom/tabular-rag/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/tabular-rag/internal/prompt"
)

type App struct {
	Config config.Config

	Ingest *usecase.IngestUseCase
	Chat   *usecase.ChatUseCase
	Models *usecase.ModelCatalogUseCase

	// Async ingestion; nil unless ASYNC_INGEST_ENABLED is set.
	IngestJobs *usecase.IngestJobUseCase
	ProcessUC  *usecase.ProcessIngestJobUseCase
	Queue      ports.MessageQueue

	closeFns []func()
}

type llmBackend struct {
	embedder  ports.Embedder
	generator ports.GenerationGateway
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	app := &App{Config: cfg}

	executor := resilience.NewExecutor(resilienceConfig(cfg))

	llm := newLLMBackend(cfg, executor)
	embedder := llm.embedder
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init embedding cache: %w", err)
		}
		app.closeFns = append(app.closeFns, func() { _ = client.Close() })
		embedder = cache.NewEmbeddingCache(embedder, cache.NewRedisStore(client), cfg.EmbedModel(), cfg.EmbeddingCacheTTL)
		slog.Info("embedding_cache_enabled", "addr", cfg.RedisAddr, "ttl", cfg.EmbeddingCacheTTL.String())
	}

	var db *sql.DB
	if cfg.VectorBackend == config.VectorBackendPgvector || cfg.AsyncIngestEnabled {
		var err error
		db, err = postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.closeFns = append(app.closeFns, func() { _ = db.Close() })
	}

	index, err := newVectorIndex(ctx, cfg, db, executor)
	if err != nil {
		app.Close()
		return nil, err
	}

	catalog, err := prompt.Load(cfg.PromptFile)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	activePrompt, err := catalog.Active(cfg.PromptActive)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("select prompt: %w", err)
	}

	normalizer := extractor.NewNormalizer()
	app.Ingest = usecase.NewIngestUseCase(normalizer, embedder, index)
	app.Chat = usecase.NewChatUseCase(normalizer, embedder, index, llm.generator, usecase.ChatConfig{
		DefaultModel:      cfg.GenModel(),
		DefaultTopK:       cfg.RAGTopK,
		GenerationTimeout: cfg.GenerationTimeout,
		Prompt:            activePrompt,
	})
	app.Models = usecase.NewModelCatalogUseCase(llm.generator, cfg.GenModel())

	if cfg.AsyncIngestEnabled {
		if err := app.initAsyncIngest(ctx, cfg, db, executor); err != nil {
			app.Close()
			return nil, err
		}
	}

	slog.Info("bootstrap_ready",
		"vector_backend", cfg.VectorBackend,
		"collection", index.Name(),
		"llm_backend", cfg.LLMBackend,
		"gen_model", cfg.GenModel(),
		"embed_model", cfg.EmbedModel(),
		"prompt", activePrompt.ID(),
		"async_ingest", cfg.AsyncIngestEnabled,
	)
	return app, nil
}

func (a *App) initAsyncIngest(ctx context.Context, cfg config.Config, db *sql.DB, executor *resilience.Executor) error {
	repo := postgres.NewIngestJobRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure ingest job schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
	if err != nil {
		return fmt.Errorf("init message queue: %w", err)
	}
	a.closeFns = append(a.closeFns, queue.Close)

	a.Queue = queue
	a.IngestJobs = usecase.NewIngestJobUseCase(repo, storage, queue)
	a.ProcessUC = usecase.NewProcessIngestJobUseCase(repo, storage, a.Ingest)
	return nil
}

func newLLMBackend(cfg config.Config, executor *resilience.Executor) llmBackend {
	if cfg.LLMBackend == config.LLMBackendOpenAI {
		client := openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIGenModel, cfg.OpenAIEmbedModel, cfg.GenerationTimeout).
			WithExecutor(executor)
		return llmBackend{embedder: openai.NewEmbedder(client), generator: openai.NewGenerator(client)}
	}
	client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel).
		WithExecutor(executor).
		WithTimeout(cfg.GenerationTimeout)
	return llmBackend{embedder: ollama.NewEmbedder(client), generator: ollama.NewGenerator(client)}
}

func newVectorIndex(ctx context.Context, cfg config.Config, db *sql.DB, executor *resilience.Executor) (ports.VectorIndex, error) {
	switch cfg.VectorBackend {
	case config.VectorBackendPgvector:
		index, err := pgvector.New(db, cfg.QdrantCollection)
		if err != nil {
			return nil, fmt.Errorf("init pgvector index: %w", err)
		}
		if err := index.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure pgvector schema: %w", err)
		}
		return index, nil
	case config.VectorBackendMemory:
		slog.Warn("vector_index_in_memory", "collection", cfg.QdrantCollection)
		return memory.New(cfg.QdrantCollection), nil
	default:
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection).WithExecutor(executor), nil
	}
}

// resilienceConfig passes env settings through; zero or negative values keep the executor defaults.
func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:    cfg.ResilienceRetryMaxAttempts,
		RetryInitialBackoff: cfg.ResilienceRetryInitialBackoff,
		RetryMaxBackoff:     cfg.ResilienceRetryMaxBackoff,
		RetryMultiplier:     cfg.ResilienceRetryMultiplier,

		BreakerEnabled:          cfg.ResilienceBreakerEnabled,
		BreakerMinRequests:      nonNegativeUint32(cfg.ResilienceBreakerMinRequests),
		BreakerFailureRatio:     cfg.ResilienceBreakerFailureRatio,
		BreakerOpenTimeout:      cfg.ResilienceBreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: nonNegativeUint32(cfg.ResilienceBreakerHalfOpenMaxCalls),
	}
}

func nonNegativeUint32(v int) uint32 {
	if v <= 0 {
		return 0
	}
	return uint32(min(int64(v), math.MaxUint32))
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
