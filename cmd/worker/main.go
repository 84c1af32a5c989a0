package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kirillkom/tabular-rag/internal/bootstrap"
	"github.com/kirillkom/tabular-rag/internal/config"
	"github.com/kirillkom/tabular-rag/internal/core/domain"
	"github.com/kirillkom/tabular-rag/internal/infrastructure/filewatcher"
	"github.com/kirillkom/tabular-rag/internal/observability/logging"
	"github.com/kirillkom/tabular-rag/internal/observability/metrics"
)

const (
	serviceName = "worker"
	jobTimeout  = 5 * time.Minute
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("dotenv_load_failed", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.ProcessUC == nil && cfg.IngestWatchDir == "" {
		slog.Error("worker_nothing_to_do", "hint", "set ASYNC_INGEST_ENABLED=true or INGEST_WATCH_DIR")
		os.Exit(1)
	}

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()

	var wg sync.WaitGroup
	if cfg.IngestWatchDir != "" {
		if err := startWatcher(ctx, &wg, cfg.IngestWatchDir, app, workerMetrics); err != nil {
			slog.Error("watch_dir_failed", "dir", cfg.IngestWatchDir, "error", err)
			os.Exit(1)
		}
	}

	exitCode := 0
	if app.ProcessUC != nil {
		slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
		if err := consumeJobs(ctx, app.Queue, app.IngestJobs, app.ProcessUC, workerMetrics); err != nil {
			slog.Error("worker_subscribe_failed", "error", err)
			exitCode = 1
			stop()
		}
	} else {
		<-ctx.Done()
	}

	wg.Wait()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("worker_metrics_shutdown_failed", "error", err)
	}
	if exitCode != 0 {
		app.Close()
		os.Exit(exitCode)
	}
}

type jobSubscriber interface {
	SubscribeIngestJobs(ctx context.Context, handler func(context.Context, string) error) error
}

type jobLookup interface {
	GetByID(ctx context.Context, id string) (*domain.IngestJob, error)
}

type jobProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}

// consumeJobs blocks until ctx is done. A non-nil error means the subscription itself failed
// and the worker has nothing left to do.
func consumeJobs(ctx context.Context, queue jobSubscriber, jobs jobLookup, processor jobProcessor, m *metrics.WorkerMetrics) error {
	err := queue.SubscribeIngestJobs(ctx, func(handlerCtx context.Context, jobID string) error {
		if job, err := jobs.GetByID(handlerCtx, jobID); err == nil {
			m.ObserveQueueLag(serviceName, time.Since(job.CreatedAt))
		}

		processCtx, cancel := context.WithTimeout(handlerCtx, jobTimeout)
		defer cancel()

		m.StartJob()
		start := time.Now()
		err := processor.ProcessByID(processCtx, jobID)
		m.FinishJob(serviceName, time.Since(start), err)
		return err
	})
	if err != nil {
		return fmt.Errorf("consume ingest jobs: %w", err)
	}
	return nil
}

func startWatcher(ctx context.Context, wg *sync.WaitGroup, dir string, app *bootstrap.App, m *metrics.WorkerMetrics) error {
	watcher, err := filewatcher.New(0)
	if err != nil {
		return err
	}
	paths, err := watcher.Watch(ctx, dir)
	if err != nil {
		_ = watcher.Close()
		return err
	}
	slog.Info("watch_dir_started", "dir", dir)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer watcher.Close()
		filewatcher.Feed(ctx, paths, meteredIngestor{next: app.Ingest, metrics: m})
	}()
	return nil
}

type fileIngestor interface {
	IngestOne(ctx context.Context, file domain.UploadedFile) (string, error)
}

type meteredIngestor struct {
	next    fileIngestor
	metrics *metrics.WorkerMetrics
}

func (i meteredIngestor) IngestOne(ctx context.Context, file domain.UploadedFile) (string, error) {
	id, err := i.next.IngestOne(ctx, file)
	i.metrics.RecordWatchedFile(serviceName, err)
	return id, err
}
