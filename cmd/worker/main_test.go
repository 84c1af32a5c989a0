package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/tabular-rag/internal/core/domain"
	"github.com/kirillkom/tabular-rag/internal/observability/metrics"
)

type fakeSubscriber struct {
	err    error
	jobIDs []string
}

func (s *fakeSubscriber) SubscribeIngestJobs(ctx context.Context, handler func(context.Context, string) error) error {
	if s.err != nil {
		return s.err
	}
	for _, id := range s.jobIDs {
		_ = handler(ctx, id)
	}
	return nil
}

type fakeJobLookup struct{}

func (fakeJobLookup) GetByID(_ context.Context, id string) (*domain.IngestJob, error) {
	return &domain.IngestJob{ID: id, CreatedAt: time.Now().Add(-time.Second)}, nil
}

type fakeProcessor struct {
	processed []string
	err       error
}

func (p *fakeProcessor) ProcessByID(ctx context.Context, jobID string) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("expected job deadline")
	}
	p.processed = append(p.processed, jobID)
	return p.err
}

func TestConsumeJobsReturnsSubscribeFailure(t *testing.T) {
	subscribeErr := errors.New("nats subscribe: connection closed")
	processor := &fakeProcessor{}

	err := consumeJobs(context.Background(), &fakeSubscriber{err: subscribeErr}, fakeJobLookup{}, processor, metrics.NewWorkerMetrics(serviceName))
	if !errors.Is(err, subscribeErr) {
		t.Fatalf("expected subscribe error to propagate, got %v", err)
	}
	if len(processor.processed) != 0 {
		t.Fatalf("no job must run when the subscription fails: %v", processor.processed)
	}
}

func TestConsumeJobsProcessesDeliveredJobs(t *testing.T) {
	processor := &fakeProcessor{err: errors.New("embed failed")}
	queue := &fakeSubscriber{jobIDs: []string{"job-1", "job-2"}}

	if err := consumeJobs(context.Background(), queue, fakeJobLookup{}, processor, metrics.NewWorkerMetrics(serviceName)); err != nil {
		t.Fatalf("consumeJobs() error = %v", err)
	}
	if len(processor.processed) != 2 || processor.processed[0] != "job-1" || processor.processed[1] != "job-2" {
		t.Fatalf("unexpected processed jobs %v", processor.processed)
	}
}
