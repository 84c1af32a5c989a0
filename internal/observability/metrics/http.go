package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	ragRequestsTotal   *prometheus.CounterVec
	ragNoContextTotal  *prometheus.CounterVec
	ragFallbackTotal   *prometheus.CounterVec
	ragRetrievedDocs   *prometheus.HistogramVec
	ragDuration        *prometheus.HistogramVec
	uploadsTotal       *prometheus.CounterVec
	uploadsPersisted   *prometheus.CounterVec
	ingestFilesTotal   *prometheus.CounterVec
	rateLimitedTotal   *prometheus.CounterVec
	backpressureReject *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trag",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trag",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	ragRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trag",
			Subsystem: "rag",
			Name:      "requests_total",
			Help:      "Total answered chat requests by answer kind.",
		},
		[]string{"service", "endpoint", "kind"},
	)
	ragNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trag",
			Subsystem: "rag",
			Name:      "no_context_total",
			Help:      "Total chat requests that ended without any context.",
		},
		[]string{"service", "endpoint"},
	)
	ragFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trag",
			Subsystem: "rag",
			Name:      "fallback_total",
			Help:      "Total chat requests answered with the context dump because generation failed.",
		},
		[]string{"service", "endpoint"},
	)
	ragRetrievedDocs := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trag",
			Subsystem: "rag",
			Name:      "retrieved_documents",
			Help:      "Distribution of indexed documents retrieved per chat request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	ragDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trag",
			Subsystem: "rag",
			Name:      "duration_seconds",
			Help:      "Chat pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trag",
			Subsystem: "rag",
			Name:      "uploads_total",
			Help:      "Chat-time uploads by outcome.",
		},
		[]string{"service", "status"},
	)
	uploadsPersisted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trag",
			Subsystem: "rag",
			Name:      "uploads_persisted_total",
			Help:      "Chat-time uploads persisted into the vector index.",
		},
		[]string{"service"},
	)
	ingestFilesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trag",
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Files submitted for ingestion by outcome.",
		},
		[]string{"service", "status"},
	)
	rateLimitedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trag",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		},
		[]string{"service"},
	)
	backpressureReject := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trag",
			Subsystem: "http",
			Name:      "backpressure_rejected_total",
			Help:      "Requests rejected because the in-flight limit stayed saturated.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		ragRequestsTotal,
		ragNoContextTotal,
		ragFallbackTotal,
		ragRetrievedDocs,
		ragDuration,
		uploadsTotal,
		uploadsPersisted,
		ingestFilesTotal,
		rateLimitedTotal,
		backpressureReject,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		ragRequestsTotal:   ragRequestsTotal,
		ragNoContextTotal:  ragNoContextTotal,
		ragFallbackTotal:   ragFallbackTotal,
		ragRetrievedDocs:   ragRetrievedDocs,
		ragDuration:        ragDuration,
		uploadsTotal:       uploadsTotal,
		uploadsPersisted:   uploadsPersisted,
		ingestFilesTotal:   ingestFilesTotal,
		rateLimitedTotal:   rateLimitedTotal,
		backpressureReject: backpressureReject,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/ingest/jobs/"):
		return "/v1/ingest/jobs/{job_id}"
	case strings.HasPrefix(path, "/mcp"):
		return "/mcp"
	default:
		return path
	}
}

// ChatObservation is what one chat request contributes to the RAG metrics.
type ChatObservation struct {
	NoContext      bool
	UsedFallback   bool
	RetrievedCount int
	UploadStatuses []string
	PersistedCount int
	Duration       time.Duration
}

func (m *HTTPServerMetrics) RecordChat(service, endpoint string, obs ChatObservation) {
	m.ragRetrievedDocs.WithLabelValues(service, endpoint).Observe(float64(obs.RetrievedCount))
	m.ragDuration.WithLabelValues(service, endpoint).Observe(obs.Duration.Seconds())
	for _, status := range obs.UploadStatuses {
		m.uploadsTotal.WithLabelValues(service, status).Inc()
	}
	if obs.PersistedCount > 0 {
		m.uploadsPersisted.WithLabelValues(service).Add(float64(obs.PersistedCount))
	}

	switch {
	case obs.NoContext:
		m.ragNoContextTotal.WithLabelValues(service, endpoint).Inc()
	case obs.UsedFallback:
		m.ragFallbackTotal.WithLabelValues(service, endpoint).Inc()
		m.ragRequestsTotal.WithLabelValues(service, endpoint, "fallback").Inc()
	default:
		m.ragRequestsTotal.WithLabelValues(service, endpoint, "generated").Inc()
	}
}

func (m *HTTPServerMetrics) RecordIngestFile(service, status string) {
	if status == "" {
		status = "unknown"
	}
	m.ingestFilesTotal.WithLabelValues(service, status).Inc()
}

func (m *HTTPServerMetrics) RecordRateLimited(service string) {
	m.rateLimitedTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordBackpressureReject(service string) {
	m.backpressureReject.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
