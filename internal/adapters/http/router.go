package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/tabular-rag/internal/config"
	"github.com/kirillkom/tabular-rag/internal/core/domain"
	"github.com/kirillkom/tabular-rag/internal/core/ports"
	"github.com/kirillkom/tabular-rag/internal/observability/metrics"
)

const (
	serviceName        = "api"
	multipartMemory    = 32 << 20
	defaultMaxUploads  = 10
	chatAskEndpoint    = "/v1/chat/ask"
	mcpToolAskEndpoint = "mcp:ask"
)

// IngestJobService is the async ingestion surface; nil when async ingestion is disabled.
type IngestJobService interface {
	ports.IngestJobSubmitter
	ports.IngestJobReader
}

type Router struct {
	ingestor ports.Ingestor
	jobs     IngestJobService
	chat     ports.ChatService
	models   ports.ModelCatalog
	metrics  *metrics.HTTPServerMetrics

	maxUploads     int
	maxUploadBytes int64
	rateLimitRPS   float64
	rateLimitBurst int
	inFlightMax    int
	inFlightWait   time.Duration
}

func NewRouter(
	cfg config.Config,
	ingestor ports.Ingestor,
	jobs IngestJobService,
	chat ports.ChatService,
	models ports.ModelCatalog,
) *Router {
	maxUploads := cfg.ChatMaxUploads
	if maxUploads <= 0 {
		maxUploads = defaultMaxUploads
	}
	return &Router{
		ingestor:       ingestor,
		jobs:           jobs,
		chat:           chat,
		models:         models,
		metrics:        metrics.NewHTTPServerMetrics(serviceName),
		maxUploads:     maxUploads,
		maxUploadBytes: cfg.MaxUploadBytes,
		rateLimitRPS:   cfg.APIRateLimitRPS,
		rateLimitBurst: cfg.APIRateLimitBurst,
		inFlightMax:    cfg.APIBackpressureMax,
		inFlightWait:   cfg.APIBackpressureWait,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/openapi.json", rt.openAPI)
	mux.HandleFunc("/v1/models", rt.listModels)
	mux.HandleFunc("/v1/ingest", rt.ingestFiles)
	mux.HandleFunc("/v1/ingest/jobs", rt.submitIngestJob)
	mux.HandleFunc("/v1/ingest/jobs/", rt.getIngestJob)
	mux.HandleFunc(chatAskEndpoint, rt.askChat)
	mux.Handle("/mcp", rt.mcpHandler())
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.inFlightMax, rt.inFlightWait, func() {
		rt.metrics.RecordBackpressureReject(serviceName)
	})
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst, func() {
		rt.metrics.RecordRateLimited(serviceName)
	})
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	doc, err := OpenAPIDocument(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

type modelsResponse struct {
	Default string   `json:"default"`
	Models  []string `json:"models"`
}

func (rt *Router) listModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, modelsResponse{
		Default: rt.models.DefaultModel(),
		Models:  rt.models.ListModels(r.Context()),
	})
}

func (rt *Router) ingestFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	rt.limitBody(w, r)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, formError(err, "multipart form with field 'files' is required"))
		return
	}
	defer removeMultipartFiles(r)

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'files' is required"})
		return
	}
	files, err := readUploads(headers)
	if err != nil {
		writeError(w, err)
		return
	}

	report := rt.ingestor.IngestBatch(r.Context(), files)
	for _, result := range report.Results {
		rt.metrics.RecordIngestFile(serviceName, string(result.Status))
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) submitIngestJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if rt.jobs == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "async ingestion is disabled"})
		return
	}
	rt.limitBody(w, r)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, formError(err, "multipart field 'file' is required"))
		return
	}
	defer file.Close()
	defer removeMultipartFiles(r)

	job, err := rt.jobs.Submit(r.Context(), fileHeader.Filename, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) getIngestJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if rt.jobs == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "async ingestion is disabled"})
		return
	}

	id := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/v1/ingest/jobs/"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job id is required"})
		return
	}

	job, err := rt.jobs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type askResponse struct {
	Status         domain.ChatStatus      `json:"status"`
	Answer         string                 `json:"answer"`
	UsedFallback   bool                   `json:"used_fallback"`
	Notice         string                 `json:"notice,omitempty"`
	FallbackReason string                 `json:"fallback_reason,omitempty"`
	Model          string                 `json:"model,omitempty"`
	PromptVersion  string                 `json:"prompt_version,omitempty"`
	Context        []domain.ContextItem   `json:"context"`
	Uploads        []domain.UploadOutcome `json:"uploads"`
	PersistedCount int                    `json:"persisted_count"`
	PersistErrors  []string               `json:"persist_errors,omitempty"`
	RetrievedCount int                    `json:"retrieved_count"`
}

func newAskResponse(resp *domain.ChatResponse) askResponse {
	out := askResponse{
		Status:         resp.Status,
		Answer:         resp.Result.Answer,
		UsedFallback:   resp.Result.UsedFallback(),
		FallbackReason: resp.Result.FallbackReason,
		Model:          resp.Model,
		PromptVersion:  resp.PromptVersion,
		Context:        resp.Context,
		Uploads:        resp.Uploads,
		PersistedCount: resp.PersistedCount,
		PersistErrors:  resp.PersistErrors,
		RetrievedCount: resp.RetrievedCount,
	}
	if out.UsedFallback {
		out.Notice = domain.FallbackNotice
	}
	if out.Context == nil {
		out.Context = []domain.ContextItem{}
	}
	if out.Uploads == nil {
		out.Uploads = []domain.UploadOutcome{}
	}
	return out
}

func (rt *Router) askChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	start := time.Now()
	rt.limitBody(w, r)

	req, err := rt.parseAskRequest(r)
	defer removeMultipartFiles(r)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := rt.chat.Ask(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	rt.metrics.RecordChat(serviceName, chatAskEndpoint, chatObservation(resp, time.Since(start)))
	writeJSON(w, http.StatusOK, newAskResponse(resp))
}

func (rt *Router) parseAskRequest(r *http.Request) (domain.ChatRequest, error) {
	const op = "parse ask request"

	isMultipart := strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
	var err error
	if isMultipart {
		err = r.ParseMultipartForm(multipartMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return domain.ChatRequest{}, formError(err, "invalid form body")
	}

	req := domain.ChatRequest{
		Question: strings.TrimSpace(r.FormValue("q")),
		Model:    strings.TrimSpace(r.FormValue("model")),
	}
	if req.Question == "" {
		return domain.ChatRequest{}, domain.WrapError(domain.ErrInvalidInput, op, errors.New("field 'q' is required"))
	}
	if raw := strings.TrimSpace(r.FormValue("k")); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			return domain.ChatRequest{}, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("field 'k' must be an integer: %q", raw))
		}
		req.K = k
	}
	req.Persist = parseFormBool(r.FormValue("persist_uploads"))

	if isMultipart && r.MultipartForm != nil {
		headers := r.MultipartForm.File["files"]
		if len(headers) > rt.maxUploads {
			return domain.ChatRequest{}, domain.WrapError(domain.ErrInvalidInput, op,
				fmt.Errorf("too many files: %d (max %d)", len(headers), rt.maxUploads))
		}
		req.Uploads, err = readUploads(headers)
		if err != nil {
			return domain.ChatRequest{}, err
		}
	}
	return req, nil
}

func chatObservation(resp *domain.ChatResponse, duration time.Duration) metrics.ChatObservation {
	statuses := make([]string, 0, len(resp.Uploads))
	for _, u := range resp.Uploads {
		statuses = append(statuses, string(u.Status))
	}
	return metrics.ChatObservation{
		NoContext:      resp.Status == domain.ChatStatusNoContext,
		UsedFallback:   resp.Result.UsedFallback(),
		RetrievedCount: resp.RetrievedCount,
		UploadStatuses: statuses,
		PersistedCount: resp.PersistedCount,
		Duration:       duration,
	}
}

func (rt *Router) limitBody(w http.ResponseWriter, r *http.Request) {
	if rt.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)
	}
}

func readUploads(headers []*multipart.FileHeader) ([]domain.UploadedFile, error) {
	files := make([]domain.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "open upload", fmt.Errorf("%s: %w", fh.Filename, err))
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "read upload", fmt.Errorf("%s: %w", fh.Filename, err))
		}
		files = append(files, domain.UploadedFile{Filename: fh.Filename, Data: data})
	}
	return files, nil
}

func formError(err error, message string) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return err
	}
	return domain.WrapError(domain.ErrInvalidInput, message, err)
}

func removeMultipartFiles(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

func parseFormBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
