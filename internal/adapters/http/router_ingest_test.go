package httpadapter

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/tabular-rag/internal/config"
	"github.com/kirillkom/tabular-rag/internal/core/domain"
)

type formFile struct {
	field    string
	filename string
	content  string
}

func multipartBody(t *testing.T, fields map[string]string, files ...formFile) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := part.Write([]byte(f.content)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestHealthzEndpoint(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	newTestHandler(config.Config{}).ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestIngestFilesReturnsReport(t *testing.T) {
	deps := newTestDeps()
	deps.ingestor.report = domain.IngestReport{
		Collection: "rag_collection",
		Added:      1,
		Results: []domain.IngestFileResult{
			{Filename: "orders.csv", Status: domain.IngestStatusReady, DocumentID: "doc_1"},
			{Filename: "notes.txt", Status: domain.IngestStatusFailed, Error: "unsupported"},
		},
	}

	body, contentType := multipartBody(t, nil,
		formFile{field: "files", filename: "orders.csv", content: "id,total\n1,9.5\n"},
		formFile{field: "files", filename: "notes.txt", content: "hello"},
	)
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	deps.handler(config.Config{}).ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(deps.ingestor.got) != 2 || deps.ingestor.got[0].Filename != "orders.csv" || string(deps.ingestor.got[0].Data) != "id,total\n1,9.5\n" {
		t.Fatalf("unexpected files passed to ingestor: %+v", deps.ingestor.got)
	}

	var report domain.IngestReport
	if err := json.NewDecoder(res.Body).Decode(&report); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if report.Collection != "rag_collection" || report.Added != 1 || len(report.Results) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestIngestFilesMissingMultipartField(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	newTestHandler(config.Config{}).ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSubmitIngestJobAccepted(t *testing.T) {
	deps := newTestDeps()
	now := time.Now().UTC()
	deps.jobs.job = &domain.IngestJob{ID: "job-1", Filename: "sales.csv", Status: domain.IngestStatusUploaded, CreatedAt: now, UpdatedAt: now}

	body, contentType := multipartBody(t, nil, formFile{field: "file", filename: "sales.csv", content: "a,b\n1,2\n"})
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest/jobs", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	deps.handler(config.Config{}).ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if deps.jobs.filename != "sales.csv" || deps.jobs.body != "a,b\n1,2\n" {
		t.Fatalf("unexpected submission %q %q", deps.jobs.filename, deps.jobs.body)
	}

	var job map[string]any
	if err := json.NewDecoder(res.Body).Decode(&job); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if job["id"] != "job-1" || job["status"] != "uploaded" {
		t.Fatalf("unexpected response: %+v", job)
	}
}

func TestIngestJobsDisabledReturns503(t *testing.T) {
	deps := newTestDeps()
	deps.jobs = nil
	handler := deps.handler(config.Config{})

	body, contentType := multipartBody(t, nil, formFile{field: "file", filename: "sales.csv", content: "a\n1\n"})
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest/jobs", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for submit, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/ingest/jobs/job-1", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for get, got %d", res.Code)
	}
}

func TestGetIngestJobReturnsJob(t *testing.T) {
	deps := newTestDeps()
	deps.jobs.job = &domain.IngestJob{ID: "job-7", Status: domain.IngestStatusReady, DocumentID: "doc_9"}

	req := httptest.NewRequest(http.MethodGet, "/v1/ingest/jobs/job-7", nil)
	res := httptest.NewRecorder()
	deps.handler(config.Config{}).ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var job domain.IngestJob
	if err := json.NewDecoder(res.Body).Decode(&job); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if job.DocumentID != "doc_9" {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestListModelsEndpoint(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	res := httptest.NewRecorder()
	newTestHandler(config.Config{}).ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var payload modelsResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Default != "mistral" || len(payload.Models) != 2 || payload.Models[0] != "llama3" {
		t.Fatalf("unexpected models: %+v", payload)
	}
}

func TestOpenAPIDocumentIsServed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	res := httptest.NewRecorder()
	newTestHandler(config.Config{}).ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var doc struct {
		OpenAPI string         `json:"openapi"`
		Paths   map[string]any `json:"paths"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for _, path := range []string{"/v1/chat/ask", "/v1/ingest", "/v1/ingest/jobs/{id}", "/v1/models"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Fatalf("expected path %s in document", path)
		}
	}
}

func TestMetricsEndpointExposesRequestCounter(t *testing.T) {
	handler := newTestHandler(config.Config{})
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !bytes.Contains(res.Body.Bytes(), []byte("trag_http_requests_total")) {
		t.Fatalf("expected http request counter in metrics output")
	}
}
