package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/tabular-rag/internal/core/domain"
	"github.com/kirillkom/tabular-rag/internal/infrastructure/resilience"
)

func newTestClient(url string) *Client {
	return New(url+"/v1", "test-key", "gpt-test", "embed-test", 5*time.Second).
		WithExecutor(resilience.NewExecutor(resilience.Config{
			RetryMaxAttempts:    1,
			RetryInitialBackoff: time.Millisecond,
			RetryMaxBackoff:     time.Millisecond,
			BreakerEnabled:      false,
		}))
}

func TestEmbedKeepsInputOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"embed-test","data":[
			{"object":"embedding","index":1,"embedding":[2,2]},
			{"object":"embedding","index":0,"embedding":[1,1]}
		]}`))
	}))
	defer server.Close()

	vectors, err := NewEmbedder(newTestClient(server.URL)).Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 || vectors[0][0] != 1 || vectors[1][0] != 2 {
		t.Fatalf("unexpected vectors %v", vectors)
	}
}

func TestGenerateSendsSystemAndUserMessages(t *testing.T) {
	var payload struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" answer "}}]}`))
	}))
	defer server.Close()

	answer, err := NewGenerator(newTestClient(server.URL)).Generate(context.Background(), domain.GenerationRequest{
		SystemInstruction: "sys",
		UserTemplate:      "{{.Context}}|{{.Question}}",
		ContextItems:      []string{"ctx"},
		Question:          "q",
		Temperature:       0.5,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "answer" {
		t.Fatalf("unexpected answer %q", answer)
	}
	if payload.Model != "gpt-test" || len(payload.Messages) != 2 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Messages[0].Role != "system" || payload.Messages[1].Content != "ctx|q" {
		t.Fatalf("unexpected messages %+v", payload.Messages)
	}
}

func TestGenerateMarksServerErrorsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	_, err := NewGenerator(newTestClient(server.URL)).Generate(context.Background(), domain.GenerationRequest{
		UserTemplate: "{{.Question}}",
		Question:     "q",
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if !strings.Contains(err.Error(), "overloaded") {
		t.Fatalf("expected upstream message in error, got %v", err)
	}
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gpt-a","object":"model"},{"id":"gpt-b","object":"model"}]}`))
	}))
	defer server.Close()

	names, err := NewGenerator(newTestClient(server.URL)).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if strings.Join(names, ",") != "gpt-a,gpt-b" {
		t.Fatalf("unexpected models %v", names)
	}
}
