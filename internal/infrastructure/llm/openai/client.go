package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/tabular-rag/internal/core/domain"
	"github.com/kirillkom/tabular-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/tabular-rag/internal/prompt"
)

// Client talks to any OpenAI-compatible endpoint (OpenAI, vLLM, LM Studio, llama.cpp server).
type Client struct {
	api        *goopenai.Client
	genModel   string
	embedModel string
	executor   *resilience.Executor
}

func New(baseURL, apiKey, genModel, embedModel string, timeout time.Duration) *Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:        goopenai.NewClientWithConfig(cfg),
		genModel:   genModel,
		embedModel: embedModel,
		executor:   resilience.NewExecutor(resilience.DefaultConfig()),
	}
}

func (c *Client) WithExecutor(executor *resilience.Executor) *Client {
	if executor != nil {
		c.executor = executor
	}
	return c
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := resilience.Do(ctx, e.client.executor, "openai.embed", func(callCtx context.Context) (goopenai.EmbeddingResponse, error) {
		return e.client.api.CreateEmbeddings(callCtx, goopenai.EmbeddingRequest{
			Model: goopenai.EmbeddingModel(e.client.embedModel),
			Input: texts,
		})
	}, classifyOpenAIError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("openai embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d vectors for %d texts", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, item := range data {
		out[i] = item.Embedding
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	userPrompt, err := prompt.RenderUser(req)
	if err != nil {
		return "", err
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = g.client.genModel
	}

	chatReq := goopenai.ChatCompletionRequest{
		Model: model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: req.SystemInstruction},
			{Role: goopenai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: float32(req.Temperature),
	}
	if req.Format == domain.AnswerFormatJSON {
		chatReq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := resilience.Do(ctx, g.client.executor, "openai.chat", func(callCtx context.Context) (goopenai.ChatCompletionResponse, error) {
		return g.client.api.CreateChatCompletion(callCtx, chatReq)
	}, classifyOpenAIError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("openai chat", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat: no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (g *Generator) ListModels(ctx context.Context) ([]string, error) {
	resp, err := resilience.Do(ctx, g.client.executor, "openai.models", func(callCtx context.Context) (goopenai.ModelsList, error) {
		return g.client.api.ListModels(callCtx)
	}, classifyOpenAIError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("openai models", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.ID)
	}
	return names, nil
}

func classifyOpenAIError(err error) resilience.ErrorClassification {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode)
	}
	return resilience.ClassifyHTTPError(err)
}

func classifyStatus(statusCode int) resilience.ErrorClassification {
	if resilience.IsRetryableHTTPStatus(statusCode) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	return resilience.WrapTemporary(operation, err, classifyOpenAIError)
}
