package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/tabular-rag/internal/core/domain"
)

const mcpServerVersion = "1.0.0"

// mcpHandler exposes the chat pipeline and model catalog as MCP tools over streamable HTTP.
func (rt *Router) mcpHandler() http.Handler {
	s := server.NewMCPServer("tabular-rag", mcpServerVersion, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Answer a question using the indexed spreadsheets as context."),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question to answer.")),
		mcp.WithNumber("k", mcp.Description("Number of indexed records to retrieve (default 5).")),
		mcp.WithString("model", mcp.Description("Generation model override.")),
	), rt.mcpAsk)

	s.AddTool(mcp.NewTool("list_models",
		mcp.WithDescription("List the generation models available to the ask tool."),
	), rt.mcpListModels)

	return server.NewStreamableHTTPServer(s)
}

func (rt *Router) mcpAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	start := time.Now()
	resp, err := rt.chat.Ask(ctx, domain.ChatRequest{
		Question: question,
		K:        req.GetInt("k", 0),
		Model:    req.GetString("model", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rt.metrics.RecordChat(serviceName, mcpToolAskEndpoint, chatObservation(resp, time.Since(start)))

	payload, err := json.Marshal(newAskResponse(resp))
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (rt *Router) mcpListModels(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(modelsResponse{
		Default: rt.models.DefaultModel(),
		Models:  rt.models.ListModels(ctx),
	})
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(payload)), nil
}
