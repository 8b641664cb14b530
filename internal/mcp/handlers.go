package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/trii-invest/insightd/internal/contextserver"
	"github.com/trii-invest/insightd/internal/orchestrator"
	"github.com/trii-invest/insightd/internal/resource"
	"github.com/trii-invest/insightd/internal/vectordb"
)

func (s *Server) handleGenerateRecommendation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	symbol, err := request.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: symbol"), nil
	}
	complexity, err := orchestrator.ParseComplexity(request.GetString("complexity", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	contextData, _ := request.GetArguments()["context_data"].(map[string]any)

	rec, err := s.orch.GenerateRecommendation(ctx, symbol, request.GetString("user_id", ""), contextData, complexity)
	if errors.Is(err, contextserver.ErrAllModelsExhausted) {
		return mcp.NewToolResultError("no generation model is available: " + err.Error()), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("recommendation failed: %v", err)), nil
	}
	return jsonResult(rec)
}

func (s *Server) handleBuildContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}
	scope := resource.Scope{}
	if symbol := request.GetString("symbol", ""); symbol != "" {
		scope[resource.ScopeSymbol] = symbol
	}

	c, err := s.contexts.BuildContext(ctx, sessionID, request.GetString("user_id", ""), scope, request.GetBool("include_tools", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("building context failed: %v", err)), nil
	}
	return jsonResult(c)
}

func (s *Server) handleModelHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.contexts.HealthCheck(ctx))
}

func (s *Server) handleClearContextCache(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n := s.contexts.ClearCache(request.GetString("session_id", ""))
	return mcp.NewToolResultText(fmt.Sprintf("Cleared %d cached context(s).", n)), nil
}

func (s *Server) handleSearchResearchNotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	limit := request.GetInt("limit", 5)
	if limit <= 0 {
		limit = 5
	}

	var filter *vectordb.SearchFilter
	if symbol := request.GetString("symbol", ""); symbol != "" {
		filter = &vectordb.SearchFilter{Symbol: symbol}
	}

	results, err := s.notes.Search(ctx, query, limit, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return mcp.NewToolResultText(vectordb.FormatResults(results)), nil
}

// handleReadResource resolves any provider URI through the context server.
func (s *Server) handleReadResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	content, ok := s.contexts.FetchContent(ctx, uri)
	if !ok {
		s.logger.Debug("resource not found", zap.String("uri", uri))
		return nil, fmt.Errorf("resource not found: %s", uri)
	}
	mimeType := content.MIMEType
	if mimeType == "" {
		mimeType = resource.DefaultMIMEType
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: mimeType, Text: content.Text},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
