package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/toolmeta/toolregistry/internal/registry"
	"go.uber.org/zap"
)

type resolveResult struct {
	Format string                 `json:"format"`
	Tools  []*registry.ToolRecord `json:"tools"`
}

type listResult struct {
	Tools []*registry.ToolRecord `json:"tools"`
}

func (s *MCPService) resolveFormatHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	recs, err := s.registry.Resolve(ctx, format)
	if err != nil {
		return s.errorResult(ToolResolveFormat, err), nil
	}
	token, _ := s.registry.NormalizeFormat(format)
	return jsonResult(&resolveResult{Format: token, Tools: recs})
}

func (s *MCPService) getToolHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	toolID, err := req.RequireString("tool_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.registry.Get(ctx, toolID)
	if err != nil {
		return s.errorResult(ToolGetTool, err), nil
	}
	return jsonResult(rec)
}

func (s *MCPService) listToolsHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recs, err := s.registry.List(ctx, registry.ListFilter{
		NameContains: req.GetString("name", ""),
		Format:       req.GetString("input_format", ""),
		OutputType:   req.GetString("output_format", ""),
	})
	if err != nil {
		return s.errorResult(ToolListTools, err), nil
	}
	return jsonResult(&listResult{Tools: recs})
}

// errorResult reports a failed registry call as a tool error, so the calling agent can see it.
func (s *MCPService) errorResult(tool string, err error) *mcp.CallToolResult {
	if registry.IsKind(err, registry.KindStoreUnavailable) {
		s.logger.Error("mcp tool call failed", zap.String("tool", tool), zap.Error(err))
		return mcp.NewToolResultError("tool store is unavailable, try again later")
	}
	return mcp.NewToolResultError(err.Error())
}

// jsonResult returns v both as structured content and as its JSON text for older clients.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	text, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultStructured(v, string(text)), nil
}
