// Package mcp exposes the tool registry's read operations as MCP tools,
// so that agents can discover which registered tools handle a given file format.
package mcp

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/toolmeta/toolregistry/internal/registry"
	"github.com/toolmeta/toolregistry/pkg/version"
	"go.uber.org/zap"
)

// ServerName is the implementation name announced to MCP clients.
const ServerName = "toolregistry"

// Names of the MCP tools served by the registry.
const (
	ToolResolveFormat = "resolve_format"
	ToolGetTool       = "get_tool"
	ToolListTools     = "list_tools"
)

// ServiceConfig holds the configuration parameters for initializing the MCPService.
type ServiceConfig struct {
	Registry  *registry.Registry
	MCPServer *server.MCPServer
	Logger    *zap.Logger
}

// MCPService serves registry lookups over MCP. It never mutates the registry.
type MCPService struct {
	registry  *registry.Registry
	mcpServer *server.MCPServer
	logger    *zap.Logger
}

// NewServer creates the MCP server the registry tools are attached to.
func NewServer() *server.MCPServer {
	return server.NewMCPServer(
		ServerName,
		version.GetVersion(),
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
}

// NewMCPService creates a new instance of MCPService and registers its tools on the MCP server.
func NewMCPService(c *ServiceConfig) (*MCPService, error) {
	if c.Registry == nil {
		return nil, fmt.Errorf("mcp service requires a registry")
	}
	if c.MCPServer == nil {
		return nil, fmt.Errorf("mcp service requires an MCP server")
	}
	s := &MCPService{
		registry:  c.Registry,
		mcpServer: c.MCPServer,
		logger:    c.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.registerTools()
	return s, nil
}

func (s *MCPService) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			ToolResolveFormat,
			mcp.WithDescription(
				"Find the registered tools that can process a file format. "+
					"Returns candidates best first: most recently updated, then by tool id.",
			),
			mcp.WithString(
				"format",
				mcp.Required(),
				mcp.Description("Format identifier, eg- 'csv' or 'parquet'. Matching is exact after normalization."),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.resolveFormatHandler,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			ToolGetTool,
			mcp.WithDescription("Get the full metadata of a registered tool, including its invocation contract."),
			mcp.WithString("tool_id", mcp.Required(), mcp.Description("Id of the tool")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.getToolHandler,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			ToolListTools,
			mcp.WithDescription("List all registered tools ordered by name."),
			mcp.WithString("name", mcp.Description("Only return tools whose name contains this text")),
			mcp.WithString("input_format", mcp.Description("Only return tools that accept this format")),
			mcp.WithString("output_format", mcp.Description("Only return tools that declare an output of this type")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.listToolsHandler,
	)
}
