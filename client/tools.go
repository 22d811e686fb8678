package client

import (
	"net/http"
	"net/url"

	"github.com/toolmeta/toolregistry/pkg/types"
)

// RegisterTool sends a metadata document to register a new tool owned by the caller.
func (c *Client) RegisterTool(doc types.ToolDocument) (*types.Tool, error) {
	u, _ := c.constructAPIEndpoint("/tools")

	var tool types.Tool
	if err := c.doJSON(http.MethodPost, u, doc, http.StatusCreated, &tool); err != nil {
		return nil, err
	}
	return &tool, nil
}

// UpdateTool replaces the metadata of an existing tool.
func (c *Client) UpdateTool(toolID string, doc types.ToolDocument) (*types.Tool, error) {
	u, _ := c.constructAPIEndpoint("/tools/" + url.PathEscape(toolID))

	var tool types.Tool
	if err := c.doJSON(http.MethodPut, u, doc, http.StatusOK, &tool); err != nil {
		return nil, err
	}
	return &tool, nil
}

// RemoveTool deletes a tool from the registry.
func (c *Client) RemoveTool(toolID string) error {
	u, _ := c.constructAPIEndpoint("/tools/" + url.PathEscape(toolID))
	return c.doJSON(http.MethodDelete, u, nil, http.StatusNoContent, nil)
}

// GetTool fetches a single tool by id.
func (c *Client) GetTool(toolID string) (*types.Tool, error) {
	u, _ := c.constructAPIEndpoint("/tools/" + url.PathEscape(toolID))

	var tool types.Tool
	if err := c.doJSON(http.MethodGet, u, nil, http.StatusOK, &tool); err != nil {
		return nil, err
	}
	return &tool, nil
}

// ListTools lists registered tools matching the filter, ordered by name.
func (c *Client) ListTools(filter types.ToolFilter) ([]*types.Tool, error) {
	u, _ := c.constructAPIEndpoint("/tools")
	q := url.Values{}
	if filter.Name != "" {
		q.Set("name", filter.Name)
	}
	if filter.InputFormat != "" {
		q.Set("input_format", filter.InputFormat)
	}
	if filter.OutputFormat != "" {
		q.Set("output_format", filter.OutputFormat)
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var tools []*types.Tool
	if err := c.doJSON(http.MethodGet, u, nil, http.StatusOK, &tools); err != nil {
		return nil, err
	}
	return tools, nil
}

// ResolveFormat returns the tools supporting a format, best candidate first.
// Formats may contain "/" (eg- "text/csv"), which is sent escaped within a single path segment.
func (c *Client) ResolveFormat(format string) (*types.ResolveResponse, error) {
	u, _ := c.constructAPIEndpoint("/formats/" + url.PathEscape(format) + "/tools")

	var resolved types.ResolveResponse
	if err := c.doJSON(http.MethodGet, u, nil, http.StatusOK, &resolved); err != nil {
		return nil, err
	}
	return &resolved, nil
}

// VerifyIndex asks the server to audit the format index. Only admins may call it.
func (c *Client) VerifyIndex() (*types.VerifyIndexResponse, error) {
	u, _ := c.constructAPIEndpoint("/index/verify")

	var report types.VerifyIndexResponse
	if err := c.doJSON(http.MethodGet, u, nil, http.StatusOK, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// GetServerMetadata fetches the server's version and registry settings.
func (c *Client) GetServerMetadata() (*types.ServerMetadata, error) {
	u, err := url.JoinPath(c.baseURL, "/metadata")
	if err != nil {
		return nil, err
	}

	var m types.ServerMetadata
	if err := c.doJSON(http.MethodGet, u, nil, http.StatusOK, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
