// Package client provides an HTTP client for the tool registry API.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/toolmeta/toolregistry/pkg/types"
)

// DefaultAPIPrefix is the path prefix the registry server mounts its API under.
const DefaultAPIPrefix = "/api/v0"

// Client is the tool registry API client.
type Client struct {
	baseURL     string
	apiPrefix   string
	accessToken string
	httpClient  *http.Client
}

// NewClient creates a client for the registry server at baseURL.
// accessToken may be empty for the public read endpoints.
func NewClient(baseURL, accessToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiPrefix:   DefaultAPIPrefix,
		accessToken: accessToken,
		httpClient:  httpClient,
	}
}

// BaseURL returns the server URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is returned when the server answers with an unexpected status code.
type APIError struct {
	StatusCode int

	// Kind, Field and Retryable are only set when the server sent a structured error body.
	Kind      string
	Field     string
	Retryable bool

	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status: %d, message: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// constructAPIEndpoint returns the full URL of an API endpoint. suffixPath must start with "/".
func (c *Client) constructAPIEndpoint(suffixPath string) (string, error) {
	return url.JoinPath(c.baseURL, c.apiPrefix, suffixPath)
}

// newRequest creates a request carrying the client's access token, if any.
func (c *Client) newRequest(method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	return req, nil
}

// doJSON sends a request with an optional JSON body and expects expectedStatus in return.
// If out is not nil, the response body is decoded into it.
func (c *Client) doJSON(method, u string, body any, expectedStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", u, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != expectedStatus {
		return c.parseErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse turns a non-success response into an *APIError.
// Structured error bodies are decoded, anything else is reported verbatim.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("request failed with status: %d (failed to read response body: %w)", resp.StatusCode, err)
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	var errResp types.ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		apiErr.Message = errResp.Error
		apiErr.Kind = errResp.Kind
		apiErr.Field = errResp.Field
		apiErr.Retryable = errResp.Retryable
	}
	return apiErr
}
