package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/toolmeta/toolregistry/pkg/types"
)

func TestRegisterTool(t *testing.T) {
	t.Parallel()

	t.Run("successful registration", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/v0/tools" {
				t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer test-token" {
				t.Errorf("Expected bearer token, got %q", r.Header.Get("Authorization"))
			}
			var doc types.ToolDocument
			if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
				t.Fatalf("Failed to decode request body: %v", err)
			}
			if doc["name"] != "csv-reader" {
				t.Errorf("Expected name csv-reader, got %v", doc["name"])
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(&types.Tool{ToolID: "t-1", Name: "csv-reader", OwnerID: "alice", Revision: 1})
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-token", &http.Client{})
		tool, err := client.RegisterTool(types.ToolDocument{"name": "csv-reader"})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if tool.ToolID != "t-1" || tool.OwnerID != "alice" {
			t.Errorf("Unexpected tool: %+v", tool)
		}
	})

	t.Run("validation error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(&types.ErrorResponse{
				Error: "register: invalid supported_formats: at least one format is required",
				Kind:  "validation",
				Field: "supported_formats",
			})
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-token", &http.Client{})
		_, err := client.RegisterTool(types.ToolDocument{"name": "csv-reader"})

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("Expected *APIError, got %v", err)
		}
		if apiErr.Kind != "validation" || apiErr.Field != "supported_formats" {
			t.Errorf("Unexpected error details: %+v", apiErr)
		}
		expected := "request failed with status: 400, message: register: invalid supported_formats: at least one format is required"
		if err.Error() != expected {
			t.Errorf("Expected error %q, got %q", expected, err.Error())
		}
	})
}

func TestUpdateAndRemoveTool(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(&types.Tool{ToolID: "t-1", Revision: 2})
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", &http.Client{})
	tool, err := client.UpdateTool("t-1", types.ToolDocument{"name": "csv-reader"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if tool.Revision != 2 {
		t.Errorf("Expected revision 2, got %d", tool.Revision)
	}
	if err := client.RemoveTool("t-1"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	expected := []string{"PUT /api/v0/tools/t-1", "DELETE /api/v0/tools/t-1"}
	if len(calls) != len(expected) || calls[0] != expected[0] || calls[1] != expected[1] {
		t.Errorf("Expected calls %v, got %v", expected, calls)
	}
}

func TestResolveFormat(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/formats/csv/tools" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("Expected no Authorization header for an anonymous client")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(&types.ResolveResponse{
			Format: "csv",
			Tools:  []*types.Tool{{ToolID: "b"}, {ToolID: "a"}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", nil)
	resolved, err := client.ResolveFormat("csv")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(resolved.Tools) != 2 || resolved.Tools[0].ToolID != "b" {
		t.Errorf("Unexpected tools: %+v", resolved.Tools)
	}
}

func TestListToolsWithFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		filter    types.ToolFilter
		wantQuery string
	}{
		{"no filter", types.ToolFilter{}, ""},
		{"name", types.ToolFilter{Name: "csv reader"}, "name=csv+reader"},
		{"formats", types.ToolFilter{InputFormat: "text/csv", OutputFormat: "parquet"}, "input_format=text%2Fcsv&output_format=parquet"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.RawQuery != tc.wantQuery {
					t.Errorf("Expected query %q, got %q", tc.wantQuery, r.URL.RawQuery)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`[]`))
			}))
			defer server.Close()

			tools, err := NewClient(server.URL, "", nil).ListTools(tc.filter)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(tools) != 0 {
				t.Errorf("Expected no tools, got %d", len(tools))
			}
		})
	}
}

func TestResolveFormatEscapesSlash(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.EscapedPath(); got != "/api/v0/formats/text%2Fcsv/tools" {
			t.Errorf("Expected the slash to stay escaped, got path %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"format":"text/csv","tools":[]}`))
	}))
	defer server.Close()

	resolved, err := NewClient(server.URL, "", nil).ResolveFormat("text/csv")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resolved.Format != "text/csv" {
		t.Errorf("Expected format text/csv, got %s", resolved.Format)
	}
}

func TestGetToolNotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"get: tool t-9 not found","kind":"not_found"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "", nil).GetTool("t-9")
	if !IsNotFound(err) {
		t.Fatalf("Expected not found error, got %v", err)
	}
}

func TestGetServerMetadata(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metadata" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"version":"v1.0.0","format_normalization":"casefold","admin_role":"admin"}`))
	}))
	defer server.Close()

	m, err := NewClient(server.URL+"/", "", nil).GetServerMetadata()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if m.Version != "v1.0.0" || m.FormatNormalization != "casefold" {
		t.Errorf("Unexpected metadata: %+v", m)
	}
}
