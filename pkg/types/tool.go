package types

import (
	"encoding/json"
	"time"
)

// ToolDocument is a tool metadata document as submitted for registration or update.
// The server validates it. Unknown keys are ignored.
//
// Recognised keys: name, version, description, location, supported_formats,
// invocation_contract. On update, tool_id and owner_id may be echoed back but not changed.
type ToolDocument map[string]any

// Tool is a tool registered in the tool registry.
type Tool struct {
	ToolID  string `json:"tool_id"`
	Name    string `json:"name"`
	Version string `json:"version"`
	OwnerID string `json:"owner_id"`

	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	SupportedFormats   []string        `json:"supported_formats"`
	InvocationContract json.RawMessage `json:"invocation_contract"`

	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToolFilter holds the optional search criteria of a tool listing. Empty fields don't filter.
type ToolFilter struct {
	// Name matches tools whose name contains it, case-insensitively.
	Name string

	// InputFormat matches tools declaring this format in supported_formats.
	InputFormat string

	// OutputFormat matches tools whose invocation contract declares an output of this type.
	OutputFormat string
}

// ResolveResponse lists the tools that can handle a format, best candidate first.
type ResolveResponse struct {
	// Format is the normalized token the query was resolved against.
	Format string  `json:"format"`
	Tools  []*Tool `json:"tools"`
}

// IndexInconsistency reports a format index entry that disagrees with the tool records.
type IndexInconsistency struct {
	ToolID  string `json:"tool_id"`
	Format  string `json:"format"`
	Problem string `json:"problem"`
}

// VerifyIndexResponse is the result of an on-demand index audit.
type VerifyIndexResponse struct {
	Consistent      bool                  `json:"consistent"`
	Inconsistencies []*IndexInconsistency `json:"inconsistencies"`
}

// ErrorResponse is the body of every non-2xx response from the registry API.
type ErrorResponse struct {
	Error string `json:"error"`

	// Kind is the machine-readable error class, eg- "validation" or "conflict".
	Kind string `json:"kind,omitempty"`

	// Field names the first offending document field of a validation error.
	Field string `json:"field,omitempty"`

	// Retryable is true when the same request may succeed if sent again.
	Retryable bool `json:"retryable,omitempty"`
}
