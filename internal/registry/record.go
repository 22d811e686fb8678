// Package registry implements the tool metadata resolution and authorization engine.
//
// It indexes tools by the file formats they declare, resolves format queries to ranked
// candidate tools, validates tool metadata documents against the contract schema and enforces
// the ownership model before any mutation reaches the store.
package registry

import (
	"encoding/json"
	"slices"
	"time"
)

// Document is an untyped tool metadata submission as received at the boundary.
// It only becomes a ToolRecord after passing the Validator.
type Document map[string]any

// Document keys recognised by the Validator.
const (
	FieldToolID             = "tool_id"
	FieldName               = "name"
	FieldVersion            = "version"
	FieldOwnerID            = "owner_id"
	FieldDescription        = "description"
	FieldLocation           = "location"
	FieldSupportedFormats   = "supported_formats"
	FieldInvocationContract = "invocation_contract"
)

// ToolRecord is the catalog entry for a single tool.
type ToolRecord struct {
	// ToolID is assigned at creation and never changes.
	ToolID string `json:"tool_id"`

	Name    string `json:"name"`
	Version string `json:"version"`

	// OwnerID is the principal that registered the tool. It is immutable after creation.
	OwnerID string `json:"owner_id"`

	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	// SupportedFormats is non-empty, sorted, de-duplicated and normalized.
	SupportedFormats []string `json:"supported_formats"`

	// InvocationContract is a JSON object describing how the tool is invoked.
	// The registry only checks its shape.
	InvocationContract json.RawMessage `json:"invocation_contract"`

	// Revision is incremented by the store on every successful write.
	// It is used to detect concurrent writers.
	Revision int64 `json:"revision"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the record so that callers can't mutate store-owned state.
func (r *ToolRecord) Clone() *ToolRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.SupportedFormats = slices.Clone(r.SupportedFormats)
	c.InvocationContract = slices.Clone(r.InvocationContract)
	return &c
}

// SupportsFormat reports whether the (already normalized) format token is in the record's format set.
func (r *ToolRecord) SupportsFormat(format string) bool {
	_, found := slices.BinarySearch(r.SupportedFormats, format)
	return found
}

// OutputTypes returns the type names of the outputs declared by the invocation contract,
// in declaration order. Entries are either type names or objects carrying a "type".
func (r *ToolRecord) OutputTypes() []string {
	var contract struct {
		Outputs []json.RawMessage `json:"outputs"`
	}
	if err := json.Unmarshal(r.InvocationContract, &contract); err != nil {
		return nil
	}
	types := make([]string, 0, len(contract.Outputs))
	for _, raw := range contract.Outputs {
		var name string
		if err := json.Unmarshal(raw, &name); err == nil {
			types = append(types, name)
			continue
		}
		var spec struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &spec); err == nil && spec.Type != "" {
			types = append(types, spec.Type)
		}
	}
	return types
}

// Principal is an authenticated caller, produced by the authentication collaborator.
// It is never persisted by the registry.
type Principal struct {
	ID    string   `json:"principal_id"`
	Roles []string `json:"roles,omitempty"`
}

// HasRole reports whether the principal carries the given role token.
func (p *Principal) HasRole(role string) bool {
	return p != nil && role != "" && slices.Contains(p.Roles, role)
}

// Operation is a mutation kind subject to validation and authorization.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpRemove Operation = "remove"
)
