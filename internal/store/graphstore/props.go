package graphstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/toolmeta/toolregistry/internal/registry"
)

// toolProps flattens a record into Neo4j node properties.
// The invocation contract is kept as a JSON string since node properties can't hold maps.
func toolProps(rec *registry.ToolRecord) map[string]any {
	formats := make([]string, len(rec.SupportedFormats))
	copy(formats, rec.SupportedFormats)
	return map[string]any{
		"tool_id":             rec.ToolID,
		"name":                rec.Name,
		"version":             rec.Version,
		"owner_id":            rec.OwnerID,
		"description":         rec.Description,
		"location":            rec.Location,
		"supported_formats":   formats,
		"invocation_contract": string(rec.InvocationContract),
		"revision":            rec.Revision,
		"created_at":          rec.CreatedAt.UTC(),
		"updated_at":          rec.UpdatedAt.UTC(),
	}
}

// recordFromProps is the inverse of toolProps for values as returned by the driver:
// lists arrive as []any and integers as int64.
func recordFromProps(raw any) (*registry.ToolRecord, error) {
	props, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected tool properties type %T", raw)
	}

	rec := &registry.ToolRecord{
		ToolID:      stringProp(props, "tool_id"),
		Name:        stringProp(props, "name"),
		Version:     stringProp(props, "version"),
		OwnerID:     stringProp(props, "owner_id"),
		Description: stringProp(props, "description"),
		Location:    stringProp(props, "location"),
	}
	if rec.ToolID == "" {
		return nil, fmt.Errorf("tool node has no tool_id")
	}

	switch formats := props["supported_formats"].(type) {
	case []any:
		rec.SupportedFormats = make([]string, 0, len(formats))
		for _, f := range formats {
			s, ok := f.(string)
			if !ok {
				return nil, fmt.Errorf("tool %s has a non-string format %v", rec.ToolID, f)
			}
			rec.SupportedFormats = append(rec.SupportedFormats, s)
		}
	case []string:
		rec.SupportedFormats = append([]string(nil), formats...)
	}

	contract := stringProp(props, "invocation_contract")
	if contract != "" {
		if !json.Valid([]byte(contract)) {
			return nil, fmt.Errorf("tool %s has an invalid invocation contract", rec.ToolID)
		}
		rec.InvocationContract = json.RawMessage(contract)
	}

	switch rev := props["revision"].(type) {
	case int64:
		rec.Revision = rev
	case int:
		rec.Revision = int64(rev)
	}

	rec.CreatedAt = timeProp(props, "created_at")
	rec.UpdatedAt = timeProp(props, "updated_at")
	return rec, nil
}

func stringProp(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func timeProp(props map[string]any, key string) time.Time {
	t, _ := props[key].(time.Time)
	return t.UTC()
}
