package registry

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"golang.org/x/mod/semver"
)

// Keys of the invocation contract checked by the Validator.
const (
	contractEntrypoint = "entrypoint"
	contractInputs     = "inputs"
	contractOutputs    = "outputs"
	contractType       = "type"
	contractSchema     = "schema"
)

// Submission holds the normalized fields of a document that passed validation.
type Submission struct {
	Name               string
	Version            string
	Description        string
	Location           string
	SupportedFormats   []string
	InvocationContract json.RawMessage

	// OwnerID is only set when an update document carries an owner_id.
	// It must then match the stored owner, see CheckImmutable.
	OwnerID string
}

// Validator checks tool metadata documents against the contract schema.
// It performs no I/O.
type Validator struct {
	normalize Normalizer
}

func NewValidator(normalize Normalizer) *Validator {
	if normalize == nil {
		normalize = casefold
	}
	return &Validator{normalize: normalize}
}

// NormalizeFormat normalizes a single format token.
func (v *Validator) NormalizeFormat(raw string) (string, error) {
	token := v.normalize(raw)
	if token == "" {
		return "", ValidationError("format", "format token '%s' is empty after normalization", raw)
	}
	return token, nil
}

// Validate checks doc for the given operation and returns its normalized fields.
// It fails fast: the returned error names the first failing field.
// targetID is the id of the tool being updated and is ignored on create.
func (v *Validator) Validate(op Operation, doc Document, targetID string) (*Submission, error) {
	if op != OpCreate && op != OpUpdate {
		return nil, fmt.Errorf("operation %s does not accept a metadata document", op)
	}
	if doc == nil {
		return nil, ValidationError(FieldName, "document is empty")
	}

	for _, field := range []string{FieldName, FieldVersion, FieldSupportedFormats, FieldInvocationContract} {
		if val, ok := doc[field]; !ok || val == nil {
			return nil, ValidationError(field, "field is required")
		}
	}

	sub := &Submission{}

	name, err := requireString(doc, FieldName)
	if err != nil {
		return nil, err
	}
	sub.Name = name

	version, err := requireString(doc, FieldVersion)
	if err != nil {
		return nil, err
	}
	if err := validateVersion(version); err != nil {
		return nil, err
	}
	sub.Version = version

	formats, err := v.normalizeFormats(doc[FieldSupportedFormats])
	if err != nil {
		return nil, err
	}
	sub.SupportedFormats = formats

	contract, err := validateContract(doc[FieldInvocationContract])
	if err != nil {
		return nil, err
	}
	sub.InvocationContract = contract

	if sub.Description, err = optionalString(doc, FieldDescription); err != nil {
		return nil, err
	}
	if sub.Location, err = optionalString(doc, FieldLocation); err != nil {
		return nil, err
	}

	toolID, err := optionalString(doc, FieldToolID)
	if err != nil {
		return nil, err
	}
	ownerID, err := optionalString(doc, FieldOwnerID)
	if err != nil {
		return nil, err
	}

	switch op {
	case OpCreate:
		if toolID != "" {
			return nil, ValidationError(FieldToolID, "tool id is assigned by the registry and must not be supplied")
		}
		if ownerID != "" {
			return nil, ValidationError(FieldOwnerID, "owner is the authenticated principal and must not be supplied")
		}
	case OpUpdate:
		if toolID != "" && toolID != targetID {
			return nil, ValidationError(FieldToolID, "tool id is immutable")
		}
		sub.OwnerID = ownerID
	}

	return sub, nil
}

// CheckImmutable rejects an update submission that tries to change the stored owner.
func (v *Validator) CheckImmutable(existing *ToolRecord, sub *Submission) error {
	if sub.OwnerID != "" && sub.OwnerID != existing.OwnerID {
		return ValidationError(FieldOwnerID, "owner is immutable")
	}
	return nil
}

func (v *Validator) normalizeFormats(raw any) ([]string, error) {
	items, ok := asList(raw)
	if !ok {
		return nil, ValidationError(FieldSupportedFormats, "must be a list of format identifiers")
	}
	if len(items) == 0 {
		return nil, ValidationError(FieldSupportedFormats, "at least one format is required")
	}

	formats := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, ValidationError(FieldSupportedFormats, "entry %d is not a string", i)
		}
		token := v.normalize(s)
		if token == "" {
			return nil, ValidationError(FieldSupportedFormats, "entry %d is empty after normalization", i)
		}
		formats = append(formats, token)
	}
	slices.Sort(formats)
	return slices.Compact(formats), nil
}

// validateVersion accepts a full MAJOR.MINOR.PATCH semantic version with optional
// pre-release and build suffixes and an optional leading "v".
// semver.IsValid alone also accepts the "v1" and "v1.2" shorthands, which are rejected here.
func validateVersion(version string) error {
	v := "v" + strings.TrimPrefix(version, "v")
	if !semver.IsValid(v) {
		return ValidationError(FieldVersion, "'%s' is not a semantic version", version)
	}
	core, _, _ := strings.Cut(v, "+")
	core, _, _ = strings.Cut(core, "-")
	if strings.Count(core, ".") != 2 {
		return ValidationError(FieldVersion, "'%s' must have the form MAJOR.MINOR.PATCH", version)
	}
	return nil
}

// validateContract checks the minimal shape of the invocation contract and returns its
// canonical JSON encoding.
func validateContract(raw any) (json.RawMessage, error) {
	contract, ok := raw.(map[string]any)
	if !ok {
		return nil, ValidationError(FieldInvocationContract, "must be an object")
	}

	entrypoint, ok := contract[contractEntrypoint].(string)
	if !ok || strings.TrimSpace(entrypoint) == "" {
		return nil, ValidationError(FieldInvocationContract, "'%s' is required", contractEntrypoint)
	}

	inputs, ok := asList(contract[contractInputs])
	if !ok || len(inputs) == 0 {
		return nil, ValidationError(FieldInvocationContract, "at least one entry in '%s' is required", contractInputs)
	}
	if err := validateIOSpecs(contractInputs, inputs); err != nil {
		return nil, err
	}

	if rawOutputs, present := contract[contractOutputs]; present && rawOutputs != nil {
		outputs, ok := asList(rawOutputs)
		if !ok {
			return nil, ValidationError(FieldInvocationContract, "'%s' must be a list", contractOutputs)
		}
		if err := validateIOSpecs(contractOutputs, outputs); err != nil {
			return nil, err
		}
	}

	encoded, err := json.Marshal(contract)
	if err != nil {
		return nil, ValidationError(FieldInvocationContract, "not representable as JSON: %v", err)
	}
	return encoded, nil
}

// validateIOSpecs checks declared inputs or outputs. Each entry is either a type name
// or an object with a "type" and an optional JSON "schema".
func validateIOSpecs(key string, specs []any) error {
	for i, spec := range specs {
		switch s := spec.(type) {
		case string:
			if strings.TrimSpace(s) == "" {
				return ValidationError(FieldInvocationContract, "%s[%d] has an empty type", key, i)
			}
		case map[string]any:
			typ, ok := s[contractType].(string)
			if !ok || strings.TrimSpace(typ) == "" {
				return ValidationError(FieldInvocationContract, "%s[%d] must declare a '%s'", key, i, contractType)
			}
			if schema, present := s[contractSchema]; present {
				if err := validateJSONSchema(schema); err != nil {
					return ValidationError(FieldInvocationContract, "%s[%d] has an invalid schema: %v", key, i, err)
				}
			}
		default:
			return ValidationError(FieldInvocationContract, "%s[%d] must be a type name or an object", key, i)
		}
	}
	return nil
}

func validateJSONSchema(raw any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return err
	}
	_, err = schema.Resolve(nil)
	return err
}

// asList accepts both decoded JSON lists and string slices built in Go.
func asList(raw any) ([]any, bool) {
	switch val := raw.(type) {
	case []any:
		return val, true
	case []string:
		items := make([]any, len(val))
		for i, s := range val {
			items[i] = s
		}
		return items, true
	}
	return nil, false
}

func requireString(doc Document, field string) (string, error) {
	s, ok := doc[field].(string)
	if !ok {
		return "", ValidationError(field, "must be a string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ValidationError(field, "must not be empty")
	}
	return s, nil
}

func optionalString(doc Document, field string) (string, error) {
	raw, ok := doc[field]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", ValidationError(field, "must be a string")
	}
	return strings.TrimSpace(s), nil
}
