package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDoc() Document {
	return Document{
		FieldName:             "csvkit",
		FieldVersion:          "1.2.3",
		FieldSupportedFormats: []any{"CSV", " tsv ", "csv"},
		FieldInvocationContract: map[string]any{
			"entrypoint": "csvkit convert",
			"inputs":     []any{"csv"},
			"outputs":    []any{map[string]any{"type": "json"}},
		},
	}
}

func TestValidateCreate(t *testing.T) {
	v := NewValidator(nil)

	sub, err := v.Validate(OpCreate, validDoc(), "")
	require.NoError(t, err)
	assert.Equal(t, "csvkit", sub.Name)
	assert.Equal(t, "1.2.3", sub.Version)
	assert.Equal(t, []string{"csv", "tsv"}, sub.SupportedFormats)
	assert.JSONEq(t,
		`{"entrypoint":"csvkit convert","inputs":["csv"],"outputs":[{"type":"json"}]}`,
		string(sub.InvocationContract),
	)
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name      string
		op        Operation
		mutate    func(d Document)
		wantField string
	}{
		{
			name:      "missing name",
			op:        OpCreate,
			mutate:    func(d Document) { delete(d, FieldName) },
			wantField: FieldName,
		},
		{
			name:      "blank name",
			op:        OpCreate,
			mutate:    func(d Document) { d[FieldName] = "   " },
			wantField: FieldName,
		},
		{
			name:      "missing version",
			op:        OpCreate,
			mutate:    func(d Document) { delete(d, FieldVersion) },
			wantField: FieldVersion,
		},
		{
			name:      "version is not semver",
			op:        OpCreate,
			mutate:    func(d Document) { d[FieldVersion] = "latest" },
			wantField: FieldVersion,
		},
		{
			name:      "version shorthand",
			op:        OpCreate,
			mutate:    func(d Document) { d[FieldVersion] = "1.2" },
			wantField: FieldVersion,
		},
		{
			name:      "empty formats",
			op:        OpCreate,
			mutate:    func(d Document) { d[FieldSupportedFormats] = []any{} },
			wantField: FieldSupportedFormats,
		},
		{
			name:      "formats not a list",
			op:        OpCreate,
			mutate:    func(d Document) { d[FieldSupportedFormats] = "csv" },
			wantField: FieldSupportedFormats,
		},
		{
			name:      "format blank after normalization",
			op:        OpCreate,
			mutate:    func(d Document) { d[FieldSupportedFormats] = []any{"csv", "  "} },
			wantField: FieldSupportedFormats,
		},
		{
			name:      "format not a string",
			op:        OpCreate,
			mutate:    func(d Document) { d[FieldSupportedFormats] = []any{42} },
			wantField: FieldSupportedFormats,
		},
		{
			name:      "missing contract",
			op:        OpCreate,
			mutate:    func(d Document) { delete(d, FieldInvocationContract) },
			wantField: FieldInvocationContract,
		},
		{
			name: "contract without entrypoint",
			op:   OpCreate,
			mutate: func(d Document) {
				d[FieldInvocationContract] = map[string]any{"inputs": []any{"csv"}}
			},
			wantField: FieldInvocationContract,
		},
		{
			name: "contract without inputs",
			op:   OpCreate,
			mutate: func(d Document) {
				d[FieldInvocationContract] = map[string]any{"entrypoint": "run", "inputs": []any{}}
			},
			wantField: FieldInvocationContract,
		},
		{
			name: "input object without type",
			op:   OpCreate,
			mutate: func(d Document) {
				d[FieldInvocationContract] = map[string]any{
					"entrypoint": "run",
					"inputs":     []any{map[string]any{"schema": map[string]any{}}},
				}
			},
			wantField: FieldInvocationContract,
		},
		{
			name: "invalid input schema",
			op:   OpCreate,
			mutate: func(d Document) {
				d[FieldInvocationContract] = map[string]any{
					"entrypoint": "run",
					"inputs": []any{map[string]any{
						"type":   "csv",
						"schema": "not a schema",
					}},
				}
			},
			wantField: FieldInvocationContract,
		},
		{
			name:      "description not a string",
			op:        OpCreate,
			mutate:    func(d Document) { d[FieldDescription] = 3 },
			wantField: FieldDescription,
		},
		{
			name:      "owner supplied on create",
			op:        OpCreate,
			mutate:    func(d Document) { d[FieldOwnerID] = "mallory" },
			wantField: FieldOwnerID,
		},
		{
			name:      "tool id supplied on create",
			op:        OpCreate,
			mutate:    func(d Document) { d[FieldToolID] = "t-1" },
			wantField: FieldToolID,
		},
		{
			name:      "tool id differs on update",
			op:        OpUpdate,
			mutate:    func(d Document) { d[FieldToolID] = "t-2" },
			wantField: FieldToolID,
		},
	}

	v := NewValidator(nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc := validDoc()
			tc.mutate(doc)

			_, err := v.Validate(tc.op, doc, "t-1")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			var rerr *Error
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tc.wantField, rerr.Field)
		})
	}
}

func TestValidateAcceptsSchemaAndVersionForms(t *testing.T) {
	v := NewValidator(nil)
	for _, version := range []string{"0.0.1", "v2.10.0", "1.0.0-rc.1", "1.0.0+build.5"} {
		doc := validDoc()
		doc[FieldVersion] = version
		doc[FieldInvocationContract] = map[string]any{
			"entrypoint": "run",
			"inputs": []any{map[string]any{
				"type": "csv",
				"schema": map[string]any{
					"type":       "object",
					"properties": map[string]any{"delimiter": map[string]any{"type": "string"}},
				},
			}},
		}
		_, err := v.Validate(OpCreate, doc, "")
		assert.NoError(t, err, "version %s", version)
	}
}

func TestValidateUpdateKeepsOwner(t *testing.T) {
	v := NewValidator(nil)
	doc := validDoc()
	doc[FieldToolID] = "t-1"
	doc[FieldOwnerID] = "alice"

	sub, err := v.Validate(OpUpdate, doc, "t-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", sub.OwnerID)

	existing := &ToolRecord{ToolID: "t-1", OwnerID: "alice"}
	assert.NoError(t, v.CheckImmutable(existing, sub))

	existing.OwnerID = "bob"
	err = v.CheckImmutable(existing, sub)
	require.Error(t, err)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, FieldOwnerID, rerr.Field)
}

func TestValidateRejectsRemove(t *testing.T) {
	_, err := NewValidator(nil).Validate(OpRemove, validDoc(), "t-1")
	assert.Error(t, err)
}

func TestNormalizeFormat(t *testing.T) {
	ext, err := NewNormalizer(NormalizeExtension)
	require.NoError(t, err)

	tests := []struct {
		name      string
		normalize Normalizer
		input     string
		want      string
		wantErr   bool
	}{
		{name: "casefold trims and lowers", normalize: casefold, input: "  CSV ", want: "csv"},
		{name: "casefold keeps dots", normalize: casefold, input: ".csv", want: ".csv"},
		{name: "extension strips dots", normalize: ext, input: ".CSV", want: "csv"},
		{name: "blank token", normalize: casefold, input: "   ", wantErr: true},
		{name: "only dots", normalize: ext, input: "..", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewValidator(tc.normalize).NormalizeFormat(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				var rerr *Error
				require.ErrorAs(t, err, &rerr)
				assert.Equal(t, "format", rerr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewNormalizerUnknownRule(t *testing.T) {
	_, err := NewNormalizer("soundex")
	assert.Error(t, err)
}
