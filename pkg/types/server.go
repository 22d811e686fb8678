package types

// ServerMetadata represents the server metadata response
type ServerMetadata struct {
	Version string `json:"version"`

	// FormatNormalization is the rule the server applies to format identifiers.
	FormatNormalization string `json:"format_normalization"`

	// AdminRole is the role token that grants management rights over every tool.
	AdminRole string `json:"admin_role"`
}
