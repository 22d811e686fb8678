package registry

import (
	"fmt"
	"strings"
)

// Names of the supported format normalization rules.
const (
	// NormalizeCasefold trims surrounding whitespace and lower-cases the token.
	NormalizeCasefold = "casefold"

	// NormalizeExtension applies NormalizeCasefold and strips leading dots,
	// so that ".CSV" and "csv" name the same format.
	NormalizeExtension = "extension"
)

// Normalizer turns a raw format identifier into a format token.
// An empty result means the input is not a usable token.
type Normalizer func(raw string) string

// NewNormalizer returns the normalizer for the named rule. An empty name selects NormalizeCasefold.
func NewNormalizer(rule string) (Normalizer, error) {
	switch rule {
	case "", NormalizeCasefold:
		return casefold, nil
	case NormalizeExtension:
		return func(raw string) string {
			return strings.TrimLeft(casefold(raw), ".")
		}, nil
	default:
		return nil, fmt.Errorf(
			"unsupported format normalization rule: %s (acceptable values: '%s', '%s')",
			rule, NormalizeCasefold, NormalizeExtension,
		)
	}
}

func casefold(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
