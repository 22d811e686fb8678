package registry

import (
	"context"
	"slices"
	"strings"
)

// Resolver maps a format token to the ranked list of tools supporting it.
type Resolver struct {
	store     Store
	validator *Validator
}

func NewResolver(store Store, validator *Validator) *Resolver {
	return &Resolver{store: store, validator: validator}
}

// Resolve returns the tools indexed under the format, exact matches only.
// Ordering is deterministic: most recently updated first, then ascending tool id.
// An unknown format yields an empty, non-nil slice.
func (r *Resolver) Resolve(ctx context.Context, format string) ([]*ToolRecord, error) {
	token, err := r.validator.NormalizeFormat(format)
	if err != nil {
		return nil, err
	}

	ids, err := r.store.ListByFormat(ctx, token)
	if err != nil {
		return nil, err
	}

	records := make([]*ToolRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := r.store.Get(ctx, id)
		if err != nil {
			// the record was removed after the index was read
			if IsKind(err, KindNotFound) {
				continue
			}
			return nil, err
		}
		if !rec.SupportsFormat(token) {
			continue
		}
		records = append(records, rec)
	}

	SortByRank(records)
	return records, nil
}

// SortByRank orders records by UpdatedAt descending with ToolID ascending as the final tie-break.
func SortByRank(records []*ToolRecord) {
	slices.SortFunc(records, func(a, b *ToolRecord) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ToolID, b.ToolID)
	})
}
