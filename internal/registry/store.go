package registry

import (
	"context"
	"slices"
)

// Store is the persistence contract the registry relies on.
//
// Implementations must apply a record write and the matching FormatIndex changes as one atomic
// unit: either both are visible or neither is. Per-record writes are serialized through the
// expectedRevision argument, a mismatch fails with a KindConflict error and changes nothing.
type Store interface {
	// Put writes a record together with its index entries.
	// expectedRevision 0 means the record must not exist yet (create).
	// Otherwise the stored revision must equal expectedRevision (update).
	// On success record.Revision is set to expectedRevision+1.
	Put(ctx context.Context, record *ToolRecord, expectedRevision int64) error

	// Get returns the record with the given id or a KindNotFound error.
	Get(ctx context.Context, toolID string) (*ToolRecord, error)

	// Delete removes the record and retracts all of its index entries.
	// The stored revision must equal expectedRevision.
	Delete(ctx context.Context, toolID string, expectedRevision int64) error

	// ListByFormat returns the ids of the tools indexed under the format token, in ascending order.
	// An unknown format yields an empty slice and no error.
	ListByFormat(ctx context.Context, format string) ([]string, error)

	// List returns all records.
	List(ctx context.Context) ([]*ToolRecord, error)

	Close() error
}

// IndexDelta computes the index changes needed to move a record from the old to the new format set.
// Every Store implementation applies the result inside the transaction that writes the record.
// Both inputs are treated as sets; the outputs are sorted.
func IndexDelta(oldFormats, newFormats []string) (retract, add []string) {
	oldSet := make(map[string]struct{}, len(oldFormats))
	for _, f := range oldFormats {
		oldSet[f] = struct{}{}
	}
	newSet := make(map[string]struct{}, len(newFormats))
	for _, f := range newFormats {
		newSet[f] = struct{}{}
		if _, ok := oldSet[f]; !ok {
			add = append(add, f)
		}
	}
	for f := range oldSet {
		if _, ok := newSet[f]; !ok {
			retract = append(retract, f)
		}
	}
	slices.Sort(retract)
	slices.Sort(add)
	return slices.Compact(retract), slices.Compact(add)
}

// CheckRevision is the revision rule shared by all stores.
// exists/current describe the stored record as seen inside the write transaction.
func CheckRevision(toolID string, exists bool, current, expected int64) error {
	switch {
	case expected == 0 && exists:
		return NewError(KindConflict, "tool %s already exists", toolID)
	case expected != 0 && !exists:
		return NewError(KindNotFound, "tool %s not found", toolID)
	case expected != 0 && current != expected:
		return NewError(KindConflict, "tool %s was modified concurrently, retry the operation", toolID)
	}
	return nil
}
