// Package memstore provides an in-process registry.Store backed by maps.
// It is used for tests and for the "memory" backend, which loses all data on restart.
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/toolmeta/toolregistry/internal/registry"
)

// Store keeps records and the format index in memory.
// A single mutex covers both, which makes every write atomic with respect to readers.
type Store struct {
	mu      sync.RWMutex
	records map[string]*registry.ToolRecord
	index   map[string]map[string]struct{}
	closed  bool
}

func New() *Store {
	return &Store{
		records: make(map[string]*registry.ToolRecord),
		index:   make(map[string]map[string]struct{}),
	}
}

func (s *Store) Put(ctx context.Context, record *registry.ToolRecord, expectedRevision int64) error {
	if err := ctx.Err(); err != nil {
		return registry.StoreUnavailable(err, "request cancelled")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed()
	}

	existing, exists := s.records[record.ToolID]
	var current int64
	var oldFormats []string
	if exists {
		current = existing.Revision
		oldFormats = existing.SupportedFormats
	}
	if err := registry.CheckRevision(record.ToolID, exists, current, expectedRevision); err != nil {
		return err
	}

	retract, add := registry.IndexDelta(oldFormats, record.SupportedFormats)
	for _, f := range retract {
		s.unindex(f, record.ToolID)
	}
	for _, f := range add {
		if s.index[f] == nil {
			s.index[f] = make(map[string]struct{})
		}
		s.index[f][record.ToolID] = struct{}{}
	}

	record.Revision = expectedRevision + 1
	s.records[record.ToolID] = record.Clone()
	return nil
}

func (s *Store) Get(ctx context.Context, toolID string) (*registry.ToolRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, registry.StoreUnavailable(err, "request cancelled")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed()
	}

	rec, ok := s.records[toolID]
	if !ok {
		return nil, registry.NewError(registry.KindNotFound, "tool %s not found", toolID)
	}
	return rec.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, toolID string, expectedRevision int64) error {
	if err := ctx.Err(); err != nil {
		return registry.StoreUnavailable(err, "request cancelled")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed()
	}

	rec, ok := s.records[toolID]
	if !ok {
		return registry.NewError(registry.KindNotFound, "tool %s not found", toolID)
	}
	if rec.Revision != expectedRevision {
		return registry.NewError(registry.KindConflict, "tool %s was modified concurrently, retry the operation", toolID)
	}
	for _, f := range rec.SupportedFormats {
		s.unindex(f, toolID)
	}
	delete(s.records, toolID)
	return nil
}

func (s *Store) ListByFormat(ctx context.Context, format string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, registry.StoreUnavailable(err, "request cancelled")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed()
	}

	ids := make([]string, 0, len(s.index[format]))
	for id := range s.index[format] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) List(ctx context.Context) ([]*registry.ToolRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, registry.StoreUnavailable(err, "request cancelled")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed()
	}

	recs := make([]*registry.ToolRecord, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec.Clone())
	}
	return recs, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// IndexEntry adds a raw index entry without touching any record.
// It exists so that index audits can be exercised against a deliberately corrupted index.
func (s *Store) IndexEntry(format, toolID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index[format] == nil {
		s.index[format] = make(map[string]struct{})
	}
	s.index[format][toolID] = struct{}{}
}

// DropIndexEntry removes a raw index entry without touching any record.
func (s *Store) DropIndexEntry(format, toolID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unindex(format, toolID)
}

func (s *Store) unindex(format, toolID string) {
	ids := s.index[format]
	delete(ids, toolID)
	if len(ids) == 0 {
		delete(s.index, format)
	}
}

func errClosed() error {
	return registry.NewError(registry.KindStoreUnavailable, "store is closed")
}
