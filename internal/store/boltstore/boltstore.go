// Package boltstore implements registry.Store in a single bbolt file.
//
// Layout:
//
//	tools/<tool_id>            -> JSON encoded record
//	formats/<format>/<tool_id> -> empty value
//
// Every mutation runs in one bolt read-write transaction, and bolt allows a single writer
// at a time, so the revision check and the write can never interleave with another writer.
package boltstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/toolmeta/toolregistry/internal/registry"
	bolt "go.etcd.io/bbolt"
)

var (
	toolsBucket   = []byte("tools")
	formatsBucket = []byte("formats")
)

var errStoreClosed = errors.New("tool store is closed")

type Store struct {
	mu     sync.RWMutex
	db     *bolt.DB
	closed bool
}

// Open opens (or creates) the bolt file at path.
// It waits at most timeout for the file lock held by another process.
func Open(path string, timeout time.Duration) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("bolt path is required")
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure bolt dir: %w", err)
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bolt.Open(trimmed, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{toolsBucket, formatsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Put(ctx context.Context, record *registry.ToolRecord, expectedRevision int64) error {
	if err := ctx.Err(); err != nil {
		return registry.StoreUnavailable(err, "request cancelled")
	}
	stored := record.Clone()
	stored.Revision = expectedRevision + 1
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode tool %s: %w", record.ToolID, err)
	}

	err = s.update(func(tx *bolt.Tx) error {
		tools := tx.Bucket(toolsBucket)
		id := []byte(record.ToolID)

		existing, err := decode(tools.Get(id))
		if err != nil {
			return err
		}
		var current int64
		var oldFormats []string
		if existing != nil {
			current = existing.Revision
			oldFormats = existing.SupportedFormats
		}
		if err := registry.CheckRevision(record.ToolID, existing != nil, current, expectedRevision); err != nil {
			return err
		}

		if err := tools.Put(id, data); err != nil {
			return fmt.Errorf("write tool %s: %w", record.ToolID, err)
		}
		retract, add := registry.IndexDelta(oldFormats, stored.SupportedFormats)
		return applyIndex(tx, record.ToolID, retract, add)
	})
	if err != nil {
		return classify(err)
	}
	record.Revision = stored.Revision
	return nil
}

func (s *Store) Get(ctx context.Context, toolID string) (*registry.ToolRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, registry.StoreUnavailable(err, "request cancelled")
	}
	var rec *registry.ToolRecord
	err := s.view(func(tx *bolt.Tx) error {
		var err error
		rec, err = decode(tx.Bucket(toolsBucket).Get([]byte(toolID)))
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	if rec == nil {
		return nil, registry.NewError(registry.KindNotFound, "tool %s not found", toolID)
	}
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, toolID string, expectedRevision int64) error {
	if err := ctx.Err(); err != nil {
		return registry.StoreUnavailable(err, "request cancelled")
	}
	err := s.update(func(tx *bolt.Tx) error {
		tools := tx.Bucket(toolsBucket)
		existing, err := decode(tools.Get([]byte(toolID)))
		if err != nil {
			return err
		}
		if existing == nil {
			return registry.NewError(registry.KindNotFound, "tool %s not found", toolID)
		}
		if existing.Revision != expectedRevision {
			return registry.NewError(registry.KindConflict, "tool %s was modified concurrently, retry the operation", toolID)
		}
		if err := tools.Delete([]byte(toolID)); err != nil {
			return fmt.Errorf("delete tool %s: %w", toolID, err)
		}
		return applyIndex(tx, toolID, existing.SupportedFormats, nil)
	})
	return classify(err)
}

func (s *Store) ListByFormat(ctx context.Context, format string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, registry.StoreUnavailable(err, "request cancelled")
	}
	ids := make([]string, 0)
	err := s.view(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(formatsBucket).Bucket([]byte(format))
		if bucket == nil {
			return nil
		}
		// bolt keys iterate in byte order, which is the required ascending order
		return bucket.ForEach(func(key, _ []byte) error {
			ids = append(ids, string(key))
			return nil
		})
	})
	if err != nil {
		return nil, classify(err)
	}
	return ids, nil
}

func (s *Store) List(ctx context.Context) ([]*registry.ToolRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, registry.StoreUnavailable(err, "request cancelled")
	}
	recs := make([]*registry.ToolRecord, 0)
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(toolsBucket).ForEach(func(_, value []byte) error {
			rec, err := decode(value)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, classify(err)
	}
	return recs, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// IndexEntries returns the raw format index, for diagnostics.
func (s *Store) IndexEntries() (map[string][]string, error) {
	entries := make(map[string][]string)
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(formatsBucket).ForEachBucket(func(format []byte) error {
			return tx.Bucket(formatsBucket).Bucket(format).ForEach(func(id, _ []byte) error {
				entries[string(format)] = append(entries[string(format)], string(id))
				return nil
			})
		})
	})
	return entries, err
}

func applyIndex(tx *bolt.Tx, toolID string, retract, add []string) error {
	formats := tx.Bucket(formatsBucket)
	id := []byte(toolID)
	for _, f := range retract {
		bucket := formats.Bucket([]byte(f))
		if bucket == nil {
			continue
		}
		if err := bucket.Delete(id); err != nil {
			return fmt.Errorf("retract %s from format %s: %w", toolID, f, err)
		}
		if isEmpty(bucket) {
			if err := formats.DeleteBucket([]byte(f)); err != nil {
				return fmt.Errorf("drop format %s: %w", f, err)
			}
		}
	}
	for _, f := range add {
		bucket, err := formats.CreateBucketIfNotExists([]byte(f))
		if err != nil {
			return fmt.Errorf("create format %s: %w", f, err)
		}
		if err := bucket.Put(id, []byte{}); err != nil {
			return fmt.Errorf("index %s under format %s: %w", toolID, f, err)
		}
	}
	return nil
}

func isEmpty(bucket *bolt.Bucket) bool {
	k, _ := bucket.Cursor().First()
	return k == nil
}

// decode returns nil for a missing value. The returned record does not alias bolt memory.
func decode(data []byte) (*registry.ToolRecord, error) {
	if data == nil {
		return nil, nil
	}
	var rec registry.ToolRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode tool: %w", err)
	}
	return &rec, nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var rerr *registry.Error
	if errors.As(err, &rerr) {
		return err
	}
	return registry.StoreUnavailable(err, "bolt store failure")
}

func (s *Store) view(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errStoreClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errStoreClosed
	}
	return s.db.Update(fn)
}
