// Package redisstore implements registry.Store on Redis.
//
// Keys, all under a configurable prefix:
//
//	<prefix>tool:<tool_id>  string, JSON encoded record
//	<prefix>format:<format> set of tool ids
//	<prefix>tools           set of all tool ids
//
// Writes use optimistic locking: the record key is WATCHed, its revision checked, and the
// record and index changes are applied in one MULTI/EXEC block.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/toolmeta/toolregistry/internal/registry"
)

const DefaultKeyPrefix = "toolregistry:"

// Options configures the Redis connection.
type Options struct {
	// URL is the Redis connection string (eg- "redis://localhost:6379/0").
	URL string

	// KeyPrefix namespaces every key written by the store. Defaults to DefaultKeyPrefix.
	KeyPrefix string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Store struct {
	client *redis.Client
	prefix string
}

// New connects to Redis and verifies the connection with a PING.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.DialTimeout = opts.DialTimeout
	if opts.ReadTimeout > 0 {
		redisOpts.ReadTimeout = opts.ReadTimeout
	}
	if opts.WriteTimeout > 0 {
		redisOpts.WriteTimeout = opts.WriteTimeout
	}

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client, prefix: opts.KeyPrefix}, nil
}

func (s *Store) toolKey(id string) string {
	return s.prefix + "tool:" + id
}

func (s *Store) formatKey(format string) string {
	return s.prefix + "format:" + format
}

func (s *Store) allKey() string {
	return s.prefix + "tools"
}

func (s *Store) Put(ctx context.Context, record *registry.ToolRecord, expectedRevision int64) error {
	stored := record.Clone()
	stored.Revision = expectedRevision + 1
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode tool %s: %w", record.ToolID, err)
	}
	key := s.toolKey(record.ToolID)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		existing, err := s.read(ctx, tx, key)
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

		retract, add := registry.IndexDelta(oldFormats, stored.SupportedFormats)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, s.allKey(), record.ToolID)
			for _, f := range retract {
				pipe.SRem(ctx, s.formatKey(f), record.ToolID)
			}
			for _, f := range add {
				pipe.SAdd(ctx, s.formatKey(f), record.ToolID)
			}
			return nil
		})
		return err
	}, key)
	if err != nil {
		return s.classify(err, record.ToolID)
	}
	record.Revision = stored.Revision
	return nil
}

func (s *Store) Get(ctx context.Context, toolID string) (*registry.ToolRecord, error) {
	rec, err := s.read(ctx, s.client, s.toolKey(toolID))
	if err != nil {
		return nil, s.classify(err, toolID)
	}
	if rec == nil {
		return nil, registry.NewError(registry.KindNotFound, "tool %s not found", toolID)
	}
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, toolID string, expectedRevision int64) error {
	key := s.toolKey(toolID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		existing, err := s.read(ctx, tx, key)
		if err != nil {
			return err
		}
		if existing == nil {
			return registry.NewError(registry.KindNotFound, "tool %s not found", toolID)
		}
		if existing.Revision != expectedRevision {
			return conflict(toolID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, s.allKey(), toolID)
			for _, f := range existing.SupportedFormats {
				pipe.SRem(ctx, s.formatKey(f), toolID)
			}
			return nil
		})
		return err
	}, key)
	return s.classify(err, toolID)
}

func (s *Store) ListByFormat(ctx context.Context, format string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.formatKey(format)).Result()
	if err != nil {
		return nil, registry.StoreUnavailable(err, "failed to read format index")
	}
	if ids == nil {
		ids = []string{}
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) List(ctx context.Context) ([]*registry.ToolRecord, error) {
	ids, err := s.client.SMembers(ctx, s.allKey()).Result()
	if err != nil {
		return nil, registry.StoreUnavailable(err, "failed to list tools")
	}
	recs := make([]*registry.ToolRecord, 0, len(ids))
	if len(ids) == 0 {
		return recs, nil
	}
	slices.Sort(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.toolKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, registry.StoreUnavailable(err, "failed to list tools")
	}
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			// deleted between SMEMBERS and MGET
			continue
		}
		var rec registry.ToolRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			return nil, registry.StoreUnavailable(err, "failed to decode tool")
		}
		recs = append(recs, &rec)
	}
	return recs, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Store) read(ctx context.Context, c getter, key string) (*registry.ToolRecord, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var rec registry.ToolRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode tool: %w", err)
	}
	return &rec, nil
}

func (s *Store) classify(err error, toolID string) error {
	if err == nil {
		return nil
	}
	var rerr *registry.Error
	if errors.As(err, &rerr) {
		return err
	}
	if errors.Is(err, redis.TxFailedErr) {
		return conflict(toolID)
	}
	return registry.StoreUnavailable(err, "redis request for tool %s failed", toolID)
}

func conflict(toolID string) error {
	return registry.NewError(registry.KindConflict, "tool %s was modified concurrently, retry the operation", toolID)
}
