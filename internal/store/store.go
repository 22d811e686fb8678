// Package store opens the registry.Store selected by configuration.
package store

import (
	"context"
	"fmt"

	"github.com/toolmeta/toolregistry/internal/config"
	"github.com/toolmeta/toolregistry/internal/registry"
	"github.com/toolmeta/toolregistry/internal/store/boltstore"
	"github.com/toolmeta/toolregistry/internal/store/graphstore"
	"github.com/toolmeta/toolregistry/internal/store/memstore"
	"github.com/toolmeta/toolregistry/internal/store/redisstore"
	"github.com/toolmeta/toolregistry/internal/store/sqlstore"
	"gorm.io/gorm"
)

// Open returns the store for the configured backend.
// db is the already migrated SQL connection; it is only used by the sql backend.
func Open(ctx context.Context, c config.StoreConfig, db *gorm.DB) (registry.Store, error) {
	switch c.Backend {
	case config.BackendMemory:
		return memstore.New(), nil
	case config.BackendSQL, "":
		if db == nil {
			return nil, fmt.Errorf("sql backend requires a database connection")
		}
		return sqlstore.New(db), nil
	case config.BackendBolt:
		s, err := boltstore.Open(c.BoltPath, c.BoltTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		return s, nil
	case config.BackendRedis:
		s, err := redisstore.New(ctx, redisstore.Options{
			URL:       c.Redis.URL,
			KeyPrefix: c.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open redis store: %w", err)
		}
		return s, nil
	case config.BackendNeo4j:
		s, err := graphstore.New(ctx, graphstore.Options{
			URI:      c.Neo4j.URI,
			Username: c.Neo4j.Username,
			Password: c.Neo4j.Password,
			Database: c.Neo4j.Database,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open neo4j store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", c.Backend)
	}
}
