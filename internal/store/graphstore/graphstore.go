// Package graphstore implements registry.Store on Neo4j.
//
// The catalog is kept as a graph:
//
//	(:Principal {id})-[:OWNS]->(:Tool {tool_id, ...})-[:SUPPORTS]->(:Format {name})
//
// The Tool node also keeps its authoritative format list as a property; the SUPPORTS
// relationships are the format index and are rewritten in the transaction that writes the node.
package graphstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/toolmeta/toolregistry/internal/registry"
)

const constraintViolation = "Neo.ClientError.Schema.ConstraintValidationFailed"

// Options configures the Neo4j connection.
type Options struct {
	URI      string
	Username string
	Password string

	// Database selects the Neo4j database. Empty means the server default.
	Database string

	MaxConnectionPoolSize int
	ConnectionTimeout     time.Duration
}

type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

// New connects to Neo4j, verifies connectivity and ensures the uniqueness constraints exist.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.URI == "" {
		return nil, fmt.Errorf("neo4j uri is required")
	}
	if opts.ConnectionTimeout == 0 {
		opts.ConnectionTimeout = 10 * time.Second
	}

	auth := neo4j.BasicAuth(opts.Username, opts.Password, "")
	driver, err := neo4j.NewDriverWithContext(opts.URI, auth, func(c *neo4j.Config) {
		if opts.MaxConnectionPoolSize > 0 {
			c.MaxConnectionPoolSize = opts.MaxConnectionPoolSize
		}
		c.ConnectionAcquisitionTimeout = opts.ConnectionTimeout
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}

	s := &Store{driver: driver, database: opts.Database}
	if err := s.ensureSchema(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		"CREATE CONSTRAINT tool_id_unique IF NOT EXISTS FOR (t:Tool) REQUIRE t.tool_id IS UNIQUE",
		"CREATE CONSTRAINT format_name_unique IF NOT EXISTS FOR (f:Format) REQUIRE f.name IS UNIQUE",
		"CREATE CONSTRAINT principal_id_unique IF NOT EXISTS FOR (p:Principal) REQUIRE p.id IS UNIQUE",
	}
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	for _, stmt := range statements {
		res, err := session.Run(ctx, stmt, nil)
		if err == nil {
			_, err = res.Consume(ctx)
		}
		if err != nil {
			return fmt.Errorf("failed to create neo4j constraint: %w", err)
		}
	}
	return nil
}

func (s *Store) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   mode,
	})
}

// lockTool takes the write lock on the tool node before reading its revision, so that two
// writers can't both observe the same revision. It returns found=false if the node is absent.
func lockTool(ctx context.Context, tx neo4j.ManagedTransaction, toolID string) (rec *registry.ToolRecord, found bool, err error) {
	res, err := tx.Run(ctx,
		"MATCH (t:Tool {tool_id: $id}) SET t._lock = true RETURN properties(t) AS props",
		map[string]any{"id": toolID},
	)
	if err != nil {
		return nil, false, err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	props, _ := records[0].Get("props")
	rec, err = recordFromProps(props)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, record *registry.ToolRecord, expectedRevision int64) error {
	stored := record.Clone()
	stored.Revision = expectedRevision + 1
	props := toolProps(stored)

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		existing, found, err := lockTool(ctx, tx, record.ToolID)
		if err != nil {
			return nil, err
		}
		var current int64
		var oldFormats []string
		if found {
			current = existing.Revision
			oldFormats = existing.SupportedFormats
		}
		if err := registry.CheckRevision(record.ToolID, found, current, expectedRevision); err != nil {
			return nil, err
		}

		if found {
			_, err = tx.Run(ctx,
				"MATCH (t:Tool {tool_id: $id}) SET t = $props",
				map[string]any{"id": record.ToolID, "props": props},
			)
		} else {
			_, err = tx.Run(ctx,
				"CREATE (t:Tool) SET t = $props "+
					"MERGE (p:Principal {id: $owner}) "+
					"MERGE (p)-[:OWNS]->(t)",
				map[string]any{"props": props, "owner": record.OwnerID},
			)
		}
		if err != nil {
			return nil, err
		}

		retract, add := registry.IndexDelta(oldFormats, stored.SupportedFormats)
		if len(retract) > 0 {
			if _, err := tx.Run(ctx,
				"MATCH (:Tool {tool_id: $id})-[r:SUPPORTS]->(f:Format) WHERE f.name IN $formats DELETE r "+
					"WITH DISTINCT f WHERE NOT (f)<-[:SUPPORTS]-() DELETE f",
				map[string]any{"id": record.ToolID, "formats": retract},
			); err != nil {
				return nil, err
			}
		}
		if len(add) > 0 {
			if _, err := tx.Run(ctx,
				"MATCH (t:Tool {tool_id: $id}) "+
					"UNWIND $formats AS name "+
					"MERGE (f:Format {name: name}) "+
					"MERGE (t)-[:SUPPORTS]->(f)",
				map[string]any{"id": record.ToolID, "formats": add},
			); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return classify(err, record.ToolID)
	}
	record.Revision = stored.Revision
	return nil
}

func (s *Store) Get(ctx context.Context, toolID string) (*registry.ToolRecord, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			"MATCH (t:Tool {tool_id: $id}) RETURN properties(t) AS props",
			map[string]any{"id": toolID},
		)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, nil
		}
		props, _ := records[0].Get("props")
		return recordFromProps(props)
	})
	if err != nil {
		return nil, classify(err, toolID)
	}
	rec, _ := result.(*registry.ToolRecord)
	if rec == nil {
		return nil, registry.NewError(registry.KindNotFound, "tool %s not found", toolID)
	}
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, toolID string, expectedRevision int64) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		existing, found, err := lockTool(ctx, tx, toolID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, registry.NewError(registry.KindNotFound, "tool %s not found", toolID)
		}
		if existing.Revision != expectedRevision {
			return nil, conflict(toolID)
		}
		_, err = tx.Run(ctx,
			"MATCH (t:Tool {tool_id: $id}) "+
				"OPTIONAL MATCH (t)-[:SUPPORTS]->(f:Format) "+
				"DETACH DELETE t "+
				"WITH DISTINCT f WHERE f IS NOT NULL AND NOT (f)<-[:SUPPORTS]-() DELETE f",
			map[string]any{"id": toolID},
		)
		return nil, err
	})
	return classify(err, toolID)
}

func (s *Store) ListByFormat(ctx context.Context, format string) ([]string, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			"MATCH (:Format {name: $format})<-[:SUPPORTS]-(t:Tool) RETURN t.tool_id AS id ORDER BY id",
			map[string]any{"format": format},
		)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(records))
		for _, r := range records {
			id, _ := r.Get("id")
			if str, ok := id.(string); ok {
				ids = append(ids, str)
			}
		}
		return ids, nil
	})
	if err != nil {
		return nil, registry.StoreUnavailable(err, "failed to read format index")
	}
	return result.([]string), nil
}

func (s *Store) List(ctx context.Context) ([]*registry.ToolRecord, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, "MATCH (t:Tool) RETURN properties(t) AS props ORDER BY t.tool_id", nil)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		recs := make([]*registry.ToolRecord, 0, len(records))
		for _, r := range records {
			props, _ := r.Get("props")
			rec, err := recordFromProps(props)
			if err != nil {
				return nil, err
			}
			recs = append(recs, rec)
		}
		return recs, nil
	})
	if err != nil {
		return nil, registry.StoreUnavailable(err, "failed to list tools")
	}
	return result.([]*registry.ToolRecord), nil
}

func (s *Store) Close() error {
	return s.driver.Close(context.Background())
}

// Purge removes every node the store manages. It is meant for tests against a shared server.
func (s *Store) Purge(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, "MATCH (n) WHERE n:Tool OR n:Format OR n:Principal DETACH DELETE n", nil)
	})
	return err
}

func conflict(toolID string) error {
	return registry.NewError(registry.KindConflict, "tool %s was modified concurrently, retry the operation", toolID)
}

func classify(err error, toolID string) error {
	if err == nil {
		return nil
	}
	var rerr *registry.Error
	if errors.As(err, &rerr) {
		return err
	}
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) && neoErr.Code == constraintViolation {
		return registry.NewError(registry.KindConflict, "tool %s already exists", toolID)
	}
	return registry.StoreUnavailable(err, "neo4j request for tool %s failed", toolID)
}
