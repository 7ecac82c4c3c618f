package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smallnest/ragplayground/rag"
)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresEntityStore implements rag.EntityStore using PostgreSQL
type PostgresEntityStore struct {
	pool      DBPool
	tableName string
}

var _ rag.EntityStore = (*PostgresEntityStore)(nil)

// PostgresOptions configuration for Postgres connection
type PostgresOptions struct {
	ConnString string
	TableName  string // Default "entities"
}

// NewPostgresEntityStore creates a new Postgres entity store
func NewPostgresEntityStore(ctx context.Context, opts PostgresOptions) (*PostgresEntityStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return NewPostgresEntityStoreWithPool(pool, opts.TableName), nil
}

// NewPostgresEntityStoreWithPool creates a store on an existing pool.
func NewPostgresEntityStoreWithPool(pool DBPool, tableName string) *PostgresEntityStore {
	if tableName == "" {
		tableName = "entities"
	}
	return &PostgresEntityStore{
		pool:      pool,
		tableName: tableName,
	}
}

// InitSchema creates the necessary table if it doesn't exist
func (s *PostgresEntityStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			seq BIGSERIAL,
			type TEXT NOT NULL,
			attributes JSONB NOT NULL,
			relationships JSONB NOT NULL
		);
	`, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresEntityStore) Close() error {
	s.pool.Close()
	return nil
}

// Upsert inserts or replaces entities by ID.
func (s *PostgresEntityStore) Upsert(ctx context.Context, entities []rag.Entity) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, type, attributes, relationships)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			attributes = EXCLUDED.attributes,
			relationships = EXCLUDED.relationships
	`, s.tableName)

	for _, e := range entities {
		attrs, err := json.Marshal(e.Attributes)
		if err != nil {
			return fmt.Errorf("failed to marshal attributes of %s: %w", e.ID, err)
		}
		rels, err := json.Marshal(e.Relationships)
		if err != nil {
			return fmt.Errorf("failed to marshal relationships of %s: %w", e.ID, err)
		}
		if _, err := s.pool.Exec(ctx, query, e.ID, e.Type, attrs, rels); err != nil {
			return fmt.Errorf("failed to save entity %s: %w", e.ID, err)
		}
	}
	return nil
}

// Get returns the entities with the given IDs in request order.
func (s *PostgresEntityStore) Get(ctx context.Context, ids []string) ([]rag.Entity, error) {
	if len(ids) == 0 {
		return []rag.Entity{}, nil
	}
	query := fmt.Sprintf(`SELECT id, type, attributes, relationships FROM %s WHERE id = ANY($1)`, s.tableName)
	found, err := s.query(ctx, query, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]rag.Entity, len(found))
	for _, e := range found {
		byID[e.ID] = e
	}
	out := make([]rag.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns every entity in insertion order.
func (s *PostgresEntityStore) All(ctx context.Context) ([]rag.Entity, error) {
	query := fmt.Sprintf(`SELECT id, type, attributes, relationships FROM %s ORDER BY seq`, s.tableName)
	return s.query(ctx, query)
}

func (s *PostgresEntityStore) query(ctx context.Context, query string, args ...any) ([]rag.Entity, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	out := []rag.Entity{}
	for rows.Next() {
		var e rag.Entity
		var attrs, rels []byte
		if err := rows.Scan(&e.ID, &e.Type, &attrs, &rels); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		if err := json.Unmarshal(attrs, &e.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes of %s: %w", e.ID, err)
		}
		if err := json.Unmarshal(rels, &e.Relationships); err != nil {
			return nil, fmt.Errorf("failed to unmarshal relationships of %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}
	return out, nil
}

// Clear deletes every entity.
func (s *PostgresEntityStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", s.tableName)); err != nil {
		return fmt.Errorf("failed to clear entities: %w", err)
	}
	return nil
}
