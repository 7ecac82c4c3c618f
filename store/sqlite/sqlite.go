package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/smallnest/ragplayground/rag"
)

// SqliteEntityStore implements rag.EntityStore using SQLite
type SqliteEntityStore struct {
	db        *sql.DB
	tableName string
}

var _ rag.EntityStore = (*SqliteEntityStore)(nil)

// SqliteOptions configuration for SQLite connection
type SqliteOptions struct {
	Path      string
	TableName string // Default "entities"
}

// NewSqliteEntityStore opens the database and creates the table.
func NewSqliteEntityStore(opts SqliteOptions) (*SqliteEntityStore, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	tableName := opts.TableName
	if tableName == "" {
		tableName = "entities"
	}

	store := &SqliteEntityStore{
		db:        db,
		tableName: tableName,
	}

	if err := store.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// InitSchema creates the necessary table if it doesn't exist
func (s *SqliteEntityStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			attributes TEXT NOT NULL,
			relationships TEXT NOT NULL
		);
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SqliteEntityStore) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces entities in one transaction.
func (s *SqliteEntityStore) Upsert(ctx context.Context, entities []rag.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, type, attributes, relationships)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			attributes = excluded.attributes,
			relationships = excluded.relationships
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
		if _, err := tx.ExecContext(ctx, query, e.ID, e.Type, string(attrs), string(rels)); err != nil {
			return fmt.Errorf("failed to save entity %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entities: %w", err)
	}
	return nil
}

// Get returns the entities with the given IDs in request order.
func (s *SqliteEntityStore) Get(ctx context.Context, ids []string) ([]rag.Entity, error) {
	if len(ids) == 0 {
		return []rag.Entity{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, type, attributes, relationships FROM %s WHERE id IN (%s)`, s.tableName, placeholders)

	found, err := s.query(ctx, query, args...)
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
func (s *SqliteEntityStore) All(ctx context.Context) ([]rag.Entity, error) {
	query := fmt.Sprintf(`SELECT id, type, attributes, relationships FROM %s ORDER BY rowid`, s.tableName)
	return s.query(ctx, query)
}

func (s *SqliteEntityStore) query(ctx context.Context, query string, args ...any) ([]rag.Entity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	out := []rag.Entity{}
	for rows.Next() {
		var e rag.Entity
		var attrs, rels string
		if err := rows.Scan(&e.ID, &e.Type, &attrs, &rels); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		if err := json.Unmarshal([]byte(attrs), &e.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes of %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(rels), &e.Relationships); err != nil {
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
func (s *SqliteEntityStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.tableName)); err != nil {
		return fmt.Errorf("failed to clear entities: %w", err)
	}
	return nil
}
