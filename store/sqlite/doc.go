// Package sqlite provides a SQLite-backed entity store.
//
// The table keeps one row per entity with attributes and relationships as
// JSON text. Rows are returned in rowid order, which an upsert preserves, so
// the store remembers the order in which entities were first inserted.
//
//	store, err := sqlite.NewSqliteEntityStore(sqlite.SqliteOptions{Path: "./graph.db"})
package sqlite
