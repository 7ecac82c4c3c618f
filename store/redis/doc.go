// Package redis provides a Redis-backed entity store.
//
// Entities are stored as JSON in one hash keyed by entity ID, and a list
// beside it records the order of first insertion:
//
//	<prefix>entities  HASH  id -> entity JSON
//	<prefix>order     LIST  ids
//
// The prefix defaults to "playground:" and can be set with the prefix query
// parameter of the store URL:
//
//	store, err := redis.NewRedisEntityStoreFromURL("redis://localhost:6379/0?prefix=demo:")
package redis
