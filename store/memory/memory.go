// Package memory provides an in-process entity store.
package memory

import (
	"context"
	"sync"

	"github.com/smallnest/ragplayground/rag"
)

// MemoryEntityStore keeps entities in a map guarded by a mutex. Entities are
// copied on the way in and out.
type MemoryEntityStore struct {
	mu       sync.RWMutex
	entities map[string]rag.Entity
	order    []string
}

var _ rag.EntityStore = (*MemoryEntityStore)(nil)

// NewMemoryEntityStore creates an empty store.
func NewMemoryEntityStore() *MemoryEntityStore {
	return &MemoryEntityStore{entities: make(map[string]rag.Entity)}
}

// Upsert inserts or replaces entities by ID.
func (m *MemoryEntityStore) Upsert(ctx context.Context, entities []rag.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entities {
		if _, ok := m.entities[e.ID]; !ok {
			m.order = append(m.order, e.ID)
		}
		m.entities[e.ID] = e.Clone()
	}
	return nil
}

// Get returns the entities with the given IDs in request order.
func (m *MemoryEntityStore) Get(ctx context.Context, ids []string) ([]rag.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]rag.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := m.entities[id]; ok {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

// All returns every entity in insertion order.
func (m *MemoryEntityStore) All(ctx context.Context) ([]rag.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]rag.Entity, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.entities[id].Clone())
	}
	return out, nil
}

// Clear deletes every entity.
func (m *MemoryEntityStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities = make(map[string]rag.Entity)
	m.order = nil
	return nil
}

// Close is a no-op.
func (m *MemoryEntityStore) Close() error {
	return nil
}
