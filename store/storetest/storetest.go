// Package storetest holds the behaviour every rag.EntityStore must share.
package storetest

import (
	"context"
	"testing"

	"github.com/smallnest/ragplayground/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Entities returns a small graph with a ragged relationship array.
func Entities() []rag.Entity {
	return []rag.Entity{
		{
			ID:         "Alice",
			Type:       "Person",
			Attributes: rag.Attributes{"role": {"engineer"}},
			Relationships: rag.Relationships{
				TargetIDs:  []string{"Acme", "Bob"},
				Types:      []string{"works_at", "knows"},
				Attributes: []rag.Attributes{{"since": {"2019"}}, {}},
			},
		},
		{
			ID:         "Acme",
			Type:       "Organization",
			Attributes: rag.Attributes{"industry": {"software", "cloud"}},
		},
		{
			ID:   "Bob",
			Type: "Person",
			Relationships: rag.Relationships{
				TargetIDs: []string{"Acme"},
				Types:     []string{"works_at"},
			},
		},
	}
}

func ids(entities []rag.Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.ID
	}
	return out
}

// Run exercises s. The store is cleared first.
func Run(t *testing.T, s rag.EntityStore) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Clear(ctx))
	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, s.Upsert(ctx, Entities()))

	all, err = s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Acme", "Bob"}, ids(all))
	assert.Equal(t, []string{"software", "cloud"}, all[1].Attributes["industry"])
	assert.Equal(t, []string{"Acme", "Bob"}, all[0].Relationships.TargetIDs)
	assert.Equal(t, []string{"2019"}, all[0].Relationships.Attributes[0]["since"])
	assert.Len(t, all[2].Edges(), 1)

	got, err := s.Get(ctx, []string{"Bob", "Nobody", "Alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Alice"}, ids(got))

	replaced := Entities()[0]
	replaced.Type = "Engineer"
	require.NoError(t, s.Upsert(ctx, []rag.Entity{replaced, {ID: "Carol", Type: "Person"}}))

	all, err = s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Acme", "Bob", "Carol"}, ids(all))
	assert.Equal(t, "Engineer", all[0].Type)

	require.NoError(t, s.Clear(ctx))
	all, err = s.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, s.Upsert(ctx, nil))
}
