package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/smallnest/ragplayground/rag"
	"github.com/smallnest/ragplayground/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqliteEntityStore_Memory(t *testing.T) {
	store, err := NewSqliteEntityStore(SqliteOptions{Path: ":memory:"})
	require.NoError(t, err)
	defer store.Close()

	storetest.Run(t, store)
}

func TestSqliteEntityStore_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "graph.db")

	store, err := NewSqliteEntityStore(SqliteOptions{Path: path, TableName: "kg"})
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, storetest.Entities()))
	require.NoError(t, store.Close())

	reopened, err := NewSqliteEntityStore(SqliteOptions{Path: path, TableName: "kg"})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, []string{"Acme"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rag.Attributes{"industry": {"software", "cloud"}}, got[0].Attributes)
}
