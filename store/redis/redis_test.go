package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/smallnest/ragplayground/rag"
	"github.com/smallnest/ragplayground/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisEntityStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store := NewRedisEntityStore(RedisOptions{Addr: mr.Addr()})
	defer store.Close()

	storetest.Run(t, store)
}

func TestRedisEntityStore_Keys(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	store, err := NewRedisEntityStoreFromURL("redis://" + mr.Addr() + "/0?prefix=demo:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Upsert(ctx, []rag.Entity{{ID: "Alice", Type: "Person"}, {ID: "Alice", Type: "Human"}}))

	assert.True(t, mr.Exists("demo:entities"))
	order, err := mr.List("demo:order")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, order)
	assert.Contains(t, mr.HGet("demo:entities", "Alice"), `"type":"Human"`)
}

func TestNewRedisEntityStoreFromURL_Invalid(t *testing.T) {
	_, err := NewRedisEntityStoreFromURL("redis://localhost:6379/notadb")
	assert.Error(t, err)
}
