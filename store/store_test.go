package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/smallnest/ragplayground/store/memory"
	"github.com/smallnest/ragplayground/store/redis"
	"github.com/smallnest/ragplayground/store/sqlite"
	"github.com/smallnest/ragplayground/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntityStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		s, err := NewEntityStore(ctx, "memory://")
		require.NoError(t, err)
		defer s.Close()
		assert.IsType(t, &memory.MemoryEntityStore{}, s)
		storetest.Run(t, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := NewEntityStore(ctx, "sqlite://"+filepath.Join(t.TempDir(), "graph.db"))
		require.NoError(t, err)
		defer s.Close()
		assert.IsType(t, &sqlite.SqliteEntityStore{}, s)
		storetest.Run(t, s)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		s, err := NewEntityStore(ctx, "redis://"+mr.Addr()+"/0?prefix=test:")
		require.NoError(t, err)
		defer s.Close()
		assert.IsType(t, &redis.RedisEntityStore{}, s)
		storetest.Run(t, s)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := NewEntityStore(ctx, "falkordb://localhost")
		assert.ErrorIs(t, err, ErrUnsupportedURL)

		_, err = NewEntityStore(ctx, "not a url")
		assert.ErrorIs(t, err, ErrUnsupportedURL)
	})
}
