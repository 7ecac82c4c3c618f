package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallnest/ragplayground/rag"
	"github.com/smallnest/ragplayground/store/memory"
	"github.com/smallnest/ragplayground/store/mongo"
	"github.com/smallnest/ragplayground/store/postgres"
	"github.com/smallnest/ragplayground/store/redis"
	"github.com/smallnest/ragplayground/store/sqlite"
)

// ErrUnsupportedURL is returned for URLs whose scheme has no backend.
var ErrUnsupportedURL = errors.New("unsupported store url")

// Schemes lists the accepted URL schemes.
var Schemes = []string{"memory", "redis", "rediss", "sqlite", "postgres", "postgresql", "mongodb", "mongodb+srv"}

// NewEntityStore opens the backend named by databaseURL. Backends that need
// a schema create it.
func NewEntityStore(ctx context.Context, databaseURL string) (rag.EntityStore, error) {
	scheme, _, ok := strings.Cut(databaseURL, "://")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, databaseURL)
	}

	switch strings.ToLower(scheme) {
	case "memory":
		return memory.NewMemoryEntityStore(), nil
	case "redis", "rediss":
		return redis.NewRedisEntityStoreFromURL(databaseURL)
	case "sqlite", "sqlite3":
		return sqlite.NewSqliteEntityStore(sqlite.SqliteOptions{
			Path: strings.TrimPrefix(databaseURL, scheme+"://"),
		})
	case "postgres", "postgresql":
		s, err := postgres.NewPostgresEntityStore(ctx, postgres.PostgresOptions{ConnString: databaseURL})
		if err != nil {
			return nil, err
		}
		if err := s.InitSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case "mongodb", "mongodb+srv":
		return mongo.NewMongoEntityStore(ctx, databaseURL)
	}
	return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedURL, scheme)
}
