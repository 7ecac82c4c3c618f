package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/redis/go-redis/v9"
	"github.com/smallnest/ragplayground/rag"
)

// RedisEntityStore implements rag.EntityStore using Redis
type RedisEntityStore struct {
	client *redis.Client
	prefix string
}

var _ rag.EntityStore = (*RedisEntityStore)(nil)

// RedisOptions configuration for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // Key prefix, default "playground:"
}

// NewRedisEntityStore creates a new Redis entity store
func NewRedisEntityStore(opts RedisOptions) *RedisEntityStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisEntityStoreWithClient(client, opts.Prefix)
}

// NewRedisEntityStoreWithClient wraps an existing client.
func NewRedisEntityStoreWithClient(client *redis.Client, prefix string) *RedisEntityStore {
	if prefix == "" {
		prefix = "playground:"
	}
	return &RedisEntityStore{
		client: client,
		prefix: prefix,
	}
}

// NewRedisEntityStoreFromURL parses a redis:// URL. The prefix query
// parameter is consumed here; every other parameter goes to go-redis.
func NewRedisEntityStoreFromURL(rawURL string) (*RedisEntityStore, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	q := u.Query()
	prefix := q.Get("prefix")
	q.Del("prefix")
	u.RawQuery = q.Encode()

	opts, err := redis.ParseURL(u.String())
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisEntityStoreWithClient(redis.NewClient(opts), prefix), nil
}

func (s *RedisEntityStore) entitiesKey() string {
	return s.prefix + "entities"
}

func (s *RedisEntityStore) orderKey() string {
	return s.prefix + "order"
}

// Upsert stores entities, appending IDs not seen before to the order list.
func (s *RedisEntityStore) Upsert(ctx context.Context, entities []rag.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	exists := make([]*redis.BoolCmd, len(entities))
	for i, e := range entities {
		exists[i] = pipe.HExists(ctx, s.entitiesKey(), e.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to check entities in redis: %w", err)
	}

	seen := make(map[string]bool, len(entities))
	pipe = s.client.TxPipeline()
	for i, e := range entities {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal entity %s: %w", e.ID, err)
		}
		pipe.HSet(ctx, s.entitiesKey(), e.ID, data)
		if !exists[i].Val() && !seen[e.ID] {
			pipe.RPush(ctx, s.orderKey(), e.ID)
		}
		seen[e.ID] = true
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save entities to redis: %w", err)
	}
	return nil
}

// Get returns the entities with the given IDs in request order.
func (s *RedisEntityStore) Get(ctx context.Context, ids []string) ([]rag.Entity, error) {
	if len(ids) == 0 {
		return []rag.Entity{}, nil
	}
	values, err := s.client.HMGet(ctx, s.entitiesKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load entities from redis: %w", err)
	}
	return decode(values)
}

// All returns every entity in insertion order.
func (s *RedisEntityStore) All(ctx context.Context) ([]rag.Entity, error) {
	ids, err := s.client.LRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list entities in redis: %w", err)
	}
	return s.Get(ctx, ids)
}

func decode(values []any) ([]rag.Entity, error) {
	out := make([]rag.Entity, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var e rag.Entity
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Clear deletes every entity.
func (s *RedisEntityStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.entitiesKey(), s.orderKey()).Err(); err != nil {
		return fmt.Errorf("failed to clear entities in redis: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisEntityStore) Close() error {
	return s.client.Close()
}
