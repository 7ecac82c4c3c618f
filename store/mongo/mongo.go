// Package mongo provides the MongoDB entity store, the native home of the
// graph-store document layout.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/smallnest/ragplayground/rag"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// DefaultDatabase is used when the URL has no path.
	DefaultDatabase = "graphrag"
	// DefaultCollection is used when the URL has no collection parameter.
	DefaultCollection = "knowledge_graph"
)

// MongoEntityStore implements rag.EntityStore on one collection.
type MongoEntityStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ rag.EntityStore = (*MongoEntityStore)(nil)

// Location is a parsed store URL.
type Location struct {
	URI        string
	Database   string
	Collection string
}

// ParseURL splits a mongodb:// URL into the connection URI, the database
// (the URL path) and the collection (the collection query parameter, which
// is removed from the URI).
func ParseURL(rawURL string) (Location, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Location{}, fmt.Errorf("invalid mongodb url: %w", err)
	}
	if u.Scheme != "mongodb" && u.Scheme != "mongodb+srv" {
		return Location{}, fmt.Errorf("invalid mongodb url: scheme %q", u.Scheme)
	}

	loc := Location{
		Database:   strings.Trim(u.Path, "/"),
		Collection: u.Query().Get("collection"),
	}
	if loc.Database == "" {
		loc.Database = DefaultDatabase
	}
	if loc.Collection == "" {
		loc.Collection = DefaultCollection
	}

	q := u.Query()
	q.Del("collection")
	u.RawQuery = q.Encode()
	loc.URI = u.String()
	return loc, nil
}

// NewMongoEntityStore connects to the collection named by rawURL.
func NewMongoEntityStore(ctx context.Context, rawURL string) (*MongoEntityStore, error) {
	loc, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(loc.URI))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to reach mongodb: %w", err)
	}
	return &MongoEntityStore{
		client: client,
		coll:   client.Database(loc.Database).Collection(loc.Collection),
	}, nil
}

// NewMongoEntityStoreWithCollection uses a collection owned by the caller.
// Close does not disconnect its client.
func NewMongoEntityStoreWithCollection(coll *mongo.Collection) *MongoEntityStore {
	return &MongoEntityStore{coll: coll}
}

// Upsert replaces documents by _id in one ordered bulk write.
func (s *MongoEntityStore) Upsert(ctx context.Context, entities []rag.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(entities))
	for _, e := range entities {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": e.ID}).
			SetReplacement(e).
			SetUpsert(true))
	}
	if _, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true)); err != nil {
		return fmt.Errorf("failed to save entities to mongodb: %w", err)
	}
	return nil
}

// Get returns the entities with the given IDs in request order.
func (s *MongoEntityStore) Get(ctx context.Context, ids []string) ([]rag.Entity, error) {
	if len(ids) == 0 {
		return []rag.Entity{}, nil
	}
	found, err := s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
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

// All returns every document in natural order.
func (s *MongoEntityStore) All(ctx context.Context) ([]rag.Entity, error) {
	return s.find(ctx, bson.D{})
}

func (s *MongoEntityStore) find(ctx context.Context, filter any) ([]rag.Entity, error) {
	cur, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query mongodb: %w", err)
	}
	out := []rag.Entity{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode entities: %w", err)
	}
	return out, nil
}

// Clear deletes every document of the collection.
func (s *MongoEntityStore) Clear(ctx context.Context) error {
	if _, err := s.coll.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("failed to clear mongodb collection: %w", err)
	}
	return nil
}

// Close disconnects the client opened by NewMongoEntityStore.
func (s *MongoEntityStore) Close() error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(context.Background()); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return err
	}
	return nil
}
