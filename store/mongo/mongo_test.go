package mongo

import (
	"context"
	"testing"

	"github.com/smallnest/ragplayground/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestParseURL(t *testing.T) {
	loc, err := ParseURL("mongodb://user:pw@localhost:27017/rag?collection=kg&retryWrites=true")
	require.NoError(t, err)
	assert.Equal(t, "rag", loc.Database)
	assert.Equal(t, "kg", loc.Collection)
	assert.Equal(t, "mongodb://user:pw@localhost:27017/rag?retryWrites=true", loc.URI)

	loc, err = ParseURL("mongodb+srv://cluster.example.net")
	require.NoError(t, err)
	assert.Equal(t, DefaultDatabase, loc.Database)
	assert.Equal(t, DefaultCollection, loc.Collection)

	_, err = ParseURL("http://localhost")
	assert.Error(t, err)
}

func entityDoc(id, typ string, targets ...string) bson.D {
	types := make([]string, len(targets))
	for i := range types {
		types[i] = "related_to"
	}
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "type", Value: typ},
		{Key: "attributes", Value: bson.D{{Key: "name", Value: bson.A{id}}}},
		{Key: "relationships", Value: bson.D{
			{Key: "target_ids", Value: targets},
			{Key: "types", Value: types},
			{Key: "attributes", Value: bson.A{}},
		}},
	}
}

func TestMongoEntityStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("all", func(mt *mtest.T) {
		s := NewMongoEntityStoreWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "graphrag.knowledge_graph", mtest.FirstBatch,
			entityDoc("Alice", "Person", "Acme"),
			entityDoc("Acme", "Organization"),
		))

		all, err := s.All(ctx)
		require.NoError(mt, err)
		require.Len(mt, all, 2)
		assert.Equal(mt, []string{"Alice"}, all[0].Attributes["name"])
		assert.Equal(mt, []rag.Edge{{Source: "Alice", Target: "Acme", Type: "related_to"}}, all[0].Edges())
		assert.NoError(mt, s.Close())
	})

	mt.Run("get keeps request order", func(mt *mtest.T) {
		s := NewMongoEntityStoreWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "graphrag.knowledge_graph", mtest.FirstBatch,
			entityDoc("Alice", "Person"),
			entityDoc("Bob", "Person"),
		))

		got, err := s.Get(ctx, []string{"Bob", "Zed", "Alice"})
		require.NoError(mt, err)
		require.Len(mt, got, 2)
		assert.Equal(mt, "Bob", got[0].ID)
		assert.Equal(mt, "Alice", got[1].ID)
	})

	mt.Run("upsert", func(mt *mtest.T) {
		s := NewMongoEntityStoreWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 2},
			bson.E{Key: "nModified", Value: 0},
		))

		err := s.Upsert(ctx, []rag.Entity{{ID: "Alice"}, {ID: "Bob"}})
		require.NoError(mt, err)
		require.NoError(mt, s.Upsert(ctx, nil))
	})

	mt.Run("clear error", func(mt *mtest.T) {
		s := NewMongoEntityStoreWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Name:    "Unauthorized",
			Message: "not authorized",
		}))

		err := s.Clear(ctx)
		assert.ErrorContains(mt, err, "failed to clear mongodb collection")
	})
}
