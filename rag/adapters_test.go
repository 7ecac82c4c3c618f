package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

type mockLCLoader struct {
	err error
}

func (m *mockLCLoader) Load(ctx context.Context) ([]schema.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []schema.Document{
		{PageContent: "lc content", Metadata: map[string]any{"source": "lc"}},
		{PageContent: "second page", Metadata: map[string]any{"row": 1}},
	}, nil
}

func (m *mockLCLoader) LoadAndSplit(ctx context.Context, s textsplitter.TextSplitter) ([]schema.Document, error) {
	docs, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}
	return textsplitter.SplitDocuments(s, docs)
}

func TestLangChainAdapters(t *testing.T) {
	ctx := context.Background()

	t.Run("Load", func(t *testing.T) {
		adapter := NewLangChainDocumentLoader(&mockLCLoader{})
		docs, err := adapter.Load(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "lc content", docs[0].Content)
		assert.Equal(t, "lc", docs[0].ID)
		assert.Equal(t, "doc_1", docs[1].ID)
	})

	t.Run("LoadWithMetadata", func(t *testing.T) {
		adapter := NewLangChainDocumentLoader(&mockLCLoader{})
		docs, err := adapter.LoadWithMetadata(ctx, map[string]any{"a": "b"})
		require.NoError(t, err)
		assert.Equal(t, "b", docs[0].Metadata["a"])
		assert.Equal(t, "lc", docs[0].Metadata["source"])
	})

	t.Run("LoadAndSplit", func(t *testing.T) {
		adapter := NewLangChainDocumentLoader(&mockLCLoader{})
		splitter := textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(6),
			textsplitter.WithChunkOverlap(0),
		)
		docs, err := adapter.LoadAndSplit(ctx, splitter)
		require.NoError(t, err)
		assert.Greater(t, len(docs), 2)
	})

	t.Run("Error", func(t *testing.T) {
		boom := errors.New("boom")
		adapter := NewLangChainDocumentLoader(&mockLCLoader{err: boom})
		_, err := adapter.Load(ctx)
		assert.ErrorIs(t, err, boom)
	})
}

func TestSchemaRoundTrip(t *testing.T) {
	docs := []Document{{ID: "x", Content: "hello", Metadata: map[string]any{"page": 2}}}
	back := FromSchemaDocuments(ToSchemaDocuments(docs))
	require.Len(t, back, 1)
	assert.Equal(t, "hello", back[0].Content)
	assert.Equal(t, 2, back[0].Metadata["page"])
}

func TestEntityEdgesRagged(t *testing.T) {
	e := Entity{
		ID: "Alice",
		Relationships: Relationships{
			TargetIDs:  []string{"Bob", "Acme", "Carol"},
			Types:      []string{"knows"},
			Attributes: []Attributes{{"since": {"2020"}}},
		},
	}
	edges := e.Edges()
	require.Len(t, edges, 3)
	assert.Equal(t, Edge{Source: "Alice", Target: "Bob", Type: "knows", Attributes: Attributes{"since": {"2020"}}}, edges[0])
	assert.Equal(t, "", edges[1].Type)
	assert.Nil(t, edges[2].Attributes)
}

func TestEntityMerge(t *testing.T) {
	a := Entity{ID: "Alice", Attributes: Attributes{"role": {"engineer"}}}
	a.AddRelationship("Bob", "knows", nil)

	b := Entity{ID: "Alice", Type: "Person", Attributes: Attributes{"role": {"engineer", "lead"}, "city": {"Paris"}}}
	b.AddRelationship("Bob", "knows", Attributes{"since": {"2020"}})
	b.AddRelationship("Acme", "works_at", nil)

	a.Merge(b)
	assert.Equal(t, "Person", a.Type)
	assert.Equal(t, []string{"engineer", "lead"}, a.Attributes["role"])
	assert.Equal(t, []string{"Paris"}, a.Attributes["city"])
	assert.Equal(t, []string{"Bob", "Acme"}, a.Relationships.TargetIDs)
	assert.Equal(t, []string{"knows", "works_at"}, a.Relationships.Types)
	assert.Equal(t, []string{"2020"}, a.Relationships.Attributes[0]["since"])
}

func TestPageSpans(t *testing.T) {
	chunks := []Chunk{
		{PageIndex: 0, ChunkIndex: 0, Text: "ab", StartOffset: 0, EndOffset: 2},
		{PageIndex: 1, ChunkIndex: 0, Text: "cd", StartOffset: 0, EndOffset: 2},
		{PageIndex: 1, ChunkIndex: 1, Text: "zz", StartOffset: -1, EndOffset: -1},
	}
	spans := PageSpans(chunks, 1)
	require.Len(t, spans, 1)
	assert.Equal(t, 2, spans[0].End)
	assert.False(t, chunks[2].Located())
}

func TestEntityClone(t *testing.T) {
	e := Entity{ID: "Alice", Type: "Person", Attributes: Attributes{"role": {"engineer"}}}
	e.AddRelationship("Acme", "works_at", Attributes{"since": {"2020"}})

	c := e.Clone()
	assert.Equal(t, e, c)

	c.Attributes["role"][0] = "manager"
	c.Relationships.Attributes[0]["since"] = append(c.Relationships.Attributes[0]["since"], "2021")
	c.AddRelationship("Bob", "knows", nil)

	assert.Equal(t, []string{"engineer"}, e.Attributes["role"])
	assert.Equal(t, []string{"2020"}, e.Relationships.Attributes[0]["since"])
	assert.Len(t, e.Edges(), 1)
}
