package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/smallnest/ragplayground/rag"
	"github.com/smallnest/ragplayground/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/fake"
)

// recordingLLM replays responses in order and keeps every prompt it saw.
type recordingLLM struct {
	responses []string
	prompts   []string
	err       error
}

func (m *recordingLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var sb strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				sb.WriteString(text.Text)
			}
		}
	}
	m.prompts = append(m.prompts, sb.String())
	if m.err != nil {
		return nil, m.err
	}
	i := min(len(m.prompts)-1, len(m.responses)-1)
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.responses[i]}}}, nil
}

func (m *recordingLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

const aliceAcme = `{"entities": [
  {"_id": "Alice", "type": "Person", "attributes": {"role": ["engineer"]},
   "relationships": {"target_ids": ["Acme"], "types": ["works_at"], "attributes": [{"since": "2020"}]}},
  {"_id": "Acme", "type": "Organization"}
]}`

const aliceBob = "Sure, here is the graph:\n```json\n" + `{"entities": [
  {"_id": "Alice", "type": "Person", "attributes": {"role": "manager"},
   "relationships": {"target_ids": ["Bob"], "types": ["knows"]}},
  {"name": "Bob", "type": "Person"}
]}` + "\n```"

func chainStore(t *testing.T) *memory.MemoryEntityStore {
	t.Helper()
	s := memory.NewMemoryEntityStore()
	a := rag.Entity{ID: "A", Type: "Node"}
	a.AddRelationship("B", "next", nil)
	b := rag.Entity{ID: "B", Type: "Node"}
	b.AddRelationship("C", "next", nil)
	b.AddRelationship("A", "prev", nil)
	c := rag.Entity{ID: "C", Type: "Node"}
	c.AddRelationship("D", "next", nil)
	d := rag.Entity{ID: "D", Type: "Node"}
	require.NoError(t, s.Upsert(context.Background(), []rag.Entity{a, b, c, d}))
	return s
}

func TestNewGraphStore(t *testing.T) {
	_, err := NewGraphStore(nil, nil)
	assert.Error(t, err)

	_, err = NewGraphStore(memory.NewMemoryEntityStore(), nil, WithExtractionPrompt("broken {txt}"))
	assert.ErrorContains(t, err, "invalid extraction prompt")

	g, err := NewGraphStore(memory.NewMemoryEntityStore(), nil)
	require.NoError(t, err)
	assert.NotNil(t, g.Store())
}

func TestGraphStore_AddDocuments(t *testing.T) {
	ctx := context.Background()
	s := memory.NewMemoryEntityStore()
	g, err := NewGraphStore(s, fake.NewFakeLLM([]string{aliceAcme, aliceBob}))
	require.NoError(t, err)

	stats, err := g.AddDocuments(ctx, []rag.Document{
		{ID: "p0", Content: "Alice is an engineer at Acme since 2020."},
		{ID: "p1", Content: "Alice manages Bob."},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 3, stats.Entities)
	assert.Equal(t, 2, stats.Relationships)
	assert.Zero(t, stats.Fallbacks)

	all, err := g.Entities(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Alice", "Acme", "Bob"}, []string{all[0].ID, all[1].ID, all[2].ID})

	alice := all[0]
	assert.Equal(t, "Person", alice.Type)
	assert.Equal(t, []string{"engineer", "manager"}, alice.Attributes["role"])
	edges := alice.Edges()
	require.Len(t, edges, 2)
	assert.Equal(t, rag.Edge{Source: "Alice", Target: "Acme", Type: "works_at", Attributes: rag.Attributes{"since": {"2020"}}}, edges[0])
	assert.Equal(t, "Bob", edges[1].Target)
	assert.Equal(t, "knows", edges[1].Type)
}

func TestGraphStore_AddDocumentsMergesWithStored(t *testing.T) {
	ctx := context.Background()
	s := memory.NewMemoryEntityStore()
	existing := rag.Entity{ID: "Alice", Type: "Person", Attributes: rag.Attributes{"team": {"core"}}}
	existing.AddRelationship("Carol", "knows", nil)
	require.NoError(t, s.Upsert(ctx, []rag.Entity{existing}))

	g, err := NewGraphStore(s, fake.NewFakeLLM([]string{aliceBob}))
	require.NoError(t, err)
	_, err = g.AddDocuments(ctx, []rag.Document{{ID: "p0", Content: "Alice manages Bob."}})
	require.NoError(t, err)

	got, err := s.Get(ctx, []string{"Alice"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"core"}, got[0].Attributes["team"])
	assert.Equal(t, []string{"manager"}, got[0].Attributes["role"])
	assert.Equal(t, []string{"Carol", "Bob"}, got[0].Relationships.TargetIDs)
}

func TestGraphStore_HeuristicFallback(t *testing.T) {
	ctx := context.Background()
	g, err := NewGraphStore(memory.NewMemoryEntityStore(), fake.NewFakeLLM([]string{"I could not find anything."}))
	require.NoError(t, err)

	stats, err := g.AddDocuments(ctx, []rag.Document{{ID: "p0", Content: "The trip: Alice joined Acme in Paris."}})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Fallbacks)

	all, err := g.Entities(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Alice", all[0].ID)
	assert.Equal(t, "UNKNOWN", all[0].Type)
	assert.Equal(t, []string{"Acme", "Paris"}, all[0].Relationships.TargetIDs)
	assert.Equal(t, []string{"RELATED_TO", "RELATED_TO"}, all[0].Relationships.Types)
	assert.Empty(t, all[2].Edges())
}

func TestGraphStore_NoModelUsesHeuristic(t *testing.T) {
	g, err := NewGraphStore(memory.NewMemoryEntityStore(), nil)
	require.NoError(t, err)

	entities, fallback, err := g.ExtractEntities(context.Background(), "Berlin and Rome")
	require.NoError(t, err)
	assert.True(t, fallback)
	require.Len(t, entities, 2)

	entities, fallback, err = g.ExtractEntities(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, fallback)
	assert.Empty(t, entities)
}

func TestGraphStore_ModelError(t *testing.T) {
	g, err := NewGraphStore(memory.NewMemoryEntityStore(), &recordingLLM{err: errors.New("rate limited")})
	require.NoError(t, err)

	_, err = g.AddDocuments(context.Background(), []rag.Document{{ID: "p0", Content: "Alice"}})
	assert.ErrorContains(t, err, "failed to extract entities from document p0")
	assert.ErrorContains(t, err, "rate limited")
}

func TestGraphStore_ExtractionPrompt(t *testing.T) {
	llm := &recordingLLM{responses: []string{`{"entities": []}`}}
	g, err := NewGraphStore(memory.NewMemoryEntityStore(), llm,
		WithAllowedEntityTypes("Person", "Organization"),
		WithAllowedRelationshipTypes("works_at"))
	require.NoError(t, err)

	_, fallback, err := g.ExtractEntities(context.Background(), "Alice works at Acme.")
	require.NoError(t, err)
	assert.False(t, fallback)

	require.Len(t, llm.prompts, 1)
	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "Allowed entity types: Person, Organization.")
	assert.Contains(t, prompt, "Allowed relationship types: works_at.")
	assert.Contains(t, prompt, `"target_ids": ["other entity name"]`)
	assert.Contains(t, prompt, "Text: Alice works at Acme.")
	assert.NotContains(t, prompt, "{{")
}

func TestGraphStore_AllowedTypes(t *testing.T) {
	response := `{"entities": [
	  {"_id": "Alice", "type": "person", "relationships": {"target_ids": ["Acme", "Bob"], "types": ["works_at", "likes"]}},
	  {"_id": "Monday", "type": "Date"}
	]}`
	g, err := NewGraphStore(memory.NewMemoryEntityStore(), fake.NewFakeLLM([]string{response}),
		WithAllowedEntityTypes("Person"),
		WithAllowedRelationshipTypes("WORKS_AT"))
	require.NoError(t, err)

	entities, _, err := g.ExtractEntities(context.Background(), "text")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "Alice", entities[0].ID)
	assert.Equal(t, []string{"Acme"}, entities[0].Relationships.TargetIDs)
}

func TestParseEntities(t *testing.T) {
	entities, err := parseEntities(`{"entities": [
	  {"name": " Acme ", "type": "Organization", "attributes": {"employees": 12, "tags": ["b2b", true], "none": null}},
	  {"_id": "Acme", "attributes": {"city": "Paris"}},
	  {"_id": "", "type": "Nothing"}
	]}`)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "Acme", entities[0].ID)
	assert.Equal(t, "Organization", entities[0].Type)
	assert.Equal(t, []string{"12"}, entities[0].Attributes["employees"])
	assert.Equal(t, []string{"b2b", "true"}, entities[0].Attributes["tags"])
	assert.Equal(t, []string{"Paris"}, entities[0].Attributes["city"])

	_, err = parseEntities("no json here")
	assert.Error(t, err)

	_, err = parseEntities(`{"entities": [oops]}`)
	assert.Error(t, err)
}

func TestGraphStore_RelatedEntities(t *testing.T) {
	ctx := context.Background()
	g, err := NewGraphStore(chainStore(t), nil)
	require.NoError(t, err)

	related, err := g.RelatedEntities(ctx, []string{"A"}, 0)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "A", related[0].Entity.ID)

	related, err = g.RelatedEntities(ctx, []string{"A", "Missing"}, -1)
	require.NoError(t, err)
	require.Len(t, related, 3)
	for i, want := range []struct {
		id    string
		depth int
	}{{"A", 0}, {"B", 1}, {"C", 2}} {
		assert.Equal(t, want.id, related[i].Entity.ID)
		assert.Equal(t, want.depth, related[i].Depth)
	}

	related, err = g.RelatedEntities(ctx, []string{"C", "A"}, 5)
	require.NoError(t, err)
	assert.Len(t, related, 4)
}

func TestGraphStore_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("ModelNamesResolvedCaseInsensitively", func(t *testing.T) {
		llm := &recordingLLM{responses: []string{`Entities: ["b"]`}}
		g, err := NewGraphStore(chainStore(t), llm, WithMaxDepth(1))
		require.NoError(t, err)

		docs, err := g.Search(ctx, "what follows b?", 5)
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, "B", docs[0].ID)
		assert.Equal(t, 0, docs[0].Metadata["depth"])
		assert.Equal(t, "knowledge_graph", docs[0].Metadata["source"])
		assert.Contains(t, docs[0].Content, `"_id":"B"`)
		assert.Contains(t, llm.prompts[0], "Question: what follows b?")
	})

	t.Run("TopK", func(t *testing.T) {
		g, err := NewGraphStore(chainStore(t), fake.NewFakeLLM([]string{`["A"]`}))
		require.NoError(t, err)

		docs, err := g.Search(ctx, "A", 2)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "A", docs[0].ID)
		assert.Equal(t, "B", docs[1].ID)
	})

	t.Run("MentionFallback", func(t *testing.T) {
		s := memory.NewMemoryEntityStore()
		require.NoError(t, s.Upsert(ctx, []rag.Entity{{ID: "Acme", Type: "Organization"}}))
		g, err := NewGraphStore(s, fake.NewFakeLLM([]string{`[]`}))
		require.NoError(t, err)

		docs, err := g.Search(ctx, "tell me about acme", 0)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Acme", docs[0].ID)
	})

	t.Run("HeuristicNames", func(t *testing.T) {
		g, err := NewGraphStore(chainStore(t), nil, WithMaxDepth(0))
		require.NoError(t, err)

		names, err := g.ExtractEntityNames(ctx, "Where does Paris lead?")
		require.NoError(t, err)
		assert.Equal(t, []string{"Paris"}, names)

		docs, err := g.Search(ctx, "Who is Alice?", 5)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestGraphStore_Clear(t *testing.T) {
	ctx := context.Background()
	g, err := NewGraphStore(chainStore(t), nil)
	require.NoError(t, err)

	require.NoError(t, g.Clear(ctx))
	all, err := g.Entities(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
