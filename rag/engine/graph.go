package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/smallnest/ragplayground/rag"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

// GraphStore turns documents into entities persisted in a rag.EntityStore and
// answers retrieval requests by walking the stored relationships.
type GraphStore struct {
	store rag.EntityStore
	llm   llms.Model
	opts  options
}

// IngestStats summarizes one AddDocuments call.
type IngestStats struct {
	Documents     int           `json:"documents"`
	Entities      int           `json:"entities"`
	Relationships int           `json:"relationships"`
	Fallbacks     int           `json:"fallbacks"`
	Duration      time.Duration `json:"duration"`
}

// RelatedEntity is an entity reached during traversal together with its
// distance from the closest seed.
type RelatedEntity struct {
	Entity rag.Entity `json:"entity"`
	Depth  int        `json:"depth"`
}

// NewGraphStore creates a graph store. A nil model is allowed; extraction then
// uses the capitalised-word heuristic only.
func NewGraphStore(store rag.EntityStore, llm llms.Model, opts ...Option) (*GraphStore, error) {
	if store == nil {
		return nil, fmt.Errorf("entity store is required")
	}
	o := newOptions(opts)
	if _, err := formatExtractionPrompt(o.extractionPrompt, "", o); err != nil {
		return nil, fmt.Errorf("invalid extraction prompt: %w", err)
	}
	return &GraphStore{store: store, llm: llm, opts: o}, nil
}

// Store returns the underlying entity store.
func (g *GraphStore) Store() rag.EntityStore {
	return g.store
}

// AddDocuments extracts entities from every document, merges them with each
// other and with what is already stored, and upserts the result.
func (g *GraphStore) AddDocuments(ctx context.Context, docs []rag.Document) (IngestStats, error) {
	startTime := time.Now()
	stats := IngestStats{Documents: len(docs)}

	merged := make(map[string]*rag.Entity)
	var order []string
	for _, doc := range docs {
		entities, fallback, err := g.ExtractEntities(ctx, doc.Content)
		if err != nil {
			return stats, fmt.Errorf("failed to extract entities from document %s: %w", doc.ID, err)
		}
		if fallback {
			stats.Fallbacks++
		}
		for _, e := range entities {
			if cur, ok := merged[e.ID]; ok {
				cur.Merge(e)
				continue
			}
			merged[e.ID] = &e
			order = append(order, e.ID)
		}
	}

	if len(order) > 0 {
		existing, err := g.store.Get(ctx, order)
		if err != nil {
			return stats, fmt.Errorf("failed to load existing entities: %w", err)
		}
		for _, base := range existing {
			base.Merge(*merged[base.ID])
			merged[base.ID] = &base
		}

		out := make([]rag.Entity, 0, len(order))
		for _, id := range order {
			e := merged[id]
			stats.Relationships += len(e.Relationships.TargetIDs)
			out = append(out, *e)
		}
		if err := g.store.Upsert(ctx, out); err != nil {
			return stats, fmt.Errorf("failed to store entities: %w", err)
		}
		stats.Entities = len(out)
	}

	stats.Duration = time.Since(startTime)
	g.opts.logger.Info("ingested %d documents: %d entities, %d relationships, %d heuristic fallbacks",
		stats.Documents, stats.Entities, stats.Relationships, stats.Fallbacks)
	return stats, nil
}

// ExtractEntities asks the model for the entities of text. The boolean result
// reports whether the heuristic fallback was used.
func (g *GraphStore) ExtractEntities(ctx context.Context, text string) ([]rag.Entity, bool, error) {
	if strings.TrimSpace(text) == "" {
		return nil, false, nil
	}
	if g.llm == nil {
		return heuristicEntities(text), true, nil
	}

	prompt, err := formatExtractionPrompt(g.opts.extractionPrompt, text, g.opts)
	if err != nil {
		return nil, false, err
	}
	response, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, g.opts.callOptions...)
	if err != nil {
		return nil, false, err
	}

	entities, err := parseEntities(response)
	if err != nil {
		g.opts.logger.Warn("unparseable extraction output, using heuristic: %v", err)
		return heuristicEntities(text), true, nil
	}
	return g.filterAllowed(entities), false, nil
}

// ExtractEntityNames returns the entity names mentioned in a question.
func (g *GraphStore) ExtractEntityNames(ctx context.Context, query string) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if g.llm == nil {
		return heuristicNames(query), nil
	}

	prompt, err := prompts.RenderTemplate(g.opts.queryPrompt, prompts.TemplateFormatFString, map[string]any{
		"question":     query,
		"entity_types": typeHint(g.opts.entityTypes),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format query prompt: %w", err)
	}
	response, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, g.opts.callOptions...)
	if err != nil {
		return nil, err
	}

	var names []string
	raw := jsonSection(response, '[', ']')
	if raw == "" || json.Unmarshal([]byte(raw), &names) != nil {
		g.opts.logger.Warn("unparseable entity names, using heuristic: %q", response)
		return heuristicNames(query), nil
	}
	return uniqueNonEmpty(names), nil
}

// RelatedEntities walks relationships breadth-first from the given entity IDs.
// Seeds have depth 0. A negative maxDepth uses the configured default.
func (g *GraphStore) RelatedEntities(ctx context.Context, ids []string, maxDepth int) ([]RelatedEntity, error) {
	if maxDepth < 0 {
		maxDepth = g.opts.maxDepth
	}

	frontier := uniqueNonEmpty(ids)
	visited := make(map[string]bool, len(frontier))
	for _, id := range frontier {
		visited[id] = true
	}

	var out []RelatedEntity
	for depth := 0; len(frontier) > 0 && depth <= maxDepth; depth++ {
		entities, err := g.store.Get(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("failed to load entities at depth %d: %w", depth, err)
		}
		var next []string
		for _, e := range entities {
			out = append(out, RelatedEntity{Entity: e, Depth: depth})
			for _, edge := range e.Edges() {
				if edge.Target != "" && !visited[edge.Target] {
					visited[edge.Target] = true
					next = append(next, edge.Target)
				}
			}
		}
		frontier = next
	}
	return out, nil
}

// Search returns up to k entity documents related to the question, seeds
// first and then by depth. Each document's content is the JSON of the entity.
func (g *GraphStore) Search(ctx context.Context, query string, k int) ([]rag.Document, error) {
	if k <= 0 {
		k = DefaultK
	}
	names, err := g.ExtractEntityNames(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to extract entity names: %w", err)
	}
	seeds, err := g.resolve(ctx, query, names)
	if err != nil {
		return nil, err
	}
	related, err := g.RelatedEntities(ctx, seeds, -1)
	if err != nil {
		return nil, err
	}
	if len(related) > k {
		related = related[:k]
	}

	docs := make([]rag.Document, 0, len(related))
	for _, r := range related {
		content, err := json.Marshal(r.Entity)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal entity %s: %w", r.Entity.ID, err)
		}
		docs = append(docs, rag.Document{
			ID:      r.Entity.ID,
			Content: string(content),
			Metadata: map[string]any{
				"entity_type": r.Entity.Type,
				"depth":       r.Depth,
				"source":      "knowledge_graph",
			},
		})
	}
	g.opts.logger.Debug("search %q: names=%v seeds=%v fragments=%d", query, names, seeds, len(docs))
	return docs, nil
}

// Entities returns every stored entity.
func (g *GraphStore) Entities(ctx context.Context) ([]rag.Entity, error) {
	return g.store.All(ctx)
}

// Clear removes every stored entity.
func (g *GraphStore) Clear(ctx context.Context) error {
	return g.store.Clear(ctx)
}

// resolve maps names to stored IDs: exact matches first, then
// case-insensitive matches. With no names, any stored ID mentioned in the
// query is used.
func (g *GraphStore) resolve(ctx context.Context, query string, names []string) ([]string, error) {
	found, err := g.store.Get(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("failed to load entities: %w", err)
	}
	if len(names) > 0 && len(found) == len(names) {
		return names, nil
	}

	all, err := g.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	index := make(map[string]string, len(all))
	for _, e := range all {
		index[strings.ToLower(e.ID)] = e.ID
	}

	var ids []string
	for _, name := range names {
		if id, ok := index[strings.ToLower(name)]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		lower := strings.ToLower(query)
		for _, e := range all {
			if e.ID != "" && mentions(lower, strings.ToLower(e.ID)) {
				ids = append(ids, e.ID)
			}
		}
	}
	return uniqueNonEmpty(ids), nil
}

// mentions reports whether name occurs in text as a whole word.
func mentions(text, name string) bool {
	for i := 0; i < len(text); {
		j := strings.Index(text[i:], name)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(name)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}
		i = start + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (g *GraphStore) filterAllowed(entities []rag.Entity) []rag.Entity {
	if len(g.opts.entityTypes) == 0 && len(g.opts.relationshipTypes) == 0 {
		return entities
	}
	out := entities[:0]
	for _, e := range entities {
		if len(g.opts.entityTypes) > 0 && !containsFold(g.opts.entityTypes, e.Type) {
			g.opts.logger.Debug("dropping entity %s of type %q", e.ID, e.Type)
			continue
		}
		if len(g.opts.relationshipTypes) > 0 {
			kept := rag.Entity{ID: e.ID, Type: e.Type, Attributes: e.Attributes}
			for _, edge := range e.Edges() {
				if containsFold(g.opts.relationshipTypes, edge.Type) {
					kept.AddRelationship(edge.Target, edge.Type, edge.Attributes)
				}
			}
			e = kept
		}
		out = append(out, e)
	}
	return out
}

func formatExtractionPrompt(tmpl, text string, o options) (string, error) {
	return prompts.RenderTemplate(tmpl, prompts.TemplateFormatFString, map[string]any{
		"text":               text,
		"entity_types":       typeHint(o.entityTypes),
		"relationship_types": typeHint(o.relationshipTypes),
	})
}

func typeHint(types []string) string {
	if len(types) == 0 {
		return "any"
	}
	return strings.Join(types, ", ")
}

type extractionResult struct {
	Entities []extractedEntity `json:"entities"`
}

type extractedEntity struct {
	ID            string                 `json:"_id"`
	Name          string                 `json:"name"`
	Type          string                 `json:"type"`
	Attributes    map[string]flexStrings `json:"attributes"`
	Relationships struct {
		TargetIDs  []string                 `json:"target_ids"`
		Types      []string                 `json:"types"`
		Attributes []map[string]flexStrings `json:"attributes"`
	} `json:"relationships"`
}

// flexStrings accepts a string, a scalar or an array for attribute values.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*f = nil
	case []any:
		out := make(flexStrings, 0, len(x))
		for _, item := range x {
			out = append(out, scalarString(item))
		}
		*f = out
	default:
		*f = flexStrings{scalarString(x)}
	}
	return nil
}

func scalarString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func toAttributes(m map[string]flexStrings) rag.Attributes {
	if len(m) == 0 {
		return nil
	}
	out := make(rag.Attributes, len(m))
	for k, v := range m {
		out[k] = append([]string{}, v...)
	}
	return out
}

// parseEntities decodes the {"entities": [...]} object from a model answer.
// Surrounding prose and code fences are ignored.
func parseEntities(response string) ([]rag.Entity, error) {
	raw := jsonSection(response, '{', '}')
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in model output")
	}
	var result extractionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to decode extraction output: %w", err)
	}

	var out []rag.Entity
	index := make(map[string]int)
	for _, x := range result.Entities {
		id := strings.TrimSpace(x.ID)
		if id == "" {
			id = strings.TrimSpace(x.Name)
		}
		if id == "" {
			continue
		}
		e := rag.Entity{ID: id, Type: x.Type, Attributes: toAttributes(x.Attributes)}
		for i, target := range x.Relationships.TargetIDs {
			target = strings.TrimSpace(target)
			if target == "" {
				continue
			}
			var relType string
			if i < len(x.Relationships.Types) {
				relType = x.Relationships.Types[i]
			}
			var attrs rag.Attributes
			if i < len(x.Relationships.Attributes) {
				attrs = toAttributes(x.Relationships.Attributes[i])
			}
			e.AddRelationship(target, relType, attrs)
		}
		if i, ok := index[id]; ok {
			out[i].Merge(e)
			continue
		}
		index[id] = len(out)
		out = append(out, e)
	}
	return out, nil
}

func jsonSection(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

var stopWords = map[string]bool{
	"The": true, "This": true, "That": true, "These": true, "Those": true,
	"And": true, "But": true, "For": true, "With": true, "From": true,
	"What": true, "Who": true, "Where": true, "When": true, "Which": true,
	"How": true, "Why": true, "Does": true, "Did": true, "Are": true,
	"Was": true, "Were": true, "Its": true, "Their": true, "There": true,
}

// heuristicNames returns capitalised words longer than two letters.
func heuristicNames(text string) []string {
	var names []string
	seen := make(map[string]bool)
	for word := range strings.FieldsSeq(text) {
		word = strings.TrimFunc(word, func(r rune) bool { return !isWordRune(r) })
		first, _ := utf8.DecodeRuneInString(word)
		if utf8.RuneCountInString(word) <= 2 || !unicode.IsUpper(first) || stopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		names = append(names, word)
	}
	return names
}

// heuristicEntities links every pair of co-occurring names with RELATED_TO.
func heuristicEntities(text string) []rag.Entity {
	names := heuristicNames(text)
	entities := make([]rag.Entity, len(names))
	for i, name := range names {
		entities[i] = rag.Entity{ID: name, Type: "UNKNOWN"}
		for _, other := range names[i+1:] {
			entities[i].AddRelationship(other, "RELATED_TO", nil)
		}
	}
	return entities
}

func uniqueNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func containsFold(values []string, v string) bool {
	return slices.ContainsFunc(values, func(s string) bool {
		return strings.EqualFold(s, v)
	})
}

// DefaultExtractionPrompt asks for entities in the stored document shape.
// Literal braces are doubled for f-string formatting.
const DefaultExtractionPrompt = `You extract a knowledge graph from text.
Allowed entity types: {entity_types}.
Allowed relationship types: {relationship_types}.
Return only JSON with this structure:
{{
  "entities": [
    {{
      "_id": "entity name",
      "type": "entity type",
      "attributes": {{"attribute name": ["value"]}},
      "relationships": {{
        "target_ids": ["other entity name"],
        "types": ["relationship type"],
        "attributes": [{{"attribute name": ["value"]}}]
      }}
    }}
  ]
}}
Use the exact entity names as they appear in the text.

Text: {text}
`

// DefaultQueryPrompt asks for the entity names mentioned in a question.
const DefaultQueryPrompt = `List the named entities mentioned in the question.
Entity types of interest: {entity_types}.
Return only a JSON array of strings, for example ["Alice", "Acme"].

Question: {question}
`
