package rag

import (
	"context"
	"slices"
	"time"

	"github.com/smallnest/ragplayground/rag/highlight"
)

// Document is a unit of text with metadata. Loaders return one Document per
// page; ingestion turns every chunk into a Document.
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// DocumentLoader produces the ordered pages of a source.
type DocumentLoader interface {
	Load(ctx context.Context) ([]Document, error)
}

// Chunk is one row of the chunk table. Offsets are character offsets into the
// page, start inclusive and end exclusive. Chunks that could not be located
// in their page carry -1 offsets.
type Chunk struct {
	PageIndex   int    `json:"page_index"`
	ChunkIndex  int    `json:"chunk_index"`
	Text        string `json:"chunk_text"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// Located reports whether the chunk has valid offsets.
func (c Chunk) Located() bool {
	return c.StartOffset >= 0 && c.EndOffset >= c.StartOffset
}

// Span converts the chunk to a highlight span.
func (c Chunk) Span() highlight.Span {
	return highlight.Span{Start: c.StartOffset, End: c.EndOffset, ChunkIndex: c.ChunkIndex}
}

// PageSpans returns the spans of the located chunks on page.
func PageSpans(chunks []Chunk, page int) []highlight.Span {
	var spans []highlight.Span
	for _, c := range chunks {
		if c.PageIndex == page && c.Located() {
			spans = append(spans, c.Span())
		}
	}
	return spans
}

// Attributes maps an attribute name to its values.
type Attributes map[string][]string

// Relationships stores outgoing edges as parallel arrays: TargetIDs[i] has
// type Types[i] and attributes Attributes[i]. Readers must tolerate ragged
// arrays.
type Relationships struct {
	TargetIDs  []string     `json:"target_ids" bson:"target_ids"`
	Types      []string     `json:"types" bson:"types"`
	Attributes []Attributes `json:"attributes" bson:"attributes"`
}

// Edge is one outgoing relationship of an entity.
type Edge struct {
	Source     string
	Target     string
	Type       string
	Attributes Attributes
}

// Entity is the persisted record of the knowledge graph.
type Entity struct {
	ID            string        `json:"_id" bson:"_id"`
	Type          string        `json:"type" bson:"type"`
	Attributes    Attributes    `json:"attributes" bson:"attributes"`
	Relationships Relationships `json:"relationships" bson:"relationships"`
}

// Edges returns the outgoing edges of e, filling gaps in ragged arrays with
// empty values.
func (e Entity) Edges() []Edge {
	edges := make([]Edge, 0, len(e.Relationships.TargetIDs))
	for i, target := range e.Relationships.TargetIDs {
		edge := Edge{Source: e.ID, Target: target}
		if i < len(e.Relationships.Types) {
			edge.Type = e.Relationships.Types[i]
		}
		if i < len(e.Relationships.Attributes) {
			edge.Attributes = e.Relationships.Attributes[i]
		}
		edges = append(edges, edge)
	}
	return edges
}

// AddRelationship appends an edge unless one with the same target and type
// already exists, in which case the attributes are merged into it.
func (e *Entity) AddRelationship(target, relType string, attrs Attributes) {
	r := &e.Relationships
	for len(r.Types) < len(r.TargetIDs) {
		r.Types = append(r.Types, "")
	}
	for len(r.Attributes) < len(r.TargetIDs) {
		r.Attributes = append(r.Attributes, nil)
	}
	for i, t := range r.TargetIDs {
		if t == target && r.Types[i] == relType {
			r.Attributes[i] = mergeAttributes(r.Attributes[i], attrs)
			return
		}
	}
	r.TargetIDs = append(r.TargetIDs, target)
	r.Types = append(r.Types, relType)
	r.Attributes = append(r.Attributes, mergeAttributes(nil, attrs))
}

// Clone returns a deep copy of e.
func (e Entity) Clone() Entity {
	out := Entity{ID: e.ID, Type: e.Type, Attributes: cloneAttributes(e.Attributes)}
	out.Relationships.TargetIDs = slices.Clone(e.Relationships.TargetIDs)
	out.Relationships.Types = slices.Clone(e.Relationships.Types)
	if e.Relationships.Attributes != nil {
		out.Relationships.Attributes = make([]Attributes, len(e.Relationships.Attributes))
		for i, a := range e.Relationships.Attributes {
			out.Relationships.Attributes[i] = cloneAttributes(a)
		}
	}
	return out
}

func cloneAttributes(a Attributes) Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = slices.Clone(v)
	}
	return out
}

// Merge folds other into e. Attribute values are unioned and relationships
// deduplicated by target and type. An empty type is filled from other.
func (e *Entity) Merge(other Entity) {
	if e.Type == "" {
		e.Type = other.Type
	}
	e.Attributes = mergeAttributes(e.Attributes, other.Attributes)
	for _, edge := range other.Edges() {
		e.AddRelationship(edge.Target, edge.Type, edge.Attributes)
	}
}

func mergeAttributes(dst, src Attributes) Attributes {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(Attributes, len(src))
	}
	for k, values := range src {
		for _, v := range values {
			if !slices.Contains(dst[k], v) {
				dst[k] = append(dst[k], v)
			}
		}
		if _, ok := dst[k]; !ok {
			dst[k] = []string{}
		}
	}
	return dst
}

// EntityStore persists entities keyed by ID. Implementations keep the order
// in which IDs were first inserted.
type EntityStore interface {
	// Upsert inserts or replaces entities by ID.
	Upsert(ctx context.Context, entities []Entity) error
	// Get returns the entities with the given IDs in request order, skipping
	// unknown IDs.
	Get(ctx context.Context, ids []string) ([]Entity, error)
	// All returns every entity.
	All(ctx context.Context) ([]Entity, error)
	// Clear deletes every entity.
	Clear(ctx context.Context) error
	// Close releases the underlying connection.
	Close() error
}

// QueryResult is the outcome of a question answered over the graph.
type QueryResult struct {
	Query        string         `json:"query"`
	Answer       string         `json:"answer"`
	Context      string         `json:"context"`
	Prompt       string         `json:"prompt"`
	Sources      []Document     `json:"sources"`
	ResponseTime time.Duration  `json:"response_time"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}
