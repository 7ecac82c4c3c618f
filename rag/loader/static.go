package loader

import (
	"context"

	"github.com/smallnest/ragplayground/rag"
)

// StaticLoader serves pages held in memory.
type StaticLoader struct {
	Documents []rag.Document
}

// NewStaticLoader creates a loader returning documents as they are.
func NewStaticLoader(documents []rag.Document) *StaticLoader {
	return &StaticLoader{
		Documents: documents,
	}
}

// FromPages wraps raw page texts.
func FromPages(source string, pages ...string) *StaticLoader {
	return NewStaticLoader(pageDocuments(source, pages, map[string]any{"source": source, "type": "static"}))
}

// Load returns a copy of the page list.
func (l *StaticLoader) Load(ctx context.Context) ([]rag.Document, error) {
	return append([]rag.Document(nil), l.Documents...), nil
}
