package rag

import (
	"context"
	"fmt"
	"maps"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

// LangChainDocumentLoader adapts langchaingo's documentloaders.Loader to our DocumentLoader interface
type LangChainDocumentLoader struct {
	loader documentloaders.Loader
}

// NewLangChainDocumentLoader creates a new adapter for langchaingo document loaders
func NewLangChainDocumentLoader(loader documentloaders.Loader) *LangChainDocumentLoader {
	return &LangChainDocumentLoader{
		loader: loader,
	}
}

// Load loads documents using the underlying langchaingo loader
func (l *LangChainDocumentLoader) Load(ctx context.Context) ([]Document, error) {
	schemaDocs, err := l.loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	return FromSchemaDocuments(schemaDocs), nil
}

// LoadWithMetadata loads documents and copies metadata into each of them.
func (l *LangChainDocumentLoader) LoadWithMetadata(ctx context.Context, metadata map[string]any) ([]Document, error) {
	docs, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}

	if metadata != nil {
		for i := range docs {
			if docs[i].Metadata == nil {
				docs[i].Metadata = make(map[string]any)
			}
			maps.Copy(docs[i].Metadata, metadata)
		}
	}

	return docs, nil
}

// LoadAndSplit loads documents and splits them with splitter.
func (l *LangChainDocumentLoader) LoadAndSplit(ctx context.Context, splitter textsplitter.TextSplitter) ([]Document, error) {
	schemaDocs, err := l.loader.LoadAndSplit(ctx, splitter)
	if err != nil {
		return nil, err
	}
	return FromSchemaDocuments(schemaDocs), nil
}

// FromSchemaDocuments converts langchaingo documents. The "source" metadata
// becomes the ID when present.
func FromSchemaDocuments(schemaDocs []schema.Document) []Document {
	docs := make([]Document, len(schemaDocs))
	for i, schemaDoc := range schemaDocs {
		docs[i] = Document{
			Content:  schemaDoc.PageContent,
			Metadata: copyMetadata(schemaDoc.Metadata),
		}

		if source, ok := schemaDoc.Metadata["source"]; ok {
			docs[i].ID = fmt.Sprintf("%v", source)
		} else {
			docs[i].ID = fmt.Sprintf("doc_%d", i)
		}
	}
	return docs
}

// ToSchemaDocuments converts documents to langchaingo documents.
func ToSchemaDocuments(docs []Document) []schema.Document {
	out := make([]schema.Document, len(docs))
	for i, doc := range docs {
		out[i] = schema.Document{
			PageContent: doc.Content,
			Metadata:    copyMetadata(doc.Metadata),
		}
	}
	return out
}

func copyMetadata(metadata map[string]any) map[string]any {
	result := make(map[string]any, len(metadata))
	maps.Copy(result, metadata)
	return result
}
