package loader

import (
	"context"
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/smallnest/ragplayground/rag"
)

// TextLoader loads a plain text or markdown file. The whole file is one page
// unless a page separator is set.
type TextLoader struct {
	filePath      string
	metadata      map[string]any
	pageSeparator string
}

// TextLoaderOption configures the TextLoader
type TextLoaderOption func(*TextLoader)

// WithMetadata sets additional metadata for loaded documents
func WithMetadata(metadata map[string]any) TextLoaderOption {
	return func(l *TextLoader) {
		maps.Copy(l.metadata, metadata)
	}
}

// WithPageSeparator splits the file into pages at every occurrence of sep,
// for example "\f" for form-feed paginated text.
func WithPageSeparator(sep string) TextLoaderOption {
	return func(l *TextLoader) {
		l.pageSeparator = sep
	}
}

// NewTextLoader creates a new TextLoader
func NewTextLoader(filePath string, opts ...TextLoaderOption) *TextLoader {
	l := &TextLoader{
		filePath: filePath,
		metadata: map[string]any{
			"source": filePath,
			"type":   "text",
		},
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Load reads the file and returns its pages.
func (l *TextLoader) Load(ctx context.Context) ([]rag.Document, error) {
	content, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", l.filePath, err)
	}

	pages := []string{string(content)}
	if l.pageSeparator != "" {
		pages = strings.Split(string(content), l.pageSeparator)
	}
	return pageDocuments(l.filePath, pages, l.metadata), nil
}

// pageDocuments numbers pages from zero and records the number under "page".
func pageDocuments(source string, pages []string, metadata map[string]any) []rag.Document {
	docs := make([]rag.Document, len(pages))
	for i, page := range pages {
		md := make(map[string]any, len(metadata)+1)
		maps.Copy(md, metadata)
		md["page"] = i
		docs[i] = rag.Document{
			ID:       fmt.Sprintf("%s#page=%d", source, i),
			Content:  page,
			Metadata: md,
		}
	}
	return docs
}
