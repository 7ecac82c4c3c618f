package loader

import (
	"context"
	"fmt"
	"os"

	"github.com/smallnest/ragplayground/rag"
	"github.com/tmc/langchaingo/documentloaders"
)

// CSVLoader loads one page per CSV row through langchaingo's CSV loader.
// Each page holds "column: value" lines.
type CSVLoader struct {
	filePath string
	columns  []string
}

// NewCSVLoader creates a CSVLoader. When columns are given only those are
// kept.
func NewCSVLoader(filePath string, columns ...string) *CSVLoader {
	return &CSVLoader{filePath: filePath, columns: columns}
}

// Load reads every row.
func (l *CSVLoader) Load(ctx context.Context) ([]rag.Document, error) {
	f, err := os.Open(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", l.filePath, err)
	}
	defer f.Close()

	docs, err := rag.NewLangChainDocumentLoader(documentloaders.NewCSV(f, l.columns...)).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv %s: %w", l.filePath, err)
	}

	pages := make([]string, len(docs))
	for i, d := range docs {
		pages[i] = d.Content
	}
	return pageDocuments(l.filePath, pages, map[string]any{"source": l.filePath, "type": "csv"}), nil
}
