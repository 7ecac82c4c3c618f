package loader

import (
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
	"github.com/smallnest/ragplayground/rag"
)

// PDFLoader loads one page per PDF page.
type PDFLoader struct {
	filePath string
	reader   io.ReaderAt
	size     int64
}

// NewPDFLoader reads the PDF at filePath.
func NewPDFLoader(filePath string) *PDFLoader {
	return &PDFLoader{filePath: filePath}
}

// NewPDFReaderLoader reads a PDF already held in memory or on an open file.
func NewPDFReaderLoader(name string, r io.ReaderAt, size int64) *PDFLoader {
	return &PDFLoader{filePath: name, reader: r, size: size}
}

// Load extracts the plain text of every page. Pages without content become
// empty pages so page numbers stay aligned with the document.
func (l *PDFLoader) Load(ctx context.Context) ([]rag.Document, error) {
	var (
		r   *pdf.Reader
		err error
	)
	if l.reader != nil {
		r, err = pdf.NewReader(l.reader, l.size)
	} else {
		var f io.Closer
		f, r, err = pdf.Open(l.filePath)
		if err == nil {
			defer f.Close()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", l.filePath, err)
	}

	n := r.NumPage()
	pages := make([]string, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d of %s: %w", i, l.filePath, err)
		}
		pages[i-1] = text
	}

	return pageDocuments(l.filePath, pages, map[string]any{
		"source": l.filePath,
		"type":   "pdf",
	}), nil
}
