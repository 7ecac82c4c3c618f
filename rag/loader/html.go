package loader

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/smallnest/ragplayground/rag"
)

// HTMLLoader extracts the visible text of an HTML file as a single page.
type HTMLLoader struct {
	filePath string
	selector string
}

// HTMLLoaderOption configures the HTMLLoader.
type HTMLLoaderOption func(*HTMLLoader)

// WithSelector limits extraction to the elements matching a CSS selector.
func WithSelector(selector string) HTMLLoaderOption {
	return func(l *HTMLLoader) {
		l.selector = selector
	}
}

// NewHTMLLoader creates an HTMLLoader reading the document body.
func NewHTMLLoader(filePath string, opts ...HTMLLoaderOption) *HTMLLoader {
	l := &HTMLLoader{filePath: filePath, selector: "body"}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load parses the file and returns its text with blank lines collapsed.
func (l *HTMLLoader) Load(ctx context.Context) ([]rag.Document, error) {
	f, err := os.Open(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", l.filePath, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html %s: %w", l.filePath, err)
	}
	doc.Find("script, style, noscript").Remove()

	var parts []string
	doc.Find(l.selector).Each(func(_ int, s *goquery.Selection) {
		if text := cleanText(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})

	md := map[string]any{"source": l.filePath, "type": "html"}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		md["title"] = title
	}
	return pageDocuments(l.filePath, []string{strings.Join(parts, "\n\n")}, md), nil
}

func cleanText(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
