// Package loader turns files into pages. Every loader returns one
// rag.Document per page with "source" and zero-based "page" metadata.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/smallnest/ragplayground/rag"
)

// New picks a loader for path by extension. Directories are loaded file by
// file in lexical order.
func New(path string) (rag.DocumentLoader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return NewDirectoryLoader(path), nil
	}
	return forFile(path)
}

func forFile(path string) (rag.DocumentLoader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return NewPDFLoader(path), nil
	case ".html", ".htm":
		return NewHTMLLoader(path), nil
	case ".csv":
		return NewCSVLoader(path), nil
	case ".txt", ".md", ".markdown", ".text", "":
		return NewTextLoader(path, WithPageSeparator("\f")), nil
	}
	return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
}

// DirectoryLoader concatenates the pages of every supported file in a
// directory tree.
type DirectoryLoader struct {
	root string
}

// NewDirectoryLoader creates a DirectoryLoader.
func NewDirectoryLoader(root string) *DirectoryLoader {
	return &DirectoryLoader{root: root}
}

// Load walks the tree, skipping hidden entries and unsupported files.
func (l *DirectoryLoader) Load(ctx context.Context) ([]rag.Document, error) {
	var files []string
	err := filepath.WalkDir(l.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != l.root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", l.root, err)
	}
	slices.Sort(files)

	var docs []rag.Document
	for _, f := range files {
		ld, err := forFile(f)
		if err != nil {
			continue
		}
		pages, err := ld.Load(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range pages {
			p.Metadata["page"] = len(docs)
			docs = append(docs, p)
		}
	}
	return docs, nil
}

// Pages returns the page texts of docs.
func Pages(docs []rag.Document) []string {
	pages := make([]string, len(docs))
	for i, d := range docs {
		pages[i] = d.Content
	}
	return pages
}
