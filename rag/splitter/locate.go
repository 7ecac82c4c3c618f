package splitter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/smallnest/ragplayground/rag"
	"github.com/tmc/langchaingo/textsplitter"
)

// ChunkPages splits every page with the splitter built from cfg and returns
// the chunk table, page by page.
func ChunkPages(pages []string, cfg Config) ([]rag.Chunk, error) {
	sp, err := New(cfg)
	if err != nil {
		return nil, err
	}
	var chunks []rag.Chunk
	for i, page := range pages {
		pageChunks, err := ChunkPage(sp, i, page, cfg.ChunkOverlap)
		if err != nil {
			return nil, fmt.Errorf("split page %d: %w", i, err)
		}
		chunks = append(chunks, pageChunks...)
	}
	return chunks, nil
}

// ChunkPage splits one page and locates each chunk. The search for a chunk
// starts where the previous chunk ended minus the overlap, falling back to
// the start of the page. Chunks that cannot be found get -1 offsets.
func ChunkPage(sp textsplitter.TextSplitter, pageIndex int, page string, overlap int) ([]rag.Chunk, error) {
	if page == "" {
		return nil, nil
	}
	texts, err := sp.SplitText(page)
	if err != nil {
		return nil, err
	}

	loc := newLocator(page)
	chunks := make([]rag.Chunk, 0, len(texts))
	prevStart, prevLen := 0, 0
	for i, text := range texts {
		length := utf8.RuneCountInString(text)
		start := loc.find(text, max(0, prevStart+prevLen-overlap))
		if start < 0 {
			start = loc.find(text, 0)
		}

		c := rag.Chunk{
			PageIndex:   pageIndex,
			ChunkIndex:  i,
			Text:        text,
			StartOffset: -1,
			EndOffset:   -1,
		}
		if start >= 0 {
			c.StartOffset = start
			c.EndOffset = start + length
			prevStart, prevLen = start, length
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// locator finds substrings by rune offset.
type locator struct {
	text string
	// byteAt[i] is the byte offset of rune i; the final entry is len(text).
	byteAt []int
}

func newLocator(text string) *locator {
	byteAt := make([]int, 0, len(text)+1)
	for i := range text {
		byteAt = append(byteAt, i)
	}
	byteAt = append(byteAt, len(text))
	return &locator{text: text, byteAt: byteAt}
}

func (l *locator) find(sub string, from int) int {
	if sub == "" || from >= len(l.byteAt) {
		return -1
	}
	b := l.byteAt[from]
	idx := strings.Index(l.text[b:], sub)
	if idx < 0 {
		return -1
	}
	return from + utf8.RuneCountInString(l.text[b:b+idx])
}
