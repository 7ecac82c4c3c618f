package splitter

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/smallnest/ragplayground/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharacterSplitter(t *testing.T) {
	t.Run("Fixed windows", func(t *testing.T) {
		s := NewCharacterSplitter(WithCharacterChunkSize(4))
		chunks, err := s.SplitText("abcdefghij")
		require.NoError(t, err)
		assert.Equal(t, []string{"abcd", "efgh", "ij"}, chunks)
	})

	t.Run("Windows with overlap", func(t *testing.T) {
		s := NewCharacterSplitter(WithCharacterChunkSize(5), WithCharacterChunkOverlap(2))
		chunks, err := s.SplitText("abcdefghij")
		require.NoError(t, err)
		assert.Equal(t, []string{"abcde", "defgh", "ghij"}, chunks)
	})

	t.Run("Counts runes", func(t *testing.T) {
		s := NewCharacterSplitter(WithCharacterChunkSize(2))
		chunks, err := s.SplitText("héllo")
		require.NoError(t, err)
		assert.Equal(t, []string{"hé", "ll", "o"}, chunks)
	})

	t.Run("Keeps whitespace", func(t *testing.T) {
		s := NewCharacterSplitter(WithCharacterChunkSize(4))
		chunks, err := s.SplitText("ab  \n   cd")
		require.NoError(t, err)
		assert.Equal(t, []string{"ab  ", "\n   ", "cd"}, chunks)
	})

	t.Run("Invalid overlap", func(t *testing.T) {
		s := NewCharacterSplitter(WithCharacterChunkSize(3), WithCharacterChunkOverlap(3))
		_, err := s.SplitText("abcdef")
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestParseStrategy(t *testing.T) {
	cases := map[string]Strategy{
		"Fixed":          Fixed,
		"fixed-size":     Fixed,
		"":               Fixed,
		"RECURSIVE":      Recursive,
		"markdown-aware": Markdown,
		"Markdown":       Markdown,
	}
	for in, want := range cases {
		got, err := ParseStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStrategy("semantic")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Equal(t, Config{ChunkSize: 512, ChunkOverlap: 0, Strategy: Fixed}, DefaultConfig())

	for _, cfg := range []Config{
		{ChunkSize: 0, Strategy: Fixed},
		{ChunkSize: 10, ChunkOverlap: -1, Strategy: Fixed},
		{ChunkSize: 10, ChunkOverlap: 10, Strategy: Fixed},
		{ChunkSize: 10, Strategy: "bogus"},
	} {
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig, "%+v", cfg)
	}
}

func assertChunkInvariant(t *testing.T, page string, chunks []rag.Chunk) {
	t.Helper()
	runes := []rune(page)
	for _, c := range chunks {
		if !c.Located() {
			continue
		}
		assert.GreaterOrEqual(t, c.StartOffset, 0)
		assert.LessOrEqual(t, c.EndOffset, len(runes))
		assert.Equal(t, utf8.RuneCountInString(c.Text), c.EndOffset-c.StartOffset)
		assert.Equal(t, c.Text, string(runes[c.StartOffset:c.EndOffset]))
	}
}

func TestChunkPages(t *testing.T) {
	pages := []string{
		"The quick brown fox jumps over the lazy dog. " + strings.Repeat("Lorem ipsum dolor sit amet. ", 20),
		"Zweite Seite mit Umlauten: äöü ß. " + strings.Repeat("Noch ein Satz. ", 15),
		"",
	}

	for _, strategy := range Strategies() {
		for _, overlap := range []int{0, 10} {
			cfg := Config{ChunkSize: 64, ChunkOverlap: overlap, Strategy: strategy}
			chunks, err := ChunkPages(pages, cfg)
			require.NoError(t, err, strategy)
			require.NotEmpty(t, chunks, strategy)

			perPage := map[int]int{}
			for _, c := range chunks {
				assert.Equal(t, perPage[c.PageIndex], c.ChunkIndex)
				perPage[c.PageIndex]++
				assert.True(t, c.Located(), "%s chunk %q not located", strategy, c.Text)
				assertChunkInvariant(t, pages[c.PageIndex], []rag.Chunk{c})
			}
			assert.Zero(t, perPage[2])
		}
	}
}

func TestChunkPages_FixedOffsets(t *testing.T) {
	chunks, err := ChunkPages([]string{"abcdefghij"}, Config{ChunkSize: 5, ChunkOverlap: 2, Strategy: Fixed})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, rag.Chunk{PageIndex: 0, ChunkIndex: 0, Text: "abcde", StartOffset: 0, EndOffset: 5}, chunks[0])
	assert.Equal(t, rag.Chunk{PageIndex: 0, ChunkIndex: 1, Text: "defgh", StartOffset: 3, EndOffset: 8}, chunks[1])
	assert.Equal(t, rag.Chunk{PageIndex: 0, ChunkIndex: 2, Text: "ghij", StartOffset: 6, EndOffset: 10}, chunks[2])
}

func TestChunkPages_RepeatedText(t *testing.T) {
	// identical chunks must be located one after another, not all at 0
	chunks, err := ChunkPages([]string{"abcabcabc"}, Config{ChunkSize: 3, Strategy: Fixed})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, []int{0, 3, 6}, []int{chunks[0].StartOffset, chunks[1].StartOffset, chunks[2].StartOffset})
}

func TestChunkPages_MarkdownLocated(t *testing.T) {
	page := "# Guide\n\nIntro paragraph for the guide.\n\n" +
		"## Section\n\nBody text here that is longer than one chunk.\n\n" +
		"```\ncode := 1\n```\n\n---\n\n" +
		"## Section\n\nBody text here that is longer than one chunk.\n\n" +
		"### Notes\n\n- one\n- two\n"

	for _, overlap := range []int{0, 10} {
		chunks, err := ChunkPages([]string{page}, Config{ChunkSize: 40, ChunkOverlap: overlap, Strategy: Markdown})
		require.NoError(t, err)
		require.Greater(t, len(chunks), 3)

		runes := []rune(page)
		for _, c := range chunks {
			require.True(t, c.Located(), "chunk %d %q not located", c.ChunkIndex, c.Text)
			assert.Equal(t, c.Text, string(runes[c.StartOffset:c.EndOffset]))
		}
		assert.NotEmpty(t, rag.PageSpans(chunks, 0))
	}
}

type rewritingSplitter struct{}

func (rewritingSplitter) SplitText(text string) ([]string, error) {
	return []string{text[:3], "# rewritten"}, nil
}

func TestChunkPage_Unlocated(t *testing.T) {
	chunks, err := ChunkPage(rewritingSplitter{}, 1, "hello world", 0)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, 3, chunks[0].EndOffset)
	assert.False(t, chunks[1].Located())
	assert.Equal(t, -1, chunks[1].StartOffset)
}

func TestChunkPages_InvalidConfig(t *testing.T) {
	_, err := ChunkPages([]string{"x"}, Config{ChunkSize: 2, ChunkOverlap: 5, Strategy: Fixed})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
