// Package splitter turns pages into located chunks.
//
// Three strategies are available. Fixed cuts rune windows of the chunk size,
// Recursive and Markdown delegate to langchaingo's recursive character
// splitter, Markdown with heading and fence separators. Whatever
// the strategy, ChunkPages locates every chunk in its page so the chunk table
// can carry start and end offsets.
package splitter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultChunkSize is the chunk size of a fresh session.
	DefaultChunkSize = 512
	// DefaultChunkOverlap is the overlap of a fresh session.
	DefaultChunkOverlap = 0
)

// ErrInvalidConfig reports chunk settings no splitter can honour.
var ErrInvalidConfig = errors.New("invalid chunk configuration")

// Strategy names a splitting strategy.
type Strategy string

// Supported strategies.
const (
	Fixed     Strategy = "Fixed"
	Recursive Strategy = "Recursive"
	Markdown  Strategy = "Markdown"
)

// MarkdownSeparators are tried in order by the Markdown strategy: headings,
// code fences, horizontal rules, then paragraphs, lines and words. Chunks are
// cut from the page without rewriting it, so every chunk can be located.
var MarkdownSeparators = []string{
	"\n# ", "\n## ", "\n### ", "\n#### ", "\n##### ", "\n###### ",
	"```\n", "\n***\n", "\n---\n", "\n___\n",
	"\n\n", "\n", " ", "",
}

// Strategies lists the supported strategies in display order.
func Strategies() []Strategy {
	return []Strategy{Fixed, Recursive, Markdown}
}

// ParseStrategy accepts a strategy name in any case, plus a few aliases.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "fixed", "fixed-size", "character":
		return Fixed, nil
	case "recursive":
		return Recursive, nil
	case "markdown", "markdown-aware":
		return Markdown, nil
	}
	return "", fmt.Errorf("%w: unknown split strategy %q", ErrInvalidConfig, name)
}

// Config holds chunk settings.
type Config struct {
	ChunkSize    int      `json:"chunk_size" yaml:"size"`
	ChunkOverlap int      `json:"overlap_size" yaml:"overlap"`
	Strategy     Strategy `json:"split_strategy" yaml:"strategy"`
}

// DefaultConfig returns 512 character fixed chunks without overlap.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Strategy:     Fixed,
	}
}

// Validate checks the size, overlap and strategy.
func (c Config) Validate() error {
	if err := validate(c.ChunkSize, c.ChunkOverlap); err != nil {
		return err
	}
	_, err := ParseStrategy(string(c.Strategy))
	return err
}

func validate(size, overlap int) error {
	switch {
	case size < 1:
		return fmt.Errorf("%w: chunk size must be at least 1, got %d", ErrInvalidConfig, size)
	case overlap < 0:
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, overlap)
	case overlap >= size:
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfig, overlap, size)
	}
	return nil
}

// New builds the splitter for cfg.
func New(cfg Config) (textsplitter.TextSplitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	strategy, _ := ParseStrategy(string(cfg.Strategy))

	switch strategy {
	case Recursive:
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		), nil
	case Markdown:
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithSeparators(MarkdownSeparators),
			textsplitter.WithKeepSeparator(true),
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		), nil
	default:
		return NewCharacterSplitter(
			WithCharacterChunkSize(cfg.ChunkSize),
			WithCharacterChunkOverlap(cfg.ChunkOverlap),
		), nil
	}
}
