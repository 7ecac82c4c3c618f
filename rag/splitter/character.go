package splitter

import (
	"github.com/tmc/langchaingo/textsplitter"
)

// CharacterSplitter cuts fixed windows of chunkSize runes, each starting
// chunkSize-chunkOverlap runes after the previous one. Windows are kept as is,
// whitespace included, so consecutive chunks tile the page.
type CharacterSplitter struct {
	chunkSize    int
	chunkOverlap int
}

var _ textsplitter.TextSplitter = (*CharacterSplitter)(nil)

// CharacterSplitterOption configures the CharacterSplitter
type CharacterSplitterOption func(*CharacterSplitter)

// WithCharacterChunkSize sets the chunk size for character splitter
func WithCharacterChunkSize(size int) CharacterSplitterOption {
	return func(s *CharacterSplitter) {
		s.chunkSize = size
	}
}

// WithCharacterChunkOverlap sets the chunk overlap for character splitter
func WithCharacterChunkOverlap(overlap int) CharacterSplitterOption {
	return func(s *CharacterSplitter) {
		s.chunkOverlap = overlap
	}
}

// NewCharacterSplitter creates a splitter producing fixed windows of 512
// characters with no overlap unless configured otherwise.
func NewCharacterSplitter(opts ...CharacterSplitterOption) *CharacterSplitter {
	s := &CharacterSplitter{
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SplitText splits text into fixed windows.
func (s *CharacterSplitter) SplitText(text string) ([]string, error) {
	if err := validate(s.chunkSize, s.chunkOverlap); err != nil {
		return nil, err
	}
	return s.splitByCharacterCount(text), nil
}

// splitByCharacterCount emits windows of chunkSize runes starting every
// chunkSize-chunkOverlap runes. The last window ends at the end of text.
func (s *CharacterSplitter) splitByCharacterCount(text string) []string {
	runes := []rune(text)
	step := s.chunkSize - s.chunkOverlap
	var chunks []string

	for i := 0; i < len(runes); i += step {
		end := min(i+s.chunkSize, len(runes))
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}

	return chunks
}
