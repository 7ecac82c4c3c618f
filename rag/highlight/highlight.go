// Package highlight renders a page with the chunks that cover it marked up.
//
// A page is partitioned into maximal runs of characters that are covered by
// exactly the same set of chunks. Runs covered by one chunk get that chunk's
// palette colour, runs covered by several chunks get the overlap colour and
// uncovered runs are left plain, which makes chunk boundaries and overlaps
// visible at a glance.
//
// Offsets are character offsets (runes), never bytes.
package highlight

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// Span is the character range [Start, End) owned by one chunk.
type Span struct {
	Start      int `json:"start"`
	End        int `json:"end"`
	ChunkIndex int `json:"chunk_index"`
}

// Coverage holds, for every character of a text, the sorted set of chunk
// indices whose span contains it.
type Coverage [][]int

// Cover builds the coverage of a text of length characters. Span ends beyond
// length are clamped, negative starts are treated as 0 and empty or inverted
// spans cover nothing.
func Cover(length int, spans []Span) Coverage {
	if length <= 0 {
		return Coverage{}
	}
	cov := make(Coverage, length)
	for _, s := range spans {
		start, end := clamp(s, length)
		for i := start; i < end; i++ {
			cov[i] = append(cov[i], s.ChunkIndex)
		}
	}
	for i, set := range cov {
		if len(set) > 1 {
			slices.Sort(set)
			cov[i] = slices.Compact(set)
		}
	}
	return cov
}

func clamp(s Span, length int) (int, int) {
	start, end := s.Start, s.End
	if start < 0 {
		start = 0
	}
	if end > length {
		end = length
	}
	if start >= end {
		return 0, 0
	}
	return start, end
}

// Run is a maximal stretch of characters sharing one coverage set.
type Run struct {
	Start  int
	End    int
	Text   string
	Chunks []int
}

// Covered reports whether any chunk covers the run.
func (r Run) Covered() bool { return len(r.Chunks) > 0 }

// Overlap reports whether two or more chunks cover the run.
func (r Run) Overlap() bool { return len(r.Chunks) > 1 }

// Runs partitions text into runs. Concatenating the Text of every run
// reproduces text exactly.
func Runs(text string, spans []Span) []Run {
	if text == "" {
		return nil
	}
	chars := []rune(text)
	cov := Cover(len(chars), spans)

	var runs []Run
	start := 0
	for i := 1; i <= len(chars); i++ {
		if i < len(chars) && slices.Equal(cov[i], cov[start]) {
			continue
		}
		runs = append(runs, Run{
			Start:  start,
			End:    i,
			Text:   string(chars[start:i]),
			Chunks: cov[start],
		})
		start = i
	}
	return runs
}

// Palette decides the background colour of a run.
type Palette struct {
	// Colors is cycled by chunk index for runs covered by a single chunk.
	Colors []string `json:"colors" yaml:"colors"`
	// Overlap colours runs covered by two or more chunks.
	Overlap string `json:"overlap" yaml:"overlap"`
}

// DefaultPalette is the light three-colour cycle used in the web preview.
var DefaultPalette = Palette{
	Colors: []string{
		"rgba(227,252,247,.9)",
		"rgba(249,235,255,.9)",
		"rgba(0,210,255,.3)",
	},
	Overlap: "rgba(144,168,84,.5)",
}

// Color returns the background for a coverage set, or "" when it is empty.
func (p Palette) Color(chunks []int) string {
	switch {
	case len(chunks) == 0:
		return ""
	case len(chunks) > 1:
		return p.Overlap
	case len(p.Colors) == 0:
		return ""
	}
	n := len(p.Colors)
	return p.Colors[((chunks[0]%n)+n)%n]
}

func (p Palette) withDefaults(def Palette) Palette {
	if len(p.Colors) == 0 {
		p.Colors = def.Colors
	}
	if p.Overlap == "" {
		p.Overlap = def.Overlap
	}
	return p
}

// Highlighter renders coverage markup with a fixed palette. It holds no
// mutable state and is safe for concurrent use.
type Highlighter struct {
	palette Palette
}

// Option configures a Highlighter.
type Option func(*Highlighter)

// WithPalette replaces the palette. Empty fields keep their defaults.
func WithPalette(p Palette) Option {
	return func(h *Highlighter) {
		h.palette = p.withDefaults(DefaultPalette)
	}
}

// New creates a Highlighter using DefaultPalette unless overridden.
func New(opts ...Option) *Highlighter {
	h := &Highlighter{palette: DefaultPalette}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Palette returns the palette in use.
func (h *Highlighter) Palette() Palette { return h.palette }

// Render returns one <span> per run, in order, with the run text escaped.
func (h *Highlighter) Render(text string, spans []Span) string {
	runs := Runs(text, spans)
	if len(runs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(text) + len(runs)*40)
	for _, r := range runs {
		if color := h.palette.Color(r.Chunks); color != "" {
			sb.WriteString(`<span style="background:`)
			sb.WriteString(color)
			sb.WriteString(`">`)
		} else {
			sb.WriteString("<span>")
		}
		sb.WriteString(Escape(r.Text))
		sb.WriteString("</span>")
	}
	return sb.String()
}

var defaultHighlighter = New()

// Render renders text with DefaultPalette.
func Render(text string, spans []Span) string {
	return defaultHighlighter.Render(text, spans)
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Escape replaces &, < and > with their entities and leaves everything else,
// quotes included, untouched.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Length returns the length of s in characters, the unit every offset uses.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}
