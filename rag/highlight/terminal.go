package highlight

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// DefaultTerminalPalette mirrors DefaultPalette in hex so terminals can show it.
var DefaultTerminalPalette = Palette{
	Colors:  []string{"#E3FCF7", "#F9EBFF", "#B3F1FF"},
	Overlap: "#C7D3A9",
}

// Terminal renders the same run partition as Highlighter using ANSI
// background colours. A Terminal caches styles and is not safe for
// concurrent use.
type Terminal struct {
	renderer *lipgloss.Renderer
	palette  Palette
	styles   map[string]lipgloss.Style
}

// TerminalOption configures a Terminal.
type TerminalOption func(*Terminal)

// WithTerminalPalette replaces the terminal palette.
func WithTerminalPalette(p Palette) TerminalOption {
	return func(t *Terminal) {
		t.palette = p.withDefaults(DefaultTerminalPalette)
	}
}

// NewTerminal creates a renderer whose colour profile is detected from w.
func NewTerminal(w io.Writer, opts ...TerminalOption) *Terminal {
	t := &Terminal{
		renderer: lipgloss.NewRenderer(w),
		palette:  DefaultTerminalPalette,
		styles:   make(map[string]lipgloss.Style),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Terminal) style(color string) lipgloss.Style {
	if s, ok := t.styles[color]; ok {
		return s
	}
	s := t.renderer.NewStyle().
		Background(lipgloss.Color(color)).
		Foreground(lipgloss.Color("#1A1A1A")).
		TabWidth(lipgloss.NoTabConversion)
	t.styles[color] = s
	return s
}

// Render styles each covered run line by line so that multi-line runs keep
// their original layout.
func (t *Terminal) Render(text string, spans []Span) string {
	var sb strings.Builder
	for _, r := range Runs(text, spans) {
		color := t.palette.Color(r.Chunks)
		if color == "" {
			sb.WriteString(r.Text)
			continue
		}
		style := t.style(color)
		for i, line := range strings.Split(r.Text, "\n") {
			if i > 0 {
				sb.WriteByte('\n')
			}
			if line != "" {
				sb.WriteString(style.Render(line))
			}
		}
	}
	return sb.String()
}

// Legend describes the palette, one styled sample per colour.
func (t *Terminal) Legend() string {
	parts := make([]string, 0, len(t.palette.Colors)+1)
	for i, c := range t.palette.Colors {
		parts = append(parts, t.style(c).Render(fmt.Sprintf(" chunk %d ", i)))
	}
	parts = append(parts, t.style(t.palette.Overlap).Render(" overlap "))
	return strings.Join(parts, " ")
}
