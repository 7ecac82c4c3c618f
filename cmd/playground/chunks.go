package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newChunksCmd(g *globalOptions) *cobra.Command {
	var (
		page   int
		format string
		width  int
	)

	cmd := &cobra.Command{
		Use:   "chunks",
		Short: "Print the chunk table",
		Long: `Split the source with the configured chunk settings and print every chunk
with its page, index and character offsets.

Examples:
  playground chunks -s report.pdf
  playground chunks -s notes.md --page 2 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("unknown format %q", format)
			}
			a, err := g.open(cmd.Context(), openOptions{})
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.startupError(); err != nil {
				return err
			}

			chunks := a.session.Chunks(page)
			out := cmd.OutOrStdout()
			if format == "json" {
				data, err := json.MarshalIndent(chunks, "", "  ")
				if err != nil {
					return fmt.Errorf("marshaling JSON: %w", err)
				}
				fmt.Fprintf(out, "%s\n", data)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PAGE\tCHUNK\tSTART\tEND\tTEXT")
			for _, c := range chunks {
				fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%s\n", c.PageIndex, c.ChunkIndex, c.StartOffset, c.EndOffset, oneLine(c.Text, width))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&page, "page", -1, "Only chunks of this zero-based page; -1 for all pages")
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table, json)")
	cmd.Flags().IntVar(&width, "width", 60, "Truncate chunk text in the table to this many characters")
	return cmd
}

// oneLine collapses whitespace and shortens s to maxLen characters.
func oneLine(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if maxLen <= 0 || len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
