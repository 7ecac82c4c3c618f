package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smallnest/ragplayground/playground"
	"github.com/smallnest/ragplayground/rag/highlight"
)

func newPreviewCmd(g *globalOptions) *cobra.Command {
	var (
		page   int
		asHTML bool
		legend bool
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show a page with its chunk coverage highlighted",
		Long: `Render one page with a background colour per chunk. Characters covered by
two or more chunks use the overlap colour; uncovered characters are plain.

Examples:
  playground preview -s report.pdf --page 3
  playground preview -s notes.md --html > page.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd.Context(), openOptions{})
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.startupError(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			text, spans, ok := a.session.Page(page)
			if !ok {
				fmt.Fprintln(out, playground.NoPage)
				return nil
			}
			if asHTML {
				h := highlight.New(highlight.WithPalette(a.session.Palette()))
				fmt.Fprintln(out, h.Render(text, spans))
				return nil
			}

			t := highlight.NewTerminal(out, highlight.WithTerminalPalette(a.terminalPalette()))
			fmt.Fprintln(out, t.Render(text, spans))
			if legend {
				fmt.Fprintln(out)
				fmt.Fprintln(out, t.Legend())
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 0, "Zero-based page index")
	cmd.Flags().BoolVar(&asHTML, "html", false, "Print the highlighted HTML fragment instead of terminal colours")
	cmd.Flags().BoolVar(&legend, "legend", true, "Print the colour legend after the page")
	return cmd
}
