package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

func newAskCmd(g *globalOptions) *cobra.Command {
	var (
		raw      bool
		ingest   bool
		template string
		sources  bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the knowledge graph",
		Long: `Retrieve the entities related to the question from the knowledge graph and
ask the language model to answer from them. The answer is rendered as
Markdown unless --raw is given.

With the in-memory store the graph only lives for one command; pass --ingest
to build it first.

Examples:
  playground ask --store sqlite://graph.db "Who founded Acme?"
  playground ask -s report.pdf --ingest --raw "What does Acme sell?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd.Context(), openOptions{graph: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if ingest {
				if err := a.startupError(); err != nil {
					return err
				}
				if _, err := a.session.IngestGraph(cmd.Context()); err != nil {
					return a.commandError(err)
				}
			}
			if template != "" {
				a.session.SetPromptTemplate(template)
			}

			res, err := a.session.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return a.commandError(err)
			}

			out := cmd.OutOrStdout()
			answer := res.Answer
			if !raw {
				answer, err = renderMarkdown(res.Answer)
				if err != nil {
					return err
				}
			}
			fmt.Fprintln(out, strings.TrimRight(answer, "\n"))

			if sources {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Sources:")
				for _, doc := range res.Sources {
					fmt.Fprintf(out, "  - %s\n", oneLine(doc.Content, 100))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the answer without Markdown rendering")
	cmd.Flags().BoolVar(&ingest, "ingest", false, "Build the knowledge graph from the source before asking")
	cmd.Flags().StringVar(&template, "template", "", "Prompt template with {context} and {question} placeholders")
	cmd.Flags().BoolVar(&sources, "sources", false, "List the graph fragments the answer was built from")
	return cmd
}

func renderMarkdown(md string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return r.Render(md)
}
