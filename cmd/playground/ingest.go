package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newIngestCmd(g *globalOptions) *cobra.Command {
	var out, format string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build the knowledge graph from the chunks",
		Long: `Clear the entity store, extract entities and relationships from every chunk
and store them. The resulting graph is printed or written to --out.

Examples:
  playground ingest -s report.pdf --store sqlite://graph.db
  playground ingest -s report.pdf --out graph.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd.Context(), openOptions{graph: true})
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.startupError(); err != nil {
				return err
			}

			stats, err := a.session.IngestGraph(cmd.Context())
			if err != nil {
				return a.commandError(err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Ingested %d chunks: %d entities, %d relationships (%d heuristic) in %s\n",
				stats.Documents, stats.Entities, stats.Relationships, stats.Fallbacks, stats.Duration.Round(time.Millisecond))

			graph, err := a.session.Graph(cmd.Context())
			if err != nil {
				return err
			}
			return exportGraph(cmd.OutOrStdout(), graph, exportFormat(format, out), out)
		},
	}

	addExportFlags(cmd, &out, &format)
	return cmd
}
