package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smallnest/ragplayground/rag/render"
)

var graphFormats = []string{"ascii", "mermaid", "dot", "json", "html"}

func newGraphCmd(g *globalOptions) *cobra.Command {
	var out, format string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Export the stored knowledge graph",
		Long: `Export the entities of the configured store as a graph. Use a persistent
store (redis, sqlite, postgres, mongodb) to export a graph built by an
earlier ingest.

Examples:
  playground graph --store sqlite://graph.db --format mermaid
  playground graph --store redis://localhost:6379/0 --out graph.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd.Context(), openOptions{graph: true})
			if err != nil {
				return err
			}
			defer a.Close()

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

func addExportFlags(cmd *cobra.Command, out, format *string) {
	cmd.Flags().StringVarP(out, "out", "o", "", "Write the graph to this file instead of stdout")
	cmd.Flags().StringVarP(format, "format", "f", "", "Graph format ("+strings.Join(graphFormats, ", ")+"); defaults by --out extension, else ascii")
}

// exportFormat picks the explicit format, else one matching the output
// file extension, else ascii.
func exportFormat(format, out string) string {
	if format != "" {
		return format
	}
	switch strings.ToLower(filepath.Ext(out)) {
	case ".html", ".htm":
		return "html"
	case ".mmd", ".mermaid":
		return "mermaid"
	case ".dot", ".gv":
		return "dot"
	case ".json":
		return "json"
	}
	return "ascii"
}

func exportGraph(stdout io.Writer, g render.Graph, format, out string) error {
	var data string
	exporter := render.NewExporter(g)
	switch format {
	case "ascii":
		data = exporter.DrawASCII()
	case "mermaid":
		data = exporter.DrawMermaid()
	case "dot":
		data = exporter.DrawDOT()
	case "json":
		b, err := json.MarshalIndent(g, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		data = string(b) + "\n"
	case "html":
		page, err := render.HTML(g, render.DefaultHTMLOptions())
		if err != nil {
			return err
		}
		data = page
	default:
		return fmt.Errorf("unknown graph format %q", format)
	}

	if out == "" {
		_, err := io.WriteString(stdout, data)
		return err
	}
	if err := os.WriteFile(out, []byte(data), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	return nil
}
