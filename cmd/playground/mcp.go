package main

import (
	"github.com/spf13/cobra"

	"github.com/smallnest/ragplayground/mcptools"
)

func newMCPCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the playground as MCP tools over stdio",
		Long: `Run the playground as an MCP (Model Context Protocol) server so an agent can
tune chunking, inspect chunks, build the knowledge graph and ask questions.
Logs go to stderr; stdout carries the protocol.`,
		Example: `  # claude_desktop_config.json
  # {
  #   "mcpServers": {
  #     "rag-playground": {
  #       "command": "playground",
  #       "args": ["mcp", "-s", "/path/to/report.pdf", "--store", "sqlite:///tmp/graph.db"]
  #     }
  #   }
  # }`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd.Context(), openOptions{graph: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if msg := a.session.State().Error; msg != "" {
				a.logger.Warn("%s", msg)
			}
			return mcptools.NewServer(a.session, version, a.logger).ServeStdio()
		},
	}
}
