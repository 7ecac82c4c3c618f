package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	source     string
	storeURL   string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "playground",
		Short: "Chunking and Graph RAG playground",
		Long: `Playground loads a document, splits it into chunks and shows which
characters every chunk covers. It can turn the chunks into a knowledge graph
and answer questions from that graph.

Settings come from an optional YAML file, a .env file and PLAYGROUND_*
environment variables; flags override all of them.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&opts.source, "source", "s", "", "Document to load (pdf, txt, md, html, csv or a directory)")
	flags.StringVar(&opts.storeURL, "store", "", "Entity store URL (memory://, redis://, sqlite://, postgres://, mongodb://)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error, none)")

	cmd.AddCommand(
		newChunksCmd(opts),
		newPreviewCmd(opts),
		newIngestCmd(opts),
		newAskCmd(opts),
		newGraphCmd(opts),
		newServeCmd(opts),
		newMCPCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "playground %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Built:  %s\n", date)
		},
	}
}
