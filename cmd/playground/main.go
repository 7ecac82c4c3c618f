// Command playground explores chunking and Graph RAG over a document: it
// previews chunk coverage, builds a knowledge graph from the chunks and
// answers questions over it, from the terminal, a web UI or an MCP client.
package main

import (
	"fmt"
	"os"
)

// Version information, set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
