// RAG Playground - Seeing How Chunking Shapes Graph RAG
//
// RAG Playground loads a document, splits it into chunks and shows exactly
// which characters every chunk covers. The same chunks can then be turned
// into a knowledge graph by a language model and queried in natural
// language, so the effect of chunk size, overlap and splitting strategy on
// the graph and on the answers is visible end to end.
//
// # Quick Start
//
// Install the command:
//
//	go install github.com/smallnest/ragplayground/cmd/playground@latest
//
// Inspect the chunks of a PDF and preview one page with its coverage:
//
//	playground chunks -s report.pdf
//	playground preview -s report.pdf --page 2
//
// Build the graph into a persistent store and ask a question:
//
//	export OPENAI_API_KEY=...
//	playground ingest -s report.pdf --store sqlite://graph.db --out graph.html
//	playground ask --store sqlite://graph.db "Who founded Acme?"
//
// Or run everything from the browser:
//
//	playground serve -s report.pdf
//
// Embedding a session in a Go program:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		"github.com/smallnest/ragplayground/llms/openai"
//		"github.com/smallnest/ragplayground/playground"
//		"github.com/smallnest/ragplayground/rag/loader"
//		"github.com/smallnest/ragplayground/store/memory"
//	)
//
//	func main() {
//		ctx := context.Background()
//		l, _ := loader.New("report.pdf")
//		llm, _ := openai.New()
//
//		session, _ := playground.New(ctx, playground.Options{
//			Loader:          l,
//			Store:           memory.NewMemoryEntityStore(),
//			ExtractionModel: llm,
//			LLM:             llm,
//		})
//
//		fmt.Println(session.State().DocumentPreview)
//
//		if _, err := session.IngestGraph(ctx); err != nil {
//			panic(err)
//		}
//		res, _ := session.Ask(ctx, "What is the report about?")
//		fmt.Println(res.Answer)
//	}
//
// # Key Features
//
//   - Chunk coverage highlighting: runs of characters sharing the same chunks,
//     with overlaps marked
//   - Fixed, recursive and Markdown aware splitting with character offsets
//   - LLM entity extraction into a document shaped knowledge graph
//   - Graph RAG question answering with an editable prompt template
//   - Entity stores for memory, Redis, SQLite, PostgreSQL and MongoDB
//   - Web UI with live updates, an MCP server and a CLI
//
// # Package Structure
//
//	playground/      Session state machine driven by every front end
//	rag/highlight/   Coverage runs, HTML and terminal highlighting
//	rag/splitter/    Chunking strategies and chunk location
//	rag/loader/      PDF, text, Markdown, HTML and CSV page loaders
//	rag/engine/      Entity extraction, graph traversal and QA
//	rag/render/      Interactive HTML, Mermaid, DOT and ASCII graph views
//	store/           Entity store backends
//	llms/openai/     OpenAI compatible chat model
//	server/          HTTP API, server-sent events and web UI
//	mcptools/        MCP tools over stdio
//	config/          YAML, .env and environment configuration
//	metrics/         Prometheus collectors
//	log/             Leveled logger
//	cmd/playground/  Command line interface
package ragplayground
