// Package mcptools exposes a playground session as MCP tools so an agent can
// tune chunking, inspect chunks, build the knowledge graph and ask
// questions over it.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/smallnest/ragplayground/log"
	"github.com/smallnest/ragplayground/playground"
	"github.com/smallnest/ragplayground/rag/highlight"
	"github.com/smallnest/ragplayground/rag/render"
	"github.com/smallnest/ragplayground/rag/splitter"
)

// Name is the MCP server name.
const Name = "rag-playground"

// Server wraps a session and exposes it as an MCP server.
type Server struct {
	session   *playground.Session
	mcpServer *server.MCPServer
	logger    log.Logger
}

// NewServer creates the MCP server for session and registers its tools.
func NewServer(session *playground.Session, version string, logger log.Logger) *Server {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	s := &Server{
		session: session,
		mcpServer: server.NewMCPServer(Name, version,
			server.WithToolCapabilities(false),
			server.WithInstructions("Tune chunking with chunk_settings, inspect chunks with list_chunks and preview_page, "+
				"then call build_knowledge_graph before ask_graph."),
		),
		logger: logger,
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio serves the tools on stdin and stdout until a termination
// signal arrives.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	strategies := make([]string, 0, 3)
	for _, st := range splitter.Strategies() {
		strategies = append(strategies, string(st))
	}

	s.mcpServer.AddTool(mcp.NewTool("chunk_settings",
		mcp.WithDescription("Read or change the chunk settings. Omitted fields keep their value. Returns the settings and chunk counts."),
		mcp.WithNumber("chunk_size", mcp.Description("Chunk size in characters"), mcp.Min(1)),
		mcp.WithNumber("overlap_size", mcp.Description("Overlap between consecutive chunks in characters"), mcp.Min(0)),
		mcp.WithString("split_strategy", mcp.Description("Splitting strategy"), mcp.Enum(strategies...)),
	), s.handleChunkSettings)

	s.mcpServer.AddTool(mcp.NewTool("list_chunks",
		mcp.WithDescription("List the chunk table: page index, chunk index, text and character offsets."),
		mcp.WithNumber("page", mcp.Description("Zero-based page index; omit for every page")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of chunks to return"), mcp.DefaultNumber(50)),
	), s.handleListChunks)

	s.mcpServer.AddTool(mcp.NewTool("preview_page",
		mcp.WithDescription("Show a page with its chunk coverage, either as highlighted HTML or as runs of characters sharing the same chunks."),
		mcp.WithNumber("page", mcp.Required(), mcp.Description("Zero-based page index")),
		mcp.WithString("format", mcp.Description("Output format"), mcp.Enum("html", "runs"), mcp.DefaultString("html")),
	), s.handlePreviewPage)

	s.mcpServer.AddTool(mcp.NewTool("build_knowledge_graph",
		mcp.WithDescription("Clear the graph store, extract entities from every chunk and store the knowledge graph."),
	), s.handleBuildGraph)

	s.mcpServer.AddTool(mcp.NewTool("ask_graph",
		mcp.WithDescription("Answer a question from the knowledge graph."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question")),
		mcp.WithString("prompt_template", mcp.Description("Prompt template with {context} and {question} placeholders")),
	), s.handleAsk)

	s.mcpServer.AddTool(mcp.NewTool("graph_export",
		mcp.WithDescription("Export the stored knowledge graph."),
		mcp.WithString("format", mcp.Description("Export format"), mcp.Enum("mermaid", "dot", "ascii", "json"), mcp.DefaultString("mermaid")),
	), s.handleGraphExport)
}

type settingsResult struct {
	ChunkSize     int               `json:"chunk_size"`
	OverlapSize   int               `json:"overlap_size"`
	SplitStrategy splitter.Strategy `json:"split_strategy"`
	Pages         int               `json:"pages"`
	Chunks        int               `json:"chunks"`
}

func (s *Server) handleChunkSettings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	var settings playground.Settings
	changed := false
	if _, ok := args["chunk_size"]; ok {
		v := request.GetInt("chunk_size", 0)
		settings.ChunkSize = &v
		changed = true
	}
	if _, ok := args["overlap_size"]; ok {
		v := request.GetInt("overlap_size", 0)
		settings.OverlapSize = &v
		changed = true
	}
	if _, ok := args["split_strategy"]; ok {
		v := request.GetString("split_strategy", "")
		settings.SplitStrategy = &v
		changed = true
	}

	if changed {
		if err := s.session.UpdateSettings(settings); err != nil {
			return mcp.NewToolResultErrorFromErr("invalid chunk settings", err), nil
		}
	}

	st := s.session.State()
	return mcp.NewToolResultJSON(settingsResult{
		ChunkSize:     st.ChunkSize,
		OverlapSize:   st.OverlapSize,
		SplitStrategy: st.SplitStrategy,
		Pages:         st.PageCount,
		Chunks:        len(st.ChunksTable),
	})
}

func (s *Server) handleListChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chunks := s.session.Chunks(request.GetInt("page", -1))
	if limit := request.GetInt("limit", 50); limit > 0 && len(chunks) > limit {
		chunks = chunks[:limit]
	}
	data, err := json.Marshal(chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chunks: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

type runResult struct {
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Text   string `json:"text"`
	Chunks []int  `json:"chunks"`
}

func (s *Server) handlePreviewPage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := request.RequireInt("page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, spans, ok := s.session.Page(page)
	if !ok {
		return mcp.NewToolResultError(playground.NoPage), nil
	}

	switch format := request.GetString("format", "html"); format {
	case "html":
		h := highlight.New(highlight.WithPalette(s.session.Palette()))
		return mcp.NewToolResultText(h.Render(text, spans)), nil
	case "runs":
		runs := highlight.Runs(text, spans)
		out := make([]runResult, len(runs))
		for i, r := range runs {
			out[i] = runResult{Start: r.Start, End: r.End, Text: r.Text, Chunks: r.Chunks}
		}
		data, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("failed to encode runs: %w", err)
		}
		return mcp.NewToolResultText(string(data)), nil
	default:
		return mcp.NewToolResultErrorf("unknown format %q", format), nil
	}
}

func (s *Server) handleBuildGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.session.IngestGraph(ctx)
	if err != nil {
		return mcp.NewToolResultError(s.failure(err)), nil
	}
	return mcp.NewToolResultJSON(stats)
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if tmpl := request.GetString("prompt_template", ""); tmpl != "" {
		s.session.SetPromptTemplate(tmpl)
	}

	res, err := s.session.Ask(ctx, question)
	if err != nil {
		return mcp.NewToolResultError(s.failure(err)), nil
	}
	return mcp.NewToolResultText(res.Answer), nil
}

func (s *Server) handleGraphExport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, err := s.session.Graph(ctx)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("graph export failed", err), nil
	}

	exporter := render.NewExporter(g)
	switch format := request.GetString("format", "mermaid"); format {
	case "mermaid":
		return mcp.NewToolResultText(exporter.DrawMermaid()), nil
	case "dot":
		return mcp.NewToolResultText(exporter.DrawDOT()), nil
	case "ascii":
		return mcp.NewToolResultText(exporter.DrawASCII()), nil
	case "json":
		return mcp.NewToolResultJSON(g)
	default:
		return mcp.NewToolResultErrorf("unknown format %q", format), nil
	}
}

// failure prefers the user facing message the session stored.
func (s *Server) failure(err error) string {
	s.logger.Warn("mcp tool failed: %v", err)
	if msg := s.session.State().Error; msg != "" && !errors.Is(err, context.Canceled) {
		return msg
	}
	return err.Error()
}
