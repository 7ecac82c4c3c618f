// Package playground holds the state of an interactive Graph RAG session:
// the loaded pages, the chunk settings and chunk table, the highlighted page
// preview, the knowledge graph built from the chunks and the question
// answering state. Front ends (HTTP, MCP, CLI) drive a Session and subscribe
// to its changes.
package playground

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/ragplayground/log"
	"github.com/smallnest/ragplayground/metrics"
	"github.com/smallnest/ragplayground/rag"
	"github.com/smallnest/ragplayground/rag/engine"
	"github.com/smallnest/ragplayground/rag/highlight"
	"github.com/smallnest/ragplayground/rag/loader"
	"github.com/smallnest/ragplayground/rag/render"
	"github.com/smallnest/ragplayground/rag/splitter"
)

// Commands accepted by Dispatch.
const (
	CommandIngestGraph = "ingest_graph"
	CommandGraphAsk    = "graph_ask"
)

// Steps of the playground.
const (
	StepIngest = 1
	StepAsk    = 2
)

// NoPage is the preview of a page index outside the loaded pages.
const NoPage = "No page."

// User facing messages stored in State.Error.
const (
	msgLoaderError = "Loader error: "
	msgNoStore     = "No graph store provided."
	msgIngestError = "Graph ingest error: "
	msgEmptyQuery  = "Empty question."
	msgQAError     = "QA error: "
	msgChunkError  = "Chunking error: "
)

var (
	// ErrUnknownCommand is returned by Dispatch for unsupported commands.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNoStore is returned when a command needs a graph store and the
	// session has none.
	ErrNoStore = errors.New("no graph store provided")
	// ErrInvalidPage is returned for negative page indexes.
	ErrInvalidPage = errors.New("invalid page index")
	// ErrInvalidStep is returned for steps other than StepIngest and StepAsk.
	ErrInvalidStep = errors.New("invalid step")
)

// State is a snapshot of the session.
type State struct {
	ID                string            `json:"id"`
	CurrentStep       int               `json:"current_step"`
	SplitStrategy     splitter.Strategy `json:"split_strategy"`
	ChunkSize         int               `json:"chunk_size"`
	OverlapSize       int               `json:"overlap_size"`
	CurrentDocIndex   int               `json:"current_doc_index"`
	PageCount         int               `json:"page_count"`
	DocumentPreview   string            `json:"document_preview"`
	ChunksTable       []rag.Chunk       `json:"chunks_table"`
	GraphHTML         string            `json:"graph_html"`
	RAGQuery          string            `json:"rag_query"`
	RAGAnswer         string            `json:"rag_answer"`
	RAGPromptTemplate string            `json:"rag_prompt_template"`
	Error             string            `json:"error"`
}

// Settings is a partial update of the chunk settings. Nil fields are left
// unchanged.
type Settings struct {
	ChunkSize     *int    `json:"chunk_size,omitempty"`
	OverlapSize   *int    `json:"overlap_size,omitempty"`
	SplitStrategy *string `json:"split_strategy,omitempty"`
}

// Options configures a Session.
type Options struct {
	// Loader produces the pages. A nil loader yields no pages.
	Loader rag.DocumentLoader
	// Store persists the knowledge graph. Without a store the graph
	// commands fail with ErrNoStore.
	Store rag.EntityStore
	// ExtractionModel extracts entities during ingestion. Nil falls back to
	// the heuristic extractor.
	ExtractionModel llms.Model
	// LLM answers questions.
	LLM llms.Model

	Chunking     splitter.Config
	Palette      highlight.Palette
	GraphOptions []engine.Option
	QAOptions    []engine.Option
	HTML         render.HTMLOptions

	Metrics *metrics.Metrics
	Logger  log.Logger
}

// Session is the playground state machine. It is safe for concurrent use:
// state is guarded by one mutex and commands are serialized by another, so
// reads stay responsive while a long ingest is running.
type Session struct {
	id          string
	loader      rag.DocumentLoader
	graph       *engine.GraphStore
	qa          *engine.QAEngine
	highlighter *highlight.Highlighter
	htmlOpts    render.HTMLOptions
	metrics     *metrics.Metrics
	logger      log.Logger

	cmdMu sync.Mutex

	mu         sync.Mutex
	pages      []string
	state      State
	lastResult *rag.QueryResult

	listeners listeners
}

// New creates a session: it loads the pages, sets the default prompt
// template, builds the chunk table and renders the preview of page 0. A
// loader failure is reported in State.Error and leaves the session without
// pages.
func New(ctx context.Context, opts Options) (*Session, error) {
	s := &Session{
		id:          uuid.New().String(),
		loader:      opts.Loader,
		highlighter: highlight.New(highlight.WithPalette(opts.Palette)),
		htmlOpts:    opts.HTML,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
	if s.logger == nil {
		s.logger = log.GetDefaultLogger()
	}
	if s.htmlOpts == (render.HTMLOptions{}) {
		s.htmlOpts = render.DefaultHTMLOptions()
	}

	if opts.Store != nil {
		graphOpts := append([]engine.Option{engine.WithLogger(s.logger)}, opts.GraphOptions...)
		g, err := engine.NewGraphStore(opts.Store, opts.ExtractionModel, graphOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create graph store: %w", err)
		}
		s.graph = g

		if opts.LLM != nil {
			qaOpts := append([]engine.Option{engine.WithLogger(s.logger)}, opts.QAOptions...)
			qa, err := engine.NewQAEngine(g, opts.LLM, qaOpts...)
			if err != nil {
				return nil, fmt.Errorf("failed to create QA engine: %w", err)
			}
			s.qa = qa
		}
	}

	chunking := opts.Chunking
	if chunking == (splitter.Config{}) {
		chunking = splitter.DefaultConfig()
	}
	if strategy, err := splitter.ParseStrategy(string(chunking.Strategy)); err == nil {
		chunking.Strategy = strategy
	}

	template := engine.DefaultPromptTemplate
	if s.qa != nil {
		template = s.qa.PromptTemplate()
	}

	s.state = State{
		ID:                s.id,
		CurrentStep:       StepIngest,
		SplitStrategy:     chunking.Strategy,
		ChunkSize:         chunking.ChunkSize,
		OverlapSize:       chunking.ChunkOverlap,
		RAGPromptTemplate: template,
	}

	if err := s.load(ctx); err != nil {
		s.logger.Warn("failed to load pages: %v", err)
		s.state.Error = msgLoaderError + err.Error()
	}
	if err := s.rechunkLocked(); err != nil {
		s.state.Error = msgChunkError + err.Error()
	}
	s.updatePreviewLocked()

	s.logger.Info("playground session %s ready: %d pages, %d chunks", s.id, len(s.pages), len(s.state.ChunksTable))
	return s, nil
}

func (s *Session) load(ctx context.Context) error {
	s.pages = nil
	s.state.PageCount = 0
	if s.loader == nil {
		return nil
	}
	docs, err := s.loader.Load(ctx)
	if err != nil {
		return err
	}
	s.pages = loader.Pages(docs)
	s.state.PageCount = len(s.pages)
	return nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// GraphStore returns the graph store, or nil when the session has no store.
func (s *Session) GraphStore() *engine.GraphStore { return s.graph }

// Palette returns the highlight palette of the preview.
func (s *Session) Palette() highlight.Palette { return s.highlighter.Palette() }

// State returns a snapshot of the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	st := s.state
	st.ChunksTable = append([]rag.Chunk(nil), s.state.ChunksTable...)
	return st
}

// Subscribe registers l for state changes. The returned function removes it.
// Listeners run with no session lock held, so they may call back into the
// session, commands included.
func (s *Session) Subscribe(l Listener) (cancel func()) {
	return s.listeners.add(l)
}

// commit snapshots the state, releases the state lock and notifies the
// listeners. The caller must hold s.mu and must not hold s.cmdMu.
func (s *Session) commit(fields ...string) State {
	st := s.snapshotLocked()
	s.mu.Unlock()
	s.deliver(Change{Fields: fields, State: st})
	return st
}

// stage is commit for code running under s.cmdMu: the change is queued on q
// and delivered once the command has released s.cmdMu.
func (s *Session) stage(q *[]Change, fields ...string) State {
	st := s.snapshotLocked()
	s.mu.Unlock()
	*q = append(*q, Change{Fields: fields, State: st})
	return st
}

func (s *Session) deliver(changes ...Change) {
	for _, c := range changes {
		s.listeners.notify(c, func(r any) {
			s.logger.Error("playground listener panicked: %v", r)
		})
	}
}

// Reload runs the loader again, replacing the pages wholesale and
// rebuilding the chunk table.
func (s *Session) Reload(ctx context.Context) error {
	var changes []Change
	defer func() { s.deliver(changes...) }()
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	var docs []rag.Document
	var err error
	if s.loader != nil {
		docs, err = s.loader.Load(ctx)
	}

	s.mu.Lock()
	s.state.Error = ""
	if err != nil {
		s.pages = nil
		s.state.Error = msgLoaderError + err.Error()
	} else {
		s.pages = loader.Pages(docs)
	}
	s.state.PageCount = len(s.pages)
	if cerr := s.rechunkLocked(); cerr != nil && err == nil {
		s.state.Error = msgChunkError + cerr.Error()
	}
	s.updatePreviewLocked()
	s.stage(&changes, FieldPageCount, FieldChunksTable, FieldDocumentPreview, FieldError)

	if err != nil {
		return fmt.Errorf("failed to load pages: %w", err)
	}
	return nil
}

// SetChunkSize changes the chunk size and rebuilds the chunk table.
func (s *Session) SetChunkSize(size int) error {
	return s.UpdateSettings(Settings{ChunkSize: &size})
}

// SetOverlapSize changes the chunk overlap and rebuilds the chunk table.
func (s *Session) SetOverlapSize(overlap int) error {
	return s.UpdateSettings(Settings{OverlapSize: &overlap})
}

// SetSplitStrategy changes the split strategy and rebuilds the chunk table.
func (s *Session) SetSplitStrategy(strategy string) error {
	return s.UpdateSettings(Settings{SplitStrategy: &strategy})
}

// UpdateSettings applies the non-nil settings at once and rebuilds the chunk
// table and preview. Invalid settings leave an empty chunk table and set
// State.Error; the error is also returned.
func (s *Session) UpdateSettings(settings Settings) error {
	s.mu.Lock()

	fields := []string{FieldChunksTable, FieldDocumentPreview, FieldError}
	if settings.ChunkSize != nil {
		s.state.ChunkSize = *settings.ChunkSize
		fields = append(fields, FieldChunkSize)
	}
	if settings.OverlapSize != nil {
		s.state.OverlapSize = *settings.OverlapSize
		fields = append(fields, FieldOverlapSize)
	}
	if settings.SplitStrategy != nil {
		strategy := splitter.Strategy(*settings.SplitStrategy)
		if parsed, err := splitter.ParseStrategy(*settings.SplitStrategy); err == nil {
			strategy = parsed
		}
		s.state.SplitStrategy = strategy
		fields = append(fields, FieldSplitStrategy)
	}

	err := s.rechunkLocked()
	if err != nil {
		s.state.Error = msgChunkError + err.Error()
	} else if strings.HasPrefix(s.state.Error, msgChunkError) {
		s.state.Error = ""
	}
	s.updatePreviewLocked()
	s.commit(fields...)
	return err
}

func (s *Session) chunkConfigLocked() splitter.Config {
	return splitter.Config{
		ChunkSize:    s.state.ChunkSize,
		ChunkOverlap: s.state.OverlapSize,
		Strategy:     s.state.SplitStrategy,
	}
}

// rechunkLocked regenerates the chunk table from scratch.
func (s *Session) rechunkLocked() error {
	chunks, err := splitter.ChunkPages(s.pages, s.chunkConfigLocked())
	if err != nil {
		s.state.ChunksTable = nil
		return err
	}
	s.state.ChunksTable = chunks
	s.metrics.ObserveChunks(len(s.pages), len(chunks))
	s.logger.Debug("rebuilt chunk table: %d chunks over %d pages", len(chunks), len(s.pages))
	return nil
}

func (s *Session) updatePreviewLocked() {
	idx := s.state.CurrentDocIndex
	if idx < 0 || idx >= len(s.pages) {
		s.state.DocumentPreview = NoPage
		return
	}
	s.state.DocumentPreview = s.highlighter.Render(s.pages[idx], rag.PageSpans(s.state.ChunksTable, idx))
}

// SetPage selects the previewed page. Indexes past the last page are
// accepted and preview as NoPage.
func (s *Session) SetPage(index int) error {
	if index < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPage, index)
	}
	s.mu.Lock()
	s.state.CurrentDocIndex = index
	s.updatePreviewLocked()
	s.commit(FieldCurrentDocIndex, FieldDocumentPreview)
	return nil
}

// NextPage moves the preview one page forward.
func (s *Session) NextPage() State {
	s.mu.Lock()
	s.state.CurrentDocIndex++
	s.updatePreviewLocked()
	return s.commit(FieldCurrentDocIndex, FieldDocumentPreview)
}

// PrevPage moves the preview one page back. It does nothing on page 0.
func (s *Session) PrevPage() State {
	s.mu.Lock()
	if s.state.CurrentDocIndex <= 0 {
		st := s.snapshotLocked()
		s.mu.Unlock()
		return st
	}
	s.state.CurrentDocIndex--
	s.updatePreviewLocked()
	return s.commit(FieldCurrentDocIndex, FieldDocumentPreview)
}

// SetStep switches between StepIngest and StepAsk.
func (s *Session) SetStep(step int) error {
	if step != StepIngest && step != StepAsk {
		return fmt.Errorf("%w: %d", ErrInvalidStep, step)
	}
	s.mu.Lock()
	s.state.CurrentStep = step
	s.commit(FieldCurrentStep)
	return nil
}

// SetQuery sets the question asked by the graph_ask command.
func (s *Session) SetQuery(query string) {
	s.mu.Lock()
	s.state.RAGQuery = query
	s.commit(FieldRAGQuery)
}

// SetPromptTemplate replaces the prompt template. The template is checked
// when a question is asked.
func (s *Session) SetPromptTemplate(tmpl string) {
	s.mu.Lock()
	s.state.RAGPromptTemplate = tmpl
	s.commit(FieldRAGPromptTemplate)
}

// Page returns the text of page index and the highlight spans of its located
// chunks.
func (s *Session) Page(index int) (string, []highlight.Span, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.pages) {
		return "", nil, false
	}
	return s.pages[index], rag.PageSpans(s.state.ChunksTable, index), true
}

// Chunks returns the chunks of page, or every chunk when page is negative.
func (s *Session) Chunks(page int) []rag.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]rag.Chunk, 0, len(s.state.ChunksTable))
	for _, c := range s.state.ChunksTable {
		if page < 0 || c.PageIndex == page {
			out = append(out, c)
		}
	}
	return out
}

// LastResult returns the result of the last answered question.
func (s *Session) LastResult() *rag.QueryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult
}

// Graph returns the stored knowledge graph.
func (s *Session) Graph(ctx context.Context) (render.Graph, error) {
	if s.graph == nil {
		return render.Graph{}, ErrNoStore
	}
	entities, err := s.graph.Entities(ctx)
	if err != nil {
		return render.Graph{}, fmt.Errorf("failed to load entities: %w", err)
	}
	return render.BuildGraph(entities), nil
}

// Dispatch runs a command. The error field is cleared first; a failing
// command stores a user facing message in State.Error and returns the
// error.
func (s *Session) Dispatch(ctx context.Context, command string) error {
	switch command {
	case CommandIngestGraph:
		_, err := s.IngestGraph(ctx)
		return err
	case CommandGraphAsk:
		_, err := s.answer(ctx)
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
}

// IngestGraph clears the store, ingests every chunk as a document and renders
// the resulting graph.
func (s *Session) IngestGraph(ctx context.Context) (engine.IngestStats, error) {
	var changes []Change
	defer func() { s.deliver(changes...) }()
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	started := time.Now()
	stats, err := s.ingest(ctx, &changes)
	s.metrics.ObserveCommand(CommandIngestGraph, started, err)
	return stats, err
}

func (s *Session) ingest(ctx context.Context, q *[]Change) (engine.IngestStats, error) {
	s.mu.Lock()
	s.state.Error = ""
	chunks := append([]rag.Chunk(nil), s.state.ChunksTable...)
	if s.graph == nil {
		s.state.Error = msgNoStore
		s.stage(q, FieldError)
		return engine.IngestStats{}, ErrNoStore
	}
	s.stage(q, FieldError)

	html, stats, err := s.buildGraph(ctx, chunks)
	if err != nil {
		s.logger.Error("graph ingest failed: %v", err)
		s.mu.Lock()
		s.state.Error = msgIngestError + err.Error()
		s.stage(q, FieldError)
		return stats, fmt.Errorf("graph ingest: %w", err)
	}

	s.mu.Lock()
	s.state.GraphHTML = html
	s.stage(q, FieldGraphHTML)
	return stats, nil
}

func (s *Session) buildGraph(ctx context.Context, chunks []rag.Chunk) (string, engine.IngestStats, error) {
	if err := s.graph.Clear(ctx); err != nil {
		return "", engine.IngestStats{}, fmt.Errorf("failed to clear store: %w", err)
	}

	docs := make([]rag.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = rag.Document{
			ID:      fmt.Sprintf("page-%d-chunk-%d", c.PageIndex, c.ChunkIndex),
			Content: c.Text,
			Metadata: map[string]any{
				"page":  c.PageIndex,
				"chunk": c.ChunkIndex,
			},
		}
	}

	stats, err := s.graph.AddDocuments(ctx, docs)
	if err != nil {
		return "", stats, err
	}

	entities, err := s.graph.Entities(ctx)
	if err != nil {
		return "", stats, fmt.Errorf("failed to load entities: %w", err)
	}
	s.metrics.ObserveEntities(len(entities))

	html, err := render.HTML(render.BuildGraph(entities), s.htmlOpts)
	if err != nil {
		return "", stats, err
	}
	return html, stats, nil
}

// Ask sets the query and answers it.
func (s *Session) Ask(ctx context.Context, question string) (*rag.QueryResult, error) {
	s.SetQuery(question)
	return s.answer(ctx)
}

func (s *Session) answer(ctx context.Context) (*rag.QueryResult, error) {
	var changes []Change
	defer func() { s.deliver(changes...) }()
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	started := time.Now()
	res, err := s.ask(ctx, &changes)
	s.metrics.ObserveCommand(CommandGraphAsk, started, err)
	return res, err
}

func (s *Session) ask(ctx context.Context, q *[]Change) (*rag.QueryResult, error) {
	s.mu.Lock()
	s.state.Error = ""
	question := strings.TrimSpace(s.state.RAGQuery)
	tmpl := s.state.RAGPromptTemplate
	if question == "" {
		s.state.Error = msgEmptyQuery
		s.stage(q, FieldError)
		return nil, engine.ErrEmptyQuestion
	}

	var err error
	switch {
	case s.graph == nil:
		err = ErrNoStore
	case s.qa == nil:
		err = engine.ErrNoModel
	}
	if err != nil {
		s.state.Error = msgQAError + err.Error()
		s.stage(q, FieldError)
		return nil, err
	}
	s.stage(q, FieldError)

	res, err := s.qa.QueryWithTemplate(ctx, question, tmpl)
	if err != nil {
		s.logger.Error("question answering failed: %v", err)
		s.mu.Lock()
		s.state.Error = msgQAError + err.Error()
		s.stage(q, FieldError)
		return nil, err
	}

	s.mu.Lock()
	s.state.RAGAnswer = res.Answer
	s.lastResult = res
	s.stage(q, FieldRAGAnswer)
	return res, nil
}
