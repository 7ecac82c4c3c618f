// Package server exposes a playground session over HTTP: a small web UI,
// a JSON API mirroring the session operations, a server-sent event stream
// of state changes and the Prometheus metrics.
package server

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/smallnest/ragplayground/log"
	"github.com/smallnest/ragplayground/metrics"
	"github.com/smallnest/ragplayground/playground"
	"github.com/smallnest/ragplayground/rag/render"
)

//go:embed web/index.html
var indexHTML []byte

// Options configures the handler.
type Options struct {
	// Metrics is served on /metrics when set.
	Metrics *metrics.Metrics
	Logger  log.Logger
	// HTML configures the graph page of /api/graph?format=html.
	HTML render.HTMLOptions
}

// Server serves one session.
type Server struct {
	session *playground.Session
	metrics *metrics.Metrics
	logger  log.Logger
	html    render.HTMLOptions
}

// NewHandler creates the HTTP handler for session.
func NewHandler(session *playground.Session, opts Options) http.Handler {
	s := &Server{
		session: session,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		html:    opts.HTML,
	}
	if s.logger == nil {
		s.logger = log.GetDefaultLogger()
	}
	if s.html == (render.HTMLOptions{}) {
		s.html = render.DefaultHTMLOptions()
	}
	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  printLogger{s.logger},
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Patch("/settings", s.handleSettings)
		r.Put("/page", s.handleSetPage)
		r.Post("/page/next", s.handleNextPage)
		r.Post("/page/prev", s.handlePrevPage)
		r.Put("/step", s.handleStep)
		r.Put("/query", s.handleQuery)
		r.Put("/prompt", s.handlePrompt)
		r.Post("/commands", s.handleCommand)
		r.Get("/graph", s.handleGraph)
		r.Get("/answer", s.handleAnswer)
		r.Get("/events", s.handleEvents)
	})
	return r
}

// printLogger adapts log.Logger to chi's request logger.
type printLogger struct {
	log.Logger
}

func (l printLogger) Print(v ...any) {
	l.Info("%s", fmt.Sprint(v...))
}

type errorResponse struct {
	Error string            `json:"error"`
	State *playground.State `json:"state,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "session": s.session.ID()})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var settings playground.Settings
	if !s.decode(w, r, &settings) {
		return
	}
	if err := s.session.UpdateSettings(settings); err != nil {
		st := s.session.State()
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), State: &st})
		return
	}
	s.writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleSetPage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Index int `json:"index"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.session.SetPage(body.Index); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleNextPage(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.NextPage())
}

func (s *Server) handlePrevPage(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.PrevPage())
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Step int `json:"step"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.session.SetStep(body.Step); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	s.session.SetQuery(body.Query)
	s.writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Template string `json:"template"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	s.session.SetPromptTemplate(body.Template)
	s.writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Command string `json:"command"`
	}
	if !s.decode(w, r, &body) {
		return
	}

	err := s.session.Dispatch(r.Context(), body.Command)
	switch {
	case errors.Is(err, playground.ErrUnknownCommand):
		s.writeError(w, http.StatusBadRequest, err)
	case err != nil:
		st := s.session.State()
		msg := st.Error
		if msg == "" {
			msg = err.Error()
		}
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: msg, State: &st})
	default:
		s.writeJSON(w, http.StatusOK, s.session.State())
	}
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "html"
	}
	switch format {
	case "html", "mermaid", "dot", "json":
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown graph format %q", format))
		return
	}

	g, err := s.session.Graph(r.Context())
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	switch format {
	case "json":
		s.writeJSON(w, http.StatusOK, g)
	case "mermaid":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(render.NewExporter(g).DrawMermaid()))
	case "dot":
		w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
		_, _ = w.Write([]byte(render.NewExporter(g).DrawDOT()))
	default:
		page, err := render.HTML(g, s.html)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}
}

type answerResponse struct {
	Question string `json:"question"`
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
	Prompt   string `json:"prompt,omitempty"`
	Sources  int    `json:"sources"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	st := s.session.State()
	resp := answerResponse{
		Question: st.RAGQuery,
		Markdown: st.RAGAnswer,
		HTML:     RenderMarkdown(st.RAGAnswer),
	}
	if res := s.session.LastResult(); res != nil {
		resp.Prompt = res.Prompt
		resp.Sources = len(res.Sources)
	}
	s.writeJSON(w, http.StatusOK, resp)
}
