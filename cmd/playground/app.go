package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/fake"
	"github.com/tmc/langchaingo/llms/ollama"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/smallnest/ragplayground/config"
	"github.com/smallnest/ragplayground/llms/openai"
	"github.com/smallnest/ragplayground/log"
	"github.com/smallnest/ragplayground/metrics"
	"github.com/smallnest/ragplayground/playground"
	"github.com/smallnest/ragplayground/rag"
	"github.com/smallnest/ragplayground/rag/engine"
	"github.com/smallnest/ragplayground/rag/highlight"
	"github.com/smallnest/ragplayground/rag/loader"
	"github.com/smallnest/ragplayground/store"
)

// app is everything a subcommand needs: the configuration, the logger and
// a session over the configured source.
type app struct {
	cfg     *config.Config
	logger  log.Logger
	store   rag.EntityStore
	session *playground.Session
}

type openOptions struct {
	// graph opens the entity store and the language models.
	graph   bool
	metrics *metrics.Metrics
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	return config.Load(o.configPath, func(c *config.Config) {
		if o.source != "" {
			c.Source = o.source
		}
		if o.storeURL != "" {
			c.Store.URL = o.storeURL
		}
		if o.logLevel != "" {
			c.LogLevel = o.logLevel
		}
	})
}

func (o *globalOptions) open(ctx context.Context, oo openOptions) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logger := log.NewDefaultLogger(cfg.Level())
	log.SetDefaultLogger(logger)

	a := &app{cfg: cfg, logger: logger}
	sessionOpts := playground.Options{
		Chunking: cfg.Chunking,
		Palette:  cfg.Highlight,
		Metrics:  oo.metrics,
		Logger:   logger,
	}

	if cfg.Source != "" {
		l, err := loader.New(cfg.Source)
		if err != nil {
			return nil, err
		}
		sessionOpts.Loader = l
	}

	if oo.graph {
		st, err := store.NewEntityStore(ctx, cfg.Store.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open entity store: %w", err)
		}
		a.store = st
		sessionOpts.Store = st

		extraction, err := newModel(cfg.ExtractionLLM())
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create extraction model: %w", err)
		}
		sessionOpts.ExtractionModel = extraction

		model, err := newModel(cfg.LLM)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create language model: %w", err)
		}
		sessionOpts.LLM = model

		sessionOpts.GraphOptions = graphOptions(cfg)
		sessionOpts.QAOptions = []engine.Option{
			engine.WithK(cfg.Retrieval.K),
			engine.WithPromptTemplate(cfg.Retrieval.PromptTemplate),
		}
	}

	session, err := playground.New(ctx, sessionOpts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.session = session
	return a, nil
}

func graphOptions(cfg *config.Config) []engine.Option {
	opts := []engine.Option{engine.WithMaxDepth(cfg.Retrieval.MaxDepth)}
	if cfg.Extraction.Prompt != "" {
		opts = append(opts, engine.WithExtractionPrompt(cfg.Extraction.Prompt))
	}
	if len(cfg.Extraction.EntityTypes) > 0 {
		opts = append(opts, engine.WithAllowedEntityTypes(cfg.Extraction.EntityTypes...))
	}
	if len(cfg.Extraction.RelationshipTypes) > 0 {
		opts = append(opts, engine.WithAllowedRelationshipTypes(cfg.Extraction.RelationshipTypes...))
	}
	return opts
}

// Close releases the entity store.
func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// startupError returns the loader or chunking failure recorded while the
// session was created.
func (a *app) startupError() error {
	if msg := a.session.State().Error; msg != "" {
		return errors.New(msg)
	}
	return nil
}

// commandError prefers the user facing message the session stored for a
// failed command.
func (a *app) commandError(err error) error {
	if msg := a.session.State().Error; msg != "" {
		return errors.New(msg)
	}
	return err
}

// terminalPalette uses the configured palette when every colour is a hex
// colour a terminal can show.
func (a *app) terminalPalette() highlight.Palette {
	p := a.cfg.Highlight
	if !strings.HasPrefix(p.Overlap, "#") {
		return highlight.DefaultTerminalPalette
	}
	for _, c := range p.Colors {
		if !strings.HasPrefix(c, "#") {
			return highlight.DefaultTerminalPalette
		}
	}
	return p
}

func newModel(cfg config.LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case "langchain-openai":
		opts := []lcopenai.Option{lcopenai.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, lcopenai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, lcopenai.WithBaseURL(cfg.BaseURL))
		}
		return lcopenai.New(opts...)
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		return ollama.New(opts...)
	case "fake":
		return fake.NewFakeLLM(cfg.Responses), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}
