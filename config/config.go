// Package config loads playground settings from defaults, an optional YAML
// file, a .env file and PLAYGROUND_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/smallnest/ragplayground/log"
	"github.com/smallnest/ragplayground/rag/engine"
	"github.com/smallnest/ragplayground/rag/highlight"
	"github.com/smallnest/ragplayground/rag/splitter"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PLAYGROUND_"

// Providers lists the supported language model providers.
var Providers = []string{"openai", "langchain-openai", "ollama", "fake"}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration for the playground.
type Config struct {
	Source     string            `yaml:"source"`
	Store      StoreConfig       `yaml:"store"`
	LLM        LLMConfig         `yaml:"llm"`
	Extraction ExtractionConfig  `yaml:"extraction"`
	Chunking   splitter.Config   `yaml:"chunking"`
	Retrieval  RetrievalConfig   `yaml:"retrieval"`
	Highlight  highlight.Palette `yaml:"highlight"`
	Server     ServerConfig      `yaml:"server"`
	LogLevel   string            `yaml:"log_level"`
}

// StoreConfig selects the entity store backend by URL.
type StoreConfig struct {
	URL string `yaml:"url"`
}

// LLMConfig selects a language model.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	// Responses are replayed by the fake provider.
	Responses []string `yaml:"responses"`
}

// ExtractionConfig configures entity extraction. Empty model fields fall
// back to the llm section.
type ExtractionConfig struct {
	LLMConfig         `yaml:",inline"`
	Prompt            string   `yaml:"prompt"`
	EntityTypes       []string `yaml:"entity_types"`
	RelationshipTypes []string `yaml:"relationship_types"`
}

// RetrievalConfig configures question answering.
type RetrievalConfig struct {
	K              int    `yaml:"k"`
	MaxDepth       int    `yaml:"max_depth"`
	PromptTemplate string `yaml:"prompt_template"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Override mutates a loaded configuration before validation. The CLI uses
// overrides for flags.
type Override func(*Config)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{URL: "memory://"},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Chunking: splitter.DefaultConfig(),
		Retrieval: RetrievalConfig{
			K:              engine.DefaultK,
			MaxDepth:       engine.DefaultMaxDepth,
			PromptTemplate: engine.DefaultPromptTemplate,
		},
		Highlight: highlight.DefaultPalette,
		Server:    ServerConfig{Addr: ":8080"},
		LogLevel:  "info",
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then .env, then the environment, then overrides. The result is
// validated.
func Load(path string, overrides ...Override) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// Variables already set take precedence over .env values.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s must be an integer: %v", ErrInvalid, EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}

	setString("SOURCE", &c.Source)
	setString("STORE_URL", &c.Store.URL)
	setString("LLM_PROVIDER", &c.LLM.Provider)
	setString("LLM_MODEL", &c.LLM.Model)
	setString("LLM_BASE_URL", &c.LLM.BaseURL)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	setString("LLM_API_KEY", &c.LLM.APIKey)
	setString("EXTRACTION_MODEL", &c.Extraction.Model)
	setString("SERVER_ADDR", &c.Server.Addr)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("PROMPT_TEMPLATE", &c.Retrieval.PromptTemplate)

	var strategy string
	setString("SPLIT_STRATEGY", &strategy)
	if strategy != "" {
		c.Chunking.Strategy = splitter.Strategy(strategy)
	}

	for key, dst := range map[string]*int{
		"CHUNK_SIZE":    &c.Chunking.ChunkSize,
		"CHUNK_OVERLAP": &c.Chunking.ChunkOverlap,
		"RETRIEVAL_K":   &c.Retrieval.K,
		"MAX_DEPTH":     &c.Retrieval.MaxDepth,
	} {
		if err := setInt(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Store.URL) == "" {
		errs = append(errs, errors.New("store.url is required"))
	}
	if !slices.Contains(Providers, c.LLM.Provider) {
		errs = append(errs, fmt.Errorf("llm.provider %q is not one of %s", c.LLM.Provider, strings.Join(Providers, ", ")))
	}
	if p := c.Extraction.Provider; p != "" && !slices.Contains(Providers, p) {
		errs = append(errs, fmt.Errorf("extraction.provider %q is not one of %s", p, strings.Join(Providers, ", ")))
	}
	if err := c.Chunking.Validate(); err != nil {
		errs = append(errs, err)
	} else {
		strategy, _ := splitter.ParseStrategy(string(c.Chunking.Strategy))
		c.Chunking.Strategy = strategy
	}
	if c.Retrieval.K < 1 {
		errs = append(errs, fmt.Errorf("retrieval.k must be at least 1, got %d", c.Retrieval.K))
	}
	if c.Retrieval.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("retrieval.max_depth must not be negative, got %d", c.Retrieval.MaxDepth))
	}
	if err := engine.ValidateTemplate(c.Retrieval.PromptTemplate); err != nil {
		errs = append(errs, err)
	}
	if len(c.Highlight.Colors) == 0 || c.Highlight.Overlap == "" {
		errs = append(errs, errors.New("highlight needs at least one color and an overlap color"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// ExtractionLLM returns the model settings used for entity extraction.
func (c *Config) ExtractionLLM() LLMConfig {
	out := c.Extraction.LLMConfig
	if out.Provider == "" {
		out.Provider = c.LLM.Provider
	}
	if out.Model == "" {
		out.Model = c.LLM.Model
	}
	if out.BaseURL == "" {
		out.BaseURL = c.LLM.BaseURL
	}
	if out.APIKey == "" {
		out.APIKey = c.LLM.APIKey
	}
	if len(out.Responses) == 0 {
		out.Responses = c.LLM.Responses
	}
	return out
}

// Level returns the parsed log level.
func (c *Config) Level() log.LogLevel {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.LogLevelInfo
	}
	return level
}
