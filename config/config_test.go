package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/smallnest/ragplayground/log"
	"github.com/smallnest/ragplayground/rag/engine"
	"github.com/smallnest/ragplayground/rag/splitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment does
// not leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SOURCE", "STORE_URL", "LLM_PROVIDER", "LLM_MODEL", "LLM_BASE_URL", "LLM_API_KEY",
		"EXTRACTION_MODEL", "SERVER_ADDR", "LOG_LEVEL", "PROMPT_TEMPLATE", "SPLIT_STRATEGY",
		"CHUNK_SIZE", "CHUNK_OVERLAP", "RETRIEVAL_K", "MAX_DEPTH",
	} {
		t.Setenv(EnvPrefix+key, "")
	}
	t.Setenv("OPENAI_API_KEY", "")
	t.Chdir(t.TempDir())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "memory://", cfg.Store.URL)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, splitter.DefaultConfig(), cfg.Chunking)
	assert.Equal(t, engine.DefaultK, cfg.Retrieval.K)
	assert.Equal(t, engine.DefaultMaxDepth, cfg.Retrieval.MaxDepth)
	assert.Equal(t, engine.DefaultPromptTemplate, cfg.Retrieval.PromptTemplate)
	assert.Len(t, cfg.Highlight.Colors, 3)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, log.LogLevelInfo, cfg.Level())
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "playground.yaml", `
source: docs/report.pdf
store:
  url: redis://localhost:6379/0
llm:
  provider: fake
  responses: ["I don't know"]
extraction:
  model: gpt-4o
  entity_types: [Person, Organization]
chunking:
  size: 256
  overlap: 32
  strategy: recursive
retrieval:
  k: 3
  max_depth: 1
highlight:
  colors: ["#fff"]
  overlap: "#000"
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "docs/report.pdf", cfg.Source)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Store.URL)
	assert.Equal(t, "fake", cfg.LLM.Provider)
	assert.Equal(t, splitter.Config{ChunkSize: 256, ChunkOverlap: 32, Strategy: splitter.Recursive}, cfg.Chunking)
	assert.Equal(t, 3, cfg.Retrieval.K)
	assert.Equal(t, 1, cfg.Retrieval.MaxDepth)
	assert.Equal(t, engine.DefaultPromptTemplate, cfg.Retrieval.PromptTemplate)
	assert.Equal(t, []string{"#fff"}, cfg.Highlight.Colors)
	assert.Equal(t, log.LogLevelDebug, cfg.Level())

	ex := cfg.ExtractionLLM()
	assert.Equal(t, "fake", ex.Provider)
	assert.Equal(t, "gpt-4o", ex.Model)
	assert.Equal(t, []string{"I don't know"}, ex.Responses)
	assert.Equal(t, []string{"Person", "Organization"}, cfg.Extraction.EntityTypes)
}

func TestLoad_EnvAndOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("PLAYGROUND_CHUNK_SIZE", "100")
	t.Setenv("PLAYGROUND_CHUNK_OVERLAP", "10")
	t.Setenv("PLAYGROUND_SPLIT_STRATEGY", "markdown-aware")
	t.Setenv("PLAYGROUND_STORE_URL", "sqlite://:memory:")
	t.Setenv("PLAYGROUND_LOG_LEVEL", "warn")

	cfg, err := Load("", func(c *Config) {
		c.Store.URL = "mongodb://localhost:27017/graphrag"
	})
	require.NoError(t, err)

	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, 100, cfg.Chunking.ChunkSize)
	assert.Equal(t, 10, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, splitter.Markdown, cfg.Chunking.Strategy)
	assert.Equal(t, "mongodb://localhost:27017/graphrag", cfg.Store.URL)
	assert.Equal(t, log.LogLevelWarn, cfg.Level())

	t.Setenv("PLAYGROUND_LLM_API_KEY", "sk-playground")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-playground", cfg.LLM.APIKey)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.Unsetenv("PLAYGROUND_SERVER_ADDR"))
	t.Cleanup(func() { _ = os.Unsetenv("PLAYGROUND_SERVER_ADDR") })

	wd, err := os.Getwd()
	require.NoError(t, err)
	writeFile(t, wd, ".env", "PLAYGROUND_SERVER_ADDR=127.0.0.1:9999\n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	bad := writeFile(t, t.TempDir(), "bad.yaml", "chunking: [oops")
	_, err = Load(bad)
	assert.ErrorContains(t, err, "failed to parse config file")

	t.Setenv("PLAYGROUND_CHUNK_SIZE", "big")
	_, err = Load("")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"store", func(c *Config) { c.Store.URL = " " }, "store.url is required"},
		{"provider", func(c *Config) { c.LLM.Provider = "gemini" }, `llm.provider "gemini"`},
		{"extraction provider", func(c *Config) { c.Extraction.Provider = "x" }, `extraction.provider "x"`},
		{"overlap", func(c *Config) { c.Chunking.ChunkOverlap = c.Chunking.ChunkSize }, "overlap"},
		{"strategy", func(c *Config) { c.Chunking.Strategy = "semantic" }, "unknown split strategy"},
		{"k", func(c *Config) { c.Retrieval.K = 0 }, "retrieval.k"},
		{"depth", func(c *Config) { c.Retrieval.MaxDepth = -1 }, "retrieval.max_depth"},
		{"template", func(c *Config) { c.Retrieval.PromptTemplate = "{answer}" }, "invalid prompt template"},
		{"palette", func(c *Config) { c.Highlight.Colors = nil }, "highlight"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalid)
			assert.ErrorContains(t, err, tt.want)
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestValidate_NormalizesStrategy(t *testing.T) {
	cfg := Default()
	cfg.Chunking.Strategy = "RECURSIVE"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, splitter.Recursive, cfg.Chunking.Strategy)
}
