package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/ragplayground/rag"
)

const testConfig = `llm:
  provider: fake
  responses: ["Alice works at Acme."]
chunking:
  size: 64
  overlap: 0
  strategy: fixed
log_level: none
`

// setup isolates the command from the caller's environment and writes a
// two page document plus a config using the fake model.
func setup(t *testing.T) (configPath, source string) {
	t.Helper()
	for _, key := range []string{
		"PLAYGROUND_SOURCE", "PLAYGROUND_STORE_URL", "PLAYGROUND_LLM_PROVIDER", "PLAYGROUND_LLM_MODEL",
		"PLAYGROUND_LLM_API_KEY", "PLAYGROUND_CHUNK_SIZE", "PLAYGROUND_CHUNK_OVERLAP", "PLAYGROUND_SPLIT_STRATEGY",
		"PLAYGROUND_LOG_LEVEL", "PLAYGROUND_PROMPT_TEMPLATE", "PLAYGROUND_EXTRACTION_MODEL", "OPENAI_API_KEY",
	} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	t.Chdir(dir)

	configPath = filepath.Join(dir, "playground.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0o644))
	source = filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(source, []byte("abcdefghij\fAlice works at Acme."), 0o644))
	return configPath, source
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "playground", cmd.Use)
	assert.NotEmpty(t, cmd.Long)

	names := make([]string, 0)
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"chunks", "preview", "ingest", "ask", "graph", "serve", "mcp", "version"} {
		assert.Contains(t, names, want)
	}

	for _, flag := range []string{"config", "source", "store", "log-level"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "--%s", flag)
	}
}

func TestChunksCmd(t *testing.T) {
	cfg, source := setup(t)

	out, _, err := run(t, "chunks", "-c", cfg, "-s", source)
	require.NoError(t, err)
	assert.Contains(t, out, "PAGE")
	assert.Contains(t, out, "abcdefghij")
	assert.Contains(t, out, "Alice works at Acme.")

	out, _, err = run(t, "chunks", "-c", cfg, "-s", source, "--page", "1", "--format", "json")
	require.NoError(t, err)
	var chunks []rag.Chunk
	require.NoError(t, json.Unmarshal([]byte(out), &chunks))
	require.Len(t, chunks, 1)
	assert.Equal(t, rag.Chunk{PageIndex: 1, ChunkIndex: 0, Text: "Alice works at Acme.", StartOffset: 0, EndOffset: 20}, chunks[0])

	_, _, err = run(t, "chunks", "-c", cfg, "-s", source, "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestChunksCmd_Errors(t *testing.T) {
	cfg, _ := setup(t)

	_, _, err := run(t, "chunks", "-c", cfg, "-s", "missing.pdf")
	assert.Error(t, err)

	_, _, err = run(t, "chunks", "-c", "missing.yaml")
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestPreviewCmd(t *testing.T) {
	cfg, source := setup(t)

	out, _, err := run(t, "preview", "-c", cfg, "-s", source, "--html")
	require.NoError(t, err)
	assert.Equal(t, `<span style="background:rgba(227,252,247,.9)">abcdefghij</span>`+"\n", out)

	out, _, err = run(t, "preview", "-c", cfg, "-s", source, "--page", "1", "--legend=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice works at Acme.")

	out, _, err = run(t, "preview", "-c", cfg, "-s", source, "--page", "7")
	require.NoError(t, err)
	assert.Equal(t, "No page.\n", out)
}

func TestIngestCmd(t *testing.T) {
	cfg, source := setup(t)
	target := filepath.Join(t.TempDir(), "graph.mmd")

	out, stderr, err := run(t, "ingest", "-c", cfg, "-s", source, "--out", target)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "Ingested 2 chunks")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "flowchart LR")
	assert.Contains(t, string(data), "Alice")

	out, _, err = run(t, "ingest", "-c", cfg, "-s", source, "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"nodes"`)

	_, _, err = run(t, "ingest", "-c", cfg, "-s", source, "--format", "svg")
	assert.ErrorContains(t, err, "unknown graph format")
}

func TestAskCmd(t *testing.T) {
	cfg, source := setup(t)

	out, _, err := run(t, "ask", "-c", cfg, "-s", source, "--ingest", "--raw", "Where", "does", "Alice", "work?")
	require.NoError(t, err)
	assert.Equal(t, "Alice works at Acme.\n", out)

	_, _, err = run(t, "ask", "-c", cfg, "-s", source, " ")
	assert.EqualError(t, err, "Empty question.")

	_, _, err = run(t, "ask", "-c", cfg)
	assert.Error(t, err)
}

func TestGraphCmd_Empty(t *testing.T) {
	cfg, _ := setup(t)

	out, _, err := run(t, "graph", "-c", cfg, "--store", "memory://")
	require.NoError(t, err)
	assert.Equal(t, "Empty graph\n", out)

	_, _, err = run(t, "graph", "-c", cfg, "--store", "ftp://nowhere")
	assert.ErrorContains(t, err, "unsupported store url")
}

func TestExportFormat(t *testing.T) {
	tests := []struct {
		format, out, want string
	}{
		{"", "", "ascii"},
		{"", "graph.HTML", "html"},
		{"", "graph.mmd", "mermaid"},
		{"", "graph.gv", "dot"},
		{"", "graph.json", "json"},
		{"dot", "graph.html", "dot"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exportFormat(tt.format, tt.out), "format=%q out=%q", tt.format, tt.out)
	}
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine("a\n b\tc", 10))
	assert.Equal(t, "abcdefg...", oneLine("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", oneLine("abcdef", 2))
	assert.Equal(t, "abcdef", oneLine("abcdef", 0))
}

func TestVersionCmd(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "playground dev")
}
