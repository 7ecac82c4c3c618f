package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallnest/ragplayground/rag"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

// DefaultPromptTemplate is the QA prompt. {context} receives the retrieved
// fragments and {question} the trimmed question.
const DefaultPromptTemplate = "<context>\n{context}\n</context>\n<question>{question}</question>\n<instructions>Answer using only the CONTEXT facts. If insufficient, respond 'I don't know'.</instructions>"

var (
	// ErrEmptyQuestion is returned for a blank question.
	ErrEmptyQuestion = errors.New("empty question")
	// ErrNoModel is returned when no language model is configured.
	ErrNoModel = errors.New("no language model configured")
)

// Retriever returns the k fragments most related to a query.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]rag.Document, error)
}

// QAEngine answers questions from retrieved graph fragments.
type QAEngine struct {
	retriever Retriever
	llm       llms.Model
	opts      options
}

// NewQAEngine creates a QA engine.
func NewQAEngine(retriever Retriever, llm llms.Model, opts ...Option) (*QAEngine, error) {
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if llm == nil {
		return nil, ErrNoModel
	}
	o := newOptions(opts)
	if err := ValidateTemplate(o.promptTemplate); err != nil {
		return nil, err
	}
	return &QAEngine{retriever: retriever, llm: llm, opts: o}, nil
}

// PromptTemplate returns the configured template.
func (e *QAEngine) PromptTemplate() string {
	return e.opts.promptTemplate
}

// Query answers question with the configured template.
func (e *QAEngine) Query(ctx context.Context, question string) (*rag.QueryResult, error) {
	return e.QueryWithTemplate(ctx, question, "")
}

// QueryWithTemplate answers question with tmpl, or the configured template
// when tmpl is empty.
func (e *QAEngine) QueryWithTemplate(ctx context.Context, question, tmpl string) (*rag.QueryResult, error) {
	startTime := time.Now()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if tmpl == "" {
		tmpl = e.opts.promptTemplate
	}

	docs, err := e.retriever.Search(ctx, question, e.opts.k)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	contextStr := JoinContext(docs)

	prompt, err := FormatPrompt(tmpl, contextStr, question)
	if err != nil {
		return nil, err
	}

	answer, err := llms.GenerateFromSinglePrompt(ctx, e.llm, prompt, e.opts.callOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	responseTime := time.Since(startTime)
	e.opts.logger.Debug("answered %q with %d fragments in %v", question, len(docs), responseTime)

	return &rag.QueryResult{
		Query:        question,
		Answer:       answer,
		Context:      contextStr,
		Prompt:       prompt,
		Sources:      docs,
		ResponseTime: responseTime,
		Metadata: map[string]any{
			"k":         e.opts.k,
			"fragments": len(docs),
		},
	}, nil
}

// JoinContext joins fragment contents with blank lines.
func JoinContext(docs []rag.Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	return strings.Join(parts, "\n\n")
}

// FormatPrompt fills the {context} and {question} placeholders of tmpl.
// Literal braces must be doubled.
func FormatPrompt(tmpl, contextStr, question string) (string, error) {
	p := prompts.PromptTemplate{
		Template:       tmpl,
		InputVariables: []string{"context", "question"},
		TemplateFormat: prompts.TemplateFormatFString,
	}
	out, err := p.Format(map[string]any{
		"context":  contextStr,
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("failed to format prompt: %w", err)
	}
	return out, nil
}

// ValidateTemplate reports whether tmpl can be formatted.
func ValidateTemplate(tmpl string) error {
	if err := prompts.CheckValidTemplate(tmpl, prompts.TemplateFormatFString, []string{"context", "question"}); err != nil {
		return fmt.Errorf("invalid prompt template: %w", err)
	}
	return nil
}
