package engine

import (
	"github.com/smallnest/ragplayground/log"
	"github.com/tmc/langchaingo/llms"
)

const (
	// DefaultK is the number of fragments retrieved per question.
	DefaultK = 5
	// DefaultMaxDepth is the number of relationship hops followed from the
	// entities named in a question.
	DefaultMaxDepth = 2
)

type options struct {
	logger            log.Logger
	callOptions       []llms.CallOption
	extractionPrompt  string
	queryPrompt       string
	entityTypes       []string
	relationshipTypes []string
	maxDepth          int
	promptTemplate    string
	k                 int
}

// Option configures a GraphStore or a QAEngine.
type Option func(*options)

func newOptions(opts []Option) options {
	o := options{
		extractionPrompt: DefaultExtractionPrompt,
		queryPrompt:      DefaultQueryPrompt,
		maxDepth:         DefaultMaxDepth,
		promptTemplate:   DefaultPromptTemplate,
		k:                DefaultK,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.GetDefaultLogger()
	}
	return o
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCallOptions passes options to every model call.
func WithCallOptions(opts ...llms.CallOption) Option {
	return func(o *options) { o.callOptions = append(o.callOptions, opts...) }
}

// WithExtractionPrompt replaces the entity extraction prompt. The template
// uses f-string placeholders {text}, {entity_types} and {relationship_types}.
func WithExtractionPrompt(tmpl string) Option {
	return func(o *options) {
		if tmpl != "" {
			o.extractionPrompt = tmpl
		}
	}
}

// WithQueryPrompt replaces the prompt used to find entity names in a
// question. Placeholders: {question}, {entity_types}.
func WithQueryPrompt(tmpl string) Option {
	return func(o *options) {
		if tmpl != "" {
			o.queryPrompt = tmpl
		}
	}
}

// WithAllowedEntityTypes restricts extracted entities to the given types.
func WithAllowedEntityTypes(types ...string) Option {
	return func(o *options) { o.entityTypes = types }
}

// WithAllowedRelationshipTypes restricts extracted relationships to the
// given types.
func WithAllowedRelationshipTypes(types ...string) Option {
	return func(o *options) { o.relationshipTypes = types }
}

// WithMaxDepth sets the traversal depth used by Search.
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		if depth >= 0 {
			o.maxDepth = depth
		}
	}
}

// WithPromptTemplate sets the QA prompt template.
func WithPromptTemplate(tmpl string) Option {
	return func(o *options) {
		if tmpl != "" {
			o.promptTemplate = tmpl
		}
	}
}

// WithK sets the number of fragments retrieved per question.
func WithK(k int) Option {
	return func(o *options) {
		if k > 0 {
			o.k = k
		}
	}
}
