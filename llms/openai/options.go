package openai

import (
	"net/http"
	"os"
	"time"

	"github.com/tmc/langchaingo/callbacks"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

type options struct {
	apiKey           string
	model            string
	httpClient       *http.Client
	callbacksHandler callbacks.Handler
	baseURL          string
	maxRetries       int
	retryDelay       time.Duration
}

// Option is a function that configures an LLM.
type Option func(*options)

// WithAPIKey sets the API key for the LLM.
func WithAPIKey(apiKey string) Option {
	return func(opts *options) {
		opts.apiKey = apiKey
	}
}

// WithModel sets the model name for the LLM.
func WithModel(model string) Option {
	return func(opts *options) {
		if model != "" {
			opts.model = model
		}
	}
}

// WithHTTPClient sets the HTTP client for the LLM.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *options) {
		opts.httpClient = client
	}
}

// WithCallbacks sets the callbacks handler for the LLM.
func WithCallbacks(handler callbacks.Handler) Option {
	return func(opts *options) {
		opts.callbacksHandler = handler
	}
}

// WithBaseURL sets the base URL for the API, including the version path.
// Default is "https://api.openai.com/v1".
func WithBaseURL(baseURL string) Option {
	return func(opts *options) {
		opts.baseURL = baseURL
	}
}

// WithRetry sets how many times a failed request is retried and the delay
// before the first retry. The delay doubles on every attempt.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(opts *options) {
		opts.maxRetries = max(maxRetries, 0)
		opts.retryDelay = delay
	}
}

// getEnvOrDefault retrieves an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
