package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
)

var (
	ErrEmptyResponse = errors.New("no response")
	ErrNotSetAuth    = errors.New("api key is not set")
)

// LLM is an llms.Model backed by the go-openai chat completion client. It
// works with any OpenAI compatible endpoint.
type LLM struct {
	client           *openai.Client
	model            string
	maxRetries       int
	retryDelay       time.Duration
	CallbacksHandler callbacks.Handler
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI chat client.
//
// Authentication options:
// 1. WithAPIKey(apiKey) - pass API key directly
// 2. Set OPENAI_API_KEY environment variable
//
// Example:
//
//	llm, err := openai.New(
//		openai.WithAPIKey("your-api-key"),
//		openai.WithModel("gpt-4o-mini"),
//	)
func New(opts ...Option) (*LLM, error) {
	options := &options{
		apiKey:     getEnvOrDefault("OPENAI_API_KEY", ""),
		model:      DefaultModel,
		baseURL:    getEnvOrDefault("OPENAI_BASE_URL", ""),
		maxRetries: 2,
		retryDelay: time.Second,
	}

	for _, opt := range opts {
		opt(options)
	}

	if options.apiKey == "" {
		return nil, fmt.Errorf(`%w
You can pass auth info by using openai.New(openai.WithAPIKey("{API Key}"))
or
export OPENAI_API_KEY={API Key}`, ErrNotSetAuth)
	}

	config := openai.DefaultConfig(options.apiKey)
	if options.baseURL != "" {
		config.BaseURL = strings.TrimRight(options.baseURL, "/")
	}
	if options.httpClient != nil {
		config.HTTPClient = options.httpClient
	}

	return &LLM{
		client:           openai.NewClientWithConfig(config),
		model:            options.model,
		maxRetries:       options.maxRetries,
		retryDelay:       options.retryDelay,
		CallbacksHandler: options.callbacksHandler,
	}, nil
}

// Call generates a response from the LLM for the given prompt.
func (o *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, o, prompt, options...)
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if o.CallbacksHandler != nil {
		o.CallbacksHandler.HandleLLMGenerateContentStart(ctx, messages)
	}

	opts := &llms.CallOptions{}
	for _, opt := range options {
		opt(opts)
	}

	req := openai.ChatCompletionRequest{
		Model:       o.modelFor(*opts),
		Messages:    toChatMessages(messages),
		Temperature: float32(opts.Temperature),
		TopP:        float32(opts.TopP),
		MaxTokens:   opts.MaxTokens,
		Stop:        opts.StopWords,
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	result, err := o.createWithRetry(ctx, req)
	if err != nil {
		if o.CallbacksHandler != nil {
			o.CallbacksHandler.HandleLLMError(ctx, err)
		}
		return nil, err
	}

	resp := &llms.ContentResponse{Choices: make([]*llms.ContentChoice, 0, len(result.Choices))}
	for _, c := range result.Choices {
		resp.Choices = append(resp.Choices, &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: string(c.FinishReason),
			GenerationInfo: map[string]any{
				"prompt_tokens":     result.Usage.PromptTokens,
				"completion_tokens": result.Usage.CompletionTokens,
				"total_tokens":      result.Usage.TotalTokens,
			},
		})
	}

	if o.CallbacksHandler != nil {
		o.CallbacksHandler.HandleLLMGenerateContentEnd(ctx, resp)
	}

	return resp, nil
}

func (o *LLM) createWithRetry(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return openai.ChatCompletionResponse{}, ctx.Err()
			case <-time.After(o.retryDelay << (attempt - 1)):
			}
		}

		resp, err := o.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			if !retryable(err) {
				break
			}
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, ErrEmptyResponse)
			continue
		}
		return resp, nil
	}
	return openai.ChatCompletionResponse{}, fmt.Errorf("chat completion failed: %w", lastErr)
}

// retryable reports whether err is worth another attempt: rate limits,
// server errors and transport failures are, client errors are not.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	return true
}

func (o *LLM) modelFor(opts llms.CallOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return o.model
}

func toChatMessages(messages []llms.MessageContent) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case llms.ChatMessageTypeAI:
			role = openai.ChatMessageRoleAssistant
		case llms.ChatMessageTypeSystem:
			role = openai.ChatMessageRoleSystem
		case llms.ChatMessageTypeTool:
			role = openai.ChatMessageRoleTool
		}

		var content strings.Builder
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				content.WriteString(text.Text)
			}
		}

		out = append(out, openai.ChatCompletionMessage{
			Role:    role,
			Content: content.String(),
		})
	}
	return out
}
