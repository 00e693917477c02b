// Package llm defines the Provider interface for language-model backends.
//
// A provider wraps a hosted or local model API (Gemini, OpenAI, Anthropic,
// Ollama, ...) behind a single blocking Complete call. Each call is one
// request to the backend; providers never retry on their own.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Usage holds token accounting information returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a reply.
type CompletionRequest struct {
	// Prompt is the user-turn text sent to the model. It must be non-empty.
	Prompt string

	// SystemPrompt is an optional instruction sent ahead of Prompt using the
	// backend's native system role. Leave empty to send Prompt alone.
	SystemPrompt string

	// Temperature in [0.0, 2.0]. Zero uses the provider default.
	Temperature float64

	// MaxTokens caps the reply length. Zero uses the provider default.
	MaxTokens int
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the reply.
	Content string

	// Usage contains token accounting for this request.
	Usage Usage
}

// Provider is the abstraction over any language-model backend.
type Provider interface {
	// Complete sends req to the model and waits for the full reply.
	// It returns an error if the request fails or ctx ends first.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
