package interfaces

import (
	"context"
)

// Message represents a single message in a chat conversation
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// ChatRequest is a provider-agnostic chat completion request.
// When ResponseSchema is set, providers with native structured output
// (Gemini, llama-server) enforce it; other providers rely on the prompt
// and the caller validates the decoded result.
type ChatRequest struct {
	Model          string
	Messages       []Message
	Temperature    float32
	ResponseSchema map[string]interface{}
}

// LLMService provides chat completion and text embedding operations.
// All calls are blocking; one outbound request per invocation, no
// internal retries.
type LLMService interface {
	// Chat generates a completion for the given request and returns the
	// raw response text.
	Chat(ctx context.Context, req *ChatRequest) (string, error)

	// Embed encodes each input string into a fixed-dimension vector.
	// The returned slice is index-aligned with the input.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// HealthCheck verifies the service can handle requests.
	HealthCheck(ctx context.Context) error

	// Close releases provider clients.
	Close() error
}
