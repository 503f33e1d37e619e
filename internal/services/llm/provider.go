package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/forgeml/ragsmith/internal/common"
	"github.com/forgeml/ragsmith/internal/interfaces"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
	// ProviderLocal uses an OpenAI-compatible server on localhost
	ProviderLocal ProviderType = "local"
)

// Factory routes chat and embedding requests to the provider implied by
// the model string, falling back to the configured default. It
// implements interfaces.LLMService. Calls are single-attempt: transient
// failures surface to the caller, which treats them as a rejection of
// the current chunk rather than retryable work.
type Factory struct {
	config  *common.Config
	logger  arbor.ILogger
	limiter *rate.Limiter

	geminiClient *geminiClient
	claudeClient *claudeClient
	localClient  *localClient
}

// NewFactory creates a provider factory. Clients are created lazily on
// first use so a run that never touches a provider needs no credentials
// for it.
func NewFactory(config *common.Config, logger arbor.ILogger) *Factory {
	var limiter *rate.Limiter
	if rpm := config.LLM.RequestsPerMinute; rpm > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
	}

	return &Factory{
		config:  config,
		logger:  logger,
		limiter: limiter,
	}
}

// DetectProvider determines the provider type from a model string.
// Model strings can be:
// - "claude-sonnet-4-20250514" -> Claude
// - "claude/claude-sonnet-4-20250514" -> Claude (with prefix)
// - "gemini-2.5-flash" -> Gemini
// - "local/qwen2.5-7b" -> Local (with prefix)
// - Empty string -> uses default provider from config
func (f *Factory) DetectProvider(model string) ProviderType {
	if model == "" {
		return ProviderType(f.config.LLM.DefaultProvider)
	}

	model = strings.ToLower(model)

	// Check for explicit provider prefix
	if strings.HasPrefix(model, "claude/") || strings.HasPrefix(model, "anthropic/") {
		return ProviderClaude
	}
	if strings.HasPrefix(model, "gemini/") || strings.HasPrefix(model, "google/") {
		return ProviderGemini
	}
	if strings.HasPrefix(model, "local/") || strings.HasPrefix(model, "ollama/") {
		return ProviderLocal
	}

	// Check for model name patterns
	if strings.HasPrefix(model, "claude-") {
		return ProviderClaude
	}
	if strings.HasPrefix(model, "gemini-") {
		return ProviderGemini
	}

	// Default to configured provider
	return ProviderType(f.config.LLM.DefaultProvider)
}

// NormalizeModel removes provider prefix from model name if present
func (f *Factory) NormalizeModel(model string) string {
	prefixes := []string{"claude/", "anthropic/", "gemini/", "google/", "local/", "ollama/"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

// Chat generates a completion using the provider implied by the request
// model. One outbound call per invocation; no retry.
func (f *Factory) Chat(ctx context.Context, req *interfaces.ChatRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for chat completion")
	}

	provider := f.DetectProvider(req.Model)
	model := f.NormalizeModel(req.Model)

	if err := f.wait(ctx); err != nil {
		return "", err
	}

	f.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Int("message_count", len(req.Messages)).
		Bool("schema", req.ResponseSchema != nil).
		Msg("Generating content with provider")

	switch provider {
	case ProviderClaude:
		return f.claude().chat(ctx, req, model)
	case ProviderGemini:
		return f.gemini().chat(ctx, req, model)
	case ProviderLocal:
		return f.local().chat(ctx, req, model)
	default:
		return f.gemini().chat(ctx, req, model)
	}
}

// Embed encodes each input text into a fixed-dimension vector using the
// configured embedding provider. Claude exposes no embedding API, so a
// Claude chat model pairs with the Gemini or local embedder.
func (f *Factory) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty for embedding")
	}

	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	provider := ProviderType(f.config.EffectiveEmbedProvider())

	f.logger.Debug().
		Str("provider", string(provider)).
		Int("text_count", len(texts)).
		Msg("Generating embeddings")

	var vectors [][]float32
	var err error
	switch provider {
	case ProviderLocal:
		vectors, err = f.local().embed(ctx, texts)
	default:
		vectors, err = f.gemini().embed(ctx, texts)
	}
	if err != nil {
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d vectors for %d texts", len(vectors), len(texts))
	}

	return vectors, nil
}

// HealthCheck verifies the default chat provider and the embedding
// provider can handle requests.
func (f *Factory) HealthCheck(ctx context.Context) error {
	switch ProviderType(f.config.LLM.DefaultProvider) {
	case ProviderClaude:
		if err := f.claude().healthCheck(ctx); err != nil {
			return fmt.Errorf("claude health check failed: %w", err)
		}
	case ProviderLocal:
		if err := f.local().healthCheck(ctx); err != nil {
			return fmt.Errorf("local server health check failed: %w", err)
		}
	default:
		if err := f.gemini().healthCheck(ctx); err != nil {
			return fmt.Errorf("gemini health check failed: %w", err)
		}
	}

	if ProviderType(f.config.EffectiveEmbedProvider()) == ProviderLocal {
		if err := f.local().healthCheck(ctx); err != nil {
			return fmt.Errorf("local embedding server health check failed: %w", err)
		}
	}

	return nil
}

// Close releases all provider clients
func (f *Factory) Close() error {
	f.geminiClient = nil
	f.claudeClient = nil
	f.localClient = nil
	return nil
}

// wait blocks until the outbound request throttle admits another call.
func (f *Factory) wait(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return nil
}

func (f *Factory) claude() *claudeClient {
	if f.claudeClient == nil {
		f.claudeClient = newClaudeClient(&f.config.Claude, f.logger)
	}
	return f.claudeClient
}

func (f *Factory) gemini() *geminiClient {
	if f.geminiClient == nil {
		f.geminiClient = newGeminiClient(&f.config.Gemini, f.logger)
	}
	return f.geminiClient
}

func (f *Factory) local() *localClient {
	if f.localClient == nil {
		f.localClient = newLocalClient(&f.config.Local, f.logger)
	}
	return f.localClient
}
