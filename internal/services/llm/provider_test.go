package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/forgeml/ragsmith/internal/common"
	"github.com/forgeml/ragsmith/internal/interfaces"
)

func newTestFactory(defaultProvider string) *Factory {
	config := common.DefaultConfig()
	config.LLM.DefaultProvider = defaultProvider
	return NewFactory(config, arbor.NewLogger())
}

func TestDetectProvider(t *testing.T) {
	factory := newTestFactory("gemini")

	tests := []struct {
		model string
		want  ProviderType
	}{
		{model: "claude-sonnet-4-20250514", want: ProviderClaude},
		{model: "claude/claude-sonnet-4-20250514", want: ProviderClaude},
		{model: "anthropic/claude-haiku", want: ProviderClaude},
		{model: "gemini-2.5-flash", want: ProviderGemini},
		{model: "gemini/gemini-2.5-pro", want: ProviderGemini},
		{model: "google/gemini-2.5-flash", want: ProviderGemini},
		{model: "local/qwen2.5-7b", want: ProviderLocal},
		{model: "ollama/llama3.1", want: ProviderLocal},
		{model: "CLAUDE-SONNET-4", want: ProviderClaude},
		{model: "qwen2.5-7b", want: ProviderGemini}, // falls back to default
		{model: "", want: ProviderGemini},           // empty uses default
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, factory.DetectProvider(tt.model))
		})
	}
}

func TestDetectProvider_DefaultFallback(t *testing.T) {
	factory := newTestFactory("claude")

	assert.Equal(t, ProviderClaude, factory.DetectProvider(""))
	assert.Equal(t, ProviderClaude, factory.DetectProvider("mystery-model"))

	// Explicit model strings still win over the default.
	assert.Equal(t, ProviderGemini, factory.DetectProvider("gemini-2.5-flash"))
}

func TestNormalizeModel(t *testing.T) {
	factory := newTestFactory("gemini")

	tests := []struct {
		model string
		want  string
	}{
		{model: "claude/claude-sonnet-4", want: "claude-sonnet-4"},
		{model: "anthropic/claude-haiku", want: "claude-haiku"},
		{model: "gemini/gemini-2.5-flash", want: "gemini-2.5-flash"},
		{model: "local/qwen2.5-7b", want: "qwen2.5-7b"},
		{model: "ollama/llama3.1", want: "llama3.1"},
		{model: "claude-sonnet-4", want: "claude-sonnet-4"},
		{model: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, factory.NormalizeModel(tt.model))
		})
	}
}

func TestChat_RejectsEmptyMessages(t *testing.T) {
	factory := newTestFactory("gemini")

	_, err := factory.Chat(context.Background(), &interfaces.ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "messages cannot be empty")
}

func TestEmbed_RejectsEmptyInput(t *testing.T) {
	factory := newTestFactory("gemini")

	_, err := factory.Embed(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "texts cannot be empty")
}

func TestConvertMessagesToClaude(t *testing.T) {
	messages := []interfaces.Message{
		{Role: "system", Content: "You are a generator."},
		{Role: "user", Content: "Generate from this context."},
		{Role: "assistant", Content: "Here is a pair."},
		{Role: "user", Content: "Another one."},
	}

	converted, system, err := convertMessagesToClaude(messages)
	require.NoError(t, err)

	assert.Equal(t, "You are a generator.", system)
	require.Len(t, converted, 3)
}

func TestConvertMessagesToClaude_RequiresUserMessage(t *testing.T) {
	_, _, err := convertMessagesToClaude([]interfaces.Message{
		{Role: "system", Content: "Only a system prompt."},
	})
	assert.Error(t, err)
}

func TestLocalClient_RejectsRemoteHosts(t *testing.T) {
	config := common.DefaultConfig()
	config.Local.ChatURL = "http://example.com:8087"
	client := newLocalClient(&config.Local, arbor.NewLogger())

	_, err := client.chat(context.Background(), &interfaces.ChatRequest{
		Messages: []interfaces.Message{{Role: "user", Content: "hi"}},
	}, "qwen2.5-7b")
	require.Error(t, err)
}

func TestParseEmbeddingResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantLen int
		wantErr bool
	}{
		{name: "object form", body: `{"embedding": [0.1, 0.2, 0.3]}`, wantLen: 3},
		{name: "flat array", body: `[0.1, 0.2]`, wantLen: 2},
		{name: "batch form", body: `[{"index": 0, "embedding": [[0.5, 0.5]]}]`, wantLen: 2},
		{name: "garbage", body: `not json`, wantErr: true},
		{name: "empty object", body: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vector, err := parseEmbeddingResponse([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, vector, tt.wantLen)
		})
	}
}
