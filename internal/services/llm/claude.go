package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/forgeml/ragsmith/internal/common"
	"github.com/forgeml/ragsmith/internal/interfaces"
)

// claudeClient generates chat completions using the Anthropic Claude API.
// Claude has no response-schema parameter; structured output relies on
// the prompt and the caller validates the decoded result.
type claudeClient struct {
	config      *common.ClaudeConfig
	logger      arbor.ILogger
	client      anthropic.Client
	initialized bool
}

func newClaudeClient(config *common.ClaudeConfig, logger arbor.ILogger) *claudeClient {
	return &claudeClient{
		config: config,
		logger: logger,
	}
}

// getClient returns the Claude client, creating it on first use.
func (c *claudeClient) getClient() (anthropic.Client, error) {
	if c.initialized {
		return c.client, nil
	}

	if c.config.APIKey == "" {
		return anthropic.Client{}, fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY, RAGSMITH_CLAUDE_API_KEY, or claude.api_key in config)")
	}

	c.client = anthropic.NewClient(
		option.WithAPIKey(c.config.APIKey),
	)
	c.initialized = true

	c.logger.Debug().
		Str("model", c.config.Model).
		Int("max_tokens", c.config.MaxTokens).
		Msg("Claude client initialized")

	return c.client, nil
}

// convertMessagesToClaude converts []interfaces.Message to Claude
// MessageParam format, extracting the first system message for use
// with the System parameter.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		switch msg.Role {
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		default:
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	return claudeMessages, systemText, nil
}

// chat performs a single chat completion call against the Claude API.
func (c *claudeClient) chat(ctx context.Context, req *interfaces.ChatRequest, model string) (string, error) {
	client, err := c.getClient()
	if err != nil {
		return "", err
	}

	if model == "" {
		model = c.config.Model
	}

	claudeMessages, systemText, err := convertMessagesToClaude(req.Messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages: %w", err)
	}

	maxTokens := c.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  claudeMessages,
	}

	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}

	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return "", fmt.Errorf("empty response from Claude API")
	}

	return text.String(), nil
}

// healthCheck verifies the client can be constructed; Claude has no
// dedicated health endpoint and a probe completion would spend quota.
func (c *claudeClient) healthCheck(_ context.Context) error {
	_, err := c.getClient()
	return err
}
