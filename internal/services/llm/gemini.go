package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/forgeml/ragsmith/internal/common"
	"github.com/forgeml/ragsmith/internal/interfaces"
)

// geminiClient generates chat completions and embeddings using the
// Google Gemini API. When a response schema is supplied Gemini enforces
// JSON output matching it.
type geminiClient struct {
	config *common.GeminiConfig
	logger arbor.ILogger
	client *genai.Client
}

func newGeminiClient(config *common.GeminiConfig, logger arbor.ILogger) *geminiClient {
	return &geminiClient{
		config: config,
		logger: logger,
	}
}

// getClient returns the Gemini client, creating it on first use.
func (g *geminiClient) getClient(ctx context.Context) (*genai.Client, error) {
	if g.client != nil {
		return g.client, nil
	}

	if g.config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY, RAGSMITH_GEMINI_API_KEY, or gemini.api_key in config)")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	g.client = client
	return client, nil
}

// convertMessagesToGemini converts []interfaces.Message to Gemini
// content format, extracting the first system message for use as the
// system instruction.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if systemText == "" {
				systemText = msg.Content
			}
		case "assistant":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	if len(contents) == 0 {
		return nil, "", fmt.Errorf("at least one non-system message is required")
	}

	return contents, systemText, nil
}

// chat performs a single chat completion call against the Gemini API.
func (g *geminiClient) chat(ctx context.Context, req *interfaces.ChatRequest, model string) (string, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return "", err
	}

	if model == "" {
		model = g.config.Model
	}

	contents, systemText, err := convertMessagesToGemini(req.Messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages: %w", err)
	}

	temp := req.Temperature
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}

	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	if len(req.ResponseSchema) > 0 {
		schema, err := convertToGenaiSchema(req.ResponseSchema)
		if err != nil {
			return "", fmt.Errorf("failed to convert response schema: %w", err)
		}
		if schema != nil {
			config.ResponseMIMEType = "application/json"
			config.ResponseSchema = schema
		}
	}

	resp, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response from Gemini API")
	}

	responseText := resp.Text()
	if responseText == "" {
		return "", fmt.Errorf("empty text in Gemini response")
	}

	return responseText, nil
}

// embed encodes each text into a vector using the configured Gemini
// embedding model. Vectors are index-aligned with the input.
func (g *geminiClient) embed(ctx context.Context, texts []string) ([][]float32, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, err
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	resp, err := client.Models.EmbedContent(ctx, g.config.EmbedModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("Gemini embedding call failed: %w", err)
	}

	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("Gemini returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("Gemini returned empty embedding at index %d", i)
		}
		vectors[i] = emb.Values
	}

	return vectors, nil
}

// healthCheck verifies the client can be constructed.
func (g *geminiClient) healthCheck(ctx context.Context) error {
	_, err := g.getClient(ctx)
	return err
}

// convertToGenaiSchema converts a map[string]interface{} representation
// of a JSON schema to a genai.Schema structure, covering the subset the
// pipeline emits: object/string types, properties, required, items,
// description and enum.
func convertToGenaiSchema(schemaMap map[string]interface{}) (*genai.Schema, error) {
	if len(schemaMap) == 0 {
		return nil, nil
	}

	schema := &genai.Schema{}

	if typeStr, ok := schemaMap["type"].(string); ok {
		switch strings.ToLower(typeStr) {
		case "object":
			schema.Type = genai.TypeObject
		case "array":
			schema.Type = genai.TypeArray
		case "string":
			schema.Type = genai.TypeString
		case "number":
			schema.Type = genai.TypeNumber
		case "integer":
			schema.Type = genai.TypeInteger
		case "boolean":
			schema.Type = genai.TypeBoolean
		}
	}

	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}

	if enumVals, ok := schemaMap["enum"].([]string); ok {
		schema.Enum = enumVals
	} else if enumVals, ok := schemaMap["enum"].([]interface{}); ok {
		for _, v := range enumVals {
			if s, ok := v.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}

	if reqVals, ok := schemaMap["required"].([]string); ok {
		schema.Required = reqVals
	} else if reqVals, ok := schemaMap["required"].([]interface{}); ok {
		for _, v := range reqVals {
			if s, ok := v.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}

	if itemsMap, ok := schemaMap["items"].(map[string]interface{}); ok {
		itemSchema, err := convertToGenaiSchema(itemsMap)
		if err != nil {
			return nil, fmt.Errorf("failed to convert items schema: %w", err)
		}
		schema.Items = itemSchema
	}

	if propsMap, ok := schemaMap["properties"].(map[string]interface{}); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for propName, propVal := range propsMap {
			if propMap, ok := propVal.(map[string]interface{}); ok {
				propSchema, err := convertToGenaiSchema(propMap)
				if err != nil {
					return nil, fmt.Errorf("failed to convert property '%s': %w", propName, err)
				}
				schema.Properties[propName] = propSchema
			}
		}
	}

	return schema, nil
}
