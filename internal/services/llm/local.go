package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/forgeml/ragsmith/internal/common"
	"github.com/forgeml/ragsmith/internal/interfaces"
)

// localClient talks to an OpenAI-compatible server on localhost
// (llama-server, Ollama). The transport refuses any non-localhost
// address, so local mode cannot leak data off the machine. Server
// lifecycle belongs to the operator; this is a client only.
type localClient struct {
	config     *common.LocalConfig
	logger     arbor.ILogger
	httpClient *http.Client
}

// localChatRequest represents a chat request to the local server
type localChatRequest struct {
	Model          string               `json:"model,omitempty"`
	Messages       []localMessage       `json:"messages"`
	Temperature    float32              `json:"temperature"`
	Stream         bool                 `json:"stream"`
	ResponseFormat *localResponseFormat `json:"response_format,omitempty"`
}

type localMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// localResponseFormat requests JSON output; llama-server additionally
// accepts a schema to constrain generation.
type localResponseFormat struct {
	Type   string                 `json:"type"`
	Schema map[string]interface{} `json:"schema,omitempty"`
}

// localChatResponse represents a chat response from the local server
type localChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// localEmbeddingRequest represents an embedding request to the local server
type localEmbeddingRequest struct {
	Content string `json:"content"`
}

// localEmbeddingResponse represents an embedding response as an object
type localEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// localBatchEmbeddingResponse represents the batch response format
type localBatchEmbeddingResponse struct {
	Index     int         `json:"index"`
	Embedding [][]float32 `json:"embedding"` // Nested array format
}

func newLocalClient(config *common.LocalConfig, logger arbor.ILogger) *localClient {
	return &localClient{
		config: config,
		logger: logger,
		httpClient: &http.Client{
			Timeout: 240 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					// Reject any non-localhost connections
					if !strings.HasPrefix(addr, "127.0.0.1:") && !strings.HasPrefix(addr, "localhost:") {
						return nil, fmt.Errorf("refusing to connect to non-localhost address: %s", addr)
					}
					return (&net.Dialer{}).DialContext(ctx, network, addr)
				},
			},
		},
	}
}

// chat generates a completion via the local server's OpenAI-compatible
// /v1/chat/completions endpoint.
func (l *localClient) chat(ctx context.Context, req *interfaces.ChatRequest, model string) (string, error) {
	if model == "" {
		model = l.config.ChatModel
	}

	localMessages := make([]localMessage, len(req.Messages))
	for i, msg := range req.Messages {
		localMessages[i] = localMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	reqBody := localChatRequest{
		Model:       model,
		Messages:    localMessages,
		Temperature: req.Temperature,
		Stream:      false,
	}
	if len(req.ResponseSchema) > 0 {
		reqBody.ResponseFormat = &localResponseFormat{
			Type:   "json_object",
			Schema: req.ResponseSchema,
		}
	}

	body, err := l.post(ctx, l.config.ChatURL+"/v1/chat/completions", reqBody)
	if err != nil {
		return "", err
	}

	var chatResponse localChatResponse
	if err := json.Unmarshal(body, &chatResponse); err != nil {
		return "", fmt.Errorf("failed to parse chat JSON: %w", err)
	}

	if len(chatResponse.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat response")
	}

	return chatResponse.Choices[0].Message.Content, nil
}

// embed encodes each text via the local server's /embedding endpoint.
// The server answers in one of three shapes depending on version:
// an object {"embedding": [...]}, a flat array, or a batch array of
// nested arrays; all three are accepted.
func (l *localClient) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))

	for _, text := range texts {
		body, err := l.post(ctx, l.config.EmbedURL+"/embedding", localEmbeddingRequest{Content: text})
		if err != nil {
			return nil, err
		}

		embedding, err := parseEmbeddingResponse(body)
		if err != nil {
			preview := body
			if len(preview) > 200 {
				preview = preview[:200]
			}
			l.logger.Warn().
				Str("response_preview", string(preview)).
				Msg("Failed to parse embedding response")
			return nil, err
		}

		vectors = append(vectors, embedding)
	}

	return vectors, nil
}

func parseEmbeddingResponse(body []byte) ([]float32, error) {
	// Object form: {"embedding": [...]}
	var objResponse localEmbeddingResponse
	if err := json.Unmarshal(body, &objResponse); err == nil && len(objResponse.Embedding) > 0 {
		return objResponse.Embedding, nil
	}

	// Flat array form: [...]
	var flat []float32
	if err := json.Unmarshal(body, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}

	// Batch form: [{"index":0,"embedding":[[...]]}]
	var batch []localBatchEmbeddingResponse
	if err := json.Unmarshal(body, &batch); err == nil && len(batch) > 0 {
		if len(batch[0].Embedding) > 0 && len(batch[0].Embedding[0]) > 0 {
			return batch[0].Embedding[0], nil
		}
		return nil, fmt.Errorf("batch embedding response has empty embedding array")
	}

	return nil, fmt.Errorf("failed to parse embedding response in any known format")
}

// post sends a JSON request and returns the response body.
func (l *localClient) post(ctx context.Context, url string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("local server request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("local server returned status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// healthCheck probes the chat server's /health endpoint.
func (l *localClient) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.config.ChatURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("local server not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("local server health returned status %d", resp.StatusCode)
	}

	return nil
}
