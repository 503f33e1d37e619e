package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/forgeml/ragsmith/internal/interfaces"
	"github.com/forgeml/ragsmith/internal/models"
)

// GenerationError means the model's output could not be decoded into a
// question/answer candidate: invalid JSON or missing required fields.
// The engine treats it as a rejection of the current chunk, never as a
// run failure.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("generation failed: %s", e.Reason)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsGenerationError reports whether err is a GenerationError.
func IsGenerationError(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr)
}

// candidateSchema constrains providers with native structured output to
// exactly the two required fields.
func candidateSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"question": map[string]interface{}{"type": "string"},
			"answer":   map[string]interface{}{"type": "string"},
		},
		"required": []string{"question", "answer"},
	}
}

// Service generates question/answer candidates from context windows.
// One outbound model call per invocation; grounding is the validator's
// job, not the generator's.
type Service struct {
	llm         interfaces.LLMService
	model       string
	temperature float32
	logger      arbor.ILogger
}

// NewService creates a new candidate generator
func NewService(llm interfaces.LLMService, model string, temperature float32, logger arbor.ILogger) *Service {
	return &Service{
		llm:         llm,
		model:       model,
		temperature: temperature,
		logger:      logger,
	}
}

// difficultyInstruction returns the per-tier generation instruction.
func difficultyInstruction(difficulty models.Difficulty) (string, error) {
	switch difficulty {
	case models.DifficultyEasy:
		return "Generate ONE factual question whose answer is directly " +
			"stated in a single sentence from the context.", nil
	case models.DifficultyMedium:
		return "Generate ONE question that requires combining at least " +
			"two sentences from the context.", nil
	case models.DifficultyHard:
		return "Generate ONE analytical question requiring reasoning, " +
			"inference, or causal understanding from multiple parts " +
			"of the context.", nil
	default:
		return "", fmt.Errorf("difficulty must be easy, medium or hard, got %q", difficulty)
	}
}

// Generate produces one candidate for the chunk at the given difficulty.
func (s *Service) Generate(ctx context.Context, chunk models.Chunk, difficulty models.Difficulty) (*models.Candidate, error) {
	instruction, err := difficultyInstruction(difficulty)
	if err != nil {
		return nil, err
	}

	systemPrompt := "You are a high-quality RAG dataset generator.\n" +
		instruction + "\n" +
		"Answer must be strictly grounded in the context.\n" +
		"Do NOT hallucinate.\n" +
		"Return JSON with 'question' and 'answer'."

	req := &interfaces.ChatRequest{
		Model: s.model,
		Messages: []interfaces.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: chunk.Text},
		},
		Temperature:    s.temperature,
		ResponseSchema: candidateSchema(),
	}

	response, err := s.llm.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat request for chunk %d: %w", chunk.Index, err)
	}

	candidate, err := decodeCandidate(response)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Int("chunk", chunk.Index).
			Msg("Model response did not decode to a candidate")
		return nil, err
	}

	candidate.Chunk = chunk
	candidate.Difficulty = difficulty

	s.logger.Debug().
		Int("chunk", chunk.Index).
		Int("question_length", len(candidate.Question)).
		Int("answer_length", len(candidate.Answer)).
		Msg("Generated candidate")

	return candidate, nil
}

// decodeCandidate strictly decodes the model response into a candidate,
// mapping invalid JSON and missing fields to GenerationError rather
// than trusting upstream schema enforcement.
func decodeCandidate(response string) (*models.Candidate, error) {
	cleaned := cleanMarkdownFences(response)

	var payload struct {
		Question *string `json:"question"`
		Answer   *string `json:"answer"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, &GenerationError{Reason: "response is not valid JSON", Err: err}
	}

	if payload.Question == nil || strings.TrimSpace(*payload.Question) == "" {
		return nil, &GenerationError{Reason: "response missing 'question' field"}
	}
	if payload.Answer == nil || strings.TrimSpace(*payload.Answer) == "" {
		return nil, &GenerationError{Reason: "response missing 'answer' field"}
	}

	return &models.Candidate{
		Question: strings.TrimSpace(*payload.Question),
		Answer:   strings.TrimSpace(*payload.Answer),
	}, nil
}

var fencePattern = regexp.MustCompile("(?s)^\\s*```(?:json|JSON)?\\s*\n?(.*?)\n?\\s*```\\s*$")

// cleanMarkdownFences removes markdown code fences from a response.
// Providers without native schema enforcement wrap JSON in fences
// routinely.
func cleanMarkdownFences(s string) string {
	s = strings.TrimSpace(s)

	if matches := fencePattern.FindStringSubmatch(s); len(matches) > 1 {
		s = matches[1]
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}
