package validator

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"

	"github.com/forgeml/ragsmith/internal/interfaces"
	"github.com/forgeml/ragsmith/internal/models"
)

// Config holds the tunable thresholds for each acceptance layer.
type Config struct {
	OverlapThreshold    float64        // lexical layer, default 0.5
	MinAnswerChars      int            // length layer, default 40
	SimilarityThreshold float64        // semantic layer, default 0.75
	JudgeModel          string         // judge layer; empty uses the provider default
	Layers              []models.Layer // evaluation order; empty uses DefaultLayerOrder
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		OverlapThreshold:    0.5,
		MinAnswerChars:      40,
		SimilarityThreshold: 0.75,
	}
}

// Service applies the four-layer grounding acceptance chain to a
// candidate. The chain short-circuits on first failure, so the
// expensive embedding and judge calls never run for a candidate an
// earlier layer already rejected. Each layer's verdict is reproducible
// from its inputs alone.
type Service struct {
	llm    interfaces.LLMService
	config Config
	layers []models.Layer
	logger arbor.ILogger
}

// NewService creates a validation service. The LLM service backs the
// semantic (embedding) and judge layers and is injected rather than
// held as process-wide state.
func NewService(llm interfaces.LLMService, config Config, logger arbor.ILogger) (*Service, error) {
	layers := config.Layers
	if len(layers) == 0 {
		layers = models.DefaultLayerOrder()
	}
	for _, layer := range layers {
		if !layer.IsValid() {
			return nil, fmt.Errorf("unknown validation layer %q", layer)
		}
	}

	return &Service{
		llm:    llm,
		config: config,
		layers: layers,
		logger: logger,
	}, nil
}

// Validate runs the acceptance chain. A rejection is carried in the
// Outcome; the returned error signals an infrastructure failure
// (embedding or judge call failed) and is handled at chunk granularity
// by the caller.
func (s *Service) Validate(ctx context.Context, candidate *models.Candidate) (*models.Outcome, error) {
	outcome := &models.Outcome{}

	for _, layer := range s.layers {
		result, err := s.runLayer(ctx, layer, candidate)
		if err != nil {
			return nil, err
		}

		outcome.Layers = append(outcome.Layers, result)

		if !result.Passed {
			outcome.Accepted = false
			outcome.Reason = rejectReasonFor(layer)

			s.logger.Debug().
				Str("layer", string(layer)).
				Float64("score", result.Score).
				Int("chunk", candidate.Chunk.Index).
				Msg("Candidate rejected")

			return outcome, nil
		}
	}

	outcome.Accepted = true
	return outcome, nil
}

func (s *Service) runLayer(ctx context.Context, layer models.Layer, candidate *models.Candidate) (models.LayerResult, error) {
	switch layer {
	case models.LayerLexical:
		return s.checkLexical(candidate), nil
	case models.LayerLength:
		return s.checkLength(candidate), nil
	case models.LayerSemantic:
		return s.checkSemantic(ctx, candidate)
	case models.LayerJudge:
		return s.checkJudge(ctx, candidate)
	default:
		return models.LayerResult{}, fmt.Errorf("unknown validation layer %q", layer)
	}
}

func rejectReasonFor(layer models.Layer) models.RejectReason {
	switch layer {
	case models.LayerLexical:
		return models.RejectLexical
	case models.LayerLength:
		return models.RejectLength
	case models.LayerSemantic:
		return models.RejectSemantic
	default:
		return models.RejectJudge
	}
}

var wordPattern = regexp.MustCompile(`\w+`)

// wordSet lowercases text and extracts its unique word tokens.
func wordSet(text string) map[string]struct{} {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}
	return set
}

// checkLexical computes |answer_words ∩ context_words| / |answer_words|.
// An empty answer has no defined ratio and is rejected outright.
func (s *Service) checkLexical(candidate *models.Candidate) models.LayerResult {
	answerWords := wordSet(candidate.Answer)
	if len(answerWords) == 0 {
		return models.LayerResult{Layer: models.LayerLexical, Passed: false}
	}

	contextWords := wordSet(candidate.Chunk.Text)
	shared := 0
	for word := range answerWords {
		if _, ok := contextWords[word]; ok {
			shared++
		}
	}

	ratio := float64(shared) / float64(len(answerWords))
	return models.LayerResult{
		Layer:  models.LayerLexical,
		Passed: ratio >= s.config.OverlapThreshold,
		Score:  ratio,
		Scored: true,
	}
}

// checkLength rejects answers below the character floor; lexical
// overlap alone would accept a degenerate one-word answer.
func (s *Service) checkLength(candidate *models.Candidate) models.LayerResult {
	length := utf8.RuneCountInString(strings.TrimSpace(candidate.Answer))
	return models.LayerResult{
		Layer:  models.LayerLength,
		Passed: length >= s.config.MinAnswerChars,
	}
}

// checkSemantic encodes answer and context independently and compares
// their cosine similarity. Catches paraphrase with low word overlap and
// high word overlap with contradictory meaning, which the lexical layer
// cannot.
func (s *Service) checkSemantic(ctx context.Context, candidate *models.Candidate) (models.LayerResult, error) {
	vectors, err := s.llm.Embed(ctx, []string{candidate.Answer, candidate.Chunk.Text})
	if err != nil {
		return models.LayerResult{}, fmt.Errorf("embedding for semantic check: %w", err)
	}
	if len(vectors) != 2 {
		return models.LayerResult{}, fmt.Errorf("expected 2 embedding vectors, got %d", len(vectors))
	}

	similarity, err := cosineSimilarity(vectors[0], vectors[1])
	if err != nil {
		return models.LayerResult{}, fmt.Errorf("cosine similarity: %w", err)
	}

	return models.LayerResult{
		Layer:  models.LayerSemantic,
		Passed: similarity >= s.config.SimilarityThreshold,
		Score:  similarity,
		Scored: true,
	}, nil
}

// checkJudge asks a model whether the answer is supported by the
// context and actually answers the question, expecting a strict YES/NO.
// Pinned to temperature 0 so the verdict is as reproducible as the
// upstream model allows.
func (s *Service) checkJudge(ctx context.Context, candidate *models.Candidate) (models.LayerResult, error) {
	judgePrompt := "Given the context, question, and answer below:\n\n" +
		"Context:\n" + candidate.Chunk.Text + "\n\n" +
		"Question:\n" + candidate.Question + "\n\n" +
		"Answer:\n" + candidate.Answer + "\n\n" +
		"Is the answer fully supported by the context and does it " +
		"correctly answer the question?\n" +
		"Reply with YES or NO only."

	req := &interfaces.ChatRequest{
		Model: s.config.JudgeModel,
		Messages: []interfaces.Message{
			{Role: "user", Content: judgePrompt},
		},
		Temperature: 0,
	}

	reply, err := s.llm.Chat(ctx, req)
	if err != nil {
		return models.LayerResult{}, fmt.Errorf("judge request: %w", err)
	}

	verdict := strings.ToUpper(strings.TrimSpace(reply))
	return models.LayerResult{
		Layer:  models.LayerJudge,
		Passed: strings.Contains(verdict, "YES"),
	}, nil
}

// cosineSimilarity computes the cosine of the angle between two
// equal-length vectors.
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("vectors must be non-empty and equal length, got %d and %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("cannot compute similarity of zero vector")
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
