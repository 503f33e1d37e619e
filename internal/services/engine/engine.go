package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/forgeml/ragsmith/internal/interfaces"
	"github.com/forgeml/ragsmith/internal/models"
)

// Options controls one generation run.
type Options struct {
	Model             string
	Difficulty        models.Difficulty
	MaxPairs          int
	SentencesPerChunk int
	Overlap           int
}

// Result reports what one run produced. Accepted==0 with a nil run
// error is a valid outcome, distinct from a run aborted by a sink
// failure (non-nil error from Run).
type Result struct {
	RunID           string                      `json:"run_id"`
	Accepted        int                         `json:"accepted"`
	ChunksTotal     int                         `json:"chunks_total"`
	ChunksProcessed int                         `json:"chunks_processed"`
	Rejections      map[models.RejectReason]int `json:"rejections"`
	Duration        time.Duration               `json:"duration"`
}

// Engine drives the generation pipeline over a document: pull chunks in
// order, generate a candidate per chunk, dedupe, validate, and write
// accepted records through the sink until the pair cap is reached or
// chunks run out. Strictly sequential; every external call blocks the
// loop until it returns.
type Engine struct {
	chunker   interfaces.Chunker
	generator interfaces.Generator
	validator interfaces.Validator
	dedup     interfaces.Deduplicator
	sink      interfaces.Sink
	logger    arbor.ILogger
}

// New creates an engine from its pipeline components.
func New(
	chunker interfaces.Chunker,
	generator interfaces.Generator,
	validator interfaces.Validator,
	dedup interfaces.Deduplicator,
	sink interfaces.Sink,
	logger arbor.ILogger,
) *Engine {
	return &Engine{
		chunker:   chunker,
		generator: generator,
		validator: validator,
		dedup:     dedup,
		sink:      sink,
		logger:    logger,
	}
}

// Run executes one generation pass over the document. Rejections at any
// step (generation error, validator layer, duplicate) skip the chunk
// and never abort the run; only a sink write failure is fatal. The
// partial Result is returned alongside a fatal error so the caller can
// report what was flushed before the abort.
func (e *Engine) Run(ctx context.Context, documentText string, opts Options) (*Result, error) {
	if !opts.Difficulty.IsValid() {
		return nil, fmt.Errorf("invalid difficulty %q", opts.Difficulty)
	}
	if opts.MaxPairs <= 0 {
		return nil, fmt.Errorf("max_pairs must be positive, got %d", opts.MaxPairs)
	}

	start := time.Now()
	result := &Result{
		RunID:      uuid.NewString(),
		Rejections: make(map[models.RejectReason]int),
	}

	chunks, err := e.chunker.Chunk(documentText, opts.SentencesPerChunk, opts.Overlap)
	if err != nil {
		return nil, fmt.Errorf("chunking failed: %w", err)
	}
	result.ChunksTotal = len(chunks)

	e.logger.Info().
		Str("run_id", result.RunID).
		Int("chunks", len(chunks)).
		Str("difficulty", string(opts.Difficulty)).
		Int("max_pairs", opts.MaxPairs).
		Msg("Starting generation run")

	for _, chunk := range chunks {
		if result.Accepted >= opts.MaxPairs {
			break
		}
		result.ChunksProcessed++

		if err := e.processChunk(ctx, chunk, opts, result); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}
	}

	result.Duration = time.Since(start)

	e.logger.Info().
		Str("run_id", result.RunID).
		Int("accepted", result.Accepted).
		Int("chunks_processed", result.ChunksProcessed).
		Int64("duration_ms", result.Duration.Milliseconds()).
		Msg("Generation run complete")

	return result, nil
}

// processChunk takes one chunk through generate -> dedupe -> validate
// -> append. Returns an error only for fatal sink failures; everything
// else is recorded as a rejection and the run continues.
func (e *Engine) processChunk(ctx context.Context, chunk models.Chunk, opts Options, result *Result) error {
	candidate, err := e.generator.Generate(ctx, chunk, opts.Difficulty)
	if err != nil {
		result.Rejections[models.RejectGeneration]++
		e.logger.Warn().
			Err(err).
			Int("chunk", chunk.Index).
			Msg("Generation rejected chunk")
		return nil
	}

	// Duplicates short-circuit before any validation budget is spent.
	if e.dedup.IsDuplicate(candidate.Question) {
		result.Rejections[models.RejectDuplicate]++
		e.logger.Debug().
			Int("chunk", chunk.Index).
			Msg("Duplicate question, skipping chunk")
		return nil
	}

	outcome, err := e.validator.Validate(ctx, candidate)
	if err != nil {
		// Embedding or judge infrastructure failure: rejection of this
		// chunk, not of the run.
		result.Rejections[models.RejectInternal]++
		e.logger.Warn().
			Err(err).
			Int("chunk", chunk.Index).
			Msg("Validation failed, skipping chunk")
		return nil
	}
	if !outcome.Accepted {
		result.Rejections[outcome.Reason]++
		return nil
	}

	record := models.DatasetRecord{
		Context:    chunk.Text,
		Question:   candidate.Question,
		Answer:     candidate.Answer,
		Difficulty: opts.Difficulty,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	if err := e.sink.Append([]models.DatasetRecord{record}); err != nil {
		return fmt.Errorf("sink append failed: %w", err)
	}

	e.dedup.Register(candidate.Question)
	result.Accepted++

	e.logger.Info().
		Int("chunk", chunk.Index).
		Int("accepted", result.Accepted).
		Msg("Accepted record")

	return nil
}
