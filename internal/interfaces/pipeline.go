package interfaces

import (
	"context"

	"github.com/forgeml/ragsmith/internal/models"
)

// Chunker splits a document into overlapping sentence-aligned windows.
type Chunker interface {
	// Chunk splits text into windows of sentencesPerChunk sentences,
	// consecutive windows sharing overlap sentences. A trailing window
	// of fewer than three sentences is dropped. overlap must be less
	// than sentencesPerChunk.
	Chunk(text string, sentencesPerChunk, overlap int) ([]models.Chunk, error)
}

// Generator produces one question/answer candidate from a context window.
type Generator interface {
	Generate(ctx context.Context, chunk models.Chunk, difficulty models.Difficulty) (*models.Candidate, error)
}

// Validator applies the grounding acceptance chain to a candidate.
// The returned error signals an infrastructure failure (embedding or
// judge call failed), not a rejection; rejections are carried in the
// Outcome.
type Validator interface {
	Validate(ctx context.Context, candidate *models.Candidate) (*models.Outcome, error)
}

// Deduplicator tracks normalized questions seen during and before a run.
type Deduplicator interface {
	IsDuplicate(question string) bool
	Register(question string)
}

// Sink persists accepted records. Appends are ordered and append-only;
// a write failure is fatal to the run.
type Sink interface {
	Append(records []models.DatasetRecord) error
}
