package models

import (
	"fmt"
	"strings"
)

// Difficulty controls how much cross-sentence reasoning a generated
// question demands.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid checks if the Difficulty is a valid value
func (d Difficulty) IsValid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// ParseDifficulty converts a string to a Difficulty, case-insensitively.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", fmt.Errorf("difficulty must be easy, medium or hard, got %q", s)
	}
	return d, nil
}

// Chunk is an ordered contiguous run of sentences from the source
// document. Chunks are produced once per document and read-only
// thereafter; they are never persisted.
type Chunk struct {
	Index         int    `json:"index"`
	Text          string `json:"text"`
	SentenceCount int    `json:"sentence_count"`
}

// Candidate is a generated question/answer pair awaiting validation.
// It is discarded if any acceptance check rejects it.
type Candidate struct {
	Question   string     `json:"question"`
	Answer     string     `json:"answer"`
	Chunk      Chunk      `json:"-"`
	Difficulty Difficulty `json:"difficulty"`
}

// DatasetRecord is an accepted training pair. CreatedAt is an ISO-8601
// UTC timestamp string; records are immutable once appended to the sink.
type DatasetRecord struct {
	Context    string     `json:"context"`
	Question   string     `json:"question"`
	Answer     string     `json:"answer"`
	Difficulty Difficulty `json:"difficulty"`
	CreatedAt  string     `json:"created_at"`
}
