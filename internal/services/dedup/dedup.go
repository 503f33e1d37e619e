package dedup

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ternarybob/arbor"
)

// Index tracks normalized question strings seen during and before a
// run. It lives for one run only; persistence is the output file
// itself, which seeds the index at startup. Mutated only by the single
// engine flow of control, so no synchronization is needed.
type Index struct {
	seen   map[string]struct{}
	logger arbor.ILogger
}

// NewIndex creates an empty question index
func NewIndex(logger arbor.ILogger) *Index {
	return &Index{
		seen:   make(map[string]struct{}),
		logger: logger,
	}
}

// Normalize lowercases a question, collapses internal whitespace and
// trims it, so case and spacing variants dedupe to the same key.
func Normalize(question string) string {
	return strings.ToLower(strings.Join(strings.Fields(question), " "))
}

// IsDuplicate reports whether the question has been seen before.
func (i *Index) IsDuplicate(question string) bool {
	_, ok := i.seen[Normalize(question)]
	return ok
}

// Register records a question. Called only after a candidate passes
// validation.
func (i *Index) Register(question string) {
	i.seen[Normalize(question)] = struct{}{}
}

// Len returns the number of distinct questions seen.
func (i *Index) Len() int {
	return len(i.seen)
}

// SeedFromCSV loads the question column of a pre-existing output file.
// A missing file leaves the index empty; the sink is never queried
// per-candidate. A file without a question column seeds nothing.
func (i *Index) SeedFromCSV(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			i.logger.Debug().Str("path", path).Msg("No existing output file, dedup index starts empty")
			return nil
		}
		return fmt.Errorf("failed to open existing output file %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	questionCol := -1
	for idx, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "question") {
			questionCol = idx
			break
		}
	}
	if questionCol < 0 {
		i.logger.Warn().Str("path", path).Msg("Existing output file has no question column, skipping seed")
		return nil
	}

	seeded := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read row of %s: %w", path, err)
		}
		if questionCol >= len(row) {
			continue
		}
		i.Register(row[questionCol])
		seeded++
	}

	i.logger.Info().
		Str("path", path).
		Int("questions", seeded).
		Msg("Seeded dedup index from existing output")

	return nil
}
