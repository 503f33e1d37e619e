package sink

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/forgeml/ragsmith/internal/models"
)

// Columns is the tabular output schema, written as the header exactly
// once when the file is created.
var Columns = []string{"context", "question", "answer", "difficulty", "created_at"}

// WriteError is a disk failure while appending output. It is fatal to
// the run; rows already flushed stay on disk, there is no rollback.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("sink write to %s failed: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// FileSink appends accepted records to a CSV file and mirrors them to a
// sibling JSONL file (same base name, .jsonl extension). Both writes
// are append-only; prior rows are never rewritten or reordered. The two
// appends are not atomic as a pair: a crash between them can leave the
// files inconsistent, an accepted limitation of this design.
type FileSink struct {
	csvPath   string
	jsonlPath string
	logger    arbor.ILogger
}

// NewFileSink creates a sink writing to csvPath and its JSONL sibling.
func NewFileSink(csvPath string, logger arbor.ILogger) *FileSink {
	ext := filepath.Ext(csvPath)
	jsonlPath := strings.TrimSuffix(csvPath, ext) + ".jsonl"

	return &FileSink{
		csvPath:   csvPath,
		jsonlPath: jsonlPath,
		logger:    logger,
	}
}

// CSVPath returns the tabular output path.
func (s *FileSink) CSVPath() string { return s.csvPath }

// JSONLPath returns the line-delimited output path.
func (s *FileSink) JSONLPath() string { return s.jsonlPath }

// Append writes the records to both output files in order. The CSV
// header is written only if the file does not yet exist.
func (s *FileSink) Append(records []models.DatasetRecord) error {
	if len(records) == 0 {
		return nil
	}

	if dir := filepath.Dir(s.csvPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &WriteError{Path: s.csvPath, Err: err}
		}
	}

	if err := s.appendCSV(records); err != nil {
		return err
	}
	if err := s.appendJSONL(records); err != nil {
		return err
	}

	s.logger.Debug().
		Int("records", len(records)).
		Str("csv", s.csvPath).
		Str("jsonl", s.jsonlPath).
		Msg("Appended records")

	return nil
}

func (s *FileSink) appendCSV(records []models.DatasetRecord) error {
	_, statErr := os.Stat(s.csvPath)
	writeHeader := os.IsNotExist(statErr)

	file, err := os.OpenFile(s.csvPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return &WriteError{Path: s.csvPath, Err: err}
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if writeHeader {
		if err := writer.Write(Columns); err != nil {
			return &WriteError{Path: s.csvPath, Err: err}
		}
	}

	for _, record := range records {
		row := []string{
			record.Context,
			record.Question,
			record.Answer,
			string(record.Difficulty),
			record.CreatedAt,
		}
		if err := writer.Write(row); err != nil {
			return &WriteError{Path: s.csvPath, Err: err}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return &WriteError{Path: s.csvPath, Err: err}
	}

	return nil
}

func (s *FileSink) appendJSONL(records []models.DatasetRecord) error {
	file, err := os.OpenFile(s.jsonlPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return &WriteError{Path: s.jsonlPath, Err: err}
	}
	defer file.Close()

	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return &WriteError{Path: s.jsonlPath, Err: err}
		}
		line = append(line, '\n')
		if _, err := file.Write(line); err != nil {
			return &WriteError{Path: s.jsonlPath, Err: err}
		}
	}

	return nil
}
