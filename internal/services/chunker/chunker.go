package chunker

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/forgeml/ragsmith/internal/models"
)

// minChunkSentences is the floor below which a trailing window is
// dropped rather than emitted as a chunk.
const minChunkSentences = 3

// Service splits a document into overlapping sentence-aligned windows.
type Service struct {
	segmenter Segmenter
	logger    arbor.ILogger
}

// NewService creates a new chunking service
func NewService(segmenter Segmenter, logger arbor.ILogger) *Service {
	return &Service{
		segmenter: segmenter,
		logger:    logger,
	}
}

// Chunk splits text into windows of sentencesPerChunk sentences.
// Consecutive windows share overlap sentences; the start index advances
// by sentencesPerChunk-overlap each step. A trailing window shorter
// than three sentences is dropped. The whole document is in memory, so
// chunks are produced eagerly.
func (s *Service) Chunk(text string, sentencesPerChunk, overlap int) ([]models.Chunk, error) {
	if sentencesPerChunk <= 0 {
		return nil, fmt.Errorf("sentences_per_chunk must be positive, got %d", sentencesPerChunk)
	}
	if overlap < 0 || overlap >= sentencesPerChunk {
		return nil, fmt.Errorf("overlap (%d) must be in [0, sentences_per_chunk), sentences_per_chunk=%d", overlap, sentencesPerChunk)
	}

	sentenceList := s.segmenter.Segment(text)

	var chunks []models.Chunk
	step := sentencesPerChunk - overlap
	for start := 0; start < len(sentenceList); start += step {
		end := start + sentencesPerChunk
		if end > len(sentenceList) {
			end = len(sentenceList)
		}
		window := sentenceList[start:end]

		if len(window) < minChunkSentences {
			break
		}

		chunks = append(chunks, models.Chunk{
			Index:         len(chunks),
			Text:          strings.Join(window, " "),
			SentenceCount: len(window),
		})
	}

	s.logger.Debug().
		Int("sentences", len(sentenceList)).
		Int("chunks", len(chunks)).
		Int("window", sentencesPerChunk).
		Int("overlap", overlap).
		Msg("Document chunked")

	return chunks, nil
}
