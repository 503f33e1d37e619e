package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/forgeml/ragsmith/internal/models"
)

// stubChunker returns a fixed chunk list.
type stubChunker struct {
	chunks []models.Chunk
	err    error
}

func (s *stubChunker) Chunk(string, int, int) ([]models.Chunk, error) {
	return s.chunks, s.err
}

// stubGenerator yields one scripted result per chunk index.
type stubGenerator struct {
	results map[int]*models.Candidate
	errs    map[int]error
	calls   int
}

func (s *stubGenerator) Generate(_ context.Context, chunk models.Chunk, difficulty models.Difficulty) (*models.Candidate, error) {
	s.calls++
	if err, ok := s.errs[chunk.Index]; ok {
		return nil, err
	}
	if candidate, ok := s.results[chunk.Index]; ok {
		candidate.Chunk = chunk
		candidate.Difficulty = difficulty
		return candidate, nil
	}
	return &models.Candidate{
		Question:   fmt.Sprintf("Question %d?", chunk.Index),
		Answer:     fmt.Sprintf("Answer for chunk %d.", chunk.Index),
		Chunk:      chunk,
		Difficulty: difficulty,
	}, nil
}

// stubValidator accepts everything unless told otherwise per chunk.
type stubValidator struct {
	rejects map[int]models.RejectReason
	errs    map[int]error
	calls   int
}

func (s *stubValidator) Validate(_ context.Context, candidate *models.Candidate) (*models.Outcome, error) {
	s.calls++
	if err, ok := s.errs[candidate.Chunk.Index]; ok {
		return nil, err
	}
	if reason, ok := s.rejects[candidate.Chunk.Index]; ok {
		return &models.Outcome{Accepted: false, Reason: reason}, nil
	}
	return &models.Outcome{Accepted: true}, nil
}

// stubDedup uses real normalization-free map semantics for simplicity.
type stubDedup struct {
	seen map[string]struct{}
}

func newStubDedup() *stubDedup {
	return &stubDedup{seen: make(map[string]struct{})}
}

func (s *stubDedup) IsDuplicate(question string) bool {
	_, ok := s.seen[question]
	return ok
}

func (s *stubDedup) Register(question string) {
	s.seen[question] = struct{}{}
}

// stubSink records appended batches and can fail on demand.
type stubSink struct {
	records []models.DatasetRecord
	failAt  int // 1-based append count to fail on; 0 = never
	appends int
}

func (s *stubSink) Append(records []models.DatasetRecord) error {
	s.appends++
	if s.failAt > 0 && s.appends >= s.failAt {
		return fmt.Errorf("disk full")
	}
	s.records = append(s.records, records...)
	return nil
}

func makeChunks(n int) []models.Chunk {
	chunks := make([]models.Chunk, n)
	for i := range chunks {
		chunks[i] = models.Chunk{Index: i, Text: fmt.Sprintf("Chunk %d text.", i), SentenceCount: 6}
	}
	return chunks
}

func defaultOptions() Options {
	return Options{
		Difficulty:        models.DifficultyMedium,
		MaxPairs:          10,
		SentencesPerChunk: 6,
		Overlap:           2,
	}
}

func newTestEngine(chunker *stubChunker, generator *stubGenerator, validator *stubValidator, dedup *stubDedup, sink *stubSink) *Engine {
	return New(chunker, generator, validator, dedup, sink, arbor.NewLogger())
}

func TestRun_AcceptsAllChunks(t *testing.T) {
	sink := &stubSink{}
	engine := newTestEngine(
		&stubChunker{chunks: makeChunks(3)},
		&stubGenerator{},
		&stubValidator{},
		newStubDedup(),
		sink,
	)

	result, err := engine.Run(context.Background(), "doc", defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Accepted)
	assert.Equal(t, 3, result.ChunksTotal)
	assert.Equal(t, 3, result.ChunksProcessed)
	assert.Empty(t, result.Rejections)
	assert.NotEmpty(t, result.RunID)

	require.Len(t, sink.records, 3)
	assert.Equal(t, "Question 0?", sink.records[0].Question)
	assert.Equal(t, models.DifficultyMedium, sink.records[0].Difficulty)
	assert.NotEmpty(t, sink.records[0].CreatedAt)
}

func TestRun_GenerationFailureSkipsChunk(t *testing.T) {
	sink := &stubSink{}
	engine := newTestEngine(
		&stubChunker{chunks: makeChunks(3)},
		&stubGenerator{errs: map[int]error{1: fmt.Errorf("bad json")}},
		&stubValidator{},
		newStubDedup(),
		sink,
	)

	result, err := engine.Run(context.Background(), "doc", defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 1, result.Rejections[models.RejectGeneration])
	require.Len(t, sink.records, 2)
	assert.Equal(t, "Question 0?", sink.records[0].Question)
	assert.Equal(t, "Question 2?", sink.records[1].Question)
}

func TestRun_ValidationRejectionSkipsChunk(t *testing.T) {
	sink := &stubSink{}
	engine := newTestEngine(
		&stubChunker{chunks: makeChunks(4)},
		&stubGenerator{},
		&stubValidator{rejects: map[int]models.RejectReason{
			1: models.RejectLexical,
			2: models.RejectJudge,
		}},
		newStubDedup(),
		sink,
	)

	result, err := engine.Run(context.Background(), "doc", defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 1, result.Rejections[models.RejectLexical])
	assert.Equal(t, 1, result.Rejections[models.RejectJudge])
}

func TestRun_ValidatorInfrastructureErrorSkipsChunk(t *testing.T) {
	engine := newTestEngine(
		&stubChunker{chunks: makeChunks(2)},
		&stubGenerator{},
		&stubValidator{errs: map[int]error{0: fmt.Errorf("embedding service down")}},
		newStubDedup(),
		&stubSink{},
	)

	result, err := engine.Run(context.Background(), "doc", defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.Rejections[models.RejectInternal])
}

func TestRun_DuplicateSkippedBeforeValidation(t *testing.T) {
	generator := &stubGenerator{results: map[int]*models.Candidate{
		0: {Question: "Same question?", Answer: "First answer, long enough."},
		1: {Question: "Same question?", Answer: "Second answer, long enough."},
	}}
	validator := &stubValidator{}
	sink := &stubSink{}
	engine := newTestEngine(
		&stubChunker{chunks: makeChunks(2)},
		generator,
		validator,
		newStubDedup(),
		sink,
	)

	result, err := engine.Run(context.Background(), "doc", defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.Rejections[models.RejectDuplicate])

	// The duplicate never reached the validator.
	assert.Equal(t, 1, validator.calls)
	require.Len(t, sink.records, 1)
}

func TestRun_RejectedQuestionNotRegistered(t *testing.T) {
	// Chunk 0 fails validation; chunk 1 regenerates the same question,
	// which must not be treated as a duplicate.
	generator := &stubGenerator{results: map[int]*models.Candidate{
		0: {Question: "Recurring question?", Answer: "Rejected answer."},
		1: {Question: "Recurring question?", Answer: "Accepted answer."},
	}}
	engine := newTestEngine(
		&stubChunker{chunks: makeChunks(2)},
		generator,
		&stubValidator{rejects: map[int]models.RejectReason{0: models.RejectLength}},
		newStubDedup(),
		&stubSink{},
	)

	result, err := engine.Run(context.Background(), "doc", defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.Rejections[models.RejectLength])
	assert.Equal(t, 0, result.Rejections[models.RejectDuplicate])
}

func TestRun_MaxPairsStopsIteration(t *testing.T) {
	generator := &stubGenerator{}
	engine := newTestEngine(
		&stubChunker{chunks: makeChunks(5)},
		generator,
		&stubValidator{},
		newStubDedup(),
		&stubSink{},
	)

	opts := defaultOptions()
	opts.MaxPairs = 2

	result, err := engine.Run(context.Background(), "doc", opts)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 5, result.ChunksTotal)
	assert.Equal(t, 2, result.ChunksProcessed)

	// Chunks beyond the cap never triggered generation.
	assert.Equal(t, 2, generator.calls)
}

func TestRun_SinkFailureAbortsRun(t *testing.T) {
	engine := newTestEngine(
		&stubChunker{chunks: makeChunks(3)},
		&stubGenerator{},
		&stubValidator{},
		newStubDedup(),
		&stubSink{failAt: 2},
	)

	result, err := engine.Run(context.Background(), "doc", defaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink append failed")

	// The partial result reports what was flushed before the abort.
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 2, result.ChunksProcessed)
}

func TestRun_ZeroAcceptedIsNotAnError(t *testing.T) {
	engine := newTestEngine(
		&stubChunker{chunks: makeChunks(2)},
		&stubGenerator{},
		&stubValidator{rejects: map[int]models.RejectReason{
			0: models.RejectSemantic,
			1: models.RejectSemantic,
		}},
		newStubDedup(),
		&stubSink{},
	)

	result, err := engine.Run(context.Background(), "doc", defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Accepted)
	assert.Equal(t, 2, result.Rejections[models.RejectSemantic])
}

func TestRun_EmptyDocument(t *testing.T) {
	engine := newTestEngine(
		&stubChunker{chunks: nil},
		&stubGenerator{},
		&stubValidator{},
		newStubDedup(),
		&stubSink{},
	)

	result, err := engine.Run(context.Background(), "", defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Accepted)
	assert.Equal(t, 0, result.ChunksTotal)
}

func TestRun_ChunkerFailureIsFatal(t *testing.T) {
	engine := newTestEngine(
		&stubChunker{err: fmt.Errorf("bad overlap")},
		&stubGenerator{},
		&stubValidator{},
		newStubDedup(),
		&stubSink{},
	)

	_, err := engine.Run(context.Background(), "doc", defaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunking failed")
}

func TestRun_InvalidOptions(t *testing.T) {
	engine := newTestEngine(
		&stubChunker{chunks: makeChunks(1)},
		&stubGenerator{},
		&stubValidator{},
		newStubDedup(),
		&stubSink{},
	)

	opts := defaultOptions()
	opts.Difficulty = "impossible"
	_, err := engine.Run(context.Background(), "doc", opts)
	assert.Error(t, err)

	opts = defaultOptions()
	opts.MaxPairs = 0
	_, err = engine.Run(context.Background(), "doc", opts)
	assert.Error(t, err)
}
