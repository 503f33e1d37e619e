package dedup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercases", input: "What Is The Leader?", want: "what is the leader?"},
		{name: "collapses whitespace", input: "what   is\tthe\n leader?", want: "what is the leader?"},
		{name: "trims", input: "  what is the leader?  ", want: "what is the leader?"},
		{name: "empty", input: "", want: ""},
		{name: "whitespace only", input: "   \t\n ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestIndex_RegisterAndLookup(t *testing.T) {
	index := NewIndex(arbor.NewLogger())

	assert.False(t, index.IsDuplicate("What is the leader?"))

	index.Register("What is the leader?")

	// Case and whitespace variants hit the same key.
	assert.True(t, index.IsDuplicate("What is the leader?"))
	assert.True(t, index.IsDuplicate("WHAT IS THE LEADER?"))
	assert.True(t, index.IsDuplicate("  what   is the leader?  "))

	assert.False(t, index.IsDuplicate("What is the follower?"))
	assert.Equal(t, 1, index.Len())

	// Re-registering a variant does not grow the index.
	index.Register("WHAT IS THE LEADER?")
	assert.Equal(t, 1, index.Len())
}

func TestSeedFromCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.csv")

	content := "context,question,answer,difficulty,created_at\n" +
		"\"ctx one\",\"What is replication?\",\"ans one\",easy,2026-08-25T10:00:00Z\n" +
		"\"ctx two\",\"How does commit work?\",\"ans two\",medium,2026-08-25T10:01:00Z\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	index := NewIndex(arbor.NewLogger())
	require.NoError(t, index.SeedFromCSV(path))

	assert.Equal(t, 2, index.Len())
	assert.True(t, index.IsDuplicate("what is replication?"))
	assert.True(t, index.IsDuplicate("How does COMMIT work?"))
	assert.False(t, index.IsDuplicate("What is a follower?"))
}

func TestSeedFromCSV_MissingFile(t *testing.T) {
	index := NewIndex(arbor.NewLogger())

	err := index.SeedFromCSV(filepath.Join(t.TempDir(), "absent.csv"))
	require.NoError(t, err)
	assert.Equal(t, 0, index.Len())
}

func TestSeedFromCSV_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	index := NewIndex(arbor.NewLogger())
	require.NoError(t, index.SeedFromCSV(path))
	assert.Equal(t, 0, index.Len())
}

func TestSeedFromCSV_NoQuestionColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "other.csv")
	content := "id,text\n1,hello\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	index := NewIndex(arbor.NewLogger())
	require.NoError(t, index.SeedFromCSV(path))
	assert.Equal(t, 0, index.Len())
}

func TestSeedFromCSV_ShortRowsSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ragged.csv")
	content := "context,question\n" +
		"ctx,\"What is replication?\"\n" +
		"only-context\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	index := NewIndex(arbor.NewLogger())
	require.NoError(t, index.SeedFromCSV(path))
	assert.Equal(t, 1, index.Len())
}
