package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/forgeml/ragsmith/internal/interfaces"
)

func TestConvertMessagesToGemini(t *testing.T) {
	messages := []interfaces.Message{
		{Role: "system", Content: "You are a generator."},
		{Role: "user", Content: "Generate from this context."},
		{Role: "assistant", Content: "Here is a pair."},
	}

	contents, system, err := convertMessagesToGemini(messages)
	require.NoError(t, err)

	assert.Equal(t, "You are a generator.", system)
	require.Len(t, contents, 2)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
}

func TestConvertMessagesToGemini_Rejections(t *testing.T) {
	_, _, err := convertMessagesToGemini(nil)
	assert.Error(t, err)

	_, _, err = convertMessagesToGemini([]interfaces.Message{
		{Role: "system", Content: "Only a system prompt."},
	})
	assert.Error(t, err)
}

func TestConvertToGenaiSchema(t *testing.T) {
	schema, err := convertToGenaiSchema(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"question": map[string]interface{}{"type": "string"},
			"answer":   map[string]interface{}{"type": "string", "description": "grounded answer"},
		},
		"required": []string{"question", "answer"},
	})
	require.NoError(t, err)
	require.NotNil(t, schema)

	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.Equal(t, []string{"question", "answer"}, schema.Required)

	require.Contains(t, schema.Properties, "question")
	require.Contains(t, schema.Properties, "answer")
	assert.Equal(t, genai.TypeString, schema.Properties["question"].Type)
	assert.Equal(t, "grounded answer", schema.Properties["answer"].Description)
}

func TestConvertToGenaiSchema_UntypedRequired(t *testing.T) {
	// Schemas decoded from JSON carry []interface{} instead of []string.
	schema, err := convertToGenaiSchema(map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"question"},
		"enum":     []interface{}{"a", "b"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"question"}, schema.Required)
	assert.Equal(t, []string{"a", "b"}, schema.Enum)
}

func TestConvertToGenaiSchema_Empty(t *testing.T) {
	schema, err := convertToGenaiSchema(nil)
	require.NoError(t, err)
	assert.Nil(t, schema)
}
