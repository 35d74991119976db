package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "json fence", input: "```json\n{\"violations\": []}\n```", expected: `{"violations": []}`},
		{name: "bare fence", input: "```\n{\"score\": 7}\n```", expected: `{"score": 7}`},
		{name: "other language tag", input: "```javascript\n{\"a\": 1}\n```", expected: `{"a": 1}`},
		{name: "fence with JSON on first line", input: "```{\"a\": 1}```", expected: `{"a": 1}`},
		{name: "plain", input: `  {"a": 1}  `, expected: `{"a": 1}`},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Replacement string `json:"replacement"`
	}
	require.NoError(t, DecodeJSON("```json\n{\"replacement\": \"quiet community\"}\n```", &out))
	assert.Equal(t, "quiet community", out.Replacement)

	assert.Error(t, DecodeJSON("   ", &out))
	assert.Error(t, DecodeJSON("not json", &out))
}
