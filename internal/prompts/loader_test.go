package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_FillsEveryPlaceholder(t *testing.T) {
	tests := []struct {
		file string
		key  string
		data map[string]string
	}{
		{
			file: "compliance.json",
			key:  "contextual-judge",
			data: map[string]string{"Jurisdiction": "us-fha", "FieldPath": "twitter", "Categories": "steering", "Text": "x"},
		},
		{
			file: "autofix.json",
			key:  "rewrite-violation",
			data: map[string]string{"Jurisdiction": "us-fha", "Term": "adults only", "Category": "familial-status", "Explanation": "e", "MaxWords": "4", "Context": "c"},
		},
		{
			file: "autofix.json",
			key:  "rewrite-field",
			data: map[string]string{"Jurisdiction": "us-fha", "Term": "", "Category": "steering", "Explanation": "e", "Context": "c"},
		},
		{
			file: "quality.json",
			key:  "score-field",
			data: map[string]string{"FieldPath": "email.body", "Channel": "email", "Variant": "body", "Categories": "cliche", "Text": "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			prompt, err := Render(tt.file, tt.key, tt.data)
			require.NoError(t, err)
			assert.False(t, strings.Contains(prompt, "{{."), "unfilled placeholder in %s", tt.key)
			assert.Contains(t, prompt, tt.data["Category"]+tt.data["Categories"])
		})
	}
}

func TestRender_MissingValue(t *testing.T) {
	_, err := Render("autofix.json", "rewrite-violation", map[string]string{"Term": "adults only"})
	require.Error(t, err)

	var missing *MissingValueError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "rewrite-violation", missing.Key)
	assert.Equal(t, []string{"Category", "Context", "Explanation", "Jurisdiction", "MaxWords"}, missing.Names)
}

func TestRender_UnknownPrompt(t *testing.T) {
	_, err := Render("nonexistent.json", "some-key", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt file nonexistent.json not found")

	_, err = Render("autofix.json", "nonexistent-key", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRender_ValuesAreNotReexpanded(t *testing.T) {
	prompt, err := Render("compliance.json", "contextual-judge", map[string]string{
		"Jurisdiction": "us-fha",
		"FieldPath":    "twitter",
		"Categories":   "steering",
		"Text":         "literal {{.Jurisdiction}} in copy",
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "literal {{.Jurisdiction}} in copy")
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, placeholders("{{.B}} and {{.A}} then {{.B}}"))
	assert.Empty(t, placeholders("no placeholders {{ .Spaced }}"))
}
