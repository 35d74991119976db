package autofix

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/listing-copy-guard/internal/llm"
)

func TestMatchCase(t *testing.T) {
	tests := []struct {
		replacement string
		matched     string
		want        string
	}{
		{"quiet community", "no children", "quiet community"},
		{"quiet community", "No children", "Quiet community"},
		{"quiet community", "NO CHILDREN", "QUIET COMMUNITY"},
		{"élan", "Bachelor pad", "Élan"},
		{"", "No children", ""},
		{"bonus room", "A", "Bonus room"},
	}
	for _, tt := range tests {
		t.Run(tt.matched+"->"+tt.replacement, func(t *testing.T) {
			assert.Equal(t, tt.want, matchCase(tt.replacement, tt.matched))
		})
	}
}

func TestTidy(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Spacious home, , near the park", "Spacious home, near the park"},
		{"Bright  condo .", "Bright condo."},
		{", starts with a comma", "starts with a comma"},
		{"!", ""},
		{"already tidy", "already tidy"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tidy(tt.in), tt.in)
	}
}

func TestAppendDisclosure(t *testing.T) {
	assert.Equal(t, "Tour today. Equal Housing Opportunity.", appendDisclosure("Tour today.\n", "Equal Housing Opportunity."))
	assert.Equal(t, "Equal Housing Opportunity.", appendDisclosure("  ", "Equal Housing Opportunity."))
}

func TestIndexFold(t *testing.T) {
	start, end, ok := indexFold("Great for Empty Nesters (really)", "empty nesters")
	require.True(t, ok)
	assert.Equal(t, "Empty Nesters", "Great for Empty Nesters (really)"[start:end])

	_, _, ok = indexFold("nothing here", "(really)")
	assert.False(t, ok)
	_, _, ok = indexFold("anything", "")
	assert.False(t, ok)
}

type stubClient struct {
	response string
	err      error
	prompt   string
}

func (s *stubClient) GenerateContent(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
	s.prompt = prompt
	return s.response, s.err
}

func (s *stubClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	return s.GenerateContent(ctx, prompt, tier)
}

func (s *stubClient) GetModel(llm.ModelTier) string { return "stub" }

func (s *stubClient) Close() error { return nil }

func TestLLMRewriter(t *testing.T) {
	client := &stubClient{response: "```json\n{\"replacement\": \" near several schools \"}\n```"}
	got, err := NewLLMRewriter(client).Rewrite(context.Background(), RewriteRequest{
		FieldPath:    "facebook",
		Jurisdiction: "us-fha",
		Term:         "best school district",
		Category:     "steering",
		Context:      "Located in the best school district.",
	})
	require.NoError(t, err)
	assert.Equal(t, "near several schools", got)
	assert.Contains(t, client.prompt, "best school district")
	assert.Contains(t, client.prompt, "5 words")

	var collabErr *CollaboratorError
	_, err = NewLLMRewriter(&stubClient{err: errors.New("boom")}).Rewrite(context.Background(), RewriteRequest{Term: "x"})
	require.True(t, errors.As(err, &collabErr))
	assert.Equal(t, "rewriter", collabErr.Collaborator)

	_, err = NewLLMRewriter(&stubClient{response: "sure!"}).Rewrite(context.Background(), RewriteRequest{Term: "x"})
	require.True(t, errors.As(err, &collabErr))
}
