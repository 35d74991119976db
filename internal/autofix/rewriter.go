package autofix

import (
	"context"
	"strconv"
	"strings"

	"github.com/jonathan/listing-copy-guard/internal/llm"
	"github.com/jonathan/listing-copy-guard/internal/prompts"
	"github.com/jonathan/listing-copy-guard/internal/types"
)

// RewriteRequest describes one flagged phrase the rewriter should replace. With
// WholeField set the phrase could not be located, Term may be empty, and the
// replacement is the new value of the whole field.
type RewriteRequest struct {
	FieldPath    types.FieldPath
	Jurisdiction string
	Term         string
	Category     types.Category
	Explanation  string
	Context      string
	WholeField   bool
}

// Rewriter proposes a compliant replacement for a flagged phrase. An empty
// replacement means the phrase should be dropped; for a whole-field request it
// means no rewrite was found.
type Rewriter interface {
	Rewrite(ctx context.Context, req RewriteRequest) (string, error)
}

// LLMRewriter asks a language model for a replacement phrase
type LLMRewriter struct {
	client llm.Client
	tier   llm.ModelTier
}

// NewLLMRewriter creates a rewriter backed by client
func NewLLMRewriter(client llm.Client) *LLMRewriter {
	return &LLMRewriter{client: client, tier: llm.TierAdvanced}
}

// Rewrite implements Rewriter
func (r *LLMRewriter) Rewrite(ctx context.Context, req RewriteRequest) (string, error) {
	key := "rewrite-violation"
	if req.WholeField {
		key = "rewrite-field"
	}

	maxWords := len(strings.Fields(req.Term)) + 2
	if maxWords < 3 {
		maxWords = 3
	}
	prompt, err := prompts.Render("autofix.json", key, map[string]string{
		"Jurisdiction": req.Jurisdiction,
		"Term":         req.Term,
		"Category":     string(req.Category),
		"Explanation":  req.Explanation,
		"MaxWords":     strconv.Itoa(maxWords),
		"Context":      req.Context,
	})
	if err != nil {
		return "", &CollaboratorError{Collaborator: collaboratorRewriter, Message: "failed to build prompt", Cause: err}
	}

	raw, err := r.client.GenerateJSON(ctx, prompt, r.tier)
	if err != nil {
		return "", &CollaboratorError{Collaborator: collaboratorRewriter, Message: "generation failed", Cause: err}
	}

	var resp struct {
		Replacement string `json:"replacement"`
	}
	if err := llm.DecodeJSON(raw, &resp); err != nil {
		return "", &CollaboratorError{Collaborator: collaboratorRewriter, Message: "unparseable response", Cause: err}
	}
	return strings.TrimSpace(resp.Replacement), nil
}
