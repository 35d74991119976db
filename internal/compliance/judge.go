package compliance

import (
	"context"
	"strings"

	"github.com/jonathan/listing-copy-guard/internal/llm"
	"github.com/jonathan/listing-copy-guard/internal/prompts"
	"github.com/jonathan/listing-copy-guard/internal/types"
)

// LLMJudge asks a language model for violations that depend on context, such as
// coded steering language or implied household preferences.
type LLMJudge struct {
	client llm.Client
	tier   llm.ModelTier
}

// NewLLMJudge creates a judge backed by client
func NewLLMJudge(client llm.Client) *LLMJudge {
	return &LLMJudge{client: client, tier: llm.TierStandard}
}

type judgeResponse struct {
	Violations []judgeFinding `json:"violations"`
}

type judgeFinding struct {
	MatchedTerm          string `json:"matched_term"`
	Category             string `json:"category"`
	Severity             string `json:"severity"`
	Explanation          string `json:"explanation"`
	Citation             string `json:"citation"`
	SuggestedAlternative string `json:"suggested_alternative"`
}

// Judge implements Judge
func (j *LLMJudge) Judge(ctx context.Context, path types.FieldPath, text string, jurisdiction string) ([]types.Violation, error) {
	prompt, err := prompts.Render("compliance.json", "contextual-judge", map[string]string{
		"Jurisdiction": jurisdiction,
		"FieldPath":    path.String(),
		"Categories":   categoryList(),
		"Text":         text,
	})
	if err != nil {
		return nil, &CollaboratorError{Collaborator: "judge", Message: "failed to build prompt", Cause: err}
	}

	raw, err := j.client.GenerateJSON(ctx, prompt, j.tier)
	if err != nil {
		return nil, &CollaboratorError{Collaborator: "judge", Message: "generation failed", Cause: err}
	}
	return parseJudgeResponse(raw)
}

func parseJudgeResponse(raw string) ([]types.Violation, error) {
	var resp judgeResponse
	if err := llm.DecodeJSON(raw, &resp); err != nil {
		return nil, &CollaboratorError{Collaborator: "judge", Message: "unparseable response", Cause: err}
	}

	out := make([]types.Violation, 0, len(resp.Violations))
	for _, f := range resp.Violations {
		out = append(out, types.Violation{
			MatchedTerm:          strings.TrimSpace(f.MatchedTerm),
			Category:             types.Category(strings.ToLower(strings.TrimSpace(f.Category))),
			Severity:             types.Severity(strings.ToLower(strings.TrimSpace(f.Severity))),
			Explanation:          f.Explanation,
			Citation:             f.Citation,
			SuggestedAlternative: f.SuggestedAlternative,
		})
	}
	return out, nil
}

func categoryList() string {
	names := make([]string, 0, len(types.Categories()))
	for _, c := range types.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}
