package quality

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/listing-copy-guard/internal/llm"
	"github.com/jonathan/listing-copy-guard/internal/prompts"
	"github.com/jonathan/listing-copy-guard/internal/types"
)

// modelCategories is the vocabulary offered to the scoring model
var modelCategories = []types.QualityCategory{
	types.QualityFormatFit,
	types.QualityCTAStrength,
	types.QualityCliche,
	types.QualityPowerWords,
	types.QualityFormatting,
	types.QualityHookStrength,
	types.QualitySpecificity,
	types.QualityFeatureBenefit,
	types.QualityToneConsistency,
	types.QualityRedundancy,
	types.QualityChannelOptimization,
	types.QualityAudienceFit,
	types.QualityPropertyFit,
	types.QualityEmotionalResonance,
}

// LLMModel scores copy with a language model
type LLMModel struct {
	client llm.Client
	tier   llm.ModelTier
}

// NewLLMModel creates a scoring model backed by client
func NewLLMModel(client llm.Client) *LLMModel {
	return &LLMModel{client: client, tier: llm.TierStandard}
}

type modelResponse struct {
	Score  *float64 `json:"score"`
	Issues []struct {
		Category     string `json:"category"`
		Priority     string `json:"priority"`
		Issue        string `json:"issue"`
		SuggestedFix string `json:"suggested_fix"`
	} `json:"issues"`
}

// Assess implements Model
func (m *LLMModel) Assess(ctx context.Context, path types.FieldPath, text string) (*Assessment, error) {
	names := make([]string, len(modelCategories))
	for i, c := range modelCategories {
		names[i] = string(c)
	}
	prompt, err := prompts.Render("quality.json", "score-field", map[string]string{
		"FieldPath":  path.String(),
		"Channel":    path.Channel(),
		"Variant":    path.Leaf(),
		"Categories": strings.Join(names, ", "),
		"Text":       text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build quality prompt: %w", err)
	}

	raw, err := m.client.GenerateJSON(ctx, prompt, m.tier)
	if err != nil {
		return nil, fmt.Errorf("quality model call failed: %w", err)
	}

	var resp modelResponse
	if err := llm.DecodeJSON(raw, &resp); err != nil {
		return nil, err
	}

	assessment := &Assessment{Score: resp.Score}
	for _, is := range resp.Issues {
		assessment.Issues = append(assessment.Issues, types.QualityIssue{
			Category:     types.QualityCategory(strings.ToLower(strings.TrimSpace(is.Category))),
			Priority:     types.Priority(strings.ToLower(strings.TrimSpace(is.Priority))),
			Issue:        is.Issue,
			SuggestedFix: is.SuggestedFix,
		})
	}
	return assessment, nil
}
