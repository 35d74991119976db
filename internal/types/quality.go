// Package types provides type definitions for structured data used throughout the listing-copy-guard system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// QualityCategory is one of the persuasive-quality dimensions
type QualityCategory string

// Quality categories
const (
	QualityFormatFit           QualityCategory = "format-fit"
	QualityCTAStrength         QualityCategory = "cta-strength"
	QualityCliche              QualityCategory = "cliche"
	QualityPowerWords          QualityCategory = "power-words"
	QualityFormatting          QualityCategory = "formatting"
	QualityHookStrength        QualityCategory = "hook-strength"
	QualitySpecificity         QualityCategory = "specificity"
	QualityFeatureBenefit      QualityCategory = "feature-vs-benefit"
	QualityToneConsistency     QualityCategory = "tone-consistency"
	QualityRedundancy          QualityCategory = "cross-field-redundancy"
	QualityChannelOptimization QualityCategory = "channel-optimization"
	QualityAudienceFit         QualityCategory = "audience-fit"
	QualityPropertyFit         QualityCategory = "property-fit"
	QualityEmotionalResonance  QualityCategory = "emotional-resonance"
)

var validQualityCategories = map[QualityCategory]bool{
	QualityFormatFit:           true,
	QualityCTAStrength:         true,
	QualityCliche:              true,
	QualityPowerWords:          true,
	QualityFormatting:          true,
	QualityHookStrength:        true,
	QualitySpecificity:         true,
	QualityFeatureBenefit:      true,
	QualityToneConsistency:     true,
	QualityRedundancy:          true,
	QualityChannelOptimization: true,
	QualityAudienceFit:         true,
	QualityPropertyFit:         true,
	QualityEmotionalResonance:  true,
}

// IsValid reports whether c belongs to the closed quality category set
func (c QualityCategory) IsValid() bool {
	return validQualityCategories[c]
}

// Priority of a quality issue
type Priority string

// Priorities
const (
	PriorityRequired    Priority = "required"
	PriorityRecommended Priority = "recommended"
)

// IssueSource records whether a deterministic rule or the scoring model raised an issue
type IssueSource string

// Issue sources
const (
	SourceRule  IssueSource = "rule"
	SourceModel IssueSource = "model"
)

// QualityIssue is one persuasive-quality finding for a field. OriginalText and
// FixedText are set only when the improvement was already applied.
type QualityIssue struct {
	ID           string          `json:"id"`
	FieldPath    FieldPath       `json:"field_path"`
	Category     QualityCategory `json:"category"`
	Priority     Priority        `json:"priority"`
	Source       IssueSource     `json:"source"`
	Issue        string          `json:"issue"`
	SuggestedFix string          `json:"suggested_fix"`
	Score        *float64        `json:"score,omitempty"`
	OriginalText *string         `json:"original_text,omitempty"`
	FixedText    *string         `json:"fixed_text,omitempty"`
}

// Applied reports whether the issue's improvement was already applied to the text
func (q QualityIssue) Applied() bool {
	return q.FixedText != nil
}

// CampaignQualityResult reduces the per-field quality findings of one document
type CampaignQualityResult struct {
	TotalChecks         int            `json:"total_checks"`
	TotalPassed         int            `json:"total_passed"`
	RequiredIssues      int            `json:"required_issues"`
	RecommendedIssues   int            `json:"recommended_issues"`
	AllPassed           bool           `json:"all_passed"`
	OverallScore        *float64       `json:"overall_score,omitempty"`
	ImprovementsApplied int            `json:"improvements_applied"`
	Issues              []QualityIssue `json:"issues"`
	Failures            []FieldFailure `json:"failures,omitempty"`
}
