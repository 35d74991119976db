// Package types provides type definitions for structured data used throughout the listing-copy-guard system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// Category is the policy category a violation falls under
type Category string

// Policy categories
const (
	CategorySteering          Category = "steering"
	CategoryFamilialStatus    Category = "familial-status"
	CategoryDisability        Category = "disability"
	CategoryRaceOrigin        Category = "race-origin"
	CategoryReligion          Category = "religion"
	CategorySexGender         Category = "sex-gender"
	CategoryAge               Category = "age"
	CategoryMaritalStatus     Category = "marital-status"
	CategoryEconomicExclusion Category = "economic-exclusion"
	CategoryMisleadingClaims  Category = "misleading-claims"
	CategoryMissingDisclosure Category = "missing-disclosure"
)

var categories = []Category{
	CategorySteering,
	CategoryFamilialStatus,
	CategoryDisability,
	CategoryRaceOrigin,
	CategoryReligion,
	CategorySexGender,
	CategoryAge,
	CategoryMaritalStatus,
	CategoryEconomicExclusion,
	CategoryMisleadingClaims,
	CategoryMissingDisclosure,
}

// Categories returns the closed category set in declaration order
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// IsValid reports whether c belongs to the closed category set
func (c Category) IsValid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// Severity of a policy violation
type Severity string

// Severities
const (
	// SeverityHard marks content that must not ship as-is
	SeverityHard Severity = "hard"
	// SeveritySoft marks advisory or borderline phrasing
	SeveritySoft Severity = "soft"
)

// IsValid reports whether s is hard or soft
func (s Severity) IsValid() bool {
	return s == SeverityHard || s == SeveritySoft
}

// Violation is a single policy match in one field. Violations are never edited after
// the scanner records them.
type Violation struct {
	ID                   string    `json:"id"`
	FieldPath            FieldPath `json:"field_path"`
	RuleID               string    `json:"rule_id,omitempty"`
	MatchedTerm          string    `json:"matched_term,omitempty"`
	Category             Category  `json:"category"`
	Severity             Severity  `json:"severity"`
	Explanation          string    `json:"explanation"`
	Citation             string    `json:"citation,omitempty"`
	SuggestedAlternative string    `json:"suggested_alternative,omitempty"`
	Context              string    `json:"context,omitempty"`
	Start                int       `json:"start"`
	End                  int       `json:"end"`
	IsContextual         bool      `json:"is_contextual"`
}

// IsHard reports whether the violation blocks a compliant verdict
func (v Violation) IsHard() bool {
	return v.Severity == SeverityHard
}

// FixSource names where an auto-fix replacement came from
type FixSource string

// Fix sources
const (
	FixSourceRule       FixSource = "rule"
	FixSourceRewrite    FixSource = "rewrite"
	FixSourceRemoval    FixSource = "removal"
	FixSourceDisclosure FixSource = "disclosure"
)

// AutoFix records one whole-field replacement. BeforeText and AfterText are complete
// field values, never substrings.
type AutoFix struct {
	ID             string    `json:"id"`
	ViolationID    string    `json:"violation_id"`
	FieldPath      FieldPath `json:"field_path"`
	BeforeText     string    `json:"before_text"`
	AfterText      string    `json:"after_text"`
	TriggeringTerm string    `json:"triggering_term"`
	Category       Category  `json:"category"`
	Source         FixSource `json:"source"`
}

// FieldVerdict is the compliance outcome for one field, computed after auto-fix
type FieldVerdict struct {
	FieldPath       FieldPath `json:"field_path"`
	Pass            bool      `json:"pass"`
	ViolationCount  int       `json:"violation_count"`
	AutoFixCount    int       `json:"auto_fix_count"`
	UnresolvedCount int       `json:"unresolved_count"`
	Partial         bool      `json:"partial"`
}

// CampaignVerdict is the document-level compliance outcome
type CampaignVerdict string

// Campaign verdicts
const (
	VerdictCompliant    CampaignVerdict = "compliant"
	VerdictNeedsReview  CampaignVerdict = "needs-review"
	VerdictNonCompliant CampaignVerdict = "non-compliant"
)

// FieldFailure marks a field whose stage ran without one of its collaborators. The
// field still carries rule-only results and is reported as partial.
type FieldFailure struct {
	FieldPath    FieldPath `json:"field_path"`
	Stage        string    `json:"stage"`
	Collaborator string    `json:"collaborator"`
	Message      string    `json:"message"`
	TimedOut     bool      `json:"timed_out"`
}

// ComplianceResult is the audit record of the scan and fix stages
type ComplianceResult struct {
	Jurisdiction  string          `json:"jurisdiction"`
	Violations    []Violation     `json:"violations"`
	AutoFixes     []AutoFix       `json:"auto_fixes"`
	Unresolved    []string        `json:"unresolved"`
	FieldVerdicts []FieldVerdict  `json:"field_verdicts"`
	Verdict       CampaignVerdict `json:"verdict"`
	Failures      []FieldFailure  `json:"failures,omitempty"`
}

// ConstraintKindCharacterLimit is the only constraint kind currently enforced
const ConstraintKindCharacterLimit = "character-limit"

// ConstraintSeverityCritical is the severity of every hard constraint
const ConstraintSeverityCritical = "critical"

// ConstraintViolation records a hard length limit breach and its truncation
type ConstraintViolation struct {
	ID          string    `json:"id"`
	FieldPath   FieldPath `json:"field_path"`
	Kind        string    `json:"kind"`
	Severity    string    `json:"severity"`
	Issue       string    `json:"issue"`
	CurrentText string    `json:"current_text"`
	Limit       int       `json:"limit"`
	AutoFixed   bool      `json:"auto_fixed"`
	FixedText   *string   `json:"fixed_text,omitempty"`
}
