package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/listing-copy-guard/internal/types"
)

func TestPrintViolations(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintViolations([]types.Violation{
		{RuleID: "fs-no-children", FieldPath: "twitter", MatchedTerm: "no children", Severity: types.SeverityHard, Category: types.CategoryFamilialStatus},
		{FieldPath: "sms", MatchedTerm: "quiet", Severity: types.SeveritySoft, Category: types.CategorySteering, IsContextual: true},
	})
	output := buf.String()

	assert.Contains(t, output, "COMPLIANCE VIOLATIONS")
	assert.Contains(t, output, "Found 2 violations")
	assert.Contains(t, output, "fs-no-children (hard, familial-status)")
	assert.Contains(t, output, "contextual (soft, steering)")
	assert.Contains(t, output, `twitter: "no children"`)
}

func TestPrintViolations_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintViolations(nil)

	assert.Contains(t, buf.String(), "NO VIOLATIONS FOUND")
}

func TestPrintViolations_Truncated(t *testing.T) {
	var buf bytes.Buffer
	violations := make([]types.Violation, 8)
	for i := range violations {
		violations[i] = types.Violation{RuleID: "r", FieldPath: "twitter"}
	}
	NewPrinter(&buf).PrintViolations(violations)

	assert.Contains(t, buf.String(), "... and 3 more violations")
}

func TestPrintAutoFixes(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintAutoFixes([]types.AutoFix{{FieldPath: "twitter", Source: types.FixSourceRule, BeforeText: "No children.", AfterText: "Quiet community."}})
	output := buf.String()

	assert.Contains(t, output, "AUTO-FIXES")
	assert.Contains(t, output, "twitter [rule]")
	assert.Contains(t, output, "- No children.")
	assert.Contains(t, output, "+ Quiet community.")

	buf.Reset()
	p.PrintAutoFixes(nil)
	assert.Empty(t, buf.String())
}

func TestPrintConstraints(t *testing.T) {
	var buf bytes.Buffer
	fixed := "Lake house…"

	NewPrinter(&buf).PrintConstraints([]types.ConstraintViolation{{FieldPath: "sms", Limit: 160, FixedText: &fixed}})
	output := buf.String()

	assert.Contains(t, output, "LENGTH LIMITS")
	assert.Contains(t, output, "sms (limit 160)")
	assert.Contains(t, output, "Lake house…")
}

func TestPrintQuality(t *testing.T) {
	var buf bytes.Buffer
	score := 7.3

	NewPrinter(&buf).PrintQuality(&types.CampaignQualityResult{
		TotalChecks:       10,
		TotalPassed:       8,
		RequiredIssues:    1,
		RecommendedIssues: 1,
		OverallScore:      &score,
		Issues: []types.QualityIssue{
			{FieldPath: "google_ads.headline", Priority: types.PriorityRequired, Issue: "Remove hashtags from paid ads"},
			{FieldPath: "twitter", Priority: types.PriorityRecommended, Issue: "Add a hashtag"},
		},
	})
	output := buf.String()

	assert.Contains(t, output, "QUALITY")
	assert.Contains(t, output, "8/10 passed")
	assert.Contains(t, output, "7.3/10")
	assert.Contains(t, output, "google_ads.headline: Remove hashtags")
	assert.NotContains(t, output, "Add a hashtag")
}

func TestPrintVerdict(t *testing.T) {
	var buf bytes.Buffer

	NewPrinter(&buf).PrintVerdict(&types.ComplianceResult{
		Jurisdiction: "us-fha",
		Verdict:      types.VerdictNonCompliant,
		Violations:   []types.Violation{{}},
		Unresolved:   []string{"v1"},
		FieldVerdicts: []types.FieldVerdict{
			{FieldPath: "twitter", Pass: false},
			{FieldPath: "sms", Pass: true, Partial: true},
			{FieldPath: "facebook", Pass: true},
		},
	})
	output := buf.String()

	assert.Contains(t, output, "non-compliant (us-fha)")
	assert.Contains(t, output, "twitter: fail")
	assert.Contains(t, output, "sms: partial")
	assert.NotContains(t, output, "facebook")
}

func TestPrintBox_ClipsLongLines(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).printBox("T", strings.Repeat("é", 100))

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
	assert.Contains(t, buf.String(), "...")
}

func TestPrintNil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintQuality(nil)
	p.PrintVerdict(nil)
	p.PrintConstraints(nil)

	assert.Empty(t, buf.String())
}
