package compliance

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jonathan/listing-copy-guard/internal/policy"
	"github.com/jonathan/listing-copy-guard/internal/types"
)

func testPolicy() *types.PolicyConfig {
	return &types.PolicyConfig{
		Jurisdiction: "test",
		ProhibitedTerms: []types.ProhibitedTerm{
			{ID: "no-children", Term: "no children", Category: types.CategoryFamilialStatus, Severity: types.SeverityHard, Alternative: "quiet community", Law: "42 U.S.C. 3604(c)"},
			{ID: "adult-community", Term: "adult community", Category: types.CategoryFamilialStatus, Severity: types.SeverityHard, Alternative: "residential community"},
			{ID: "adult", Term: "adult", Category: types.CategoryAge, Severity: types.SeveritySoft},
			{ID: "guaranteed", Pattern: `\bguaranteed (return|appreciation)\b`, Category: types.CategoryMisleadingClaims, Severity: types.SeverityHard},
		},
		RequiredDisclosures: []types.RequiredDisclosure{
			{ID: "eho", Text: "Equal Housing Opportunity.", Fields: []string{"email"}, Severity: types.SeveritySoft},
		},
	}
}

func newTestScanner(t *testing.T, opts ...Option) *Scanner {
	t.Helper()
	s, err := NewScanner(testPolicy(), opts...)
	require.NoError(t, err)
	return s
}

func ruleIDs(violations []types.Violation) []string {
	ids := make([]string, 0, len(violations))
	for _, v := range violations {
		ids = append(ids, v.RuleID)
	}
	return ids
}

func TestScanField_FamilialStatusTerms(t *testing.T) {
	cfg, err := policy.Builtin("us-fha")
	require.NoError(t, err)
	s, err := NewScanner(cfg)
	require.NoError(t, err)

	scan := s.ScanField(context.Background(), "instagram.casual", "Sunny condo, no children, in a gated adult community.")
	require.Len(t, scan.Violations, 2)
	for _, v := range scan.Violations {
		assert.Equal(t, types.CategoryFamilialStatus, v.Category)
		assert.Equal(t, types.SeverityHard, v.Severity)
		assert.Equal(t, types.FieldPath("instagram.casual"), v.FieldPath)
		assert.NotEmpty(t, v.ID)
		assert.False(t, v.IsContextual)
	}
	assert.Equal(t, []string{"fs-no-children", "fs-adult-community"}, ruleIDs(scan.Violations))
	assert.Nil(t, scan.Failure)
}

func TestScanField_CleanField(t *testing.T) {
	s := newTestScanner(t)
	scan := s.ScanField(context.Background(), "twitter", "Three bedrooms, renovated kitchen, open house Sunday.")
	assert.Empty(t, scan.Violations)
	assert.Nil(t, scan.Failure)
}

func TestScanField_OverlappingMatchesAllRecorded(t *testing.T) {
	s := newTestScanner(t)
	scan := s.ScanField(context.Background(), "twitter", "A peaceful adult community")

	assert.Equal(t, []string{"adult-community", "adult"}, ruleIDs(scan.Violations))
	assert.Equal(t, scan.Violations[0].Start, scan.Violations[1].Start)
}

func TestScanField_Offsets(t *testing.T) {
	s := newTestScanner(t)
	scan := s.ScanField(context.Background(), "twitter", "Café — No  Children please")

	require.Len(t, scan.Violations, 1)
	v := scan.Violations[0]
	assert.Equal(t, "No  Children", v.MatchedTerm)
	assert.Equal(t, 7, v.Start)
	assert.Equal(t, 19, v.End)
	assert.Equal(t, "Café — No  Children please", v.Context)
	assert.Equal(t, "quiet community", v.SuggestedAlternative)
	assert.Equal(t, "42 U.S.C. 3604(c)", v.Citation)
}

func TestScanField_WordBoundaries(t *testing.T) {
	s := newTestScanner(t)

	tests := []struct {
		text string
		want int
	}{
		{text: "casino children's museum nearby", want: 0},
		{text: "adulthood memories", want: 0},
		{text: "adult-oriented design", want: 1},
		{text: "GUARANTEED RETURN on investment", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Len(t, s.ScanField(context.Background(), "twitter", tt.text).Violations, tt.want)
		})
	}
}

func TestScanField_ContextWindowBounded(t *testing.T) {
	s := newTestScanner(t)
	text := strings.Repeat("a", 100) + " no children " + strings.Repeat("b", 100)

	scan := s.ScanField(context.Background(), "twitter", text)
	require.Len(t, scan.Violations, 1)
	assert.LessOrEqual(t, len([]rune(scan.Violations[0].Context)), len("no children")+2*ContextRadius)
	assert.Contains(t, scan.Violations[0].Context, "no children")
}

func TestScanField_HTMLMarkupNormalised(t *testing.T) {
	s := newTestScanner(t)
	body := `<div><p>Welcome home.</p><p>No <b>children</b> allowed.</p><p>Equal Housing Opportunity.</p></div>`

	scan := s.ScanField(context.Background(), "email.body", body)
	require.Len(t, scan.Violations, 1)
	assert.Equal(t, "no-children", scan.Violations[0].RuleID)
	assert.NotContains(t, scan.Violations[0].Context, "<")
}

func TestScanField_MissingDisclosure(t *testing.T) {
	s := newTestScanner(t)

	scan := s.ScanField(context.Background(), "email.body", "Open house this Sunday.")
	require.Len(t, scan.Violations, 1)
	v := scan.Violations[0]
	assert.Equal(t, types.CategoryMissingDisclosure, v.Category)
	assert.Equal(t, types.SeveritySoft, v.Severity)
	assert.Equal(t, "eho", v.RuleID)
	assert.Equal(t, "Equal Housing Opportunity.", v.SuggestedAlternative)

	scan = s.ScanField(context.Background(), "email.body", "Open house this Sunday. equal housing opportunity.")
	assert.Empty(t, scan.Violations)

	scan = s.ScanField(context.Background(), "twitter", "Open house this Sunday.")
	assert.Empty(t, scan.Violations, "disclosure only applies to matching fields")
}

type fakeJudge struct {
	violations []types.Violation
	err        error
	block      bool
}

func (f *fakeJudge) Judge(ctx context.Context, _ types.FieldPath, _ string, _ string) ([]types.Violation, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.violations, f.err
}

func TestScanField_JudgeFindingsAreFirstClass(t *testing.T) {
	judge := &fakeJudge{violations: []types.Violation{
		{MatchedTerm: "perfect for empty nesters", Category: types.CategoryFamilialStatus, Severity: types.SeverityHard, Explanation: "implies no children"},
		{MatchedTerm: "sunny", Category: "weather", Severity: types.SeveritySoft},
		{MatchedTerm: "quiet street", Category: types.CategorySteering, Severity: "medium"},
	}}
	s := newTestScanner(t, WithJudge(judge))

	scan := s.ScanField(context.Background(), "facebook", "Sunny ranch on a quiet street, perfect for empty nesters.")
	require.Len(t, scan.Violations, 2)

	first := scan.Violations[0]
	assert.True(t, first.IsContextual)
	assert.Equal(t, types.FieldPath("facebook"), first.FieldPath)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, 31, first.Start)
	assert.Equal(t, 56, first.End)

	assert.Equal(t, types.SeveritySoft, scan.Violations[1].Severity, "unknown severity downgraded")
	assert.Nil(t, scan.Failure)
}

func TestScanField_JudgeFailureKeepsRuleMatches(t *testing.T) {
	s := newTestScanner(t, WithJudge(&fakeJudge{err: errors.New("quota exceeded")}))

	scan := s.ScanField(context.Background(), "twitter", "no children")
	require.Len(t, scan.Violations, 1)
	require.NotNil(t, scan.Failure)
	assert.Equal(t, "judge", scan.Failure.Collaborator)
	assert.Equal(t, "scan", scan.Failure.Stage)
	assert.False(t, scan.Failure.TimedOut)
	assert.Contains(t, scan.Failure.Message, "quota exceeded")
}

func TestScanField_JudgeTimeout(t *testing.T) {
	s := newTestScanner(t, WithJudge(&fakeJudge{block: true}), WithJudgeTimeout(10*time.Millisecond))

	scan := s.ScanField(context.Background(), "twitter", "no children")
	require.Len(t, scan.Violations, 1)
	require.NotNil(t, scan.Failure)
	assert.True(t, scan.Failure.TimedOut)
}

func TestScan_DocumentOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	doc := types.NewDocument(
		"twitter", "adult community living",
		"sms", "Open house today",
		"email.body", "no children. Equal Housing Opportunity.",
		"facebook", "Guaranteed appreciation!",
	)
	s := newTestScanner(t, WithConcurrency(2), WithJudge(&fakeJudge{err: errors.New("offline")}))

	result, err := s.Scan(context.Background(), doc)
	require.NoError(t, err)

	var paths []types.FieldPath
	for _, v := range result.Violations {
		paths = append(paths, v.FieldPath)
	}
	assert.Equal(t, []types.FieldPath{"twitter", "twitter", "email.body", "facebook"}, paths)
	require.Len(t, result.Failures, 4)
	assert.Equal(t, types.FieldPath("twitter"), result.Failures[0].FieldPath)
	assert.Equal(t, types.FieldPath("facebook"), result.Failures[3].FieldPath)
}

func TestScan_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestScanner(t)
	_, err := s.Scan(ctx, types.NewDocument("twitter", "hello"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewScanner_Errors(t *testing.T) {
	_, err := NewScanner(nil)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))

	_, err = NewScanner(&types.PolicyConfig{
		Jurisdiction:    "x",
		ProhibitedTerms: []types.ProhibitedTerm{{ID: "bad", Pattern: "(unclosed"}},
	})
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "bad")
}

func TestMatchesAndLookups(t *testing.T) {
	s := newTestScanner(t)

	matches := s.Matches("No children. Adult community.")
	require.Len(t, matches, 3)
	assert.Equal(t, "No children", matches[0].Text)

	assert.Len(t, s.MatchRule("adult", "adult adult"), 2)
	assert.Nil(t, s.MatchRule("unknown", "adult"))

	counts := s.CountByRule("<p>adult</p> adult community")
	assert.Equal(t, 2, counts["adult"])
	assert.Equal(t, 1, counts["adult-community"])

	term, ok := s.Rule("no-children")
	require.True(t, ok)
	assert.Equal(t, "quiet community", term.Alternative)

	d, ok := s.Disclosure("eho")
	require.True(t, ok)
	assert.Equal(t, "Equal Housing Opportunity.", d.Text)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "plain < text", Normalize("plain < text"))
	assert.Equal(t, "Hello world", Normalize("<p>Hello</p><p>world</p>"))
	assert.Equal(t, "Visible", Normalize("<style>p{}</style><span>Visible</span>"))
}
