package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jonathan/listing-copy-guard/internal/autofix"
	"github.com/jonathan/listing-copy-guard/internal/observability"
	"github.com/jonathan/listing-copy-guard/internal/pipeline/steps"
	"github.com/jonathan/listing-copy-guard/internal/policy"
	"github.com/jonathan/listing-copy-guard/internal/revert"
	"github.com/jonathan/listing-copy-guard/internal/types"
)

func fha(t *testing.T) *types.PolicyConfig {
	t.Helper()
	pol, err := policy.Builtin("us-fha")
	require.NoError(t, err)
	return pol
}

type savedArtifact struct {
	step     string
	category string
	content  any
}

type fakeStore struct {
	runID      uuid.UUID
	artifacts  []savedArtifact
	status     string
	failCreate bool
	failSave   bool
}

func (s *fakeStore) CreateRun(_ context.Context, _ string) (uuid.UUID, error) {
	if s.failCreate {
		return uuid.Nil, errors.New("db down")
	}
	s.runID = uuid.New()
	return s.runID, nil
}

func (s *fakeStore) SaveArtifact(_ context.Context, _ uuid.UUID, step, category string, content any) error {
	if s.failSave {
		return errors.New("disk full")
	}
	s.artifacts = append(s.artifacts, savedArtifact{step: step, category: category, content: content})
	return nil
}

func (s *fakeStore) CompleteRun(_ context.Context, _ uuid.UUID, status string) error {
	s.status = status
	return nil
}

func (s *fakeStore) steps() []string {
	var names []string
	for _, a := range s.artifacts {
		names = append(names, a.step)
	}
	return names
}

func TestRun_TweetTruncated(t *testing.T) {
	defer goleak.VerifyNone(t)

	doc := types.NewDocument("twitter", strings.Repeat("a", 300))
	result, err := New(Dependencies{}, Options{}).Run(context.Background(), doc, fha(t))
	require.NoError(t, err)

	text, _ := result.Final.Get("twitter")
	assert.LessOrEqual(t, utf8.RuneCountInString(text), 280)
	require.Len(t, result.Constraints, 1)
	assert.True(t, result.Constraints[0].AutoFixed)
	assert.Equal(t, 280, result.Constraints[0].Limit)

	remediated, _ := result.Remediated.Get("twitter")
	assert.Equal(t, strings.Repeat("a", 300), remediated, "remediated copy is captured before truncation")
}

func TestRun_DescriptionLimit(t *testing.T) {
	doc := types.NewDocument("description", strings.Repeat("Bright rooms. ", 86))
	require.Greater(t, utf8.RuneCountInString(strings.Repeat("Bright rooms. ", 86)), 1000)

	result, err := New(Dependencies{}, Options{}).Run(context.Background(), doc, fha(t))
	require.NoError(t, err)

	text, _ := result.Final.Get("description")
	assert.LessOrEqual(t, utf8.RuneCountInString(text), 1000)
	assert.True(t, strings.HasSuffix(text, "…"))
	require.Len(t, result.Constraints, 1)
}

func TestRun_FamilialStatusFixed(t *testing.T) {
	raw := "Sunny condo, no children, in a gated adult community."
	doc := types.NewDocument("instagram.casual", raw)

	result, err := New(Dependencies{}, Options{}).Run(context.Background(), doc, fha(t))
	require.NoError(t, err)

	c := result.Compliance
	require.Len(t, c.Violations, 2)
	for _, v := range c.Violations {
		assert.Equal(t, types.CategoryFamilialStatus, v.Category)
		assert.Equal(t, types.SeverityHard, v.Severity)
	}
	assert.Len(t, c.AutoFixes, 2)
	assert.Empty(t, c.Unresolved)
	assert.Equal(t, types.VerdictNeedsReview, c.Verdict)
	require.Len(t, c.FieldVerdicts, 1)
	assert.True(t, c.FieldVerdicts[0].Pass)

	final, _ := result.Final.Get("instagram.casual")
	assert.NotContains(t, strings.ToLower(final), "no children")
	assert.NotContains(t, strings.ToLower(final), "adult community")

	restored, report, err := Revert(result.Final, c.AutoFixes)
	require.NoError(t, err)
	assert.Empty(t, report.Skipped)
	text, _ := restored.Get("instagram.casual")
	assert.Equal(t, raw, text)
	assert.NoError(t, revert.VerifyRoundTrip(result.Final, c.AutoFixes))

	require.Len(t, result.Diffs, 1)
	assert.Equal(t, types.FieldPath("instagram.casual"), result.Diffs[0].FieldPath)
}

func TestRun_CleanField(t *testing.T) {
	doc := types.NewDocument("facebook", "Three bedrooms, two baths and a renovated kitchen near the lake. Schedule a tour today.")

	result, err := New(Dependencies{}, Options{}).Run(context.Background(), doc, fha(t))
	require.NoError(t, err)

	assert.Empty(t, result.Compliance.Violations)
	assert.Empty(t, result.Constraints)
	assert.Equal(t, types.VerdictCompliant, result.Compliance.Verdict)
	require.Len(t, result.Compliance.FieldVerdicts, 1)
	assert.True(t, result.Compliance.FieldVerdicts[0].Pass)
	assert.NotEmpty(t, result.RunID)
}

func TestRun_UnfixableHardViolation(t *testing.T) {
	doc := types.NewDocument("sms", "Adults only")

	result, err := New(Dependencies{}, Options{}).Run(context.Background(), doc, fha(t))
	require.NoError(t, err)

	assert.Equal(t, types.VerdictNonCompliant, result.Compliance.Verdict)
	require.Len(t, result.Compliance.Unresolved, 1)
	assert.False(t, result.Compliance.FieldVerdicts[0].Pass)
}

func TestRun_FatalErrors(t *testing.T) {
	ctx := context.Background()
	p := New(Dependencies{}, Options{})
	doc := types.NewDocument("twitter", "x")

	_, err := p.Run(ctx, doc, nil)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.True(t, IsFatal(err))

	_, err = p.Run(ctx, doc, &types.PolicyConfig{})
	require.ErrorAs(t, err, &cfgErr)

	_, err = p.Run(ctx, types.NewDocument(), fha(t))
	var docErr *DocumentError
	require.ErrorAs(t, err, &docErr)
	assert.True(t, IsFatal(err))

	_, err = p.Run(ctx, nil, fha(t))
	require.ErrorAs(t, err, &docErr)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &fakeStore{}
	_, err := New(Dependencies{Store: store}, Options{}).Run(ctx, types.NewDocument("twitter", "x"), fha(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsFatal(err))
	assert.Equal(t, StatusFailed, store.status)
}

func TestRun_StoresEveryStage(t *testing.T) {
	store := &fakeStore{}
	var events []ProgressEvent

	doc := types.NewDocument("twitter", "Bachelor pad with a man cave.")
	result, err := New(Dependencies{Store: store}, Options{
		OnProgress: func(e ProgressEvent) { events = append(events, e) },
	}).Run(context.Background(), doc, fha(t))
	require.NoError(t, err)

	assert.Equal(t, store.runID.String(), result.RunID)
	assert.Equal(t, StatusCompleted, store.status)
	assert.Equal(t, []string{
		steps.ArtifactInput,
		steps.StepScan, steps.StepFix, steps.StepConstrain, steps.StepScore, steps.StepAggregate,
		steps.ArtifactDiffs, steps.ArtifactFinal,
	}, store.steps())
	assert.Equal(t, steps.CategoryCompliance, store.artifacts[1].category)

	require.Len(t, events, 5)
	assert.Equal(t, steps.Names(), []string{events[0].Step, events[1].Step, events[2].Step, events[3].Step, events[4].Step})
	assert.Equal(t, result.RunID, events[0].RunID)
	assert.Contains(t, events[4].Message, "needs-review")
}

func TestRun_SoftViolationsDeferredUnlessFixSoft(t *testing.T) {
	doc := types.NewDocument("twitter", "Bachelor pad with a man cave.")

	result, err := New(Dependencies{}, Options{}).Run(context.Background(), doc, fha(t))
	require.NoError(t, err)
	assert.Empty(t, result.Compliance.AutoFixes)
	assert.Len(t, result.Compliance.Unresolved, 2)
	assert.Equal(t, types.VerdictNeedsReview, result.Compliance.Verdict)

	result, err = New(Dependencies{}, Options{FixSoft: true}).Run(context.Background(), doc, fha(t))
	require.NoError(t, err)
	assert.Len(t, result.Compliance.AutoFixes, 2)
	assert.Empty(t, result.Compliance.Unresolved)
	final, _ := result.Final.Get("twitter")
	assert.Equal(t, "Stylish home with a bonus room.", final)
}

func TestRun_StoreFailuresAreNotFatal(t *testing.T) {
	for _, store := range []*fakeStore{{failCreate: true}, {failSave: true}} {
		result, err := New(Dependencies{Store: store}, Options{}).Run(context.Background(), types.NewDocument("twitter", "Lake views."), fha(t))
		require.NoError(t, err)
		_, parseErr := uuid.Parse(result.RunID)
		assert.NoError(t, parseErr)
	}
}

type failingJudge struct{}

func (failingJudge) Judge(context.Context, types.FieldPath, string, string) ([]types.Violation, error) {
	return nil, errors.New("judge offline")
}

func TestRun_CollaboratorFailureMarksFieldPartial(t *testing.T) {
	doc := types.NewDocument("twitter", "Lake views.", "sms", "Tour Sunday.")

	result, err := New(Dependencies{Judge: failingJudge{}}, Options{}).Run(context.Background(), doc, fha(t))
	require.NoError(t, err)

	require.Len(t, result.Compliance.Failures, 2)
	for _, fv := range result.Compliance.FieldVerdicts {
		assert.True(t, fv.Partial)
		assert.True(t, fv.Pass)
	}
	assert.Equal(t, types.VerdictCompliant, result.Compliance.Verdict)
}

func TestRun_VerbosePrinter(t *testing.T) {
	var buf bytes.Buffer
	doc := types.NewDocument("twitter", "Sunny condo, no children.")

	_, err := New(Dependencies{Printer: observability.NewPrinter(&buf)}, Options{}).Run(context.Background(), doc, fha(t))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "COMPLIANCE VIOLATIONS")
	assert.Contains(t, out, "fs-no-children")
	assert.Contains(t, out, "needs-review")
}

func TestRun_MarkupSplitTermStaysUnresolved(t *testing.T) {
	doc := types.NewDocument("email.body", "<p>Quiet street. No <b>children</b> please. Equal Housing Opportunity.</p>")

	result, err := New(Dependencies{}, Options{}).Run(context.Background(), doc, fha(t))
	require.NoError(t, err)

	c := result.Compliance
	require.Len(t, c.Violations, 1)
	assert.Equal(t, "fs-no-children", c.Violations[0].RuleID)
	assert.Empty(t, c.AutoFixes)
	assert.Equal(t, []string{c.Violations[0].ID}, c.Unresolved)
	assert.False(t, c.FieldVerdicts[0].Pass)
	assert.Equal(t, types.VerdictNonCompliant, c.Verdict)
}

type vagueJudge struct{}

func (vagueJudge) Judge(context.Context, types.FieldPath, string, string) ([]types.Violation, error) {
	return []types.Violation{{
		Category:    types.CategorySteering,
		Severity:    types.SeverityHard,
		Explanation: "Implies a preferred kind of buyer.",
	}}, nil
}

type fieldRewriter struct {
	value string
	calls []bool
}

func (f *fieldRewriter) Rewrite(_ context.Context, req autofix.RewriteRequest) (string, error) {
	f.calls = append(f.calls, req.WholeField)
	return f.value, nil
}

func TestRun_UnlocatedContextualViolation(t *testing.T) {
	doc := types.NewDocument("twitter", "Perfect neighborhood for people like us.")

	t.Run("without rewriter", func(t *testing.T) {
		result, err := New(Dependencies{Judge: vagueJudge{}}, Options{}).Run(context.Background(), doc, fha(t))
		require.NoError(t, err)

		c := result.Compliance
		require.Len(t, c.Violations, 1)
		assert.True(t, c.Violations[0].IsContextual)
		assert.Empty(t, c.AutoFixes)
		assert.Len(t, c.Unresolved, 1)
		assert.False(t, c.FieldVerdicts[0].Pass)
		assert.Equal(t, types.VerdictNonCompliant, c.Verdict)
	})

	t.Run("rewrites whole field", func(t *testing.T) {
		rw := &fieldRewriter{value: "Perfect neighborhood near the lake trail."}
		result, err := New(Dependencies{Judge: vagueJudge{}, Rewriter: rw}, Options{}).Run(context.Background(), doc, fha(t))
		require.NoError(t, err)

		assert.Equal(t, []bool{true}, rw.calls)
		c := result.Compliance
		require.Len(t, c.AutoFixes, 1)
		assert.Equal(t, types.FixSourceRewrite, c.AutoFixes[0].Source)
		assert.Empty(t, c.Unresolved)
		assert.Equal(t, types.VerdictNeedsReview, c.Verdict)

		final, _ := result.Final.Get("twitter")
		assert.Equal(t, "Perfect neighborhood near the lake trail.", final)
	})

	t.Run("empty rewrite stays unresolved", func(t *testing.T) {
		rw := &fieldRewriter{}
		result, err := New(Dependencies{Judge: vagueJudge{}, Rewriter: rw}, Options{}).Run(context.Background(), doc, fha(t))
		require.NoError(t, err)

		assert.Empty(t, result.Compliance.AutoFixes)
		assert.Equal(t, types.VerdictNonCompliant, result.Compliance.Verdict)
	})
}

func TestRun_RevertAfterFormattingPolish(t *testing.T) {
	draft := "Quiet street, no children.  Call today to tour this home!!"
	doc := types.NewDocument("sms", draft)

	result, err := New(Dependencies{}, Options{}).Run(context.Background(), doc, fha(t))
	require.NoError(t, err)

	final, _ := result.Final.Get("sms")
	assert.Equal(t, "Quiet street, quiet community. Call today to tour this home!", final)
	require.Len(t, result.Compliance.AutoFixes, 1)

	raw, report, err := Revert(result.Final, result.Compliance.AutoFixes)
	require.NoError(t, err)
	assert.Empty(t, report.Skipped)
	text, _ := raw.Get("sms")
	assert.Equal(t, "Quiet street, no children. Call today to tour this home!", text)
	assert.NoError(t, revert.VerifyRoundTrip(result.Final, result.Compliance.AutoFixes))

	// the formatting fix is reported with the untouched draft text
	var applied []types.QualityIssue
	for _, is := range result.Quality.Issues {
		if is.Applied() {
			applied = append(applied, is)
		}
	}
	require.Len(t, applied, 1)
	assert.Equal(t, draft, *applied[0].OriginalText)
	assert.Equal(t, 1, result.Quality.ImprovementsApplied)

	input, _ := doc.Get("sms")
	assert.Equal(t, draft, input)
}

func TestRun_RevertSkipsTruncatedField(t *testing.T) {
	draft := "Sunny condo, no children. " + strings.Repeat("Lake views and a wide deck. ", 12)
	doc := types.NewDocument("twitter", draft)

	result, err := New(Dependencies{}, Options{}).Run(context.Background(), doc, fha(t))
	require.NoError(t, err)
	require.Len(t, result.Constraints, 1)
	require.Len(t, result.Compliance.AutoFixes, 1)

	_, report, err := Revert(result.Final, result.Compliance.AutoFixes)
	require.NoError(t, err)
	require.Len(t, report.Skipped, 1)
	assert.NoError(t, revert.VerifyRoundTrip(result.Final, result.Compliance.AutoFixes))

	raw, report, err := Revert(result.Remediated, result.Compliance.AutoFixes)
	require.NoError(t, err)
	assert.Empty(t, report.Skipped)
	text, _ := raw.Get("twitter")
	assert.Equal(t, draft, text)
}
