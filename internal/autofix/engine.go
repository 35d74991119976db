// Package autofix rewrites flagged phrases in place and records every change as a
// whole-field AutoFix snapshot.
package autofix

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/listing-copy-guard/internal/compliance"
	"github.com/jonathan/listing-copy-guard/internal/types"
)

const (
	// DefaultRewriteTimeout bounds one rewriter call
	DefaultRewriteTimeout = 30 * time.Second
	// DefaultConcurrency is the number of fields fixed at once
	DefaultConcurrency = 4

	stageFix             = "fix"
	collaboratorRewriter = "rewriter"
)

// Option configures an Engine
type Option func(*Engine)

// WithRewriter enables collaborator rewrites for rules without an alternative
func WithRewriter(r Rewriter) Option {
	return func(e *Engine) { e.rewriter = r }
}

// WithRewriteTimeout sets the per-call budget for the rewriter
func WithRewriteTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.rewriteTimeout = d
		}
	}
}

// WithFixSoft makes the engine fix soft violations as well as hard ones
func WithFixSoft(fix bool) Option {
	return func(e *Engine) { e.fixSoft = fix }
}

// WithConcurrency sets how many fields are fixed in parallel
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLogger sets the engine's logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine applies fixes for scanner violations
type Engine struct {
	scanner        *compliance.Scanner
	rewriter       Rewriter
	rewriteTimeout time.Duration
	fixSoft        bool
	concurrency    int
	logger         *zap.Logger
}

// Result is the outcome of Apply. Resolved and Unresolved hold violation ids;
// Deferred holds soft violations left in place because soft fixing is off.
type Result struct {
	Document   *types.Document
	Fixes      []types.AutoFix
	Resolved   []string
	Unresolved []string
	Deferred   []string
	Failures   []types.FieldFailure
}

// NewEngine creates an engine that re-scans candidates with scanner
func NewEngine(scanner *compliance.Scanner, opts ...Option) *Engine {
	e := &Engine{
		scanner:        scanner,
		rewriteTimeout: DefaultRewriteTimeout,
		concurrency:    DefaultConcurrency,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type fieldOutcome struct {
	value      string
	fixes      []types.AutoFix
	resolved   []string
	unresolved []string
	deferred   []string
	failure    *types.FieldFailure
}

// Apply fixes violations field by field. Within a field violations are handled in
// span order against one running value, so each fix's BeforeText is the previous
// fix's AfterText. The input document is not modified.
func (e *Engine) Apply(ctx context.Context, doc *types.Document, violations []types.Violation) (*Result, error) {
	byField := make(map[types.FieldPath][]types.Violation)
	for _, v := range violations {
		byField[v.FieldPath] = append(byField[v.FieldPath], v)
	}

	paths := doc.Paths()
	outcomes := make([]*fieldOutcome, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, path := range paths {
		i, path := i, path
		fieldViolations := byField[path]
		if len(fieldViolations) == 0 {
			continue
		}
		text, _ := doc.Get(path)
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			outcomes[i] = e.fixField(gCtx, path, text, fieldViolations)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{Document: doc.Clone()}
	for i, path := range paths {
		out := outcomes[i]
		if out == nil {
			continue
		}
		result.Document.Set(path, out.value)
		result.Fixes = append(result.Fixes, out.fixes...)
		result.Resolved = append(result.Resolved, out.resolved...)
		result.Unresolved = append(result.Unresolved, out.unresolved...)
		result.Deferred = append(result.Deferred, out.deferred...)
		if out.failure != nil {
			result.Failures = append(result.Failures, *out.failure)
		}
	}

	// violations naming a field the document does not have cannot be fixed
	for path, vs := range byField {
		if doc.Has(path) {
			continue
		}
		for _, v := range vs {
			result.Unresolved = append(result.Unresolved, v.ID)
		}
	}

	e.logger.Debug("auto-fix complete",
		zap.Int("fixes", len(result.Fixes)),
		zap.Int("resolved", len(result.Resolved)),
		zap.Int("unresolved", len(result.Unresolved)))
	return result, nil
}

func (e *Engine) fixField(ctx context.Context, path types.FieldPath, text string, violations []types.Violation) *fieldOutcome {
	ordered := make([]types.Violation, len(violations))
	copy(ordered, violations)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	out := &fieldOutcome{value: text}
	for _, v := range ordered {
		if !v.IsHard() && !e.fixSoft {
			out.deferred = append(out.deferred, v.ID)
			continue
		}

		attempt := e.candidate(ctx, path, text, out.value, v, out)
		switch {
		case attempt.cleared:
			out.resolved = append(out.resolved, v.ID)
		case !attempt.ok:
			out.unresolved = append(out.unresolved, v.ID)
		default:
			if err := e.guard(out.value, attempt.value, v); err != nil {
				e.logger.Info("rejected auto-fix", zap.String("field", path.String()), zap.Error(err))
				out.unresolved = append(out.unresolved, v.ID)
				continue
			}
			out.fixes = append(out.fixes, types.AutoFix{
				ID:             uuid.NewString(),
				ViolationID:    v.ID,
				FieldPath:      path,
				BeforeText:     out.value,
				AfterText:      attempt.value,
				TriggeringTerm: v.MatchedTerm,
				Category:       v.Category,
				Source:         attempt.source,
			})
			out.value = attempt.value
			out.resolved = append(out.resolved, v.ID)
		}
	}
	return out
}

type attempt struct {
	value   string
	source  types.FixSource
	ok      bool
	cleared bool
}

// candidate builds the single replacement value tried for v. A violation counts as
// cleared only when its trigger is gone from the visible text of the running value;
// one that is still visible but cannot be spliced in the raw value goes to the
// rewriter as a whole field.
func (e *Engine) candidate(ctx context.Context, path types.FieldPath, original, running string, v types.Violation, out *fieldOutcome) attempt {
	if v.Category == types.CategoryMissingDisclosure {
		return e.disclosureCandidate(running, v)
	}

	var (
		start, end int
		found      bool
		literal    bool
		term       types.ProhibitedTerm
	)
	switch rule, ok := e.scanner.Rule(v.RuleID); {
	case ok && !v.IsContextual:
		if e.scanner.CountByRule(running)[v.RuleID] == 0 {
			return attempt{cleared: true}
		}
		term = rule
		literal = rule.Term != ""
		if matches := e.scanner.MatchRule(v.RuleID, running); len(matches) > 0 {
			start, end, found = matches[0].Start, matches[0].End, true
		}
	case v.IsContextual:
		if contextualCleared(original, running, v.MatchedTerm) {
			return attempt{cleared: true}
		}
		start, end, found = indexFold(running, v.MatchedTerm)
		literal = true
	default:
		return attempt{}
	}
	if !found {
		return e.rewriteField(ctx, path, running, v, out)
	}
	matched := running[start:end]

	if alt := firstNonEmpty(term.Alternative, v.SuggestedAlternative); alt != "" {
		source := types.FixSourceRule
		if v.IsContextual {
			source = types.FixSourceRewrite
		}
		return attempt{value: splice(running, start, end, matchCase(alt, matched)), source: source, ok: true}
	}

	if e.rewriter != nil {
		replacement, err := e.rewrite(ctx, RewriteRequest{
			FieldPath:   path,
			Term:        running[start:end],
			Category:    v.Category,
			Explanation: v.Explanation,
			Context:     running,
		})
		if err == nil {
			value := splice(running, start, end, matchCase(replacement, matched))
			if replacement == "" {
				value = tidy(value)
			}
			return attempt{value: value, source: types.FixSourceRewrite, ok: true}
		}
		e.recordFailure(path, err, out)
	}

	if literal {
		return attempt{value: tidy(splice(running, start, end, "")), source: types.FixSourceRemoval, ok: true}
	}
	return attempt{}
}

// rewriteField asks the rewriter for a new value of the whole field. Without a
// rewriter, or when it fails or returns nothing, the violation stays unresolved.
func (e *Engine) rewriteField(ctx context.Context, path types.FieldPath, running string, v types.Violation, out *fieldOutcome) attempt {
	if e.rewriter == nil {
		return attempt{}
	}
	replacement, err := e.rewrite(ctx, RewriteRequest{
		FieldPath:   path,
		Term:        v.MatchedTerm,
		Category:    v.Category,
		Explanation: v.Explanation,
		Context:     running,
		WholeField:  true,
	})
	if err != nil {
		e.recordFailure(path, err, out)
		return attempt{}
	}
	if strings.TrimSpace(replacement) == "" {
		return attempt{}
	}
	return attempt{value: replacement, source: types.FixSourceRewrite, ok: true}
}

func (e *Engine) recordFailure(path types.FieldPath, err error, out *fieldOutcome) {
	if out.failure == nil {
		out.failure = &types.FieldFailure{
			FieldPath:    path,
			Stage:        stageFix,
			Collaborator: collaboratorRewriter,
			Message:      err.Error(),
			TimedOut:     errors.Is(err, context.DeadlineExceeded),
		}
	}
	e.logger.Warn("rewriter failed", zap.String("field", path.String()), zap.Error(err))
}

// contextualCleared reports whether a judged phrase that was visible in the
// original field text is no longer visible in the running value
func contextualCleared(original, running, phrase string) bool {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return false
	}
	return occurrences(compliance.Normalize(original), phrase) > 0 &&
		occurrences(compliance.Normalize(running), phrase) == 0
}

func (e *Engine) disclosureCandidate(running string, v types.Violation) attempt {
	text := v.SuggestedAlternative
	if d, ok := e.scanner.Disclosure(v.RuleID); ok {
		text = d.Text
	}
	if text == "" {
		return attempt{}
	}
	if strings.Contains(strings.ToLower(compliance.Normalize(running)), strings.ToLower(strings.TrimSpace(text))) {
		return attempt{cleared: true}
	}
	return attempt{value: appendDisclosure(running, text), source: types.FixSourceDisclosure, ok: true}
}

func (e *Engine) rewrite(ctx context.Context, req RewriteRequest) (string, error) {
	rewriteCtx, cancel := context.WithTimeout(ctx, e.rewriteTimeout)
	defer cancel()

	req.Jurisdiction = e.scanner.Policy().Jurisdiction
	replacement, err := e.rewriter.Rewrite(rewriteCtx, req)
	if err != nil && errors.Is(rewriteCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = errors.Join(err, context.DeadlineExceeded)
	}
	return replacement, err
}

// guard re-scans a candidate. The candidate is rejected when it is empty, when the
// triggering phrase matches as often as before, or when any rule matches more often.
func (e *Engine) guard(before, after string, v types.Violation) error {
	reject := func(reason string) error {
		return &IrreconcilableFixError{ViolationID: v.ID, RuleID: v.RuleID, Reason: reason}
	}

	if strings.TrimSpace(after) == "" && strings.TrimSpace(before) != "" {
		return reject("fix would empty the field")
	}

	prior := e.scanner.CountByRule(before)
	next := e.scanner.CountByRule(after)
	for id, n := range next {
		if n > prior[id] {
			return reject("replacement introduces a match for rule " + id)
		}
	}

	switch {
	case v.Category == types.CategoryMissingDisclosure:
	case v.IsContextual:
		seen := occurrences(compliance.Normalize(before), v.MatchedTerm)
		if seen == 0 && after == before {
			return reject("rewrite left the field unchanged")
		}
		if seen > 0 && occurrences(compliance.Normalize(after), v.MatchedTerm) >= seen {
			return reject("flagged phrase still present")
		}
	default:
		if next[v.RuleID] >= prior[v.RuleID] && prior[v.RuleID] > 0 {
			return reject("triggering rule still matches")
		}
	}
	return nil
}

func occurrences(text, term string) int {
	if term == "" {
		return 0
	}
	return strings.Count(strings.ToLower(text), strings.ToLower(term))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
