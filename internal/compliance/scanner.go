// Package compliance scans marketing copy against a jurisdiction's fair-housing policy
// and records every prohibited-term match as a Violation.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/listing-copy-guard/internal/types"
)

const (
	// DefaultJudgeTimeout bounds one contextual judge call
	DefaultJudgeTimeout = 20 * time.Second
	// DefaultConcurrency is the number of fields scanned at once
	DefaultConcurrency = 4
	// ContextRadius is the number of runes kept either side of a match
	ContextRadius = 40

	stageScan = "scan"
)

// Judge is the contextual compliance collaborator. It reviews a whole field and
// returns violations that literal matching cannot express. Returned violations only
// need Category, Severity, MatchedTerm and Explanation; the scanner fills in the rest.
type Judge interface {
	Judge(ctx context.Context, path types.FieldPath, text string, jurisdiction string) ([]types.Violation, error)
}

// Option configures a Scanner
type Option func(*Scanner)

// WithJudge enables contextual review of every field
func WithJudge(j Judge) Option {
	return func(s *Scanner) { s.judge = j }
}

// WithJudgeTimeout sets the per-field budget for the judge
func WithJudgeTimeout(d time.Duration) Option {
	return func(s *Scanner) {
		if d > 0 {
			s.judgeTimeout = d
		}
	}
}

// WithConcurrency sets how many fields are scanned in parallel
func WithConcurrency(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the scanner's logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scanner matches field text against a compiled policy. It is safe for concurrent use.
type Scanner struct {
	policy       *types.PolicyConfig
	rules        []*rule
	byID         map[string]*rule
	judge        Judge
	judgeTimeout time.Duration
	concurrency  int
	logger       *zap.Logger
}

// FieldScan is the outcome of scanning one field
type FieldScan struct {
	FieldPath  types.FieldPath
	Violations []types.Violation
	Failure    *types.FieldFailure
}

// ScanResult holds every violation in document order, field by field
type ScanResult struct {
	Violations []types.Violation
	Failures   []types.FieldFailure
}

// NewScanner compiles the policy's rules
func NewScanner(policy *types.PolicyConfig, opts ...Option) (*Scanner, error) {
	if policy == nil {
		return nil, &ConfigError{Message: "policy is required"}
	}

	s := &Scanner{
		policy:       policy,
		byID:         make(map[string]*rule, len(policy.ProhibitedTerms)),
		judgeTimeout: DefaultJudgeTimeout,
		concurrency:  DefaultConcurrency,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, term := range policy.ProhibitedTerms {
		r, err := compileRule(term)
		if err != nil {
			return nil, &ConfigError{Message: "failed to compile policy", Cause: err}
		}
		s.rules = append(s.rules, r)
		s.byID[term.ID] = r
	}
	return s, nil
}

// Policy returns the policy the scanner was built from
func (s *Scanner) Policy() *types.PolicyConfig {
	return s.policy
}

// Rule looks up a prohibited term by id
func (s *Scanner) Rule(id string) (types.ProhibitedTerm, bool) {
	r, ok := s.byID[id]
	if !ok {
		return types.ProhibitedTerm{}, false
	}
	return r.term, true
}

// Matches returns every rule match in text, ordered by position. The judge and
// disclosure checks are not consulted.
func (s *Scanner) Matches(text string) []Match {
	var all []Match
	for _, r := range s.rules {
		all = append(all, r.find(text)...)
	}
	sortMatches(all)
	return all
}

// MatchRule returns the matches of a single rule in text
func (s *Scanner) MatchRule(ruleID, text string) []Match {
	r, ok := s.byID[ruleID]
	if !ok {
		return nil
	}
	return r.find(text)
}

// CountByRule tallies rule matches in the normalised form of text
func (s *Scanner) CountByRule(text string) map[string]int {
	counts := make(map[string]int)
	for _, m := range s.Matches(Normalize(text)) {
		counts[m.RuleID]++
	}
	return counts
}

// ScanField records one violation per rule match, overlapping or not, plus one per
// missing required disclosure, plus whatever the judge reports. A judge failure is
// returned as the field's Failure and never discards the rule results.
func (s *Scanner) ScanField(ctx context.Context, path types.FieldPath, text string) FieldScan {
	normalized := Normalize(text)
	result := FieldScan{FieldPath: path}

	for _, m := range s.Matches(normalized) {
		term := s.byID[m.RuleID].term
		result.Violations = append(result.Violations, types.Violation{
			ID:                   uuid.NewString(),
			FieldPath:            path,
			RuleID:               term.ID,
			MatchedTerm:          m.Text,
			Category:             term.Category,
			Severity:             term.Severity,
			Explanation:          term.Explanation,
			Citation:             term.Law,
			SuggestedAlternative: term.Alternative,
			Context:              contextWindow(normalized, m.Start, m.End, ContextRadius),
			Start:                utf8.RuneCountInString(normalized[:m.Start]),
			End:                  utf8.RuneCountInString(normalized[:m.End]),
		})
	}

	result.Violations = append(result.Violations, s.missingDisclosures(path, normalized)...)

	if s.judge != nil {
		contextual, failure := s.consultJudge(ctx, path, normalized)
		result.Violations = append(result.Violations, contextual...)
		result.Failure = failure
	}
	return result
}

func (s *Scanner) missingDisclosures(path types.FieldPath, normalized string) []types.Violation {
	var out []types.Violation
	lower := strings.ToLower(normalized)
	end := utf8.RuneCountInString(normalized)

	for _, d := range s.policy.RequiredDisclosures {
		if !appliesTo(path, d.Fields) {
			continue
		}
		if strings.Contains(lower, strings.ToLower(strings.TrimSpace(d.Text))) {
			continue
		}
		severity := d.Severity
		if !severity.IsValid() {
			severity = types.SeveritySoft
		}
		out = append(out, types.Violation{
			ID:                   uuid.NewString(),
			FieldPath:            path,
			RuleID:               d.ID,
			Category:             types.CategoryMissingDisclosure,
			Severity:             severity,
			Explanation:          fmt.Sprintf("Required disclosure %q is missing.", d.Text),
			Citation:             d.Law,
			SuggestedAlternative: d.Text,
			Start:                end,
			End:                  end,
		})
	}
	return out
}

// Disclosure looks up a required disclosure by id
func (s *Scanner) Disclosure(id string) (types.RequiredDisclosure, bool) {
	for _, d := range s.policy.RequiredDisclosures {
		if d.ID == id {
			return d, true
		}
	}
	return types.RequiredDisclosure{}, false
}

func appliesTo(path types.FieldPath, patterns []string) bool {
	for _, p := range patterns {
		if path.Matches(p) {
			return true
		}
	}
	return false
}

func (s *Scanner) consultJudge(ctx context.Context, path types.FieldPath, text string) ([]types.Violation, *types.FieldFailure) {
	judgeCtx, cancel := context.WithTimeout(ctx, s.judgeTimeout)
	defer cancel()

	found, err := s.judge.Judge(judgeCtx, path, text, s.policy.Jurisdiction)
	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(judgeCtx.Err(), context.DeadlineExceeded)
		s.logger.Warn("contextual judge failed; keeping rule matches only",
			zap.String("field", path.String()),
			zap.Bool("timed_out", timedOut),
			zap.Error(err))
		return nil, &types.FieldFailure{
			FieldPath:    path,
			Stage:        stageScan,
			Collaborator: "judge",
			Message:      err.Error(),
			TimedOut:     timedOut,
		}
	}

	out := make([]types.Violation, 0, len(found))
	for _, v := range found {
		if !v.Category.IsValid() {
			s.logger.Warn("dropping contextual finding with unknown category",
				zap.String("field", path.String()),
				zap.String("category", string(v.Category)))
			continue
		}
		if !v.Severity.IsValid() {
			v.Severity = types.SeveritySoft
		}
		v.ID = uuid.NewString()
		v.FieldPath = path
		v.IsContextual = true
		v.Start, v.End = locate(text, v.MatchedTerm)
		if v.MatchedTerm != "" && v.Start >= 0 {
			byteStart := byteOffset(text, v.Start)
			v.Context = contextWindow(text, byteStart, byteStart+len(v.MatchedTerm), ContextRadius)
		}
		if v.Start < 0 {
			v.Start, v.End = 0, 0
		}
		out = append(out, v)
	}
	return out, nil
}

// locate returns the rune span of the first case-insensitive occurrence of term
func locate(text, term string) (int, int) {
	if term == "" {
		return 0, 0
	}
	var idx int
	// case folding can change byte lengths outside ASCII; fall back to exact search
	if lower := strings.ToLower(text); len(lower) == len(text) {
		idx = strings.Index(lower, strings.ToLower(term))
	} else {
		idx = strings.Index(text, term)
	}
	if idx < 0 {
		return -1, -1
	}
	start := utf8.RuneCountInString(text[:idx])
	return start, start + utf8.RuneCountInString(term)
}

func byteOffset(text string, runeIndex int) int {
	i := 0
	for offset := range text {
		if i == runeIndex {
			return offset
		}
		i++
	}
	return len(text)
}

// Scan scans every field of doc concurrently. Results are reduced in document order.
// The only error is cancellation of ctx.
func (s *Scanner) Scan(ctx context.Context, doc *types.Document) (*ScanResult, error) {
	paths := doc.Paths()
	scans := make([]FieldScan, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, path := range paths {
		i, path := i, path
		text, _ := doc.Get(path)
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			scans[i] = s.ScanField(gCtx, path, text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &ScanResult{}
	for _, fs := range scans {
		result.Violations = append(result.Violations, fs.Violations...)
		if fs.Failure != nil {
			result.Failures = append(result.Failures, *fs.Failure)
		}
	}
	s.logger.Debug("scan complete",
		zap.Int("fields", len(paths)),
		zap.Int("violations", len(result.Violations)),
		zap.Int("failures", len(result.Failures)))
	return result, nil
}
