// Package quality scores the persuasive quality of compliant copy with deterministic
// rule checks and an optional scoring model.
package quality

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/listing-copy-guard/internal/types"
)

const (
	// DefaultModelTimeout bounds one scoring model call
	DefaultModelTimeout = 30 * time.Second
	// DefaultConcurrency is the number of fields scored at once
	DefaultConcurrency = 4

	stageScore        = "score"
	collaboratorModel = "model"
)

// Assessment is the scoring model's view of one field
type Assessment struct {
	Score  *float64
	Issues []types.QualityIssue
}

// Model is the quality scoring collaborator
type Model interface {
	Assess(ctx context.Context, path types.FieldPath, text string) (*Assessment, error)
}

// Option configures a Scorer
type Option func(*Scorer)

// WithModel enables model scoring of every field
func WithModel(m Model) Option {
	return func(s *Scorer) { s.model = m }
}

// WithModelTimeout sets the per-field budget for the model
func WithModelTimeout(d time.Duration) Option {
	return func(s *Scorer) {
		if d > 0 {
			s.modelTimeout = d
		}
	}
}

// WithConcurrency sets how many fields are scored in parallel
func WithConcurrency(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the scorer's logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Scorer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithApplied merges formatting fixes already applied by Polish into the scored
// fields' formatting check, so they are counted as applied improvements
func WithApplied(issues []types.QualityIssue) Option {
	return func(s *Scorer) {
		for _, is := range issues {
			if s.applied == nil {
				s.applied = make(map[types.FieldPath][]types.QualityIssue)
			}
			s.applied[is.FieldPath] = append(s.applied[is.FieldPath], is)
		}
	}
}

// Scorer runs quality checks over a document
type Scorer struct {
	model        Model
	modelTimeout time.Duration
	concurrency  int
	logger       *zap.Logger
	applied      map[types.FieldPath][]types.QualityIssue
}

// NewScorer creates a scorer
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		modelTimeout: DefaultModelTimeout,
		concurrency:  DefaultConcurrency,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type fieldScore struct {
	path        types.FieldPath
	value       string
	checks      int
	passed      int
	ruleIssues  []types.QualityIssue
	modelIssues []types.QualityIssue
	score       *float64
	failure     *types.FieldFailure
}

// Polish applies the mechanical formatting fixes (doubled spaces, repeated
// exclamation marks) to every field. It returns the polished copy and one applied
// issue per changed field; the input document is not modified.
func Polish(doc *types.Document) (*types.Document, []types.QualityIssue) {
	polished := doc.Clone()
	var applied []types.QualityIssue
	for _, path := range doc.Paths() {
		text, _ := doc.Get(path)
		fixed := fixFormatting(text)
		if fixed == text {
			continue
		}
		original := text
		polished.Set(path, fixed)
		applied = append(applied, stamp(path, issue{
			category:     types.QualityFormatting,
			priority:     types.PriorityRecommended,
			message:      messageSpacing,
			suggestedFix: "Collapsed automatically",
			original:     &original,
			fixed:        &fixed,
		}))
	}
	return polished, applied
}

// Score checks every field of doc. Text is never changed here; mechanical fixes are
// applied earlier with Polish and passed in through WithApplied.
func (s *Scorer) Score(ctx context.Context, doc *types.Document) (*types.CampaignQualityResult, error) {
	paths := doc.Paths()
	scores := make([]*fieldScore, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, path := range paths {
		i, path := i, path
		text, _ := doc.Get(path)
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			scores[i] = s.scoreField(gCtx, path, text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.checkRedundancy(scores)

	result := &types.CampaignQualityResult{Issues: []types.QualityIssue{}}
	var scoreSum float64
	var scored int
	for _, fs := range scores {
		result.TotalChecks += fs.checks
		result.TotalPassed += fs.passed
		result.Issues = append(result.Issues, fs.ruleIssues...)
		result.Issues = append(result.Issues, fs.modelIssues...)
		if fs.score != nil {
			scoreSum += *fs.score
			scored++
		}
		if fs.failure != nil {
			result.Failures = append(result.Failures, *fs.failure)
		}
	}

	for _, is := range result.Issues {
		if is.Priority == types.PriorityRequired {
			result.RequiredIssues++
		} else {
			result.RecommendedIssues++
		}
		if is.Applied() {
			result.ImprovementsApplied++
		}
	}
	result.AllPassed = result.RequiredIssues == 0
	if scored > 0 {
		mean := scoreSum / float64(scored)
		result.OverallScore = &mean
	}

	s.logger.Debug("quality scoring complete",
		zap.Int("checks", result.TotalChecks),
		zap.Int("passed", result.TotalPassed),
		zap.Int("required", result.RequiredIssues))
	return result, nil
}

func (s *Scorer) scoreField(ctx context.Context, path types.FieldPath, text string) *fieldScore {
	fs := &fieldScore{path: path, value: text}

	fs.checks++
	formatting := checkFormatting(text)
	if len(formatting) == 0 && len(s.applied[path]) == 0 {
		fs.passed++
	}
	fs.ruleIssues = append(fs.ruleIssues, s.applied[path]...)
	for _, is := range formatting {
		fs.ruleIssues = append(fs.ruleIssues, stamp(path, is))
	}

	for _, c := range ruleChecks {
		if !c.applies(path) {
			continue
		}
		fs.checks++
		found := c.run(path, fs.value)
		if found == nil {
			fs.passed++
			continue
		}
		fs.ruleIssues = append(fs.ruleIssues, stamp(path, *found))
	}

	if s.model != nil {
		s.consultModel(ctx, fs)
	}
	return fs
}

func (s *Scorer) consultModel(ctx context.Context, fs *fieldScore) {
	modelCtx, cancel := context.WithTimeout(ctx, s.modelTimeout)
	defer cancel()

	assessment, err := s.model.Assess(modelCtx, fs.path, fs.value)
	if err == nil && assessment == nil {
		err = fmt.Errorf("model returned no assessment")
	}
	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(modelCtx.Err(), context.DeadlineExceeded)
		s.logger.Warn("quality model failed; keeping rule checks only",
			zap.String("field", fs.path.String()),
			zap.Bool("timed_out", timedOut),
			zap.Error(err))
		fs.failure = &types.FieldFailure{
			FieldPath:    fs.path,
			Stage:        stageScore,
			Collaborator: collaboratorModel,
			Message:      err.Error(),
			TimedOut:     timedOut,
		}
		return
	}

	fs.checks++
	if assessment.Score != nil {
		score := clampScore(*assessment.Score)
		fs.score = &score
	}
	for _, is := range assessment.Issues {
		if !is.Category.IsValid() {
			s.logger.Warn("dropping model issue with unknown category",
				zap.String("field", fs.path.String()),
				zap.String("category", string(is.Category)))
			continue
		}
		if is.Priority != types.PriorityRequired {
			is.Priority = types.PriorityRecommended
		}
		is.ID = uuid.NewString()
		is.FieldPath = fs.path
		is.Source = types.SourceModel
		is.Score = fs.score
		is.OriginalText, is.FixedText = nil, nil
		fs.modelIssues = append(fs.modelIssues, is)
	}
	if len(fs.modelIssues) == 0 {
		fs.passed++
	}
}

// checkRedundancy flags every field whose opening sentence repeats an earlier field's
func (s *Scorer) checkRedundancy(scores []*fieldScore) {
	firstSeen := make(map[string]types.FieldPath)
	for _, fs := range scores {
		fs.checks++
		key := openingKey(fs.value)
		if key == "" {
			fs.passed++
			continue
		}
		earlier, dup := firstSeen[key]
		if !dup {
			firstSeen[key] = fs.path
			fs.passed++
			continue
		}
		fs.ruleIssues = append(fs.ruleIssues, stamp(fs.path, issue{
			category:     types.QualityRedundancy,
			priority:     types.PriorityRecommended,
			message:      fmt.Sprintf("Opens with the same sentence as %s", earlier),
			suggestedFix: "Give each placement its own opening line",
		}))
	}
}

func stamp(path types.FieldPath, is issue) types.QualityIssue {
	return types.QualityIssue{
		ID:           uuid.NewString(),
		FieldPath:    path,
		Category:     is.category,
		Priority:     is.priority,
		Source:       types.SourceRule,
		Issue:        is.message,
		SuggestedFix: is.suggestedFix,
		OriginalText: is.original,
		FixedText:    is.fixed,
	}
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 10:
		return 10
	}
	return v
}
