// Package pipeline provides the high-level orchestration of the compliance and
// quality stages over one marketing Document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/listing-copy-guard/internal/autofix"
	"github.com/jonathan/listing-copy-guard/internal/compliance"
	"github.com/jonathan/listing-copy-guard/internal/constraints"
	"github.com/jonathan/listing-copy-guard/internal/observability"
	"github.com/jonathan/listing-copy-guard/internal/pipeline/steps"
	"github.com/jonathan/listing-copy-guard/internal/policy"
	"github.com/jonathan/listing-copy-guard/internal/quality"
	"github.com/jonathan/listing-copy-guard/internal/revert"
	"github.com/jonathan/listing-copy-guard/internal/types"
	"github.com/jonathan/listing-copy-guard/internal/verdict"
)

// Run statuses reported to the artifact store
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step     string `json:"step"`
	Category string `json:"category"`
	Message  string `json:"message"`
	RunID    string `json:"run_id,omitempty"`
	Content  any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// ArtifactStore persists runs and their stage outputs. *db.DB implements it.
type ArtifactStore interface {
	CreateRun(ctx context.Context, jurisdiction string) (uuid.UUID, error)
	SaveArtifact(ctx context.Context, runID uuid.UUID, step, category string, content any) error
	CompleteRun(ctx context.Context, runID uuid.UUID, status string) error
}

// Dependencies are the optional collaborators and infrastructure of a pipeline.
// Every field may be nil.
type Dependencies struct {
	Judge    compliance.Judge
	Rewriter autofix.Rewriter
	Model    quality.Model
	Store    ArtifactStore
	Printer  *observability.Printer
	Logger   *zap.Logger
}

// Options tune a pipeline. Zero values select each stage's defaults.
type Options struct {
	FixSoft        bool
	JudgeTimeout   time.Duration
	RewriteTimeout time.Duration
	ModelTimeout   time.Duration
	Concurrency    int
	OnProgress     ProgressCallback
}

// Result holds everything one run produced
type Result struct {
	RunID       string                       `json:"run_id"`
	Final       *types.Document              `json:"final"`
	Remediated  *types.Document              `json:"remediated"`
	Compliance  *types.ComplianceResult      `json:"compliance"`
	Constraints []types.ConstraintViolation  `json:"constraints"`
	Quality     *types.CampaignQualityResult `json:"quality"`
	Diffs       []revert.FieldDiff           `json:"diffs"`
}

// Pipeline runs scan, fix, constrain, score and aggregate in that fixed order
type Pipeline struct {
	deps   Dependencies
	opts   Options
	logger *zap.Logger
}

// New creates a pipeline
func New(deps Dependencies, opts Options) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{deps: deps, opts: opts, logger: logger}
}

// run carries one execution's intermediate outputs between stages
type run struct {
	p       *Pipeline
	id      uuid.UUID
	policy  *types.PolicyConfig
	scanner *compliance.Scanner
	input   *types.Document
	// working is the input after mechanical formatting fixes; compliance fixes
	// snapshot from it so they still revert cleanly on the final document
	working *types.Document
	polish  []types.QualityIssue

	scan        *compliance.ScanResult
	fix         *autofix.Result
	constrained *types.Document
	limits      []types.ConstraintViolation
	quality     *types.CampaignQualityResult
	compliance  *types.ComplianceResult

	completed map[string]bool
}

func (r *run) StepCompleted(_ context.Context, _ uuid.UUID, step string) (bool, error) {
	return r.completed[step], nil
}

type stage struct {
	name string
	exec func(r *run, ctx context.Context) (any, string, error)
}

// stages is fixed: truncation must follow fixing and scoring must see final lengths
var stages = [...]stage{
	{name: steps.StepScan, exec: (*run).scanStage},
	{name: steps.StepFix, exec: (*run).fixStage},
	{name: steps.StepConstrain, exec: (*run).constrainStage},
	{name: steps.StepScore, exec: (*run).scoreStage},
	{name: steps.StepAggregate, exec: (*run).aggregateStage},
}

// Run processes doc against pol. Only a missing or invalid policy, an empty
// document, or cancellation of ctx produce an error; collaborator failures are
// reported inside the result.
func (p *Pipeline) Run(ctx context.Context, doc *types.Document, pol *types.PolicyConfig) (*Result, error) {
	if pol == nil {
		return nil, &ConfigError{Message: "no policy configured"}
	}
	if err := policy.Validate(pol); err != nil {
		return nil, &ConfigError{Message: "invalid policy", Cause: err}
	}
	if doc == nil || doc.Len() == 0 {
		return nil, &DocumentError{Message: "document has no fields"}
	}

	scanner, err := compliance.NewScanner(pol,
		compliance.WithJudge(p.deps.Judge),
		compliance.WithJudgeTimeout(p.opts.JudgeTimeout),
		compliance.WithConcurrency(p.opts.Concurrency),
		compliance.WithLogger(p.logger),
	)
	if err != nil {
		return nil, &ConfigError{Message: "failed to compile policy", Cause: err}
	}

	r := &run{
		p:         p,
		id:        p.createRun(ctx, pol.Jurisdiction),
		policy:    pol,
		scanner:   scanner,
		input:     doc.Clone(),
		completed: make(map[string]bool, len(stages)),
	}
	r.working, r.polish = quality.Polish(r.input)
	logger := p.logger.With(zap.String("run_id", r.id.String()), zap.String("jurisdiction", pol.Jurisdiction))
	logger.Info("pipeline started", zap.Int("fields", doc.Len()))
	p.save(ctx, r.id, steps.ArtifactInput, r.input)

	for _, st := range stages {
		if err := steps.ValidateDependencies(ctx, r, r.id, st.name); err != nil {
			p.finish(ctx, r.id, StatusFailed)
			return nil, fmt.Errorf("stage %s: %w", st.name, err)
		}

		start := time.Now()
		artifact, message, err := st.exec(r, ctx)
		if err != nil {
			logger.Warn("pipeline aborted", zap.String("stage", st.name), zap.Error(err))
			p.finish(context.WithoutCancel(ctx), r.id, StatusFailed)
			return nil, fmt.Errorf("stage %s: %w", st.name, err)
		}
		r.completed[st.name] = true

		logger.Debug("stage complete", zap.String("stage", st.name), zap.Duration("duration", time.Since(start)))
		p.save(ctx, r.id, st.name, artifact)
		p.emit(r.id, st.name, message, artifact)
	}

	diffs, err := revert.Diff(r.input, r.constrained)
	if err != nil {
		// diffs are advisory; the run itself succeeded
		logger.Warn("failed to diff document", zap.Error(err))
	}
	if diffs == nil {
		diffs = []revert.FieldDiff{}
	}
	p.save(ctx, r.id, steps.ArtifactDiffs, diffs)
	p.save(ctx, r.id, steps.ArtifactFinal, r.constrained)
	p.finish(ctx, r.id, StatusCompleted)

	logger.Info("pipeline finished",
		zap.String("verdict", string(r.compliance.Verdict)),
		zap.Int("violations", len(r.compliance.Violations)),
		zap.Int("auto_fixes", len(r.compliance.AutoFixes)),
		zap.Int("truncated", len(r.limits)))

	return &Result{
		RunID:       r.id.String(),
		Final:       r.constrained,
		Remediated:  r.fix.Document,
		Compliance:  r.compliance,
		Constraints: r.limits,
		Quality:     r.quality,
		Diffs:       diffs,
	}, nil
}

func (r *run) scanStage(ctx context.Context) (any, string, error) {
	scan, err := r.scanner.Scan(ctx, r.working)
	if err != nil {
		return nil, "", err
	}
	r.scan = scan
	if r.p.deps.Printer != nil {
		r.p.deps.Printer.PrintViolations(scan.Violations)
	}
	return scan, fmt.Sprintf("Found %d violation(s) across %d field(s)", len(scan.Violations), r.working.Len()), nil
}

func (r *run) fixStage(ctx context.Context) (any, string, error) {
	engine := autofix.NewEngine(r.scanner,
		autofix.WithRewriter(r.p.deps.Rewriter),
		autofix.WithRewriteTimeout(r.p.opts.RewriteTimeout),
		autofix.WithFixSoft(r.p.opts.FixSoft),
		autofix.WithConcurrency(r.p.opts.Concurrency),
		autofix.WithLogger(r.p.logger),
	)
	fixed, err := engine.Apply(ctx, r.working, r.scan.Violations)
	if err != nil {
		return nil, "", err
	}
	r.fix = fixed
	if r.p.deps.Printer != nil {
		r.p.deps.Printer.PrintAutoFixes(fixed.Fixes)
	}
	return fixed, fmt.Sprintf("Applied %d fix(es); %d violation(s) unresolved", len(fixed.Fixes), len(fixed.Unresolved)), nil
}

func (r *run) constrainStage(ctx context.Context) (any, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	doc, limits := constraints.Enforce(r.fix.Document, r.policy)
	r.constrained = doc
	r.limits = limits
	if r.p.deps.Printer != nil {
		r.p.deps.Printer.PrintConstraints(limits)
	}
	artifact := struct {
		Document   *types.Document             `json:"document"`
		Violations []types.ConstraintViolation `json:"violations"`
	}{doc, limits}
	return artifact, fmt.Sprintf("Truncated %d field(s) to their channel limits", len(limits)), nil
}

func (r *run) scoreStage(ctx context.Context) (any, string, error) {
	scorer := quality.NewScorer(
		quality.WithModel(r.p.deps.Model),
		quality.WithModelTimeout(r.p.opts.ModelTimeout),
		quality.WithConcurrency(r.p.opts.Concurrency),
		quality.WithLogger(r.p.logger),
		quality.WithApplied(r.polish),
	)
	result, err := scorer.Score(ctx, r.constrained)
	if err != nil {
		return nil, "", err
	}
	r.quality = result
	if r.p.deps.Printer != nil {
		r.p.deps.Printer.PrintQuality(result)
	}
	return result, fmt.Sprintf("Ran %d quality check(s); %d required issue(s)", result.TotalChecks, result.RequiredIssues), nil
}

func (r *run) aggregateStage(ctx context.Context) (any, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	unresolved := make([]string, 0, len(r.fix.Unresolved)+len(r.fix.Deferred))
	unresolved = append(unresolved, r.fix.Unresolved...)
	unresolved = append(unresolved, r.fix.Deferred...)

	failures := make([]types.FieldFailure, 0, len(r.scan.Failures)+len(r.fix.Failures))
	failures = append(failures, r.scan.Failures...)
	failures = append(failures, r.fix.Failures...)
	if len(failures) == 0 {
		failures = nil
	}

	r.compliance = verdict.Aggregate(r.policy.Jurisdiction, r.constrained, r.scan.Violations, r.fix.Fixes, unresolved, failures)
	if r.p.deps.Printer != nil {
		r.p.deps.Printer.PrintVerdict(r.compliance)
	}
	return r.compliance, fmt.Sprintf("Campaign verdict: %s", r.compliance.Verdict), nil
}

func (p *Pipeline) createRun(ctx context.Context, jurisdiction string) uuid.UUID {
	if p.deps.Store == nil {
		return uuid.New()
	}
	id, err := p.deps.Store.CreateRun(ctx, jurisdiction)
	if err != nil {
		p.logger.Warn("failed to record run; continuing without persistence", zap.Error(err))
		return uuid.New()
	}
	return id
}

func (p *Pipeline) save(ctx context.Context, runID uuid.UUID, step string, content any) {
	if p.deps.Store == nil {
		return
	}
	if err := p.deps.Store.SaveArtifact(ctx, runID, step, steps.CategoryOf(step), content); err != nil {
		p.logger.Warn("failed to save artifact", zap.String("step", step), zap.Error(err))
	}
}

func (p *Pipeline) finish(ctx context.Context, runID uuid.UUID, status string) {
	if p.deps.Store == nil {
		return
	}
	if err := p.deps.Store.CompleteRun(ctx, runID, status); err != nil {
		p.logger.Warn("failed to complete run", zap.String("status", status), zap.Error(err))
	}
}

func (p *Pipeline) emit(runID uuid.UUID, step, message string, content any) {
	if p.opts.OnProgress == nil {
		return
	}
	p.opts.OnProgress(ProgressEvent{
		Step:     step,
		Category: steps.CategoryOf(step),
		Message:  message,
		RunID:    runID.String(),
		Content:  content,
	})
}

// Revert reconstructs the pre-fix document from a final document and its fixes
func Revert(final *types.Document, fixes []types.AutoFix) (*types.Document, *revert.Report, error) {
	return revert.Revert(final, fixes)
}

// IsFatal reports whether err is one of the errors Run returns for bad input
func IsFatal(err error) bool {
	var cfgErr *ConfigError
	var docErr *DocumentError
	return errors.As(err, &cfgErr) || errors.As(err, &docErr)
}
