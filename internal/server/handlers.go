package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/listing-copy-guard/internal/compliance"
	"github.com/jonathan/listing-copy-guard/internal/db"
	"github.com/jonathan/listing-copy-guard/internal/document"
	"github.com/jonathan/listing-copy-guard/internal/pipeline"
	"github.com/jonathan/listing-copy-guard/internal/pipeline/steps"
	"github.com/jonathan/listing-copy-guard/internal/policy"
	"github.com/jonathan/listing-copy-guard/internal/revert"
	"github.com/jonathan/listing-copy-guard/internal/schemas"
	"github.com/jonathan/listing-copy-guard/internal/types"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 4 << 20

// RunRequest is the body of the run, stream and scan endpoints. Policy, when set,
// is an inline JSON policy and takes precedence over Jurisdiction.
type RunRequest struct {
	Document     json.RawMessage `json:"document" validate:"required"`
	Jurisdiction string          `json:"jurisdiction,omitempty" validate:"omitempty,max=64"`
	Policy       json.RawMessage `json:"policy,omitempty"`
	FixSoft      bool            `json:"fix_soft,omitempty"`
}

// RevertRequest is the body of the revert endpoint
type RevertRequest struct {
	Final  *types.Document `json:"final" validate:"required"`
	Fixes  []types.AutoFix `json:"fixes"`
	Verify bool            `json:"verify,omitempty"`
}

// RevertResponse carries the reconstructed draft and what changed
type RevertResponse struct {
	Raw    *types.Document    `json:"raw"`
	Report *revert.Report     `json:"report"`
	Diffs  []revert.FieldDiff `json:"diffs"`
}

// ScanResponse lists the violations found without fixing anything
type ScanResponse struct {
	Jurisdiction string               `json:"jurisdiction"`
	Violations   []types.Violation    `json:"violations"`
	Failures     []types.FieldFailure `json:"failures,omitempty"`
}

// RunDetailResponse is a stored run with whatever outputs it reached. The
// documents and results are omitted for runs that stopped before producing them.
type RunDetailResponse struct {
	*db.Run
	Input      *types.Document              `json:"input,omitempty"`
	Final      *types.Document              `json:"final,omitempty"`
	Compliance *types.ComplianceResult      `json:"compliance,omitempty"`
	Quality    *types.CampaignQualityResult `json:"quality,omitempty"`
}

// RunStepsResponse reports which stages of a stored run completed
type RunStepsResponse struct {
	RunID     string   `json:"run_id"`
	Completed []string `json:"completed"`
	Available []string `json:"available"`
	Blocked   []string `json:"blocked"`
}

// decode reads and validates a JSON request body into v
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &ErrValidation{Field: "body", Message: err.Error()}
	}
	if err := s.validate.Struct(v); err != nil {
		return validationFromTags(err)
	}
	return nil
}

// prepare resolves the draft and policy of a run request
func (s *Server) prepare(req *RunRequest) (*types.Document, *types.PolicyConfig, error) {
	doc, err := document.Load(bytes.NewReader(req.Document))
	if err != nil {
		return nil, nil, err
	}

	if len(req.Policy) > 0 && !bytes.Equal(bytes.TrimSpace(req.Policy), []byte("null")) {
		if req.Jurisdiction != "" {
			return nil, nil, &ErrValidation{Field: "policy", Message: "policy and jurisdiction are mutually exclusive"}
		}
		if err := schemas.ValidatePolicy(req.Policy); err != nil {
			return nil, nil, err
		}
		pol, err := policy.Parse(req.Policy, policy.FormatJSON)
		if err != nil {
			return nil, nil, err
		}
		return doc, pol, nil
	}

	if req.Jurisdiction == "" && s.cfg.Policy != nil {
		return doc, s.cfg.Policy, nil
	}
	jurisdiction := req.Jurisdiction
	if jurisdiction == "" {
		jurisdiction = s.cfg.Jurisdiction
	}
	pol, err := policy.Builtin(jurisdiction)
	if err != nil {
		return nil, nil, err
	}
	return doc, pol, nil
}

// newPipeline builds a pipeline for one request
func (s *Server) newPipeline(req *RunRequest, onProgress pipeline.ProgressCallback) *pipeline.Pipeline {
	deps := pipeline.Dependencies{
		Judge:    s.cfg.Judge,
		Rewriter: s.cfg.Rewriter,
		Model:    s.cfg.Model,
		Logger:   s.logger,
	}
	if s.cfg.Store != nil {
		deps.Store = s.cfg.Store
	}
	opts := s.cfg.Options
	opts.FixSoft = opts.FixSoft || req.FixSoft
	opts.OnProgress = onProgress
	return pipeline.New(deps, opts)
}

// handleRun processes a draft synchronously and returns the full result
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := s.decode(w, r, &req); err != nil {
		s.failure(w, err)
		return
	}
	doc, pol, err := s.prepare(&req)
	if err != nil {
		s.failure(w, err)
		return
	}

	result, err := s.newPipeline(&req, nil).Run(r.Context(), doc, pol)
	if err != nil {
		s.failure(w, err)
		return
	}

	s.logger.Info("pipeline run completed",
		zap.String("run_id", result.RunID),
		zap.String("verdict", string(result.Compliance.Verdict)),
	)
	s.jsonResponse(w, http.StatusOK, result)
}

// handleRunStream processes a draft and streams stage progress via SSE, followed
// by the full result
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := s.decode(w, r, &req); err != nil {
		s.failure(w, err)
		return
	}
	doc, pol, err := s.prepare(&req)
	if err != nil {
		s.failure(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	onProgress := func(event pipeline.ProgressEvent) {
		if err := sse.WriteEvent(EventStep, event); err != nil {
			s.logger.Warn("failed to write SSE event", zap.String("step", event.Step), zap.Error(err))
		}
	}

	result, err := s.newPipeline(&req, onProgress).Run(r.Context(), doc, pol)
	if err != nil {
		s.logger.Warn("streaming pipeline run failed", zap.Error(err))
		sse.WriteError(err.Error())
		return
	}

	if err := sse.WriteEvent(EventResult, result); err != nil {
		s.logger.Warn("failed to write SSE result", zap.Error(err))
		return
	}
	sse.WriteComplete(result.RunID, string(result.Compliance.Verdict))
}

// handleScan reports violations without fixing, truncating or scoring
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := s.decode(w, r, &req); err != nil {
		s.failure(w, err)
		return
	}
	doc, pol, err := s.prepare(&req)
	if err != nil {
		s.failure(w, err)
		return
	}

	scanner, err := compliance.NewScanner(pol,
		compliance.WithJudge(s.cfg.Judge),
		compliance.WithJudgeTimeout(s.cfg.Options.JudgeTimeout),
		compliance.WithConcurrency(s.cfg.Options.Concurrency),
		compliance.WithLogger(s.logger),
	)
	if err != nil {
		s.failure(w, err)
		return
	}
	result, err := scanner.Scan(r.Context(), doc)
	if err != nil {
		s.failure(w, err)
		return
	}

	violations := result.Violations
	if violations == nil {
		violations = []types.Violation{}
	}
	s.jsonResponse(w, http.StatusOK, ScanResponse{
		Jurisdiction: pol.Jurisdiction,
		Violations:   violations,
		Failures:     result.Failures,
	})
}

// handleRevert reconstructs the pre-fix draft from a final document and its fixes
func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	var req RevertRequest
	if err := s.decode(w, r, &req); err != nil {
		s.failure(w, err)
		return
	}
	s.revert(w, req.Final, req.Fixes, req.Verify)
}

// handleRevertRun reconstructs the pre-fix draft of a stored run from its final
// document and compliance record
func (s *Server) handleRevertRun(w http.ResponseWriter, r *http.Request) {
	id, err := s.runID(r)
	if err != nil {
		s.failure(w, err)
		return
	}
	verify := false
	if v := r.URL.Query().Get("verify"); v != "" {
		if verify, err = strconv.ParseBool(v); err != nil {
			s.failure(w, &ErrValidation{Field: "verify", Message: "must be a boolean"})
			return
		}
	}

	final, err := s.cfg.Store.GetFinalDocumentByRunID(r.Context(), id)
	if err != nil {
		s.failure(w, fmt.Errorf("failed to load final document: %w", err))
		return
	}
	if final == nil {
		s.failure(w, &ErrNotFound{Kind: "artifact", ID: id.String() + "/" + steps.ArtifactFinal})
		return
	}
	record, err := s.cfg.Store.GetComplianceByRunID(r.Context(), id)
	if err != nil {
		s.failure(w, fmt.Errorf("failed to load compliance record: %w", err))
		return
	}
	if record == nil {
		s.failure(w, &ErrNotFound{Kind: "artifact", ID: id.String() + "/" + steps.StepAggregate})
		return
	}
	s.revert(w, final, record.AutoFixes, verify)
}

func (s *Server) revert(w http.ResponseWriter, final *types.Document, fixes []types.AutoFix, verify bool) {
	raw, report, err := revert.Revert(final, fixes)
	if err != nil {
		s.failure(w, err)
		return
	}
	if verify {
		if err := revert.VerifyRoundTrip(final, fixes); err != nil {
			s.failure(w, err)
			return
		}
	}

	diffs, err := revert.Diff(raw, final)
	if err != nil {
		s.failure(w, err)
		return
	}
	if diffs == nil {
		diffs = []revert.FieldDiff{}
	}
	s.jsonResponse(w, http.StatusOK, RevertResponse{Raw: raw, Report: report, Diffs: diffs})
}

// handleListPolicies lists the built-in jurisdictions
func (s *Server) handleListPolicies(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"jurisdictions": policy.BuiltinJurisdictions(),
		"default":       s.cfg.Jurisdiction,
	})
}

// runID parses the {id} path value and checks the store is available
func (s *Server) runID(r *http.Request) (uuid.UUID, error) {
	if s.cfg.Store == nil {
		return uuid.Nil, &ErrStoreUnavailable{}
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, &ErrValidation{Field: "id", Message: "invalid run ID format"}
	}
	return id, nil
}

// handleListRuns lists stored runs, newest first
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		s.failure(w, &ErrStoreUnavailable{})
		return
	}

	filters := db.RunFilters{
		Jurisdiction: r.URL.Query().Get("jurisdiction"),
		Status:       r.URL.Query().Get("status"),
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			s.failure(w, &ErrValidation{Field: "limit", Message: "must be a positive integer"})
			return
		}
		filters.Limit = limit
	}

	runs, err := s.cfg.Store.ListRuns(r.Context(), filters)
	if err != nil {
		s.failure(w, fmt.Errorf("failed to list runs: %w", err))
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

// handleGetRun returns one run record with the documents and results stored for it
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := s.runID(r)
	if err != nil {
		s.failure(w, err)
		return
	}

	ctx := r.Context()
	run, err := s.cfg.Store.GetRun(ctx, id)
	if err != nil {
		s.failure(w, fmt.Errorf("failed to get run: %w", err))
		return
	}
	if run == nil {
		s.failure(w, &ErrNotFound{Kind: "run", ID: id.String()})
		return
	}

	resp := RunDetailResponse{Run: run}
	if resp.Input, err = s.cfg.Store.GetInputDocumentByRunID(ctx, id); err != nil {
		s.failure(w, fmt.Errorf("failed to load input document: %w", err))
		return
	}
	if resp.Final, err = s.cfg.Store.GetFinalDocumentByRunID(ctx, id); err != nil {
		s.failure(w, fmt.Errorf("failed to load final document: %w", err))
		return
	}
	if resp.Compliance, err = s.cfg.Store.GetComplianceByRunID(ctx, id); err != nil {
		s.failure(w, fmt.Errorf("failed to load compliance record: %w", err))
		return
	}
	if resp.Quality, err = s.cfg.Store.GetQualityByRunID(ctx, id); err != nil {
		s.failure(w, fmt.Errorf("failed to load quality result: %w", err))
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleDeleteRun removes a run and its artifacts
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id, err := s.runID(r)
	if err != nil {
		s.failure(w, err)
		return
	}

	run, err := s.cfg.Store.GetRun(r.Context(), id)
	if err != nil {
		s.failure(w, fmt.Errorf("failed to get run: %w", err))
		return
	}
	if run == nil {
		s.failure(w, &ErrNotFound{Kind: "run", ID: id.String()})
		return
	}
	if err := s.cfg.Store.DeleteRun(r.Context(), id); err != nil {
		s.failure(w, fmt.Errorf("failed to delete run: %w", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRunSteps reports stage completion for a stored run
func (s *Server) handleRunSteps(w http.ResponseWriter, r *http.Request) {
	id, err := s.runID(r)
	if err != nil {
		s.failure(w, err)
		return
	}

	progress, err := steps.GetProgress(r.Context(), s.cfg.Store, id)
	if err != nil {
		s.failure(w, fmt.Errorf("failed to load run progress: %w", err))
		return
	}
	s.jsonResponse(w, http.StatusOK, RunStepsResponse{
		RunID:     id.String(),
		Completed: nonNil(progress.Completed),
		Available: nonNil(progress.Available),
		Blocked:   nonNil(progress.Blocked),
	})
}

// handleListArtifacts lists a run's artifacts, optionally filtered by category
func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	id, err := s.runID(r)
	if err != nil {
		s.failure(w, err)
		return
	}

	artifacts, err := s.cfg.Store.ListArtifacts(r.Context(), db.ArtifactFilters{
		RunID:    id,
		Category: r.URL.Query().Get("category"),
	})
	if err != nil {
		s.failure(w, fmt.Errorf("failed to list artifacts: %w", err))
		return
	}
	if artifacts == nil {
		artifacts = []db.ArtifactSummary{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"artifacts": artifacts, "count": len(artifacts)})
}

// handleGetArtifact returns one stored stage output
func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := s.runID(r)
	if err != nil {
		s.failure(w, err)
		return
	}
	step := r.PathValue("step")

	artifact, err := s.cfg.Store.GetArtifact(r.Context(), id, step)
	if err != nil {
		s.failure(w, fmt.Errorf("failed to get artifact: %w", err))
		return
	}
	if artifact == nil {
		s.failure(w, &ErrNotFound{Kind: "artifact", ID: id.String() + "/" + step})
		return
	}
	s.jsonResponse(w, http.StatusOK, artifact)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
