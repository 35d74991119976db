package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/listing-copy-guard/internal/pipeline/steps"
	"github.com/jonathan/listing-copy-guard/internal/types"
)

// loadArtifact decodes a stored artifact into v. It reports false when the run has
// no artifact for step.
func (db *DB) loadArtifact(ctx context.Context, runID uuid.UUID, step string, v any) (bool, error) {
	a, err := db.GetArtifact(ctx, runID, step)
	if err != nil {
		return false, err
	}
	if a == nil {
		return false, nil
	}
	if err := json.Unmarshal(a.Content, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s artifact: %w", step, err)
	}
	return true, nil
}

// GetComplianceByRunID loads the aggregated compliance record of a run
func (db *DB) GetComplianceByRunID(ctx context.Context, runID uuid.UUID) (*types.ComplianceResult, error) {
	var result types.ComplianceResult
	found, err := db.loadArtifact(ctx, runID, steps.StepAggregate, &result)
	if err != nil || !found {
		return nil, err
	}
	return &result, nil
}

// GetQualityByRunID loads the quality result of a run
func (db *DB) GetQualityByRunID(ctx context.Context, runID uuid.UUID) (*types.CampaignQualityResult, error) {
	var result types.CampaignQualityResult
	found, err := db.loadArtifact(ctx, runID, steps.StepScore, &result)
	if err != nil || !found {
		return nil, err
	}
	return &result, nil
}

// GetFinalDocumentByRunID loads the delivered document of a run
func (db *DB) GetFinalDocumentByRunID(ctx context.Context, runID uuid.UUID) (*types.Document, error) {
	return db.loadDocument(ctx, runID, steps.ArtifactFinal)
}

// GetInputDocumentByRunID loads the document a run was started with
func (db *DB) GetInputDocumentByRunID(ctx context.Context, runID uuid.UUID) (*types.Document, error) {
	return db.loadDocument(ctx, runID, steps.ArtifactInput)
}

func (db *DB) loadDocument(ctx context.Context, runID uuid.UUID, step string) (*types.Document, error) {
	doc := types.NewDocument()
	found, err := db.loadArtifact(ctx, runID, step, doc)
	if err != nil || !found {
		return nil, err
	}
	return doc, nil
}
