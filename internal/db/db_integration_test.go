//go:build integration

package db

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/listing-copy-guard/internal/pipeline"
	"github.com/jonathan/listing-copy-guard/internal/pipeline/steps"
	"github.com/jonathan/listing-copy-guard/internal/policy"
	"github.com/jonathan/listing-copy-guard/internal/types"
)

func getTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := Connect(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, db.EnsureSchema(ctx))
	return db
}

func createTestRun(t *testing.T, db *DB, ctx context.Context) uuid.UUID {
	t.Helper()
	runID, err := db.CreateRun(ctx, "test-"+uuid.New().String()[:8])
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.DeleteRun(context.Background(), runID) })
	return runID
}

func TestIntegration_RunLifecycle(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	runID := createTestRun(t, db, ctx)

	run, err := db.GetRun(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Nil(t, run.CompletedAt)

	require.NoError(t, db.CompleteRun(ctx, runID, RunStatusCompleted))
	run, err = db.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.NotNil(t, run.CompletedAt)

	runs, err := db.ListRuns(ctx, RunFilters{Jurisdiction: run.Jurisdiction})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)

	missing, err := db.GetRun(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestIntegration_Artifacts(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	runID := createTestRun(t, db, ctx)
	doc := types.NewDocument("twitter", "Lake views.", "sms", "Tour Sunday.")

	require.NoError(t, db.SaveArtifact(ctx, runID, steps.ArtifactFinal, steps.CategoryAudit, doc))
	require.NoError(t, db.SaveArtifact(ctx, runID, steps.StepScan, steps.CategoryCompliance, map[string]int{"violations": 0}))

	loaded, err := db.GetFinalDocumentByRunID(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, doc.Equal(loaded))
	assert.Equal(t, doc.Paths(), loaded.Paths())

	done, err := db.StepCompleted(ctx, runID, steps.StepScan)
	require.NoError(t, err)
	assert.True(t, done)
	done, err = db.StepCompleted(ctx, runID, steps.StepFix)
	require.NoError(t, err)
	assert.False(t, done)

	summaries, err := db.ListArtifacts(ctx, ArtifactFilters{RunID: runID, Category: steps.CategoryCompliance})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, steps.StepScan, summaries[0].Step)

	none, err := db.GetComplianceByRunID(ctx, runID)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestIntegration_PipelinePersistsRun(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	pol, err := policy.Builtin("us-fha")
	require.NoError(t, err)

	result, err := pipeline.New(pipeline.Dependencies{Store: db}, pipeline.Options{}).
		Run(ctx, types.NewDocument("twitter", "Sunny condo, no children."), pol)
	require.NoError(t, err)

	runID := uuid.MustParse(result.RunID)
	t.Cleanup(func() { _ = db.DeleteRun(context.Background(), runID) })

	progress, err := steps.GetProgress(ctx, db, runID)
	require.NoError(t, err)
	assert.Equal(t, steps.Names(), progress.Completed)

	compliance, err := db.GetComplianceByRunID(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, compliance)
	assert.Equal(t, types.VerdictNeedsReview, compliance.Verdict)

	quality, err := db.GetQualityByRunID(ctx, runID)
	require.NoError(t, err)
	assert.NotNil(t, quality)
}
