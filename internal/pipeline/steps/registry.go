// Package steps provides stage definitions and dependency validation for the
// copy guard pipeline.
package steps

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Stage names, in execution order
const (
	StepScan      = "scan"
	StepFix       = "fix"
	StepConstrain = "constrain"
	StepScore     = "score"
	StepAggregate = "aggregate"
)

// Artifacts stored alongside the stage outputs
const (
	ArtifactInput = "input"
	ArtifactFinal = "final"
	ArtifactDiffs = "diffs"
)

// Step categories
const (
	CategoryCompliance  = "compliance"
	CategoryConstraints = "constraints"
	CategoryQuality     = "quality"
	CategoryAudit       = "audit"
)

// StepDefinition defines metadata for a pipeline stage
type StepDefinition struct {
	Name         string
	Category     string
	Dependencies []string
}

// Registry lists every stage in the only order the pipeline runs them
var Registry = []StepDefinition{
	{Name: StepScan, Category: CategoryCompliance, Dependencies: []string{}},
	{Name: StepFix, Category: CategoryCompliance, Dependencies: []string{StepScan}},
	{Name: StepConstrain, Category: CategoryConstraints, Dependencies: []string{StepFix}},
	{Name: StepScore, Category: CategoryQuality, Dependencies: []string{StepConstrain}},
	{Name: StepAggregate, Category: CategoryAudit, Dependencies: []string{StepScan, StepFix}},
}

// Lookup returns the definition of a stage
func Lookup(name string) (StepDefinition, bool) {
	for _, def := range Registry {
		if def.Name == name {
			return def, true
		}
	}
	return StepDefinition{}, false
}

// Names returns the stage names in execution order
func Names() []string {
	names := make([]string, len(Registry))
	for i, def := range Registry {
		names[i] = def.Name
	}
	return names
}

// CategoryOf returns the category of a stage or artifact name
func CategoryOf(name string) string {
	if def, ok := Lookup(name); ok {
		return def.Category
	}
	return CategoryAudit
}

// CompletionLookup reports whether a stage finished for a run
type CompletionLookup interface {
	StepCompleted(ctx context.Context, runID uuid.UUID, step string) (bool, error)
}

// DependencyError represents a dependency validation error
type DependencyError struct {
	Step                string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("step %s has missing dependencies: %v", e.Step, e.MissingDependencies)
}

// ValidateDependencies checks that every dependency of a stage has completed
func ValidateDependencies(ctx context.Context, lookup CompletionLookup, runID uuid.UUID, stepName string) error {
	def, ok := Lookup(stepName)
	if !ok {
		return fmt.Errorf("unknown step: %s", stepName)
	}

	var missing []string
	for _, dep := range def.Dependencies {
		done, err := lookup.StepCompleted(ctx, runID, dep)
		if err != nil {
			return fmt.Errorf("failed to check dependency %s: %w", dep, err)
		}
		if !done {
			missing = append(missing, dep)
		}
	}

	if len(missing) > 0 {
		return &DependencyError{Step: stepName, MissingDependencies: missing}
	}
	return nil
}

// Progress splits a run's stages into completed, available (dependencies met) and
// blocked, each in execution order.
type Progress struct {
	Completed []string `json:"completed"`
	Available []string `json:"available"`
	Blocked   []string `json:"blocked"`
}

// GetProgress classifies every stage of a run
func GetProgress(ctx context.Context, lookup CompletionLookup, runID uuid.UUID) (*Progress, error) {
	progress := &Progress{Completed: []string{}, Available: []string{}, Blocked: []string{}}

	for _, def := range Registry {
		done, err := lookup.StepCompleted(ctx, runID, def.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to check step %s: %w", def.Name, err)
		}
		if done {
			progress.Completed = append(progress.Completed, def.Name)
			continue
		}

		err = ValidateDependencies(ctx, lookup, runID, def.Name)
		var depErr *DependencyError
		switch {
		case err == nil:
			progress.Available = append(progress.Available, def.Name)
		case errors.As(err, &depErr):
			progress.Blocked = append(progress.Blocked, def.Name)
		default:
			return nil, err
		}
	}
	return progress, nil
}
