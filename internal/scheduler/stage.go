// Package scheduler drives the per-year stage state machine: pre-hooks,
// model-by-model or tagged execution, self-healing post-hooks, and the
// stage-level checkpoint sidecar (§4.9).
package scheduler

import (
	"context"

	"github.com/planwise-labs/navigator-core/internal/domain"
)

// StageDefinition is the `{name, dependencies, models[], validation_rules[],
// parallel_safe, checkpoint_enabled}` record of §4.9.
type StageDefinition struct {
	Name              domain.Stage
	Dependencies      []domain.Stage
	Models            []string
	ValidationRules   []string
	ParallelSafe      bool
	CheckpointEnabled bool

	// Executor, when set, replaces the scheduler's generic model-by-model
	// or tagged-selector execution for this stage. EVENT_GENERATION uses
	// this to hand control to the event-generation engine, which decides
	// between SQL and vector mode (§4.10) rather than being driven purely
	// by a model list.
	Executor func(ctx context.Context, yc YearContext) error
}

// DefaultStageDefinitions returns the stock seven-stage pipeline. Model
// lists are illustrative of the navigator's own dbt project layout and are
// intended to be overridden per-deployment; what matters structurally is
// that STATE_ACCUMULATION declares the models only it owns, since
// EVENT_GENERATION's single-shard SQL exclusion set (Open Question (a)) is
// derived from exactly this list via ModelsOwnedAfter.
func DefaultStageDefinitions() []StageDefinition {
	return []StageDefinition{
		{
			Name:              domain.StageInitialization,
			Models:            []string{"stg_census_data", "stg_plan_design"},
			ParallelSafe:      true,
			CheckpointEnabled: false,
		},
		{
			Name:              domain.StageFoundation,
			Dependencies:      []domain.Stage{domain.StageInitialization},
			Models:            []string{"int_baseline_workforce", "int_compensation_by_level", "int_workforce_needs", "int_workforce_needs_by_level"},
			ValidationRules:   []string{"foundation_rows_nonempty"},
			ParallelSafe:      true,
			CheckpointEnabled: false,
		},
		{
			Name:              domain.StageEventGeneration,
			Dependencies:      []domain.Stage{domain.StageFoundation},
			Models:            []string{"int_hiring_events", "int_new_hire_termination_events", "int_termination_events", "int_promotion_events", "int_merit_events", "int_enrollment_events"},
			ValidationRules:   []string{"hire_demand_satisfied", "hire_compensation_present"},
			ParallelSafe:      false,
			CheckpointEnabled: false,
		},
		{
			Name:              domain.StageStateAccumulation,
			Dependencies:      []domain.Stage{domain.StageEventGeneration},
			Models:            []string{"fct_yearly_events", "int_deferral_escalation_state_accumulator", "int_contribution_calculator", "fct_workforce_snapshot"},
			ValidationRules:   []string{"hire_events_reconciled", "contribution_match_consistency", "deferral_state_consistency"},
			ParallelSafe:      false,
			CheckpointEnabled: false,
		},
		{
			Name:              domain.StageValidation,
			Dependencies:      []domain.Stage{domain.StageStateAccumulation},
			ParallelSafe:      true,
			CheckpointEnabled: false,
		},
		{
			Name:              domain.StageReporting,
			Dependencies:      []domain.Stage{domain.StageValidation},
			ParallelSafe:      true,
			CheckpointEnabled: false,
		},
		{
			Name:              domain.StageCleanup,
			Dependencies:      []domain.Stage{domain.StageReporting},
			ParallelSafe:      true,
			CheckpointEnabled: true,
		},
	}
}

// ModelsOwnedAfter returns every model name owned by stages that come
// after `stage` in the fixed topological order. This is the stage-metadata
// derivation of the legacy SQL-mode exclusion list (Open Question (a)):
// the EVENT_GENERATION single-shard runner asks for "everything downstream
// owns" instead of a hard-coded list.
func ModelsOwnedAfter(defs []StageDefinition, stage domain.Stage) []string {
	idx := indexOf(defs, stage)
	if idx < 0 {
		return nil
	}
	var models []string
	for _, d := range defs[idx+1:] {
		models = append(models, d.Models...)
	}
	return models
}

func indexOf(defs []StageDefinition, stage domain.Stage) int {
	for i, d := range defs {
		if d.Name == stage {
			return i
		}
	}
	return -1
}

func defByName(defs []StageDefinition, stage domain.Stage) (StageDefinition, bool) {
	for _, d := range defs {
		if d.Name == stage {
			return d, true
		}
	}
	return StageDefinition{}, false
}
