package orchestrator

import (
	"context"

	"github.com/planwise-labs/navigator-core/internal/domain"
	"github.com/planwise-labs/navigator-core/internal/eventgen"
	"github.com/planwise-labs/navigator-core/internal/runner"
	"github.com/planwise-labs/navigator-core/internal/scheduler"
)

// buildScheduler assembles a fresh Scheduler for this run, wiring the
// EVENT_GENERATION stage's executor to the dispatcher so mode selection
// (SQL vs vector) happens inside event generation rather than in the
// scheduler itself (§9's "dynamic dispatch → variants").
func (o *Orchestrator) buildScheduler() *scheduler.Scheduler {
	defs := scheduler.DefaultStageDefinitions()

	for i := range defs {
		if defs[i].Name != domain.StageEventGeneration {
			continue
		}
		defs[i].Executor = func(ctx context.Context, yc scheduler.YearContext) error {
			vars := runner.Variables{
				Year:         yc.Year,
				ScenarioID:   yc.ScenarioID,
				PlanDesignID: yc.PlanDesignID,
				RandomSeed:   yc.RandomSeed,
			}
			vectorCfg := eventgen.VectorConfig{
				ScenarioID:   yc.ScenarioID,
				PlanDesignID: yc.PlanDesignID,
				RandomSeed:   yc.RandomSeed,
				Workers:      o.cfg.Orchestrator.Threading.RunnerThreads,
			}
			result, err := o.dispatcher.Dispatch(ctx, yc.Year, o.currentRoster(), vectorCfg, vars, o.cfg.Orchestrator.Threading.EventShards, yc.FullRefreshYear)
			if err != nil {
				return err
			}
			if len(result.Events) > 0 {
				if err := o.store.InsertEvents(ctx, result.Events); err != nil {
					return err
				}
			}
			return nil
		}
	}

	return scheduler.New(scheduler.Config{
		Definitions: defs,
		Runner:      o.runnerImpl,
		Checks:      storeSelfHealingChecks{store: o.store},
		HazardGate:  o.hazardGate,
		Parallel:    scheduler.DefaultParallelSafetyPolicy(),
		SidecarDir:  o.reportsDir,
		Logger:      o.logger,
	})
}

// storeSelfHealingChecks adapts *store.Store (and the event histogram it
// already exposes) to scheduler.SelfHealingChecks, per §4.9's post-hooks.
type storeSelfHealingChecks struct {
	store interface {
		TableRowCount(ctx context.Context, table string) (int64, error)
		Count(ctx context.Context, table, whereClause string, args ...any) (int64, error)
		EventCountsByType(ctx context.Context, year int) (map[string]int64, error)
	}
}

func (c storeSelfHealingChecks) FoundationRowCounts(ctx context.Context, year int) (map[string]int64, error) {
	tables := []string{"int_baseline_workforce", "int_compensation_by_level", "int_workforce_needs", "int_workforce_needs_by_level"}
	counts := make(map[string]int64, len(tables))
	for _, t := range tables {
		n, err := c.store.Count(ctx, t, "simulation_year = $1", year)
		if err != nil {
			return nil, err
		}
		counts[t] = n
	}
	return counts, nil
}

func (c storeSelfHealingChecks) HireDemand(ctx context.Context, year int) (int64, error) {
	return c.store.Count(ctx, "int_workforce_needs", "simulation_year = $1", year)
}

func (c storeSelfHealingChecks) HireEventCount(ctx context.Context, year int) (int64, error) {
	counts, err := c.store.EventCountsByType(ctx, year)
	if err != nil {
		return 0, err
	}
	return counts[string(domain.EventHire)], nil
}

func (c storeSelfHealingChecks) AnyHireMissingCompensation(ctx context.Context, year int) (bool, error) {
	n, err := c.store.Count(ctx, "events", "simulation_year = $1 AND event_type = 'hire' AND (payload->>'starting_salary') IS NULL", year)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c storeSelfHealingChecks) HireEventsMissingFromFact(ctx context.Context, year int) (bool, error) {
	upstream, err := c.HireEventCount(ctx, year)
	if err != nil {
		return false, err
	}
	if upstream == 0 {
		return false, nil
	}
	inFact, err := c.store.Count(ctx, "fct_yearly_events", "simulation_year = $1 AND event_type = 'hire'", year)
	if err != nil {
		return false, err
	}
	return inFact < upstream, nil
}

func (c storeSelfHealingChecks) ContributionsWithoutMatchEvents(ctx context.Context, year int) (bool, error) {
	contributions, err := c.store.Count(ctx, "events", "simulation_year = $1 AND event_type = 'contribution'", year)
	if err != nil {
		return false, err
	}
	if contributions == 0 {
		return false, nil
	}
	matches, err := c.store.Count(ctx, "events", "simulation_year = $1 AND event_type = 'employer_match'", year)
	if err != nil {
		return false, err
	}
	return matches == 0, nil
}

func (c storeSelfHealingChecks) DeferralStateWithoutContributions(ctx context.Context, year int) (bool, error) {
	deferralState, err := c.store.Count(ctx, "int_deferral_escalation_state_accumulator", "updated_through_year = $1", year)
	if err != nil {
		return false, err
	}
	if deferralState == 0 {
		return false, nil
	}
	contributions, err := c.store.Count(ctx, "events", "simulation_year = $1 AND event_type = 'contribution'", year)
	if err != nil {
		return false, err
	}
	return contributions == 0, nil
}
