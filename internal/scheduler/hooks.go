package scheduler

import (
	"context"
	"fmt"

	"github.com/planwise-labs/navigator-core/internal/domain"
	"github.com/planwise-labs/navigator-core/internal/runner"
)

// SelfHealingChecks supplies the data the post-hooks need to decide
// whether a stage's output is healthy, decoupling the scheduler from any
// particular storage layer. The orchestrator implements this against
// internal/store and internal/registry.
type SelfHealingChecks interface {
	// FoundationRowCounts returns row counts for the baseline,
	// compensation, workforce-needs, and by-level foundation tables.
	FoundationRowCounts(ctx context.Context, year int) (map[string]int64, error)
	// HireDemand returns the workforce-needs target hire count for year.
	HireDemand(ctx context.Context, year int) (int64, error)
	// HireEventCount returns how many hire events year actually produced.
	HireEventCount(ctx context.Context, year int) (int64, error)
	// AnyHireMissingCompensation reports whether any hire event for year
	// carries a null/zero starting compensation.
	AnyHireMissingCompensation(ctx context.Context, year int) (bool, error)
	// HireEventsMissingFromFact reports whether hire events exist upstream
	// but are absent from the year's materialized fact table.
	HireEventsMissingFromFact(ctx context.Context, year int) (bool, error)
	// ContributionsWithoutMatchEvents reports whether year has
	// contributions > 0 but zero employer-match events.
	ContributionsWithoutMatchEvents(ctx context.Context, year int) (bool, error)
	// DeferralStateWithoutContributions reports whether a deferral
	// escalation state exists for year but no contributions were
	// produced.
	DeferralStateWithoutContributions(ctx context.Context, year int) (bool, error)
}

// preHook runs before a stage executes: full/partial resets ahead of
// FOUNDATION, and the hazard-cache freshness gate ahead of
// EVENT_GENERATION.
func (s *Scheduler) preHook(ctx context.Context, def StageDefinition, yc YearContext) error {
	switch def.Name {
	case domain.StageFoundation:
		if yc.isStartYear() || yc.ClearModeAll {
			if s.runner == nil {
				return nil
			}
			if _, err := s.runner.Invoke(ctx, runner.TagSelector(domain.StageFoundation), yc.vars(map[string]string{"clear_mode": "all"}), true); err != nil {
				return fmt.Errorf("full reset before foundation: %w", err)
			}
			return nil
		}
		if len(yc.ClearTablePatterns) > 0 && s.runner != nil {
			if _, err := s.runner.Invoke(ctx, runner.TagSelector(domain.StageFoundation), yc.vars(map[string]string{"clear_mode": "year", "clear_table_patterns": joinPatterns(yc.ClearTablePatterns)}), false); err != nil {
				return fmt.Errorf("per-year clear before foundation: %w", err)
			}
		}
		return nil

	case domain.StageEventGeneration:
		if s.hazardGate != nil {
			if err := s.hazardGate(ctx); err != nil {
				return fmt.Errorf("hazard cache gate: %w", err)
			}
		}
		return nil

	default:
		return nil
	}
}

func joinPatterns(patterns []string) string {
	out := ""
	for i, p := range patterns {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

// postHook implements §4.9's self-healing post-hooks. Every check is
// skipped cleanly when the orchestrator didn't wire a SelfHealingChecks
// (nil), so the scheduler remains usable standalone in tests.
func (s *Scheduler) postHook(ctx context.Context, def StageDefinition, yc YearContext) error {
	if s.checks == nil {
		return nil
	}

	switch def.Name {
	case domain.StageFoundation:
		return s.checkFoundation(ctx, yc)
	case domain.StageEventGeneration:
		return s.checkEventGeneration(ctx, yc)
	case domain.StageStateAccumulation:
		return s.checkStateAccumulation(ctx, yc)
	default:
		return nil
	}
}

func (s *Scheduler) checkFoundation(ctx context.Context, yc YearContext) error {
	counts, err := s.checks.FoundationRowCounts(ctx, yc.Year)
	if err != nil {
		return fmt.Errorf("foundation row counts: %w", err)
	}
	for table, n := range counts {
		if n > 0 {
			continue
		}
		if yc.isStartYear() {
			return fmt.Errorf("foundation table %q is empty in start year %d", table, yc.Year)
		}
		if s.logger != nil {
			s.logger.Info(ctx, "foundation table empty (expected in later years)", map[string]interface{}{"year": yc.Year, "table": table})
		}
	}
	return nil
}

func (s *Scheduler) checkEventGeneration(ctx context.Context, yc YearContext) error {
	demand, err := s.checks.HireDemand(ctx, yc.Year)
	if err != nil {
		return fmt.Errorf("hire demand: %w", err)
	}
	hires, err := s.checks.HireEventCount(ctx, yc.Year)
	if err != nil {
		return fmt.Errorf("hire event count: %w", err)
	}
	if demand > 0 && hires == 0 {
		if err := s.rebuild(ctx, yc, "int_hiring_events", "int_new_hire_termination_events"); err != nil {
			return fmt.Errorf("rebuild hiring models: %w", err)
		}
	}

	missingComp, err := s.checks.AnyHireMissingCompensation(ctx, yc.Year)
	if err != nil {
		return fmt.Errorf("hire compensation check: %w", err)
	}
	if missingComp {
		if err := s.rebuild(ctx, yc, "int_workforce_needs_by_level", "int_hiring_events"); err != nil {
			return fmt.Errorf("rebuild needs-by-level to hiring chain: %w", err)
		}
	}
	return nil
}

func (s *Scheduler) checkStateAccumulation(ctx context.Context, yc YearContext) error {
	missing, err := s.checks.HireEventsMissingFromFact(ctx, yc.Year)
	if err != nil {
		return fmt.Errorf("hire events vs fact reconciliation: %w", err)
	}
	if missing {
		if err := s.rebuild(ctx, yc, "fct_workforce_snapshot", "int_hiring_events", "fct_yearly_events"); err != nil {
			return fmt.Errorf("rebuild hiring + yearly-events + snapshot: %w", err)
		}
	}

	noMatch, err := s.checks.ContributionsWithoutMatchEvents(ctx, yc.Year)
	if err != nil {
		return fmt.Errorf("contribution/match consistency: %w", err)
	}
	if noMatch && s.logger != nil {
		s.logger.Warn(ctx, "contributions present with zero employer-match events", map[string]interface{}{"year": yc.Year})
	}

	deferralGap, err := s.checks.DeferralStateWithoutContributions(ctx, yc.Year)
	if err != nil {
		return fmt.Errorf("deferral state consistency: %w", err)
	}
	if deferralGap {
		if err := s.rebuild(ctx, yc, "stg_census_data", "int_compensation_by_level", "int_deferral_escalation_state_accumulator", "int_contribution_calculator", "fct_workforce_snapshot"); err != nil {
			return fmt.Errorf("rebuild staging through snapshot: %w", err)
		}
	}
	return nil
}

// rebuild invokes a fixed-order sequence of named models with
// full_refresh=true, the remedy self-healing rebuilds always use.
func (s *Scheduler) rebuild(ctx context.Context, yc YearContext, models ...string) error {
	if s.runner == nil {
		return nil
	}
	for _, model := range models {
		if _, err := s.runner.Invoke(ctx, runner.NameSelector(model), yc.vars(nil), true); err != nil {
			return err
		}
	}
	return nil
}
