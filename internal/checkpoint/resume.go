package checkpoint

import (
	"context"
	"errors"
	"time"
)

// ResumeSimulation implements the §4.8 resume contract: forceRestart
// always means "start over"; otherwise the latest valid checkpoint is
// consulted, configuration drift refuses to resume, and the clamp keeps
// the caller from being told to run past targetEndYear.
//
// Returns nil when the run should start from its own configured first
// year (no usable checkpoint, or a forced restart) — never an error for
// that case, since "nothing to resume from" is a normal outcome, not a
// failure.
func (m *Manager) ResumeSimulation(ctx context.Context, targetEndYear int, currentConfigHash string, forceRestart bool) (*int, error) {
	if forceRestart {
		return nil, nil
	}

	cp, err := m.LatestValid(ctx)
	if err != nil {
		if errors.Is(err, ErrNoCheckpoints) {
			return nil, nil
		}
		return nil, err
	}

	if cp.ConfigHash != currentConfigHash {
		return nil, nil
	}

	next := cp.Year + 1
	if max := targetEndYear + 1; next > max {
		next = max
	}
	return &next, nil
}

// RecoveryPlanKind distinguishes running every requested year from
// skipping the prefix a checkpoint already covers.
type RecoveryPlanKind string

const (
	PlanFullRun          RecoveryPlanKind = "full_run"
	PlanCheckpointResume RecoveryPlanKind = "checkpoint_resume"
)

// RecoveryPlan is the report handed to the orchestrator before a run
// starts: what will actually execute, and what was skipped.
type RecoveryPlan struct {
	Kind                   RecoveryPlanKind
	StartYear              int
	EndYear                int
	ResumeFromYear         int // 0 when Kind is PlanFullRun
	SkippedYears           []int
	EstimatedSavedDuration time.Duration
}

// BuildRecoveryPlan decides between full_run and checkpoint_resume for
// [startYear, endYear] under configHash, and estimates time saved as
// skipped-years × avgYearDuration (SPEC_FULL C.6). Pass 0 for
// avgYearDuration when no performance-monitor history exists yet; the
// estimate then correctly reports a zero duration rather than guessing.
func (m *Manager) BuildRecoveryPlan(ctx context.Context, startYear, endYear int, configHash string, avgYearDuration time.Duration) (RecoveryPlan, error) {
	resumeFrom, err := m.ResumeSimulation(ctx, endYear, configHash, false)
	if err != nil {
		return RecoveryPlan{}, err
	}

	if resumeFrom == nil || *resumeFrom <= startYear {
		return RecoveryPlan{Kind: PlanFullRun, StartYear: startYear, EndYear: endYear}, nil
	}

	skipped := make([]int, 0, *resumeFrom-startYear)
	for y := startYear; y < *resumeFrom; y++ {
		skipped = append(skipped, y)
	}

	return RecoveryPlan{
		Kind:                   PlanCheckpointResume,
		StartYear:              startYear,
		EndYear:                endYear,
		ResumeFromYear:         *resumeFrom,
		SkippedYears:           skipped,
		EstimatedSavedDuration: time.Duration(len(skipped)) * avgYearDuration,
	}, nil
}
