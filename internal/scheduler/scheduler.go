package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/planwise-labs/navigator-core/infrastructure/logging"
	"github.com/planwise-labs/navigator-core/internal/domain"
	"github.com/planwise-labs/navigator-core/internal/runner"
)

// ModelRunner is the slice of *runner.Runner the scheduler needs, narrowed
// to an interface so tests can substitute a fake instead of shelling out.
type ModelRunner interface {
	Invoke(ctx context.Context, selector string, vars runner.Variables, fullRefresh bool) (runner.Result, error)
}

// YearContext carries the per-year parameters every hook and executor
// needs: which year, whether it's the run's first year, and the knobs
// that change pre-hook behavior.
type YearContext struct {
	Year               int
	StartYear          int
	ScenarioID         string
	PlanDesignID       string
	RandomSeed         int64
	ClearModeAll       bool
	ClearTablePatterns []string
	FullRefreshYear    bool
}

func (yc YearContext) isStartYear() bool { return yc.Year == yc.StartYear }

func (yc YearContext) vars(extra map[string]string) runner.Variables {
	return runner.Variables{
		Year:         yc.Year,
		ScenarioID:   yc.ScenarioID,
		PlanDesignID: yc.PlanDesignID,
		RandomSeed:   yc.RandomSeed,
		Extra:        extra,
	}
}

// HazardCacheGate ensures hazard caches (content-addressed per-period rate
// tables) are current before event generation runs, rebuilding them if
// their input parameters changed. Scheduler treats it as opaque; the
// event-generation engine owns the actual cache.
type HazardCacheGate func(ctx context.Context) error

// Scheduler runs one year's stage pipeline: pre-hooks, execution, and the
// self-healing post-hooks of §4.9.
type Scheduler struct {
	defs        []StageDefinition
	runner      ModelRunner
	checks      SelfHealingChecks
	hazardGate  HazardCacheGate
	parallel    ParallelSafetyPolicy
	sidecarDir  string
	logger      *logging.Logger
}

// Config wires a Scheduler's collaborators. Checks and HazardGate may be
// nil, in which case the corresponding self-healing checks and hazard-cache
// gating are skipped (useful for tests and for stages that don't need
// them).
type Config struct {
	Definitions []StageDefinition
	Runner      ModelRunner
	Checks      SelfHealingChecks
	HazardGate  HazardCacheGate
	Parallel    ParallelSafetyPolicy
	SidecarDir  string
	Logger      *logging.Logger
}

func New(cfg Config) *Scheduler {
	defs := cfg.Definitions
	if defs == nil {
		defs = DefaultStageDefinitions()
	}
	return &Scheduler{
		defs:       defs,
		runner:     cfg.Runner,
		checks:     cfg.Checks,
		hazardGate: cfg.HazardGate,
		parallel:   cfg.Parallel,
		sidecarDir: cfg.SidecarDir,
		logger:     cfg.Logger,
	}
}

// RunYear executes every stage in domain.Stages order, running pre-hooks,
// the stage body, and post-hooks (including self-healing rebuilds) for
// each. On success it returns a StageCheckpoint recording the final stage
// reached; a failure at any stage aborts the year and reports which stage
// failed.
func (s *Scheduler) RunYear(ctx context.Context, yc YearContext) (domain.StageCheckpoint, error) {
	for _, stage := range domain.Stages {
		def, ok := defByName(s.defs, stage)
		if !ok {
			return domain.StageCheckpoint{}, fmt.Errorf("scheduler: no definition for stage %s", stage)
		}

		if err := s.preHook(ctx, def, yc); err != nil {
			return domain.StageCheckpoint{}, fmt.Errorf("scheduler: year %d stage %s pre-hook: %w", yc.Year, stage, err)
		}

		if err := s.execute(ctx, def, yc); err != nil {
			return domain.StageCheckpoint{}, fmt.Errorf("scheduler: year %d stage %s: %w", yc.Year, stage, err)
		}

		if err := s.postHook(ctx, def, yc); err != nil {
			return domain.StageCheckpoint{}, fmt.Errorf("scheduler: year %d stage %s post-hook: %w", yc.Year, stage, err)
		}

		if s.logger != nil {
			s.logger.Info(ctx, "stage complete", map[string]interface{}{"year": yc.Year, "stage": string(stage)})
		}
	}

	cp := domain.StageCheckpoint{
		Year:      yc.Year,
		Stage:     domain.StageCleanup,
		Timestamp: time.Now(),
		StateHash: stateHash(yc),
	}
	if s.sidecarDir != "" {
		if err := writeStageSidecar(s.sidecarDir, cp); err != nil {
			return cp, fmt.Errorf("scheduler: write stage sidecar for year %d: %w", yc.Year, err)
		}
	}
	return cp, nil
}

// execute runs a stage's body. EVENT_GENERATION and STATE_ACCUMULATION run
// model-by-model in declared order unless the definition supplies a custom
// Executor (the event-generation engine uses this to pick SQL vs vector
// mode). Every other stage runs as one tagged selection.
func (s *Scheduler) execute(ctx context.Context, def StageDefinition, yc YearContext) error {
	if def.Executor != nil {
		return def.Executor(ctx, yc)
	}

	switch def.Name {
	case domain.StageEventGeneration, domain.StageStateAccumulation:
		for _, model := range def.Models {
			res, err := s.runner.Invoke(ctx, runner.NameSelector(model), yc.vars(nil), yc.FullRefreshYear)
			if err == nil && !res.Success {
				err = fmt.Errorf("runner exited with code %d: %s", res.ReturnCode, res.StdoutSummary)
			}
			if err != nil {
				return fmt.Errorf("model %s: %w", model, err)
			}
		}
		return nil
	default:
		if s.runner == nil {
			return nil
		}
		res, err := s.runner.Invoke(ctx, runner.TagSelector(def.Name), yc.vars(nil), yc.FullRefreshYear)
		if err == nil && !res.Success {
			err = fmt.Errorf("runner exited with code %d: %s", res.ReturnCode, res.StdoutSummary)
		}
		return err
	}
}

func stateHash(yc YearContext) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s|%d", yc.Year, yc.ScenarioID, yc.PlanDesignID, yc.RandomSeed)))
	return hex.EncodeToString(sum[:])
}
