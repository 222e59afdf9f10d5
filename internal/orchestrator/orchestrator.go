// Package orchestrator implements the multi-year simulation loop (§4.11):
// it sequences initialization, per-year stage execution, checkpointing, and
// finalization, composing every other subsystem (memory controller,
// scheduler, event generation, registries, validation, checkpoints) into
// one run.
package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	svcerrors "github.com/planwise-labs/navigator-core/infrastructure/errors"
	"github.com/planwise-labs/navigator-core/infrastructure/logging"
	"github.com/planwise-labs/navigator-core/infrastructure/metrics"
	"github.com/planwise-labs/navigator-core/internal/checkpoint"
	"github.com/planwise-labs/navigator-core/internal/domain"
	"github.com/planwise-labs/navigator-core/internal/errkind"
	"github.com/planwise-labs/navigator-core/internal/eventgen"
	"github.com/planwise-labs/navigator-core/internal/framework/lifecycle"
	"github.com/planwise-labs/navigator-core/internal/memory"
	"github.com/planwise-labs/navigator-core/internal/observability/eventlog"
	"github.com/planwise-labs/navigator-core/internal/observability/httpstatus"
	"github.com/planwise-labs/navigator-core/internal/observability/perf"
	"github.com/planwise-labs/navigator-core/internal/registry"
	"github.com/planwise-labs/navigator-core/internal/runner"
	"github.com/planwise-labs/navigator-core/internal/scheduler"
	"github.com/planwise-labs/navigator-core/internal/store"
	"github.com/planwise-labs/navigator-core/internal/validation"
	"github.com/planwise-labs/navigator-core/pkg/config"
)

// navigatorOrchestratorMu is the single process-wide named mutex of §5: the
// whole module runs cooperatively in one process, and only one
// Orchestrator.Execute may be mid-run at a time, regardless of how many
// Orchestrator values exist.
var navigatorOrchestratorMu sync.Mutex

// Options carries the per-invocation overrides the CLI surface exposes
// (§6): these take precedence over the loaded config's Simulation section.
type Options struct {
	StartYear            int
	EndYear              int
	ResumeFromCheckpoint bool
	ForceRestart         bool

	// RunID, if set, is used instead of generating a fresh one. The CLI
	// entry point sets this so the event log (scoped to a run id at
	// construction, before Execute runs) and the run's artifacts agree on
	// one identifier.
	RunID string
}

// Orchestrator wires every subsystem needed to run a multi-year
// simulation. Build one with New and call Execute once; it is not safe for
// concurrent reuse across overlapping runs (see navigatorOrchestratorMu).
type Orchestrator struct {
	cfg         *config.Config
	store       *store.Store
	memCtl      *memory.Controller
	hooks       *lifecycle.Hooks
	checkpoints *checkpoint.Manager
	registries  *registry.Registries
	validation  *validation.Engine
	dispatcher  *eventgen.Dispatcher
	baseline    *eventgen.BaselineLoader
	hazardCache *eventgen.HazardCache
	runnerImpl  scheduler.ModelRunner
	logger      *logging.Logger
	events      *eventlog.Stream
	perfMon     *perf.Monitor
	metrics     *metrics.Metrics
	status      *httpstatus.Server
	runState    *httpstatus.RunState

	reportsDir   string
	artifactsDir string

	roster   []eventgen.EnrichedEmployee
	warnings []domain.RunIssue
}

func (o *Orchestrator) currentRoster() *[]eventgen.EnrichedEmployee {
	return &o.roster
}

func (o *Orchestrator) hazardGate(ctx context.Context) error {
	if o.hazardCache == nil {
		return nil
	}
	return o.hazardCache.Gate(o.parametersFromConfig())(ctx)
}

// New builds an Orchestrator from already-constructed collaborators. The
// cmd/navigator entry point is responsible for constructing each of these
// (opening the database, reading configuration, starting the optional HTTP
// status server) and handing them here; Orchestrator itself does no
// resource acquisition beyond its own mutex and run-scoped state.
type Deps struct {
	Config      *config.Config
	Store       *store.Store
	MemoryCtl   *memory.Controller
	Hooks       *lifecycle.Hooks
	Checkpoints *checkpoint.Manager
	Registries  *registry.Registries
	Validation  *validation.Engine
	Dispatcher  *eventgen.Dispatcher
	Baseline    *eventgen.BaselineLoader
	HazardCache *eventgen.HazardCache
	Runner      scheduler.ModelRunner
	Logger      *logging.Logger
	Events      *eventlog.Stream
	Perf        *perf.Monitor
	Metrics     *metrics.Metrics
	Status      *httpstatus.Server
	RunState    *httpstatus.RunState

	ReportsDir   string
	ArtifactsDir string
}

func New(d Deps) *Orchestrator {
	return &Orchestrator{
		cfg:          d.Config,
		store:        d.Store,
		memCtl:       d.MemoryCtl,
		hooks:        d.Hooks,
		checkpoints:  d.Checkpoints,
		registries:   d.Registries,
		validation:   d.Validation,
		dispatcher:   d.Dispatcher,
		baseline:     d.Baseline,
		hazardCache:  d.HazardCache,
		runnerImpl:   d.Runner,
		logger:       d.Logger,
		events:       d.Events,
		perfMon:      d.Perf,
		metrics:      d.Metrics,
		status:       d.Status,
		runState:     d.RunState,
		reportsDir:   d.ReportsDir,
		artifactsDir: d.ArtifactsDir,
	}
}

// Execute runs the §4.11 8-step sequence end to end and returns the
// resulting MultiYearSummary. A failure during any year aborts the run
// without writing a checkpoint for that year, per §5's exception contract.
func (o *Orchestrator) Execute(ctx context.Context, opts Options) (domain.MultiYearSummary, error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	if o.runState != nil {
		o.runState.SetRunID(runID)
	}
	startTime := time.Now()

	startYear := opts.StartYear
	if startYear == 0 {
		startYear = o.cfg.Simulation.StartYear
	}
	endYear := opts.EndYear
	if endYear == 0 {
		endYear = o.cfg.Simulation.EndYear
	}

	configHash, err := domain.ConfigHash(o.cfg)
	if err != nil {
		return domain.MultiYearSummary{}, errkind.Wrap(errkind.Configuration, domain.StageInitialization, startYear, "verify the configuration file parses to stable JSON", err)
	}

	// Step 1: log startup summary and hash config.
	o.logInfo(ctx, "multi-year run starting", map[string]interface{}{
		"run_id":      runID,
		"start_year":  startYear,
		"end_year":    endYear,
		"config_hash": configHash,
	})

	// Step 2: consult recovery subsystem if resuming.
	effectiveStart := startYear
	if opts.ResumeFromCheckpoint && !opts.ForceRestart {
		resumeFrom, err := o.checkpoints.ResumeSimulation(ctx, endYear, configHash, opts.ForceRestart)
		if err != nil {
			return domain.MultiYearSummary{}, errkind.Wrap(errkind.TransientStore, domain.StageInitialization, startYear, "check checkpoint storage connectivity", err)
		}
		if resumeFrom != nil && *resumeFrom > effectiveStart {
			effectiveStart = *resumeFrom
		}
		if effectiveStart > endYear {
			o.logInfo(ctx, "nothing left to run, already complete through end year", map[string]interface{}{"end_year": endYear})
			return domain.MultiYearSummary{
				RunID: runID, StartYear: startYear, EndYear: endYear,
				Status: domain.RunStatusSuccess, StartTime: startTime, EndTime: time.Now(),
			}, nil
		}
	}

	// Step 3: acquire the process-wide mutex for the duration of the run.
	navigatorOrchestratorMu.Lock()
	defer navigatorOrchestratorMu.Unlock()

	if err := o.hooks.RunPreStart(ctx); err != nil {
		return domain.MultiYearSummary{}, errkind.Wrap(errkind.Fatal, domain.StageInitialization, startYear, "inspect lifecycle pre-start hooks", err)
	}
	defer func() {
		_ = o.hooks.RunPostStop(ctx)
	}()

	// Step 4: full reset if configured; per-run registry reset only when
	// this run actually starts at the configured first year (a resumed run
	// must not re-zero registries other years already folded into).
	if o.cfg.Setup.ClearMode == "all" {
		if err := o.clearAll(ctx); err != nil {
			return domain.MultiYearSummary{}, errkind.Wrap(errkind.Resource, domain.StageFoundation, effectiveStart, "check database permissions for a full clear", err)
		}
	}
	if effectiveStart == o.cfg.Simulation.StartYear {
		if err := o.registries.Reset(ctx); err != nil {
			return domain.MultiYearSummary{}, errkind.Wrap(errkind.TransientStore, domain.StageFoundation, effectiveStart, "check registry table connectivity", err)
		}
	}

	if err := o.hooks.RunPostStart(ctx); err != nil {
		return domain.MultiYearSummary{}, errkind.Wrap(errkind.Fatal, domain.StageInitialization, effectiveStart, "inspect lifecycle post-start hooks", err)
	}

	// Step 5: foundation setup with retry-with-downgrade.
	foundationVars := runner.Variables{
		Year:         effectiveStart,
		ScenarioID:   o.cfg.Simulation.ScenarioID,
		PlanDesignID: o.cfg.Simulation.PlanDesignID,
		RandomSeed:   o.cfg.Simulation.RandomSeed,
	}
	foundationResult, err := o.runFoundationSetup(ctx, foundationVars)
	if err != nil {
		return domain.MultiYearSummary{}, errkind.Wrap(errkind.Runner, domain.StageFoundation, effectiveStart, "retry at a lower optimization level or inspect the runner log", err)
	}
	o.logInfo(ctx, "foundation setup complete", map[string]interface{}{
		"optimization_level": foundationResult.level,
		"duration_ms":        foundationResult.duration.Milliseconds(),
		"improvement_vs_baseline_ms": (foundationBaseline - foundationResult.duration).Milliseconds(),
	})

	if o.baseline != nil {
		employees, err := o.baseline.Load(ctx, effectiveStart)
		if err != nil {
			return domain.MultiYearSummary{}, errkind.Wrap(errkind.Configuration, domain.StageFoundation, effectiveStart, "check the columnar baseline path, analytical store, and CSV fallback", err)
		}
		o.roster = eventgen.EnrichAll(employees)
	}

	sched := o.buildScheduler()

	// Step 6: run each year.
	completed := make([]int, 0, endYear-effectiveStart+1)
	growth := make([]domain.YearGrowth, 0, endYear-effectiveStart+1)
	eventCounts := make(map[int]map[domain.EventType]int64)
	participation := make(map[int]float64)

	var runErr error
	var failedYear int
	var priorHeadcount int64
	for year := effectiveStart; year <= endYear; year++ {
		yearStart := time.Now()
		scope := o.perfMon.Start(fmt.Sprintf("year_%d", year))

		if _, err := o.memCheck(ctx, year); err != nil {
			runErr = errkind.Wrap(errkind.Resource, domain.StageFoundation, year, "inspect memory pressure history before retrying", err)
			failedYear = year
			scope.Stop(perf.StatusFailed)
			break
		}

		yc := scheduler.YearContext{
			Year:            year,
			StartYear:       o.cfg.Simulation.StartYear,
			ScenarioID:      o.cfg.Simulation.ScenarioID,
			PlanDesignID:    o.cfg.Simulation.PlanDesignID,
			RandomSeed:      o.cfg.Simulation.RandomSeed,
			ClearModeAll:    o.cfg.Setup.ClearMode == "all",
			FullRefreshYear: runner.ShouldFullRefresh(year, o.cfg.Simulation.StartYear, true, o.cfg.Setup.ClearMode == "all", false),
		}

		stageCP, err := sched.RunYear(ctx, yc)
		if err != nil {
			runErr = errkind.Wrap(errkind.Runner, domain.StageEventGeneration, year, "inspect scheduler stage logs for the failing model", err)
			failedYear = year
			scope.Stop(perf.StatusFailed)
			break
		}

		if _, err := o.memCheck(ctx, year); err != nil {
			runErr = errkind.Wrap(errkind.Resource, domain.StageValidation, year, "inspect memory pressure history before retrying", err)
			failedYear = year
			scope.Stop(perf.StatusFailed)
			break
		}

		if err := o.validateYear(ctx, year); err != nil {
			runErr = errkind.Wrap(errkind.Validation, domain.StageValidation, year, "review the validation findings before resuming", err)
			failedYear = year
			scope.Stop(perf.StatusFailed)
			break
		}

		dbState, valData, err := o.captureState(ctx, year)
		if err != nil {
			runErr = errkind.Wrap(errkind.TransientStore, domain.StageReporting, year, "check analytical store connectivity", err)
			failedYear = year
			scope.Stop(perf.StatusFailed)
			break
		}

		if _, err := o.checkpoints.Write(ctx, domain.Checkpoint{
			Year:           year,
			RunID:          runID,
			ConfigHash:     configHash,
			DatabaseState:  dbState,
			ValidationData: valData,
			Timestamp:      time.Now(),
		}); err != nil {
			runErr = errkind.Wrap(errkind.TransientStore, domain.StageCleanup, year, "check checkpoint backend connectivity", err)
			failedYear = year
			scope.Stop(perf.StatusFailed)
			break
		}
		_ = stageCP

		headcount, _ := o.store.ActiveHeadcount(ctx, year)
		counts, _ := o.store.EventCountsByType(ctx, year)
		typed := make(map[domain.EventType]int64, len(counts))
		var hires, terminations int64
		for k, v := range counts {
			typed[domain.EventType(k)] = v
			switch domain.EventType(k) {
			case domain.EventHire:
				hires = v
			case domain.EventTermination:
				terminations = v
			}
		}
		eventCounts[year] = typed
		var netGrowthRate float64
		if priorHeadcount > 0 {
			netGrowthRate = float64(headcount-priorHeadcount) / float64(priorHeadcount)
		}
		growth = append(growth, domain.YearGrowth{
			Year:              year,
			StartingHeadcount: int(priorHeadcount),
			EndingHeadcount:   int(headcount),
			NetGrowthRate:     netGrowthRate,
			HireCount:         int(hires),
			TerminationCount:  int(terminations),
		})
		priorHeadcount = headcount
		completed = append(completed, year)

		if o.metrics != nil {
			o.metrics.RecordStage("navigator", "year", fmt.Sprintf("%d", year), "success", time.Since(yearStart))
		}
		scope.Stop(perf.StatusSuccess)
		o.logInfo(ctx, "year complete", map[string]interface{}{"year": year, "active_headcount": headcount})
	}

	// Step 7: finalize.
	status := domain.RunStatusSuccess
	if runErr != nil {
		status = domain.RunStatusFailed
		if profile, perr := o.memCtl.Export(); perr == nil {
			_ = writeMemoryProfile(o.reportsDir, runID, profile)
		}
		if o.runState != nil {
			o.runState.SetError(serviceErrorFor(runErr))
		}
	}

	summary := domain.MultiYearSummary{
		RunID:               runID,
		StartYear:           startYear,
		EndYear:             endYear,
		CompletedYears:      completed,
		GrowthByYear:        growth,
		EventCountsByYear:   eventCounts,
		ParticipationByYear: participation,
		Threading: domain.ThreadingMetadata{
			ParallelizationEnabled: o.cfg.Orchestrator.Threading.Parallelization.Enabled,
			MaxWorkers:             o.cfg.Orchestrator.Threading.Parallelization.MaxWorkers,
			ResourceManagementMode: o.cfg.Optimization.Level,
		},
		Status:    status,
		StartTime: startTime,
		EndTime:   time.Now(),
	}

	if err := o.writeArtifacts(summary, runErr, failedYear); err != nil {
		o.logWarn(ctx, "failed to persist run artifacts", map[string]interface{}{"error": err.Error()})
	}

	if runErr != nil {
		return summary, runErr
	}
	return summary, nil
}

func (o *Orchestrator) memCheck(ctx context.Context, year int) (memory.Sample, error) {
	sample, err := o.memCtl.Sample()
	if err != nil {
		return sample, err
	}
	if o.events != nil {
		o.events.Info("memory check", eventlog.Fields{"year": year, "rss_mb": sample.RSSMB, "pressure": string(sample.Pressure)})
	}
	return sample, nil
}

func (o *Orchestrator) clearAll(ctx context.Context) error {
	tables := []string{"fct_workforce_snapshot", "fct_yearly_events"}
	for _, t := range tables {
		exists, err := o.store.TableExists(ctx, t)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		if err := o.store.DeleteYear(ctx, t, 0); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) validateYear(ctx context.Context, year int) error {
	events, err := o.store.EventsForYear(ctx, year)
	if err != nil {
		return err
	}
	snapshots, err := o.store.SnapshotsForYear(ctx, year)
	if err != nil {
		return err
	}
	findings, err := o.validation.Run(ctx, validation.Snapshot{Year: year, Events: events, Snapshots: snapshots})
	if err != nil {
		return err
	}
	for _, f := range findings {
		o.logWarn(ctx, "validation finding", map[string]interface{}{"year": year, "rule": f.Rule, "severity": string(f.Severity), "message": f.Message})
	}
	return nil
}

func (o *Orchestrator) captureState(ctx context.Context, year int) (domain.DatabaseState, domain.ValidationData, error) {
	dbState, err := checkpoint.CaptureDatabaseState(ctx, o.store, []string{"fct_workforce_snapshot", "fct_yearly_events"})
	if err != nil {
		return domain.DatabaseState{}, domain.ValidationData{}, err
	}
	events, err := o.store.EventsForYear(ctx, year)
	if err != nil {
		return domain.DatabaseState{}, domain.ValidationData{}, err
	}
	snapshots, err := o.store.SnapshotsForYear(ctx, year)
	if err != nil {
		return domain.DatabaseState{}, domain.ValidationData{}, err
	}
	valData := checkpoint.CaptureValidationData(events, snapshots, nil)
	return dbState, valData, nil
}

func (o *Orchestrator) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if o.logger != nil {
		o.logger.Info(ctx, msg, fields)
	}
	if o.events != nil {
		o.events.Info(msg, fields)
	}
}

func (o *Orchestrator) logWarn(ctx context.Context, msg string, fields map[string]interface{}) {
	if o.logger != nil {
		o.logger.Warn(ctx, msg, fields)
	}
	if o.events != nil {
		o.events.Warn(msg, fields)
	}
	o.warnings = append(o.warnings, domain.RunIssue{Message: msg, Timestamp: time.Now(), Context: fields})
}

// serviceErrorFor maps a run's terminal *errkind.Error onto the HTTP-status
// taxonomy the status surface's /healthz reports: a runner failure maps to
// RunnerError, a transient store failure to DatabaseError, everything else
// to Internal.
func serviceErrorFor(err error) *svcerrors.ServiceError {
	var kindErr *errkind.Error
	if stderrors.As(err, &kindErr) {
		switch kindErr.Kind {
		case errkind.Runner:
			return svcerrors.RunnerError(string(kindErr.Stage), err)
		case errkind.TransientStore:
			return svcerrors.DatabaseError(string(kindErr.Stage), err)
		}
	}
	return svcerrors.Internal(err.Error(), err)
}
