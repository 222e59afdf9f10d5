package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/planwise-labs/navigator-core/infrastructure/cache"
	"github.com/planwise-labs/navigator-core/infrastructure/logging"
	"github.com/planwise-labs/navigator-core/infrastructure/metrics"
	"github.com/planwise-labs/navigator-core/infrastructure/state"
	"github.com/planwise-labs/navigator-core/internal/checkpoint"
	"github.com/planwise-labs/navigator-core/internal/domain"
	"github.com/planwise-labs/navigator-core/internal/eventgen"
	"github.com/planwise-labs/navigator-core/internal/framework/lifecycle"
	"github.com/planwise-labs/navigator-core/internal/memory"
	"github.com/planwise-labs/navigator-core/internal/observability/eventlog"
	"github.com/planwise-labs/navigator-core/internal/observability/httpstatus"
	"github.com/planwise-labs/navigator-core/internal/observability/perf"
	"github.com/planwise-labs/navigator-core/internal/orchestrator"
	"github.com/planwise-labs/navigator-core/internal/platform/migrations"
	"github.com/planwise-labs/navigator-core/internal/registry"
	"github.com/planwise-labs/navigator-core/internal/runner"
	"github.com/planwise-labs/navigator-core/internal/scheduler"
	"github.com/planwise-labs/navigator-core/internal/store"
	"github.com/planwise-labs/navigator-core/internal/validation"
	"github.com/planwise-labs/navigator-core/pkg/config"
)

func main() {
	startYear := flag.Int("start", 0, "first simulation year to run (defaults to config)")
	endYear := flag.Int("end", 0, "last simulation year to run (defaults to config)")
	resumeFromCheckpoint := flag.Bool("resume-from-checkpoint", false, "resume from the latest valid checkpoint instead of restarting")
	forceRestart := flag.Bool("force-restart", false, "ignore any existing checkpoint and restart from the configured start year")
	failOnValidationError := flag.Bool("fail-on-validation-error", false, "abort a year when a validation rule fails with error or critical severity, rather than only recording the finding")
	verbose := flag.Bool("verbose", false, "enable debug-level logging")
	configPath := flag.String("config", "", "path to a YAML configuration file (overrides NAVIGATOR_* environment variables)")
	baselineCSV := flag.String("baseline-csv", "", "CSV fallback path for the baseline workforce loader")
	runMigrations := flag.Bool("migrate", true, "apply embedded schema migrations on startup")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	level := cfg.Logging.Level
	if *verbose {
		level = "debug"
	}
	logger := logging.New("navigator", level, cfg.Logging.Format)

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	configurePool(db, cfg)

	if *runMigrations {
		if err := migrations.Apply(context.Background(), db); err != nil {
			log.Fatalf("apply migrations: %v", err)
		}
	}

	analytical := store.New(db)

	checkpointBackend := state.NewMemoryBackend(5 * time.Minute)
	checkpoints, err := checkpoint.New(checkpointBackend, filepath.Join("artifacts", "checkpoints"), logger)
	if err != nil {
		log.Fatalf("initialise checkpoint manager: %v", err)
	}

	runnerImpl := runner.New(runner.Config{
		Command: cfg.Orchestrator.RunnerCommand,
		Logger:  logger,
	})

	excludedModels := scheduler.ModelsOwnedAfter(scheduler.DefaultStageDefinitions(), domain.StageEventGeneration)
	sqlGen := eventgen.NewSQLGenerator(runnerImpl, excludedModels)
	vectorEngine := eventgen.NewVectorEngine(analytical, eventgen.DefaultParameters())
	mode := eventgen.ModeSQL
	if cfg.EventGeneration.Mode == string(eventgen.ModeVector) {
		mode = eventgen.ModeVector
	}
	dispatcher := eventgen.NewDispatcher(mode, cfg.EventGeneration.PolarsSettings.FallbackOnError, vectorEngine, sqlGen)

	baseline := eventgen.NewBaselineLoader(cfg.EventGeneration.PolarsSettings.OutputPath, *baselineCSV, analytical)
	hazardCache := newHazardCache(cfg)

	hooks := lifecycle.NewHooks()
	registries := registry.New(analytical)
	validationEngine := validation.New(*failOnValidationError)

	runID := uuid.NewString()
	eventStream, err := eventlog.Open(filepath.Join("logs", "navigator.log"), runID)
	if err != nil {
		log.Fatalf("open event log: %v", err)
	}
	defer eventStream.Close()
	perfMon := perf.New(nil, 1000)
	metricsReg := metrics.New("navigator")
	runState := httpstatus.NewRunState()

	var statusServer *httpstatus.Server
	if addr := strings.TrimSpace(cfg.Observability.HTTPAddr); addr != "" {
		statusServer = httpstatus.New(addr, runState)
		statusServer.Start()
		log.Printf("status server listening on %s", addr)
	}

	o := orchestrator.New(orchestrator.Deps{
		Config:       cfg,
		Store:        analytical,
		MemoryCtl:    memory.New(memoryConfigFrom(cfg, logger)),
		Hooks:        hooks,
		Checkpoints:  checkpoints,
		Registries:   registries,
		Validation:   validationEngine,
		Dispatcher:   dispatcher,
		Baseline:     baseline,
		HazardCache:  hazardCache,
		Runner:       runnerImpl,
		Logger:       logger,
		Events:       eventStream,
		Perf:         perfMon,
		Metrics:      metricsReg,
		Status:       statusServer,
		RunState:     runState,
		ReportsDir:   "reports",
		ArtifactsDir: "artifacts",
	})

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	summary, err := o.Execute(ctx, orchestrator.Options{
		StartYear:            *startYear,
		EndYear:              *endYear,
		ResumeFromCheckpoint: *resumeFromCheckpoint,
		ForceRestart:         *forceRestart,
		RunID:                runID,
	})

	if statusServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = statusServer.Stop(shutdownCtx)
		shutdownCancel()
	}

	if err != nil {
		log.Fatalf("run %s failed at year %d: %v", summary.RunID, summary.EndYear, err)
	}
	fmt.Printf("run %s completed: years %d-%d, status %s\n", summary.RunID, summary.StartYear, summary.EndYear, summary.Status)
}

func loadConfig(path string) (*config.Config, error) {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return config.LoadFile(trimmed)
	}
	return config.Load()
}

func configurePool(db *sql.DB, cfg *config.Config) {
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)
	}
}

// newHazardCache builds the hazard cache over whichever backend
// event_generation.hazard_cache.backend selects: the default in-process
// LRU, or a shared Redis instance when multiple orchestrator processes
// need to agree on one set of hazard rates.
func newHazardCache(cfg *config.Config) *eventgen.HazardCache {
	hc := cfg.EventGeneration.HazardCache
	if hc.Backend != "redis" {
		return eventgen.NewHazardCache(cache.NewCache(cache.DefaultConfig()))
	}
	client := redis.NewClient(&redis.Options{Addr: hc.RedisAddr})
	return eventgen.NewHazardCacheWithStore(cache.NewRedisScopedCache(client, "hazard:", 5*time.Minute))
}

func memoryConfigFrom(cfg *config.Config, logger *logging.Logger) memory.Config {
	am := cfg.Optimization.AdaptiveMemory
	return memory.Config{
		Thresholds: memory.Thresholds{
			ModerateMB:        am.Thresholds.ModerateMB,
			HighMB:            am.Thresholds.HighMB,
			CriticalMB:        am.Thresholds.CriticalMB,
			GCTriggerMB:       am.Thresholds.GCTriggerMB,
			FallbackTriggerMB: am.Thresholds.FallbackTriggerMB,
		},
		BatchSizes: memory.BatchSizes{
			Low:      am.BatchSizes.Low,
			Medium:   am.BatchSizes.Medium,
			High:     am.BatchSizes.High,
			Fallback: am.BatchSizes.Fallback,
		},
		HistorySize:                 am.HistorySize,
		LeakWindow:                  time.Duration(am.LeakWindowMinutes) * time.Minute,
		LeakThresholdMB:             float64(am.LeakThresholdMB),
		RecommendationWindow:        time.Duration(am.RecommendationWindowMinutes) * time.Minute,
		MinSamplesForRecommendation: am.MinSamplesForRecommendation,
		Logger:                      logger,
	}
}
