// Package config loads the navigator orchestrator's YAML configuration and
// applies environment-variable overrides and validation, mirroring the
// file-then-env precedence used across the codebase.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SimulationConfig carries the immutable per-run parameters.
type SimulationConfig struct {
	StartYear        int     `yaml:"start_year" env:"NAVIGATOR_SIMULATION_START_YEAR"`
	EndYear          int     `yaml:"end_year" env:"NAVIGATOR_SIMULATION_END_YEAR"`
	TargetGrowthRate float64 `yaml:"target_growth_rate" env:"NAVIGATOR_SIMULATION_TARGET_GROWTH_RATE"`
	RandomSeed       int64   `yaml:"random_seed" env:"NAVIGATOR_SIMULATION_RANDOM_SEED"`
	ScenarioID       string  `yaml:"scenario_id" env:"NAVIGATOR_SIMULATION_SCENARIO_ID"`
	PlanDesignID     string  `yaml:"plan_design_id" env:"NAVIGATOR_SIMULATION_PLAN_DESIGN_ID"`
}

// CompensationConfig holds salary-lever parameters.
type CompensationConfig struct {
	ColaRate    float64 `yaml:"cola_rate" env:"NAVIGATOR_COMPENSATION_COLA_RATE"`
	MeritBudget float64 `yaml:"merit_budget" env:"NAVIGATOR_COMPENSATION_MERIT_BUDGET"`
}

// WorkforceConfig holds termination-rate parameters.
type WorkforceConfig struct {
	TotalTerminationRate      float64 `yaml:"total_termination_rate" env:"NAVIGATOR_WORKFORCE_TOTAL_TERMINATION_RATE"`
	NewHireTerminationRate    float64 `yaml:"new_hire_termination_rate" env:"NAVIGATOR_WORKFORCE_NEW_HIRE_TERMINATION_RATE"`
}

// EnrollmentConfig holds plan-enrollment parameters.
type EnrollmentConfig struct {
	EnrollmentRate        float64 `yaml:"enrollment_rate" env:"NAVIGATOR_ENROLLMENT_RATE"`
	AutoEnrollmentEnabled  bool    `yaml:"auto_enrollment_enabled" env:"NAVIGATOR_ENROLLMENT_AUTO_ENABLED"`
}

// ParallelizationConfig controls whether/how models within a stage run concurrently.
type ParallelizationConfig struct {
	Enabled                        bool `yaml:"enabled"`
	MaxWorkers                     int  `yaml:"max_workers"`
	DeterministicExecution         bool `yaml:"deterministic_execution"`
	MemoryLimitMB                  int  `yaml:"memory_limit_mb"`
	EnableConditionalParallelization bool `yaml:"enable_conditional_parallelization"`
}

// ResourceManagementConfig controls adaptive thread-pool sizing.
type ResourceManagementConfig struct {
	Enabled               bool `yaml:"enabled"`
	AdaptiveScalingEnabled bool `yaml:"adaptive_scaling_enabled"`
	MinThreads            int  `yaml:"min_threads"`
	MaxThreads            int  `yaml:"max_threads"`
	MemoryMonitoring      bool `yaml:"memory_monitoring"`
	CPUMonitoring         bool `yaml:"cpu_monitoring"`
}

// ThreadingConfig holds orchestrator.threading.
type ThreadingConfig struct {
	RunnerThreads      int                      `yaml:"runner_threads" env:"NAVIGATOR_THREADING_RUNNER_THREADS"`
	EventShards        int                      `yaml:"event_shards" env:"NAVIGATOR_THREADING_EVENT_SHARDS"`
	MaxParallelYears   int                      `yaml:"max_parallel_years" env:"NAVIGATOR_THREADING_MAX_PARALLEL_YEARS"`
	Parallelization    ParallelizationConfig    `yaml:"parallelization"`
	ResourceManagement ResourceManagementConfig `yaml:"resource_management"`
}

// OrchestratorConfig wraps orchestrator-scoped settings.
type OrchestratorConfig struct {
	Threading     ThreadingConfig `yaml:"threading"`
	RunnerCommand string          `yaml:"runner_command" env:"NAVIGATOR_ORCHESTRATOR_RUNNER_COMMAND"`
}

// MemoryThresholds holds the adaptive memory controller's pressure boundaries, in MB.
type MemoryThresholds struct {
	ModerateMB       int `yaml:"moderate_mb"`
	HighMB           int `yaml:"high_mb"`
	CriticalMB       int `yaml:"critical_mb"`
	GCTriggerMB      int `yaml:"gc_trigger_mb"`
	FallbackTriggerMB int `yaml:"fallback_trigger_mb"`
}

// BatchSizes holds the batch size used at each optimization level.
type BatchSizes struct {
	Low      int `yaml:"low"`
	Medium   int `yaml:"medium"`
	High     int `yaml:"high"`
	Fallback int `yaml:"fallback"`
}

// AdaptiveMemoryConfig configures the memory controller (§4.7).
type AdaptiveMemoryConfig struct {
	Enabled                     bool             `yaml:"enabled"`
	MonitoringIntervalSeconds   int              `yaml:"monitoring_interval_seconds"`
	HistorySize                 int              `yaml:"history_size"`
	Thresholds                  MemoryThresholds `yaml:"thresholds"`
	BatchSizes                  BatchSizes       `yaml:"batch_sizes"`
	AutoGCEnabled               bool             `yaml:"auto_gc_enabled"`
	FallbackEnabled              bool             `yaml:"fallback_enabled"`
	LeakDetectionEnabled         bool             `yaml:"leak_detection_enabled"`
	LeakThresholdMB              int              `yaml:"leak_threshold_mb"`
	LeakWindowMinutes             int              `yaml:"leak_window_minutes"`
	RecommendationWindowMinutes  int              `yaml:"recommendation_window_minutes"`
	MinSamplesForRecommendation int              `yaml:"min_samples_for_recommendation"`
}

// OptimizationConfig holds optimization.*.
type OptimizationConfig struct {
	Level          string               `yaml:"level" env:"NAVIGATOR_OPTIMIZATION_LEVEL"`
	BatchSize      int                  `yaml:"batch_size" env:"NAVIGATOR_OPTIMIZATION_BATCH_SIZE"`
	AdaptiveMemory AdaptiveMemoryConfig `yaml:"adaptive_memory"`
}

// SetupConfig holds setup.* (clear-mode policy for the FOUNDATION pre-hook).
type SetupConfig struct {
	ClearTables       bool     `yaml:"clear_tables" env:"NAVIGATOR_SETUP_CLEAR_TABLES"`
	ClearMode         string   `yaml:"clear_mode" env:"NAVIGATOR_SETUP_CLEAR_MODE"`
	ClearTablePatterns []string `yaml:"clear_table_patterns"`
}

// PolarsSettings configures the vector-mode bulk event factory.
type PolarsSettings struct {
	MaxThreads        int     `yaml:"max_threads"`
	BatchSize         int     `yaml:"batch_size"`
	OutputPath        string  `yaml:"output_path"`
	EnableCompression bool    `yaml:"enable_compression"`
	CompressionLevel  int     `yaml:"compression_level"`
	MaxMemoryGB       float64 `yaml:"max_memory_gb"`
	LazyEvaluation    bool    `yaml:"lazy_evaluation"`
	Streaming         bool    `yaml:"streaming"`
	ParallelIO        bool    `yaml:"parallel_io"`
	FallbackOnError   bool    `yaml:"fallback_on_error"`
	EnableProfiling   bool    `yaml:"enable_profiling"`
}

// HazardCacheConfig selects the hazard cache's storage backend: an
// in-process LRU by default, or a shared Redis instance when more than one
// orchestrator process runs against the same hazard rates.
type HazardCacheConfig struct {
	Backend   string `yaml:"backend" env:"NAVIGATOR_HAZARD_CACHE_BACKEND"`
	RedisAddr string `yaml:"redis_addr" env:"NAVIGATOR_HAZARD_CACHE_REDIS_ADDR"`
}

// EventGenerationConfig holds event_generation.* (§4.10).
type EventGenerationConfig struct {
	Mode           string            `yaml:"mode" env:"NAVIGATOR_EVENT_GENERATION_MODE"`
	PolarsSettings PolarsSettings    `yaml:"polars_settings"`
	HazardCache    HazardCacheConfig `yaml:"hazard_cache"`
}

// DatabaseConfig describes how to reach the analytical store.
type DatabaseConfig struct {
	DSN             string `yaml:"dsn" env:"NAVIGATOR_DATABASE_DSN"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"NAVIGATOR_DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"NAVIGATOR_DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" env:"NAVIGATOR_DATABASE_CONN_MAX_LIFETIME"`
}

// LoggingConfig controls the operational logger (infrastructure/logging).
type LoggingConfig struct {
	Level  string `yaml:"level" env:"NAVIGATOR_LOG_LEVEL"`
	Format string `yaml:"format" env:"NAVIGATOR_LOG_FORMAT"`
}

// ObservabilityConfig controls the structured event stream and the optional
// status/metrics HTTP surface.
type ObservabilityConfig struct {
	EventLogPath string `yaml:"event_log_path" env:"NAVIGATOR_OBSERVABILITY_EVENT_LOG_PATH"`
	HTTPAddr     string `yaml:"http_addr" env:"NAVIGATOR_OBSERVABILITY_HTTP_ADDR"`
}

// TracingConfig configures OTLP/tracing exporters.
type TracingConfig struct {
	Endpoint           string            `yaml:"endpoint" env:"NAVIGATOR_TRACING_OTLP_ENDPOINT"`
	Insecure           bool              `yaml:"insecure" env:"NAVIGATOR_TRACING_OTLP_INSECURE"`
	ServiceName        string            `yaml:"service_name" env:"NAVIGATOR_TRACING_SERVICE_NAME"`
	ResourceAttributes map[string]string `yaml:"resource_attributes"`
	AttributesEnv      string            `yaml:"-" env:"NAVIGATOR_TRACING_OTLP_ATTRIBUTES"`
}

// Config is the top-level navigator orchestrator configuration, mirroring
// the YAML sections of the configuration file.
type Config struct {
	Simulation     SimulationConfig      `yaml:"simulation"`
	Compensation   CompensationConfig    `yaml:"compensation"`
	Workforce      WorkforceConfig       `yaml:"workforce"`
	Enrollment     EnrollmentConfig      `yaml:"enrollment"`
	Orchestrator   OrchestratorConfig    `yaml:"orchestrator"`
	Optimization   OptimizationConfig    `yaml:"optimization"`
	Setup          SetupConfig           `yaml:"setup"`
	EventGeneration EventGenerationConfig `yaml:"event_generation"`
	Database       DatabaseConfig        `yaml:"database"`
	Logging        LoggingConfig         `yaml:"logging"`
	Observability  ObservabilityConfig   `yaml:"observability"`
	Tracing        TracingConfig         `yaml:"tracing"`
}

// New returns a configuration populated with the defaults used throughout
// the reference deployment.
func New() *Config {
	return &Config{
		Simulation: SimulationConfig{
			StartYear:    2025,
			EndYear:      2029,
			ScenarioID:   "default",
			PlanDesignID: "default",
		},
		Workforce: WorkforceConfig{
			TotalTerminationRate:   0.12,
			NewHireTerminationRate: 0.25,
		},
		Enrollment: EnrollmentConfig{
			EnrollmentRate: 0.75,
		},
		Orchestrator: OrchestratorConfig{
			Threading: ThreadingConfig{
				RunnerThreads:    4,
				EventShards:      1,
				MaxParallelYears: 1,
			},
			RunnerCommand: "navigator-transform",
		},
		Optimization: OptimizationConfig{
			Level:     "high",
			BatchSize: 1000,
			AdaptiveMemory: AdaptiveMemoryConfig{
				Enabled:                   true,
				MonitoringIntervalSeconds: 5,
				HistorySize:               720,
				Thresholds: MemoryThresholds{
					ModerateMB:        2000,
					HighMB:            3000,
					CriticalMB:        4000,
					GCTriggerMB:       2500,
					FallbackTriggerMB: 3800,
				},
				BatchSizes: BatchSizes{
					Low:      250,
					Medium:   1000,
					High:     2500,
					Fallback: 100,
				},
				AutoGCEnabled:               true,
				FallbackEnabled:             true,
				LeakDetectionEnabled:        true,
				LeakThresholdMB:             500,
				LeakWindowMinutes:           15,
				RecommendationWindowMinutes: 10,
				MinSamplesForRecommendation: 5,
			},
		},
		Setup: SetupConfig{
			ClearMode: "year",
		},
		EventGeneration: EventGenerationConfig{
			Mode: "sql",
			PolarsSettings: PolarsSettings{
				MaxThreads:      4,
				BatchSize:       10000,
				OutputPath:      "data/events",
				FallbackOnError: true,
			},
			HazardCache: HazardCacheConfig{
				Backend: "memory",
			},
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Observability: ObservabilityConfig{
			EventLogPath: "logs/navigator.log",
		},
	}
}

// Load loads configuration from file (if present) and environment variables,
// then validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("NAVIGATOR_CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("configs/navigator.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		// envdecode returns an error when no tagged fields are present in the
		// environment; treat that case as "no overrides" so local runs work
		// without exporting vars.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile reads configuration from a YAML file without applying environment
// overrides or validation; cmd/navigator uses it for the --config flag.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	return nil
}

func (t *TracingConfig) normalize() {
	if t == nil {
		return
	}
	t.MergeAttributes(t.AttributesEnv)
}

// MergeAttributes merges comma-separated key=value pairs into ResourceAttributes.
func (t *TracingConfig) MergeAttributes(raw string) {
	if t == nil {
		return
	}
	pairs := parseAttributePairs(raw)
	if len(pairs) == 0 {
		return
	}
	if t.ResourceAttributes == nil {
		t.ResourceAttributes = make(map[string]string, len(pairs))
	}
	for k, v := range pairs {
		if k == "" {
			continue
		}
		t.ResourceAttributes[k] = v
	}
}

func parseAttributePairs(raw string) map[string]string {
	result := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		key := strings.TrimSpace(kv[0])
		if key == "" {
			continue
		}
		val := ""
		if len(kv) > 1 {
			val = strings.TrimSpace(kv[1])
		}
		result[key] = val
	}
	return result
}

func (c *Config) normalize() {
	if c == nil {
		return
	}
	c.Tracing.normalize()
}

// Validate enforces the invariants of the simulation configuration. It is
// the Configuration error kind's sole entry point: a run never starts on an
// invalid config.
func (c *Config) Validate() error {
	if c.Simulation.StartYear > c.Simulation.EndYear {
		return fmt.Errorf("simulation.start_year (%d) must be <= simulation.end_year (%d)",
			c.Simulation.StartYear, c.Simulation.EndYear)
	}
	if c.Simulation.ScenarioID == "" {
		return fmt.Errorf("simulation.scenario_id must not be empty")
	}
	if c.Simulation.PlanDesignID == "" {
		return fmt.Errorf("simulation.plan_design_id must not be empty")
	}
	if err := validateRate("simulation.target_growth_rate", c.Simulation.TargetGrowthRate); err != nil {
		return err
	}
	if err := validateRate("compensation.cola_rate", c.Compensation.ColaRate); err != nil {
		return err
	}
	if err := validateRate("compensation.merit_budget", c.Compensation.MeritBudget); err != nil {
		return err
	}
	if err := validateRate("workforce.total_termination_rate", c.Workforce.TotalTerminationRate); err != nil {
		return err
	}
	if err := validateRate("workforce.new_hire_termination_rate", c.Workforce.NewHireTerminationRate); err != nil {
		return err
	}
	if err := validateRate("enrollment.enrollment_rate", c.Enrollment.EnrollmentRate); err != nil {
		return err
	}

	switch c.EventGeneration.Mode {
	case "sql", "vector":
	default:
		return fmt.Errorf("event_generation.mode must be 'sql' or 'vector', got %q", c.EventGeneration.Mode)
	}

	switch c.EventGeneration.HazardCache.Backend {
	case "", "memory":
	case "redis":
		if c.EventGeneration.HazardCache.RedisAddr == "" {
			return fmt.Errorf("event_generation.hazard_cache.redis_addr is required when backend is 'redis'")
		}
	default:
		return fmt.Errorf("event_generation.hazard_cache.backend must be 'memory' or 'redis', got %q", c.EventGeneration.HazardCache.Backend)
	}

	switch c.Setup.ClearMode {
	case "", "all", "year":
	default:
		return fmt.Errorf("setup.clear_mode must be 'all' or 'year', got %q", c.Setup.ClearMode)
	}

	if c.Orchestrator.Threading.EventShards < 1 {
		return fmt.Errorf("orchestrator.threading.event_shards must be >= 1, got %d", c.Orchestrator.Threading.EventShards)
	}

	thr := c.Optimization.AdaptiveMemory.Thresholds
	if thr.ModerateMB > 0 && thr.HighMB > 0 && thr.CriticalMB > 0 {
		if !(thr.ModerateMB < thr.HighMB && thr.HighMB < thr.CriticalMB) {
			return fmt.Errorf("optimization.adaptive_memory.thresholds must satisfy moderate_mb < high_mb < critical_mb, got %d/%d/%d",
				thr.ModerateMB, thr.HighMB, thr.CriticalMB)
		}
	}

	return nil
}

func validateRate(field string, rate float64) error {
	if rate < 0 || rate > 1 {
		return fmt.Errorf("%s must be within [0,1], got %v", field, rate)
	}
	return nil
}

// ConfigHash is implemented in internal/domain to keep the config package
// free of hashing concerns; Config is a plain data holder here.
