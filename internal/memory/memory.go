// Package memory implements the single-threaded, cooperative memory
// controller of §4.7: it samples resident-set size, classifies pressure,
// and mutates the active optimization level (and therefore batch size)
// the event-generation engine reads before sizing its next batch.
package memory

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/planwise-labs/navigator-core/infrastructure/logging"
)

// Pressure is the classified memory state.
type Pressure string

const (
	PressureLow      Pressure = "LOW"
	PressureModerate Pressure = "MODERATE"
	PressureHigh     Pressure = "HIGH"
	PressureCritical Pressure = "CRITICAL"
)

// Level is the active optimization level, which determines batch size.
type Level string

const (
	LevelHigh     Level = "HIGH"
	LevelLow      Level = "LOW"
	LevelFallback Level = "FALLBACK"
)

// Thresholds are the RSS boundaries (MB) separating pressure levels.
// Moderate < High < Critical; GCTrigger sits between Moderate and High;
// FallbackTrigger sits just below Critical.
type Thresholds struct {
	ModerateMB        int
	HighMB            int
	CriticalMB        int
	GCTriggerMB       int
	FallbackTriggerMB int
}

// BatchSizes are the batch sizes the event-generation engine reads,
// selected by the controller's current Level.
type BatchSizes struct {
	Low      int
	Medium   int
	High     int
	Fallback int
}

// Sample is one memory observation.
type Sample struct {
	Timestamp   time.Time
	RSSMB       float64
	AvailableMB float64
	Pressure    Pressure
}

// LevelChange records a controller-driven optimization-level transition.
type LevelChange struct {
	Timestamp time.Time
	From      Level
	To        Level
	Sample    Sample
}

// Config configures a Controller.
type Config struct {
	Thresholds                  Thresholds
	BatchSizes                  BatchSizes
	HistorySize                 int
	LeakWindow                  time.Duration
	LeakThresholdMB             float64
	RecommendationWindow        time.Duration
	MinSamplesForRecommendation int
	Logger                      *logging.Logger
	Sampler                     Sampler
}

// Sampler produces one memory Sample. The default implementation reads the
// current process's RSS and system-available memory via gopsutil;
// Config.Sampler lets tests and non-Linux environments substitute their own.
type Sampler interface {
	Sample() (rssMB, availableMB float64, err error)
}

// Controller is the memory pressure sampler and optimization-level driver.
type Controller struct {
	mu         sync.Mutex
	cfg        Config
	sampler    Sampler
	history    []Sample
	level      Level
	gcHistory  []time.Time
	gcFreedMB  []float64
	recs       []Recommendation
	logger     *logging.Logger
}

// New builds a Controller at Level HIGH (no pressure observed yet).
func New(cfg Config) *Controller {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 500
	}
	if cfg.LeakWindow <= 0 {
		cfg.LeakWindow = 15 * time.Minute
	}
	if cfg.LeakThresholdMB <= 0 {
		cfg.LeakThresholdMB = 256
	}
	if cfg.RecommendationWindow <= 0 {
		cfg.RecommendationWindow = 30 * time.Minute
	}
	if cfg.MinSamplesForRecommendation <= 0 {
		cfg.MinSamplesForRecommendation = 5
	}
	sampler := cfg.Sampler
	if sampler == nil {
		sampler = gopsutilSampler{}
	}
	return &Controller{
		cfg:     cfg,
		sampler: sampler,
		level:   LevelHigh,
		logger:  cfg.Logger,
	}
}

// Classify maps an RSS/available-memory reading to a Pressure, per §4.7's
// exact boundary rules (a breach of either the RSS threshold or the
// available-memory floor is sufficient).
func Classify(rssMB, availableMB float64, t Thresholds) Pressure {
	switch {
	case rssMB >= float64(t.CriticalMB) || availableMB < 500:
		return PressureCritical
	case rssMB >= float64(t.HighMB) || availableMB < 1024:
		return PressureHigh
	case rssMB >= float64(t.ModerateMB) || availableMB < 2048:
		return PressureModerate
	default:
		return PressureLow
	}
}

// Sample takes one reading, records it, and reacts to any pressure-level
// transition (GC trigger, optimization-level change).
func (c *Controller) Sample() (Sample, error) {
	rssMB, availableMB, err := c.sampler.Sample()
	if err != nil {
		return Sample{}, fmt.Errorf("memory: sample: %w", err)
	}
	s := Sample{
		Timestamp:   now(),
		RSSMB:       rssMB,
		AvailableMB: availableMB,
		Pressure:    Classify(rssMB, availableMB, c.cfg.Thresholds),
	}

	c.mu.Lock()
	prevPressure := PressureLow
	if len(c.history) > 0 {
		prevPressure = c.history[len(c.history)-1].Pressure
	}
	c.history = append(c.history, s)
	if len(c.history) > c.cfg.HistorySize {
		c.history = c.history[len(c.history)-c.cfg.HistorySize:]
	}
	c.mu.Unlock()

	if s.RSSMB >= float64(c.cfg.Thresholds.GCTriggerMB) {
		c.forceGC(s)
	}
	if s.Pressure != prevPressure {
		c.reactToTransition(prevPressure, s)
	}
	return s, nil
}

// now is overridable in tests via a package-level var rather than
// time.Now() directly, since Sample.Timestamp must be deterministic for
// the leak-heuristic tests to be reproducible.
var now = time.Now

func (c *Controller) reactToTransition(prev Pressure, s Sample) {
	switch s.Pressure {
	case PressureHigh:
		c.setLevel(LevelLow, s)
	case PressureCritical:
		if s.RSSMB >= float64(c.cfg.Thresholds.FallbackTriggerMB) {
			c.setLevel(LevelFallback, s)
		} else {
			c.setLevel(LevelLow, s)
		}
	case PressureLow:
		c.setLevel(LevelHigh, s)
	}
}

func (c *Controller) setLevel(to Level, s Sample) {
	c.mu.Lock()
	from := c.level
	if from == to {
		c.mu.Unlock()
		return
	}
	c.level = to
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.WithFields(map[string]interface{}{
			"from_level": string(from),
			"to_level":   string(to),
			"rss_mb":     s.RSSMB,
			"pressure":   string(s.Pressure),
		}).Warn("memory optimization level changed")
	}
}

func (c *Controller) forceGC(s Sample) {
	before := s.RSSMB
	debug.FreeOSMemory()
	after, _, err := c.sampler.Sample()
	freed := 0.0
	if err == nil && before > after {
		freed = before - after
	}

	c.mu.Lock()
	c.gcHistory = append(c.gcHistory, now())
	c.gcFreedMB = append(c.gcFreedMB, freed)
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.WithFields(map[string]interface{}{
			"rss_mb_before": before,
			"rss_mb_freed":  freed,
		}).Info("forced full GC")
	}
}

// Level returns the current optimization level.
func (c *Controller) Level() Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// BatchSize returns the batch size for the current optimization level.
func (c *Controller) BatchSize() int {
	switch c.Level() {
	case LevelFallback:
		return c.cfg.BatchSizes.Fallback
	case LevelLow:
		return c.cfg.BatchSizes.Low
	default:
		return c.cfg.BatchSizes.High
	}
}

// History returns a copy of the recorded samples.
func (c *Controller) History() []Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sample, len(c.history))
	copy(out, c.history)
	return out
}
