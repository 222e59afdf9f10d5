// Package perf is the performance monitor's scoped-resource timer (§4.12,
// §9 "scoped tracking"): a resource whose release finalizes the metric on
// every exit path, including a panic. It backs onto zap because it fires on
// every model invocation and stage transition — a path where allocation-free
// logging is the right tradeoff, distinct from the operational and
// structured-event loggers elsewhere in the stack.
package perf

import (
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// Status is a scoped operation's final state.
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Record is one completed scoped operation's measurements.
type Record struct {
	Name      string
	Status    Status
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration
	RSSDeltaMB  float64
	PeakRSSMB float64
}

// Monitor tracks a bounded history of completed scoped operations and
// reports the average duration of successful ones by name.
type Monitor struct {
	mu      sync.Mutex
	logger  *zap.SugaredLogger
	history []Record
	maxSize int
}

// New builds a Monitor. A nil logger disables logging but still records
// history.
func New(logger *zap.SugaredLogger, maxSize int) *Monitor {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Monitor{logger: logger, maxSize: maxSize}
}

// Scope is one in-flight timed operation. Calling Stop exactly once
// finalizes it; calling it again is a no-op.
type Scope struct {
	monitor   *Monitor
	name      string
	startedAt time.Time
	startRSS  float64
	done      bool
}

// Start begins timing a named operation, sampling RSS at entry.
func (m *Monitor) Start(name string) *Scope {
	return &Scope{monitor: m, name: name, startedAt: time.Now(), startRSS: currentRSSMB()}
}

// Stop finalizes the scope with the given status and records it. Deferring
// Stop with a status resolved by a named return value ensures the metric
// finalizes on every exit path, including a panic recovered higher up the
// stack.
func (s *Scope) Stop(status Status) Record {
	if s.done {
		return Record{}
	}
	s.done = true

	endRSS := currentRSSMB()
	r := Record{
		Name:       s.name,
		Status:     status,
		StartedAt:  s.startedAt,
		EndedAt:    time.Now(),
		Duration:   time.Since(s.startedAt),
		RSSDeltaMB: endRSS - s.startRSS,
		PeakRSSMB:  endRSS,
	}

	s.monitor.record(r)
	return r
}

func (m *Monitor) record(r Record) {
	m.mu.Lock()
	m.history = append(m.history, r)
	if len(m.history) > m.maxSize {
		m.history = m.history[len(m.history)-m.maxSize:]
	}
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Infow("scoped operation completed",
			"name", r.Name,
			"status", string(r.Status),
			"duration_ms", r.Duration.Milliseconds(),
			"rss_delta_mb", r.RSSDeltaMB,
		)
	}
}

// History returns a copy of the recorded operations.
func (m *Monitor) History() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.history))
	copy(out, m.history)
	return out
}

// AverageDuration returns the mean duration of successful records whose
// Name matches, or 0 if none exist.
func (m *Monitor) AverageDuration(name string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total time.Duration
	var count int
	for _, r := range m.history {
		if r.Name == name && r.Status == StatusSuccess {
			total += r.Duration
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / time.Duration(count)
}

// currentRSSMB samples the current process's RSS via gopsutil, the same
// source internal/memory's sampler uses, so the two subsystems' readings
// stay comparable.
func currentRSSMB() float64 {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return 0
	}
	const mb = 1024 * 1024
	return float64(info.RSS) / mb
}
