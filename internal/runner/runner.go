// Package runner adapts the transformation runner: the external command
// that actually materializes models (foundation tables, event shards,
// snapshots) against the analytical store. The scheduler addresses models
// through selectors and never shells out itself — every invocation goes
// through Runner.Invoke, which throttles, circuit-breaks, and logs calls
// uniformly regardless of which stage or mode triggered them.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/planwise-labs/navigator-core/infrastructure/logging"
	"github.com/planwise-labs/navigator-core/infrastructure/resilience"
	"github.com/planwise-labs/navigator-core/internal/domain"
)

// Variables is the variable map passed to every invocation (§4.4).
type Variables struct {
	Year         int
	ScenarioID   string
	PlanDesignID string
	RandomSeed   int64
	ShardID      int
	TotalShards  int
	Extra        map[string]string
}

func (v Variables) asMap() map[string]string {
	m := make(map[string]string, len(v.Extra)+6)
	m["year"] = strconv.Itoa(v.Year)
	m["scenario_id"] = v.ScenarioID
	m["plan_design_id"] = v.PlanDesignID
	m["random_seed"] = strconv.FormatInt(v.RandomSeed, 10)
	m["shard_id"] = strconv.Itoa(v.ShardID)
	m["total_shards"] = strconv.Itoa(v.TotalShards)
	for k, val := range v.Extra {
		m[k] = val
	}
	return m
}

// Result is the contract every invocation returns.
type Result struct {
	Success       bool
	ReturnCode    int
	StdoutSummary string
}

// Config configures a Runner.
type Config struct {
	Command           string // the transformation runner executable
	RequestsPerSecond float64
	Burst             int
	Logger            *logging.Logger
}

// Runner invokes the transformation runner under a rate limiter and
// circuit breaker shared across all selectors.
type Runner struct {
	command string
	limiter *rate.Limiter
	cb      *resilience.CircuitBreaker
	logger  *logging.Logger
}

// New builds a Runner. A nil logger disables call logging.
func New(cfg Config) *Runner {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 4 // runner invocations are seconds-to-minutes long; a handful per second is already generous
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &Runner{
		command: cfg.Command,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		cb:      resilience.New(resilience.LenientServiceCBConfig(cfg.Logger)),
		logger:  cfg.Logger,
	}
}

// NameSelector addresses a single model by name.
func NameSelector(name string) string { return name }

// TagSelector addresses every model carrying the given stage's tag
// (tag:FOUNDATION, tag:EVENT_GENERATION, tag:STATE_ACCUMULATION).
func TagSelector(stage domain.Stage) string { return "tag:" + string(stage) }

// ShardedSelector addresses one shard of a sharded model, e.g.
// events_y2025_shard3.
func ShardedSelector(baseName string, year, shard int) string {
	return fmt.Sprintf("%s_y%d_shard%d", baseName, year, shard)
}

// Invoke runs the transformation runner against selector with vars,
// waiting on the rate limiter and tripping the circuit breaker on
// sustained failure. A non-zero exit code is reported in Result, not as an
// error — callers decide whether a given selector's failure is fatal.
func (r *Runner) Invoke(ctx context.Context, selector string, vars Variables, fullRefresh bool) (Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("runner: rate limiter wait: %w", err)
	}

	varsJSON, err := json.Marshal(vars.asMap())
	if err != nil {
		return Result{}, fmt.Errorf("runner: marshal variables: %w", err)
	}

	args := []string{"run", "--select", selector, "--vars", string(varsJSON)}
	if fullRefresh {
		args = append(args, "--full-refresh")
	}

	var stdout, stderr bytes.Buffer
	start := time.Now()
	cmd := exec.CommandContext(ctx, r.command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := r.cb.Execute(ctx, func() error { return cmd.Run() })
	duration := time.Since(start)

	if r.logger != nil {
		r.logger.LogServiceCall(ctx, "transformation_runner", selector, duration, runErr)
	}

	result := Result{
		ReturnCode:    exitCode(cmd, runErr),
		Success:       runErr == nil,
		StdoutSummary: summarize(stdout.Bytes(), stderr.Bytes()),
	}

	if runErr != nil && cmd.ProcessState == nil {
		// the command never started (binary missing, circuit open) — there is
		// no process exit code to report, but the invocation still failed.
		return result, fmt.Errorf("runner: invoke %s: %w", selector, runErr)
	}
	return result, nil
}

// ShouldFullRefresh implements the full-refresh policy of §4.4: a model is
// rebuilt from scratch when it belongs to the start year's foundation, the
// run's clear mode is "all", or the model is explicitly marked for full
// rebuild (schema migration, or a self-referencing incremental model).
func ShouldFullRefresh(year, startYear int, isFoundation, clearModeAll, explicitFullRefresh bool) bool {
	if explicitFullRefresh || clearModeAll {
		return true
	}
	return isFoundation && year == startYear
}

func exitCode(cmd *exec.Cmd, runErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if runErr != nil {
		return -1
	}
	return 0
}

// summarize extracts a one-line status summary from the runner's output.
// The runner emits a final JSON line (e.g. {"status":"success","rows_affected":1200});
// when present, that line's status/rows_affected are surfaced directly,
// falling back to the last non-empty line of combined output.
func summarize(stdout, stderr []byte) string {
	line := lastNonEmptyLine(stdout)
	if line == "" {
		line = lastNonEmptyLine(stderr)
	}
	if line == "" {
		return ""
	}
	status := gjson.Get(line, "status")
	if status.Exists() {
		rows := gjson.Get(line, "rows_affected")
		if rows.Exists() {
			return fmt.Sprintf("status=%s rows_affected=%s", status.String(), rows.Raw)
		}
		return "status=" + status.String()
	}
	return line
}

func lastNonEmptyLine(b []byte) string {
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return strings.TrimSpace(lines[i])
		}
	}
	return ""
}
