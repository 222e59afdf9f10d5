// Package checkpoint persists and recovers per-year run checkpoints: a
// compressed blob plus a JSON legacy sidecar, a content-addressed integrity
// hash, and the resume/recovery-plan logic that answers "where should this
// run pick back up?" (§4.8).
package checkpoint

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/planwise-labs/navigator-core/infrastructure/logging"
	"github.com/planwise-labs/navigator-core/infrastructure/state"
	"github.com/planwise-labs/navigator-core/internal/domain"
)

// ErrNoCheckpoints is returned by LatestValid when nothing has ever been
// written (or nothing survived integrity verification).
var ErrNoCheckpoints = errors.New("checkpoint: no valid checkpoint found")

// ErrCorrupt reports an integrity-hash mismatch on load.
type ErrCorrupt struct {
	Year int
}

func (e *ErrCorrupt) Error() string {
	return fmt.Sprintf("checkpoint: year %d failed integrity verification", e.Year)
}

const latestPointerKey = "latest"

// Manager reads and writes checkpoints through a state.PersistentState (so
// the same in-memory backend used for dry runs and the durable backend
// used in production share one Save/Load/Delete/List contract), and
// additionally maintains a human-readable JSON sidecar on disk per §4.8's
// "compressed checkpoint plus a JSON legacy sidecar" requirement.
type Manager struct {
	state      *state.PersistentState
	sidecarDir string
	logger     *logging.Logger
}

// New builds a Manager. sidecarDir is created if missing; pass "" to skip
// sidecar writing entirely (tests that only care about the compressed
// path).
func New(backend state.PersistenceBackend, sidecarDir string, logger *logging.Logger) (*Manager, error) {
	st, err := state.NewPersistentState(state.Config{
		Backend:   backend,
		KeyPrefix: "checkpoint:",
		MaxSize:   64 * 1024 * 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: build persistent state: %w", err)
	}
	if sidecarDir != "" {
		if err := os.MkdirAll(sidecarDir, 0o755); err != nil {
			return nil, fmt.Errorf("checkpoint: create sidecar dir: %w", err)
		}
	}
	return &Manager{state: st, sidecarDir: sidecarDir, logger: logger}, nil
}

func yearKey(year int) string {
	return fmt.Sprintf("y%04d", year)
}

func (m *Manager) sidecarPath(year int) string {
	if m.sidecarDir == "" {
		return ""
	}
	return filepath.Join(m.sidecarDir, fmt.Sprintf("checkpoint_%04d.json", year))
}

// integrityPayload is the subset of a Checkpoint the integrity hash covers.
// Timestamp and RunID are deliberately excluded: they record when/which
// run wrote the checkpoint, not what state it captured.
type integrityPayload struct {
	Year           int
	ConfigHash     string
	DatabaseState  domain.DatabaseState
	ValidationData domain.ValidationData
}

func integrityHash(cp domain.Checkpoint) (string, error) {
	return domain.ConfigHash(integrityPayload{
		Year:           cp.Year,
		ConfigHash:     cp.ConfigHash,
		DatabaseState:  cp.DatabaseState,
		ValidationData: cp.ValidationData,
	})
}

// Write computes the integrity hash, persists the gzip-compressed JSON
// encoding under the backend, writes the JSON legacy sidecar if a
// sidecar directory was configured, and advances the latest_checkpoint
// pointer to this year.
func (m *Manager) Write(ctx context.Context, cp domain.Checkpoint) (domain.Checkpoint, error) {
	hash, err := integrityHash(cp)
	if err != nil {
		return cp, fmt.Errorf("checkpoint: compute integrity hash: %w", err)
	}
	cp.IntegrityHash = hash

	raw, err := json.Marshal(cp)
	if err != nil {
		return cp, fmt.Errorf("checkpoint: marshal year %d: %w", cp.Year, err)
	}

	compressed, err := gzipBytes(raw)
	if err != nil {
		return cp, fmt.Errorf("checkpoint: compress year %d: %w", cp.Year, err)
	}
	if err := m.state.Save(ctx, yearKey(cp.Year), compressed); err != nil {
		return cp, fmt.Errorf("checkpoint: persist year %d: %w", cp.Year, err)
	}

	if path := m.sidecarPath(cp.Year); path != "" {
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return cp, fmt.Errorf("checkpoint: write sidecar for year %d: %w", cp.Year, err)
		}
	}

	if err := m.state.Save(ctx, latestPointerKey, []byte(strconv.Itoa(cp.Year))); err != nil {
		return cp, fmt.Errorf("checkpoint: advance latest pointer to year %d: %w", cp.Year, err)
	}

	if m.logger != nil {
		m.logger.Info(ctx, "checkpoint written", map[string]interface{}{
			"year":           cp.Year,
			"integrity_hash": cp.IntegrityHash,
		})
	}
	return cp, nil
}

// Load reads and verifies one year's checkpoint. A hash mismatch or
// decode failure returns *ErrCorrupt rather than a generic error so
// callers (LatestValid) can tell corruption apart from "not found".
func (m *Manager) Load(ctx context.Context, year int) (*domain.Checkpoint, error) {
	compressed, err := m.state.Load(ctx, yearKey(year))
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, fmt.Errorf("checkpoint: year %d: %w", year, state.ErrNotFound)
		}
		return nil, fmt.Errorf("checkpoint: load year %d: %w", year, err)
	}

	raw, err := gunzipBytes(compressed)
	if err != nil {
		return nil, &ErrCorrupt{Year: year}
	}

	var cp domain.Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, &ErrCorrupt{Year: year}
	}

	expected, err := integrityHash(cp)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: recompute integrity hash for year %d: %w", year, err)
	}
	if expected != cp.IntegrityHash {
		return nil, &ErrCorrupt{Year: year}
	}
	return &cp, nil
}

// years returns every checkpointed year known to the backend, descending.
func (m *Manager) years(ctx context.Context) ([]int, error) {
	keys, err := m.state.List(ctx, "y")
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list years: %w", err)
	}
	prefix := "checkpoint:y"
	years := make([]int, 0, len(keys))
	for _, k := range keys {
		trimmed := strings.TrimPrefix(k, prefix)
		y, err := strconv.Atoi(trimmed)
		if err != nil {
			continue
		}
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

// LatestValid returns the newest checkpoint that passes integrity
// verification, skipping older ones as needed. Corrupt or mismatched
// checkpoints are skipped (with a warning when a logger is set) in favor of
// the next-earlier valid one,
// per §4.8's Load contract.
func (m *Manager) LatestValid(ctx context.Context) (*domain.Checkpoint, error) {
	latestRaw, err := m.state.Load(ctx, latestPointerKey)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, ErrNoCheckpoints
		}
		return nil, fmt.Errorf("checkpoint: read latest pointer: %w", err)
	}
	latestYear, err := strconv.Atoi(string(latestRaw))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: parse latest pointer %q: %w", string(latestRaw), err)
	}

	years, err := m.years(ctx)
	if err != nil {
		return nil, err
	}

	for _, y := range years {
		if y > latestYear {
			continue
		}
		cp, err := m.Load(ctx, y)
		if err == nil {
			return cp, nil
		}
		var corrupt *ErrCorrupt
		if errors.As(err, &corrupt) {
			if m.logger != nil {
				m.logger.Warn(ctx, "skipping corrupt checkpoint", map[string]interface{}{"year": y})
			}
			continue
		}
		if errors.Is(err, state.ErrNotFound) {
			continue
		}
		return nil, err
	}
	return nil, ErrNoCheckpoints
}

// KeepLatest removes every checkpoint older than the N most recent,
// deleting both the compressed backend entry and the JSON sidecar.
func (m *Manager) KeepLatest(ctx context.Context, n int) error {
	if n < 0 {
		n = 0
	}
	years, err := m.years(ctx)
	if err != nil {
		return err
	}
	if len(years) <= n {
		return nil
	}
	for _, y := range years[n:] {
		if err := m.state.Delete(ctx, yearKey(y)); err != nil {
			return fmt.Errorf("checkpoint: delete year %d: %w", y, err)
		}
		if path := m.sidecarPath(y); path != "" {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("checkpoint: delete sidecar for year %d: %w", y, err)
			}
		}
	}
	return nil
}

func gzipBytes(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzipBytes(compressed []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
