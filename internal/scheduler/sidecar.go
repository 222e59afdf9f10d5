package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/planwise-labs/navigator-core/internal/domain"
)

func sidecarPath(dir string, year int) string {
	return filepath.Join(dir, fmt.Sprintf("stage_checkpoint_%04d.json", year))
}

// writeStageSidecar persists the lightweight stage-level record (year,
// final stage, timestamp, state hash) §4.9 requires in addition to the
// integrity checkpoint written by internal/checkpoint.
func writeStageSidecar(dir string, cp domain.StageCheckpoint) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("scheduler: create sidecar dir: %w", err)
	}
	raw, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("scheduler: marshal stage checkpoint: %w", err)
	}
	return os.WriteFile(sidecarPath(dir, cp.Year), raw, 0o644)
}

// ReadStageSidecar reads back a previously written stage checkpoint, used
// on restart to report the last stage a year reached before a crash.
func ReadStageSidecar(dir string, year int) (domain.StageCheckpoint, error) {
	raw, err := os.ReadFile(sidecarPath(dir, year))
	if err != nil {
		return domain.StageCheckpoint{}, err
	}
	var cp domain.StageCheckpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return domain.StageCheckpoint{}, fmt.Errorf("scheduler: unmarshal stage checkpoint: %w", err)
	}
	return cp, nil
}
