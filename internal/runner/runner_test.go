package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwise-labs/navigator-core/internal/domain"
)

func TestSelectors(t *testing.T) {
	assert.Equal(t, "events", NameSelector("events"))
	assert.Equal(t, "tag:FOUNDATION", TagSelector(domain.StageFoundation))
	assert.Equal(t, "tag:EVENT_GENERATION", TagSelector(domain.StageEventGeneration))
	assert.Equal(t, "events_y2025_shard3", ShardedSelector("events", 2025, 3))
}

func TestShouldFullRefresh(t *testing.T) {
	assert.True(t, ShouldFullRefresh(2025, 2025, true, false, false), "start year foundation model")
	assert.False(t, ShouldFullRefresh(2026, 2025, true, false, false), "foundation model in a later year")
	assert.True(t, ShouldFullRefresh(2026, 2025, false, true, false), "clear mode all")
	assert.True(t, ShouldFullRefresh(2026, 2025, false, false, true), "explicitly marked")
	assert.False(t, ShouldFullRefresh(2026, 2025, false, false, false), "ordinary incremental model")
}

func TestInvokeSucceedsWithZeroExitCommand(t *testing.T) {
	r := New(Config{Command: "true", RequestsPerSecond: 100, Burst: 10})
	result, err := r.Invoke(context.Background(), "events", Variables{Year: 2025}, false)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ReturnCode)
}

func TestInvokeReportsNonZeroExitCommand(t *testing.T) {
	r := New(Config{Command: "false", RequestsPerSecond: 100, Burst: 10})
	result, err := r.Invoke(context.Background(), "events", Variables{Year: 2025}, false)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.ReturnCode)
}

func TestSummarizeExtractsJSONStatusLine(t *testing.T) {
	out := summarize([]byte("building model\n{\"status\":\"success\",\"rows_affected\":1200}\n"), nil)
	assert.Equal(t, "status=success rows_affected=1200", out)
}

func TestSummarizeFallsBackToLastLine(t *testing.T) {
	out := summarize([]byte("line one\nline two\n"), nil)
	assert.Equal(t, "line two", out)
}

func TestVariablesAsMapIncludesExtra(t *testing.T) {
	vars := Variables{
		Year:         2025,
		ScenarioID:   "SCN-1",
		PlanDesignID: "PD-1",
		RandomSeed:   42,
		ShardID:      2,
		TotalShards:  4,
		Extra:        map[string]string{"mode": "vector"},
	}
	m := vars.asMap()
	assert.Equal(t, "2025", m["year"])
	assert.Equal(t, "vector", m["mode"])
	assert.Equal(t, "2", m["shard_id"])
}
