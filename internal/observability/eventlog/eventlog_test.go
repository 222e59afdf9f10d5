package eventlog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitWritesOneJSONObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	stream := New(&buf, "run-123")

	stream.Info("stage transition", Fields{"stage": "FOUNDATION", "year": 2025})
	stream.Warn("memory pressure elevated", Fields{"rss_mb": 2048})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "run-123", first["run_id"])
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "stage transition", first["message"])
	assert.Equal(t, "FOUNDATION", first["stage"])
	assert.Contains(t, first, "timestamp")
}

func TestStageTransitionIncludesDurationAndStatus(t *testing.T) {
	var buf bytes.Buffer
	stream := New(&buf, "run-456")
	stream.StageTransition("EVENT_GENERATION", 2026, "success", 1500)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "EVENT_GENERATION", line["stage"])
	assert.Equal(t, "success", line["status"])
	assert.EqualValues(t, 1500, line["duration_ms"])
}

func TestRunIDReturnsScopedValue(t *testing.T) {
	var buf bytes.Buffer
	stream := New(&buf, "run-789")
	assert.Equal(t, "run-789", stream.RunID())
}

func TestOpenCreatesParentDirectoryAndCloses(t *testing.T) {
	dir := t.TempDir()
	stream, err := Open(dir+"/logs/navigator.log", "run-open")
	require.NoError(t, err)
	stream.Info("started", nil)
	require.NoError(t, stream.Close())
}
