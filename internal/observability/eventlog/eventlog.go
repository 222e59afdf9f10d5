// Package eventlog is the navigator orchestrator's append-only structured
// event stream (§4.12, §6): one JSON object per line, written to
// logs/navigator.log, every line carrying run_id/timestamp/level/message
// plus arbitrary structured fields.
package eventlog

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Stream wraps a zerolog.Logger scoped to one run id. zerolog's chained,
// zero-allocation API is used here because every stage, year, and model
// invocation over a multi-hour run writes a line to this stream.
type Stream struct {
	logger zerolog.Logger
	runID  string
	closer io.Closer
}

// Open opens (creating parent directories as needed) the event log file at
// path in append mode and returns a Stream scoped to runID. Callers must
// call Close when the run finishes.
func Open(path, runID string) (*Stream, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	s := New(f, runID)
	s.closer = f
	return s, nil
}

// New builds a Stream writing to an arbitrary io.Writer, for tests and
// callers that don't want a real file.
func New(w io.Writer, runID string) *Stream {
	zerolog.TimestampFieldName = "timestamp"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "message"
	logger := zerolog.New(w).With().Timestamp().Str("run_id", runID).Logger()
	return &Stream{logger: logger, runID: runID}
}

// RunID returns the run id this stream's lines are tagged with.
func (s *Stream) RunID() string { return s.runID }

// Fields is a shorthand for the structured-field map passed to Emit.
type Fields map[string]interface{}

// Emit writes one structured line at the given level.
func (s *Stream) Emit(level zerolog.Level, message string, fields Fields) {
	event := s.logger.WithLevel(level)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

func (s *Stream) Info(message string, fields Fields)  { s.Emit(zerolog.InfoLevel, message, fields) }
func (s *Stream) Warn(message string, fields Fields)  { s.Emit(zerolog.WarnLevel, message, fields) }
func (s *Stream) Error(message string, fields Fields) { s.Emit(zerolog.ErrorLevel, message, fields) }

// StageTransition emits the standard stage/year/status line every scheduler
// stage execution produces.
func (s *Stream) StageTransition(stage string, year int, status string, durationMS int64) {
	s.Info("stage transition", Fields{
		"stage":       stage,
		"year":        year,
		"status":      status,
		"duration_ms": durationMS,
	})
}

// Close closes the underlying file, if Open opened one.
func (s *Stream) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
