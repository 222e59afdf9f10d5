// Package httpstatus exposes the navigator orchestrator's optional
// status/metrics HTTP surface (SPEC_FULL C.5): GET /healthz for process
// liveness plus the current run id, and GET /metrics for Prometheus
// exposition. Started only when observability.http_addr is configured.
package httpstatus

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	svcerrors "github.com/planwise-labs/navigator-core/infrastructure/errors"
)

// RunState is read by /healthz on every request; the orchestrator updates
// it as the active run id changes and records the last run's failure, if
// any, as a structured *errors.ServiceError.
type RunState struct {
	mu      sync.RWMutex
	runID   string
	started time.Time
	lastErr *svcerrors.ServiceError
}

func NewRunState() *RunState {
	return &RunState{started: time.Now()}
}

func (s *RunState) SetRunID(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = runID
	s.lastErr = nil
}

func (s *RunState) RunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runID
}

// SetError records the run's terminal failure so /healthz can report it.
// A nil err clears any previously recorded failure.
func (s *RunState) SetError(err *svcerrors.ServiceError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

func (s *RunState) LastError() *svcerrors.ServiceError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Server is the status/metrics HTTP surface, a tiny chi mux per
// SPEC_FULL C.5.
type Server struct {
	addr  string
	state *RunState
	http  *http.Server
}

func New(addr string, state *RunState) *Server {
	mux := chi.NewRouter()
	s := &Server{addr: addr, state: state}

	mux.Get("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	s.http = &http.Server{Addr: addr, Handler: mux}
	return s
}

// handleHealthz reports "ok" with a 200, or "degraded" with the failed
// run's ServiceError code/message and its mapped HTTP status when the last
// run ended in error.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body := map[string]interface{}{
		"status": "ok",
		"run_id": s.state.RunID(),
	}
	httpStatus := http.StatusOK
	if svcErr := s.state.LastError(); svcErr != nil {
		body["status"] = "degraded"
		body["error_code"] = svcErr.Code
		body["error"] = svcErr.Message
		httpStatus = svcerrors.GetHTTPStatus(svcErr)
	}
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(body)
}

// Start begins serving in a background goroutine. Errors from ListenAndServe
// after a graceful Stop are swallowed (http.ErrServerClosed).
func (s *Server) Start() {
	go func() {
		_ = s.http.ListenAndServe()
	}()
}

// Stop gracefully shuts the server down, honoring ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
