package web

import (
	"errors"
	"net/http"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/maintetl/internal/core"
)

// handleHealth reports liveness and whether a run is in flight.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"run_running": s.limiter.Busy(),
	})
}

// handleLatestRun returns the most recent report as JSON.
func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	report := s.runner.Latest()
	if report == nil {
		s.respondError(w, r, core.ErrNoRunYet, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleTriggerRun runs the pipeline inline. Only one run may be in flight;
// a trigger that cannot get the slot is rejected with 429 and RUN001.
// The report is returned with 200 on success and 500 on failure.
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	if err := s.limiter.Acquire(r.Context()); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, core.ErrRunInProgress) {
			status = http.StatusTooManyRequests
			w.Header().Set("Retry-After", "30")
		}
		s.respondError(w, r, err, status)
		return
	}
	defer s.limiter.Release()

	report := s.runner.Run(r.Context())

	status := http.StatusOK
	if report.Failed() {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, report)
}

// handleRunPage renders the latest report as HTML.
func (s *Server) handleRunPage(w http.ResponseWriter, r *http.Request) {
	report := s.runner.Latest()
	if report == nil {
		templ.Handler(emptyRunPage(), templ.WithStatus(http.StatusNotFound)).ServeHTTP(w, r)
		return
	}
	templ.Handler(runReportPage(report)).ServeHTTP(w, r)
}
