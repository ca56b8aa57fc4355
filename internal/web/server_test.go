package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/maintetl/internal/config"
	"github.com/JonMunkholm/maintetl/internal/core"
	"github.com/JonMunkholm/maintetl/internal/export"
	"github.com/JonMunkholm/maintetl/internal/pipeline"
)

type fakeRunner struct {
	mu      sync.Mutex
	latest  *pipeline.RunReport
	status  pipeline.Status
	runs    int
	started chan struct{}
	release chan struct{}
}

func (f *fakeRunner) Run(context.Context) *pipeline.RunReport {
	if f.started != nil {
		close(f.started)
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	status := f.status
	if status == "" {
		status = pipeline.StatusSuccess
	}
	f.latest = &pipeline.RunReport{
		RunID:     "run-1",
		Status:    status,
		StartTime: time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 11, 10, 12, 0, 3, 0, time.UTC),
		RowCounts: map[string]int{pipeline.CountFact: 95},
		Validations: map[string]core.ValidationReport{
			"maintenance_events": {Table: "maintenance_events", TotalRows: 95, Passed: false, Issues: []string{"Found 2 rows with <bad> cost"}},
		},
		Artifacts: []export.Artifact{{Table: pipeline.FactTable, Path: "/out/fact.csv", Format: export.FormatCSV, Rows: 95, Fallback: true}},
		Errors:    []pipeline.ReportError{},
	}
	return f.latest
}

func (f *fakeRunner) Latest() *pipeline.RunReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}

func newTestServer(runner Runner) *Server {
	return NewServer(runner, pipeline.NewRunLimiter(0), prometheus.NewRegistry(), config.ServerConfig{Host: "127.0.0.1", Port: 0})
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(newTestServer(&fakeRunner{}), http.MethodGet, "/healthz")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestLatestRun_NotFoundBeforeFirstRun(t *testing.T) {
	rec := serve(newTestServer(&fakeRunner{}), http.MethodGet, "/api/runs/latest")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Code != "RUN004" {
		t.Errorf("code = %s, want RUN004", body.Code)
	}
}

func TestTriggerRun(t *testing.T) {
	tests := []struct {
		name       string
		status     pipeline.Status
		wantStatus int
	}{
		{"success", pipeline.StatusSuccess, http.StatusOK},
		{"failed", pipeline.StatusFailed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{status: tt.status}
			s := newTestServer(runner)

			rec := serve(s, http.MethodPost, "/api/runs")

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var report pipeline.RunReport
			if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
				t.Fatal(err)
			}
			if report.Status != tt.status || report.RunID != "run-1" {
				t.Errorf("report = %s %s", report.RunID, report.Status)
			}

			latest := serve(s, http.MethodGet, "/api/runs/latest")
			if latest.Code != http.StatusOK {
				t.Errorf("latest status = %d, want 200", latest.Code)
			}
		})
	}
}

func TestTriggerRun_BusyReturns429(t *testing.T) {
	runner := &fakeRunner{started: make(chan struct{}), release: make(chan struct{})}
	s := newTestServer(runner)

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- serve(s, http.MethodPost, "/api/runs") }()
	<-runner.started

	rec := serve(s, http.MethodPost, "/api/runs")

	close(runner.release)
	first := <-done

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Code != "RUN001" {
		t.Errorf("code = %s, want RUN001", body.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	if first.Code != http.StatusOK {
		t.Errorf("first run status = %d, want 200", first.Code)
	}
	if runner.runs != 1 {
		t.Errorf("runs = %d, want 1", runner.runs)
	}
}

func TestRunPage(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestServer(runner)

	if rec := serve(s, http.MethodGet, "/runs/latest"); rec.Code != http.StatusNotFound {
		t.Errorf("status before first run = %d, want 404", rec.Code)
	}

	runner.Run(context.Background())
	rec := serve(s, http.MethodGet, "/runs/latest")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"run-1", "Success", "fact_maintenance", "csv (fallback)", "&lt;bad&gt;"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, "<bad>") {
		t.Error("issue text was not escaped")
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %s", ct)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := pipeline.NewMetrics()
	m.Observe(&pipeline.RunReport{Status: pipeline.StatusSuccess, DurationSeconds: 1})
	s := NewServer(&fakeRunner{}, nil, m.Registry(), config.ServerConfig{})

	rec := serve(s, http.MethodGet, "/metrics")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `maintetl_runs_total{status="Success"} 1`) {
		t.Errorf("metrics body missing runs counter:\n%s", rec.Body.String())
	}
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		path   string
		accept string
		want   bool
	}{
		{"/api/runs", "", true},
		{"/runs/latest", "application/json", true},
		{"/runs/latest", "text/html", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.path, nil)
		r.Header.Set("Accept", tt.accept)
		if got := wantsJSON(r); got != tt.want {
			t.Errorf("wantsJSON(%s, %q) = %v, want %v", tt.path, tt.accept, got, tt.want)
		}
	}
}

func TestShutdownWithoutStart(t *testing.T) {
	if err := newTestServer(&fakeRunner{}).Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestTriggerRun_RequiresAPIKeyWhenConfigured(t *testing.T) {
	runner := &fakeRunner{}
	s := NewServer(runner, nil, nil, config.ServerConfig{APIKeys: []string{"secret"}})

	rec := serve(s, http.MethodPost, "/api/runs")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status with key = %d, want 200", rec.Code)
	}
	if runner.runs != 1 {
		t.Errorf("runs = %d, want 1", runner.runs)
	}

	if latest := serve(s, http.MethodGet, "/api/runs/latest"); latest.Code != http.StatusOK {
		t.Errorf("read routes should stay open, status = %d", latest.Code)
	}
}
