package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/JonMunkholm/maintetl/internal/config"
	"github.com/JonMunkholm/maintetl/internal/core"
	"github.com/JonMunkholm/maintetl/internal/export"
)

const (
	eventsCSV = "event_id,factory_id,line_id,maintenance_type,reason,start_time,end_time,downtime_min,technician_id,parts_used,cost_eur,outcome,next_due_date\n" +
		`E1,F1,L1,Corrective,Unplanned Breakdown,2025-11-03 10:00:00,2025-11-03 11:00:00,60,OP1,"belt,bearing",600.00,Resolved,2025-12-03` + "\n" +
		`E2,F1,L2,Preventive,Scheduled Service,2025-11-04 08:00:00,2025-11-04 08:15:00,0,OP9,,,Resolved,2026-01-04` + "\n"

	productionCSV = "timestamp,factory_id,line_id,shift,product_id,planned_qty,produced_qty,scrap_qty,defects_count,machine_state,availability,performance,quality,oee,operator_id\n" +
		"2025-11-03 06:00:00,F1,L1,Morning,P1,100,95,2,1,Running,0.95,0.9,0.98,0.84,OP1\n" +
		"2025-11-03 14:00:00,F1,L2,Evening,P2,100,90,3,2,Running,0.9,0.92,0.97,0.80,OP2\n"

	operatorsCSV = "operator_id,name,factory_id,primary_line,skill_level,reliability_score\n" +
		"OP1,Ana,F1,L1,Expert,92.5\n" +
		"OP2,Bo,F1,L2,Junior,71\n"
)

var testBounds = config.RowBounds{Min: 1, Max: 10}

func writeInputs(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		core.EventsInput.FileName:     eventsCSV,
		core.ProductionInput.FileName: productionCSV,
		core.OperatorsInput.FileName:  operatorsCSV,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func testConfig(t *testing.T) config.PipelineConfig {
	t.Helper()
	in := t.TempDir()
	writeInputs(t, in)
	return config.PipelineConfig{
		InputDir:       in,
		OutputDir:      t.TempDir(),
		SourceTimezone: "Europe/Paris",
		Workers:        2,
		ParquetEnabled: true,
		CSVCopy:        true,
		Events:         testBounds,
		Production:     testBounds,
		Operators:      testBounds,
	}
}

func fixedClock() time.Time {
	return time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
}

type recordingLoader struct {
	facts   int
	summary int
	err     error
	panics  bool
}

func (l *recordingLoader) Load(_ context.Context, facts []core.FactRow, summary []core.SummaryRow) error {
	if l.panics {
		panic("loader exploded")
	}
	l.facts = len(facts)
	l.summary = len(summary)
	return l.err
}

type recordingPusher struct {
	calls int
	err   error
}

func (p *recordingPusher) Push(context.Context, *prometheus.Registry) error {
	p.calls++
	return p.err
}

func newTestPipeline(t *testing.T, cfg config.PipelineConfig, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	p, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestRun_Success(t *testing.T) {
	cfg := testConfig(t)
	loader := &recordingLoader{}
	metrics := NewMetrics()
	p := newTestPipeline(t, cfg, WithLoader(loader), WithMetrics(metrics))

	if p.Latest() != nil {
		t.Fatal("Latest() before first run should be nil")
	}

	report := p.Run(context.Background())

	if report.Status != StatusSuccess {
		t.Fatalf("Status = %s, errors = %+v", report.Status, report.Errors)
	}
	if report.RunID == "" {
		t.Error("RunID is empty")
	}
	if len(report.Errors) != 0 {
		t.Errorf("Errors = %+v, want none", report.Errors)
	}

	wantCounts := map[string]int{
		CountEventsRaw:      2,
		CountProductionRaw:  2,
		CountOperatorsRaw:   2,
		CountEventsCleaned:  2,
		CountEventsEnriched: 2,
		CountFact:           2,
		CountSummary:        2,
	}
	for k, want := range wantCounts {
		if got := report.RowCounts[k]; got != want {
			t.Errorf("RowCounts[%s] = %d, want %d", k, got, want)
		}
	}

	for _, key := range []string{core.EventsInput.Table, core.ProductionInput.Table, core.OperatorsInput.Table} {
		if v, ok := report.Validations[key]; !ok || v.Table != key {
			t.Errorf("Validations[%s] = %+v, %v", key, v, ok)
		}
	}
	if _, ok := report.Validations[CountEventsRaw]; ok {
		t.Errorf("Validations keyed by row count name %s", CountEventsRaw)
	}

	if len(report.Artifacts) != 4 {
		t.Fatalf("Artifacts = %d, want 4", len(report.Artifacts))
	}
	for _, a := range report.Artifacts {
		if filepath.Dir(a.Path) != cfg.OutputDir {
			t.Errorf("artifact %s not published to output dir", a.Path)
		}
		if _, err := os.Stat(a.Path); err != nil {
			t.Errorf("artifact %s: %v", a.Path, err)
		}
	}

	if loader.facts != 2 || loader.summary != 2 {
		t.Errorf("loader got %d facts, %d summary rows", loader.facts, loader.summary)
	}
	if p.Latest() != report {
		t.Error("Latest() should return the finished report")
	}

	assertNoStaging(t, cfg.OutputDir)

	if got := testutil.ToFloat64(metrics.runs.WithLabelValues(string(StatusSuccess))); got != 1 {
		t.Errorf("runs_total{status=Success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.stageRows.WithLabelValues(CountFact)); got != 2 {
		t.Errorf("stage_rows{stage=fact_maintenance} = %v, want 2", got)
	}
}

func TestRun_WritesReportFile(t *testing.T) {
	cfg := testConfig(t)
	report := newTestPipeline(t, cfg).Run(context.Background())

	b, err := os.ReadFile(filepath.Join(cfg.OutputDir, ReportFileName))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if got["run_id"] != report.RunID {
		t.Errorf("run_id = %v, want %s", got["run_id"], report.RunID)
	}
	if got["pipeline_status"] != string(StatusSuccess) {
		t.Errorf("pipeline_status = %v", got["pipeline_status"])
	}
	for _, key := range []string{"start_time", "end_time", "duration_seconds", "validations", "row_counts", "artifacts", "errors"} {
		if _, ok := got[key]; !ok {
			t.Errorf("report missing %q", key)
		}
	}
}

func TestRun_FallbackReplacesStaleParquet(t *testing.T) {
	cfg := testConfig(t)
	if r := newTestPipeline(t, cfg).Run(context.Background()); r.Failed() {
		t.Fatalf("first run failed: %+v", r.Errors)
	}

	cfg.ParquetEnabled = false
	metrics := NewMetrics()
	report := newTestPipeline(t, cfg, WithMetrics(metrics)).Run(context.Background())
	if report.Failed() {
		t.Fatalf("fallback run failed: %+v", report.Errors)
	}

	if len(report.Artifacts) != 2 {
		t.Fatalf("Artifacts = %d, want 2", len(report.Artifacts))
	}
	for _, a := range report.Artifacts {
		if a.Format != export.FormatCSV || !a.Fallback {
			t.Errorf("artifact = %+v, want csv fallback", a)
		}
	}

	for _, table := range []string{FactTable, SummaryTable} {
		stale := filepath.Join(cfg.OutputDir, table+".parquet")
		if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s should be removed, stat error = %v", filepath.Base(stale), err)
		}
	}

	if got := testutil.ToFloat64(metrics.exportFallbacks.WithLabelValues(FactTable)); got != 1 {
		t.Errorf("export_fallbacks_total{table=fact} = %v, want 1", got)
	}
}

func TestRun_ExtractionFailure(t *testing.T) {
	cfg := testConfig(t)
	if err := os.Remove(filepath.Join(cfg.InputDir, core.OperatorsInput.FileName)); err != nil {
		t.Fatal(err)
	}

	report := newTestPipeline(t, cfg).Run(context.Background())

	if report.Status != StatusFailed {
		t.Fatalf("Status = %s, want Failed", report.Status)
	}
	if len(report.Errors) != 1 || report.Errors[0].Code != "EXT001" {
		t.Errorf("Errors = %+v, want one EXT001", report.Errors)
	}
	if !strings.Contains(report.Errors[0].Detail, core.OperatorsInput.FileName) {
		t.Errorf("Detail = %q, want file name", report.Errors[0].Detail)
	}
	if len(report.Artifacts) != 0 {
		t.Errorf("Artifacts = %+v, want none", report.Artifacts)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, ReportFileName)); err != nil {
		t.Errorf("report should be written on failure: %v", err)
	}
}

func TestRun_RowBoundsFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Production = config.RowBounds{Min: 2000, Max: 2100}

	report := newTestPipeline(t, cfg).Run(context.Background())

	if !report.Failed() || report.Errors[0].Code != "EXT002" {
		t.Errorf("report = %s %+v, want Failed with EXT002", report.Status, report.Errors)
	}
}

func TestRun_LoaderFailureKeepsPreviousOutput(t *testing.T) {
	cfg := testConfig(t)
	loader := &recordingLoader{err: &core.ExportError{Table: FactTable, Format: "postgres", Err: core.ErrWarehouseLoad}}

	report := newTestPipeline(t, cfg, WithLoader(loader)).Run(context.Background())

	if !report.Failed() {
		t.Fatal("run should fail when the warehouse load fails")
	}
	if got := report.Errors[0].Code; got != "EXP002" {
		t.Errorf("Code = %s, want EXP002", got)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, FactTable+".parquet")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("fact table should not be published, stat error = %v", err)
	}
	assertNoStaging(t, cfg.OutputDir)
}

func TestRun_PanicIsRecorded(t *testing.T) {
	cfg := testConfig(t)
	report := newTestPipeline(t, cfg, WithLoader(&recordingLoader{panics: true})).Run(context.Background())

	if !report.Failed() {
		t.Fatal("Status should be Failed after a panic")
	}
	if !strings.Contains(report.Errors[0].Detail, "loader exploded") {
		t.Errorf("Detail = %q", report.Errors[0].Detail)
	}
	assertNoStaging(t, cfg.OutputDir)
}

func TestRun_Cancelled(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := newTestPipeline(t, cfg).Run(ctx)

	if !report.Failed() {
		t.Fatal("cancelled run should fail")
	}
}

func TestRun_PushFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t)
	pusher := &recordingPusher{err: errors.New("connection refused")}

	report := newTestPipeline(t, cfg, WithMetrics(NewMetrics()), WithPusher(pusher)).Run(context.Background())

	if report.Failed() {
		t.Fatalf("push failure should not fail the run: %+v", report.Errors)
	}
	if pusher.calls != 1 {
		t.Errorf("Push calls = %d, want 1", pusher.calls)
	}
}

func TestRun_RerunProducesIdenticalCSV(t *testing.T) {
	cfg := testConfig(t)
	p := newTestPipeline(t, cfg)

	read := func() string {
		b, err := os.ReadFile(filepath.Join(cfg.OutputDir, FactTable+".csv"))
		if err != nil {
			t.Fatal(err)
		}
		return string(b)
	}

	p.Run(context.Background())
	first := read()
	p.Run(context.Background())

	if second := read(); first != second {
		t.Error("fact CSV changed between identical runs")
	}
}

func TestNew_UnknownTimezone(t *testing.T) {
	_, err := New(config.PipelineConfig{SourceTimezone: "Mars/Olympus"})
	if err == nil {
		t.Fatal("New() should reject an unknown timezone")
	}
}

func TestNewPusher(t *testing.T) {
	if p := NewPusher(config.MetricsConfig{}); p != nil {
		t.Errorf("NewPusher() without URL = %v, want nil", p)
	}
	if p := NewPusher(config.MetricsConfig{PushgatewayURL: "http://localhost:9091", Job: "maintetl"}); p == nil {
		t.Error("NewPusher() with URL = nil")
	}
}

func TestPushgatewayPusher_GroupsByInstance(t *testing.T) {
	tests := []struct {
		name     string
		instance string
		wantPath string
	}{
		{"job only", "", "/metrics/job/maintetl"},
		{"with instance", "plant-a", "/metrics/job/maintetl/instance/plant-a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath, gotMethod string
			gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath, gotMethod = r.URL.Path, r.Method
				w.WriteHeader(http.StatusOK)
			}))
			defer gateway.Close()

			p := NewPusher(config.MetricsConfig{PushgatewayURL: gateway.URL, Job: "maintetl", Instance: tt.instance})
			m := NewMetrics()
			m.Observe(&RunReport{Status: StatusSuccess, DurationSeconds: 1})

			if err := p.Push(context.Background(), m.Registry()); err != nil {
				t.Fatalf("Push() error = %v", err)
			}
			if gotMethod != http.MethodPut {
				t.Errorf("method = %s, want PUT", gotMethod)
			}
			if gotPath != tt.wantPath {
				t.Errorf("path = %s, want %s", gotPath, tt.wantPath)
			}
		})
	}
}

func assertNoStaging(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".staging-") {
			t.Errorf("staging directory left behind: %s", e.Name())
		}
	}
}
