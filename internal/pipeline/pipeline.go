// Package pipeline orchestrates one end-to-end ETL run.
//
// A run reads the three inputs, validates them, cleans and enriches the
// maintenance events, builds the fact and summary tables and exports them.
// Artifacts are staged under <output>/.staging-<run_id> and moved into the
// output directory only after every export (and the optional warehouse
// load) succeeded, so a failed run never leaves a half-written table set.
//
// Run never returns an error: fatal errors are mapped to support codes and
// recorded in the RunReport, which is also written as run_report.json.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/maintetl/internal/config"
	"github.com/JonMunkholm/maintetl/internal/core"
	"github.com/JonMunkholm/maintetl/internal/export"
	"github.com/JonMunkholm/maintetl/internal/logging"
)

// Output table names. The file names add the format extension.
const (
	FactTable    = "fact_maintenance_events"
	SummaryTable = "summary_maintenance_metrics"
)

// Loader receives the final tables after a successful export.
type Loader interface {
	Load(ctx context.Context, facts []core.FactRow, summary []core.SummaryRow) error
}

// Pipeline runs the ETL with a fixed configuration. It is safe for
// concurrent use, though callers normally serialize runs with a RunLimiter.
type Pipeline struct {
	cfg      config.PipelineConfig
	loc      *time.Location
	exporter *export.Exporter
	loader   Loader
	metrics  *Metrics
	pusher   Pusher
	now      func() time.Time

	mu     sync.RWMutex
	latest *RunReport
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLoader loads the tables into a warehouse after export.
func WithLoader(l Loader) Option {
	return func(p *Pipeline) { p.loader = l }
}

// WithMetrics records every run on m.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithPusher pushes the metrics registry after every run.
func WithPusher(ps Pusher) Option {
	return func(p *Pipeline) { p.pusher = ps }
}

// WithClock replaces time.Now, which stamps the report and load_timestamp.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New builds a Pipeline. It fails only when the source timezone is unknown.
func New(cfg config.PipelineConfig, opts ...Option) (*Pipeline, error) {
	loc, err := time.LoadLocation(cfg.SourceTimezone)
	if err != nil {
		return nil, fmt.Errorf("load source timezone %q: %w", cfg.SourceTimezone, err)
	}

	p := &Pipeline{
		cfg: cfg,
		loc: loc,
		exporter: export.New(export.Options{
			ParquetEnabled: cfg.ParquetEnabled,
			CSVCopy:        cfg.CSVCopy,
		}),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Latest returns the most recent finished report, or nil before the first run.
func (p *Pipeline) Latest() *RunReport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// Run executes the pipeline once and returns its report.
func (p *Pipeline) Run(ctx context.Context) *RunReport {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.FromContext(ctx)

	report := newRunReport(runID, p.now())
	logger.Info("pipeline run started",
		"input_dir", p.cfg.InputDir,
		"output_dir", p.cfg.OutputDir,
		"workers", p.cfg.Workers,
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in pipeline run", "panic", r)
				report.addError(fmt.Errorf("internal error: %v", r))
			}
		}()
		if err := p.execute(ctx, report); err != nil {
			logger.Error("pipeline run failed", "error", err, "code", core.MapError(err).Code)
			report.addError(err)
		}
	}()

	report.finish(p.now())

	reportPath := filepath.Join(p.cfg.OutputDir, ReportFileName)
	if _, err := export.WriteJSON(reportPath, report); err != nil {
		logger.Error("write run report failed", "path", reportPath, "error", err)
	}

	p.metrics.Observe(report)
	p.pushMetrics(ctx)

	p.mu.Lock()
	p.latest = report
	p.mu.Unlock()

	logger.Info("pipeline run finished",
		"status", report.Status,
		"duration_seconds", report.DurationSeconds,
		"validation_issues", report.ValidationIssueCount(),
		"artifacts", len(report.Artifacts),
	)
	return report
}

// execute runs every stage and fills report as it goes.
func (p *Pipeline) execute(ctx context.Context, report *RunReport) error {
	workers := p.cfg.Workers

	rawEvents, err := core.ReadInput(ctx, p.cfg.InputDir, core.EventsInput, p.cfg.Events)
	if err != nil {
		return err
	}
	report.RowCounts[CountEventsRaw] = len(rawEvents.Rows)

	rawProduction, err := core.ReadInput(ctx, p.cfg.InputDir, core.ProductionInput, p.cfg.Production)
	if err != nil {
		return err
	}
	report.RowCounts[CountProductionRaw] = len(rawProduction.Rows)

	rawOperators, err := core.ReadInput(ctx, p.cfg.InputDir, core.OperatorsInput, p.cfg.Operators)
	if err != nil {
		return err
	}
	report.RowCounts[CountOperatorsRaw] = len(rawOperators.Rows)

	events, err := core.DecodeEvents(ctx, rawEvents, workers)
	if err != nil {
		return err
	}
	production, err := core.DecodeProduction(ctx, rawProduction, workers)
	if err != nil {
		return err
	}
	operators, err := core.DecodeOperators(ctx, rawOperators, workers)
	if err != nil {
		return err
	}

	for _, v := range []core.ValidationReport{
		core.Validate(ctx, events, core.EventRules()),
		core.Validate(ctx, production, core.ProductionRules()),
		core.Validate(ctx, operators, core.OperatorRules()),
	} {
		report.Validations[v.Table] = v
	}

	cleaned, err := core.NewCleaner(p.loc, workers).Clean(ctx, events)
	if err != nil {
		return err
	}
	report.RowCounts[CountEventsCleaned] = len(cleaned)

	enriched := core.Enrich(ctx, cleaned, operators)
	report.RowCounts[CountEventsEnriched] = len(enriched)

	facts := core.BuildFact(enriched, p.now().UTC())
	report.RowCounts[CountFact] = len(facts)

	summary := core.Summarize(facts)
	report.RowCounts[CountSummary] = len(summary)

	logging.FromContext(ctx).Info("tables built",
		"fact_rows", len(facts),
		"summary_rows", len(summary),
	)

	return p.publish(ctx, report, facts, summary)
}

// publish exports both tables into the staging directory, loads the
// warehouse and then moves the artifacts into the output directory.
func (p *Pipeline) publish(ctx context.Context, report *RunReport, facts []core.FactRow, summary []core.SummaryRow) error {
	staging := filepath.Join(p.cfg.OutputDir, ".staging-"+report.RunID)
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			logging.FromContext(ctx).Warn("remove staging directory failed", "path", staging, "error", err)
		}
	}()

	factArtifacts, err := export.Export(ctx, p.exporter, FactTable, facts,
		filepath.Join(staging, FactTable+export.FormatParquet.Extension()))
	if err != nil {
		return err
	}
	summaryArtifacts, err := export.Export(ctx, p.exporter, SummaryTable, summary,
		filepath.Join(staging, SummaryTable+export.FormatParquet.Extension()))
	if err != nil {
		return err
	}

	if p.loader != nil {
		if err := p.loader.Load(ctx, facts, summary); err != nil {
			return err
		}
	}

	staged := append(factArtifacts, summaryArtifacts...)
	published, err := promote(p.cfg.OutputDir, staged)
	if err != nil {
		return err
	}
	report.Artifacts = published
	return nil
}

// promote renames staged artifacts into dir. For each table, a file in a
// format this run did not produce is removed so the output never mixes runs.
func promote(dir string, staged []export.Artifact) ([]export.Artifact, error) {
	produced := make(map[string]bool, len(staged))
	for _, a := range staged {
		produced[filepath.Join(dir, filepath.Base(a.Path))] = true
	}

	out := make([]export.Artifact, 0, len(staged))
	for _, a := range staged {
		dest := filepath.Join(dir, filepath.Base(a.Path))
		if err := os.Rename(a.Path, dest); err != nil {
			return nil, &core.ExportError{Table: a.Table, Path: dest, Format: string(a.Format), Err: fmt.Errorf("publish: %w", err)}
		}

		for _, f := range []export.Format{export.FormatParquet, export.FormatCSV} {
			stale := export.SiblingPath(dest, f)
			if produced[stale] {
				continue
			}
			if err := os.Remove(stale); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, &core.ExportError{Table: a.Table, Path: stale, Format: string(f), Err: fmt.Errorf("remove stale artifact: %w", err)}
			}
		}

		a.Path = dest
		out = append(out, a)
	}
	return out, nil
}

func (p *Pipeline) pushMetrics(ctx context.Context) {
	if p.pusher == nil || p.metrics == nil {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := p.pusher.Push(pushCtx, p.metrics.Registry()); err != nil {
		logging.FromContext(ctx).Warn("metrics push failed", "error", err)
	}
}
