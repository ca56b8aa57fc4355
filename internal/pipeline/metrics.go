package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/JonMunkholm/maintetl/internal/config"
)

const metricsNamespace = "maintetl"

// Metrics holds the run collectors on a private registry so tests and the
// Pushgateway see only pipeline series.
type Metrics struct {
	registry         *prometheus.Registry
	runs             *prometheus.CounterVec
	runDuration      prometheus.Histogram
	stageRows        *prometheus.GaugeVec
	validationIssues *prometheus.GaugeVec
	exportFallbacks  *prometheus.CounterVec
}

// NewMetrics registers the pipeline collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a pipeline run.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		stageRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "stage_rows",
			Help:      "Rows produced by each stage in the latest run.",
		}, []string{"stage"}),
		validationIssues: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "validation_issues",
			Help:      "Failed validation checks per input in the latest run.",
		}, []string{"table"}),
		exportFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "export_fallbacks_total",
			Help:      "Exports written as CSV because Parquet was unavailable.",
		}, []string{"table"}),
	}

	m.registry.MustRegister(m.runs, m.runDuration, m.stageRows, m.validationIssues, m.exportFallbacks)
	return m
}

// Registry exposes the collectors for /metrics and pushing.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records a finished run.
func (m *Metrics) Observe(r *RunReport) {
	if m == nil || r == nil {
		return
	}

	m.runs.WithLabelValues(string(r.Status)).Inc()
	m.runDuration.Observe(r.DurationSeconds)

	for stage, n := range r.RowCounts {
		m.stageRows.WithLabelValues(stage).Set(float64(n))
	}
	for table, v := range r.Validations {
		m.validationIssues.WithLabelValues(table).Set(float64(len(v.Issues)))
	}
	for _, a := range r.Artifacts {
		if a.Fallback {
			m.exportFallbacks.WithLabelValues(a.Table).Inc()
		}
	}
}

// Pusher sends the run registry somewhere after each run.
type Pusher interface {
	Push(ctx context.Context, registry *prometheus.Registry) error
}

// NewPusher returns a Pushgateway pusher, or nil when no gateway is set.
func NewPusher(cfg config.MetricsConfig) Pusher {
	endpoint := strings.TrimSpace(cfg.PushgatewayURL)
	if endpoint == "" {
		return nil
	}
	p := &PushgatewayPusher{endpoint: endpoint, job: strings.TrimSpace(cfg.Job)}
	if instance := strings.TrimSpace(cfg.Instance); instance != "" {
		p.grouping = map[string]string{"instance": instance}
	}
	return p
}

// PushgatewayPusher replaces the job's metric group on a Prometheus Pushgateway.
type PushgatewayPusher struct {
	endpoint string
	job      string
	grouping map[string]string
}

// Push sends the current registry metrics to the Pushgateway.
func (p *PushgatewayPusher) Push(ctx context.Context, registry *prometheus.Registry) error {
	if p == nil || registry == nil {
		return nil
	}
	if p.job == "" {
		return errors.New("pushgateway job is required")
	}

	pusher := push.New(p.endpoint, p.job).Gatherer(registry)
	for key, value := range p.grouping {
		if key == "" || value == "" {
			continue
		}
		pusher = pusher.Grouping(key, value)
	}
	return pusher.PushContext(ctx)
}
