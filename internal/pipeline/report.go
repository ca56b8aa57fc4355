package pipeline

import (
	"time"

	"github.com/JonMunkholm/maintetl/internal/core"
	"github.com/JonMunkholm/maintetl/internal/export"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning Status = "Running"
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
)

// ReportFileName is written to the output directory after every run.
const ReportFileName = "run_report.json"

// Row count keys, one per stage output.
const (
	CountEventsRaw      = "maintenance_raw"
	CountProductionRaw  = "factory_raw"
	CountOperatorsRaw   = "operators_raw"
	CountEventsCleaned  = "maintenance_cleaned"
	CountEventsEnriched = "maintenance_enriched"
	CountFact           = "fact_maintenance"
	CountSummary        = "summary_maintenance"
)

// ReportError is a fatal error as shown to operators.
type ReportError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Action  string `json:"action"`
	Detail  string `json:"detail"`
}

// RunReport summarizes one pipeline execution.
type RunReport struct {
	RunID           string                           `json:"run_id"`
	Status          Status                           `json:"pipeline_status"`
	StartTime       time.Time                        `json:"start_time"`
	EndTime         time.Time                        `json:"end_time"`
	DurationSeconds float64                          `json:"duration_seconds"`
	Validations     map[string]core.ValidationReport `json:"validations"`
	RowCounts       map[string]int                   `json:"row_counts"`
	Artifacts       []export.Artifact                `json:"artifacts"`
	Errors          []ReportError                    `json:"errors"`
}

func newRunReport(runID string, start time.Time) *RunReport {
	return &RunReport{
		RunID:       runID,
		Status:      StatusRunning,
		StartTime:   start.UTC(),
		Validations: make(map[string]core.ValidationReport),
		RowCounts:   make(map[string]int),
		Artifacts:   []export.Artifact{},
		Errors:      []ReportError{},
	}
}

func (r *RunReport) addError(err error) {
	msg := core.MapError(err)
	r.Errors = append(r.Errors, ReportError{
		Message: msg.Message,
		Code:    msg.Code,
		Action:  msg.Action,
		Detail:  err.Error(),
	})
}

// finish stamps the end time and settles the status.
func (r *RunReport) finish(end time.Time) {
	r.EndTime = end.UTC()
	r.DurationSeconds = r.EndTime.Sub(r.StartTime).Seconds()
	if len(r.Errors) > 0 {
		r.Status = StatusFailed
	} else {
		r.Status = StatusSuccess
	}
}

// Failed reports whether the run ended with a fatal error.
func (r *RunReport) Failed() bool {
	return r.Status == StatusFailed
}

// ValidationIssueCount totals failed checks across inputs.
func (r *RunReport) ValidationIssueCount() int {
	n := 0
	for _, v := range r.Validations {
		n += len(v.Issues)
	}
	return n
}
