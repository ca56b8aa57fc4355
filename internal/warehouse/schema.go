package warehouse

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/maintetl/internal/core"
)

// Warehouse table names.
const (
	FactTable    = "fact_maintenance_events"
	SummaryTable = "summary_maintenance_metrics"
)

const createFactTable = `CREATE TABLE IF NOT EXISTS fact_maintenance_events (
	maint_event_id          TEXT,
	factory_id              TEXT,
	line_id                 TEXT,
	start_timestamp         TIMESTAMPTZ,
	end_timestamp           TIMESTAMPTZ,
	event_date              DATE,
	event_year_month        TEXT,
	maintenance_type        TEXT,
	reason                  TEXT,
	outcome                 TEXT,
	is_unplanned_breakdown  BOOLEAN NOT NULL,
	downtime_category       TEXT NOT NULL,
	downtime_min            INTEGER,
	cost_eur                DOUBLE PRECISION,
	cost_per_downtime_min   DOUBLE PRECISION,
	severity_level          TEXT NOT NULL,
	technician_id           TEXT,
	operator_skill_level    TEXT NOT NULL,
	operator_reliability    DOUBLE PRECISION NOT NULL,
	parts_count             INTEGER NOT NULL,
	parts_list              TEXT[] NOT NULL,
	next_due_date           DATE,
	days_to_next_due        INTEGER,
	data_quality_flags      TEXT NOT NULL,
	technician_in_roster    BOOLEAN NOT NULL,
	load_timestamp          TIMESTAMPTZ NOT NULL
)`

const createSummaryTable = `CREATE TABLE IF NOT EXISTS summary_maintenance_metrics (
	factory_id          TEXT,
	line_id             TEXT,
	maintenance_type    TEXT,
	event_date          DATE,
	event_count         BIGINT NOT NULL,
	total_downtime_min  BIGINT,
	avg_downtime_min    DOUBLE PRECISION,
	total_cost_eur      DOUBLE PRECISION,
	avg_cost_eur        DOUBLE PRECISION,
	unplanned_count     BIGINT NOT NULL,
	unplanned_pct       DOUBLE PRECISION NOT NULL
)`

var factColumns = []string{
	"maint_event_id", "factory_id", "line_id", "start_timestamp", "end_timestamp",
	"event_date", "event_year_month", "maintenance_type", "reason", "outcome",
	"is_unplanned_breakdown", "downtime_category", "downtime_min", "cost_eur",
	"cost_per_downtime_min", "severity_level", "technician_id", "operator_skill_level",
	"operator_reliability", "parts_count", "parts_list", "next_due_date",
	"days_to_next_due", "data_quality_flags", "technician_in_roster", "load_timestamp",
}

var summaryColumns = []string{
	"factory_id", "line_id", "maintenance_type", "event_date", "event_count",
	"total_downtime_min", "avg_downtime_min", "total_cost_eur", "avg_cost_eur",
	"unplanned_count", "unplanned_pct",
}

// factValues maps a fact row onto factColumns.
func factValues(f core.FactRow) ([]any, error) {
	eventDate, err := toDate(f.EventDate)
	if err != nil {
		return nil, fmt.Errorf("event_date: %w", err)
	}
	nextDue, err := toDate(f.NextDueDate)
	if err != nil {
		return nil, fmt.Errorf("next_due_date: %w", err)
	}

	parts := f.PartsList
	if parts == nil {
		parts = []string{}
	}

	return []any{
		f.MaintEventID, f.FactoryID, f.LineID, f.StartTimestamp, f.EndTimestamp,
		eventDate, f.EventYearMonth, f.MaintenanceType, f.Reason, f.Outcome,
		f.IsUnplannedBreakdown, f.DowntimeCategory, f.DowntimeMin, f.CostEUR,
		f.CostPerDowntimeMin, f.SeverityLevel, f.TechnicianID, f.OperatorSkillLevel,
		f.OperatorReliability, f.PartsCount, parts, nextDue,
		f.DaysToNextDue, f.DataQualityFlags, f.TechnicianInRoster, f.LoadTimestamp,
	}, nil
}

// summaryValues maps a summary row onto summaryColumns.
func summaryValues(s core.SummaryRow) ([]any, error) {
	eventDate, err := toDate(s.EventDate)
	if err != nil {
		return nil, fmt.Errorf("event_date: %w", err)
	}
	return []any{
		s.FactoryID, s.LineID, s.MaintenanceType, eventDate, s.EventCount,
		s.TotalDowntimeMin, s.AvgDowntimeMin, s.TotalCostEUR, s.AvgCostEUR,
		s.UnplannedCount, s.UnplannedPct,
	}, nil
}

// toDate converts an ISO date string to a DATE value; nil stays NULL.
func toDate(s *string) (pgtype.Date, error) {
	if s == nil {
		return pgtype.Date{}, nil
	}
	t, err := time.Parse(time.DateOnly, *s)
	if err != nil {
		return pgtype.Date{}, err
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}
