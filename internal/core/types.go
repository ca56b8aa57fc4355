package core

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// FieldType represents the expected data type for a CSV field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldInteger
	FieldNumeric
	FieldDate
	FieldTimestamp
)

// FieldSpec defines the coercion rule for a single CSV column.
type FieldSpec struct {
	Name     string    // Column header name (matched case-insensitively)
	Type     FieldType // Expected data type
	Required bool      // Column must exist in CSV header
}

// HeaderIndex maps column names (lowercase) to their position in the CSV row.
type HeaderIndex map[string]int

// MaintenanceEvent is one row of maintenance_events.csv after type coercion.
// Start and end times are naive wall-clock values in the source timezone.
type MaintenanceEvent struct {
	EventID         pgtype.Text
	FactoryID       pgtype.Text
	LineID          pgtype.Text
	MaintenanceType pgtype.Text
	Reason          pgtype.Text
	StartTime       pgtype.Timestamp
	EndTime         pgtype.Timestamp
	DowntimeMin     pgtype.Int4
	TechnicianID    pgtype.Text
	PartsUsed       pgtype.Text
	CostEUR         pgtype.Float8
	Outcome         pgtype.Text
	NextDueDate     pgtype.Date
}

// Operator is one row of operators_roster.csv.
type Operator struct {
	OperatorID       pgtype.Text
	Name             pgtype.Text
	FactoryID        pgtype.Text
	PrimaryLine      pgtype.Text
	SkillLevel       pgtype.Text
	ReliabilityScore pgtype.Float8
}

// ProductionRecord is one row of manufacturing_factory_dataset.csv.
type ProductionRecord struct {
	Timestamp    pgtype.Timestamp
	FactoryID    pgtype.Text
	LineID       pgtype.Text
	Shift        pgtype.Text
	ProductID    pgtype.Text
	PlannedQty   pgtype.Int8
	ProducedQty  pgtype.Int8
	ScrapQty     pgtype.Int8
	DefectsCount pgtype.Int8
	MachineState pgtype.Text
	Availability pgtype.Float8
	Performance  pgtype.Float8
	Quality      pgtype.Float8
	OEE          pgtype.Float8
	OperatorID   pgtype.Text
}

// UnplannedReason is the reason value that marks a breakdown as unplanned.
const UnplannedReason = "Unplanned Breakdown"

// DowntimeCategory separates zero-downtime inspections from real stoppages.
type DowntimeCategory string

const (
	CategoryMonitoring DowntimeCategory = "monitoring"
	CategoryDowntime   DowntimeCategory = "downtime"
)

// QualityFlag marks a data-quality gap found while cleaning an event.
type QualityFlag string

const (
	FlagMissingCost  QualityFlag = "missing_cost"
	FlagMissingParts QualityFlag = "missing_parts"
)

// QualityFlagSeparator joins flags in the exported data_quality_flags column.
const QualityFlagSeparator = "|"

// QualityFlags is the ordered set of flags raised for one event.
type QualityFlags []QualityFlag

// Has reports whether f contains flag.
func (f QualityFlags) Has(flag QualityFlag) bool {
	for _, q := range f {
		if q == flag {
			return true
		}
	}
	return false
}

// String renders the flags joined by QualityFlagSeparator, or "" when empty.
func (f QualityFlags) String() string {
	parts := make([]string, len(f))
	for i, q := range f {
		parts[i] = string(q)
	}
	return strings.Join(parts, QualityFlagSeparator)
}

// Default enrichment values for events whose technician is not on the roster.
const (
	UnknownSkillLevel  = "Unknown"
	DefaultReliability = 50.0
)

// CleanedEvent is a MaintenanceEvent with derived fields. The operator fields
// are zero until Enrich fills them.
type CleanedEvent struct {
	MaintenanceEvent

	StartTimeUTC     pgtype.Timestamptz
	EndTimeUTC       pgtype.Timestamptz
	Parts            []string
	PartsCount       int
	IsUnplanned      bool
	DowntimeCategory DowntimeCategory
	QualityFlags     QualityFlags

	OperatorSkillLevel  string
	OperatorReliability float64
	TechnicianFound     bool
}

// Severity is the fact-table severity tier.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// FactRow is one row of fact_maintenance_events. Grain: one row per
// maintenance event. Struct tags name the exported columns.
type FactRow struct {
	MaintEventID         *string    `parquet:"maint_event_id,optional"`
	FactoryID            *string    `parquet:"factory_id,optional"`
	LineID               *string    `parquet:"line_id,optional"`
	StartTimestamp       *time.Time `parquet:"start_timestamp,optional"`
	EndTimestamp         *time.Time `parquet:"end_timestamp,optional"`
	EventDate            *string    `parquet:"event_date,optional"`
	EventYearMonth       *string    `parquet:"event_year_month,optional"`
	MaintenanceType      *string    `parquet:"maintenance_type,optional"`
	Reason               *string    `parquet:"reason,optional"`
	Outcome              *string    `parquet:"outcome,optional"`
	IsUnplannedBreakdown bool       `parquet:"is_unplanned_breakdown"`
	DowntimeCategory     string     `parquet:"downtime_category"`
	DowntimeMin          *int32     `parquet:"downtime_min,optional"`
	CostEUR              *float64   `parquet:"cost_eur,optional"`
	CostPerDowntimeMin   *float64   `parquet:"cost_per_downtime_min,optional"`
	SeverityLevel        string     `parquet:"severity_level"`
	TechnicianID         *string    `parquet:"technician_id,optional"`
	OperatorSkillLevel   string     `parquet:"operator_skill_level"`
	OperatorReliability  float64    `parquet:"operator_reliability"`
	PartsCount           int32      `parquet:"parts_count"`
	PartsList            []string   `parquet:"parts_list,list"`
	NextDueDate          *string    `parquet:"next_due_date,optional"`
	DaysToNextDue        *int32     `parquet:"days_to_next_due,optional"`
	DataQualityFlags     string     `parquet:"data_quality_flags"`
	TechnicianInRoster   bool       `parquet:"technician_in_roster"`
	LoadTimestamp        time.Time  `parquet:"load_timestamp"`
}

// SummaryRow is one row of summary_maintenance_metrics, keyed by
// (factory_id, line_id, maintenance_type, event_date).
type SummaryRow struct {
	FactoryID        *string  `parquet:"factory_id,optional"`
	LineID           *string  `parquet:"line_id,optional"`
	MaintenanceType  *string  `parquet:"maintenance_type,optional"`
	EventDate        *string  `parquet:"event_date,optional"`
	EventCount       int64    `parquet:"event_count"`
	TotalDowntimeMin *int64   `parquet:"total_downtime_min,optional"`
	AvgDowntimeMin   *float64 `parquet:"avg_downtime_min,optional"`
	TotalCostEUR     *float64 `parquet:"total_cost_eur,optional"`
	AvgCostEUR       *float64 `parquet:"avg_cost_eur,optional"`
	UnplannedCount   int64    `parquet:"unplanned_count"`
	UnplannedPct     float64  `parquet:"unplanned_pct"`
}

// ValidationReport is the diagnostic result of running a ruleset over one
// input table. It is built once and never modified afterwards.
type ValidationReport struct {
	Table     string   `json:"table"`
	TotalRows int      `json:"total_rows"`
	Passed    bool     `json:"passed"`
	Issues    []string `json:"issues"`
}
