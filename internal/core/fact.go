package core

import (
	"math"
	"slices"
	"time"
)

// Severity thresholds. A value must exceed the threshold to qualify.
const (
	HighCostEUR       = 2500.0
	HighDowntimeMin   = 120
	MediumCostEUR     = 1500.0
	MediumDowntimeMin = 60
)

// BuildFact projects enriched events onto the fact schema, one row per
// event. loadTime is stamped on every row.
func BuildFact(events []CleanedEvent, loadTime time.Time) []FactRow {
	loadTime = loadTime.UTC()
	rows := make([]FactRow, len(events))
	for i, e := range events {
		rows[i] = buildFactRow(e, loadTime)
	}
	return rows
}

func buildFactRow(e CleanedEvent, loadTime time.Time) FactRow {
	row := FactRow{
		MaintEventID:         textPtr(e.EventID),
		FactoryID:            textPtr(e.FactoryID),
		LineID:               textPtr(e.LineID),
		MaintenanceType:      textPtr(e.MaintenanceType),
		Reason:               textPtr(e.Reason),
		Outcome:              textPtr(e.Outcome),
		IsUnplannedBreakdown: e.IsUnplanned,
		DowntimeCategory:     string(e.DowntimeCategory),
		DowntimeMin:          int4Ptr(e.DowntimeMin),
		CostEUR:              float8Ptr(e.CostEUR),
		CostPerDowntimeMin:   costPerDowntime(e),
		SeverityLevel:        string(ClassifySeverity(e)),
		TechnicianID:         textPtr(e.TechnicianID),
		OperatorSkillLevel:   e.OperatorSkillLevel,
		OperatorReliability:  e.OperatorReliability,
		PartsCount:           int32(e.PartsCount),
		PartsList:            slices.Clone(e.Parts),
		NextDueDate:          datePtr(e.NextDueDate),
		DataQualityFlags:     e.QualityFlags.String(),
		TechnicianInRoster:   e.TechnicianFound,
		LoadTimestamp:        loadTime,
	}
	if row.PartsList == nil {
		row.PartsList = []string{}
	}

	if e.StartTimeUTC.Valid {
		start := e.StartTimeUTC.Time.UTC()
		date := start.Format(time.DateOnly)
		month := start.Format("2006-01")
		row.StartTimestamp = &start
		row.EventDate = &date
		row.EventYearMonth = &month

		if e.NextDueDate.Valid {
			days := daysBetween(start, e.NextDueDate.Time)
			row.DaysToNextDue = &days
		}
	}
	if e.EndTimeUTC.Valid {
		end := e.EndTimeUTC.Time.UTC()
		row.EndTimestamp = &end
	}

	return row
}

// costPerDowntime is cost/downtime rounded to cents when downtime is
// positive, 0 otherwise. A missing cost with positive downtime stays nil.
func costPerDowntime(e CleanedEvent) *float64 {
	if !e.DowntimeMin.Valid || e.DowntimeMin.Int32 <= 0 {
		zero := 0.0
		return &zero
	}
	if !e.CostEUR.Valid {
		return nil
	}
	v := Round2(e.CostEUR.Float64 / float64(e.DowntimeMin.Int32))
	return &v
}

// ClassifySeverity tiers an event by cost and downtime. Missing values
// never satisfy a threshold.
func ClassifySeverity(e CleanedEvent) Severity {
	cost, downtime := e.CostEUR, e.DowntimeMin
	switch {
	case cost.Valid && cost.Float64 > HighCostEUR,
		downtime.Valid && downtime.Int32 > HighDowntimeMin:
		return SeverityHigh
	case cost.Valid && cost.Float64 > MediumCostEUR,
		downtime.Valid && downtime.Int32 > MediumDowntimeMin:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// daysBetween counts calendar days from the date of from to the date of to.
func daysBetween(from, to time.Time) int32 {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int32(math.Round(b.Sub(a).Hours() / 24))
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
