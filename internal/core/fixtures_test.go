package core

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func text(s string) pgtype.Text { return pgtype.Text{String: s, Valid: true} }

func int4(n int32) pgtype.Int4 { return pgtype.Int4{Int32: n, Valid: true} }

func int8v(n int64) pgtype.Int8 { return pgtype.Int8{Int64: n, Valid: true} }

func float8(f float64) pgtype.Float8 { return pgtype.Float8{Float64: f, Valid: true} }

func naive(s string) pgtype.Timestamp {
	t, err := time.Parse(time.DateTime, s)
	if err != nil {
		panic(err)
	}
	return pgtype.Timestamp{Time: t, Valid: true}
}

func date(s string) pgtype.Date {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return pgtype.Date{Time: t, Valid: true}
}

// sampleEvent is a fully populated winter event on line L1.
func sampleEvent(id string) MaintenanceEvent {
	return MaintenanceEvent{
		EventID:         text(id),
		FactoryID:       text("F1"),
		LineID:          text("L1"),
		MaintenanceType: text("Corrective"),
		Reason:          text("Unplanned Breakdown"),
		StartTime:       naive("2025-11-03 10:00:00"),
		EndTime:         naive("2025-11-03 11:00:00"),
		DowntimeMin:     int4(60),
		TechnicianID:    text("T1"),
		PartsUsed:       text("belt,bearing"),
		CostEUR:         float8(600),
		Outcome:         text("Resolved"),
		NextDueDate:     date("2025-12-03"),
	}
}

func strp(s string) *string { return &s }

func int32p(n int32) *int32 { return &n }

func float64p(f float64) *float64 { return &f }
