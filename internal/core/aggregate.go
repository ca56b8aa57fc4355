package core

import (
	"cmp"
	"slices"

	"github.com/jackc/pgx/v5/pgtype"
)

type summaryKey struct {
	factory, line, maintenanceType, date pgtype.Text
}

type summaryAcc struct {
	events        int64
	downtimeSum   int64
	downtimeCount int64
	costSum       float64
	costCount     int64
	unplanned     int64
}

// Summarize rolls facts up to one row per (factory_id, line_id,
// maintenance_type, event_date). Null measures are skipped; a group whose
// measure is null on every row gets a null total and average. Rows are
// sorted by the group key with nulls first.
func Summarize(facts []FactRow) []SummaryRow {
	groups := make(map[summaryKey]*summaryAcc)
	for _, f := range facts {
		k := summaryKey{
			factory:         ptrText(f.FactoryID),
			line:            ptrText(f.LineID),
			maintenanceType: ptrText(f.MaintenanceType),
			date:            ptrText(f.EventDate),
		}
		acc, ok := groups[k]
		if !ok {
			acc = &summaryAcc{}
			groups[k] = acc
		}

		acc.events++
		if f.DowntimeMin != nil {
			acc.downtimeSum += int64(*f.DowntimeMin)
			acc.downtimeCount++
		}
		if f.CostEUR != nil {
			acc.costSum += *f.CostEUR
			acc.costCount++
		}
		if f.IsUnplannedBreakdown {
			acc.unplanned++
		}
	}

	keys := make([]summaryKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareSummaryKeys)

	out := make([]SummaryRow, len(keys))
	for i, k := range keys {
		acc := groups[k]
		row := SummaryRow{
			FactoryID:       textPtr(k.factory),
			LineID:          textPtr(k.line),
			MaintenanceType: textPtr(k.maintenanceType),
			EventDate:       textPtr(k.date),
			EventCount:      acc.events,
			UnplannedCount:  acc.unplanned,
			UnplannedPct:    Round2(float64(acc.unplanned) / float64(acc.events) * 100),
		}
		if acc.downtimeCount > 0 {
			total := acc.downtimeSum
			avg := float64(acc.downtimeSum) / float64(acc.downtimeCount)
			row.TotalDowntimeMin = &total
			row.AvgDowntimeMin = &avg
		}
		if acc.costCount > 0 {
			total := acc.costSum
			avg := acc.costSum / float64(acc.costCount)
			row.TotalCostEUR = &total
			row.AvgCostEUR = &avg
		}
		out[i] = row
	}
	return out
}

func ptrText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func compareText(a, b pgtype.Text) int {
	switch {
	case a.Valid == b.Valid:
		return cmp.Compare(a.String, b.String)
	case !a.Valid:
		return -1
	default:
		return 1
	}
}

func compareSummaryKeys(a, b summaryKey) int {
	if c := compareText(a.factory, b.factory); c != 0 {
		return c
	}
	if c := compareText(a.line, b.line); c != 0 {
		return c
	}
	if c := compareText(a.maintenanceType, b.maintenanceType); c != 0 {
		return c
	}
	return compareText(a.date, b.date)
}
