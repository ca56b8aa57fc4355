package core

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// PartsSeparator splits the parts_used column.
const PartsSeparator = ","

// Cleaner normalizes raw maintenance events. It is safe for concurrent use.
type Cleaner struct {
	loc     *time.Location
	workers int
}

// NewCleaner returns a Cleaner that reads naive timestamps in loc.
func NewCleaner(loc *time.Location, workers int) *Cleaner {
	if loc == nil {
		loc = time.UTC
	}
	return &Cleaner{loc: loc, workers: workers}
}

// Clean returns one CleanedEvent per input event, in input order. The only
// possible error is ctx cancellation.
func (c *Cleaner) Clean(ctx context.Context, events []MaintenanceEvent) ([]CleanedEvent, error) {
	return mapRows(ctx, c.workers, events, func(_ int, e MaintenanceEvent) (CleanedEvent, error) {
		return c.CleanEvent(e), nil
	})
}

// CleanEvent derives the cleaned form of a single event.
func (c *Cleaner) CleanEvent(e MaintenanceEvent) CleanedEvent {
	e.EventID = trimText(e.EventID)
	e.FactoryID = trimText(e.FactoryID)
	e.LineID = trimText(e.LineID)
	e.MaintenanceType = trimText(e.MaintenanceType)
	e.Reason = trimText(e.Reason)
	e.TechnicianID = trimText(e.TechnicianID)
	e.PartsUsed = trimText(e.PartsUsed)
	e.Outcome = trimText(e.Outcome)

	parts := ParseParts(e.PartsUsed)

	var flags QualityFlags
	if !e.CostEUR.Valid {
		flags = append(flags, FlagMissingCost)
	}
	if !e.PartsUsed.Valid {
		flags = append(flags, FlagMissingParts)
	}

	category := CategoryDowntime
	if e.DowntimeMin.Valid && e.DowntimeMin.Int32 == 0 {
		category = CategoryMonitoring
	}

	return CleanedEvent{
		MaintenanceEvent: e,
		StartTimeUTC:     c.toUTC(e.StartTime),
		EndTimeUTC:       c.toUTC(e.EndTime),
		Parts:            parts,
		PartsCount:       len(parts),
		IsUnplanned:      e.Reason.Valid && e.Reason.String == UnplannedReason,
		DowntimeCategory: category,
		QualityFlags:     flags,
	}
}

func (c *Cleaner) toUTC(ts pgtype.Timestamp) pgtype.Timestamptz {
	if !ts.Valid {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: LocalToUTC(ts.Time, c.loc).UTC(), Valid: true}
}

// ParseParts splits a parts_used value into trimmed elements. Null or blank
// input yields an empty, non-nil slice. Empty elements between separators
// are kept, so "a,,b" has three parts.
func ParseParts(raw pgtype.Text) []string {
	s := strings.TrimSpace(raw.String)
	if !raw.Valid || s == "" {
		return []string{}
	}

	parts := strings.Split(s, PartsSeparator)
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func trimText(t pgtype.Text) pgtype.Text {
	if !t.Valid {
		return t
	}
	return ToPgText(t.String)
}
