package core

// validation.go runs soft quality checks over a decoded table.
//
// Validation works at two levels:
//  1. Header validation (extraction): required columns must be present. A
//     missing column is fatal.
//  2. Table rules: each Rule inspects the whole table and returns an issue
//     string. Rules marked Gate flip ValidationReport.Passed; the others are
//     reported only. Rules never modify or drop rows.

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/maintetl/internal/logging"
)

// Rule is one named check over a table. Check returns "" when the table is
// clean, otherwise a human-readable issue.
type Rule[T any] struct {
	Name  string
	Gate  bool // a failure flips Passed to false
	Check func(rows []T) string
}

// Ruleset is the ordered list of rules for one input table.
type Ruleset[T any] struct {
	Table string
	Rules []Rule[T]
}

// Validate applies every rule to rows and returns the report. It logs one
// entry per rule and never fails.
func Validate[T any](ctx context.Context, rows []T, rs Ruleset[T]) ValidationReport {
	logger := logging.WithFields(ctx, "table", rs.Table)

	report := ValidationReport{
		Table:     rs.Table,
		TotalRows: len(rows),
		Passed:    true,
		Issues:    []string{},
	}

	for _, rule := range rs.Rules {
		issue := rule.Check(rows)
		if issue == "" {
			logger.Info("validation check ok", "check", rule.Name)
			continue
		}

		report.Issues = append(report.Issues, issue)
		if rule.Gate {
			report.Passed = false
		}
		logger.Warn("validation check failed", "check", rule.Name, "gate", rule.Gate, "issue", issue)
	}

	return report
}

// ValidateHeaders validates that all required columns exist in the CSV headers.
// Returns a mapping from column name to index, or an error listing missing columns.
func ValidateHeaders(headers []string, specs []FieldSpec) (HeaderIndex, error) {
	idx := MakeHeaderIndex(headers)
	var missing []string

	for _, spec := range specs {
		if spec.Required {
			key := strings.ToLower(spec.Name)
			if _, ok := idx[key]; !ok {
				missing = append(missing, spec.Name)
			}
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	return idx, nil
}

// countDuplicateKeys returns how many distinct non-null keys occur more
// than once.
func countDuplicateKeys[T any](rows []T, key func(T) pgtype.Text) int {
	seen := make(map[string]int, len(rows))
	for _, r := range rows {
		k := key(r)
		if !k.Valid {
			continue
		}
		seen[k.String]++
	}

	dups := 0
	for _, n := range seen {
		if n > 1 {
			dups++
		}
	}
	return dups
}

func countRows[T any](rows []T, pred func(T) bool) int {
	n := 0
	for _, r := range rows {
		if pred(r) {
			n++
		}
	}
	return n
}

// EventRules checks maintenance_events.
func EventRules() Ruleset[MaintenanceEvent] {
	return Ruleset[MaintenanceEvent]{
		Table: EventsInput.Table,
		Rules: []Rule[MaintenanceEvent]{
			{
				Name: "unique_event_id",
				Gate: true,
				Check: func(rows []MaintenanceEvent) string {
					n := countDuplicateKeys(rows, func(e MaintenanceEvent) pgtype.Text { return e.EventID })
					if n == 0 {
						return ""
					}
					return fmt.Sprintf("Found %d duplicate event_ids", n)
				},
			},
			{
				Name: "temporal_consistency",
				Gate: true,
				Check: func(rows []MaintenanceEvent) string {
					n := countRows(rows, func(e MaintenanceEvent) bool {
						return e.StartTime.Valid && e.EndTime.Valid && e.EndTime.Time.Before(e.StartTime.Time)
					})
					if n == 0 {
						return ""
					}
					return fmt.Sprintf("Found %d events with end_time < start_time", n)
				},
			},
			{
				Name: "non_negative_cost",
				Check: func(rows []MaintenanceEvent) string {
					n := countRows(rows, func(e MaintenanceEvent) bool {
						return e.CostEUR.Valid && e.CostEUR.Float64 < 0
					})
					if n == 0 {
						return ""
					}
					return fmt.Sprintf("Found %d events with negative cost", n)
				},
			},
			{
				Name: "non_negative_downtime",
				Check: func(rows []MaintenanceEvent) string {
					n := countRows(rows, func(e MaintenanceEvent) bool {
						return e.DowntimeMin.Valid && e.DowntimeMin.Int32 < 0
					})
					if n == 0 {
						return ""
					}
					return fmt.Sprintf("Found %d events with negative downtime", n)
				},
			},
			{
				Name:  "critical_columns_not_null",
				Gate:  true,
				Check: checkEventCriticalNulls,
			},
		},
	}
}

func checkEventCriticalNulls(rows []MaintenanceEvent) string {
	columns := []struct {
		name  string
		valid func(MaintenanceEvent) bool
	}{
		{"event_id", func(e MaintenanceEvent) bool { return e.EventID.Valid }},
		{"start_time", func(e MaintenanceEvent) bool { return e.StartTime.Valid }},
		{"end_time", func(e MaintenanceEvent) bool { return e.EndTime.Valid }},
		{"downtime_min", func(e MaintenanceEvent) bool { return e.DowntimeMin.Valid }},
	}

	var found []string
	for _, col := range columns {
		n := countRows(rows, func(e MaintenanceEvent) bool { return !col.valid(e) })
		if n > 0 {
			found = append(found, fmt.Sprintf("%s=%d", col.name, n))
		}
	}
	if len(found) == 0 {
		return ""
	}
	return "Found nulls in critical columns: " + strings.Join(found, ", ")
}

// ProductionRules checks the production telemetry table.
func ProductionRules() Ruleset[ProductionRecord] {
	ratios := []struct {
		name  string
		value func(ProductionRecord) pgtype.Float8
	}{
		{"availability", func(p ProductionRecord) pgtype.Float8 { return p.Availability }},
		{"performance", func(p ProductionRecord) pgtype.Float8 { return p.Performance }},
		{"quality", func(p ProductionRecord) pgtype.Float8 { return p.Quality }},
	}

	rules := make([]Rule[ProductionRecord], 0, len(ratios)+1)
	for _, r := range ratios {
		rules = append(rules, Rule[ProductionRecord]{
			Name: r.name + "_in_unit_range",
			Gate: true,
			Check: func(rows []ProductionRecord) string {
				n := countRows(rows, func(p ProductionRecord) bool {
					v := r.value(p)
					return v.Valid && (v.Float64 < 0 || v.Float64 > 1)
				})
				if n == 0 {
					return ""
				}
				return fmt.Sprintf("Found %d rows with %s outside [0, 1]", n, r.name)
			},
		})
	}

	rules = append(rules, Rule[ProductionRecord]{
		Name: "produced_within_planned",
		Check: func(rows []ProductionRecord) string {
			n := countRows(rows, func(p ProductionRecord) bool {
				return p.ProducedQty.Valid && p.PlannedQty.Valid && p.ProducedQty.Int64 > p.PlannedQty.Int64
			})
			if n == 0 {
				return ""
			}
			return fmt.Sprintf("Found %d rows where produced_qty > planned_qty", n)
		},
	})

	return Ruleset[ProductionRecord]{Table: ProductionInput.Table, Rules: rules}
}

// OperatorRules checks the operator roster.
func OperatorRules() Ruleset[Operator] {
	return Ruleset[Operator]{
		Table: OperatorsInput.Table,
		Rules: []Rule[Operator]{
			{
				Name: "unique_operator_id",
				Gate: true,
				Check: func(rows []Operator) string {
					n := countDuplicateKeys(rows, func(o Operator) pgtype.Text { return o.OperatorID })
					if n == 0 {
						return ""
					}
					return fmt.Sprintf("Found %d duplicate operator IDs", n)
				},
			},
			{
				Name: "reliability_in_range",
				Check: func(rows []Operator) string {
					n := countRows(rows, func(o Operator) bool {
						s := o.ReliabilityScore
						return s.Valid && (s.Float64 < 0 || s.Float64 > 100)
					})
					if n == 0 {
						return ""
					}
					return fmt.Sprintf("Found %d invalid reliability scores", n)
				},
			},
		},
	}
}
