package core

import (
	"context"

	"github.com/JonMunkholm/maintetl/internal/logging"
)

type rosterEntry struct {
	skill       string
	reliability float64
}

// Enrich left-joins cleaned events to the operator roster on
// technician_id = operator_id. Output has exactly one row per input row.
// When the roster repeats an operator_id, the first occurrence is used.
func Enrich(ctx context.Context, events []CleanedEvent, operators []Operator) []CleanedEvent {
	roster := make(map[string]rosterEntry, len(operators))
	duplicates := 0
	for _, op := range operators {
		id := trimText(op.OperatorID)
		if !id.Valid {
			continue
		}
		if _, seen := roster[id.String]; seen {
			duplicates++
			continue
		}

		entry := rosterEntry{skill: UnknownSkillLevel, reliability: DefaultReliability}
		if skill := trimText(op.SkillLevel); skill.Valid {
			entry.skill = skill.String
		}
		if op.ReliabilityScore.Valid {
			entry.reliability = op.ReliabilityScore.Float64
		}
		roster[id.String] = entry
	}

	logger := logging.FromContext(ctx)
	if duplicates > 0 {
		logger.Warn("duplicate operator ids in roster, keeping first occurrence", "duplicates", duplicates)
	}

	out := make([]CleanedEvent, len(events))
	matched := 0
	for i, e := range events {
		e.OperatorSkillLevel = UnknownSkillLevel
		e.OperatorReliability = DefaultReliability
		e.TechnicianFound = false

		if e.TechnicianID.Valid {
			if entry, ok := roster[e.TechnicianID.String]; ok {
				e.OperatorSkillLevel = entry.skill
				e.OperatorReliability = entry.reliability
				e.TechnicianFound = true
				matched++
			}
		}
		out[i] = e
	}

	logger.Info("events enriched", "rows", len(out), "matched", matched, "unmatched", len(out)-matched)
	return out
}
