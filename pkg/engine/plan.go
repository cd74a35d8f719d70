package engine

import (
	"fmt"

	gristsync "github.com/Carolinedanslesnuages/grist-sync-plugin-sub001"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/mapping"
)

// Action is what the plan decides for one mapped row.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// Skip notes. Unchanged rows are routine and only counted; unmatched rows
// in update mode are reported per row so missing keys are visible.
const (
	noteUnchanged = "unchanged"
	noteNoMatch   = "no matching record"
)

// Entry is one planned operation. Index is the row's position in the
// mapped batch; Key is its unique-key value when the mode uses one.
type Entry struct {
	Action Action
	Index  int
	Key    string
	Row    mapping.Row
	RowID  string // destination row id, updates only
	Note   string
}

// Plan is the ordered set of operations one pass will execute (or report,
// in dry-run mode). Entry order follows mapped-row input order.
type Plan struct {
	Entries []Entry
}

// Counts tallies the plan by action.
func (p *Plan) Counts() (inserts, updates, skips int) {
	for _, e := range p.Entries {
		switch e.Action {
		case ActionInsert:
			inserts++
		case ActionUpdate:
			updates++
		case ActionSkip:
			skips++
		}
	}
	return inserts, updates, skips
}

// BuildPlan reconciles mapped rows against existing destination rows.
//
// Insert mode never consults existing rows. Update and upsert modes index
// existing rows by the unique-key field; on duplicate keys in the
// destination the last row wins, which assumes a well-formed destination
// and is logged rather than corrected. Duplicate keys within the mapped
// batch are not deduplicated: each produces its own entry and the
// destination's per-request behavior governs the outcome.
func BuildPlan(rows []mapping.Row, existing []gristsync.Row, cfg Config, logger gristsync.Logger) (*Plan, error) {
	plan := &Plan{Entries: make([]Entry, 0, len(rows))}

	if cfg.Mode == ModeInsert {
		for i, row := range rows {
			plan.Entries = append(plan.Entries, Entry{Action: ActionInsert, Index: i, Row: row})
		}
		return plan, nil
	}

	if cfg.UniqueKeyField == "" {
		return nil, &gristsync.ConfigError{Field: "uniqueKeyField", Reason: "required in update and upsert modes"}
	}

	index := make(map[string]gristsync.Row, len(existing))
	for _, er := range existing {
		key := normalizeValue(er.Fields[cfg.UniqueKeyField])
		if prev, dup := index[key]; dup && logger != nil {
			logger.Warn("duplicate unique key in destination, last row wins",
				"key", key, "replaced_row", prev.ID, "kept_row", er.ID)
		}
		index[key] = er
	}

	for i, row := range rows {
		key := normalizeValue(row[cfg.UniqueKeyField])
		match, found := index[key]

		switch {
		case !found && cfg.Mode == ModeUpsert:
			plan.Entries = append(plan.Entries, Entry{Action: ActionInsert, Index: i, Key: key, Row: row})
		case !found: // update mode
			plan.Entries = append(plan.Entries, Entry{Action: ActionSkip, Index: i, Key: key, Row: row, Note: noteNoMatch})
		case rowUnchanged(row, match):
			plan.Entries = append(plan.Entries, Entry{Action: ActionSkip, Index: i, Key: key, Row: row, RowID: match.ID, Note: noteUnchanged})
		default:
			plan.Entries = append(plan.Entries, Entry{Action: ActionUpdate, Index: i, Key: key, Row: row, RowID: match.ID})
		}
	}
	return plan, nil
}

// rowUnchanged compares every field present in the mapped row against the
// destination row. Destination values are already scalar, so comparison is
// string-normalized.
func rowUnchanged(row mapping.Row, existing gristsync.Row) bool {
	for k, v := range row {
		if normalizeValue(v) != normalizeValue(existing.Fields[k]) {
			return false
		}
	}
	return true
}

func normalizeValue(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
