package engine

import (
	"context"
	"errors"
	"fmt"

	gristsync "github.com/Carolinedanslesnuages/grist-sync-plugin-sub001"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/mapping"
)

// ensureColumns creates the destination columns the mapped batch needs and
// the destination lacks. Creation order follows the required-field order
// (mapping declaration order), so passes are reproducible. It must finish
// before any row write that references a new column.
//
// A destination rejecting a column that is already present is an
// idempotent no-op; any other rejection is fatal, since row writes
// referencing the column would be meaningless.
func ensureColumns(ctx context.Context, dest gristsync.Destination, required []string, rows []mapping.Row, cfg Config, logger gristsync.Logger) ([]string, error) {
	existing, err := dest.GetColumns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read destination columns: %w", err)
	}

	present := make(map[string]bool, len(existing))
	for _, c := range existing {
		present[c.ID] = true
	}

	var missing []gristsync.Column
	for _, field := range required {
		if present[field] {
			continue
		}
		colType := gristsync.ColumnText
		if cfg.InferColumnTypes {
			colType = inferType(rows, field)
		}
		missing = append(missing, gristsync.Column{ID: field, Label: field, Type: colType})
	}
	if len(missing) == 0 {
		return nil, nil
	}

	names := make([]string, len(missing))
	for i, c := range missing {
		names[i] = c.ID
	}

	// Dry run reports the missing columns without touching the destination.
	if cfg.DryRun {
		return names, nil
	}

	if _, err := dest.AddColumns(ctx, missing); err != nil {
		if errors.Is(err, gristsync.ErrColumnExists) {
			// Safe under eventual consistency: the column is there,
			// whoever created it.
			if logger != nil {
				logger.Warn("column creation reported already-exists, continuing", "error", err)
			}
			return names, nil
		}
		return nil, &gristsync.SchemaError{Column: names[0], Err: err}
	}
	return names, nil
}

// inferType picks a column type from the first non-nil sample value of the
// field across the batch. Text stays the safe default: every value has
// already been scalarized by the mapping resolver.
func inferType(rows []mapping.Row, field string) gristsync.ColumnType {
	for _, row := range rows {
		v, ok := row[field]
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case bool:
			return gristsync.ColumnBool
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return gristsync.ColumnInt
		case float32, float64:
			return gristsync.ColumnNumeric
		default:
			return gristsync.ColumnText
		}
	}
	return gristsync.ColumnText
}
