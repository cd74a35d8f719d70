package gristsync

import (
	"context"

	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/record"
)

// ColumnType is the set of column types a destination document understands.
type ColumnType string

const (
	ColumnText     ColumnType = "Text"
	ColumnInt      ColumnType = "Int"
	ColumnNumeric  ColumnType = "Numeric"
	ColumnBool     ColumnType = "Bool"
	ColumnDate     ColumnType = "Date"
	ColumnDateTime ColumnType = "DateTime"
)

// Column describes a single destination column. The engine only reads
// existing columns and appends missing ones; it never deletes or retypes.
type Column struct {
	ID    string
	Label string
	Type  ColumnType
}

// Row is an existing destination row. IDs are assigned by the destination.
type Row struct {
	ID     string
	Fields map[string]any
}

// RowUpdate carries a full-row overwrite for one destination row.
type RowUpdate struct {
	ID     string
	Fields map[string]any
}

// Provider fetches a flat collection of loosely-typed records from an
// external system.
type Provider interface {
	// FetchData performs one fetch and returns the records it produced.
	FetchData(ctx context.Context) ([]record.Record, error)
	// TestConnection reports whether the source is reachable. It never
	// returns an error; any failure maps to false.
	TestConnection(ctx context.Context) bool
}

// Destination is the tabular document being synchronized into.
type Destination interface {
	GetColumns(ctx context.Context) ([]Column, error)
	AddColumns(ctx context.Context, cols []Column) ([]string, error)
	// GetRecords returns existing rows. limit <= 0 means no limit.
	GetRecords(ctx context.Context, limit int) ([]Row, error)
	AddRecords(ctx context.Context, rows []map[string]any) ([]string, error)
	UpdateRecords(ctx context.Context, updates []RowUpdate) error
	TestConnection(ctx context.Context) bool
}

// Logger defines the structured logging interface used across the engine.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
