// Package mapping converts loosely-typed source records into flat rows
// according to a caller-owned list of field mappings.
package mapping

import (
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/record"
)

// Row is a flat target row: target field name to scalar value.
type Row = map[string]any

// Transform mutates a resolved value before serialization.
type Transform interface {
	Apply(v any) any
}

// TransformFunc adapts a plain function to the Transform interface.
type TransformFunc func(any) any

func (f TransformFunc) Apply(v any) any { return f(v) }

// Identity returns the value unchanged.
func Identity() Transform {
	return TransformFunc(func(v any) any { return v })
}

// FieldMapping describes how one target field is produced from a source
// record. It is owned by the caller and read-only to the engine.
type FieldMapping struct {
	TargetField string
	SourcePath  string
	Enabled     bool
	Transform   Transform // optional
}

// Valid reports whether the mapping can be used: both the target field
// and the source path must be non-empty.
func (m FieldMapping) Valid() bool {
	return m.TargetField != "" && m.SourcePath != ""
}

// Filter returns the mappings that are enabled and valid, in input order.
func Filter(mappings []FieldMapping) []FieldMapping {
	out := make([]FieldMapping, 0, len(mappings))
	for _, m := range mappings {
		if m.Enabled && m.Valid() {
			out = append(out, m)
		}
	}
	return out
}

// TargetFields returns the target field names of the usable mappings,
// deduplicated, in first-appearance order. This is the column order the
// schema reconciler creates missing columns in.
func TargetFields(mappings []FieldMapping) []string {
	seen := make(map[string]bool, len(mappings))
	var out []string
	for _, m := range Filter(mappings) {
		if !seen[m.TargetField] {
			seen[m.TargetField] = true
			out = append(out, m.TargetField)
		}
	}
	return out
}

// Resolve maps one source record onto a flat row. Paths that do not
// resolve leave the target field absent from the row; a resolved nil is
// kept as nil. Transforms run between resolution and serialization.
func Resolve(rec record.Record, mappings []FieldMapping) Row {
	row := make(Row)
	for _, m := range Filter(mappings) {
		v, ok := record.GetPath(rec, m.SourcePath)
		if !ok {
			continue
		}
		if m.Transform != nil {
			v = m.Transform.Apply(v)
		}
		row[m.TargetField] = SerializeValue(v)
	}
	return row
}

// ResolveAll applies Resolve to a sequence of records. A nil or empty
// input yields an empty slice, never a panic.
func ResolveAll(records []record.Record, mappings []FieldMapping) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Resolve(rec, mappings))
	}
	return rows
}
