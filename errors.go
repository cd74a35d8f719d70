package gristsync

import (
	"errors"
	"fmt"
)

// Sentinel errors for source response extraction and idempotent schema
// handling. Wrap with fmt.Errorf("...: %w", err) and test with errors.Is.
var (
	// ErrPathNotFound means a configured data path did not resolve to an
	// array in the source response.
	ErrPathNotFound = errors.New("data path did not resolve to an array")
	// ErrUnextractableResponse means no record array could be located in
	// the source response.
	ErrUnextractableResponse = errors.New("no record array found in response")
	// ErrColumnExists is reported by destination clients when a column
	// creation is rejected because the column is already present.
	ErrColumnExists = errors.New("column already exists")
)

// SourceError wraps a fetch, transport or parse failure from a provider.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string { return "source: " + e.Err.Error() }
func (e *SourceError) Unwrap() error { return e.Err }

// ConfigError reports invalid or missing configuration. It is raised
// before any network call is made.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// SchemaError reports a column creation rejected by the destination.
type SchemaError struct {
	Column string
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: column %q: %v", e.Column, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// DestinationWriteError reports a single row insert or update rejected by
// the destination. It carries enough context for manual remediation.
type DestinationWriteError struct {
	RowIndex int
	Key      string
	Err      error
}

func (e *DestinationWriteError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("write: row %d (key=%s): %v", e.RowIndex, e.Key, e.Err)
	}
	return fmt.Sprintf("write: row %d: %v", e.RowIndex, e.Err)
}

func (e *DestinationWriteError) Unwrap() error { return e.Err }
