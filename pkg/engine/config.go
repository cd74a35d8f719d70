package engine

import (
	"time"

	gristsync "github.com/Carolinedanslesnuages/grist-sync-plugin-sub001"
)

// Mode selects how mapped rows are reconciled against existing rows.
type Mode string

const (
	// ModeInsert appends every mapped row; existing rows are never read.
	ModeInsert Mode = "insert"
	// ModeUpdate only updates rows whose unique key already exists.
	ModeUpdate Mode = "update"
	// ModeUpsert inserts unmatched rows and updates matched ones.
	ModeUpsert Mode = "upsert"
)

// Config holds the options of one synchronization pass. It is immutable
// for the duration of the pass.
type Config struct {
	Mode              Mode
	UniqueKeyField    string
	AutoCreateColumns bool
	InferColumnTypes  bool
	DryRun            bool
	BatchSize         int
	RetryAttempts     int
	RetryDelay        time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Mode:              ModeUpsert,
		AutoCreateColumns: true,
		BatchSize:         100,
		RetryAttempts:     3,
		RetryDelay:        time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeUpsert
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	return c
}

// validate fails fast, before any network call, on configuration the pass
// cannot run with.
func (c Config) validate() error {
	switch c.Mode {
	case ModeInsert, ModeUpdate, ModeUpsert:
	default:
		return &gristsync.ConfigError{Field: "mode", Reason: "must be insert, update or upsert"}
	}
	if (c.Mode == ModeUpdate || c.Mode == ModeUpsert) && c.UniqueKeyField == "" {
		return &gristsync.ConfigError{Field: "uniqueKeyField", Reason: "required in update and upsert modes"}
	}
	return nil
}
