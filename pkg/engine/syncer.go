// Package engine drives one synchronization pass: fetch source records,
// map them onto flat rows, reconcile the destination schema and rows, and
// execute or report the resulting plan.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gristsync "github.com/Carolinedanslesnuages/grist-sync-plugin-sub001"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/mapping"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/record"
)

// Result is the outcome of one pass. It is always returned, even when the
// pass failed; Success is true only when every stage completed and the
// write stage produced zero errors.
type Result struct {
	Success   bool
	Added     int
	Updated   int
	Unchanged int
	Errors    int
	Details   []string
	Duration  time.Duration
}

// Status carries observability counters across passes. It is never
// consulted for reconciliation decisions.
type Status struct {
	TotalSynced int
	TotalErrors int
	LastRun     time.Time
	LastError   string
}

// ConnStatus is the result of probing both sides of a job.
type ConnStatus struct {
	Source      bool
	Destination bool
}

// Syncer owns the sequencing, retries and result aggregation of a pass.
// Passes are strictly sequential; callers must not run two passes for the
// same source/destination pair concurrently.
type Syncer struct {
	source   gristsync.Provider
	dest     gristsync.Destination
	mappings []mapping.FieldMapping
	cfg      Config
	logger   gristsync.Logger

	mu     sync.Mutex
	status Status
}

func New(source gristsync.Provider, dest gristsync.Destination, mappings []mapping.FieldMapping, cfg Config) *Syncer {
	return &Syncer{
		source:   source,
		dest:     dest,
		mappings: mappings,
		cfg:      cfg.withDefaults(),
		logger:   NewDefaultLogger(),
	}
}

// SetLogger replaces the default logger.
func (s *Syncer) SetLogger(logger gristsync.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetDryRun toggles plan-only passes after construction.
func (s *Syncer) SetDryRun(on bool) {
	s.cfg.DryRun = on
}

// Status returns a copy of the cross-pass counters.
func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// TestConnections probes source and destination. It performs no writes.
func (s *Syncer) TestConnections(ctx context.Context) ConnStatus {
	return ConnStatus{
		Source:      s.source.TestConnection(ctx),
		Destination: s.dest.TestConnection(ctx),
	}
}

// Sync runs one full pass. It never panics or returns a raw error: every
// failure is folded into the Result.
func (s *Syncer) Sync(ctx context.Context) *Result {
	start := time.Now()
	res := &Result{}
	defer func() {
		res.Duration = time.Since(start)
		s.finish(res)
	}()

	if err := s.cfg.validate(); err != nil {
		s.fail(res, fmt.Sprintf("invalid configuration: %v", err))
		return res
	}

	records, err := s.fetchWithRetry(ctx, res)
	if err != nil {
		s.fail(res, fmt.Sprintf("source fetch failed after %d attempts: %v", s.cfg.RetryAttempts, err))
		return res
	}
	s.trace(res, fmt.Sprintf("fetched %d records from source", len(records)))

	rows := mapping.ResolveAll(records, s.mappings)
	s.trace(res, fmt.Sprintf("mapped %d records", len(rows)))

	if s.cfg.AutoCreateColumns {
		created, err := ensureColumns(ctx, s.dest, mapping.TargetFields(s.mappings), rows, s.cfg, s.logger)
		if err != nil {
			s.fail(res, fmt.Sprintf("schema reconciliation failed: %v", err))
			return res
		}
		switch {
		case len(created) == 0:
			s.trace(res, "no missing columns")
		case s.cfg.DryRun:
			s.trace(res, fmt.Sprintf("dry run: would create %d columns: %s", len(created), strings.Join(created, ", ")))
		default:
			ColumnsCreated.Add(float64(len(created)))
			s.trace(res, fmt.Sprintf("created %d columns: %s", len(created), strings.Join(created, ", ")))
		}
	}

	var existing []gristsync.Row
	if s.cfg.Mode != ModeInsert {
		existing, err = s.dest.GetRecords(ctx, 0)
		if err != nil {
			s.fail(res, fmt.Sprintf("failed to read destination rows: %v", err))
			return res
		}
		s.trace(res, fmt.Sprintf("loaded %d existing destination rows", len(existing)))
	}

	plan, err := BuildPlan(rows, existing, s.cfg, s.logger)
	if err != nil {
		s.fail(res, fmt.Sprintf("planning failed: %v", err))
		return res
	}
	inserts, updates, skips := plan.Counts()
	s.trace(res, fmt.Sprintf("plan: %d inserts, %d updates, %d skips", inserts, updates, skips))

	unmatched := 0
	for _, e := range plan.Entries {
		if e.Action == ActionSkip && e.Note == noteNoMatch {
			s.trace(res, fmt.Sprintf("row %d (key=%s): no matching record, skipped", e.Index, e.Key))
			unmatched++
		}
	}

	if s.cfg.DryRun {
		res.Added, res.Updated, res.Unchanged = inserts, updates, skips-unmatched
		res.Success = true
		s.trace(res, "dry run: plan not executed")
		return res
	}

	s.execute(ctx, plan, res)
	res.Success = res.Errors == 0
	s.trace(res, fmt.Sprintf("sync completed: added=%d updated=%d unchanged=%d errors=%d",
		res.Added, res.Updated, res.Unchanged, res.Errors))
	return res
}

// fetchWithRetry retries the source fetch with linear backoff
// (delay * attempt number). Only the fetch is retried: losing it fails the
// whole pass, while a single row write failure later stays local.
func (s *Syncer) fetchWithRetry(ctx context.Context, res *Result) ([]record.Record, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.RetryAttempts; attempt++ {
		records, err := s.source.FetchData(ctx)
		if err == nil {
			if attempt > 1 {
				s.trace(res, fmt.Sprintf("fetch succeeded on attempt %d/%d", attempt, s.cfg.RetryAttempts))
			}
			return records, nil
		}
		lastErr = err
		s.trace(res, fmt.Sprintf("fetch attempt %d/%d failed: %v", attempt, s.cfg.RetryAttempts, err))

		if attempt == s.cfg.RetryAttempts {
			break
		}
		FetchRetries.Inc()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.RetryDelay * time.Duration(attempt)):
		}
	}
	return nil, lastErr
}

// execute runs the plan. Inserts and updates are grouped into BatchSize
// chunks; when a chunk is rejected, its rows are replayed one by one so a
// single bad row cannot take the rest of the batch down with it.
func (s *Syncer) execute(ctx context.Context, plan *Plan, res *Result) {
	var insertBatch, updateBatch []Entry

	for _, e := range plan.Entries {
		switch e.Action {
		case ActionSkip:
			// Unmatched update-mode rows are already reported per row;
			// counting them as unchanged would overstate that figure.
			if e.Note != noteNoMatch {
				res.Unchanged++
			}
		case ActionInsert:
			insertBatch = append(insertBatch, e)
			if len(insertBatch) >= s.cfg.BatchSize {
				s.flushInserts(ctx, insertBatch, res)
				insertBatch = insertBatch[:0]
			}
		case ActionUpdate:
			updateBatch = append(updateBatch, e)
			if len(updateBatch) >= s.cfg.BatchSize {
				s.flushUpdates(ctx, updateBatch, res)
				updateBatch = updateBatch[:0]
			}
		}
	}
	if len(insertBatch) > 0 {
		s.flushInserts(ctx, insertBatch, res)
	}
	if len(updateBatch) > 0 {
		s.flushUpdates(ctx, updateBatch, res)
	}
}

func (s *Syncer) flushInserts(ctx context.Context, batch []Entry, res *Result) {
	rows := make([]map[string]any, len(batch))
	for i, e := range batch {
		rows[i] = e.Row
	}

	if _, err := s.dest.AddRecords(ctx, rows); err == nil {
		res.Added += len(batch)
		return
	}

	// Batch rejected: isolate the failing rows.
	for _, e := range batch {
		if _, err := s.dest.AddRecords(ctx, []map[string]any{e.Row}); err != nil {
			s.rowError(res, &gristsync.DestinationWriteError{RowIndex: e.Index, Key: e.Key, Err: err})
		} else {
			res.Added++
		}
	}
}

func (s *Syncer) flushUpdates(ctx context.Context, batch []Entry, res *Result) {
	updates := make([]gristsync.RowUpdate, len(batch))
	for i, e := range batch {
		updates[i] = gristsync.RowUpdate{ID: e.RowID, Fields: e.Row}
	}

	if err := s.dest.UpdateRecords(ctx, updates); err == nil {
		res.Updated += len(batch)
		return
	}

	for _, e := range batch {
		err := s.dest.UpdateRecords(ctx, []gristsync.RowUpdate{{ID: e.RowID, Fields: e.Row}})
		if err != nil {
			s.rowError(res, &gristsync.DestinationWriteError{RowIndex: e.Index, Key: e.Key, Err: err})
		} else {
			res.Updated++
		}
	}
}

func (s *Syncer) rowError(res *Result, err *gristsync.DestinationWriteError) {
	res.Errors++
	RowErrors.Inc()
	res.Details = append(res.Details, err.Error())
	s.logger.Error("row write failed", "row", err.RowIndex, "key", err.Key, "error", err.Err)
}

// trace appends a literal, greppable line to the result details and logs it.
func (s *Syncer) trace(res *Result, msg string) {
	res.Details = append(res.Details, msg)
	s.logger.Info(msg)
}

func (s *Syncer) fail(res *Result, msg string) {
	res.Success = false
	res.Details = append(res.Details, msg)
	s.logger.Error(msg)
}

// finish records metrics and cross-pass counters once per pass.
func (s *Syncer) finish(res *Result) {
	PassDuration.Observe(res.Duration.Seconds())
	RowsAdded.Add(float64(res.Added))
	RowsUpdated.Add(float64(res.Updated))
	RowsUnchanged.Add(float64(res.Unchanged))
	status := "success"
	if !res.Success {
		status = "failure"
	}
	SyncPasses.WithLabelValues(status).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.TotalSynced += res.Added + res.Updated
	s.status.TotalErrors += res.Errors
	s.status.LastRun = time.Now()
	if !res.Success && len(res.Details) > 0 {
		s.status.LastError = res.Details[len(res.Details)-1]
	}
}
