package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gristsync "github.com/Carolinedanslesnuages/grist-sync-plugin-sub001"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/destination/memory"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/mapping"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/record"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/source/static"
)

func contactMappings() []mapping.FieldMapping {
	return []mapping.FieldMapping{
		{TargetField: "email", SourcePath: "email", Enabled: true},
		{TargetField: "name", SourcePath: "name", Enabled: true},
	}
}

func fastConfig(mode Mode) Config {
	cfg := DefaultConfig()
	cfg.Mode = mode
	cfg.UniqueKeyField = "email"
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func newSyncer(src gristsync.Provider, dest gristsync.Destination, cfg Config) *Syncer {
	s := New(src, dest, contactMappings(), cfg)
	s.SetLogger(NewNopLogger())
	return s
}

func hasDetail(res *Result, substr string) bool {
	for _, d := range res.Details {
		if strings.Contains(d, substr) {
			return true
		}
	}
	return false
}

func TestSyncUpsertIntoEmptyDestination(t *testing.T) {
	// Scenario A: one source record, empty destination -> one insert.
	src := static.New([]record.Record{{"email": "a@x.com", "name": "A"}})
	dest := memory.New()

	res := newSyncer(src, dest, fastConfig(ModeUpsert)).Sync(context.Background())

	if !res.Success {
		t.Fatalf("pass failed: %v", res.Details)
	}
	if res.Added != 1 || res.Updated != 0 || res.Unchanged != 0 || res.Errors != 0 {
		t.Errorf("counts = %+v", res)
	}

	rows, _ := dest.GetRecords(context.Background(), 0)
	if len(rows) != 1 || rows[0].Fields["name"] != "A" {
		t.Errorf("destination rows = %v", rows)
	}
}

func TestSyncUpsertUpdatesChangedRow(t *testing.T) {
	// Scenario B: key matches but a field differs -> one update.
	src := static.New([]record.Record{{"email": "a@x.com", "name": "A"}})
	dest := memory.New()
	dest.Seed(
		[]gristsync.Column{{ID: "email"}, {ID: "name"}},
		[]gristsync.Row{{Fields: map[string]any{"email": "a@x.com", "name": "Old"}}},
	)

	res := newSyncer(src, dest, fastConfig(ModeUpsert)).Sync(context.Background())

	if !res.Success || res.Updated != 1 || res.Added != 0 {
		t.Fatalf("result = %+v (%v)", res, res.Details)
	}
	rows, _ := dest.GetRecords(context.Background(), 0)
	if rows[0].Fields["name"] != "A" {
		t.Errorf("name = %v, want A", rows[0].Fields["name"])
	}
}

func TestSyncUpsertSkipsUnchangedRow(t *testing.T) {
	// Scenario C: destination already carries the mapped values -> skip.
	src := static.New([]record.Record{{"email": "a@x.com", "name": "A"}})
	dest := memory.New()
	dest.Seed(
		[]gristsync.Column{{ID: "email"}, {ID: "name"}},
		[]gristsync.Row{{Fields: map[string]any{"email": "a@x.com", "name": "A"}}},
	)

	res := newSyncer(src, dest, fastConfig(ModeUpsert)).Sync(context.Background())

	if !res.Success || res.Unchanged != 1 || res.Added != 0 || res.Updated != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestSyncUpdateModeReportsUnmatchedRows(t *testing.T) {
	// Update mode, one source row with no destination match: the row is
	// named in the details and must not be counted as unchanged.
	src := static.New([]record.Record{
		{"email": "a@x.com", "name": "A"},
		{"email": "ghost@x.com", "name": "G"},
	})
	dest := memory.New()
	dest.Seed(
		[]gristsync.Column{{ID: "email"}, {ID: "name"}},
		[]gristsync.Row{{Fields: map[string]any{"email": "a@x.com", "name": "A"}}},
	)

	res := newSyncer(src, dest, fastConfig(ModeUpdate)).Sync(context.Background())

	if !res.Success {
		t.Fatalf("pass failed: %v", res.Details)
	}
	if res.Added != 0 || res.Updated != 0 || res.Unchanged != 1 {
		t.Errorf("counts = %+v", res)
	}
	if !hasDetail(res, "key=ghost@x.com") || !hasDetail(res, "no matching record") {
		t.Errorf("details = %v, want the unmatched row reported", res.Details)
	}

	rows, _ := dest.GetRecords(context.Background(), 0)
	if len(rows) != 1 {
		t.Errorf("destination rows = %v, want the seeded row only", rows)
	}
}

func TestSyncUpdateModeUnmatchedCountsMatchDryRun(t *testing.T) {
	records := []record.Record{
		{"email": "a@x.com", "name": "New"},
		{"email": "ghost@x.com", "name": "G"},
	}
	seedCols := []gristsync.Column{{ID: "email"}, {ID: "name"}}
	seedRows := []gristsync.Row{{Fields: map[string]any{"email": "a@x.com", "name": "Old"}}}

	dryCfg := fastConfig(ModeUpdate)
	dryCfg.DryRun = true
	dryDest := memory.New()
	dryDest.Seed(seedCols, seedRows)
	dry := newSyncer(static.New(records), dryDest, dryCfg).Sync(context.Background())

	liveDest := memory.New()
	liveDest.Seed(seedCols, seedRows)
	live := newSyncer(static.New(records), liveDest, fastConfig(ModeUpdate)).Sync(context.Background())

	if dry.Added != live.Added || dry.Updated != live.Updated || dry.Unchanged != live.Unchanged {
		t.Errorf("dry run counts %+v diverge from executed counts %+v", dry, live)
	}
	if dry.Unchanged != 0 {
		t.Errorf("dry run Unchanged = %d, want 0 for an unmatched row", dry.Unchanged)
	}
	if !hasDetail(dry, "no matching record") {
		t.Errorf("dry run details = %v, want the unmatched row reported", dry.Details)
	}
}

func TestSyncIdempotence(t *testing.T) {
	src := static.New([]record.Record{
		{"email": "a@x.com", "name": "A"},
		{"email": "b@x.com", "name": "B"},
	})
	dest := memory.New()
	s := newSyncer(src, dest, fastConfig(ModeUpsert))

	first := s.Sync(context.Background())
	if !first.Success || first.Added != 2 {
		t.Fatalf("first pass = %+v (%v)", first, first.Details)
	}

	second := s.Sync(context.Background())
	if !second.Success {
		t.Fatalf("second pass failed: %v", second.Details)
	}
	if second.Added != 0 || second.Updated != 0 || second.Unchanged != 2 {
		t.Errorf("second pass = %+v, want all rows unchanged", second)
	}
}

// noReadDest fails the test if the engine reads existing rows.
type noReadDest struct {
	*memory.Destination
	t *testing.T
}

func (d *noReadDest) GetRecords(ctx context.Context, limit int) ([]gristsync.Row, error) {
	d.t.Error("GetRecords must not be called in insert mode")
	return nil, nil
}

func TestSyncInsertModeNeverReadsDestination(t *testing.T) {
	src := static.New([]record.Record{
		{"email": "a@x.com", "name": "A"},
		{"email": "b@x.com", "name": "B"},
	})
	dest := &noReadDest{Destination: memory.New(), t: t}

	cfg := fastConfig(ModeInsert)
	cfg.UniqueKeyField = ""
	res := newSyncer(src, dest, cfg).Sync(context.Background())

	if !res.Success || res.Added != 2 {
		t.Errorf("result = %+v (%v)", res, res.Details)
	}
}

func TestSyncDryRunNeverWrites(t *testing.T) {
	src := static.New([]record.Record{
		{"email": "a@x.com", "name": "A"},
		{"email": "b@x.com", "name": "B"},
	})

	dry := memory.New()
	dry.Seed(
		[]gristsync.Column{{ID: "email"}, {ID: "name"}},
		[]gristsync.Row{{Fields: map[string]any{"email": "a@x.com", "name": "Old"}}},
	)
	cfg := fastConfig(ModeUpsert)
	cfg.AutoCreateColumns = false
	cfg.DryRun = true

	dryRes := newSyncer(src, dry, cfg).Sync(context.Background())
	if !dryRes.Success {
		t.Fatalf("dry run failed: %v", dryRes.Details)
	}
	if dry.WriteCalls() != 0 {
		t.Error("dry run touched the write path")
	}

	// A real run over identical inputs produces the same counts.
	real := memory.New()
	real.Seed(
		[]gristsync.Column{{ID: "email"}, {ID: "name"}},
		[]gristsync.Row{{Fields: map[string]any{"email": "a@x.com", "name": "Old"}}},
	)
	cfg.DryRun = false
	realRes := newSyncer(src, real, cfg).Sync(context.Background())

	if dryRes.Added != realRes.Added || dryRes.Updated != realRes.Updated || dryRes.Unchanged != realRes.Unchanged {
		t.Errorf("dry run counts %+v differ from real run %+v", dryRes, realRes)
	}
	if realRes.Added != 1 || realRes.Updated != 1 {
		t.Errorf("real run = %+v", realRes)
	}
}

func TestSyncDryRunDoesNotCreateColumns(t *testing.T) {
	src := static.New([]record.Record{{"email": "a@x.com", "name": "A"}})
	dest := memory.New()

	cfg := fastConfig(ModeUpsert)
	cfg.DryRun = true
	res := newSyncer(src, dest, cfg).Sync(context.Background())

	if !res.Success {
		t.Fatalf("dry run failed: %v", res.Details)
	}
	cols, _ := dest.GetColumns(context.Background())
	if len(cols) != 0 {
		t.Errorf("dry run created columns: %v", cols)
	}
	if !hasDetail(res, "would create 2 columns") {
		t.Errorf("details = %v", res.Details)
	}
}

func TestSyncRetriesFetch(t *testing.T) {
	// Scenario D: fetch fails twice, then succeeds within 3 attempts.
	src := static.New([]record.Record{{"email": "a@x.com", "name": "A"}}).
		WithFailures(2, errors.New("connection reset"))
	dest := memory.New()

	res := newSyncer(src, dest, fastConfig(ModeUpsert)).Sync(context.Background())

	if !res.Success || res.Added != 1 {
		t.Fatalf("result = %+v (%v)", res, res.Details)
	}
	if src.Calls() != 3 {
		t.Errorf("fetch calls = %d, want 3", src.Calls())
	}
	if !hasDetail(res, "fetch attempt 1/3 failed") || !hasDetail(res, "fetch attempt 2/3 failed") {
		t.Errorf("details missing retry trace: %v", res.Details)
	}
	if !hasDetail(res, "fetch succeeded on attempt 3/3") {
		t.Errorf("details missing recovery trace: %v", res.Details)
	}
}

func TestSyncFetchExhaustionIsFatal(t *testing.T) {
	src := static.New([]record.Record{{"email": "a@x.com"}}).
		WithFailures(5, errors.New("down"))
	dest := memory.New()

	res := newSyncer(src, dest, fastConfig(ModeUpsert)).Sync(context.Background())

	if res.Success {
		t.Fatal("pass should fail when fetch retries are exhausted")
	}
	if src.Calls() != 3 {
		t.Errorf("fetch calls = %d, want 3", src.Calls())
	}
	if dest.WriteCalls() != 0 {
		t.Error("no writes may happen after a failed fetch")
	}
	if !hasDetail(res, "source fetch failed after 3 attempts") {
		t.Errorf("details = %v", res.Details)
	}
}

func TestSyncRowErrorsAreIsolated(t *testing.T) {
	// Scenario E: one row references a column the destination lacks and
	// auto-creation is off; that row fails, the other succeeds.
	src := static.New([]record.Record{
		{"email": "ok@x.com"},
		{"email": "bad@x.com", "name": "fails"},
	})
	dest := memory.New()
	dest.Seed([]gristsync.Column{{ID: "email"}}, nil)

	cfg := fastConfig(ModeUpsert)
	cfg.AutoCreateColumns = false
	res := newSyncer(src, dest, cfg).Sync(context.Background())

	if res.Success {
		t.Error("a pass with row errors must not report success")
	}
	if res.Added != 1 || res.Errors != 1 {
		t.Errorf("result = %+v (%v)", res, res.Details)
	}

	rows, _ := dest.GetRecords(context.Background(), 0)
	if len(rows) != 1 || rows[0].Fields["email"] != "ok@x.com" {
		t.Errorf("destination rows = %v", rows)
	}
	if !hasDetail(res, "bad@x.com") {
		t.Errorf("details should identify the failed row: %v", res.Details)
	}
}

func TestSyncConfigErrorBeforeAnyNetworkCall(t *testing.T) {
	src := static.New([]record.Record{{"email": "a@x.com"}})
	dest := memory.New()

	cfg := fastConfig(ModeUpdate)
	cfg.UniqueKeyField = ""
	res := newSyncer(src, dest, cfg).Sync(context.Background())

	if res.Success {
		t.Error("expected failure on invalid configuration")
	}
	if src.Calls() != 0 {
		t.Errorf("source was called %d times before config validation", src.Calls())
	}
	if !hasDetail(res, "uniqueKeyField") {
		t.Errorf("details = %v", res.Details)
	}
}

func TestSyncSchemaFailureIsFatal(t *testing.T) {
	src := static.New([]record.Record{{"email": "a@x.com"}})
	dest := memory.New()
	dest.ColumnErr = errors.New("read-only document")

	res := newSyncer(src, dest, fastConfig(ModeUpsert)).Sync(context.Background())

	if res.Success {
		t.Error("expected failure when a required column cannot be created")
	}
	if dest.WriteCalls() != 0 {
		t.Error("no row writes may happen after a schema failure")
	}
}

func TestSyncCreatesColumnsBeforeWrites(t *testing.T) {
	src := static.New([]record.Record{{"email": "a@x.com", "name": "A"}})
	dest := memory.New() // strict: writes naming unknown columns fail

	res := newSyncer(src, dest, fastConfig(ModeUpsert)).Sync(context.Background())
	if !res.Success {
		t.Fatalf("pass failed: %v", res.Details)
	}

	cols, _ := dest.GetColumns(context.Background())
	if len(cols) != 2 || cols[0].ID != "email" || cols[1].ID != "name" {
		t.Errorf("columns = %v, want [email name] in mapping order", cols)
	}
	if !hasDetail(res, "created 2 columns") {
		t.Errorf("details = %v", res.Details)
	}
}

func TestSyncDuplicateSourceKeysLastWriteWins(t *testing.T) {
	// Duplicate keys within one batch: both plan entries execute, the
	// destination applies them in order, last write wins.
	src := static.New([]record.Record{
		{"email": "a@x.com", "name": "first"},
		{"email": "a@x.com", "name": "second"},
	})
	dest := memory.New()
	dest.Seed(
		[]gristsync.Column{{ID: "email"}, {ID: "name"}},
		[]gristsync.Row{{Fields: map[string]any{"email": "a@x.com", "name": "Old"}}},
	)

	res := newSyncer(src, dest, fastConfig(ModeUpsert)).Sync(context.Background())
	if !res.Success || res.Updated != 2 {
		t.Fatalf("result = %+v (%v)", res, res.Details)
	}

	rows, _ := dest.GetRecords(context.Background(), 0)
	if rows[0].Fields["name"] != "second" {
		t.Errorf("name = %v, want second (last write wins)", rows[0].Fields["name"])
	}
}

func TestSyncBatchesInserts(t *testing.T) {
	var records []record.Record
	for i := 0; i < 7; i++ {
		records = append(records, record.Record{"email": string(rune('a'+i)) + "@x.com"})
	}
	src := static.New(records)
	dest := memory.New()

	cfg := fastConfig(ModeInsert)
	cfg.UniqueKeyField = ""
	cfg.BatchSize = 3
	res := newSyncer(src, dest, cfg).Sync(context.Background())

	if !res.Success || res.Added != 7 {
		t.Fatalf("result = %+v (%v)", res, res.Details)
	}
	rows, _ := dest.GetRecords(context.Background(), 0)
	if len(rows) != 7 {
		t.Errorf("destination has %d rows, want 7", len(rows))
	}
}

func TestSyncResultAlwaysPopulated(t *testing.T) {
	src := static.New(nil)
	dest := memory.New()
	s := newSyncer(src, dest, fastConfig(ModeUpsert))

	res := s.Sync(context.Background())
	if !res.Success {
		t.Fatalf("empty source should still succeed: %v", res.Details)
	}
	if len(res.Details) == 0 {
		t.Error("details must carry the step trace")
	}
	if res.Duration < 0 {
		t.Error("duration not populated")
	}

	st := s.Status()
	if st.LastRun.IsZero() {
		t.Error("status LastRun not recorded")
	}
}

func TestSyncStatusCounters(t *testing.T) {
	src := static.New([]record.Record{{"email": "a@x.com", "name": "A"}})
	dest := memory.New()
	s := newSyncer(src, dest, fastConfig(ModeUpsert))

	s.Sync(context.Background())
	s.Sync(context.Background())

	st := s.Status()
	if st.TotalSynced != 1 {
		t.Errorf("TotalSynced = %d, want 1 (second pass unchanged)", st.TotalSynced)
	}
	if st.TotalErrors != 0 {
		t.Errorf("TotalErrors = %d", st.TotalErrors)
	}
}

func TestTestConnections(t *testing.T) {
	src := static.New(nil)
	dest := memory.New()
	s := newSyncer(src, dest, fastConfig(ModeUpsert))

	conns := s.TestConnections(context.Background())
	if !conns.Source || !conns.Destination {
		t.Errorf("conns = %+v", conns)
	}
}
