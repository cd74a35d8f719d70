// Package memory implements an in-memory Destination, used by engine
// tests and for rehearsing a job offline.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	gristsync "github.com/Carolinedanslesnuages/grist-sync-plugin-sub001"
)

// Destination keeps columns and rows in memory. With Strict set, writes
// naming an unknown column fail the way a real document API would.
type Destination struct {
	mu      sync.Mutex
	columns []gristsync.Column
	rows    []gristsync.Row
	nextID  int

	Strict    bool
	ColumnErr error // forced AddColumns failure, for tests

	addCalls    int
	updateCalls int
}

func New() *Destination {
	return &Destination{nextID: 1, Strict: true}
}

// Seed installs initial columns and rows.
func (d *Destination) Seed(cols []gristsync.Column, rows []gristsync.Row) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.columns = append(d.columns, cols...)
	for _, r := range rows {
		if r.ID == "" {
			r.ID = strconv.Itoa(d.nextID)
			d.nextID++
		}
		d.rows = append(d.rows, r)
	}
}

func (d *Destination) GetColumns(ctx context.Context) ([]gristsync.Column, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]gristsync.Column, len(d.columns))
	copy(out, d.columns)
	return out, nil
}

func (d *Destination) AddColumns(ctx context.Context, cols []gristsync.Column) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ColumnErr != nil {
		return nil, d.ColumnErr
	}
	var ids []string
	for _, c := range cols {
		if d.hasColumn(c.ID) {
			return nil, fmt.Errorf("column %q: %w", c.ID, gristsync.ErrColumnExists)
		}
		d.columns = append(d.columns, c)
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (d *Destination) GetRecords(ctx context.Context, limit int) ([]gristsync.Row, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]gristsync.Row, 0, len(d.rows))
	for i, r := range d.rows {
		if limit > 0 && i >= limit {
			break
		}
		fields := make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			fields[k] = v
		}
		out = append(out, gristsync.Row{ID: r.ID, Fields: fields})
	}
	return out, nil
}

func (d *Destination) AddRecords(ctx context.Context, rows []map[string]any) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addCalls++

	if d.Strict {
		for _, row := range rows {
			if err := d.checkColumns(row); err != nil {
				return nil, err
			}
		}
	}

	var ids []string
	for _, row := range rows {
		fields := make(map[string]any, len(row))
		for k, v := range row {
			fields[k] = v
		}
		id := strconv.Itoa(d.nextID)
		d.nextID++
		d.rows = append(d.rows, gristsync.Row{ID: id, Fields: fields})
		ids = append(ids, id)
	}
	return ids, nil
}

func (d *Destination) UpdateRecords(ctx context.Context, updates []gristsync.RowUpdate) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updateCalls++

	if d.Strict {
		for _, u := range updates {
			if err := d.checkColumns(u.Fields); err != nil {
				return err
			}
		}
	}

	for _, u := range updates {
		found := false
		for i := range d.rows {
			if d.rows[i].ID == u.ID {
				for k, v := range u.Fields {
					d.rows[i].Fields[k] = v
				}
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("record %q not found", u.ID)
		}
	}
	return nil
}

func (d *Destination) TestConnection(ctx context.Context) bool { return true }

// WriteCalls reports how many times either write path was invoked; the
// dry-run tests assert this stays at zero.
func (d *Destination) WriteCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addCalls + d.updateCalls
}

func (d *Destination) hasColumn(id string) bool {
	for _, c := range d.columns {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (d *Destination) checkColumns(fields map[string]any) error {
	for k := range fields {
		if !d.hasColumn(k) {
			return fmt.Errorf("unknown column %q", k)
		}
	}
	return nil
}
