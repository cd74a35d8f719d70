// Package sqlite implements the Destination interface on a local SQLite
// table, mainly for offline runs and as a reference destination.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	gristsync "github.com/Carolinedanslesnuages/grist-sync-plugin-sub001"
	_ "modernc.org/sqlite"
)

type Destination struct {
	dbPath string
	table  string
	db     *sql.DB
}

func New(dbPath, table string) *Destination {
	return &Destination{dbPath: dbPath, table: table}
}

func (d *Destination) init(ctx context.Context) error {
	if d.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite", d.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(queryCreateTable, d.table)); err != nil {
		db.Close()
		return fmt.Errorf("failed to create table %s: %w", d.table, err)
	}
	d.db = db
	return nil
}

func (d *Destination) GetColumns(ctx context.Context) ([]gristsync.Column, error) {
	if err := d.init(ctx); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(queryTableInfo, d.table))
	if err != nil {
		return nil, fmt.Errorf("table_info failed: %w", err)
	}
	defer rows.Close()

	var cols []gristsync.Column
	for rows.Next() {
		var (
			cid       int
			name      string
			declType  string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		if name == "id" {
			continue
		}
		cols = append(cols, gristsync.Column{ID: name, Label: name, Type: columnTypeFor(declType)})
	}
	return cols, rows.Err()
}

func (d *Destination) AddColumns(ctx context.Context, cols []gristsync.Column) ([]string, error) {
	if err := d.init(ctx); err != nil {
		return nil, err
	}

	var ids []string
	for _, c := range cols {
		decl, ok := declFor[string(c.Type)]
		if !ok {
			decl = "TEXT"
		}
		if _, err := d.db.ExecContext(ctx, fmt.Sprintf(queryAddColumn, d.table, quoteIdent(c.ID), decl)); err != nil {
			if strings.Contains(err.Error(), "duplicate column") {
				return ids, fmt.Errorf("column %q: %w", c.ID, gristsync.ErrColumnExists)
			}
			return ids, fmt.Errorf("add column %q: %w", c.ID, err)
		}
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (d *Destination) GetRecords(ctx context.Context, limit int) ([]gristsync.Row, error) {
	if err := d.init(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(querySelect, d.table)
	if limit > 0 {
		query = fmt.Sprintf(querySelectLimit, d.table, limit)
	}
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select failed: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []gristsync.Row
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := gristsync.Row{Fields: make(map[string]any, len(names))}
		for i, name := range names {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			if name == "id" {
				row.ID = fmt.Sprintf("%v", v)
				continue
			}
			row.Fields[name] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *Destination) AddRecords(ctx context.Context, rows []map[string]any) ([]string, error) {
	if err := d.init(ctx); err != nil {
		return nil, err
	}

	var ids []string
	for _, row := range rows {
		cols := make([]string, 0, len(row))
		for k := range row {
			cols = append(cols, k)
		}
		// Stable statement shape per row keeps errors attributable.
		quoted := make([]string, len(cols))
		holes := make([]string, len(cols))
		args := make([]any, len(cols))
		for i, k := range cols {
			quoted[i] = quoteIdent(k)
			holes[i] = "?"
			args[i] = row[k]
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			d.table, strings.Join(quoted, ", "), strings.Join(holes, ", "))
		res, err := d.db.ExecContext(ctx, query, args...)
		if err != nil {
			return ids, fmt.Errorf("insert failed: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return ids, err
		}
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	return ids, nil
}

func (d *Destination) UpdateRecords(ctx context.Context, updates []gristsync.RowUpdate) error {
	if err := d.init(ctx); err != nil {
		return err
	}

	for _, u := range updates {
		if len(u.Fields) == 0 {
			continue
		}
		sets := make([]string, 0, len(u.Fields))
		args := make([]any, 0, len(u.Fields)+1)
		for k, v := range u.Fields {
			sets = append(sets, quoteIdent(k)+" = ?")
			args = append(args, v)
		}
		args = append(args, u.ID)

		query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", d.table, strings.Join(sets, ", "))
		if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update record %s failed: %w", u.ID, err)
		}
	}
	return nil
}

func (d *Destination) TestConnection(ctx context.Context) bool {
	if err := d.init(ctx); err != nil {
		return false
	}
	return d.db.PingContext(ctx) == nil
}

func (d *Destination) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

func columnTypeFor(decl string) gristsync.ColumnType {
	switch strings.ToUpper(decl) {
	case "INTEGER", "INT":
		return gristsync.ColumnInt
	case "REAL", "NUMERIC", "FLOAT", "DOUBLE":
		return gristsync.ColumnNumeric
	default:
		return gristsync.ColumnText
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
