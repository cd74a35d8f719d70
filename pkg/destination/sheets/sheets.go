// Package sheets implements the Destination interface on a Google Sheets
// worksheet. The header row plays the role of the column list; data rows
// are addressed by their sheet row number.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	gristsync "github.com/Carolinedanslesnuages/grist-sync-plugin-sub001"
)

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
}

type Destination struct {
	cfg Config
	svc *sheets.Service
}

func New(cfg Config) *Destination {
	if cfg.SheetName == "" {
		cfg.SheetName = "Sheet1"
	}
	return &Destination{cfg: cfg}
}

func (d *Destination) init(ctx context.Context) error {
	if d.svc != nil {
		return nil
	}
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsJSON([]byte(d.cfg.CredentialsJSON)),
		option.WithScopes(sheets.SpreadsheetsScope))
	if err != nil {
		return fmt.Errorf("failed to create sheets service: %w", err)
	}
	d.svc = svc
	return nil
}

// GetColumns reads the header row. Sheets carry no type metadata, so every
// column reports as Text.
func (d *Destination) GetColumns(ctx context.Context) ([]gristsync.Column, error) {
	headers, err := d.headers(ctx)
	if err != nil {
		return nil, err
	}

	cols := make([]gristsync.Column, 0, len(headers))
	for _, h := range headers {
		cols = append(cols, gristsync.Column{ID: h, Label: h, Type: gristsync.ColumnText})
	}
	return cols, nil
}

// AddColumns appends header cells after the existing ones.
func (d *Destination) AddColumns(ctx context.Context, cols []gristsync.Column) ([]string, error) {
	headers, err := d.headers(ctx)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]bool, len(headers))
	for _, h := range headers {
		existing[h] = true
	}

	var ids []string
	values := make([]interface{}, 0, len(cols))
	for _, c := range cols {
		if existing[c.ID] {
			return ids, fmt.Errorf("header %q: %w", c.ID, gristsync.ErrColumnExists)
		}
		values = append(values, c.ID)
		ids = append(ids, c.ID)
	}
	if len(values) == 0 {
		return nil, nil
	}

	start := columnLetter(len(headers) + 1)
	rangeA1 := fmt.Sprintf("%s!%s1", d.cfg.SheetName, start)
	_, err = d.svc.Spreadsheets.Values.Update(d.cfg.SpreadsheetID, rangeA1, &sheets.ValueRange{
		Values: [][]interface{}{values},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}
	return ids, nil
}

func (d *Destination) GetRecords(ctx context.Context, limit int) ([]gristsync.Row, error) {
	if err := d.init(ctx); err != nil {
		return nil, err
	}

	resp, err := d.svc.Spreadsheets.Values.Get(d.cfg.SpreadsheetID, d.cfg.SheetName).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	if len(resp.Values) < 2 {
		return nil, nil
	}

	headers := toStrings(resp.Values[0])
	var rows []gristsync.Row
	for i, raw := range resp.Values[1:] {
		if limit > 0 && len(rows) >= limit {
			break
		}
		fields := make(map[string]any, len(headers))
		for j, h := range headers {
			if j < len(raw) {
				fields[h] = raw[j]
			}
		}
		// Sheet row numbers are 1-based and the header occupies row 1.
		rows = append(rows, gristsync.Row{ID: strconv.Itoa(i + 2), Fields: fields})
	}
	return rows, nil
}

func (d *Destination) AddRecords(ctx context.Context, rows []map[string]any) ([]string, error) {
	headers, err := d.headers(ctx)
	if err != nil {
		return nil, err
	}

	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		values = append(values, orderByHeaders(row, headers))
	}

	resp, err := d.svc.Spreadsheets.Values.Append(d.cfg.SpreadsheetID, d.cfg.SheetName, &sheets.ValueRange{
		Values: values,
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to append rows: %w", err)
	}

	first := 0
	if resp.Updates != nil {
		first = firstRowOfRange(resp.Updates.UpdatedRange)
	}
	ids := make([]string, 0, len(rows))
	for i := range rows {
		if first > 0 {
			ids = append(ids, strconv.Itoa(first+i))
		} else {
			ids = append(ids, "")
		}
	}
	return ids, nil
}

func (d *Destination) UpdateRecords(ctx context.Context, updates []gristsync.RowUpdate) error {
	headers, err := d.headers(ctx)
	if err != nil {
		return err
	}

	for _, u := range updates {
		rowNum, err := strconv.Atoi(u.ID)
		if err != nil {
			return fmt.Errorf("invalid row id %q", u.ID)
		}
		rangeA1 := fmt.Sprintf("%s!A%d:%s%d", d.cfg.SheetName, rowNum, columnLetter(len(headers)), rowNum)
		_, err = d.svc.Spreadsheets.Values.Update(d.cfg.SpreadsheetID, rangeA1, &sheets.ValueRange{
			Values: [][]interface{}{orderByHeaders(u.Fields, headers)},
		}).ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to update row %d: %w", rowNum, err)
		}
	}
	return nil
}

func (d *Destination) TestConnection(ctx context.Context) bool {
	if err := d.init(ctx); err != nil {
		return false
	}
	_, err := d.svc.Spreadsheets.Get(d.cfg.SpreadsheetID).Context(ctx).Do()
	return err == nil
}

func (d *Destination) headers(ctx context.Context) ([]string, error) {
	if err := d.init(ctx); err != nil {
		return nil, err
	}
	resp, err := d.svc.Spreadsheets.Values.Get(d.cfg.SpreadsheetID, d.cfg.SheetName+"!1:1").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	return toStrings(resp.Values[0]), nil
}

// orderByHeaders lays out a field map in header order. Fields absent from
// the row become nil cells, which the values API leaves untouched.
func orderByHeaders(fields map[string]any, headers []string) []interface{} {
	out := make([]interface{}, len(headers))
	for i, h := range headers {
		if v, ok := fields[h]; ok {
			out[i] = v
		}
	}
	return out
}

func toStrings(cells []interface{}) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		out = append(out, fmt.Sprintf("%v", c))
	}
	return out
}

// columnLetter converts a 1-based column index to A1 notation (1→A, 27→AA).
func columnLetter(n int) string {
	var s string
	for n > 0 {
		n--
		s = string(rune('A'+n%26)) + s
		n /= 26
	}
	return s
}

// firstRowOfRange extracts the starting row from an A1 range like
// "Sheet1!A5:C6"; 0 when it cannot be determined.
func firstRowOfRange(a1 string) int {
	if idx := strings.Index(a1, "!"); idx != -1 {
		a1 = a1[idx+1:]
	}
	if idx := strings.Index(a1, ":"); idx != -1 {
		a1 = a1[:idx]
	}
	digits := strings.TrimLeft(a1, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}
