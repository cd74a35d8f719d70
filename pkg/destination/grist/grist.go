// Package grist implements the Destination interface against the Grist
// document REST API (tables, columns and records endpoints).
package grist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	gristsync "github.com/Carolinedanslesnuages/grist-sync-plugin-sub001"
)

// Config identifies one table of one Grist document.
type Config struct {
	ServerURL string // e.g. https://docs.getgrist.com
	DocID     string
	TableID   string
	APIKey    string
	Timeout   time.Duration
}

type Client struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Wire shapes of the Grist REST API.
type apiColumn struct {
	ID     string          `json:"id"`
	Fields apiColumnFields `json:"fields"`
}

type apiColumnFields struct {
	Label string `json:"label"`
	Type  string `json:"type"`
}

type apiColumns struct {
	Columns []apiColumn `json:"columns"`
}

type apiRecord struct {
	ID     int64          `json:"id,omitempty"`
	Fields map[string]any `json:"fields"`
}

type apiRecords struct {
	Records []apiRecord `json:"records"`
}

func (c *Client) GetColumns(ctx context.Context) ([]gristsync.Column, error) {
	var out apiColumns
	if err := c.do(ctx, http.MethodGet, c.tableURL("columns"), nil, &out); err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}

	cols := make([]gristsync.Column, 0, len(out.Columns))
	for _, ac := range out.Columns {
		cols = append(cols, gristsync.Column{
			ID:    ac.ID,
			Label: ac.Fields.Label,
			Type:  parseColumnType(ac.Fields.Type),
		})
	}
	return cols, nil
}

func (c *Client) AddColumns(ctx context.Context, cols []gristsync.Column) ([]string, error) {
	body := apiColumns{Columns: make([]apiColumn, 0, len(cols))}
	for _, col := range cols {
		body.Columns = append(body.Columns, apiColumn{
			ID: col.ID,
			Fields: apiColumnFields{
				Label: col.Label,
				Type:  string(col.Type),
			},
		})
	}

	var out apiColumns
	if err := c.do(ctx, http.MethodPost, c.tableURL("columns"), body, &out); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return nil, fmt.Errorf("add columns: %w", gristsync.ErrColumnExists)
		}
		return nil, fmt.Errorf("add columns: %w", err)
	}

	ids := make([]string, 0, len(out.Columns))
	for _, ac := range out.Columns {
		ids = append(ids, ac.ID)
	}
	return ids, nil
}

func (c *Client) GetRecords(ctx context.Context, limit int) ([]gristsync.Row, error) {
	url := c.tableURL("records")
	if limit > 0 {
		url += "?limit=" + strconv.Itoa(limit)
	}

	var out apiRecords
	if err := c.do(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, fmt.Errorf("get records: %w", err)
	}

	rows := make([]gristsync.Row, 0, len(out.Records))
	for _, ar := range out.Records {
		rows = append(rows, gristsync.Row{
			ID:     strconv.FormatInt(ar.ID, 10),
			Fields: ar.Fields,
		})
	}
	return rows, nil
}

func (c *Client) AddRecords(ctx context.Context, rows []map[string]any) ([]string, error) {
	body := apiRecords{Records: make([]apiRecord, 0, len(rows))}
	for _, row := range rows {
		body.Records = append(body.Records, apiRecord{Fields: row})
	}

	var out apiRecords
	if err := c.do(ctx, http.MethodPost, c.tableURL("records"), body, &out); err != nil {
		return nil, fmt.Errorf("add records: %w", err)
	}

	ids := make([]string, 0, len(out.Records))
	for _, ar := range out.Records {
		ids = append(ids, strconv.FormatInt(ar.ID, 10))
	}
	return ids, nil
}

func (c *Client) UpdateRecords(ctx context.Context, updates []gristsync.RowUpdate) error {
	body := apiRecords{Records: make([]apiRecord, 0, len(updates))}
	for _, u := range updates {
		id, err := strconv.ParseInt(u.ID, 10, 64)
		if err != nil {
			return fmt.Errorf("update records: invalid record id %q", u.ID)
		}
		body.Records = append(body.Records, apiRecord{ID: id, Fields: u.Fields})
	}

	if err := c.do(ctx, http.MethodPatch, c.tableURL("records"), body, nil); err != nil {
		return fmt.Errorf("update records: %w", err)
	}
	return nil
}

func (c *Client) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.GetColumns(ctx)
	return err == nil
}

func (c *Client) tableURL(resource string) string {
	return fmt.Sprintf("%s/api/docs/%s/tables/%s/%s",
		strings.TrimRight(c.cfg.ServerURL, "/"), c.cfg.DocID, c.cfg.TableID, resource)
}

func (c *Client) do(ctx context.Context, method, url string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// parseColumnType maps a Grist column type declaration to the engine's
// enum. DateTime types carry a timezone suffix ("DateTime:UTC").
func parseColumnType(t string) gristsync.ColumnType {
	if idx := strings.Index(t, ":"); idx != -1 {
		t = t[:idx]
	}
	switch t {
	case "Int":
		return gristsync.ColumnInt
	case "Numeric":
		return gristsync.ColumnNumeric
	case "Bool":
		return gristsync.ColumnBool
	case "Date":
		return gristsync.ColumnDate
	case "DateTime":
		return gristsync.ColumnDateTime
	default:
		return gristsync.ColumnText
	}
}
