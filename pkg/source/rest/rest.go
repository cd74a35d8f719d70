// Package rest implements the Provider interface over a single HTTP
// endpoint returning JSON.
package rest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/tidwall/gjson"

	gristsync "github.com/Carolinedanslesnuages/grist-sync-plugin-sub001"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/record"
)

// wrapperKeys are the conventional envelope keys scanned, in order, when
// the response is not a top-level array and no data path is configured.
var wrapperKeys = []string{"data", "items", "results", "records"}

// Config describes the endpoint one fetch hits.
type Config struct {
	URL      string
	Method   string
	Headers  map[string]string
	DataPath string // gjson path to the record array, optional
	Timeout  time.Duration
}

// Provider issues one HTTP request per FetchData call.
type Provider struct {
	cfg    Config
	client *http.Client
	logger gristsync.Logger
}

func New(cfg Config, logger gristsync.Logger) *Provider {
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// FetchData performs one request and coerces the response body into a
// record sequence.
func (p *Provider) FetchData(ctx context.Context) ([]record.Record, error) {
	req, err := http.NewRequestWithContext(ctx, p.cfg.Method, p.cfg.URL, nil)
	if err != nil {
		return nil, &gristsync.SourceError{Err: fmt.Errorf("failed to create request: %w", err)}
	}

	for k, v := range p.cfg.Headers {
		req.Header.Set(k, p.expandEnv(v))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &gristsync.SourceError{Err: fmt.Errorf("http request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &gristsync.SourceError{Err: fmt.Errorf("http request failed: status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &gristsync.SourceError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	records, err := p.extract(body)
	if err != nil {
		return nil, &gristsync.SourceError{Err: err}
	}
	return records, nil
}

// extract locates the record array: configured data path first, then a
// top-level array, then the conventional wrapper keys.
func (p *Provider) extract(body []byte) ([]record.Record, error) {
	if p.cfg.DataPath != "" {
		res := gjson.GetBytes(body, p.cfg.DataPath)
		if !res.Exists() || !res.IsArray() {
			return nil, fmt.Errorf("path %q: %w", p.cfg.DataPath, gristsync.ErrPathNotFound)
		}
		return toRecords(res.Array()), nil
	}

	parsed := gjson.ParseBytes(body)
	if parsed.IsArray() {
		return toRecords(parsed.Array()), nil
	}
	if parsed.IsObject() {
		for _, key := range wrapperKeys {
			if res := parsed.Get(key); res.IsArray() {
				return toRecords(res.Array()), nil
			}
		}
	}
	return nil, gristsync.ErrUnextractableResponse
}

func toRecords(items []gjson.Result) []record.Record {
	records := make([]record.Record, 0, len(items))
	for _, item := range items {
		if m, ok := item.Value().(map[string]any); ok {
			records = append(records, record.SanitizeAll(record.Record(m)))
		} else {
			records = append(records, record.Record{"value": item.Value()})
		}
	}
	return records
}

// expandEnv substitutes ${NAME} placeholders in header values. A missing
// variable becomes an empty string, logged as a warning since it usually
// means a misconfigured credential.
func (p *Provider) expandEnv(v string) string {
	return os.Expand(v, func(name string) string {
		val, ok := os.LookupEnv(name)
		if !ok && p.logger != nil {
			p.logger.Warn("environment variable not set for header interpolation", "variable", name)
		}
		return val
	})
}

// TestConnection reports whether the endpoint answers with a non-error
// status. It never returns an error.
func (p *Provider) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, p.cfg.Method, p.cfg.URL, nil)
	if err != nil {
		return false
	}
	for k, v := range p.cfg.Headers {
		req.Header.Set(k, p.expandEnv(v))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 400
}
