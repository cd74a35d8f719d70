// Package static implements a fixture-backed Provider for deterministic
// tests and offline runs.
package static

import (
	"context"
	"sync"
	"time"

	gristsync "github.com/Carolinedanslesnuages/grist-sync-plugin-sub001"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/record"
)

// Provider returns a fixed record sequence. WithFailures makes the first
// N fetches fail, which is how retry behavior gets exercised in tests.
type Provider struct {
	mu        sync.Mutex
	records   []record.Record
	latency   time.Duration
	failFirst int
	failErr   error
	calls     int
}

func New(records []record.Record) *Provider {
	return &Provider{records: records}
}

// WithLatency simulates source latency on every fetch.
func (p *Provider) WithLatency(d time.Duration) *Provider {
	p.latency = d
	return p
}

// WithFailures makes the first n fetches return err.
func (p *Provider) WithFailures(n int, err error) *Provider {
	p.failFirst = n
	p.failErr = err
	return p
}

// Calls reports how many fetches were attempted.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *Provider) FetchData(ctx context.Context) ([]record.Record, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.mu.Unlock()

	if p.latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.latency):
		}
	}

	if call <= p.failFirst {
		return nil, &gristsync.SourceError{Err: p.failErr}
	}

	// Callers own the returned slice; hand out a copy so fixtures stay
	// intact across passes.
	out := make([]record.Record, len(p.records))
	copy(out, p.records)
	return out, nil
}

func (p *Provider) TestConnection(ctx context.Context) bool {
	return true
}
