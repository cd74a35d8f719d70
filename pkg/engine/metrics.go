package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gristsync_passes_total",
		Help: "The total number of synchronization passes, by outcome",
	}, []string{"status"})

	RowsAdded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gristsync_rows_added_total",
		Help: "The total number of rows inserted into the destination",
	})

	RowsUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gristsync_rows_updated_total",
		Help: "The total number of rows updated in the destination",
	})

	RowsUnchanged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gristsync_rows_unchanged_total",
		Help: "The total number of rows left unchanged by reconciliation",
	})

	RowErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gristsync_row_errors_total",
		Help: "The total number of per-row write errors",
	})

	ColumnsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gristsync_columns_created_total",
		Help: "The total number of destination columns created",
	})

	FetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gristsync_fetch_retries_total",
		Help: "The total number of retried source fetches",
	})

	PassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gristsync_pass_duration_seconds",
		Help:    "Wall-clock duration of a full synchronization pass",
		Buckets: prometheus.DefBuckets,
	})
)
