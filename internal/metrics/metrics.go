// Package metrics holds the process-wide Prometheus collectors for query
// execution. Collectors register themselves through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts executed queries by mode (immediate, batched,
	// exists), dialect and outcome (ok, malformed, transport, server).
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgraph_queries_total",
			Help: "Total number of queries executed",
		},
		[]string{"mode", "dialect", "status"},
	)

	// QueryDuration measures the first round trip of a query.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docgraph_query_duration_seconds",
			Help:    "Duration of the initial query round trip in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"mode", "dialect"},
	)

	// CursorBatches counts continuation batches fetched from the server.
	CursorBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docgraph_cursor_batches_total",
			Help: "Total number of cursor continuation batches fetched",
		},
	)

	// OpenCursors tracks server-side cursors currently held by the process.
	OpenCursors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docgraph_open_cursors",
			Help: "Number of server-side cursors currently open",
		},
	)

	// CursorCloses counts cursor releases by reason (exhausted, closed,
	// cancelled, error).
	CursorCloses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgraph_cursor_closes_total",
			Help: "Total number of cursors released",
		},
		[]string{"reason"},
	)
)
