package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the whole run: fetching,
// classification, parsing, and the emitted change log.
type Metrics struct {
	Registry         *prometheus.Registry
	FetchesTotal     *prometheus.CounterVec
	FetchDuration    prometheus.Histogram
	FetchErrorsTotal *prometheus.CounterVec
	RowsTotal        *prometheus.CounterVec
	ParseWarnings    *prometheus.CounterVec
	CollisionsTotal  prometheus.Counter
	ChangesTotal     *prometheus.CounterVec
	SnapshotRecords  prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated
// registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	fetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menuwatch_fetches_total",
			Help: "Page fetch attempts by outcome.",
		},
		[]string{"outcome"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "menuwatch_fetch_duration_seconds",
			Help:    "Latency of menu page fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)
	fetchErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menuwatch_fetch_errors_total",
			Help: "Fetch failures by error kind.",
		},
		[]string{"kind"},
	)
	rows := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menuwatch_rows_total",
			Help: "Scraped rows by classification.",
		},
		[]string{"kind"},
	)
	parseWarnings := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menuwatch_parse_warnings_total",
			Help: "Cells that failed to parse and degraded to a default.",
		},
		[]string{"field"},
	)
	collisions := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "menuwatch_identity_collisions_total",
			Help: "Rows whose identity collided with an earlier row in the same run.",
		},
	)
	changes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menuwatch_changes_total",
			Help: "Change events appended to the log by type.",
		},
		[]string{"type"},
	)
	snapshotRecords := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "menuwatch_snapshot_records",
			Help: "Records in the most recent snapshot.",
		},
	)

	registry.MustRegister(fetches, fetchDuration, fetchErrors, rows,
		parseWarnings, collisions, changes, snapshotRecords)

	return &Metrics{
		Registry:         registry,
		FetchesTotal:     fetches,
		FetchDuration:    fetchDuration,
		FetchErrorsTotal: fetchErrors,
		RowsTotal:        rows,
		ParseWarnings:    parseWarnings,
		CollisionsTotal:  collisions,
		ChangesTotal:     changes,
		SnapshotRecords:  snapshotRecords,
	}
}

// IncFetch counts one fetch attempt by outcome.
func (m *Metrics) IncFetch(outcome string) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetchDuration records one fetch latency.
func (m *Metrics) ObserveFetchDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// IncFetchError counts one fetch failure by kind.
func (m *Metrics) IncFetchError(kind string) {
	if m == nil {
		return
	}
	m.FetchErrorsTotal.WithLabelValues(kind).Inc()
}

// IncRow counts one classified row.
func (m *Metrics) IncRow(kind string) {
	if m == nil {
		return
	}
	m.RowsTotal.WithLabelValues(kind).Inc()
}

// IncParseWarning counts one degraded cell by field.
func (m *Metrics) IncParseWarning(field string) {
	if m == nil {
		return
	}
	m.ParseWarnings.WithLabelValues(field).Inc()
}

// IncCollision counts one duplicate identity within a run.
func (m *Metrics) IncCollision() {
	if m == nil {
		return
	}
	m.CollisionsTotal.Inc()
}

// IncChange counts one emitted change event by type.
func (m *Metrics) IncChange(changeType string) {
	if m == nil {
		return
	}
	m.ChangesTotal.WithLabelValues(changeType).Inc()
}

// SetSnapshotSize records the size of the latest snapshot.
func (m *Metrics) SetSnapshotSize(n int) {
	if m == nil {
		return
	}
	m.SnapshotRecords.Set(float64(n))
}
