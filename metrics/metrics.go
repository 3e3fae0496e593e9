// Package metrics bundles the Prometheus collectors shared by the report stages.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a report run.
type Metrics struct {
	Registry         *prometheus.Registry
	FetchTotal       *prometheus.CounterVec
	FetchDuration    prometheus.Histogram
	RecordsLoaded    prometheus.Gauge
	StoreRowsWritten *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	fetchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petroreport_fetch_total",
			Help: "Dataset fetches by outcome.",
		},
		[]string{"outcome"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "petroreport_fetch_duration_seconds",
			Help:    "HTTP latency of dataset fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)
	recordsLoaded := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "petroreport_records_loaded",
			Help: "Records in the most recently loaded dataset.",
		},
	)
	rowsWritten := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petroreport_store_rows_written_total",
			Help: "Rows written to the relational store by table.",
		},
		[]string{"table"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "petroreport_stage_duration_seconds",
			Help:    "Duration of report stages.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petroreport_query_cache_lookups_total",
			Help: "Query result cache lookups by result.",
		},
		[]string{"result"},
	)

	registry.MustRegister(fetchTotal, fetchDuration, recordsLoaded, rowsWritten, stageDuration, cacheLookups)

	return &Metrics{
		Registry:         registry,
		FetchTotal:       fetchTotal,
		FetchDuration:    fetchDuration,
		RecordsLoaded:    recordsLoaded,
		StoreRowsWritten: rowsWritten,
		StageDuration:    stageDuration,
		CacheLookups:     cacheLookups,
	}
}

// IncFetch counts a fetch with its outcome label.
func (m *Metrics) IncFetch(outcome string) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetch records an HTTP fetch duration.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// SetRecords records the size of the loaded dataset.
func (m *Metrics) SetRecords(n int) {
	if m == nil {
		return
	}
	m.RecordsLoaded.Set(float64(n))
}

// AddRows counts rows written to a store table.
func (m *Metrics) AddRows(table string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StoreRowsWritten.WithLabelValues(table).Add(float64(n))
}

// ObserveStage records how long a named stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// IncCache counts a cache hit or miss.
func (m *Metrics) IncCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// WriteTextfile writes the registry in the Prometheus text format, suitable for
// the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
