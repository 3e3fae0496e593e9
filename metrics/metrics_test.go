package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCounters(t *testing.T) {
	m := New()
	m.IncFetch("success")
	m.IncFetch("success")
	m.IncFetch("timeout")
	m.AddRows("Petroleum_Report", 10)
	m.AddRows("Petroleum_Report", 0)
	m.IncCache(true)
	m.IncCache(false)
	m.IncCache(false)
	m.SetRecords(42)

	if got := testutil.ToFloat64(m.FetchTotal.WithLabelValues("success")); got != 2 {
		t.Fatalf("success fetches = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.FetchTotal.WithLabelValues("timeout")); got != 1 {
		t.Fatalf("timeout fetches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.StoreRowsWritten.WithLabelValues("Petroleum_Report")); got != 10 {
		t.Fatalf("rows written = %v, want 10", got)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")); got != 2 {
		t.Fatalf("cache misses = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RecordsLoaded); got != 42 {
		t.Fatalf("records loaded = %v, want 42", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.IncFetch("success")
	m.ObserveFetch(time.Second)
	m.SetRecords(1)
	m.AddRows("t", 1)
	m.ObserveStage("fetch", time.Second)
	m.IncCache(true)
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "unused.prom")); err != nil {
		t.Fatalf("nil metrics textfile: %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.IncFetch("success")
	m.ObserveStage("query", 10*time.Millisecond)

	path := filepath.Join(t.TempDir(), "petroreport.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	for _, want := range []string{"petroreport_fetch_total", "petroreport_stage_duration_seconds"} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("textfile missing %s:\n%s", want, data)
		}
	}
}
