package report

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/aluiziolira/petroleum-report/metrics"
	"github.com/aluiziolira/petroleum-report/models"
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Report bundles the three derived results computed from one dataset.
type Report struct {
	Fingerprint      uint64
	TotalSales       *TotalSalesResult
	IntervalAverages *IntervalAverageResult
	MinimumSales     *MinimumSalesResult
}

// Tables returns the result tables in presentation order.
func (r *Report) Tables() []*models.Table {
	return []*models.Table{
		r.TotalSales.Table(),
		r.IntervalAverages.Table(),
		r.MinimumSales.Table(),
	}
}

// Generator runs the queries and memoises results per dataset fingerprint.
// Cached results are shared between callers and must not be modified.
type Generator struct {
	cache   *lru.Cache[string, any]
	metrics *metrics.Metrics
}

// NewGenerator builds a generator whose cache holds up to size results.
func NewGenerator(size int, m *metrics.Metrics) (*Generator, error) {
	cache, err := lru.New[string, any](size)
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}
	return &Generator{cache: cache, metrics: m}, nil
}

// Run computes all three results for ds.
func (g *Generator) Run(ds *models.Dataset) *Report {
	fp := Fingerprint(ds)
	return &Report{
		Fingerprint:      fp,
		TotalSales:       memo(g, fp, TotalSalesTable, func() *TotalSalesResult { return TotalSales(ds) }),
		IntervalAverages: memo(g, fp, IntervalAveragesTable, func() *IntervalAverageResult { return IntervalAverages(ds) }),
		MinimumSales:     memo(g, fp, MinimumSalesTable, func() *MinimumSalesResult { return MinimumSales(ds) }),
	}
}

// Len returns the number of cached results.
func (g *Generator) Len() int {
	return g.cache.Len()
}

func memo[T any](g *Generator, fp uint64, query string, compute func() T) T {
	key := fmt.Sprintf("%016x/%s", fp, query)
	if v, ok := g.cache.Get(key); ok {
		if result, ok := v.(T); ok {
			g.metrics.IncCache(true)
			return result
		}
	}
	g.metrics.IncCache(false)

	start := time.Now()
	result := compute()
	g.metrics.ObserveStage("query_"+query, time.Since(start))
	g.cache.Add(key, result)
	return result
}

// Fingerprint hashes the records of ds in order.
func Fingerprint(ds *models.Dataset) uint64 {
	d := xxhash.New()
	if ds == nil {
		return d.Sum64()
	}
	var buf [8]byte
	for _, r := range ds.Records {
		d.WriteString(r.Country)
		d.Write([]byte{0})
		d.WriteString(r.Product)
		d.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(r.Year)))
		d.Write(buf[:])
		sale := r.Sale
		if math.IsNaN(sale) {
			sale = math.NaN()
		}
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(sale))
		d.Write(buf[:])
	}
	return d.Sum64()
}
