package report

import (
	"math"
	"testing"

	"github.com/aluiziolira/petroleum-report/metrics"
	"github.com/aluiziolira/petroleum-report/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func dataset(records ...models.Record) *models.Dataset {
	return &models.Dataset{Source: "test", Records: records}
}

func rec(country string, year int, product string, sale float64) models.Record {
	return models.Record{Country: country, Year: year, Product: product, Sale: sale}
}

// eightYears has two products over 2007..2014. Kerosene is never reported.
func eightYears() *models.Dataset {
	ds := dataset()
	for y := 2007; y <= 2014; y++ {
		ds.Records = append(ds.Records,
			rec("Nepal", y, "Diesel", float64(y-2000)*10),
			rec("India", y, "Diesel", 0),
			rec("India", y, "Petrol", 100),
			rec("Nepal", y, "Kerosene", 0),
		)
	}
	return ds
}

func TestScenarioZeroSale(t *testing.T) {
	ds := dataset(
		rec("A", 2000, "diesel", 10),
		rec("A", 2000, "diesel", 0),
	)

	totals := TotalSales(ds)
	if got := totals.Total("A", "diesel"); got != 10 {
		t.Fatalf("A/diesel total = %v, want 10", got)
	}

	minimum, err := MinimumSales(ds).Lookup("diesel")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !minimum.Found || minimum.Minimum != 10 || minimum.Year != 2000 {
		t.Fatalf("diesel minimum = %+v, want 10/2000", minimum)
	}
}

func TestUnreportedSaleIsSkipped(t *testing.T) {
	ds := dataset(
		rec("A", 2000, "diesel", math.NaN()),
		rec("A", 2001, "diesel", 4),
		rec("A", 2000, "petrol", math.NaN()),
	)

	totals := TotalSales(ds)
	if got := totals.Total("A", "diesel"); got != 4 {
		t.Fatalf("A/diesel total = %v, want 4", got)
	}
	if got := totals.Total("A", "petrol"); !math.IsNaN(got) {
		t.Fatalf("A/petrol total = %v, want NaN", got)
	}

	averages := IntervalAverages(ds)
	if got, ok := averages.Average("diesel", 2000); !ok || got != 4 {
		t.Fatalf("diesel (2000, 2001) = %v, %v; want 4", got, ok)
	}
	if got, ok := averages.Average("petrol", 2000); !ok || got != 0 {
		t.Fatalf("petrol (2000, 2001) = %v, %v; want 0", got, ok)
	}

	minimums := MinimumSales(ds)
	diesel, _ := minimums.Lookup("diesel")
	if !diesel.Found || diesel.Minimum != 4 || diesel.Year != 2001 {
		t.Fatalf("diesel minimum = %+v, want 4/2001", diesel)
	}
	petrol, _ := minimums.Lookup("petrol")
	if petrol.Found || !math.IsNaN(petrol.Minimum) {
		t.Fatalf("petrol minimum = %+v, want not found", petrol)
	}

	norm := Normalize(ds)
	if len(norm.Rows) != 2 {
		t.Fatalf("normalized rows = %d, want 2", len(norm.Rows))
	}
	for _, v := range norm.Rows[0].Sales {
		if !math.IsNaN(v) {
			t.Fatalf("A/2000 cells = %v, want all NaN", norm.Rows[0].Sales)
		}
	}
}

func TestTotalSales(t *testing.T) {
	ds := dataset(
		rec("Nepal", 2007, "Diesel", 100),
		rec("Nepal", 2008, "Diesel", 50.5),
		rec("Nepal", 2008, "Petrol", 0),
		rec("India", 2007, "Diesel", 20),
	)

	got := TotalSales(ds)
	if len(got.Countries) != 2 || got.Countries[0] != "India" || got.Countries[1] != "Nepal" {
		t.Fatalf("countries = %v, want [India Nepal]", got.Countries)
	}
	if len(got.Products) != 2 || got.Products[0] != "Diesel" || got.Products[1] != "Petrol" {
		t.Fatalf("products = %v, want [Diesel Petrol]", got.Products)
	}

	tests := []struct {
		country, product string
		want             float64
	}{
		{"Nepal", "Diesel", 150.5},
		{"Nepal", "Petrol", 0},
		{"India", "Diesel", 20},
	}
	for _, tt := range tests {
		if v := got.Total(tt.country, tt.product); v != tt.want {
			t.Fatalf("%s/%s = %v, want %v", tt.country, tt.product, v, tt.want)
		}
	}
	if v := got.Total("India", "Petrol"); !math.IsNaN(v) {
		t.Fatalf("India/Petrol should be NaN, got %v", v)
	}
}

func TestTotalSalesTable(t *testing.T) {
	table := TotalSales(dataset(rec("Nepal", 2007, "Diesel", 1), rec("India", 2007, "Petrol", 2))).Table()

	if table.Name != TotalSalesTable || table.Title != TotalSalesTitle {
		t.Fatalf("unexpected table identity %q/%q", table.Name, table.Title)
	}
	wantCols := []string{"country", "Diesel", "Petrol"}
	if len(table.Columns) != len(wantCols) {
		t.Fatalf("columns = %v, want %v", table.Columns, wantCols)
	}
	for i, c := range wantCols {
		if table.Columns[i] != c {
			t.Fatalf("columns = %v, want %v", table.Columns, wantCols)
		}
	}
	if len(table.Rows) != 2 || table.Rows[0][0] != "India" {
		t.Fatalf("rows = %v", table.Rows)
	}
	if !models.IsMissing(table.Rows[0][1]) {
		t.Fatalf("India/Diesel cell should be missing, got %v", table.Rows[0][1])
	}
}

func TestIntervalAveragesEightYears(t *testing.T) {
	got := IntervalAverages(eightYears())

	// 3 products x 4 intervals.
	if len(got.Rows) != 12 {
		t.Fatalf("rows = %d, want 12", len(got.Rows))
	}

	// Diesel: India reports zero every year so only Nepal counts.
	// 2007 -> 70, 2008 -> 80.
	if avg, ok := got.Average("Diesel", 2007); !ok || avg != 150 {
		t.Fatalf("Diesel 2007-2008 = %v (%v), want 150", avg, ok)
	}
	if avg, ok := got.Average("Diesel", 2013); !ok || avg != 130+140 {
		t.Fatalf("Diesel 2013-2014 = %v (%v), want 270", avg, ok)
	}
	if avg, ok := got.Average("Petrol", 2009); !ok || avg != 200 {
		t.Fatalf("Petrol 2009-2010 = %v (%v), want 200", avg, ok)
	}

	// Kerosene is never reported: each year contributes 0, never NaN.
	for _, start := range []int{2007, 2009, 2011, 2013} {
		avg, ok := got.Average("Kerosene", start)
		if !ok || avg != 0 {
			t.Fatalf("Kerosene %d = %v (%v), want 0", start, avg, ok)
		}
	}

	first := got.Rows[0]
	if first.Product != "Diesel" || first.YearLabel() != "(2007, 2008)" {
		t.Fatalf("first row = %+v, want Diesel (2007, 2008)", first)
	}
}

func TestIntervalAveragesExcludesZeroFromCount(t *testing.T) {
	ds := dataset(
		rec("A", 2000, "diesel", 10),
		rec("B", 2000, "diesel", 0),
		rec("C", 2000, "diesel", 30),
		rec("A", 2001, "diesel", 5),
	)

	got := IntervalAverages(ds)
	// 2000: (10+30)/2 = 20, 2001: 5/1 = 5.
	if avg, ok := got.Average("diesel", 2000); !ok || avg != 25 {
		t.Fatalf("diesel 2000-2001 = %v (%v), want 25", avg, ok)
	}
}

func TestIntervalAveragesOddYearCount(t *testing.T) {
	ds := dataset(
		rec("A", 2000, "diesel", 1),
		rec("A", 2001, "diesel", 2),
		rec("A", 2002, "diesel", 4),
	)

	got := IntervalAverages(ds)
	if len(got.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(got.Rows))
	}
	last := got.Rows[1]
	if len(last.Years) != 1 || last.Years[0] != 2002 || last.Average != 4 {
		t.Fatalf("trailing interval = %+v, want single year 2002 average 4", last)
	}
}

func TestPairYears(t *testing.T) {
	pairs := PairYears([]int{1, 2, 3, 4, 5, 6, 7, 8})
	if len(pairs) != 4 {
		t.Fatalf("pairs = %d, want 4", len(pairs))
	}
	for i, p := range pairs {
		if len(p) != 2 || p[0] != 2*i+1 || p[1] != 2*i+2 {
			t.Fatalf("pair %d = %v", i, p)
		}
	}
	if got := PairYears(nil); len(got) != 0 {
		t.Fatalf("empty years should give no pairs, got %v", got)
	}
}

func TestMinimumSales(t *testing.T) {
	ds := dataset(
		rec("A", 2000, "diesel", 40),
		rec("B", 2000, "diesel", 0),
		rec("A", 2001, "diesel", 0),
		rec("A", 2002, "diesel", 15),
		rec("B", 2002, "diesel", 10),
		rec("A", 2003, "diesel", 25),
		rec("A", 2000, "kerosene", 0),
		rec("A", 2001, "kerosene", 0),
		rec("A", 2000, "petrol", 7),
		rec("A", 2001, "petrol", 7),
	)

	got := MinimumSales(ds)

	diesel, _ := got.Lookup("diesel")
	if !diesel.Found || diesel.Minimum != 25 {
		t.Fatalf("diesel = %+v, want minimum 25", diesel)
	}
	// 2002 and 2003 both total 25: the earliest year wins.
	if diesel.Year != 2002 {
		t.Fatalf("diesel tie should resolve to 2002, got %d", diesel.Year)
	}

	petrol, _ := got.Lookup("petrol")
	if !petrol.Found || petrol.Minimum != 7 || petrol.Year != 2000 {
		t.Fatalf("petrol = %+v, want 7/2000", petrol)
	}

	kerosene, _ := got.Lookup("kerosene")
	if kerosene.Found || !math.IsNaN(kerosene.Minimum) {
		t.Fatalf("kerosene = %+v, want NaN and no year", kerosene)
	}

	if _, err := got.Lookup("lpg"); err == nil {
		t.Fatalf("expected error for unknown product")
	}
}

func TestMinimumSalesTable(t *testing.T) {
	table := MinimumSales(dataset(
		rec("A", 2000, "diesel", 3),
		rec("A", 2000, "kerosene", 0),
	)).Table()

	if len(table.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(table.Rows))
	}
	if table.Rows[0][0] != "Minimum Values" || table.Rows[1][0] != "Corresponding Year" {
		t.Fatalf("row labels = %v / %v", table.Rows[0][0], table.Rows[1][0])
	}
	if table.Rows[0][1] != 3.0 || table.Rows[1][1] != 2000 {
		t.Fatalf("diesel column = %v / %v, want 3 / 2000", table.Rows[0][1], table.Rows[1][1])
	}
	if !models.IsMissing(table.Rows[0][2]) || !models.IsMissing(table.Rows[1][2]) {
		t.Fatalf("kerosene column should be missing, got %v / %v", table.Rows[0][2], table.Rows[1][2])
	}
}

func TestResultsCoverEveryCountryAndProduct(t *testing.T) {
	ds := eightYears()
	r := &Report{
		TotalSales:       TotalSales(ds),
		IntervalAverages: IntervalAverages(ds),
		MinimumSales:     MinimumSales(ds),
	}

	if len(r.TotalSales.Countries) != 2 || len(r.TotalSales.Products) != 3 {
		t.Fatalf("total sales dimensions = %v x %v", r.TotalSales.Countries, r.TotalSales.Products)
	}
	if len(r.MinimumSales.Sales) != 3 {
		t.Fatalf("minimum sales products = %d, want 3", len(r.MinimumSales.Sales))
	}
	seen := make(map[string]bool)
	for _, row := range r.IntervalAverages.Rows {
		seen[row.Product] = true
	}
	if len(seen) != 3 {
		t.Fatalf("interval products = %v, want 3", seen)
	}
	if tables := r.Tables(); len(tables) != 3 || tables[1].Title != IntervalAveragesTitle {
		t.Fatalf("unexpected tables %v", tables)
	}
}

func TestNormalize(t *testing.T) {
	ds := dataset(
		rec("Nepal", 2008, "Diesel", 5),
		rec("Nepal", 2007, "Diesel", 1),
		rec("Nepal", 2007, "Diesel", 2),
		rec("India", 2007, "Petrol", 4),
	)

	n := Normalize(ds)
	if len(n.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(n.Rows))
	}
	if n.Rows[0].Country != "India" || n.Rows[1].Year != 2007 || n.Rows[2].Year != 2008 {
		t.Fatalf("rows not ordered by country, year: %+v", n.Rows)
	}
	if n.Rows[1].Sales[0] != 3 {
		t.Fatalf("Nepal/2007/Diesel = %v, want summed 3", n.Rows[1].Sales[0])
	}
	if !math.IsNaN(n.Rows[0].Sales[0]) {
		t.Fatalf("India/2007/Diesel should be NaN, got %v", n.Rows[0].Sales[0])
	}

	table := n.Table()
	want := []string{"country", "year", "Diesel", "Petrol"}
	for i, c := range want {
		if table.Columns[i] != c {
			t.Fatalf("columns = %v, want %v", table.Columns, want)
		}
	}
}

func TestCollapseLabel(t *testing.T) {
	if got := CollapseLabel("sale", "Diesel"); got != "Diesel" {
		t.Fatalf("got %q, want Diesel", got)
	}
	if got := CollapseLabel("country", ""); got != "country" {
		t.Fatalf("got %q, want country", got)
	}
}

func TestEmptyDataset(t *testing.T) {
	for _, ds := range []*models.Dataset{nil, dataset()} {
		if got := TotalSales(ds); len(got.Countries) != 0 {
			t.Fatalf("expected no countries, got %v", got.Countries)
		}
		if got := IntervalAverages(ds); len(got.Rows) != 0 {
			t.Fatalf("expected no interval rows, got %v", got.Rows)
		}
		if got := MinimumSales(ds); len(got.Sales) != 0 {
			t.Fatalf("expected no minimums, got %v", got.Sales)
		}
	}
}

func TestGeneratorCachesByFingerprint(t *testing.T) {
	m := metrics.New()
	g, err := NewGenerator(8, m)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}

	ds := eightYears()
	first := g.Run(ds)
	second := g.Run(ds)

	if first.TotalSales != second.TotalSales {
		t.Fatalf("second run should reuse cached total sales")
	}
	if g.Len() != 3 {
		t.Fatalf("cache entries = %d, want 3", g.Len())
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")); got != 3 {
		t.Fatalf("cache hits = %v, want 3", got)
	}

	changed := eightYears()
	changed.Records[0].Sale++
	third := g.Run(changed)
	if third.Fingerprint == first.Fingerprint {
		t.Fatalf("changed dataset should have a new fingerprint")
	}
	if third.TotalSales == first.TotalSales {
		t.Fatalf("changed dataset should not hit the cache")
	}
}

func TestNewGeneratorRejectsNonPositiveSize(t *testing.T) {
	if _, err := NewGenerator(0, nil); err == nil {
		t.Fatalf("expected error for zero cache size")
	}
}

func TestFingerprintStable(t *testing.T) {
	if Fingerprint(eightYears()) != Fingerprint(eightYears()) {
		t.Fatalf("fingerprint should be deterministic")
	}
	if Fingerprint(nil) != Fingerprint(dataset()) {
		t.Fatalf("nil and empty datasets should hash the same")
	}

	stored := eightYears()
	stored.Source = "report.db"
	if Fingerprint(stored) != Fingerprint(eightYears()) {
		t.Fatalf("fingerprint should ignore the dataset source")
	}

	quiet := math.Float64frombits(0x7ff8000000000001)
	if Fingerprint(dataset(rec("A", 2000, "diesel", quiet))) != Fingerprint(dataset(rec("A", 2000, "diesel", math.NaN()))) {
		t.Fatalf("every NaN sale should hash the same")
	}
}
