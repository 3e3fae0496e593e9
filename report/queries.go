package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aluiziolira/petroleum-report/models"
)

// Table names and headings.
const (
	TotalSalesTable       = "total_sales"
	IntervalAveragesTable = "interval_averages"
	MinimumSalesTable     = "minimum_sales"

	TotalSalesTitle       = "List of overall sale of each petroleum product by country"
	IntervalAveragesTitle = "List of average sale of each petroleum product for 2 years of interval"
	MinimumSalesTitle     = "List of minimum sale of each petroleum product and its corresponding year"
)

// TotalSalesResult holds summed sales per country and product.
type TotalSalesResult struct {
	Countries []string
	Products  []string
	// Totals[i][j] is the sale total for Countries[i] and Products[j];
	// NaN when the pair never occurs.
	Totals [][]float64
}

// TotalSales sums every sale per country and product. Zero sales count;
// unreported ones do not.
func TotalSales(ds *models.Dataset) *TotalSalesResult {
	countries := ds.Countries()
	products := ds.Products()
	row := indexStrings(countries)
	col := indexStrings(products)

	totals := nanMatrix(len(countries), len(products))
	if ds != nil {
		for _, r := range ds.Records {
			addSale(&totals[row[r.Country]][col[r.Product]], r.Sale)
		}
	}
	return &TotalSalesResult{Countries: countries, Products: products, Totals: totals}
}

// Total returns the total for a country and product, NaN when absent.
func (r *TotalSalesResult) Total(country, product string) float64 {
	for i, c := range r.Countries {
		if c != country {
			continue
		}
		for j, p := range r.Products {
			if p == product {
				return r.Totals[i][j]
			}
		}
	}
	return math.NaN()
}

// Table renders the result indexed by country with one column per product.
func (r *TotalSalesResult) Table() *models.Table {
	cols := make([]string, 0, len(r.Products)+1)
	cols = append(cols, "country")
	for _, p := range r.Products {
		cols = append(cols, CollapseLabel(SaleLabel, p))
	}

	t := models.NewTable(TotalSalesTable, TotalSalesTitle, cols...)
	for i, country := range r.Countries {
		cells := make([]any, 0, len(cols))
		cells = append(cells, country)
		for _, v := range r.Totals[i] {
			cells = append(cells, v)
		}
		t.AddRow(cells...)
	}
	return t
}

// IntervalAverage is the combined average of one product over a year interval.
type IntervalAverage struct {
	Product string
	Years   []int
	Average float64
}

// YearLabel formats the interval as "(2007, 2008)".
func (a IntervalAverage) YearLabel() string {
	parts := make([]string, len(a.Years))
	for i, y := range a.Years {
		parts[i] = strconv.Itoa(y)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// IntervalAverageResult holds the long-form interval averages.
type IntervalAverageResult struct {
	Years []int
	Rows  []IntervalAverage
}

// IntervalAverages averages each product's reported sales per year and sums
// the yearly averages over consecutive two-year intervals.
//
// A sale of exactly zero is not reported, and neither is a NaN (null) sale:
// both are left out of the sum and the count. The count is floored at one, so
// a year without reported sales contributes 0 to its interval. Years are
// paired in ascending order; an odd trailing year forms an interval of its own.
func IntervalAverages(ds *models.Dataset) *IntervalAverageResult {
	years := ds.Years()
	products := ds.Products()
	row := indexInts(years)
	col := indexStrings(products)

	sums := make([][]float64, len(years))
	counts := make([][]int, len(years))
	for i := range years {
		sums[i] = make([]float64, len(products))
		counts[i] = make([]int, len(products))
	}
	if ds != nil {
		for _, r := range ds.Records {
			if r.Sale == 0 || math.IsNaN(r.Sale) {
				continue
			}
			i, j := row[r.Year], col[r.Product]
			sums[i][j] += r.Sale
			counts[i][j]++
		}
	}

	averages := make([][]float64, len(years))
	for i := range years {
		averages[i] = make([]float64, len(products))
		for j := range products {
			averages[i][j] = sums[i][j] / float64(max(counts[i][j], 1))
		}
	}

	intervals := PairYears(years)
	out := &IntervalAverageResult{
		Years: years,
		Rows:  make([]IntervalAverage, 0, len(products)*len(intervals)),
	}
	for j, product := range products {
		for _, interval := range intervals {
			var combined float64
			for _, y := range interval {
				combined += averages[row[y]][j]
			}
			out.Rows = append(out.Rows, IntervalAverage{
				Product: product,
				Years:   interval,
				Average: combined,
			})
		}
	}
	return out
}

// PairYears splits years into consecutive pairs.
func PairYears(years []int) [][]int {
	pairs := make([][]int, 0, (len(years)+1)/2)
	for i := 0; i < len(years); i += 2 {
		end := min(i+2, len(years))
		pair := make([]int, end-i)
		copy(pair, years[i:end])
		pairs = append(pairs, pair)
	}
	return pairs
}

// Average returns the combined average for a product and interval start year.
func (r *IntervalAverageResult) Average(product string, startYear int) (float64, bool) {
	for _, row := range r.Rows {
		if row.Product == product && len(row.Years) > 0 && row.Years[0] == startYear {
			return row.Average, true
		}
	}
	return 0, false
}

// Table renders the result as Product, Year, Average rows.
func (r *IntervalAverageResult) Table() *models.Table {
	t := models.NewTable(IntervalAveragesTable, IntervalAveragesTitle, "Product", "Year", "Average")
	for _, row := range r.Rows {
		t.AddRow(row.Product, row.YearLabel(), row.Average)
	}
	return t
}

// MinimumSale is the smallest non-zero yearly sale of a product.
type MinimumSale struct {
	Product string
	// Minimum is NaN and Found false when every yearly total is zero.
	Minimum float64
	Year    int
	Found   bool
}

// MinimumSalesResult holds one MinimumSale per product.
type MinimumSalesResult struct {
	Sales []MinimumSale
}

// MinimumSales pivots products against years with summed sales, drops zero
// totals and reports each product's minimum with the earliest year it occurs in.
func MinimumSales(ds *models.Dataset) *MinimumSalesResult {
	products := ds.Products()
	years := ds.Years()
	row := indexStrings(products)
	col := indexInts(years)

	wide := nanMatrix(len(products), len(years))
	if ds != nil {
		for _, r := range ds.Records {
			addSale(&wide[row[r.Product]][col[r.Year]], r.Sale)
		}
	}

	out := &MinimumSalesResult{Sales: make([]MinimumSale, 0, len(products))}
	for i, product := range products {
		m := MinimumSale{Product: product, Minimum: math.NaN()}
		for j, year := range years {
			v := wide[i][j]
			if math.IsNaN(v) || v == 0 {
				continue
			}
			if !m.Found || v < m.Minimum {
				m.Minimum = v
				m.Year = year
				m.Found = true
			}
		}
		out.Sales = append(out.Sales, m)
	}
	return out
}

// Lookup returns the entry for product.
func (r *MinimumSalesResult) Lookup(product string) (MinimumSale, error) {
	for _, s := range r.Sales {
		if s.Product == product {
			return s, nil
		}
	}
	return MinimumSale{}, fmt.Errorf("unknown product %q", product)
}

// Table renders two rows, minimum values and corresponding years, with one
// column per product.
func (r *MinimumSalesResult) Table() *models.Table {
	cols := make([]string, 0, len(r.Sales)+1)
	cols = append(cols, "")
	for _, s := range r.Sales {
		cols = append(cols, s.Product)
	}

	t := models.NewTable(MinimumSalesTable, MinimumSalesTitle, cols...)
	minimums := []any{"Minimum Values"}
	years := []any{"Corresponding Year"}
	for _, s := range r.Sales {
		minimums = append(minimums, s.Minimum)
		if s.Found {
			years = append(years, s.Year)
		} else {
			years = append(years, math.NaN())
		}
	}
	t.AddRow(minimums...)
	t.AddRow(years...)
	return t
}
