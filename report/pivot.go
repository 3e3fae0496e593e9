// Package report computes the derived petroleum sales tables.
//
// Every computation works on an in-memory Dataset and returns a fresh result;
// nothing here reads from or writes to the relational store.
package report

import (
	"math"
	"sort"

	"github.com/aluiziolira/petroleum-report/models"
)

// SaleLabel is the outer label of the pivoted sale columns.
const SaleLabel = "sale"

// CollapseLabel flattens a two-level column label: the inner label when
// present, otherwise the outer one.
func CollapseLabel(outer, inner string) string {
	if inner != "" {
		return inner
	}
	return outer
}

// Normalized is the wide form of a dataset: one row per (country, year) and
// one column per petroleum product holding the summed sale.
type Normalized struct {
	Products []string
	Rows     []NormalizedRow
}

// NormalizedRow is one (country, year) row. Sales is aligned with
// Normalized.Products; NaN marks a product with no record for the key.
type NormalizedRow struct {
	Country string
	Year    int
	Sales   []float64
}

// Normalize groups records by (country, year) and pivots products into
// columns using sum aggregation. Rows are ordered by country then year.
func Normalize(ds *models.Dataset) *Normalized {
	products := ds.Products()
	col := indexStrings(products)

	type key struct {
		country string
		year    int
	}
	rows := make(map[key]*NormalizedRow)
	if ds != nil {
		for _, r := range ds.Records {
			k := key{r.Country, r.Year}
			row, ok := rows[k]
			if !ok {
				row = &NormalizedRow{Country: r.Country, Year: r.Year, Sales: nanSlice(len(products))}
				rows[k] = row
			}
			addSale(&row.Sales[col[r.Product]], r.Sale)
		}
	}

	out := &Normalized{Products: products, Rows: make([]NormalizedRow, 0, len(rows))}
	for _, row := range rows {
		out.Rows = append(out.Rows, *row)
	}
	sort.Slice(out.Rows, func(i, j int) bool {
		if out.Rows[i].Country != out.Rows[j].Country {
			return out.Rows[i].Country < out.Rows[j].Country
		}
		return out.Rows[i].Year < out.Rows[j].Year
	})
	return out
}

// Columns returns the collapsed product column labels.
func (n *Normalized) Columns() []string {
	cols := make([]string, len(n.Products))
	for i, p := range n.Products {
		cols[i] = CollapseLabel(SaleLabel, p)
	}
	return cols
}

// Table renders the normalized form.
func (n *Normalized) Table() *models.Table {
	cols := append([]string{"country", "year"}, n.Columns()...)
	t := models.NewTable("normalized_form", "Normalized form", cols...)
	for _, row := range n.Rows {
		cells := make([]any, 0, len(cols))
		cells = append(cells, row.Country, row.Year)
		for _, v := range row.Sales {
			cells = append(cells, v)
		}
		t.AddRow(cells...)
	}
	return t
}

func indexStrings(values []string) map[string]int {
	idx := make(map[string]int, len(values))
	for i, v := range values {
		idx[v] = i
	}
	return idx
}

func indexInts(values []int) map[int]int {
	idx := make(map[int]int, len(values))
	for i, v := range values {
		idx[v] = i
	}
	return idx
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func nanMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = nanSlice(cols)
	}
	return m
}

// addSale adds v to a cell that starts out as NaN. An unreported (NaN) sale
// leaves the cell untouched.
func addSale(cell *float64, v float64) {
	if math.IsNaN(v) {
		return
	}
	if math.IsNaN(*cell) {
		*cell = 0
	}
	*cell += v
}
