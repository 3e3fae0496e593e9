package models

import "math"

// Table is a render-neutral derived table.
// Cells hold string, int or float64 values; a NaN float means no value.
type Table struct {
	Name    string
	Title   string
	Columns []string
	Rows    [][]any
}

// NewTable returns an empty table with the given columns.
func NewTable(name, title string, columns ...string) *Table {
	return &Table{
		Name:    name,
		Title:   title,
		Columns: columns,
		Rows:    make([][]any, 0),
	}
}

// AddRow appends one row. Short rows are padded with NaN.
func (t *Table) AddRow(cells ...any) {
	row := make([]any, len(t.Columns))
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = math.NaN()
		}
	}
	t.Rows = append(t.Rows, row)
}

// IsMissing reports whether a cell holds no value.
func IsMissing(cell any) bool {
	switch v := cell.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(v)
	}
	return false
}
