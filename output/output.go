// Package output renders report tables to the terminal and to export files.
package output

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/aluiziolira/petroleum-report/models"
)

// Writer receives the finished report tables.
type Writer interface {
	Write(tables []*models.Table) error
	Close() error
	Validate() error
}

// Formats lists the accepted -format values.
var Formats = []string{"table", "csv", "json", "yaml", "xlsx"}

// New builds the writer for format. File formats write to path; when console
// is not nil the tables are also rendered there as text.
func New(format, path string, console io.Writer) (Writer, error) {
	format = strings.ToLower(strings.TrimSpace(format))

	var file Writer
	var err error
	switch format {
	case "", "table":
		if path == "" {
			if console == nil {
				console = os.Stdout
			}
			return NewTextWriter(console), nil
		}
		file, err = NewTextFileWriter(path)
	case "csv":
		file, err = NewCSVWriter(path)
	case "json":
		file, err = NewJSONWriter(path)
	case "yaml", "yml":
		file, err = NewYAMLWriter(path)
	case "xlsx":
		file, err = NewXLSXWriter(path)
	default:
		return nil, fmt.Errorf("unknown output format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
	if err != nil {
		return nil, err
	}
	if console == nil {
		return file, nil
	}
	return NewMultiWriter(NewTextWriter(console), file), nil
}

var printer = message.NewPrinter(language.English)

// FormatNumber renders a sale with thousands separators and two decimals.
func FormatNumber(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return printer.Sprintf("%.2f", v)
}

// formatCell renders one table cell for display.
func formatCell(cell any) string {
	switch v := cell.(type) {
	case nil:
		return "NaN"
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return FormatNumber(v)
	default:
		return fmt.Sprint(v)
	}
}

// plainCell renders a cell for machine-readable files: no grouping, and an
// empty string for missing values.
func plainCell(cell any) string {
	if models.IsMissing(cell) {
		return ""
	}
	switch v := cell.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// encodeCell maps missing values to nil for the JSON and YAML encoders.
func encodeCell(cell any) any {
	if models.IsMissing(cell) {
		return nil
	}
	return cell
}

type document struct {
	Title   string   `json:"title" yaml:"title"`
	Columns []string `json:"columns" yaml:"columns"`
	Rows    [][]any  `json:"rows" yaml:"rows"`
}

func documents(tables []*models.Table) map[string]document {
	out := make(map[string]document, len(tables))
	for _, t := range tables {
		rows := make([][]any, len(t.Rows))
		for i, row := range t.Rows {
			cells := make([]any, len(row))
			for j, cell := range row {
				cells[j] = encodeCell(cell)
			}
			rows[i] = cells
		}
		out[t.Name] = document{Title: t.Title, Columns: t.Columns, Rows: rows}
	}
	return out
}

func validateFile(kind, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s file: %w", kind, err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("%s file is empty", kind)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
