package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/aluiziolira/petroleum-report/models"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	numberStyle  = cellStyle.Align(lipgloss.Right)
)

// TextWriter prints each table under its heading as a bordered grid.
type TextWriter struct {
	out     io.Writer
	file    *os.File
	mu      sync.Mutex
	written int
}

// NewTextWriter renders to w.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{out: w}
}

// NewTextFileWriter renders to a new file at path.
func NewTextFileWriter(path string) (*TextWriter, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create text file: %w", err)
	}
	return &TextWriter{out: f, file: f}, nil
}

// Write renders tables in order.
func (tw *TextWriter) Write(tables []*models.Table) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	for _, t := range tables {
		if _, err := fmt.Fprintf(tw.out, "%s\n%s\n\n", headingStyle.Render(t.Title), Render(t)); err != nil {
			return fmt.Errorf("write %s: %w", t.Name, err)
		}
		tw.written++
	}
	return nil
}

// Close closes the file, if the writer owns one.
func (tw *TextWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.file == nil {
		return nil
	}
	return tw.file.Close()
}

// Validate ensures at least one table was rendered.
func (tw *TextWriter) Validate() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.written == 0 {
		return fmt.Errorf("no tables rendered")
	}
	if tw.file != nil {
		return validateFile("text", tw.file.Name())
	}
	return nil
}

// Render draws a single table without its heading.
func Render(t *models.Table) string {
	rows := make([][]string, len(t.Rows))
	numeric := make(map[int]bool)
	for i, row := range t.Rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = formatCell(cell)
			if _, ok := cell.(float64); ok {
				numeric[j] = true
			}
		}
		rows[i] = cells
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(t.Columns...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == 0: // header
				return headerStyle
			case numeric[col]:
				return numberStyle
			default:
				return cellStyle
			}
		}).
		String()
}
