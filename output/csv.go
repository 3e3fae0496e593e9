package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/petroleum-report/models"
)

// CSVWriter writes one <name>.csv file per table into a directory.
type CSVWriter struct {
	dir   string
	mu    sync.Mutex
	files []string
}

// NewCSVWriter prepares dir, creating it if needed.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if dir == "" {
		return nil, fmt.Errorf("csv output needs a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create csv directory %q: %w", dir, err)
	}
	return &CSVWriter{dir: dir}, nil
}

// Write writes every table to its own file, replacing earlier content.
func (cw *CSVWriter) Write(tables []*models.Table) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, t := range tables {
		path := filepath.Join(cw.dir, t.Name+".csv")
		if err := writeCSV(path, t); err != nil {
			return err
		}
		cw.files = append(cw.files, path)
	}
	return nil
}

func writeCSV(path string, t *models.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range t.Rows {
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = plainCell(cell)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return f.Close()
}

// Close is a no-op; files are closed as they are written.
func (cw *CSVWriter) Close() error {
	return nil
}

// Validate ensures every written file has content.
func (cw *CSVWriter) Validate() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if len(cw.files) == 0 {
		return fmt.Errorf("no csv files written")
	}
	for _, path := range cw.files {
		if err := validateFile("csv", path); err != nil {
			return err
		}
	}
	return nil
}
