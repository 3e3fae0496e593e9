package output

import (
	"fmt"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/aluiziolira/petroleum-report/models"
)

// XLSXWriter writes a workbook with one sheet per table.
type XLSXWriter struct {
	path    string
	file    *excelize.File
	mu      sync.Mutex
	renamed bool
}

// NewXLSXWriter starts an empty workbook that Write saves to path.
func NewXLSXWriter(path string) (*XLSXWriter, error) {
	if path == "" {
		return nil, fmt.Errorf("xlsx output needs a file")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return &XLSXWriter{path: path, file: excelize.NewFile()}, nil
}

// Write adds a sheet per table and saves the workbook. Missing cells stay blank.
func (xw *XLSXWriter) Write(tables []*models.Table) error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	for _, t := range tables {
		sheet := sheetName(t.Name)
		if !xw.renamed {
			// A new workbook starts with one default sheet.
			if err := xw.file.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
			xw.renamed = true
		} else if _, err := xw.file.NewSheet(sheet); err != nil {
			return fmt.Errorf("add sheet %s: %w", sheet, err)
		}

		for col, header := range t.Columns {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			if err := xw.file.SetCellValue(sheet, cell, header); err != nil {
				return fmt.Errorf("write %s header: %w", sheet, err)
			}
		}
		for r, row := range t.Rows {
			for col, value := range row {
				if models.IsMissing(value) {
					continue
				}
				cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
				if err := xw.file.SetCellValue(sheet, cell, value); err != nil {
					return fmt.Errorf("write %s cell %s: %w", sheet, cell, err)
				}
			}
		}
	}

	if err := xw.file.SaveAs(xw.path); err != nil {
		return fmt.Errorf("save xlsx file: %w", err)
	}
	return nil
}

func (xw *XLSXWriter) Close() error {
	xw.mu.Lock()
	defer xw.mu.Unlock()
	return xw.file.Close()
}

func (xw *XLSXWriter) Validate() error {
	return validateFile("xlsx", xw.path)
}

// sheetName trims a table name to the 31 characters a sheet name allows.
func sheetName(name string) string {
	if len(name) > 31 {
		return name[:31]
	}
	return name
}
