// Package workbook reads downloaded spreadsheets for display.
package workbook

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ErrNoSheets is returned for a workbook without worksheets.
var ErrNoSheets = errors.New("workbook has no sheets")

// Sheet is the head of one worksheet.
type Sheet struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
	// Truncated is set when the sheet has more rows than were read.
	Truncated bool `json:"truncated"`
}

// Preview reads up to maxRows rows from every sheet of an xlsx payload.
// A non-positive maxRows reads all rows.
func Preview(data []byte, maxRows int) ([]Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, ErrNoSheets
	}

	sheets := make([]Sheet, 0, len(names))
	for _, name := range names {
		sheet, err := readSheet(f, name, maxRows)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

func readSheet(f *excelize.File, name string, maxRows int) (Sheet, error) {
	rows, err := f.Rows(name)
	if err != nil {
		return Sheet{}, fmt.Errorf("read sheet %q: %w", name, err)
	}
	defer rows.Close()

	sheet := Sheet{Name: name, Rows: [][]string{}}
	for rows.Next() {
		if maxRows > 0 && len(sheet.Rows) == maxRows {
			sheet.Truncated = true
			break
		}
		cols, err := rows.Columns()
		if err != nil {
			return Sheet{}, fmt.Errorf("read row in %q: %w", name, err)
		}
		sheet.Rows = append(sheet.Rows, cols)
	}
	if err := rows.Error(); err != nil {
		return Sheet{}, fmt.Errorf("iterate sheet %q: %w", name, err)
	}
	return sheet, nil
}
