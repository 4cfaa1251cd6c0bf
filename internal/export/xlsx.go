// Package export serializes result tables into downloadable formats.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/linemodel/internal/table"
)

// DefaultSheet is the worksheet name used when none is given.
const DefaultSheet = "Sheet1"

// Format identifies a download format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ParseFormat resolves a format name, defaulting to CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json"
	default:
		return "text/csv; charset=utf-8"
	}
}

// FileName swaps the extension of a default .csv file name for the format.
func (f Format) FileName(csvName string) string {
	if f == FormatCSV {
		return csvName
	}
	return strings.TrimSuffix(csvName, ".csv") + "." + string(f)
}

// WriteXLSX writes t as a single-sheet workbook. Cells that parse as numbers
// are stored as numbers so spreadsheet formulas work on them; everything else
// is written as text. Missing cells stay blank.
func WriteXLSX(w io.Writer, t *table.Table, sheet string) error {
	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	defer f.Close()

	if sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, sheet); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("create stream writer: %w", err)
	}

	header := make([]interface{}, t.NumCols())
	for i, c := range t.Columns() {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for r := 0; r < t.NumRows(); r++ {
		row := t.Row(r)
		values := make([]interface{}, len(row))
		for i, c := range row {
			if !c.Valid {
				continue
			}
			if v, ok := table.ParseNumber(c); ok {
				values[i] = v
			} else {
				values[i] = c.String
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("write row %d: %w", r+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
