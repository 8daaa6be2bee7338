// internal/dataset/dataset.go
package dataset

import (
	"fmt"
	"strings"

	"baliance.com/gooxml/spreadsheet"
	"go.uber.org/zap"
)

// Row is one spreadsheet row: an ordered mapping from column name to a scalar
// value. Column order follows the header row; values are string, float64, or
// bool depending on the cell type. Rows are read-only once loaded.
type Row struct {
	Columns []string
	Values  map[string]any
}

// Value returns the cell value for a column, with presence.
func (r Row) Value(column string) (any, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// Load reads the first sheet of an .xlsx workbook into ordered rows. The
// first sheet row supplies the column names; every following non-empty row
// becomes one Row. Column names and order are caller-supplied and are not
// validated against the target form here.
func Load(path string, logger *zap.Logger) ([]Row, error) {
	log := logger.Named("dataset")

	wb, err := spreadsheet.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %q: %w", path, err)
	}

	sheets := wb.Sheets()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %q has no sheets", path)
	}
	sheet := sheets[0]

	sheetRows := sheet.Rows()
	if len(sheetRows) == 0 {
		return nil, fmt.Errorf("workbook %q has an empty first sheet", path)
	}

	// Header row defines column names and order. Cells are resolved by their
	// sheet column reference, not slice position: the XML omits empty cells
	// entirely, so positional alignment would shift every value after a blank
	// cell into the wrong column.
	nameByIndex := make(map[int]string)
	maxIndex := -1
	for pos, cell := range sheetRows[0].Cells() {
		name := strings.TrimSpace(cell.GetString())
		if name == "" {
			continue
		}
		idx := cellColumnIndex(cell, pos)
		nameByIndex[idx] = name
		if idx > maxIndex {
			maxIndex = idx
		}
	}
	if len(nameByIndex) == 0 {
		return nil, fmt.Errorf("workbook %q has no header row", path)
	}
	columns := make([]string, 0, len(nameByIndex))
	for idx := 0; idx <= maxIndex; idx++ {
		if name, ok := nameByIndex[idx]; ok {
			columns = append(columns, name)
		}
	}

	rows := make([]Row, 0, len(sheetRows)-1)
	for _, sheetRow := range sheetRows[1:] {
		values := make(map[string]any, len(columns))
		empty := true
		for pos, cell := range sheetRow.Cells() {
			name, ok := nameByIndex[cellColumnIndex(cell, pos)]
			if !ok {
				continue
			}
			v := cellValue(cell)
			if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
				continue
			}
			values[name] = v
			empty = false
		}
		if empty {
			continue
		}
		rows = append(rows, Row{Columns: columns, Values: values})
	}

	log.Info("Loaded spreadsheet rows.",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
		zap.Strings("columns", columns))
	return rows, nil
}

// cellColumnIndex resolves a cell's 0-based column index from its sheet
// reference, falling back to the slice position for cells without one.
func cellColumnIndex(cell spreadsheet.Cell, fallback int) int {
	col, err := cell.Column()
	if err != nil || col == "" {
		return fallback
	}
	idx := 0
	for _, r := range col {
		if r < 'A' || r > 'Z' {
			return fallback
		}
		idx = idx*26 + int(r-'A') + 1
	}
	return idx - 1
}

// cellValue extracts a cell as the most faithful scalar type. Numeric cells
// stay numeric so date serials reach the date parser intact.
func cellValue(cell spreadsheet.Cell) any {
	if cell.IsNumber() {
		if n, err := cell.GetValueAsNumber(); err == nil {
			return n
		}
	}
	if cell.IsBool() {
		if b, err := cell.GetValueAsBool(); err == nil {
			return b
		}
	}
	return cell.GetString()
}
