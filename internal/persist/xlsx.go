package persist

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/lowcarbon-viz/lowcarbon/internal/stats"
	"github.com/lowcarbon-viz/lowcarbon/internal/tables"
)

// WorkbookFile is the summary workbook path relative to the output dir.
const WorkbookFile = "derived/summary.xlsx"

func xlsxCell(v any) any {
	switch x := v.(type) {
	case stats.Value:
		if f, ok := x.Float64(); ok {
			return f
		}
		return nil
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return v
	}
}

// WriteWorkbook writes one sheet per table, named after the table, with a
// header row followed by the data. Null cells are left blank.
func WriteWorkbook(path string, data []tables.Data) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	for i, d := range data {
		sheet := d.Schema.Name
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return eris.Wrapf(err, "persist: rename sheet %s", sheet)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return eris.Wrapf(err, "persist: new sheet %s", sheet)
		}

		header := make([]any, len(d.Schema.Columns))
		for j, name := range d.Schema.ColumnNames() {
			header[j] = name
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return eris.Wrapf(err, "persist: %s header", sheet)
		}

		for r, row := range d.Rows {
			cells := make([]any, len(row))
			for j, v := range row {
				cells[j] = xlsxCell(v)
			}
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return eris.Wrap(err, "persist: cell name")
			}
			if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
				return eris.Wrapf(err, "persist: %s row %d", sheet, r)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "persist: create dir for %s", path)
	}
	return eris.Wrapf(f.SaveAs(path), "persist: save %s", path)
}
