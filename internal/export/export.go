package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"dashboard-go/internal/table"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Leads"

// Content types for the download endpoints.
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// WriteCSV writes t as UTF-8 CSV: a header row, then one row per record.
// Missing values are empty cells; times use table.TimeLayout.
func WriteCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, t.Width())
	for i := 0; i < t.Len(); i++ {
		for j, v := range t.Record(i).Values() {
			row[j] = v.Text()
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes t to a single-sheet workbook. Numbers and times keep
// their cell types.
func WriteXLSX(w io.Writer, t *table.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, t.Width())
	for j, c := range t.Columns() {
		header[j] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := 0; i < t.Len(); i++ {
		values := t.Record(i).Values()
		row := make([]any, len(values))
		for j, v := range values {
			row[j] = cell(v)
		}
		addr, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, addr, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func cell(v table.Value) any {
	switch v.Kind() {
	case table.KindNumber:
		f, _ := v.Float()
		return f
	case table.KindTime:
		// Written as text so the export reads back the same in every locale.
		return v.Text()
	case table.KindNull:
		return nil
	}
	return v.Text()
}
