package datasource

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"dashboard-go/internal/table"
)

// ReadXLSX reads the first sheet of a workbook. The first row is the header.
// Numeric cells styled with a date format come back as time values; every
// other cell is read as its raw text.
func ReadXLSX(r io.Reader) (*table.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &table.EmptyInputError{Reason: "workbook has no sheets"}
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, &table.EmptyInputError{Reason: fmt.Sprintf("sheet %q is empty", sheet)}
	}

	cells := &sheetCells{f: f, sheet: sheet, dateStyles: map[int]bool{}}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		cells.date1904 = *props.Date1904
	}

	body := make([][]table.Value, len(rows)-1)
	for i, row := range rows[1:] {
		out := make([]table.Value, len(row))
		for j, raw := range row {
			// rows[1:] starts at sheet row 2
			out[j] = cells.value(j+1, i+2, raw)
		}
		body[i] = out
	}
	return table.New(table.Headers(rows[0]), body), nil
}

// sheetCells converts raw cell values, remembering which styles are dates.
type sheetCells struct {
	f          *excelize.File
	sheet      string
	date1904   bool
	dateStyles map[int]bool
}

func (c *sheetCells) value(col, row int, raw string) table.Value {
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || !c.isDate(col, row) {
		return table.FromText(raw)
	}
	t, err := excelize.ExcelDateToTime(serial, c.date1904)
	if err != nil {
		return table.FromText(raw)
	}
	return table.Time(t)
}

func (c *sheetCells) isDate(col, row int) bool {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false
	}
	id, err := c.f.GetCellStyle(c.sheet, cell)
	if err != nil || id == 0 {
		return false
	}
	if known, ok := c.dateStyles[id]; ok {
		return known
	}
	style, err := c.f.GetStyle(id)
	isDate := err == nil && isDateStyle(style)
	c.dateStyles[id] = isDate
	return isDate
}

// isDateStyle reports whether a cell style renders its number as a date.
// Built-in ids 14-22 and 45-47 are the default date and time formats; 27-36
// and 50-58 are their East Asian variants.
func isDateStyle(s *excelize.Style) bool {
	if s.CustomNumFmt != nil {
		return isDateFormatCode(*s.CustomNumFmt)
	}
	switch n := s.NumFmt; {
	case n >= 14 && n <= 22, n >= 27 && n <= 36, n >= 45 && n <= 47, n >= 50 && n <= 58:
		return true
	}
	return false
}

// numFmtLiterals matches quoted text, bracketed modifiers such as [Red] or
// [$-409], and escaped characters in a format code.
var numFmtLiterals = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]|\\.`)

// isDateFormatCode accepts custom codes with a year or day part, e.g.
// "dd.mm.yyyy" or "yyyy-mm-dd hh:mm". Time-only codes are left numeric.
func isDateFormatCode(code string) bool {
	code = strings.ToLower(numFmtLiterals.ReplaceAllString(code, ""))
	return strings.ContainsAny(code, "yd")
}
