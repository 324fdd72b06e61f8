package datasource

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"dashboard-go/internal/table"
)

// ReadCSV parses a UTF-8 CSV stream whose first record is the header. Comma
// and semicolon separators are both accepted; rows with a different number
// of fields are padded or cut to the header width.
func ReadCSV(r io.Reader) (*table.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &table.EmptyInputError{Reason: "csv has no header row"}
	}

	headers, rows, err := parseCSV(data, ',')
	if err != nil || (len(headers) == 1 && strings.Contains(headers[0], ";")) {
		// Try with semicolon separator
		headers, rows, err = parseCSV(data, ';')
		if err != nil {
			return nil, fmt.Errorf("failed to read headers: %w", err)
		}
	}

	return table.FromStrings(headers, rows), nil
}

func parseCSV(data []byte, comma rune) ([]string, [][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = comma
	reader.FieldsPerRecord = -1 // Allow variable fields
	reader.LazyQuotes = true    // Allow bare quotes in non-quoted fields
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, nil, err
	}

	rows := [][]string{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				// Skip malformed rows
				continue
			}
			return nil, nil, err
		}
		rows = append(rows, record)
	}
	return headers, rows, nil
}
