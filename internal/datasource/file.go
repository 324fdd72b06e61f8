package datasource

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"dashboard-go/internal/table"
)

// Format is the serialization of a tabular payload.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat picks a format from a file name and, failing that, a MIME
// type. CSV is the default.
func DetectFormat(name, contentType string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xltx":
		return FormatXLSX
	case ".csv", ".txt", ".tsv":
		return FormatCSV
	}
	if strings.Contains(contentType, "spreadsheetml") || strings.Contains(contentType, "ms-excel") {
		return FormatXLSX
	}
	return FormatCSV
}

// Decode reads r in the given format.
func Decode(r io.Reader, f Format) (*table.Table, error) {
	if f == FormatXLSX {
		return ReadXLSX(r)
	}
	return ReadCSV(r)
}

// File loads a CSV or XLSX file from disk.
type File struct {
	Path string
}

func newFile(cfg Config) (Source, error) {
	path := cfg.String("path")
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	return &File{Path: path}, nil
}

func (f *File) Name() string { return "file:" + filepath.Base(f.Path) }

func (f *File) Load(ctx context.Context) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	t, err := Decode(file, DetectFormat(f.Path, ""))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	return t, nil
}
