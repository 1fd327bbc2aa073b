// Package fetcher parses upload files (CSV and XLSX) into header + rows.
package fetcher

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/charmap"
)

// ReadUpload parses an upload file by extension. It returns the header row
// and the data rows, every cell whitespace-trimmed.
func ReadUpload(path string) (header []string, rows [][]string, err error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(path)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		return nil, nil, eris.Errorf("fetcher: unsupported upload type %q", filepath.Ext(path))
	}
}

// ReadCSV parses a CSV upload. Files that are not valid UTF-8 are re-decoded
// as Latin-1, the encoding legacy exports arrive in.
func ReadCSV(path string) ([]string, [][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "csv: open file")
	}

	if !utf8.Valid(raw) {
		raw, err = io.ReadAll(charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(raw)))
		if err != nil {
			return nil, nil, eris.Wrap(err, "csv: decode latin-1")
		}
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.LazyQuotes = true

	var all [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, eris.Wrap(err, "csv: read row")
		}
		for i, field := range record {
			record[i] = strings.TrimSpace(field)
		}
		all = append(all, record)
	}

	return split(all)
}

// ReadXLSX parses the first sheet of an XLSX upload.
func ReadXLSX(path string) ([]string, [][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, nil, eris.New("xlsx: file has no sheets")
	}

	var all [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		all = append(all, cells)
	}

	return split(all)
}

func split(all [][]string) ([]string, [][]string, error) {
	if len(all) == 0 {
		return nil, nil, eris.New("fetcher: upload is empty")
	}
	return all[0], all[1:], nil
}
