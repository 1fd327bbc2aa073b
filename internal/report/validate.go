// Package report validates upload files against the template contract and
// renders the findings as an XLSX workbook for the data team.
package report

import (
	"regexp"
	"strconv"

	"github.com/final-funnel/funnel-cli/internal/model"
	"github.com/final-funnel/funnel-cli/internal/normalize"
)

// scientificRe flags cells Excel mangled into scientific notation, which
// usually means a phone number or zipcode lost digits on export.
var scientificRe = regexp.MustCompile(`^\s*[-+]?\d+(\.\d+)?e[+-]?\d+\s*$`)

// textColumns are columns where a purely numeric cell is almost certainly a
// column shift or an export artifact.
var textColumns = map[string]struct{}{
	"comp_name":    {},
	"firstname":    {},
	"lastname":     {},
	"jobtitle":     {},
	"manlevel":     {},
	"comp_city":    {},
	"comp_state":   {},
	"comp_country": {},
}

// CellIssue points at one offending cell. Row is 1-based, header excluded.
type CellIssue struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value"`
}

// Validation is the outcome of checking one upload file.
type Validation struct {
	MissingColumns     []string    `json:"missing_columns,omitempty"`
	UnexpectedColumns  []string    `json:"unexpected_columns,omitempty"`
	OutOfOrder         bool        `json:"out_of_order,omitempty"`
	LengthViolations   []CellIssue `json:"length_violations,omitempty"`
	ScientificNotation []CellIssue `json:"scientific_notation,omitempty"`
	NumericText        []CellIssue `json:"numeric_text,omitempty"`
	RowCount           int         `json:"row_count"`
}

// SchemaOK reports whether the header matches the template. Ingest refuses
// files where this is false.
func (v Validation) SchemaOK() bool {
	return len(v.MissingColumns) == 0 && len(v.UnexpectedColumns) == 0 && !v.OutOfOrder
}

// Clean reports whether the file has no findings at all.
func (v Validation) Clean() bool {
	return v.SchemaOK() &&
		len(v.LengthViolations) == 0 &&
		len(v.ScientificNotation) == 0 &&
		len(v.NumericText) == 0
}

// Validate checks an upload's header and cells against the template contract.
func Validate(header []string, rows [][]string) Validation {
	v := Validation{RowCount: len(rows)}

	expected := make(map[string]int, len(model.UploadColumns))
	for i, col := range model.UploadColumns {
		expected[col] = i
	}
	got := make(map[string]int, len(header))
	for i, col := range header {
		got[col] = i
	}

	for _, col := range model.UploadColumns {
		if _, ok := got[col]; !ok {
			v.MissingColumns = append(v.MissingColumns, col)
		}
	}
	for _, col := range header {
		if _, ok := expected[col]; !ok {
			v.UnexpectedColumns = append(v.UnexpectedColumns, col)
		}
	}
	if len(v.MissingColumns) == 0 && len(v.UnexpectedColumns) == 0 {
		for i, col := range header {
			if expected[col] != i {
				v.OutOfOrder = true
				break
			}
		}
	}

	for rowIdx, cells := range rows {
		for colIdx, cell := range cells {
			if colIdx >= len(model.UploadColumns) || cell == "" {
				continue
			}
			col := model.UploadColumns[colIdx]
			issue := CellIssue{Row: rowIdx + 1, Column: col, Value: cell}

			if max, ok := normalize.MaxLengths[col]; ok && len([]rune(cell)) > max {
				v.LengthViolations = append(v.LengthViolations, issue)
			}
			if scientificRe.MatchString(cell) {
				v.ScientificNotation = append(v.ScientificNotation, issue)
			}
			if _, isText := textColumns[col]; isText {
				if _, err := strconv.ParseFloat(cell, 64); err == nil {
					v.NumericText = append(v.NumericText, issue)
				}
			}
		}
	}
	return v
}
