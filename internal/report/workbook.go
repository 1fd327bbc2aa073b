package report

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// WriteWorkbook renders a validation result as an XLSX workbook: a summary
// sheet plus one sheet per non-empty finding category.
func WriteWorkbook(v Validation, path string) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	addKV(summary, "rows", v.RowCount)
	addKV(summary, "schema_ok", boolToInt(v.SchemaOK()))
	addKV(summary, "missing_columns", len(v.MissingColumns))
	addKV(summary, "unexpected_columns", len(v.UnexpectedColumns))
	addKV(summary, "out_of_order", boolToInt(v.OutOfOrder))
	addKV(summary, "length_violations", len(v.LengthViolations))
	addKV(summary, "scientific_notation", len(v.ScientificNotation))
	addKV(summary, "numeric_text", len(v.NumericText))

	if len(v.MissingColumns) > 0 || len(v.UnexpectedColumns) > 0 {
		sheet, err := f.AddSheet("Columns")
		if err != nil {
			return eris.Wrap(err, "report: add columns sheet")
		}
		addKVString(sheet, "missing", strings.Join(v.MissingColumns, ", "))
		addKVString(sheet, "unexpected", strings.Join(v.UnexpectedColumns, ", "))
	}

	for _, cat := range []struct {
		name   string
		issues []CellIssue
	}{
		{"Length Violations", v.LengthViolations},
		{"Scientific Notation", v.ScientificNotation},
		{"Numeric Text", v.NumericText},
	} {
		if len(cat.issues) == 0 {
			continue
		}
		sheet, err := f.AddSheet(cat.name)
		if err != nil {
			return eris.Wrapf(err, "report: add sheet %s", cat.name)
		}
		header := sheet.AddRow()
		header.AddCell().SetString("row")
		header.AddCell().SetString("column")
		header.AddCell().SetString("value")
		for _, issue := range cat.issues {
			row := sheet.AddRow()
			row.AddCell().SetInt(issue.Row)
			row.AddCell().SetString(issue.Column)
			row.AddCell().SetString(issue.Value)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save workbook %s", path)
	}
	return nil
}

func addKV(sheet *xlsx.Sheet, key string, value int) {
	row := sheet.AddRow()
	row.AddCell().SetString(key)
	row.AddCell().SetInt(value)
}

func addKVString(sheet *xlsx.Sheet, key, value string) {
	row := sheet.AddRow()
	row.AddCell().SetString(key)
	row.AddCell().SetString(value)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
