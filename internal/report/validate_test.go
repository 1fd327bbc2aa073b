package report

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/final-funnel/funnel-cli/internal/model"
)

func TestValidate_CleanFile(t *testing.T) {
	rows := [][]string{
		{"Acme", "acme.com", "1M", "Software", "", "Jane", "Doe", "CTO", "C-Level",
			"jane@acme.com", "", "US", "", "", "", "", "United States", "", "Qualified", "51-200"},
	}
	v := Validate(model.UploadColumns, rows)

	assert.True(t, v.SchemaOK())
	assert.True(t, v.Clean())
	assert.Equal(t, 1, v.RowCount)
}

func TestValidate_MissingAndUnexpectedColumns(t *testing.T) {
	header := append([]string{}, model.UploadColumns[:19]...)
	header = append(header, "extra_col")

	v := Validate(header, nil)

	assert.False(t, v.SchemaOK())
	assert.Equal(t, []string{"empsize"}, v.MissingColumns)
	assert.Equal(t, []string{"extra_col"}, v.UnexpectedColumns)
}

func TestValidate_OutOfOrder(t *testing.T) {
	header := append([]string{}, model.UploadColumns...)
	header[0], header[1] = header[1], header[0]

	v := Validate(header, nil)

	assert.True(t, v.OutOfOrder)
	assert.False(t, v.SchemaOK())
	assert.Empty(t, v.MissingColumns)
}

func TestValidate_CellIssues(t *testing.T) {
	row := make([]string, len(model.UploadColumns))
	row[0] = strings.Repeat("x", 300) // comp_name over 255
	row[5] = "12345"                  // numeric firstname
	row[12] = "1.2345e+10"            // phone in scientific notation

	v := Validate(model.UploadColumns, [][]string{row})

	require.Len(t, v.LengthViolations, 1)
	assert.Equal(t, CellIssue{Row: 1, Column: "comp_name", Value: row[0]}, v.LengthViolations[0])

	require.Len(t, v.ScientificNotation, 1)
	assert.Equal(t, "comp_phone", v.ScientificNotation[0].Column)

	require.Len(t, v.NumericText, 1)
	assert.Equal(t, "firstname", v.NumericText[0].Column)

	assert.True(t, v.SchemaOK())
	assert.False(t, v.Clean())
}

func TestWriteWorkbook(t *testing.T) {
	v := Validate(model.UploadColumns, [][]string{
		{strings.Repeat("x", 300)},
	})

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteWorkbook(v, path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	assert.NotNil(t, f.Sheet["Summary"])
	assert.NotNil(t, f.Sheet["Length Violations"])
	assert.Nil(t, f.Sheet["Numeric Text"])
}
