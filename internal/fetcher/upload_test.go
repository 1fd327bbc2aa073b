package fetcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestReadCSV(t *testing.T) {
	path := writeTemp(t, "upload.csv", []byte("comp_name,comp_domain\n Acme , acme.com \nBeta,beta.io\n"))

	header, rows, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"comp_name", "comp_domain"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Acme", "acme.com"}, rows[0])
}

func TestReadCSV_Latin1Fallback(t *testing.T) {
	// "Café" with a Latin-1 é (0xE9), invalid as UTF-8.
	path := writeTemp(t, "latin1.csv", []byte{'n', 'a', 'm', 'e', '\n', 'C', 'a', 'f', 0xE9, '\n'})

	header, rows, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, header)
	require.Len(t, rows, 1)
	assert.Equal(t, "Café", rows[0][0])
}

func TestReadCSV_VariableFields(t *testing.T) {
	path := writeTemp(t, "ragged.csv", []byte("a,b,c\n1,2\n"))

	_, rows, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, rows[0])
}

func TestReadUpload_UnsupportedExtension(t *testing.T) {
	_, _, err := ReadUpload("upload.txt")
	assert.Error(t, err)
}

func TestReadCSV_Empty(t *testing.T) {
	path := writeTemp(t, "empty.csv", nil)

	_, _, err := ReadCSV(path)
	assert.Error(t, err)
}
