package fetcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeWorkbook(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX_Basic(t *testing.T) {
	path := writeWorkbook(t, map[string][][]string{
		"Listings": {
			{"MLS", "Price", "Address"},
			{"SW20123456", "425000", "41200 Sage Road"},
			{"SW20123457", "519000", "58790 Burnt Valley Road"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"MLS", "Price", "Address"}, rows[0])
	assert.Equal(t, []string{"SW20123456", "425000", "41200 Sage Road"}, rows[1])
}

func TestReadXLSX_SheetName(t *testing.T) {
	path := writeWorkbook(t, map[string][][]string{
		"Summary":  {{"ignored"}},
		"Listings": {{"MLS", "Price"}, {"SW20123456", "425000"}},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SheetName: "Listings"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"SW20123456", "425000"}, rows[1])
}

func TestReadXLSX_SheetNameNotFound(t *testing.T) {
	path := writeWorkbook(t, map[string][][]string{"Listings": {{"a"}}})

	_, err := ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := writeWorkbook(t, map[string][][]string{"Listings": {{"a"}}})

	_, err := ReadXLSX(path, XLSXOptions{SheetIndex: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSX_FileNotFound(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open file")
}

func TestReadXLSX_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a workbook"), 0o644))

	_, err := ReadXLSX(path, XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open file")
}

func TestReadXLSX_EmptySheet(t *testing.T) {
	path := writeWorkbook(t, map[string][][]string{"Listings": {}})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
