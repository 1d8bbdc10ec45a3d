package fetcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeTestWorkbook(t *testing.T, sheetName string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, v := range cells {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSXFile(t *testing.T) {
	path := writeTestWorkbook(t, "Sheet1", [][]string{
		{"FacilityID", "Region"},
		{"100", "London"},
		{"", ""},
		{"200", "Wales"},
	})

	header, rows, err := ReadXLSXFile(path, XLSXOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"FacilityID", "Region"}, header)
	require.Len(t, rows, 2) // the blank row is dropped
	assert.Equal(t, []string{"100", "London"}, rows[0])
	assert.Equal(t, []string{"200", "Wales"}, rows[1])
}

func TestReadXLSXFileBySheetName(t *testing.T) {
	path := writeTestWorkbook(t, "Frame", [][]string{
		{"FacilityID", "Region"},
		{"100", "London"},
	})

	_, rows, err := ReadXLSXFile(path, XLSXOptions{SheetName: "Frame"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, _, err = ReadXLSXFile(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Missing" not found`)
}

func TestReadXLSXFileMissing(t *testing.T) {
	_, _, err := ReadXLSXFile(filepath.Join(t.TempDir(), "nope.xlsx"), XLSXOptions{})
	require.Error(t, err)
}
