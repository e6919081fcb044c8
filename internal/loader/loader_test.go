package loader_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/salesloom-cli/internal/loader"
	"github.com/KaramelBytes/salesloom-cli/internal/sales"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadCSVWithBOM(t *testing.T) {
	p := writeFile(t, "orders.csv", "\ufeffDate,Order ID,Product Name,Quantity,Price,Customer State,Total\n"+
		"2024-11-18,1001,Serum,2,29.99,CA,59.98\n"+
		",,,,,,\n"+
		"2024-11-19,1002,Cream,1,40.00,NY,40.00\n")
	raw, err := loader.LoadFile(p, loader.Options{})
	require.NoError(t, err)
	assert.Equal(t, "Date", raw.Headers[0])
	require.Len(t, raw.Rows, 2)
	assert.Equal(t, "Cream", raw.Rows[1][2])
}

func TestLoadSemicolonAndTab(t *testing.T) {
	semi := writeFile(t, "eu.csv", "Date;Product Name;Total\n2024-11-18;Serum;59,98\n")
	raw, err := loader.LoadFile(semi, loader.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Product Name", "Total"}, raw.Headers)
	assert.Equal(t, "59,98", raw.Rows[0][2])

	tsv := writeFile(t, "orders.tsv", "Date\tProduct Name\tTotal\n2024-11-18\tSerum, 30ml\t59.98\n")
	raw, err = loader.LoadFile(tsv, loader.Options{})
	require.NoError(t, err)
	assert.Equal(t, "Serum, 30ml", raw.Rows[0][1])
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Created at", "Name", "Lineitem name", "Lineitem quantity", "Lineitem price", "Shipping Province", "Subtotal"},
		{time.Date(2024, 11, 18, 0, 0, 0, 0, time.UTC), "#1001", "Serum", 2, 29.99, "CA", 59.98},
		{time.Date(2024, 11, 19, 0, 0, 0, 0, time.UTC), "#1002", "Cream", 1, 40, "NY", 40},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	p := filepath.Join(t.TempDir(), "orders.xlsx")
	require.NoError(t, f.SaveAs(p))

	raw, err := loader.LoadFile(p, loader.Options{})
	require.NoError(t, err)
	require.Len(t, raw.Rows, 2)

	ds, _, warnings, err := sales.Process(raw, nil)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, "2024-11-18", sales.FormatDate(ds.Record(0).Date))
	assert.Equal(t, "59.98", ds.Record(0).Total.String())
}

func TestLoadUnsupportedExtension(t *testing.T) {
	p := writeFile(t, "orders.json", "[]")
	_, err := loader.LoadFile(p, loader.Options{})
	var fe *loader.FileFormatError
	require.ErrorAs(t, err, &fe)
	assert.True(t, errors.Is(err, loader.ErrUnsupported))
	assert.Contains(t, err.Error(), ".json")
}

func TestLoadRejectsOversizeFile(t *testing.T) {
	p := writeFile(t, "big.csv", "Date,Total\n"+strings.Repeat("2024-11-18,1\n", 100))
	_, err := loader.LoadFile(p, loader.Options{MaxBytes: 64})
	var fe *loader.FileFormatError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, err.Error(), "limit")

	_, err = loader.LoadReader("big.csv", strings.NewReader(strings.Repeat("x", 65)), loader.Options{MaxBytes: 64})
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, loader.ErrTooLarge)
}

func TestLoadEmptyFile(t *testing.T) {
	p := writeFile(t, "empty.csv", "")
	_, err := loader.LoadFile(p, loader.Options{})
	var fe *loader.FileFormatError
	require.ErrorAs(t, err, &fe)
}

func TestLoadCorruptXLSX(t *testing.T) {
	_, err := loader.LoadReader("broken.xlsx", strings.NewReader("not a zip"), loader.Options{})
	var fe *loader.FileFormatError
	require.ErrorAs(t, err, &fe)
}
