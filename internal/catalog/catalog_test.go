package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestDescribe_Defaults(t *testing.T) {
	var c *Catalog
	e := c.Describe("A1")
	assert.Equal(t, DefaultCategory, e.Category)
	assert.Equal(t, DefaultDescription, e.Description)
	assert.Equal(t, 0, c.Len())

	c = New(map[string]Entry{"A1": {Category: "Consolidation"}})
	e = c.Describe("A1")
	assert.Equal(t, "Consolidation", e.Category)
	assert.Equal(t, DefaultDescription, e.Description)
}

func TestDescribeAll(t *testing.T) {
	c := New(map[string]Entry{"A1": {Category: "Consolidation", Description: "Consolidated use."}})
	got := c.DescribeAll([]string{"A1", "B2"})
	assert.Equal(t, "Consolidated use.", got["A1"].Description)
	assert.Equal(t, DefaultCategory, got["B2"].Category)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zee.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
zones:
  A1:
    category: Consolidation
    description: Areas with consolidated agricultural use.
  B2:
    category: Protection
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, "Protection", c.Describe("B2").Category)
	assert.Equal(t, "Areas with consolidated agricultural use.", c.Describe("A1").Description)
}

func TestLoad_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zee.xlsx")
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("zones")
	require.NoError(t, err)
	for _, r := range [][]string{
		{"Description", "Zone", "Category"},
		{"Consolidated use.", "A1", "Consolidation"},
		{"", "", "ignored"},
		{"Restricted use.", "B2", "Protection"},
	} {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	require.NoError(t, f.Save(path))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, Entry{Category: "Protection", Description: "Restricted use."}, c.Describe("B2"))
}

func TestLoad_XLSXWithoutZoneColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xlsx")
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("zones")
	require.NoError(t, err)
	sheet.AddRow().AddCell().SetString("category")
	require.NoError(t, f.Save(path))

	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoad_EmptyAndUnsupported(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())

	_, err = Load("zee.csv")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
