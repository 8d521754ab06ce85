// Package catalog holds human-readable meanings of classification values
// (zone category and description), loaded from YAML or XLSX files.
package catalog

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"
)

// Placeholders used for classifications the catalog does not describe.
const (
	DefaultCategory    = "—"
	DefaultDescription = "Description not yet provided."
)

// Entry describes one classification value.
type Entry struct {
	Category    string `yaml:"category" json:"category"`
	Description string `yaml:"description" json:"description"`
}

// Catalog maps classification values to entries. A nil Catalog describes
// every value with the placeholders.
type Catalog struct {
	entries map[string]Entry
}

// New creates a catalog from entries.
func New(entries map[string]Entry) *Catalog {
	c := &Catalog{entries: make(map[string]Entry, len(entries))}
	for k, v := range entries {
		c.entries[k] = v
	}
	return c
}

// Len returns the number of described classifications.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Describe returns the entry for class, filling blanks with placeholders.
func (c *Catalog) Describe(class string) Entry {
	var e Entry
	if c != nil {
		e = c.entries[class]
	}
	if strings.TrimSpace(e.Category) == "" {
		e.Category = DefaultCategory
	}
	if strings.TrimSpace(e.Description) == "" {
		e.Description = DefaultDescription
	}
	return e
}

// DescribeAll describes each class.
func (c *Catalog) DescribeAll(classes []string) map[string]Entry {
	out := make(map[string]Entry, len(classes))
	for _, class := range classes {
		out[class] = c.Describe(class)
	}
	return out
}

// Load reads a catalog file; the format follows the extension (.yaml, .yml,
// .xlsx). An empty path yields an empty catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return New(nil), nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAML(path)
	case ".xlsx":
		return loadXLSX(path)
	default:
		return nil, eris.Errorf("catalog: unsupported file %q", path)
	}
}

// yamlFile is the on-disk YAML layout:
//
//	zones:
//	  A1:
//	    category: Consolidation
//	    description: Areas with consolidated agricultural use.
type yamlFile struct {
	Zones map[string]Entry `yaml:"zones"`
}

func loadYAML(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: read yaml")
	}
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "catalog: parse yaml")
	}
	return New(f.Zones), nil
}

// loadXLSX reads the first sheet. The header row must name the columns
// zone, category and description (case-insensitive, any order).
func loadXLSX(path string) (*Catalog, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: open xlsx")
	}
	if len(f.Sheets) == 0 || len(f.Sheets[0].Rows) == 0 {
		return New(nil), nil
	}
	rows := f.Sheets[0].Rows

	col := map[string]int{"zone": -1, "category": -1, "description": -1}
	for i, cell := range rows[0].Cells {
		name := strings.ToLower(strings.TrimSpace(cell.String()))
		if _, ok := col[name]; ok {
			col[name] = i
		}
	}
	if col["zone"] < 0 {
		return nil, eris.New("catalog: xlsx header has no zone column")
	}

	entries := make(map[string]Entry)
	for _, row := range rows[1:] {
		zone := cellAt(row, col["zone"])
		if zone == "" {
			continue
		}
		entries[zone] = Entry{
			Category:    cellAt(row, col["category"]),
			Description: cellAt(row, col["description"]),
		}
	}
	return New(entries), nil
}

func cellAt(row *xlsx.Row, i int) string {
	if i < 0 || i >= len(row.Cells) {
		return ""
	}
	return strings.TrimSpace(row.Cells[i].String())
}
