// Package export writes query results to spreadsheet files.
package export

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/pleiade/zoneshare/internal/analysis"
	"github.com/pleiade/zoneshare/internal/report"
)

// maxSheetName is the Excel limit on sheet name length.
const maxSheetName = 31

// layerHeader is the header row of every layer sheet.
var layerHeader = []string{"zone", "category", "description", "area_ha", "percent"}

// Workbook builds an XLSX workbook with a summary sheet followed by one
// sheet per reference layer.
func Workbook(res *analysis.Result) (*xlsx.File, error) {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("parcel")
	if err != nil {
		return nil, eris.Wrap(err, "export: add summary sheet")
	}
	addRow(summary, "query_id", res.QueryID)
	addRow(summary, "parcel_id", res.ParcelID)
	addRow(summary, "parcel_name", res.ParcelName)
	areaRow := summary.AddRow()
	areaRow.AddCell().SetString("parcel_area_ha")
	areaRow.AddCell().SetFloatWithFormat(res.ParcelAreaHa, "0.0000")

	used := map[string]bool{"parcel": true}
	for _, l := range res.Layers {
		sheet, err := f.AddSheet(sheetName(l.Name, used))
		if err != nil {
			return nil, eris.Wrapf(err, "export: add sheet for layer %s", l.Name)
		}
		writeLayer(sheet, l)
	}
	return f, nil
}

// Write encodes res as XLSX into w.
func Write(w io.Writer, res *analysis.Result) error {
	f, err := Workbook(res)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

// Save writes res as XLSX to path.
func Save(path string, res *analysis.Result) error {
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create file")
	}
	if err := Write(out, res); err != nil {
		_ = out.Close()
		return err
	}
	return eris.Wrap(out.Close(), "export: close file")
}

func writeLayer(sheet *xlsx.Sheet, l analysis.LayerReport) {
	switch {
	case l.Error != nil:
		addRow(sheet, "error", string(l.Error.Kind), l.Error.Message)
		return
	case l.Empty:
		addRow(sheet, "message", l.Message)
		return
	}

	addRow(sheet, layerHeader...)
	for _, s := range l.Shares {
		desc := l.Descriptions[s.Class]
		row := sheet.AddRow()
		row.AddCell().SetString(s.Class)
		row.AddCell().SetString(desc.Category)
		row.AddCell().SetString(desc.Description)
		row.AddCell().SetFloatWithFormat(s.AreaHa, "0.0000")
		row.AddCell().SetString(s.PercentText)
	}
	total := sheet.AddRow()
	total.AddCell().SetString("total")
	total.AddCell()
	total.AddCell()
	total.AddCell()
	total.AddCell().SetString(report.FormatPercent(report.TotalPercent(l.Shares)))
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// sheetName makes a unique, Excel-safe sheet name from a layer name.
func sheetName(name string, used map[string]bool) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, name)
	if clean == "" {
		clean = "layer"
	}
	if len(clean) > maxSheetName {
		clean = clean[:maxSheetName]
	}

	candidate := clean
	for i := 2; used[candidate]; i++ {
		suffix := "_" + strconv.Itoa(i)
		base := clean
		if len(base)+len(suffix) > maxSheetName {
			base = base[:maxSheetName-len(suffix)]
		}
		candidate = base + suffix
	}
	used[candidate] = true
	return candidate
}
