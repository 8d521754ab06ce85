package source

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// loadShapefile reads a .shp/.dbf pair plus the optional .prj (CRS) and .cpg
// (attribute code page) sidecars.
func loadShapefile(s Spec) (*Collection, error) {
	if _, err := os.Stat(s.Path); err != nil {
		return nil, unavailable(err, "source: %s: stat shapefile", s.Name)
	}

	dec, err := attributeDecoder(s.Encoding, sidecar(s.Path, ".cpg"))
	if err != nil {
		return nil, unavailable(err, "source: %s: attribute encoding", s.Name)
	}

	reader, err := shp.Open(s.Path)
	if err != nil {
		return nil, unavailable(err, "source: %s: open shapefile %s", s.Name, s.Path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimSpace(strings.TrimRight(f.String(), "\x00"))
	}

	c := &Collection{Fields: names}
	if prj := sidecar(s.Path, ".prj"); prj != "" {
		c.CRS = CRS{Definition: prj}
	}

	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		g := shapeToGeom(shape)
		if g == nil {
			skipped++
			continue
		}

		attrs := make(map[string]string, len(names))
		for i, name := range names {
			val := strings.TrimRight(reader.Attribute(i), "\x00")
			val = strings.TrimSpace(val)
			if dec != nil {
				if decoded, decErr := dec.String(val); decErr == nil {
					val = decoded
				}
			}
			attrs[name] = val
		}

		c.Features = append(c.Features, Feature{Attrs: attrs, Geom: g})
	}
	if err := reader.Err(); err != nil {
		return nil, unavailable(err, "source: %s: read shapefile", s.Name)
	}

	if skipped > 0 {
		zap.L().Debug("source: skipped non-polygonal shapefile records",
			zap.String("source", s.Name),
			zap.Int("skipped", skipped),
		)
	}

	return c, nil
}

// shapeToGeom converts polygon shapes; every other shape type yields nil.
func shapeToGeom(shape shp.Shape) geom.T {
	switch p := shape.(type) {
	case *shp.Polygon:
		return polygonToMultiPolygon(p)
	case *shp.PolygonZ:
		return polygonToMultiPolygon(&shp.Polygon{Box: p.Box, NumParts: p.NumParts, NumPoints: p.NumPoints, Parts: p.Parts, Points: p.Points})
	case *shp.PolygonM:
		return polygonToMultiPolygon(&shp.Polygon{Box: p.Box, NumParts: p.NumParts, NumPoints: p.NumPoints, Parts: p.Parts, Points: p.Points})
	default:
		return nil
	}
}

// sidecar returns the trimmed content of the file next to shpPath with the
// given extension, or "" when it does not exist.
func sidecar(shpPath, ext string) string {
	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	for _, e := range []string{ext, strings.ToUpper(ext)} {
		data, err := os.ReadFile(base + e)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return ""
}

// codePageLabel maps .cpg contents such as "1252" or "88591" to a WHATWG label.
func codePageLabel(cpg string) string {
	cpg = strings.TrimSpace(cpg)
	if cpg == "" {
		return ""
	}
	if _, err := strconv.Atoi(cpg); err == nil {
		switch cpg {
		case "88591":
			return "iso-8859-1"
		case "65001":
			return "utf-8"
		default:
			return "windows-" + cpg
		}
	}
	return strings.ToLower(cpg)
}
