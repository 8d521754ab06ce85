package source

import (
	"encoding/json"
	"os"
	"regexp"
	"sort"
	"strconv"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// sridInName extracts the EPSG code from legacy GeoJSON CRS names such as
// "EPSG:31982" or "urn:ogc:def:crs:EPSG::31982".
var sridInName = regexp.MustCompile(`EPSG:+(\d+)$`)

// crsMember is the pre-RFC 7946 "crs" member, still written by many GIS tools.
type crsMember struct {
	CRS *struct {
		Type       string `json:"type"`
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`
}

func loadGeoJSON(s Spec) (*Collection, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, unavailable(err, "source: %s: read geojson", s.Name)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, unavailable(err, "source: %s: parse geojson", s.Name)
	}

	c := &Collection{CRS: geoJSONCRS(data)}

	seen := make(map[string]bool)
	var skipped int
	for _, f := range fc.Features {
		if f == nil || !isPolygonal(f.Geometry) {
			skipped++
			continue
		}
		attrs := make(map[string]string, len(f.Properties))
		for k, v := range f.Properties {
			attrs[k] = stringify(v)
			if !seen[k] {
				seen[k] = true
				c.Fields = append(c.Fields, k)
			}
		}
		c.Features = append(c.Features, Feature{Attrs: attrs, Geom: f.Geometry})
	}
	sort.Strings(c.Fields)

	if skipped > 0 {
		zap.L().Debug("source: skipped non-polygonal geojson features",
			zap.String("source", s.Name),
			zap.Int("skipped", skipped),
		)
	}
	return c, nil
}

// geoJSONCRS reads the legacy crs member; RFC 7946 files are WGS 84.
func geoJSONCRS(data []byte) CRS {
	var m crsMember
	if err := json.Unmarshal(data, &m); err == nil && m.CRS != nil {
		name := m.CRS.Properties.Name
		if name == "urn:ogc:def:crs:OGC:1.3:CRS84" || name == "urn:ogc:def:crs:OGC::CRS84" {
			return CRS{SRID: 4326}
		}
		if match := sridInName.FindStringSubmatch(name); match != nil {
			if srid, err := strconv.Atoi(match[1]); err == nil {
				return CRS{SRID: srid}
			}
		}
	}
	return CRS{SRID: 4326}
}

func isPolygonal(g geom.T) bool {
	switch g.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
		return true
	default:
		return false
	}
}

// stringify renders a decoded JSON attribute value as text.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
