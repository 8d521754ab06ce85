// Package source loads named polygon feature collections (parcels and
// reference layers) from shapefiles, GeoJSON, GeoPackage and PostGIS.
package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/pleiade/zoneshare/internal/config"
	"github.com/pleiade/zoneshare/internal/db"
)

// Format identifies the on-disk or remote representation of a collection.
type Format string

// Supported formats.
const (
	FormatShapefile  Format = "shapefile"
	FormatGeoJSON    Format = "geojson"
	FormatGeoPackage Format = "gpkg"
	FormatPostGIS    Format = "postgis"
)

var (
	// ErrSourceUnavailable is returned when a source cannot be read or parsed.
	ErrSourceUnavailable = eris.New("source unavailable")
	// ErrSchemaMismatch is returned when an expected attribute field is absent.
	ErrSchemaMismatch = eris.New("expected field not found")
)

// CRS describes the coordinate reference system a collection is stored in.
// Definition holds WKT (from .prj or gpkg_spatial_ref_sys) or a PROJ string.
type CRS struct {
	SRID       int    `json:"srid,omitempty"`
	Definition string `json:"definition,omitempty"`
}

// IsZero reports whether nothing is known about the CRS.
func (c CRS) IsZero() bool {
	return c.SRID == 0 && strings.TrimSpace(c.Definition) == ""
}

// String returns a short human-readable label.
func (c CRS) String() string {
	switch {
	case c.SRID > 0:
		return fmt.Sprintf("EPSG:%d", c.SRID)
	case c.Definition != "":
		return "custom"
	default:
		return "unknown"
	}
}

// Feature is one record of a collection: its attributes, keyed by the field
// names of the collection, and a polygonal geometry.
type Feature struct {
	Attrs map[string]string
	Geom  geom.T
}

// Collection is a loaded, read-only set of features.
type Collection struct {
	Name     string
	Format   Format
	Fields   []string
	CRS      CRS
	Features []Feature
}

// Field resolves a field name case-insensitively, the way DBF headers are
// matched, and returns the name as stored in the collection.
func (c *Collection) Field(name string) (string, bool) {
	for _, f := range c.Fields {
		if f == name {
			return f, true
		}
	}
	for _, f := range c.Fields {
		if strings.EqualFold(f, name) {
			return f, true
		}
	}
	return "", false
}

// RequireFields returns ErrSchemaMismatch naming every field that is absent.
func (c *Collection) RequireFields(names ...string) error {
	var missing []string
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := c.Field(n); !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return eris.Wrapf(ErrSchemaMismatch, "source: %s: field(s) %s not found", c.Name, strings.Join(missing, ", "))
	}
	return nil
}

// WithGeometries returns a shallow copy of c whose features carry geoms in crs.
// Attributes are shared with the receiver; geoms must align with c.Features.
func (c *Collection) WithGeometries(crs CRS, geoms []geom.T) *Collection {
	out := &Collection{
		Name:     c.Name,
		Format:   c.Format,
		Fields:   c.Fields,
		CRS:      crs,
		Features: make([]Feature, len(c.Features)),
	}
	for i, f := range c.Features {
		out.Features[i] = Feature{Attrs: f.Attrs, Geom: geoms[i]}
	}
	return out
}

// Spec describes how to load one collection.
type Spec struct {
	Name       string
	Path       string
	Format     Format
	Table      string
	GeomColumn string
	SRID       int
	Encoding   string
}

// SpecFromConfig builds a Spec from its configuration block.
func SpecFromConfig(name string, c config.SourceConfig) Spec {
	return Spec{
		Name:       name,
		Path:       c.Path,
		Format:     Format(strings.ToLower(c.Format)),
		Table:      c.Table,
		GeomColumn: c.GeomCol,
		SRID:       c.SRID,
		Encoding:   c.Encoding,
	}
}

// DetectFormat returns the explicit format of s, or infers it from the path.
func DetectFormat(s Spec) (Format, error) {
	if s.Format != "" {
		switch s.Format {
		case FormatShapefile, FormatGeoJSON, FormatGeoPackage, FormatPostGIS:
			return s.Format, nil
		case "shp":
			return FormatShapefile, nil
		case "json":
			return FormatGeoJSON, nil
		case "geopackage":
			return FormatGeoPackage, nil
		default:
			return "", eris.Wrapf(ErrSourceUnavailable, "source: %s: unsupported format %q", s.Name, s.Format)
		}
	}

	if strings.HasPrefix(s.Path, "postgres://") || strings.HasPrefix(s.Path, "postgresql://") {
		return FormatPostGIS, nil
	}
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".shp":
		return FormatShapefile, nil
	case ".geojson", ".json":
		return FormatGeoJSON, nil
	case ".gpkg":
		return FormatGeoPackage, nil
	}
	if s.Path == "" && s.Table != "" {
		return FormatPostGIS, nil
	}
	return "", eris.Wrapf(ErrSourceUnavailable, "source: %s: cannot infer format from %q", s.Name, s.Path)
}

// Loader loads collections. Pool is only needed for PostGIS sources.
type Loader struct {
	Pool db.Pool
}

// NewLoader creates a Loader.
func NewLoader(pool db.Pool) *Loader {
	return &Loader{Pool: pool}
}

// Load reads the full collection described by s. It never filters or
// transforms features; any failure is reported as ErrSourceUnavailable.
func (l *Loader) Load(ctx context.Context, s Spec) (*Collection, error) {
	format, err := DetectFormat(s)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(
		zap.String("component", "source.load"),
		zap.String("source", s.Name),
		zap.String("format", string(format)),
	)

	var c *Collection
	switch format {
	case FormatShapefile:
		c, err = loadShapefile(s)
	case FormatGeoJSON:
		c, err = loadGeoJSON(s)
	case FormatGeoPackage:
		c, err = loadGeoPackage(ctx, s)
	case FormatPostGIS:
		if l == nil || l.Pool == nil {
			return nil, eris.Wrapf(ErrSourceUnavailable, "source: %s: postgis source requires a database connection", s.Name)
		}
		c, err = loadPostGIS(ctx, l.Pool, s)
	}
	if err != nil {
		return nil, err
	}

	c.Name = s.Name
	c.Format = format
	if s.SRID > 0 {
		c.CRS = CRS{SRID: s.SRID}
	}

	log.Debug("loaded collection",
		zap.Int("features", len(c.Features)),
		zap.Int("fields", len(c.Fields)),
		zap.String("crs", c.CRS.String()),
	)
	return c, nil
}

// unavailable wraps cause into ErrSourceUnavailable with context.
func unavailable(cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause != nil {
		msg = msg + ": " + cause.Error()
	}
	return eris.Wrap(ErrSourceUnavailable, msg)
}
