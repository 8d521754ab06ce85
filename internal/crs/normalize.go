// Package crs brings parcels and reference layers into one planar coordinate
// reference system before any area is computed.
package crs

import (
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/pleiade/zoneshare/internal/source"
)

var (
	// ErrUnknownCRS is returned when a collection carries no usable CRS.
	ErrUnknownCRS = eris.New("unknown coordinate reference system")
	// ErrTransform is returned when a coordinate cannot be reprojected.
	ErrTransform = eris.New("coordinate transformation failed")
)

// geographicNames are the projection names of angular (lon/lat) systems.
var geographicNames = map[string]bool{
	"longlat":  true,
	"latlong":  true,
	"lonlat":   true,
	"latlon":   true,
	"identity": true,
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithFallback sets the projected system geographic layers are moved into.
func WithFallback(srid int) Option {
	return func(n *Normalizer) {
		n.fallback = srid
	}
}

// WithDefinitions adds or overrides EPSG definitions.
func WithDefinitions(defs map[int]string) Option {
	return func(n *Normalizer) {
		for srid, def := range defs {
			n.defs[srid] = def
		}
	}
}

// WithCacheSize bounds the number of parsed definitions kept in memory.
func WithCacheSize(size int) Option {
	return func(n *Normalizer) {
		n.cacheSize = size
	}
}

// Normalizer resolves CRS descriptors and reprojects geometries. It is safe
// for concurrent use.
type Normalizer struct {
	defs      map[int]string
	fallback  int
	cacheSize int
	cache     *srCache
}

// NewNormalizer creates a Normalizer with the built-in EPSG registry and
// EPSG:5880 as fallback target.
func NewNormalizer(opts ...Option) (*Normalizer, error) {
	n := &Normalizer{
		defs:     make(map[int]string, len(builtin)),
		fallback: SRIDBrazilPolyconic,
	}
	for srid, def := range builtin {
		n.defs[srid] = def
	}
	for _, opt := range opts {
		opt(n)
	}

	cache, err := newSRCache(n.cacheSize)
	if err != nil {
		return nil, err
	}
	n.cache = cache
	return n, nil
}

// Fallback returns the target CRS for geographic layers.
func (n *Normalizer) Fallback() source.CRS {
	return source.CRS{SRID: n.fallback}
}

// Resolve parses the spatial reference described by c. An explicit
// definition wins over the EPSG registry.
func (n *Normalizer) Resolve(c source.CRS) (*proj.SR, error) {
	def := strings.TrimSpace(c.Definition)
	if def == "" && c.SRID > 0 {
		def = n.defs[c.SRID]
	}
	if def == "" {
		return nil, eris.Wrapf(ErrUnknownCRS, "crs: no definition for %s", c)
	}

	sr, err := n.cache.parse(def)
	if err != nil {
		return nil, eris.Wrapf(ErrUnknownCRS, "crs: parse %s: %v", c, err)
	}
	return sr, nil
}

// IsProjected reports whether c is a planar (projected) system.
func (n *Normalizer) IsProjected(c source.CRS) (bool, error) {
	sr, err := n.Resolve(c)
	if err != nil {
		return false, err
	}
	return !geographicNames[strings.ToLower(sr.Name)], nil
}

// Normalize returns layer unchanged when it is already projected; otherwise it
// returns a copy reprojected into the fallback system.
func (n *Normalizer) Normalize(layer *source.Collection) (*source.Collection, error) {
	projected, err := n.IsProjected(layer.CRS)
	if err != nil {
		return nil, eris.Wrapf(err, "crs: normalize %s", layer.Name)
	}
	if projected {
		return layer, nil
	}

	target := n.Fallback()
	t, err := n.transformer(layer.CRS, target)
	if err != nil {
		return nil, eris.Wrapf(err, "crs: normalize %s", layer.Name)
	}

	geoms := make([]geom.T, len(layer.Features))
	for i, f := range layer.Features {
		g, err := Reproject(f.Geom, t)
		if err != nil {
			return nil, eris.Wrapf(err, "crs: normalize %s feature %d", layer.Name, i)
		}
		geoms[i] = g
	}

	zap.L().Debug("crs: reprojected layer",
		zap.String("component", "crs.normalize"),
		zap.String("layer", layer.Name),
		zap.String("from", layer.CRS.String()),
		zap.String("to", target.String()),
		zap.Int("features", len(geoms)),
	)
	return layer.WithGeometries(target, geoms), nil
}

// Align reprojects g from one system to another. Identical systems return g
// itself.
func (n *Normalizer) Align(g geom.T, from, to source.CRS) (geom.T, error) {
	if Same(from, to) {
		return g, nil
	}
	t, err := n.transformer(from, to)
	if err != nil {
		return nil, err
	}
	return Reproject(g, t)
}

func (n *Normalizer) transformer(from, to source.CRS) (proj.Transformer, error) {
	src, err := n.Resolve(from)
	if err != nil {
		return nil, err
	}
	dst, err := n.Resolve(to)
	if err != nil {
		return nil, err
	}

	// The PROJ port has no Polyconic, so it is applied around the
	// geographic leg.
	var unproject, project proj.Transformer
	if isPolyconic(src) {
		unproject = newPolyconic(src).inverse
		src = geographicOf(src)
	}
	if isPolyconic(dst) {
		project = newPolyconic(dst).forward
		dst = geographicOf(dst)
	}

	t, err := src.NewTransform(dst)
	if err != nil {
		return nil, eris.Wrapf(ErrTransform, "crs: %s -> %s: %v", from, to, err)
	}
	return chain(unproject, t, project), nil
}

// Same reports whether two descriptors certainly denote the same system.
func Same(a, b source.CRS) bool {
	if a.SRID > 0 && b.SRID > 0 {
		return a.SRID == b.SRID
	}
	da, db := strings.TrimSpace(a.Definition), strings.TrimSpace(b.Definition)
	return da != "" && da == db && a.SRID == b.SRID
}

// Reproject returns a copy of a polygonal geometry with every coordinate
// passed through t.
func Reproject(g geom.T, t proj.Transformer) (geom.T, error) {
	var out geom.T
	switch x := g.(type) {
	case *geom.Polygon:
		out = x.Clone()
	case *geom.MultiPolygon:
		out = x.Clone()
	default:
		return nil, eris.Errorf("crs: unsupported geometry type %T", g)
	}

	flat := out.FlatCoords()
	stride := out.Stride()
	for i := 0; i+1 < len(flat); i += stride {
		x, y, err := t(flat[i], flat[i+1])
		if err != nil {
			return nil, eris.Wrapf(ErrTransform, "crs: (%f, %f): %v", flat[i], flat[i+1], err)
		}
		flat[i], flat[i+1] = x, y
	}
	return out, nil
}
