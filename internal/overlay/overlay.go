// Package overlay intersects a parcel geometry with the features of a
// reference layer and measures the pieces in hectares.
package overlay

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geos"
	"go.uber.org/zap"

	"github.com/pleiade/zoneshare/internal/source"
)

// SquareMetersPerHectare converts planar areas in m² to hectares.
const SquareMetersPerHectare = 10_000.0

// ErrInvalidGeometry is returned when GEOS rejects an input geometry, e.g. on
// a self-intersecting ring. Geometries are never repaired.
var ErrInvalidGeometry = eris.New("invalid geometry")

// Piece is the non-empty intersection of the parcel with one layer feature.
type Piece struct {
	Class   string  `json:"class"`
	AreaHa  float64 `json:"area_ha"`
	Feature int     `json:"feature"`
}

// Engine runs overlays. The zero value is ready to use.
type Engine struct{}

// NewEngine creates an Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Overlay intersects parcel with every feature of layer and returns one piece
// per non-empty intersection, tagged with the feature's classField value.
// Both inputs must already share a planar CRS. No intersection yields an
// empty slice and a nil error.
func (e *Engine) Overlay(parcel geom.T, layer *source.Collection, classField string) ([]Piece, error) {
	field, ok := layer.Field(classField)
	if !ok {
		return nil, eris.Wrapf(source.ErrSchemaMismatch,
			"overlay: %s: expected classification field %q not found", layer.Name, classField)
	}

	pg, err := toGEOS(parcel)
	if err != nil {
		return nil, eris.Wrapf(err, "overlay: %s: parcel", layer.Name)
	}
	prepared := pg.Prepare()

	ix := newIndex(layer.Features)
	candidates := ix.candidates(parcel.Bounds())

	var pieces []Piece
	for _, pos := range candidates {
		f := layer.Features[pos]

		fg, err := toGEOS(f.Geom)
		if err != nil {
			return nil, eris.Wrapf(err, "overlay: %s: feature %d", layer.Name, pos)
		}

		area, err := intersectionArea(prepared, pg, fg)
		if err != nil {
			return nil, eris.Wrapf(err, "overlay: %s: feature %d", layer.Name, pos)
		}
		if area <= 0 {
			continue
		}

		pieces = append(pieces, Piece{
			Class:   f.Attrs[field],
			AreaHa:  area / SquareMetersPerHectare,
			Feature: pos,
		})
	}

	zap.L().Debug("overlay: intersected layer",
		zap.String("component", "overlay"),
		zap.String("layer", layer.Name),
		zap.Int("indexed", ix.size()),
		zap.Int("candidates", len(candidates)),
		zap.Int("pieces", len(pieces)),
	)
	return pieces, nil
}

// ParcelAreaHa returns the planar area of g in hectares.
func ParcelAreaHa(g geom.T) (float64, error) {
	pg, err := toGEOS(g)
	if err != nil {
		return 0, eris.Wrap(err, "overlay: parcel area")
	}
	return pg.Area() / SquareMetersPerHectare, nil
}

// intersectionArea returns the area of a ∩ b in squared CRS units, or 0 when
// they do not intersect. GEOS topology errors surface as panics in go-geos
// and are converted to ErrInvalidGeometry.
func intersectionArea(prepared *geos.PrepGeom, a, b *geos.Geom) (area float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Wrapf(ErrInvalidGeometry, "intersection: %v", r)
		}
	}()

	if !prepared.Intersects(b) {
		return 0, nil
	}
	inter := a.Intersection(b)
	if inter == nil || inter.IsEmpty() {
		return 0, nil
	}
	return inter.Area(), nil
}

func toGEOS(g geom.T) (gg *geos.Geom, err error) {
	if g == nil {
		return nil, eris.Wrap(ErrInvalidGeometry, "nil geometry")
	}
	data, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrapf(ErrInvalidGeometry, "encode wkb: %v", err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = eris.Wrapf(ErrInvalidGeometry, "decode wkb: %s", fmt.Sprint(r))
		}
	}()
	gg, err = geos.NewGeomFromWKB(data)
	if err != nil {
		return nil, eris.Wrapf(ErrInvalidGeometry, "decode wkb: %v", err)
	}
	return gg, nil
}
