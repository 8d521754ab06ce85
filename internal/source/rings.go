package source

import (
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Clockwise rings are shells; counter-clockwise rings are holes of the shell
// that contains them. A hole with no containing shell becomes a shell.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var shells [][]float64
	var holes [][]float64

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}
		if end-start < 4 {
			zap.L().Debug("source: skipping degenerate polygon ring", zap.Int32("part", i))
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		if xy.IsRingCounterClockwise(geom.XY, flat) {
			holes = append(holes, flat)
		} else {
			shells = append(shells, flat)
		}
	}

	rings := make([][][]float64, len(shells))
	for i, s := range shells {
		rings[i] = [][]float64{s}
	}

	for _, h := range holes {
		first := geom.Coord{h[0], h[1]}
		placed := false
		for i, s := range shells {
			if xy.IsPointInRing(geom.XY, first, s) {
				rings[i] = append(rings[i], h)
				placed = true
				break
			}
		}
		if !placed {
			rings = append(rings, [][]float64{h})
		}
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i, polyRings := range rings {
		poly := geom.NewPolygon(geom.XY)
		for _, r := range polyRings {
			if err := poly.Push(geom.NewLinearRingFlat(geom.XY, r)); err != nil {
				zap.L().Debug("source: skipping malformed polygon ring", zap.Int("polygon", i), zap.Error(err))
			}
		}
		if poly.NumLinearRings() == 0 {
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("source: skipping malformed polygon part", zap.Int("polygon", i), zap.Error(err))
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
