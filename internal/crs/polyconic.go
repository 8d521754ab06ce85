package crs

import (
	"math"
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"
)

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi

	polyEpsilon = 1e-10
	polyMaxIter = 20
)

// polyconicNames are the projection names PROJ strings and WKT use for the
// American Polyconic, e.g. EPSG:5880.
var polyconicNames = map[string]bool{
	"poly":               true,
	"polyconic":          true,
	"american_polyconic": true,
}

func isPolyconic(sr *proj.SR) bool {
	return polyconicNames[strings.ToLower(sr.Name)]
}

// geographicOf returns the lon/lat system sr is based on. The copy shares
// the datum of sr.
func geographicOf(sr *proj.SR) *proj.SR {
	g := *sr
	g.Name = "longlat"
	return &g
}

// polyconic is the ellipsoidal American Polyconic projection (Snyder, Map
// Projections: A Working Manual, USGS PP 1395, pp. 124-133).
type polyconic struct {
	a, es          float64
	c0, c2, c4, c6 float64 // meridional arc coefficients
	lat0, lon0     float64 // radians
	x0, y0         float64
	toMeter        float64
	ml0            float64
}

func newPolyconic(sr *proj.SR) *polyconic {
	es := orZero(sr.Es)
	e4, e6 := es*es, es*es*es
	p := &polyconic{
		a:       sr.A,
		es:      es,
		c0:      1 - es/4 - 3*e4/64 - 5*e6/256,
		c2:      3*es/8 + 3*e4/32 + 45*e6/1024,
		c4:      15*e4/256 + 45*e6/1024,
		c6:      35 * e6 / 3072,
		lat0:    orZero(sr.Lat0),
		lon0:    orZero(sr.Long0),
		x0:      orZero(sr.X0),
		y0:      orZero(sr.Y0),
		toMeter: sr.ToMeter,
	}
	if math.IsNaN(p.toMeter) || p.toMeter == 0 {
		p.toMeter = 1
	}
	p.ml0 = p.arc(p.lat0)
	return p
}

// arc is the meridional distance M(phi) from the equator.
func (p *polyconic) arc(phi float64) float64 {
	return p.a * (p.c0*phi - p.c2*math.Sin(2*phi) + p.c4*math.Sin(4*phi) - p.c6*math.Sin(6*phi))
}

// arcPrime is dM/dphi divided by a.
func (p *polyconic) arcPrime(phi float64) float64 {
	return p.c0 - 2*p.c2*math.Cos(2*phi) + 4*p.c4*math.Cos(4*phi) - 6*p.c6*math.Cos(6*phi)
}

// forward projects lon/lat in degrees to easting/northing in CRS units.
func (p *polyconic) forward(lon, lat float64) (float64, float64, error) {
	lam := adjustLon(lon*deg2rad - p.lon0)
	phi := lat * deg2rad
	if math.Abs(phi) > math.Pi/2 {
		return math.NaN(), math.NaN(), eris.Errorf("polyconic: latitude %f out of range", lat)
	}

	var x, y float64
	if math.Abs(phi) < polyEpsilon {
		x = p.a * lam
		y = -p.ml0
	} else {
		sinPhi := math.Sin(phi)
		n := p.a / math.Sqrt(1-p.es*sinPhi*sinPhi)
		cot := 1 / math.Tan(phi)
		e := lam * sinPhi
		x = n * cot * math.Sin(e)
		y = p.arc(phi) - p.ml0 + n*cot*(1-math.Cos(e))
	}
	return (x + p.x0) / p.toMeter, (y + p.y0) / p.toMeter, nil
}

// inverse unprojects easting/northing in CRS units to lon/lat in degrees.
func (p *polyconic) inverse(x, y float64) (float64, float64, error) {
	x = x*p.toMeter - p.x0
	y = y*p.toMeter - p.y0

	if math.Abs(y+p.ml0) < polyEpsilon {
		return (adjustLon(x/p.a + p.lon0)) * rad2deg, 0, nil
	}

	a := (p.ml0 + y) / p.a
	b := x*x/(p.a*p.a) + a*a

	phi := a
	for i := 0; ; i++ {
		if i == polyMaxIter {
			return math.NaN(), math.NaN(), eris.Errorf("polyconic: inverse did not converge at (%f, %f)", x, y)
		}
		sinPhi := math.Sin(phi)
		c := math.Sqrt(1-p.es*sinPhi*sinPhi) * math.Tan(phi)
		ma := p.arc(phi) / p.a
		mp := p.arcPrime(phi)
		sin2 := math.Sin(2 * phi)

		num := a*(c*ma+1) - ma - 0.5*(ma*ma+b)*c
		den := p.es*sin2*(ma*ma+b-2*a*ma)/(4*c) + (a-ma)*(c*mp-2/sin2) - mp
		delta := num / den
		phi -= delta
		if math.Abs(delta) < polyEpsilon {
			break
		}
	}

	sinPhi := math.Sin(phi)
	c := math.Sqrt(1-p.es*sinPhi*sinPhi) * math.Tan(phi)
	lam := math.Asin(clamp(x*c/p.a)) / sinPhi
	return adjustLon(lam+p.lon0) * rad2deg, phi * rad2deg, nil
}

// chain composes the non-nil steps; no steps is the identity.
func chain(steps ...proj.Transformer) proj.Transformer {
	var live []proj.Transformer
	for _, s := range steps {
		if s != nil {
			live = append(live, s)
		}
	}
	return func(x, y float64) (float64, float64, error) {
		var err error
		for _, s := range live {
			if x, y, err = s(x, y); err != nil {
				return math.NaN(), math.NaN(), err
			}
		}
		return x, y, nil
	}
}

func adjustLon(lam float64) float64 {
	for lam > math.Pi {
		lam -= 2 * math.Pi
	}
	for lam < -math.Pi {
		lam += 2 * math.Pi
	}
	return lam
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

func orZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
