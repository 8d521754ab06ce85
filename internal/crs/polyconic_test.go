package crs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/pleiade/zoneshare/internal/source"
)

const brazilPolyconicWKT = `PROJCS["SIRGAS 2000 / Brazil Polyconic",` +
	`GEOGCS["SIRGAS 2000",DATUM["Sistema_de_Referencia_Geocentrico_para_las_AmericaS_2000",SPHEROID["GRS 1980",6378137,298.257222101]],` +
	`PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]],` +
	`PROJECTION["Polyconic"],PARAMETER["latitude_of_origin",0],PARAMETER["central_meridian",-54],` +
	`PARAMETER["false_easting",5000000],PARAMETER["false_northing",10000000],UNIT["metre",1]]`

func brazilPolyconic(t *testing.T) *polyconic {
	t.Helper()
	n := newNormalizer(t)
	sr, err := n.Resolve(source.CRS{SRID: SRIDBrazilPolyconic})
	require.NoError(t, err)
	require.True(t, isPolyconic(sr))
	return newPolyconic(sr)
}

func TestPolyconic_Forward(t *testing.T) {
	p := brazilPolyconic(t)

	x, y, err := p.forward(-54, 0)
	require.NoError(t, err)
	assert.InDelta(t, 5000000.0, x, 1e-6, "origin maps to the false easting")
	assert.InDelta(t, 10000000.0, y, 1e-6, "origin maps to the false northing")

	// Along the central meridian the northing is the GRS80 meridian arc.
	x, y, err = p.forward(-54, -10)
	require.NoError(t, err)
	assert.InDelta(t, 5000000.0, x, 1e-6)
	assert.InDelta(t, 10000000.0-1105854.833, y, 0.01)

	// Symmetric about the central meridian.
	xe, ye, err := p.forward(-48, -10)
	require.NoError(t, err)
	xw, yw, err := p.forward(-60, -10)
	require.NoError(t, err)
	assert.InDelta(t, 5000000.0-xw, xe-5000000.0, 1e-6)
	assert.InDelta(t, ye, yw, 1e-6)
	assert.InDelta(t, 5657799.93, xe, 1.0)
}

func TestPolyconic_RoundTrip(t *testing.T) {
	p := brazilPolyconic(t)

	for _, c := range [][2]float64{{-48, -10}, {-70, 5}, {-35, -33}, {-54, 0}, {-60, 0}} {
		x, y, err := p.forward(c[0], c[1])
		require.NoError(t, err)
		lon, lat, err := p.inverse(x, y)
		require.NoError(t, err)
		assert.InDelta(t, c[0], lon, 1e-8, "lon of %v", c)
		assert.InDelta(t, c[1], lat, 1e-8, "lat of %v", c)
	}
}

func TestNormalize_DefaultFallbackPolyconic(t *testing.T) {
	n := newNormalizer(t)
	layer := &source.Collection{
		Name:     "zee",
		Fields:   []string{"zona"},
		CRS:      source.CRS{SRID: SRIDSIRGAS2000},
		Features: []source.Feature{{Attrs: map[string]string{"zona": "A1"}, Geom: lonLatSquare(-48, -10, 0.01)}},
	}

	out, err := n.Normalize(layer)
	require.NoError(t, err)
	assert.Equal(t, SRIDBrazilPolyconic, out.CRS.SRID)

	flat := out.Features[0].Geom.FlatCoords()
	assert.InDelta(t, 5657799.93, flat[0], 1.0)
	assert.InDelta(t, 8888164.16, flat[1], 1.0)

	area := out.Features[0].Geom.(*geom.Polygon).Area()
	assert.InDelta(t, 1.22e6, area, 0.02e6, "0.01 degree square near 10S is about 122 ha")
}

func TestAlign_GeographicParcelIntoPolyconicLayer(t *testing.T) {
	n := newNormalizer(t)
	parcel := lonLatSquare(-54, -10, 0.001)

	out, err := n.Align(parcel, source.CRS{SRID: SRIDSIRGAS2000}, source.CRS{SRID: SRIDBrazilPolyconic})
	require.NoError(t, err)
	assert.InDelta(t, 5000000.0, out.FlatCoords()[0], 0.01)
	assert.InDelta(t, 10000000.0-1105854.833, out.FlatCoords()[1], 0.01)

	back, err := n.Align(out, source.CRS{SRID: SRIDBrazilPolyconic}, source.CRS{SRID: SRIDSIRGAS2000})
	require.NoError(t, err)
	assert.InDeltaSlice(t, parcel.FlatCoords(), back.FlatCoords(), 1e-8)
}

func TestAlign_PolyconicToUTM(t *testing.T) {
	n := newNormalizer(t)
	square := lonLatSquare(-51, -10, 0.001)

	poly, err := n.Align(square, source.CRS{SRID: SRIDSIRGAS2000}, source.CRS{SRID: SRIDBrazilPolyconic})
	require.NoError(t, err)
	utm, err := n.Align(poly, source.CRS{SRID: SRIDBrazilPolyconic}, source.CRS{SRID: 31982})
	require.NoError(t, err)
	assert.InDelta(t, 500000.0, utm.FlatCoords()[0], 0.01, "-51 is the UTM 22S central meridian")
}

func TestNormalize_PolyconicFromPrj(t *testing.T) {
	n := newNormalizer(t)

	projected, err := n.IsProjected(source.CRS{Definition: brazilPolyconicWKT})
	require.NoError(t, err)
	assert.True(t, projected)

	out, err := n.Align(lonLatSquare(-54, 0, 0.001), source.CRS{SRID: SRIDSIRGAS2000}, source.CRS{Definition: brazilPolyconicWKT})
	require.NoError(t, err)
	assert.InDelta(t, 5000000.0, out.FlatCoords()[0], 0.01)
	assert.InDelta(t, 10000000.0, out.FlatCoords()[1], 0.01)
}

func TestChain_Identity(t *testing.T) {
	x, y, err := chain(nil, nil)(3, 4)
	require.NoError(t, err)
	assert.Equal(t, 3.0, x)
	assert.Equal(t, 4.0, y)
}
