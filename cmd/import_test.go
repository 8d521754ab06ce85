package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleiade/zoneshare/internal/config"
	"github.com/pleiade/zoneshare/internal/source"
)

func TestSourceSpec(t *testing.T) {
	c := &config.Config{}
	c.Parcels.Source = config.SourceConfig{Path: "data/car.shp", Encoding: "latin1"}
	c.Layers = []config.LayerConfig{
		{Name: "zee", Source: config.SourceConfig{Table: "gis.zee", GeomCol: "the_geom", SRID: 4674, Format: "PostGIS"}},
	}

	spec, err := sourceSpec(c, "parcels")
	require.NoError(t, err)
	assert.Equal(t, "parcels", spec.Name)
	assert.Equal(t, "data/car.shp", spec.Path)
	assert.Equal(t, "latin1", spec.Encoding)

	spec, err = sourceSpec(c, "zee")
	require.NoError(t, err)
	assert.Equal(t, source.FormatPostGIS, spec.Format)
	assert.Equal(t, "gis.zee", spec.Table)
	assert.Equal(t, "the_geom", spec.GeomColumn)
	assert.Equal(t, 4674, spec.SRID)

	_, err = sourceSpec(c, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown source "nope"`)
}
