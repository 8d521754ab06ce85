package report

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleiade/zoneshare/internal/overlay"
)

func TestAggregate_TwoZones(t *testing.T) {
	shares, err := Aggregate(10, []overlay.Piece{
		{Class: "B2", AreaHa: 6},
		{Class: "A1", AreaHa: 4},
	})
	require.NoError(t, err)

	require.Len(t, shares, 2)
	assert.Equal(t, "A1", shares[0].Class)
	assert.Equal(t, "40,00", shares[0].PercentText)
	assert.InDelta(t, 4.0, shares[0].AreaHa, 1e-12)
	assert.Equal(t, "B2", shares[1].Class)
	assert.Equal(t, "60,00", shares[1].PercentText)
	assert.Equal(t, []string{"A1", "B2"}, Classes(shares))
}

func TestAggregate_SumsDisjointPiecesOfSameClass(t *testing.T) {
	shares, err := Aggregate(10, []overlay.Piece{
		{Class: "Z", AreaHa: 1, Feature: 0},
		{Class: "Z", AreaHa: 2, Feature: 3},
	})
	require.NoError(t, err)

	require.Len(t, shares, 1)
	assert.Equal(t, "Z", shares[0].Class)
	assert.Equal(t, "30,00", shares[0].PercentText)
	assert.InDelta(t, 30.0, shares[0].Percent, 1e-12)
}

func TestAggregate_FullCoverageSumsToHundred(t *testing.T) {
	pieces := []overlay.Piece{
		{Class: "ZEE-1", AreaHa: 1.0 / 3},
		{Class: "ZEE-2", AreaHa: 1.0 / 3},
		{Class: "ZEE-3", AreaHa: 1.0 / 3},
	}
	shares, err := Aggregate(1, pieces)
	require.NoError(t, err)

	assert.InDelta(t, 100.0, TotalPercent(shares), 1e-9)

	var formatted float64
	for _, s := range shares {
		assert.Equal(t, "33,33", s.PercentText)
		v, err := ParsePercent(s.PercentText)
		require.NoError(t, err)
		formatted += v
	}
	assert.InDelta(t, 100.0, formatted, 0.5)
}

func TestAggregate_PartialCoverage(t *testing.T) {
	shares, err := Aggregate(8, []overlay.Piece{{Class: "Recarga", AreaHa: 2}})
	require.NoError(t, err)
	assert.Equal(t, "25,00", shares[0].PercentText)
	assert.LessOrEqual(t, TotalPercent(shares), 100.0)
}

func TestAggregate_NoPieces(t *testing.T) {
	shares, err := Aggregate(10, nil)
	require.NoError(t, err)
	assert.Empty(t, shares)
	assert.Empty(t, Classes(shares))
}

func TestAggregate_ZeroArea(t *testing.T) {
	_, err := Aggregate(0, []overlay.Piece{{Class: "A", AreaHa: 1}})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrZeroArea))
}

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{40, "40,00"},
		{100, "100,00"},
		{0, "0,00"},
		{12.3456, "12,35"},
		{0.004, "0,00"},
		{99.999, "100,00"},
		{1234.5, "1234,50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPercent(tt.in), "%v", tt.in)
	}
}

func TestFormatPercent_Idempotent(t *testing.T) {
	for _, v := range []float64{0, 0.005, 1.0 / 3, 12.345, 33.335, 49.995, 66.6666, 99.994, 100} {
		s := FormatPercent(v)
		parsed, err := ParsePercent(s)
		require.NoError(t, err)
		assert.Equal(t, s, FormatPercent(parsed), "%v", v)
	}
}

func TestParsePercent_Invalid(t *testing.T) {
	_, err := ParsePercent("quarenta")
	assert.Error(t, err)
}

func TestClasses_SortedDistinct(t *testing.T) {
	shares := []ZoneShare{{Class: "b"}, {Class: "A"}, {Class: "b"}, {Class: "a"}}
	assert.Equal(t, []string{"A", "a", "b"}, Classes(shares))
}
