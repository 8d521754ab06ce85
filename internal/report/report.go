// Package report turns overlay pieces into per-classification shares of a
// parcel's area.
package report

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pleiade/zoneshare/internal/overlay"
)

// ErrZeroArea is returned when shares are requested for a parcel without area.
var ErrZeroArea = eris.New("parcel has zero area")

// ZoneShare is one classification value and the part of the parcel it covers.
// Percent is the exact ratio; PercentText is the two-decimal, comma-separated
// rendering consumers rely on (e.g. "40,00").
type ZoneShare struct {
	Class       string  `json:"class"`
	AreaHa      float64 `json:"area_ha"`
	Percent     float64 `json:"percent"`
	PercentText string  `json:"percent_text"`
}

// Aggregate groups pieces by classification, sums their areas and expresses
// each group as a percentage of parcelAreaHa. Shares are ordered by class.
func Aggregate(parcelAreaHa float64, pieces []overlay.Piece) ([]ZoneShare, error) {
	if parcelAreaHa <= 0 {
		return nil, ErrZeroArea
	}

	sums := make(map[string]float64, len(pieces))
	for _, p := range pieces {
		sums[p.Class] += p.AreaHa
	}

	shares := make([]ZoneShare, 0, len(sums))
	for class, area := range sums {
		pct := area / parcelAreaHa * 100
		shares = append(shares, ZoneShare{
			Class:       class,
			AreaHa:      area,
			Percent:     pct,
			PercentText: FormatPercent(pct),
		})
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].Class < shares[j].Class })
	return shares, nil
}

// Classes returns the distinct classifications of shares in ascending order.
func Classes(shares []ZoneShare) []string {
	seen := make(map[string]bool, len(shares))
	out := make([]string, 0, len(shares))
	for _, s := range shares {
		if !seen[s.Class] {
			seen[s.Class] = true
			out = append(out, s.Class)
		}
	}
	sort.Strings(out)
	return out
}

// TotalPercent sums the exact percentages of shares.
func TotalPercent(shares []ZoneShare) float64 {
	var total float64
	for _, s := range shares {
		total += s.Percent
	}
	return total
}

// FormatPercent renders v with two decimals and a comma decimal separator.
func FormatPercent(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', 2, 64), ".", ",", 1)
}

// ParsePercent reverses FormatPercent.
func ParsePercent(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(s), ",", ".", 1), 64)
	if err != nil {
		return 0, eris.Wrapf(err, "report: parse percent %q", s)
	}
	return v, nil
}
