package analysis

import (
	"github.com/pleiade/zoneshare/internal/catalog"
	"github.com/pleiade/zoneshare/internal/report"
)

// DefaultEmptyMessage is reported by optional layers the parcel does not
// intersect.
const DefaultEmptyMessage = "no priority areas present"

// Result is the outcome of one query. ParcelAreaHa is measured once and
// every layer's percentages are relative to it.
type Result struct {
	QueryID      string        `json:"query_id"`
	ParcelID     string        `json:"parcel_id"`
	ParcelName   string        `json:"parcel_name"`
	ParcelAreaHa float64       `json:"parcel_area_ha"`
	Layers       []LayerReport `json:"layers"`
}

// LayerReport holds the zone shares of one reference layer.
type LayerReport struct {
	Name         string                   `json:"name"`
	Required     bool                     `json:"required"`
	CRS          string                   `json:"crs,omitempty"`
	Shares       []report.ZoneShare       `json:"shares"`
	Classes      []string                 `json:"classes"`
	Descriptions map[string]catalog.Entry `json:"descriptions,omitempty"`
	Empty        bool                     `json:"empty"`
	Message      string                   `json:"message,omitempty"`
	Error        *QueryError              `json:"error,omitempty"`
}

// OK reports whether the layer was computed, empty or not.
func (l *LayerReport) OK() bool {
	return l.Error == nil
}

// Layer returns the report of the named layer.
func (r *Result) Layer(name string) (*LayerReport, bool) {
	for i := range r.Layers {
		if r.Layers[i].Name == name {
			return &r.Layers[i], true
		}
	}
	return nil, false
}

// Zoning returns the first required layer, the one a parcel must intersect.
func (r *Result) Zoning() *LayerReport {
	for i := range r.Layers {
		if r.Layers[i].Required {
			return &r.Layers[i]
		}
	}
	return nil
}

// Ecosystem returns the first optional layer.
func (r *Result) Ecosystem() *LayerReport {
	for i := range r.Layers {
		if !r.Layers[i].Required {
			return &r.Layers[i]
		}
	}
	return nil
}
