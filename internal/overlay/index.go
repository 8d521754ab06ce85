package overlay

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/twpayne/go-geom"

	"github.com/pleiade/zoneshare/internal/source"
)

// minExtent keeps R-tree rectangles non-degenerate for slivers and
// axis-aligned lines.
const minExtent = 1e-9

// index is an R-tree over the bounding boxes of a layer's features.
type index struct {
	tree *rtreego.Rtree
}

// indexedFeature wraps a feature position for R-tree storage.
type indexedFeature struct {
	pos  int
	rect rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (f *indexedFeature) Bounds() rtreego.Rect {
	return f.rect
}

func newIndex(features []source.Feature) *index {
	tree := rtreego.NewTree(2, 25, 50)
	for i, f := range features {
		if f.Geom == nil {
			continue
		}
		rect, ok := boundsRect(f.Geom.Bounds())
		if !ok {
			continue
		}
		tree.Insert(&indexedFeature{pos: i, rect: rect})
	}
	return &index{tree: tree}
}

// candidates returns, in ascending feature order, the positions whose
// bounding boxes intersect b.
func (ix *index) candidates(b *geom.Bounds) []int {
	rect, ok := boundsRect(b)
	if !ok {
		return nil
	}
	hits := ix.tree.SearchIntersect(rect)
	out := make([]int, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(*indexedFeature).pos)
	}
	sort.Ints(out)
	return out
}

func (ix *index) size() int {
	return ix.tree.Size()
}

func boundsRect(b *geom.Bounds) (rtreego.Rect, bool) {
	if b == nil || b.IsEmpty() {
		return rtreego.Rect{}, false
	}
	minX, minY := b.Min(0), b.Min(1)
	w := math.Max(b.Max(0)-minX, minExtent)
	h := math.Max(b.Max(1)-minY, minExtent)
	rect, err := rtreego.NewRect(rtreego.Point{minX, minY}, []float64{w, h})
	if err != nil {
		return rtreego.Rect{}, false
	}
	return rect, true
}
