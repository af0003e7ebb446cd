package grid

import (
	"sort"

	"scan-slicer/pkg/geometry"
)

// activeDividers returns the sorted dividers strictly inside (lo, hi).
// Dividers outside the crop area stay in state but do not split regions.
func activeDividers(list []float64, lo, hi float64) []float64 {
	out := make([]float64, 0, len(list))
	for _, p := range list {
		if p > lo && p < hi {
			out = append(out, p)
		}
	}
	sort.Float64s(out)
	return out
}

// XBoundaries returns the left margin, the active vertical dividers and the
// right margin edge, in order.
func (g *Geometry) XBoundaries() []float64 {
	hi := 1 - g.Right
	bounds := []float64{g.Left}
	bounds = append(bounds, activeDividers(g.Vertical, g.Left, hi)...)
	return append(bounds, hi)
}

// YBoundaries is the horizontal counterpart of XBoundaries.
func (g *Geometry) YBoundaries() []float64 {
	hi := 1 - g.Footer
	bounds := []float64{g.Header}
	bounds = append(bounds, activeDividers(g.Horizontal, g.Header, hi)...)
	return append(bounds, hi)
}

// ColumnCount is the number of active vertical dividers plus one. It does not
// account for dropped slivers.
func (g *Geometry) ColumnCount() int {
	return len(g.XBoundaries()) - 1
}

// RowCount is the number of active horizontal dividers plus one.
func (g *Geometry) RowCount() int {
	return len(g.YBoundaries()) - 1
}

// Regions computes the crop regions in row-major order. Slivers no wider or
// taller than SliverSize are dropped before ordinals are assigned.
// It never mutates g.
func (g *Geometry) Regions() []CropRegion {
	xs := g.XBoundaries()
	ys := g.YBoundaries()

	regions := make([]CropRegion, 0, (len(xs)-1)*(len(ys)-1))
	for row := 0; row+1 < len(ys); row++ {
		y, y2 := ys[row], ys[row+1]
		for col := 0; col+1 < len(xs); col++ {
			x, x2 := xs[col], xs[col+1]
			w, h := x2-x, y2-y
			if w <= SliverSize || h <= SliverSize {
				continue
			}
			regions = append(regions, CropRegion{
				Row:     row,
				Column:  col,
				Ordinal: len(regions) + 1,
				Rect:    geometry.NewRect(x, y, w, h),
			})
		}
	}
	return regions
}

// ExportableRegions returns Regions without those whose ordinal is excluded.
func (g *Geometry) ExportableRegions() []CropRegion {
	all := g.Regions()
	out := make([]CropRegion, 0, len(all))
	for i, r := range all {
		if g.IsRegionExcluded(i + 1) {
			continue
		}
		out = append(out, r)
	}
	return out
}
