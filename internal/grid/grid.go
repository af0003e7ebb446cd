// Package grid holds the divider/margin state of a slicing session and derives
// the crop-region grid from it.
package grid

import (
	"fmt"
	"sort"

	"scan-slicer/pkg/geometry"
)

// Axis selects a divider list.
type Axis int

const (
	AxisVertical   Axis = iota // Vertical lines, normalized X positions
	AxisHorizontal             // Horizontal lines, normalized Y positions
)

func (a Axis) String() string {
	switch a {
	case AxisVertical:
		return "vertical"
	case AxisHorizontal:
		return "horizontal"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Side identifies an exclusion margin.
type Side int

const (
	SideHeader Side = iota
	SideFooter
	SideLeft
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideHeader:
		return "header"
	case SideFooter:
		return "footer"
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

const (
	MinDividerPosition = 0.01
	MaxDividerPosition = 0.99

	// MaxExclusion caps each margin independently. Opposite margins are not
	// checked against each other.
	MaxExclusion = 0.4

	// SliverSize is the normalized width/height at or below which a region is dropped.
	SliverSize = 0.001
)

// Geometry is the mutable divider and exclusion state for one image or page.
// It has no internal locking; a single owner mutates it.
type Geometry struct {
	Vertical   []float64 `json:"vertical_dividers"`
	Horizontal []float64 `json:"horizontal_dividers"`

	Header float64 `json:"header_exclusion"`
	Footer float64 `json:"footer_exclusion"`
	Left   float64 `json:"left_exclusion"`
	Right  float64 `json:"right_exclusion"`

	// Excluded holds 1-based region ordinals. Ordinals are positions in the
	// current row-major region list, so they do not follow a region when the
	// dividers change.
	Excluded map[int]bool `json:"excluded_regions,omitempty"`
}

// CropRegion is one cell of the computed grid. It is derived, never stored.
type CropRegion struct {
	Row     int           `json:"row" yaml:"row"`
	Column  int           `json:"column" yaml:"column"`
	Ordinal int           `json:"ordinal" yaml:"ordinal"` // 1-based position in the row-major list
	Rect    geometry.Rect `json:"rect" yaml:"rect"`       // Normalized
}

func (r CropRegion) String() string {
	return fmt.Sprintf("region %d (row %d, col %d)", r.Ordinal, r.Row+1, r.Column+1)
}

// New returns an empty grid: no dividers, no margins, nothing excluded.
func New() *Geometry {
	return &Geometry{Excluded: make(map[int]bool)}
}

// Clone returns a deep copy suitable for a page snapshot or a background job.
func (g *Geometry) Clone() *Geometry {
	c := &Geometry{
		Vertical:   append([]float64(nil), g.Vertical...),
		Horizontal: append([]float64(nil), g.Horizontal...),
		Header:     g.Header,
		Footer:     g.Footer,
		Left:       g.Left,
		Right:      g.Right,
		Excluded:   make(map[int]bool, len(g.Excluded)),
	}
	for k, v := range g.Excluded {
		if v {
			c.Excluded[k] = true
		}
	}
	return c
}

// Dividers returns the divider list for an axis. The slice is owned by g.
func (g *Geometry) Dividers(axis Axis) []float64 {
	if axis == AxisHorizontal {
		return g.Horizontal
	}
	return g.Vertical
}

func (g *Geometry) setList(axis Axis, list []float64) {
	if axis == AxisHorizontal {
		g.Horizontal = list
	} else {
		g.Vertical = list
	}
}

// AddDivider inserts a divider at position, clamped to [0.01, 0.99].
func (g *Geometry) AddDivider(axis Axis, position float64) float64 {
	pos := clampDivider(position)
	list := append(append([]float64(nil), g.Dividers(axis)...), pos)
	sort.Float64s(list)
	g.setList(axis, list)
	return pos
}

// AddDividerInLargestGap inserts a divider at the midpoint of the widest gap
// between existing dividers and the 0/1 image edges. The first widest gap wins.
func (g *Geometry) AddDividerInLargestGap(axis Axis) float64 {
	return g.AddDivider(axis, LargestGapMidpoint(g.Dividers(axis)))
}

// LargestGapMidpoint returns the midpoint of the widest gap in positions,
// with virtual boundaries at 0 and 1.
func LargestGapMidpoint(positions []float64) float64 {
	bounds := make([]float64, 0, len(positions)+2)
	bounds = append(bounds, 0)
	bounds = append(bounds, positions...)
	bounds = append(bounds, 1)
	sort.Float64s(bounds)

	bestStart, bestWidth := 0.0, -1.0
	for i := 0; i+1 < len(bounds); i++ {
		w := bounds[i+1] - bounds[i]
		if w > bestWidth {
			bestStart, bestWidth = bounds[i], w
		}
	}
	return bestStart + bestWidth/2
}

// RemoveDivider removes the divider at index. Out-of-range indices are ignored.
func (g *Geometry) RemoveDivider(axis Axis, index int) bool {
	list := g.Dividers(axis)
	if index < 0 || index >= len(list) {
		return false
	}
	out := append([]float64(nil), list[:index]...)
	g.setList(axis, append(out, list[index+1:]...))
	return true
}

// MoveDivider sets the divider at index to position, clamped. The list is not
// re-sorted; Regions sorts at query time.
func (g *Geometry) MoveDivider(axis Axis, index int, position float64) bool {
	list := g.Dividers(axis)
	if index < 0 || index >= len(list) {
		return false
	}
	list[index] = clampDivider(position)
	return true
}

// MoveAllOnAxis shifts every divider on an axis by delta. Each one is clamped
// on its own, so dividers may collide at the limits.
func (g *Geometry) MoveAllOnAxis(axis Axis, delta float64) {
	list := g.Dividers(axis)
	for i := range list {
		list[i] = clampDivider(list[i] + delta)
	}
}

// SetDividers replaces a divider list, e.g. with border detection output.
func (g *Geometry) SetDividers(axis Axis, positions []float64) {
	list := make([]float64, len(positions))
	for i, p := range positions {
		list[i] = clampDivider(p)
	}
	sort.Float64s(list)
	g.setList(axis, list)
}

// Exclusion returns the margin for side.
func (g *Geometry) Exclusion(side Side) float64 {
	switch side {
	case SideHeader:
		return g.Header
	case SideFooter:
		return g.Footer
	case SideLeft:
		return g.Left
	case SideRight:
		return g.Right
	}
	return 0
}

// SetExclusion sets the margin for side, clamped to [0, 0.4].
func (g *Geometry) SetExclusion(side Side, value float64) float64 {
	v := geometry.Clamp(value, 0, MaxExclusion)
	switch side {
	case SideHeader:
		g.Header = v
	case SideFooter:
		g.Footer = v
	case SideLeft:
		g.Left = v
	case SideRight:
		g.Right = v
	}
	return v
}

// Reset clears both divider lists and the excluded-region set. Margins stay.
func (g *Geometry) Reset() {
	g.Vertical = nil
	g.Horizontal = nil
	g.Excluded = make(map[int]bool)
}

// ResetExclusions zeroes all four margins. Dividers stay.
func (g *Geometry) ResetExclusions() {
	g.Header, g.Footer, g.Left, g.Right = 0, 0, 0, 0
}

// IsRegionExcluded reports whether the 1-based ordinal is marked excluded.
func (g *Geometry) IsRegionExcluded(ordinal int) bool {
	return g.Excluded[ordinal]
}

// SetRegionExcluded marks or unmarks a 1-based ordinal.
func (g *Geometry) SetRegionExcluded(ordinal int, excluded bool) {
	if g.Excluded == nil {
		g.Excluded = make(map[int]bool)
	}
	if excluded {
		g.Excluded[ordinal] = true
	} else {
		delete(g.Excluded, ordinal)
	}
}

// ToggleRegion flips the excluded flag of a 1-based ordinal and returns the new state.
func (g *Geometry) ToggleRegion(ordinal int) bool {
	excluded := !g.IsRegionExcluded(ordinal)
	g.SetRegionExcluded(ordinal, excluded)
	return excluded
}

// ExcludedOrdinals returns the excluded ordinals in ascending order.
func (g *Geometry) ExcludedOrdinals() []int {
	out := make([]int, 0, len(g.Excluded))
	for k, v := range g.Excluded {
		if v {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

// ClearExcludedRegions empties the excluded-region set.
func (g *Geometry) ClearExcludedRegions() {
	g.Excluded = make(map[int]bool)
}

func clampDivider(p float64) float64 {
	return geometry.Clamp(p, MinDividerPosition, MaxDividerPosition)
}
