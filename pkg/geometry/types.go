// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"image"
	"math"
)

// Rect represents a rectangle with floating-point coordinates.
// Crop regions use it in normalized (0..1) image space.
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// NewRect creates a new Rect.
func NewRect(x, y, width, height float64) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// Right returns the X coordinate of the right edge.
func (r Rect) Right() float64 {
	return r.X + r.Width
}

// Bottom returns the Y coordinate of the bottom edge.
func (r Rect) Bottom() float64 {
	return r.Y + r.Height
}

// Scale returns the rectangle with X/Width multiplied by sx and Y/Height by sy.
func (r Rect) Scale(sx, sy float64) Rect {
	return Rect{X: r.X * sx, Y: r.Y * sy, Width: r.Width * sx, Height: r.Height * sy}
}

// ToPixels maps a normalized rectangle onto an image of the given pixel size.
// The result is rounded and clamped to [0,width]x[0,height]. The second return
// value is false when the clamped rectangle has no area.
func (r Rect) ToPixels(width, height int) (RectInt, bool) {
	s := r.Scale(float64(width), float64(height))
	x0 := clampInt(int(math.Round(s.X)), 0, width)
	y0 := clampInt(int(math.Round(s.Y)), 0, height)
	x1 := clampInt(int(math.Round(s.Right())), 0, width)
	y1 := clampInt(int(math.Round(s.Bottom())), 0, height)

	out := RectInt{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
	return out, out.Width > 0 && out.Height > 0
}

// RectInt represents a rectangle with integer coordinates.
type RectInt struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// ImageRect converts to an image.Rectangle offset by origin.
func (r RectInt) ImageRect(origin image.Point) image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height).Add(origin)
}

// Size represents a 2D size.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// NewSize creates a new Size.
func NewSize(width, height float64) Size {
	return Size{Width: width, Height: height}
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
