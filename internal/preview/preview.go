// Package preview renders a grid over its source image so a layout can be
// checked before exporting.
package preview

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"scan-slicer/internal/grid"
)

// BlendMode specifies how a tint is combined with the image underneath.
type BlendMode int

const (
	BlendNormal BlendMode = iota
	BlendMultiply
	BlendScreen
)

func (m BlendMode) String() string {
	switch m {
	case BlendNormal:
		return "Normal"
	case BlendMultiply:
		return "Multiply"
	case BlendScreen:
		return "Screen"
	default:
		return "Unknown"
	}
}

// Style controls the overlay colors.
type Style struct {
	DividerColor color.RGBA
	DividerWidth int

	MarginTint    color.RGBA
	MarginMode    BlendMode
	MarginOpacity float64

	ExcludedTint    color.RGBA
	ExcludedMode    BlendMode
	ExcludedOpacity float64
}

// DefaultStyle draws cyan dividers, darkens margins and tints excluded
// regions red.
func DefaultStyle() Style {
	return Style{
		DividerColor:    color.RGBA{0, 200, 255, 255},
		DividerWidth:    3,
		MarginTint:      color.RGBA{128, 128, 128, 255},
		MarginMode:      BlendMultiply,
		MarginOpacity:   0.5,
		ExcludedTint:    color.RGBA{255, 0, 0, 255},
		ExcludedMode:    BlendNormal,
		ExcludedOpacity: 0.35,
	}
}

// Render copies src and draws g's margins, excluded regions and divider
// lines on top. The result has origin (0,0).
func Render(src image.Image, g *grid.Geometry, style Style) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	result := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(result, result.Bounds(), src, b.Min, draw.Src)
	if w == 0 || h == 0 {
		return result
	}

	xs := g.XBoundaries()
	ys := g.YBoundaries()
	band := image.Rect(
		toPixel(xs[0], w), toPixel(ys[0], h),
		toPixel(xs[len(xs)-1], w), toPixel(ys[len(ys)-1], h),
	)

	// Margins are everything outside the band.
	for _, r := range []image.Rectangle{
		image.Rect(0, 0, w, band.Min.Y),
		image.Rect(0, band.Max.Y, w, h),
		image.Rect(0, band.Min.Y, band.Min.X, band.Max.Y),
		image.Rect(band.Max.X, band.Min.Y, w, band.Max.Y),
	} {
		tintRect(result, r, style.MarginTint, style.MarginMode, style.MarginOpacity)
	}

	for _, region := range g.Regions() {
		if !g.IsRegionExcluded(region.Ordinal) {
			continue
		}
		if pr, ok := region.Rect.ToPixels(w, h); ok {
			tintRect(result, pr.ImageRect(image.Point{}), style.ExcludedTint, style.ExcludedMode, style.ExcludedOpacity)
		}
	}

	half := style.DividerWidth / 2
	for _, x := range xs {
		px := min(toPixel(x, w), w-1)
		r := image.Rect(px-half, band.Min.Y, px-half+style.DividerWidth, band.Max.Y)
		tintRect(result, r, style.DividerColor, BlendNormal, 1)
	}
	for _, y := range ys {
		py := min(toPixel(y, h), h-1)
		r := image.Rect(band.Min.X, py-half, band.Max.X, py-half+style.DividerWidth)
		tintRect(result, r, style.DividerColor, BlendNormal, 1)
	}
	return result
}

func toPixel(v float64, dim int) int {
	return int(math.Round(v * float64(dim)))
}

// tintRect blends tint over every pixel of r, clipped to dst.
func tintRect(dst *image.RGBA, r image.Rectangle, tint color.Color, mode BlendMode, opacity float64) {
	r = r.Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			dst.SetRGBA(x, y, blend(dst.RGBAAt(x, y), tint, mode, opacity))
		}
	}
}

// blend performs the blend operation between two colors.
func blend(dst, src color.Color, mode BlendMode, opacity float64) color.RGBA {
	sr, sg, sb, sa := src.RGBA()
	dr, dg, db, da := dst.RGBA()

	// Convert to 0-1 range
	sf := [4]float64{float64(sr) / 65535.0, float64(sg) / 65535.0, float64(sb) / 65535.0, float64(sa) / 65535.0}
	df := [4]float64{float64(dr) / 65535.0, float64(dg) / 65535.0, float64(db) / 65535.0, float64(da) / 65535.0}

	var rf [3]float64
	for i := 0; i < 3; i++ {
		switch mode {
		case BlendMultiply:
			rf[i] = sf[i] * df[i]
		case BlendScreen:
			rf[i] = 1 - (1-sf[i])*(1-df[i])
		default:
			rf[i] = sf[i]
		}
	}

	alpha := sf[3] * opacity
	return color.RGBA{
		R: toByte(rf[0]*alpha + df[0]*(1-alpha)),
		G: toByte(rf[1]*alpha + df[1]*(1-alpha)),
		B: toByte(rf[2]*alpha + df[2]*(1-alpha)),
		A: toByte(alpha + df[3]*(1-alpha)),
	}
}

func toByte(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
