// Package colorutil provides shared color utilities for the slicer.
package colorutil

import (
	"image/color"
)

// Luma converts 16-bit RGB components (as returned by color.Color.RGBA) to an
// 8-bit intensity using the ITU-R BT.601 weights that image/color uses for Gray.
func Luma(r, g, b uint32) uint8 {
	y := (19595*r + 38470*g + 7471*b + 1<<15) >> 24
	return uint8(y)
}

// Intensity returns the 8-bit intensity of any color.
func Intensity(c color.Color) uint8 {
	r, g, b, _ := c.RGBA()
	return Luma(r, g, b)
}
