// Package border infers likely divider positions from the edge content of an
// image. It projects a gradient-magnitude map onto each axis and picks
// well-separated peaks.
package border

import (
	"errors"
	"image"
	"log"
	"math"
	"runtime"
	"sync"

	"scan-slicer/pkg/colorutil"

	"gonum.org/v1/gonum/floats"
)

// Detected lines closer than this to an image edge are treated as spurious.
const (
	edgeGuardMin = 0.03
	edgeGuardMax = 0.97
)

// ErrNoImage is returned by Grayscale when there are no pixels to convert.
var ErrNoImage = errors.New("no image data")

// Options controls peak selection.
type Options struct {
	MaxLines   int     // Maximum lines accepted per axis
	MinSpacing float64 // Minimum distance between lines, as a fraction of the axis length
}

// DefaultOptions returns the detector defaults (8 lines, 8% spacing).
func DefaultOptions() Options {
	return Options{
		MaxLines:   8,
		MinSpacing: 0.08,
	}
}

// OptionsForGrid derives options from an expected column and row count:
// one line fewer than the larger count, spaced 0.8/(n+1) apart.
func OptionsForGrid(columns, rows int) Options {
	n := max(columns, rows)
	if n < 1 {
		n = 1
	}
	return Options{
		MaxLines:   n - 1,
		MinSpacing: 0.8 / float64(n+1),
	}
}

// Result holds normalized divider candidates, ascending.
type Result struct {
	Vertical   []float64 `json:"vertical"`
	Horizontal []float64 `json:"horizontal"`
}

// Count returns the total number of detected lines.
func (r Result) Count() int {
	return len(r.Vertical) + len(r.Horizontal)
}

// Detector runs border detection. Convert may be replaced with another
// grayscale backend; nil means Grayscale.
type Detector struct {
	Options Options
	Convert func(image.Image) (*image.Gray, error)
}

// NewDetector creates a detector with the given options and the pure-Go converter.
func NewDetector(opts Options) *Detector {
	return &Detector{Options: opts}
}

// Detect converts img to grayscale and returns divider candidates.
// A conversion failure yields an empty result rather than an error.
func (d *Detector) Detect(img image.Image) Result {
	convert := d.Convert
	if convert == nil {
		convert = Grayscale
	}

	gray, err := convert(img)
	if err == nil && gray == nil {
		err = errors.New("converter returned no image")
	}
	if err != nil {
		log.Printf("[Border] grayscale conversion failed: %v", err)
		return Result{Vertical: []float64{}, Horizontal: []float64{}}
	}
	return DetectGray(gray, d.Options)
}

// Detect runs detection with opts using the pure-Go converter.
func Detect(img image.Image, opts Options) Result {
	return NewDetector(opts).Detect(img)
}

// DetectGray runs detection on an already-converted buffer.
func DetectGray(gray *image.Gray, opts Options) Result {
	if gray == nil {
		return Result{Vertical: []float64{}, Horizontal: []float64{}}
	}
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	if w == 0 || h == 0 {
		return Result{Vertical: []float64{}, Horizontal: []float64{}}
	}

	edges := EdgeMap(gray)
	cols := ColumnScores(edges, w, h)
	rows := RowScores(edges, w, h)

	xPeaks := FindPeaks(cols, opts.MaxLines, opts.MinSpacing*float64(w))
	yPeaks := FindPeaks(rows, opts.MaxLines, opts.MinSpacing*float64(h))

	res := Result{
		Vertical:   normalizePeaks(xPeaks, w),
		Horizontal: normalizePeaks(yPeaks, h),
	}
	log.Printf("[Border] %dx%d: %d vertical, %d horizontal (max %d, spacing %.3f)",
		w, h, len(res.Vertical), len(res.Horizontal), opts.MaxLines, opts.MinSpacing)
	return res
}

// Grayscale converts img to a tightly packed 8-bit buffer with origin (0,0).
func Grayscale(img image.Image) (*image.Gray, error) {
	if img == nil {
		return nil, ErrNoImage
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrNoImage
	}

	gray := image.NewGray(image.Rect(0, 0, w, h))
	if src, ok := img.(*image.Gray); ok {
		for y := 0; y < h; y++ {
			srcOff := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(gray.Pix[y*gray.Stride:y*gray.Stride+w], src.Pix[srcOff:srcOff+w])
		}
		return gray, nil
	}

	forStripes(h, func(yStart, yEnd int) {
		for y := yStart; y < yEnd; y++ {
			row := gray.Pix[y*gray.Stride:]
			for x := 0; x < w; x++ {
				row[x] = colorutil.Intensity(img.At(x+bounds.Min.X, y+bounds.Min.Y))
			}
		}
	})
	return gray, nil
}

// EdgeMap computes central-difference gradient magnitudes, row-major,
// one value per pixel. The outermost pixel ring is left at zero.
func EdgeMap(gray *image.Gray) []float64 {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	edges := make([]float64, w*h)
	if w < 3 || h < 3 {
		return edges
	}

	at := func(x, y int) float64 {
		return float64(gray.Pix[y*gray.Stride+x])
	}

	forStripes(h-2, func(yStart, yEnd int) {
		for y := yStart + 1; y < yEnd+1; y++ {
			for x := 1; x < w-1; x++ {
				gx := at(x+1, y) - at(x-1, y)
				gy := at(x, y+1) - at(x, y-1)
				edges[y*w+x] = math.Sqrt(gx*gx + gy*gy)
			}
		}
	})
	return edges
}

// ColumnScores returns, for each x, the mean edge value over all rows.
func ColumnScores(edges []float64, w, h int) []float64 {
	scores := make([]float64, w)
	for y := 0; y < h; y++ {
		floats.Add(scores, edges[y*w:(y+1)*w])
	}
	floats.Scale(1/float64(h), scores)
	return scores
}

// RowScores returns, for each y, the mean edge value over all columns.
func RowScores(edges []float64, w, h int) []float64 {
	scores := make([]float64, h)
	for y := 0; y < h; y++ {
		scores[y] = floats.Sum(edges[y*w:(y+1)*w]) / float64(w)
	}
	return scores
}

// normalizePeaks converts pixel positions to fractions of dim and drops
// anything outside the open interval (0.03, 0.97).
func normalizePeaks(peaks []int, dim int) []float64 {
	out := make([]float64, 0, len(peaks))
	for _, p := range peaks {
		v := float64(p) / float64(dim)
		if v > edgeGuardMin && v < edgeGuardMax {
			out = append(out, v)
		}
	}
	return out
}

// forStripes splits [0,n) into horizontal stripes and runs fn on each in parallel.
func forStripes(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	numWorkers := runtime.NumCPU()
	perWorker := (n + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for start := 0; start < n; start += perWorker {
		end := min(start+perWorker, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}
