// Command bordertest runs border detection on an image and prints the score
// profiles and selected peaks.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"scan-slicer/internal/border"
	"scan-slicer/internal/image"

	"gonum.org/v1/gonum/floats"
)

func main() {
	path := flag.String("f", "", "Path to image or PDF")
	page := flag.Int("page", 1, "Page to render (1-based)")
	maxLines := flag.Int("max", 8, "Maximum lines per axis")
	spacing := flag.Float64("spacing", 0.08, "Minimum spacing (fraction of axis)")
	top := flag.Int("top", 10, "Number of highest-scoring positions to print per axis")
	bars := flag.Bool("bars", false, "Print the full score profile as bars")
	flag.Parse()

	if *path == "" {
		fmt.Println("Usage: bordertest -f <image> [-page N] [-max N] [-spacing F] [-top N] [-bars]")
		os.Exit(1)
	}

	src, err := image.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load: %v\n", err)
		os.Exit(1)
	}
	if *page > 1 {
		if err := src.SelectPage(*page - 1); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to select page: %v\n", err)
			os.Exit(1)
		}
	}

	gray, err := border.Grayscale(src.Image)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Grayscale failed: %v\n", err)
		os.Exit(1)
	}
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	fmt.Printf("=== %s page %d: %dx%d ===\n", src.Path, src.Page+1, w, h)

	edges := border.EdgeMap(gray)
	cols := border.ColumnScores(edges, w, h)
	rows := border.RowScores(edges, w, h)

	opts := border.Options{MaxLines: *maxLines, MinSpacing: *spacing}
	printAxis("Columns", cols, opts.MaxLines, opts.MinSpacing*float64(w), *top, *bars)
	printAxis("Rows", rows, opts.MaxLines, opts.MinSpacing*float64(h), *top, *bars)

	res := border.DetectGray(gray, opts)
	fmt.Printf("\n=== Result ===\n")
	fmt.Printf("Vertical:   %s\n", formatPositions(res.Vertical))
	fmt.Printf("Horizontal: %s\n", formatPositions(res.Horizontal))
}

func printAxis(label string, scores []float64, maxLines int, minDist float64, top int, bars bool) {
	fmt.Printf("\n=== %s (%d samples, min distance %.1fpx) ===\n", label, len(scores), minDist)

	order := border.RankScores(scores)
	if top > len(order) {
		top = len(order)
	}
	for _, i := range order[:top] {
		fmt.Printf("  %5d  %.3f\n", i, scores[i])
	}

	peaks := border.FindPeaks(scores, maxLines, minDist)
	fmt.Printf("Peaks: %v\n", peaks)

	if bars && len(scores) > 0 {
		peak := floats.Max(scores)
		if peak == 0 {
			peak = 1
		}
		for i, s := range scores {
			fmt.Printf("%5d %s\n", i, strings.Repeat("#", int(s/peak*60)))
		}
	}
}

func formatPositions(ps []float64) string {
	if len(ps) == 0 {
		return "none"
	}
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = fmt.Sprintf("%.4f", p)
	}
	return strings.Join(parts, " ")
}
