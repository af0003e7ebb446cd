package export

import (
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
)

// Backend is the crop-and-save primitive.
type Backend interface {
	// Crop returns the pixels of src inside rect, in src coordinates.
	Crop(src image.Image, rect image.Rectangle) (image.Image, error)
	// Save encodes img to path; the format follows the extension.
	Save(img image.Image, path string) error
}

// Report summarizes an interactive export.
type Report struct {
	Exported int     // Files written
	Skipped  int     // Regions with no pixel area after clamping
	Blocked  int     // Items whose output directory could not be created
	Failures []error // CropError / SaveError values, one per failed directory or item
}

// Exporter runs exports through a Backend, one at a time.
type Exporter struct {
	backend Backend
	running atomic.Bool

	// OnProgress, if set, is called after each item with (done, total).
	OnProgress func(done, total int)
}

// NewExporter creates an exporter using backend.
func NewExporter(backend Backend) *Exporter {
	return &Exporter{backend: backend}
}

// Busy reports whether an export is running.
func (e *Exporter) Busy() bool {
	return e.running.Load()
}

func (e *Exporter) acquire() error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrExportInProgress
	}
	return nil
}

func (e *Exporter) release() {
	e.running.Store(false)
}

// ExportBatch writes every item and stops at the first failure. It returns
// the number of files written before stopping.
func (e *Exporter) ExportBatch(src image.Image, plan []Item) (int, error) {
	if len(plan) == 0 {
		return 0, ErrNoRegions
	}
	if err := e.acquire(); err != nil {
		return 0, err
	}
	defer e.release()

	if failed := ensureDirs(plan); len(failed) > 0 {
		return 0, failed[0].err
	}

	written := 0
	for i, item := range plan {
		ok, err := e.exportItem(src, item)
		if err != nil {
			log.Printf("[Export] batch aborted at %s: %v", item.Filename, err)
			return written, err
		}
		if ok {
			written++
		}
		e.progress(i+1, len(plan))
	}

	log.Printf("[Export] batch wrote %d/%d files", written, len(plan))
	return written, nil
}

// ExportInteractive writes every item it can. Failures are collected in the
// report and do not stop the loop.
func (e *Exporter) ExportInteractive(src image.Image, plan []Item) (Report, error) {
	if len(plan) == 0 {
		return Report{}, ErrNoRegions
	}
	if err := e.acquire(); err != nil {
		return Report{}, err
	}
	defer e.release()

	var report Report
	blocked := make(map[string]bool)
	for _, f := range ensureDirs(plan) {
		log.Printf("[Export] %v", f.err)
		report.Failures = append(report.Failures, f.err)
		blocked[f.dir] = true
	}

	for i, item := range plan {
		if blocked[filepath.Dir(item.Path)] {
			report.Blocked++
			e.progress(i+1, len(plan))
			continue
		}
		ok, err := e.exportItem(src, item)
		switch {
		case err != nil:
			log.Printf("[Export] skipping %s: %v", item.Filename, err)
			report.Failures = append(report.Failures, err)
		case ok:
			report.Exported++
		default:
			report.Skipped++
		}
		e.progress(i+1, len(plan))
	}

	log.Printf("[Export] exported %d/%d files (%d failed)", report.Exported, len(plan), len(report.Failures))
	return report, nil
}

// exportItem crops and saves one item. It returns false without error when
// the region has no pixel area.
func (e *Exporter) exportItem(src image.Image, item Item) (bool, error) {
	rect, ok := PixelRect(src, item)
	if !ok {
		return false, nil
	}

	cropped, err := e.backend.Crop(src, rect)
	if err != nil {
		return false, &CropError{Region: item.Region, Err: err}
	}
	if err := e.backend.Save(cropped, item.Path); err != nil {
		return false, &SaveError{Filename: item.Filename, Err: err}
	}
	return true, nil
}

// PixelRect scales an item's normalized rectangle to src's pixel grid.
// It returns false when the clamped rectangle is empty.
func PixelRect(src image.Image, item Item) (image.Rectangle, bool) {
	if src == nil {
		return image.Rectangle{}, false
	}
	b := src.Bounds()
	r, ok := item.Region.Rect.ToPixels(b.Dx(), b.Dy())
	if !ok {
		return image.Rectangle{}, false
	}
	return r.ImageRect(b.Min), true
}

func (e *Exporter) progress(done, total int) {
	if e.OnProgress != nil {
		e.OnProgress(done, total)
	}
}

type dirFailure struct {
	dir string
	err error
}

// ensureDirs creates the parent directories of every planned path and
// returns the ones that could not be created, in plan order.
func ensureDirs(plan []Item) []dirFailure {
	seen := make(map[string]bool)
	var failed []dirFailure
	for _, item := range plan {
		dir := filepath.Dir(item.Path)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := os.MkdirAll(dir, 0755); err != nil {
			failed = append(failed, dirFailure{
				dir: dir,
				err: &SaveError{Filename: item.Filename, Err: fmt.Errorf("failed to create %s: %w", dir, err)},
			})
		}
	}
	return failed
}
