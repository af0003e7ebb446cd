// Package app provides the slicing session state, its events, and the
// detection and export workflows that run against it.
package app

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"scan-slicer/internal/border"
	"scan-slicer/internal/export"
	"scan-slicer/internal/grid"
	"scan-slicer/internal/image"
	"scan-slicer/internal/project"
)

// ErrNoSource is returned by operations that need a loaded image.
var ErrNoSource = errors.New("no image loaded")

// State holds the loaded source, its grid and per-page snapshots.
type State struct {
	mu sync.RWMutex

	// Session
	SessionPath string
	Modified    bool
	Settings    project.Settings

	// Source image or document page
	Source *image.Source

	// Grid of the current page, and snapshots of visited pages
	Grid  *grid.Geometry
	Pages *grid.PageStore

	Loader   *image.Loader
	Detector *border.Detector
	Exporter *export.Exporter

	// generation changes whenever the displayed pixels change, so late
	// detection results for an old page are discarded.
	generation uint64

	// Event listeners
	listeners map[EventType][]EventListener
}

// EventType identifies different application events.
type EventType int

const (
	EventSourceLoaded EventType = iota
	EventPageChanged
	EventGridChanged
	EventDetectionComplete
	EventExportComplete
	EventSessionLoaded
	EventSessionSaved
	EventModified
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// ExportSummary is the payload of EventExportComplete.
type ExportSummary struct {
	Written int
	Report  *export.Report // Set for interactive exports
	Err     error
}

// NewState creates a new application state.
func NewState() *State {
	return &State{
		Grid:      grid.New(),
		Pages:     grid.NewPageStore(),
		Loader:    image.DefaultLoader(),
		Detector:  border.NewDetector(border.DefaultOptions()),
		Exporter:  export.NewExporter(export.ImagingBackend{}),
		listeners: make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// SetModified marks the session as modified and emits an event.
func (s *State) SetModified(modified bool) {
	s.mu.Lock()
	s.Modified = modified
	s.mu.Unlock()
	s.Emit(EventModified, modified)
}

// LoadSource loads an image or document and resets the grid and page store.
func (s *State) LoadSource(path string) error {
	src, err := s.Loader.Load(path)
	if err != nil {
		return err
	}
	s.SetSource(src)
	return nil
}

// SetSource installs an already-loaded source with a fresh grid.
func (s *State) SetSource(src *image.Source) {
	s.mu.Lock()
	s.Source = src
	s.Grid = grid.New()
	s.Pages = grid.NewPageStore()
	s.generation++
	s.mu.Unlock()

	s.SetModified(false)
	s.Emit(EventSourceLoaded, src)
}

// CurrentPage returns the 0-based page on display.
func (s *State) CurrentPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Source == nil {
		return 0
	}
	return s.Source.Page
}

// PageCount returns the number of pages of the source, or 0 when none is loaded.
func (s *State) PageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Source == nil {
		return 0
	}
	return s.Source.PageCount()
}

// SelectPage saves the current grid as the current page's snapshot, renders
// page and switches to its grid. A page without a snapshot inherits the first
// page's dividers and margins with no excluded regions.
func (s *State) SelectPage(page int) error {
	s.mu.Lock()
	if s.Source == nil {
		s.mu.Unlock()
		return ErrNoSource
	}
	prev := s.Source.Page
	if page == prev {
		s.mu.Unlock()
		return nil
	}
	if err := s.Source.SelectPage(page); err != nil {
		s.mu.Unlock()
		return err
	}
	s.Pages.Save(prev, s.Grid)
	s.Grid = s.Pages.Lookup(page)
	s.generation++
	s.mu.Unlock()

	log.Printf("[State] page %d -> %d", prev+1, page+1)
	s.Emit(EventPageChanged, page)
	s.Emit(EventGridChanged, s.GridSnapshot())
	return nil
}

// GridSnapshot returns a copy of the current grid.
func (s *State) GridSnapshot() *grid.Geometry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Grid.Clone()
}

// UpdateGrid applies fn to the current grid under the state lock, marks the
// session modified and emits EventGridChanged.
func (s *State) UpdateGrid(fn func(g *grid.Geometry)) {
	s.mu.Lock()
	fn(s.Grid)
	snap := s.Grid.Clone()
	s.mu.Unlock()

	s.SetModified(true)
	s.Emit(EventGridChanged, snap)
}

// Regions returns the current crop regions, excluded ones included.
func (s *State) Regions() []grid.CropRegion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Grid.Regions()
}

// SetDetectOptions replaces the detector's options.
func (s *State) SetDetectOptions(opts border.Options) {
	s.mu.Lock()
	s.Detector.Options = opts
	s.mu.Unlock()
}

// DetectBorders runs border detection on a background goroutine against the
// current pixels. When apply is set the result replaces the grid's dividers,
// unless the page or source changed in the meantime. The channel receives
// exactly one result and is then closed.
func (s *State) DetectBorders(apply bool) (<-chan border.Result, error) {
	s.mu.RLock()
	if s.Source == nil || s.Source.Image == nil {
		s.mu.RUnlock()
		return nil, ErrNoSource
	}
	img := s.Source.Image
	det := *s.Detector
	gen := s.generation
	s.mu.RUnlock()

	out := make(chan border.Result, 1)
	go func() {
		defer close(out)
		res := det.Detect(img)
		if apply && !s.applyDetection(res, gen) {
			log.Printf("[State] discarding detection result for a previous page")
		}
		s.Emit(EventDetectionComplete, res)
		out <- res
	}()
	return out, nil
}

// ApplyDetection replaces both divider lists with a detection result.
func (s *State) ApplyDetection(res border.Result) {
	s.UpdateGrid(func(g *grid.Geometry) {
		g.SetDividers(grid.AxisVertical, res.Vertical)
		g.SetDividers(grid.AxisHorizontal, res.Horizontal)
	})
}

func (s *State) applyDetection(res border.Result, gen uint64) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	s.Grid.SetDividers(grid.AxisVertical, res.Vertical)
	s.Grid.SetDividers(grid.AxisHorizontal, res.Horizontal)
	snap := s.Grid.Clone()
	s.mu.Unlock()

	s.SetModified(true)
	s.Emit(EventGridChanged, snap)
	return true
}

// exportInput captures what an export needs so it can run without the lock.
func (s *State) exportInput() (*image.Source, []grid.CropRegion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Source == nil || s.Source.Image == nil {
		return nil, nil, ErrNoSource
	}
	src := *s.Source
	return &src, s.Grid.ExportableRegions(), nil
}

// ExportDirect writes every non-excluded region to outputDir as
// {base}_row{R}_col{C}.png and stops at the first failure.
func (s *State) ExportDirect(outputDir string) (int, error) {
	return s.ExportBatch(export.PlanOptions{
		OutputDir: outputDir,
		Mode:      export.NamingRowColumn,
	})
}

// ExportBatch writes every non-excluded region named by opts and stops at
// the first failure. An empty BaseName defaults to the source's file name.
func (s *State) ExportBatch(opts export.PlanOptions) (int, error) {
	src, regions, err := s.exportInput()
	if err != nil {
		return 0, err
	}
	if opts.BaseName == "" {
		opts.BaseName = src.BaseName()
	}

	plan, err := export.Plan(regions, opts)
	if err != nil {
		return 0, err
	}

	n, err := s.Exporter.ExportBatch(src.Image, plan)
	s.Emit(EventExportComplete, ExportSummary{Written: n, Err: err})
	return n, err
}

// ExportInteractive writes every non-excluded region with the given naming
// and keeps going past per-file failures. An empty BaseName defaults to the
// source's file name.
func (s *State) ExportInteractive(opts export.PlanOptions) (export.Report, error) {
	src, regions, err := s.exportInput()
	if err != nil {
		return export.Report{}, err
	}
	if opts.BaseName == "" {
		opts.BaseName = src.BaseName()
	}

	plan, err := export.Plan(regions, opts)
	if err != nil {
		return export.Report{}, err
	}

	report, err := s.Exporter.ExportInteractive(src.Image, plan)
	s.Emit(EventExportComplete, ExportSummary{Written: report.Exported, Report: &report, Err: err})
	return report, err
}

// PlanExport returns the plan an export with opts would execute, without I/O.
func (s *State) PlanExport(opts export.PlanOptions) ([]export.Item, error) {
	src, regions, err := s.exportInput()
	if err != nil {
		return nil, err
	}
	if opts.BaseName == "" {
		opts.BaseName = src.BaseName()
	}
	return export.Plan(regions, opts)
}

// SaveSession writes the source path, current page, grid and page snapshots.
func (s *State) SaveSession(path string) error {
	s.mu.RLock()
	if s.Source == nil {
		s.mu.RUnlock()
		return ErrNoSource
	}
	proj := project.New()
	proj.SetSourcePath(path, s.Source.Path)
	proj.CurrentPage = s.Source.Page
	proj.Grid = s.Grid.Clone()
	proj.Settings = s.Settings

	pages := grid.NewPageStore()
	for _, p := range s.Pages.Pages() {
		g, _ := s.Pages.Get(p)
		pages.Save(p, g)
	}
	pages.Save(s.Source.Page, s.Grid)
	proj.CapturePages(pages)
	s.mu.RUnlock()

	if err := proj.Save(path); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.mu.Lock()
	s.SessionPath = path
	s.Modified = false
	s.mu.Unlock()

	log.Printf("[State] saved session %s", filepath.Base(path))
	s.Emit(EventSessionSaved, path)
	return nil
}

// LoadSession restores a session: it reloads the source, renders the saved
// page and restores the grid and page snapshots.
func (s *State) LoadSession(path string) error {
	proj, err := project.Load(path)
	if err != nil {
		return err
	}

	src, err := s.Loader.Load(proj.GetSourcePath(path))
	if err != nil {
		return err
	}
	if proj.CurrentPage != 0 {
		if err := src.SelectPage(proj.CurrentPage); err != nil {
			return fmt.Errorf("session page: %w", err)
		}
	}

	s.mu.Lock()
	s.Source = src
	s.Grid = proj.Grid.Clone()
	s.Pages = proj.PageStore()
	s.Settings = proj.Settings
	s.SessionPath = path
	s.Modified = false
	s.generation++
	s.mu.Unlock()

	log.Printf("[State] loaded session %s (page %d)", filepath.Base(path), proj.CurrentPage+1)
	s.Emit(EventSourceLoaded, src)
	s.Emit(EventSessionLoaded, path)
	return nil
}
