package app

import (
	"errors"
	goimage "image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"scan-slicer/internal/border"
	"scan-slicer/internal/export"
	"scan-slicer/internal/grid"
	"scan-slicer/internal/image"
)

// pagedDoc renders blank pages of a fixed size.
type pagedDoc struct {
	pages int
}

func (d *pagedDoc) PageCount() int { return d.pages }

func (d *pagedDoc) RenderPage(page int, scale float64) (goimage.Image, error) {
	return goimage.NewGray(goimage.Rect(0, 0, 100, 80)), nil
}

func newDocState(pages int) *State {
	s := NewState()
	s.Loader = &image.Loader{
		OpenDocument: func(path string) (image.PageRenderer, error) { return &pagedDoc{pages: pages}, nil },
		RenderScale:  1,
	}
	return s
}

// eventLog records emitted event types.
type eventLog struct {
	mu     sync.Mutex
	events []EventType
}

func (l *eventLog) listen(s *State, types ...EventType) {
	for _, et := range types {
		et := et
		s.On(et, func(interface{}) {
			l.mu.Lock()
			l.events = append(l.events, et)
			l.mu.Unlock()
		})
	}
}

func (l *eventLog) count(et EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e == et {
			n++
		}
	}
	return n
}

func linedImage(w, h int, cols []int) *goimage.RGBA {
	img := goimage.NewRGBA(goimage.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	for _, x := range cols {
		for y := 0; y < h; y++ {
			img.SetRGBA(x, y, color.RGBA{A: 255})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img goimage.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSourceResetsGrid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.png")
	writePNG(t, path, goimage.NewGray(goimage.Rect(0, 0, 30, 20)))

	s := NewState()
	var events eventLog
	events.listen(s, EventSourceLoaded)

	s.UpdateGrid(func(g *grid.Geometry) { g.AddDivider(grid.AxisVertical, 0.5) })
	if err := s.LoadSource(path); err != nil {
		t.Fatalf("LoadSource failed: %v", err)
	}
	if len(s.Regions()) != 1 {
		t.Errorf("grid should be reset on load, got %d regions", len(s.Regions()))
	}
	if s.PageCount() != 1 || s.CurrentPage() != 0 {
		t.Errorf("pages = %d, current = %d", s.PageCount(), s.CurrentPage())
	}
	if events.count(EventSourceLoaded) != 1 {
		t.Error("EventSourceLoaded not emitted")
	}
	if s.Modified {
		t.Error("fresh source should not be modified")
	}
}

func TestLoadSourceError(t *testing.T) {
	s := NewState()
	err := s.LoadSource(filepath.Join(t.TempDir(), "notes.txt"))
	var loadErr *image.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("got %v, want LoadError", err)
	}
}

func TestSelectPageInheritsFirstPage(t *testing.T) {
	s := newDocState(3)
	if err := s.LoadSource("book.pdf"); err != nil {
		t.Fatalf("LoadSource failed: %v", err)
	}

	s.UpdateGrid(func(g *grid.Geometry) {
		g.SetDividers(grid.AxisVertical, []float64{0.5})
		g.SetExclusion(grid.SideHeader, 0.1)
		g.SetRegionExcluded(1, true)
	})

	if err := s.SelectPage(1); err != nil {
		t.Fatalf("SelectPage failed: %v", err)
	}
	g := s.GridSnapshot()
	if len(g.Vertical) != 1 || g.Header != 0.1 {
		t.Errorf("page 2 should inherit dividers and margins, got %+v", g)
	}
	if g.IsRegionExcluded(1) {
		t.Error("inherited grid should not carry excluded regions")
	}

	s.UpdateGrid(func(g *grid.Geometry) { g.SetDividers(grid.AxisVertical, []float64{0.2, 0.8}) })

	if err := s.SelectPage(0); err != nil {
		t.Fatalf("SelectPage failed: %v", err)
	}
	g = s.GridSnapshot()
	if len(g.Vertical) != 1 || !g.IsRegionExcluded(1) {
		t.Errorf("page 1 should restore its own snapshot, got %+v", g)
	}

	if err := s.SelectPage(1); err != nil {
		t.Fatalf("SelectPage failed: %v", err)
	}
	if g = s.GridSnapshot(); len(g.Vertical) != 2 {
		t.Errorf("page 2 should restore its own snapshot, got %+v", g)
	}
}

func TestSelectPageErrors(t *testing.T) {
	s := NewState()
	if err := s.SelectPage(1); !errors.Is(err, ErrNoSource) {
		t.Errorf("got %v, want ErrNoSource", err)
	}

	s = newDocState(2)
	if err := s.LoadSource("book.pdf"); err != nil {
		t.Fatal(err)
	}
	if err := s.SelectPage(5); !errors.Is(err, image.ErrPageOutOfRange) {
		t.Errorf("got %v, want ErrPageOutOfRange", err)
	}
	if s.CurrentPage() != 0 {
		t.Errorf("failed switch changed page to %d", s.CurrentPage())
	}
}

func TestDetectBordersApplies(t *testing.T) {
	s := NewState()
	s.SetSource(image.NewRasterSource("lines.png", linedImage(400, 300, []int{100, 300})))
	var events eventLog
	events.listen(s, EventDetectionComplete, EventGridChanged)

	ch, err := s.DetectBorders(true)
	if err != nil {
		t.Fatalf("DetectBorders failed: %v", err)
	}
	res := <-ch
	if len(res.Vertical) != 2 || len(res.Horizontal) != 0 {
		t.Fatalf("result = %+v", res)
	}

	g := s.GridSnapshot()
	if len(g.Vertical) != 2 || g.Vertical[0] < 0.24 || g.Vertical[0] > 0.26 || g.Vertical[1] < 0.74 || g.Vertical[1] > 0.76 {
		t.Errorf("vertical dividers = %v, want about [0.25 0.75]", g.Vertical)
	}
	if events.count(EventDetectionComplete) != 1 || events.count(EventGridChanged) != 1 {
		t.Errorf("events = %v", events.events)
	}
	if !s.Modified {
		t.Error("applied detection should mark the session modified")
	}
}

func TestDetectBordersWithoutApply(t *testing.T) {
	s := NewState()
	s.SetSource(image.NewRasterSource("lines.png", linedImage(400, 300, []int{100, 300})))

	ch, err := s.DetectBorders(false)
	if err != nil {
		t.Fatal(err)
	}
	res := <-ch
	if len(s.GridSnapshot().Vertical) != 0 {
		t.Error("grid changed without apply")
	}

	s.ApplyDetection(res)
	if len(s.GridSnapshot().Vertical) != 2 {
		t.Errorf("ApplyDetection did not set dividers")
	}
}

func TestDetectBordersDiscardedAfterPageChange(t *testing.T) {
	s := newDocState(2)
	if err := s.LoadSource("book.pdf"); err != nil {
		t.Fatal(err)
	}

	release := make(chan struct{})
	s.Detector.Convert = func(img goimage.Image) (*goimage.Gray, error) {
		<-release
		return border.Grayscale(linedImage(400, 300, []int{100, 300}))
	}

	ch, err := s.DetectBorders(true)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SelectPage(1); err != nil {
		t.Fatal(err)
	}
	close(release)
	if res := <-ch; len(res.Vertical) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if v := s.GridSnapshot().Vertical; len(v) != 0 {
		t.Errorf("stale detection applied to the new page: %v", v)
	}
}

func TestDetectBordersNoSource(t *testing.T) {
	if _, err := NewState().DetectBorders(true); !errors.Is(err, ErrNoSource) {
		t.Errorf("got %v, want ErrNoSource", err)
	}
}

func TestExportDirect(t *testing.T) {
	dir := t.TempDir()
	s := NewState()
	s.SetSource(image.NewRasterSource("/scans/album.png", goimage.NewRGBA(goimage.Rect(0, 0, 40, 20))))
	s.UpdateGrid(func(g *grid.Geometry) {
		g.SetDividers(grid.AxisVertical, []float64{0.5})
		g.SetRegionExcluded(1, true)
	})

	var summary ExportSummary
	s.On(EventExportComplete, func(data interface{}) { summary = data.(ExportSummary) })

	n, err := s.ExportDirect(dir)
	if err != nil {
		t.Fatalf("ExportDirect failed: %v", err)
	}
	if n != 1 || summary.Written != 1 {
		t.Errorf("wrote %d (summary %d), want 1", n, summary.Written)
	}
	if _, err := os.Stat(filepath.Join(dir, "album_row1_col2.png")); err != nil {
		t.Errorf("expected output file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "album_row1_col1.png")); !os.IsNotExist(err) {
		t.Error("excluded region was exported")
	}
}

func TestExportInteractiveCustomNames(t *testing.T) {
	dir := t.TempDir()
	s := NewState()
	s.SetSource(image.NewRasterSource("/scans/album.png", goimage.NewRGBA(goimage.Rect(0, 0, 40, 20))))
	s.UpdateGrid(func(g *grid.Geometry) { g.SetDividers(grid.AxisVertical, []float64{0.5}) })

	report, err := s.ExportInteractive(export.PlanOptions{
		OutputDir: dir,
		Mode:      export.NamingCustom,
		Names:     []string{"left"},
	})
	if err != nil {
		t.Fatalf("ExportInteractive failed: %v", err)
	}
	if report.Exported != 2 {
		t.Errorf("Exported = %d, want 2", report.Exported)
	}
	for _, name := range []string{"left.png", "album-2.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestExportAllExcluded(t *testing.T) {
	s := NewState()
	s.SetSource(image.NewRasterSource("a.png", goimage.NewRGBA(goimage.Rect(0, 0, 10, 10))))
	s.UpdateGrid(func(g *grid.Geometry) { g.ToggleRegion(1) })

	if _, err := s.ExportDirect(t.TempDir()); !errors.Is(err, export.ErrNoRegions) {
		t.Errorf("got %v, want ErrNoRegions", err)
	}
	if _, err := NewState().ExportDirect(t.TempDir()); !errors.Is(err, ErrNoSource) {
		t.Errorf("got %v, want ErrNoSource", err)
	}
}

func TestPlanExportDefaultsBaseName(t *testing.T) {
	s := NewState()
	s.SetSource(image.NewRasterSource("/x/Card-A.jpg", goimage.NewRGBA(goimage.Rect(0, 0, 10, 10))))
	s.UpdateGrid(func(g *grid.Geometry) { g.SetDividers(grid.AxisHorizontal, []float64{0.5}) })

	plan, err := s.PlanExport(export.PlanOptions{Mode: export.NamingSequence})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan) != 2 || plan[0].Filename != "Card-A.png" || plan[1].Filename != "Card-B.png" {
		t.Errorf("plan = %+v", plan)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sessionPath := filepath.Join(dir, "book.slicer.json")

	s := newDocState(3)
	if err := s.LoadSource(filepath.Join(dir, "book.pdf")); err != nil {
		t.Fatal(err)
	}
	s.UpdateGrid(func(g *grid.Geometry) { g.SetDividers(grid.AxisVertical, []float64{0.4}) })
	if err := s.SelectPage(2); err != nil {
		t.Fatal(err)
	}
	s.UpdateGrid(func(g *grid.Geometry) { g.SetRegionExcluded(2, true) })
	s.Settings.Naming = "rowcol"

	if err := s.SaveSession(sessionPath); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if s.Modified || s.SessionPath != sessionPath {
		t.Errorf("SaveSession should clear Modified and record the path")
	}

	restored := newDocState(3)
	if err := restored.LoadSession(sessionPath); err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if restored.CurrentPage() != 2 {
		t.Errorf("current page = %d, want 2", restored.CurrentPage())
	}
	g := restored.GridSnapshot()
	if len(g.Vertical) != 1 || !g.IsRegionExcluded(2) {
		t.Errorf("grid not restored: %+v", g)
	}
	if restored.Settings.Naming != "rowcol" {
		t.Errorf("settings not restored: %+v", restored.Settings)
	}

	if err := restored.SelectPage(0); err != nil {
		t.Fatal(err)
	}
	if g := restored.GridSnapshot(); len(g.Vertical) != 1 || g.IsRegionExcluded(2) {
		t.Errorf("page 1 snapshot not restored: %+v", g)
	}
}

func TestSaveSessionNoSource(t *testing.T) {
	if err := NewState().SaveSession(filepath.Join(t.TempDir(), "x.slicer.json")); !errors.Is(err, ErrNoSource) {
		t.Errorf("got %v, want ErrNoSource", err)
	}
}

func TestSourceWatcherFiresOnRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.png")
	writePNG(t, path, goimage.NewGray(goimage.Rect(0, 0, 2, 2)))

	w := NewSourceWatcher(path, 5*time.Millisecond)
	if w == nil {
		t.Fatal("NewSourceWatcher returned nil")
	}
	changed := make(chan string, 4)
	w.OnChange(func(p string) { changed <- p })
	w.Start()
	defer w.Stop()

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-changed:
		if p != path {
			t.Errorf("callback path = %q", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not report the change")
	}

	if NewSourceWatcher(filepath.Join(t.TempDir(), "missing.png"), time.Second) != nil {
		t.Error("expected nil watcher for a missing file")
	}
}

func TestSourceWatcherCallbackSetWhileRunning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.png")
	writePNG(t, path, goimage.NewGray(goimage.Rect(0, 0, 2, 2)))

	w := NewSourceWatcher(path, time.Millisecond)
	if w == nil {
		t.Fatal("NewSourceWatcher returned nil")
	}
	w.Start()
	defer w.Stop()

	// Run with -race: the callback is swapped while the poll loop reads it.
	changed := make(chan string, 4)
	for i := 0; i < 10; i++ {
		w.OnChange(func(p string) {})
		time.Sleep(time.Millisecond)
	}
	w.OnChange(func(p string) { changed <- p })

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not report the change")
	}
}
