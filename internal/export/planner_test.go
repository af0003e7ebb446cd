package export

import (
	"errors"
	"path/filepath"
	"testing"

	"scan-slicer/internal/grid"
)

func twoByTwo() []grid.CropRegion {
	g := grid.New()
	g.SetDividers(grid.AxisVertical, []float64{0.5})
	g.SetDividers(grid.AxisHorizontal, []float64{0.5})
	return g.Regions()
}

func filenames(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Filename
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPlanNamingModes(t *testing.T) {
	regions := twoByTwo()

	tests := []struct {
		name string
		opts PlanOptions
		want []string
	}{
		{
			"sequential",
			PlanOptions{BaseName: "Scan", Mode: NamingSequential},
			[]string{"Scan-1.png", "Scan-2.png", "Scan-3.png", "Scan-4.png"},
		},
		{
			"row column",
			PlanOptions{BaseName: "Scan", Mode: NamingRowColumn},
			[]string{"Scan_row1_col1.png", "Scan_row1_col2.png", "Scan_row2_col1.png", "Scan_row2_col2.png"},
		},
		{
			"sequence letters",
			PlanOptions{BaseName: "Card-A", Mode: NamingSequence},
			[]string{"Card-A.png", "Card-B.png", "Card-C.png", "Card-D.png"},
		},
		{
			"sequence digits",
			PlanOptions{BaseName: "IMG_0098", Mode: NamingSequence},
			[]string{"IMG_98.png", "IMG_99.png", "IMG_100.png", "IMG_101.png"},
		},
		{
			"custom with gaps and duplicates",
			PlanOptions{BaseName: "Scan", Mode: NamingCustom, Names: []string{"front.png", "front", " ", "back.PNG"}},
			[]string{"front.png", "front.png", "Scan-3.png", "back.PNG.png"},
		},
		{
			"custom short list",
			PlanOptions{BaseName: "Scan", Mode: NamingCustom, Names: []string{"only"}},
			[]string{"only.png", "Scan-2.png", "Scan-3.png", "Scan-4.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := Plan(regions, tt.opts)
			if err != nil {
				t.Fatalf("Plan failed: %v", err)
			}
			if got := filenames(items); !equalStrings(got, tt.want) {
				t.Errorf("filenames = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlanPathsAndOrder(t *testing.T) {
	regions := twoByTwo()
	items, err := Plan(regions, PlanOptions{BaseName: "p", OutputDir: "out/dir", Mode: NamingRowColumn})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	for i, it := range items {
		if it.Region != regions[i] {
			t.Errorf("item %d region = %+v, want %+v", i, it.Region, regions[i])
		}
		if it.Path != filepath.Join("out/dir", it.Filename) {
			t.Errorf("item %d path = %q", i, it.Path)
		}
	}
}

func TestPlanWithExcludedRegions(t *testing.T) {
	g := grid.New()
	g.SetDividers(grid.AxisVertical, []float64{0.5})
	g.SetDividers(grid.AxisHorizontal, []float64{0.5})
	g.SetRegionExcluded(2, true)

	items, err := Plan(g.ExportableRegions(), PlanOptions{BaseName: "s", Mode: NamingRowColumn})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	want := []string{"s_row1_col1.png", "s_row2_col1.png", "s_row2_col2.png"}
	if got := filenames(items); !equalStrings(got, want) {
		t.Errorf("filenames = %v, want %v", got, want)
	}
}

func TestPlanNoRegions(t *testing.T) {
	if _, err := Plan(nil, PlanOptions{BaseName: "x"}); !errors.Is(err, ErrNoRegions) {
		t.Errorf("got %v, want ErrNoRegions", err)
	}
}

func TestEnsurePNG(t *testing.T) {
	cases := map[string]string{
		"a":       "a.png",
		"a.png":   "a.png",
		"a.PNG":   "a.PNG.png",
		"a.jpg":   "a.jpg.png",
		"dir/a":   "dir/a.png",
		".png":    ".png",
		"a.png.x": "a.png.x.png",
	}
	for in, want := range cases {
		if got := EnsurePNG(in); got != want {
			t.Errorf("EnsurePNG(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseNamingMode(t *testing.T) {
	for _, m := range []NamingMode{NamingSequential, NamingRowColumn, NamingSequence, NamingCustom} {
		got, err := ParseNamingMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseNamingMode(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseNamingMode("bogus"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestDefaultNames(t *testing.T) {
	got := DefaultNames("Scan-A", 2)
	want := []string{"Scan-A-1", "Scan-A-2"}
	if !equalStrings(got, want) {
		t.Errorf("DefaultNames = %v, want %v", got, want)
	}
}
