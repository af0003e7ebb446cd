package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"time"

	"scan-slicer/internal/app"
	"scan-slicer/internal/border"
	"scan-slicer/internal/export"
	"scan-slicer/internal/export/cvbackend"
	"scan-slicer/internal/grid"
	"scan-slicer/internal/image"
	"scan-slicer/internal/naming"
	"scan-slicer/internal/prefs"
	"scan-slicer/internal/preview"
	"scan-slicer/internal/project"
	"scan-slicer/pkg/geometry"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// gridFlags are the source and grid options shared by detect, regions and slice.
type gridFlags struct {
	page        int // 1-based
	backend     string
	renderScale float64

	vertical   []float64
	horizontal []float64
	header     float64
	footer     float64
	left       float64
	right      float64
	exclude    []int
	toggle     []int

	reset            bool
	resetExclusions  bool
	addVertical      int
	addHorizontal    int
	removeVertical   []int
	removeHorizontal []int
	moveVertical     []string
	moveHorizontal   []string
	shiftVertical    float64
	shiftHorizontal  float64

	detect     bool
	columns    int
	rows       int
	maxLines   int
	minSpacing float64
}

func (f *gridFlags) registerSource(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.IntVar(&f.page, "page", 1, "Page to slice (1-based, documents only)")
	fs.StringVar(&f.backend, "backend", "imaging", "Crop/grayscale backend: imaging or opencv")
	fs.Float64Var(&f.renderScale, "scale", image.DefaultRenderScale, "Render scale for document pages")
	fs.IntVar(&f.maxLines, "max-lines", 0, "Maximum detected lines per axis")
	fs.Float64Var(&f.minSpacing, "min-spacing", 0, "Minimum spacing between detected lines (fraction of axis)")
	fs.IntVar(&f.columns, "columns", 0, "Expected column count; tunes detection")
	fs.IntVar(&f.rows, "rows", 0, "Expected row count; tunes detection")
}

func (f *gridFlags) registerGrid(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Float64SliceVar(&f.vertical, "vertical", nil, "Vertical divider positions (0..1)")
	fs.Float64SliceVar(&f.horizontal, "horizontal", nil, "Horizontal divider positions (0..1)")
	fs.Float64Var(&f.header, "header", 0, "Header exclusion (0..0.4)")
	fs.Float64Var(&f.footer, "footer", 0, "Footer exclusion (0..0.4)")
	fs.Float64Var(&f.left, "left", 0, "Left exclusion (0..0.4)")
	fs.Float64Var(&f.right, "right", 0, "Right exclusion (0..0.4)")
	fs.IntSliceVar(&f.exclude, "exclude", nil, "Region ordinals (1-based) to skip")
	fs.IntSliceVar(&f.toggle, "toggle", nil, "Region ordinals (1-based) whose skip flag is flipped")
	fs.BoolVar(&f.detect, "detect", false, "Detect dividers from the image before applying explicit ones")

	fs.BoolVar(&f.reset, "reset", false, "Clear loaded dividers and skipped regions first")
	fs.BoolVar(&f.resetExclusions, "reset-exclusions", false, "Zero the loaded margins first")
	fs.IntVar(&f.addVertical, "add-vertical", 0, "Add N vertical dividers, each in the widest gap")
	fs.IntVar(&f.addHorizontal, "add-horizontal", 0, "Add N horizontal dividers, each in the widest gap")
	fs.IntSliceVar(&f.removeVertical, "remove-vertical", nil, "Remove vertical dividers by 1-based index")
	fs.IntSliceVar(&f.removeHorizontal, "remove-horizontal", nil, "Remove horizontal dividers by 1-based index")
	fs.StringSliceVar(&f.moveVertical, "move-vertical", nil, "Move vertical dividers, as INDEX=POSITION (1-based index)")
	fs.StringSliceVar(&f.moveHorizontal, "move-horizontal", nil, "Move horizontal dividers, as INDEX=POSITION (1-based index)")
	fs.Float64Var(&f.shiftVertical, "shift-vertical", 0, "Shift every vertical divider by this amount")
	fs.Float64Var(&f.shiftHorizontal, "shift-horizontal", 0, "Shift every horizontal divider by this amount")
}

// dividerMove is one parsed --move-vertical or --move-horizontal entry.
type dividerMove struct {
	index    int // 0-based
	position float64
}

func parseMoves(flag string, specs []string) ([]dividerMove, error) {
	moves := make([]dividerMove, 0, len(specs))
	for _, spec := range specs {
		idx, pos, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --%s %q: want INDEX=POSITION", flag, spec)
		}
		i, err := strconv.Atoi(strings.TrimSpace(idx))
		if err != nil || i < 1 {
			return nil, fmt.Errorf("invalid --%s index %q", flag, idx)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(pos), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s position %q", flag, pos)
		}
		moves = append(moves, dividerMove{index: i - 1, position: v})
	}
	return moves, nil
}

// removeDividers removes 1-based indices from highest to lowest so earlier
// removals do not shift later ones.
func removeDividers(g *grid.Geometry, axis grid.Axis, indices []int) {
	sorted := append([]int(nil), indices...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	for _, i := range sorted {
		if !g.RemoveDivider(axis, i-1) {
			log.Printf("[Grid] no %s divider %d to remove", axis, i)
		}
	}
}

// openState loads path (an image, a PDF or a session file) into a new state
// configured from preferences and flags.
func openState(cmd *cobra.Command, path string, f *gridFlags) (*app.State, *prefs.Prefs, error) {
	p := prefs.Load()
	s := app.NewState()
	flags := cmd.Flags()

	s.Loader.RenderScale = p.FloatWithFallback(prefs.KeyRenderScale, image.DefaultRenderScale)
	if flags.Changed("scale") {
		s.Loader.RenderScale = f.renderScale
	}

	backend := p.String(prefs.KeyBackend, "imaging")
	if flags.Changed("backend") {
		backend = f.backend
	}
	switch strings.ToLower(backend) {
	case "imaging":
	case "opencv":
		s.Exporter = export.NewExporter(cvbackend.Backend{})
		s.Detector.Convert = cvbackend.Grayscale
	default:
		return nil, nil, fmt.Errorf("invalid backend: %s (must be imaging or opencv)", backend)
	}

	opts := p.DetectOptions()
	if f.columns > 0 || f.rows > 0 {
		opts = border.OptionsForGrid(f.columns, f.rows)
	}
	if f.maxLines > 0 {
		opts.MaxLines = f.maxLines
	}
	if f.minSpacing > 0 {
		opts.MinSpacing = f.minSpacing
	}
	s.SetDetectOptions(opts)

	var err error
	if project.IsSessionFile(path) {
		err = s.LoadSession(path)
	} else {
		err = s.LoadSource(path)
	}
	if err != nil {
		return nil, nil, err
	}

	if flags.Changed("page") {
		if err := s.SelectPage(f.page - 1); err != nil {
			return nil, nil, err
		}
	}
	return s, p, nil
}

// applyGrid runs detection if requested, then applies explicit grid flags.
// Flags the user did not set leave the loaded grid untouched. Edits run in a
// fixed order: reset, set, remove, move, add, shift, then margins and region
// flags.
func applyGrid(cmd *cobra.Command, s *app.State, f *gridFlags) error {
	moveV, err := parseMoves("move-vertical", f.moveVertical)
	if err != nil {
		return err
	}
	moveH, err := parseMoves("move-horizontal", f.moveHorizontal)
	if err != nil {
		return err
	}

	if f.reset {
		s.UpdateGrid(func(g *grid.Geometry) { g.Reset() })
	}
	if f.detect {
		ch, err := s.DetectBorders(true)
		if err != nil {
			return err
		}
		<-ch
	}

	flags := cmd.Flags()
	s.UpdateGrid(func(g *grid.Geometry) {
		if flags.Changed("vertical") {
			g.SetDividers(grid.AxisVertical, f.vertical)
		}
		if flags.Changed("horizontal") {
			g.SetDividers(grid.AxisHorizontal, f.horizontal)
		}

		removeDividers(g, grid.AxisVertical, f.removeVertical)
		removeDividers(g, grid.AxisHorizontal, f.removeHorizontal)
		for _, axisMoves := range []struct {
			axis  grid.Axis
			moves []dividerMove
		}{{grid.AxisVertical, moveV}, {grid.AxisHorizontal, moveH}} {
			for _, m := range axisMoves.moves {
				if !g.MoveDivider(axisMoves.axis, m.index, m.position) {
					log.Printf("[Grid] no %s divider %d to move", axisMoves.axis, m.index+1)
				}
			}
		}
		for i := 0; i < f.addVertical; i++ {
			g.AddDividerInLargestGap(grid.AxisVertical)
		}
		for i := 0; i < f.addHorizontal; i++ {
			g.AddDividerInLargestGap(grid.AxisHorizontal)
		}
		if f.shiftVertical != 0 {
			g.MoveAllOnAxis(grid.AxisVertical, f.shiftVertical)
		}
		if f.shiftHorizontal != 0 {
			g.MoveAllOnAxis(grid.AxisHorizontal, f.shiftHorizontal)
		}

		if f.resetExclusions {
			g.ResetExclusions()
		}
		margins := []struct {
			name  string
			side  grid.Side
			value float64
		}{
			{"header", grid.SideHeader, f.header},
			{"footer", grid.SideFooter, f.footer},
			{"left", grid.SideLeft, f.left},
			{"right", grid.SideRight, f.right},
		}
		for _, m := range margins {
			if flags.Changed(m.name) {
				g.SetExclusion(m.side, m.value)
			}
		}
		for _, ordinal := range f.exclude {
			g.SetRegionExcluded(ordinal, true)
		}
		for _, ordinal := range f.toggle {
			g.ToggleRegion(ordinal)
		}
	})
	return nil
}

func newDetectCmd() *cobra.Command {
	var (
		f            gridFlags
		saveDefaults bool
	)
	cmd := &cobra.Command{
		Use:   "detect [image|pdf|session]",
		Short: "Detect divider candidates and print them as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, p, err := openState(cmd, args[0], &f)
			if err != nil {
				return err
			}
			if saveDefaults {
				p.SetDetectOptions(s.Detector.Options)
				if err := p.Save(); err != nil {
					return fmt.Errorf("failed to save detection defaults: %w", err)
				}
				log.Printf("[Prefs] saved detection defaults to %s", p.Path())
			}
			ch, err := s.DetectBorders(false)
			if err != nil {
				return err
			}
			res := <-ch

			out := struct {
				Source     string        `yaml:"source"`
				Kind       string        `yaml:"kind"`
				Page       int           `yaml:"page"`
				Size       geometry.Size `yaml:"size"`
				Vertical   []float64     `yaml:"vertical"`
				Horizontal []float64     `yaml:"horizontal"`
			}{
				Source:     s.Source.Path,
				Kind:       s.Source.Kind.String(),
				Page:       s.CurrentPage() + 1,
				Size:       s.Source.Size(),
				Vertical:   res.Vertical,
				Horizontal: res.Horizontal,
			}
			return writeYAML(cmd, out)
		},
	}
	f.registerSource(cmd)
	cmd.Flags().BoolVar(&saveDefaults, "save-defaults", false, "Store the effective --max-lines and --min-spacing as preferences")
	return cmd
}

// regionRow is the YAML form of one region in the regions listing.
type regionRow struct {
	grid.CropRegion `yaml:",inline"`
	Pixels          string `yaml:"pixels"`
	Excluded        bool   `yaml:"excluded"`
}

func newRegionsCmd() *cobra.Command {
	var f gridFlags
	var (
		asYAML      bool
		previewPath string
	)
	cmd := &cobra.Command{
		Use:   "regions [image|pdf|session]",
		Short: "List the crop regions of the configured grid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openState(cmd, args[0], &f)
			if err != nil {
				return err
			}
			if err := applyGrid(cmd, s, &f); err != nil {
				return err
			}

			g := s.GridSnapshot()
			w, h := s.Source.Width(), s.Source.Height()
			rows := make([]regionRow, 0)
			for _, r := range g.Regions() {
				px := "empty"
				if pr, ok := r.Rect.ToPixels(w, h); ok {
					px = fmt.Sprintf("%dx%d+%d+%d", pr.Width, pr.Height, pr.X, pr.Y)
				}
				rows = append(rows, regionRow{CropRegion: r, Pixels: px, Excluded: g.IsRegionExcluded(r.Ordinal)})
			}

			if previewPath != "" {
				overlay := preview.Render(s.Source.Image, g, preview.DefaultStyle())
				if err := imaging.Save(overlay, previewPath); err != nil {
					return fmt.Errorf("failed to write preview: %w", err)
				}
				log.Printf("[Preview] wrote %s", previewPath)
			}

			if asYAML {
				return writeYAML(cmd, rows)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d columns x %d rows on %dx%d\n", g.ColumnCount(), g.RowCount(), w, h)
			for _, r := range rows {
				mark := ""
				if r.Excluded {
					mark = "  (excluded)"
				}
				fmt.Fprintf(out, "%3d  row %d col %d  x=%.4f y=%.4f w=%.4f h=%.4f  %s%s\n",
					r.Ordinal, r.Row+1, r.Column+1, r.Rect.X, r.Rect.Y, r.Rect.Width, r.Rect.Height, r.Pixels, mark)
			}
			return nil
		},
	}
	f.registerSource(cmd)
	f.registerGrid(cmd)
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print regions as YAML")
	cmd.Flags().StringVar(&previewPath, "preview", "", "Write the image with the grid drawn over it")
	return cmd
}

func newSliceCmd() *cobra.Command {
	var (
		f           gridFlags
		outputDir   string
		baseName    string
		namingMode  string
		names       []string
		dryRun      bool
		keepGoing   bool
		sessionPath string
		watch       bool
	)

	cmd := &cobra.Command{
		Use:   "slice [image|pdf|session]",
		Short: "Crop every non-excluded region and write it as a PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run := func() (string, error) {
				s, p, err := openState(cmd, args[0], &f)
				if err != nil {
					return "", err
				}
				if err := applyGrid(cmd, s, &f); err != nil {
					return "", err
				}

				settings := s.Settings
				flags := cmd.Flags()
				if flags.Changed("naming") {
					settings.Naming = namingMode
				} else if settings.Naming == "" {
					settings.Naming = p.String(prefs.KeyNamingMode, "")
				}
				if settings.Naming == "" {
					// Batch exports default to row/column names, interactive
					// ones to base-N.
					settings.Naming = export.NamingRowColumn.String()
					if keepGoing {
						settings.Naming = export.NamingSequential.String()
					}
				}
				if flags.Changed("output") || settings.OutputDir == "" {
					settings.OutputDir = outputDir
					if !flags.Changed("output") {
						settings.OutputDir = p.String(prefs.KeyOutputDir, outputDir)
					}
				}
				if flags.Changed("base") {
					settings.BaseName = baseName
				}
				if flags.Changed("names") {
					settings.Names = names
				}

				mode, err := export.ParseNamingMode(settings.Naming)
				if err != nil {
					return "", err
				}
				if mode == export.NamingCustom {
					settings.Names = completeNames(s, settings.BaseName, settings.Names)
				}
				opts := export.PlanOptions{
					BaseName:  settings.BaseName,
					OutputDir: settings.OutputDir,
					Mode:      mode,
					Names:     settings.Names,
				}

				if dryRun {
					plan, err := s.PlanExport(opts)
					if err != nil {
						return "", err
					}
					return s.Source.Path, writeYAML(cmd, plan)
				}

				if err := exportWith(cmd, s, opts, keepGoing); err != nil {
					return s.Source.Path, err
				}

				p.SetString(prefs.KeyOutputDir, settings.OutputDir)
				if err := p.Save(); err != nil {
					log.Printf("[Prefs] failed to save %s: %v", p.Path(), err)
				}
				if sessionPath != "" {
					s.Settings = settings
					if err := s.SaveSession(sessionPath); err != nil {
						return s.Source.Path, err
					}
				}
				return s.Source.Path, nil
			}

			srcPath, err := run()
			if err != nil || !watch || dryRun {
				return err
			}
			return watchAndRerun(cmd, srcPath, run)
		},
	}

	f.registerSource(cmd)
	f.registerGrid(cmd)
	fs := cmd.Flags()
	fs.StringVarP(&outputDir, "output", "o", ".", "Output directory")
	fs.StringVar(&baseName, "base", "", "Base name for output files (default: source file name)")
	fs.StringVar(&namingMode, "naming", "", "Naming: sequential, rowcol, sequence or custom (default rowcol, or sequential with --keep-going)")
	fs.StringSliceVar(&names, "names", nil, "Per-region names for --naming custom")
	fs.BoolVar(&dryRun, "dry-run", false, "Print the export plan as YAML without writing files")
	fs.BoolVar(&keepGoing, "keep-going", false, "Continue past failed crops and report them at the end")
	fs.StringVar(&sessionPath, "save-session", "", "Write a session file after exporting")
	fs.BoolVar(&watch, "watch", false, "Re-slice whenever the source file changes")
	return cmd
}

// completeNames fills a custom name list to one entry per exportable region,
// using the sequential default for missing or blank entries, so a saved
// session lists every name.
func completeNames(s *app.State, baseName string, names []string) []string {
	if baseName == "" {
		baseName = s.Source.BaseName()
	}
	full := export.DefaultNames(baseName, len(s.GridSnapshot().ExportableRegions()))
	for i, name := range names {
		if i < len(full) && strings.TrimSpace(name) != "" {
			full[i] = name
		}
	}
	return full
}

func exportWith(cmd *cobra.Command, s *app.State, opts export.PlanOptions, keepGoing bool) error {
	out := cmd.OutOrStdout()
	if !keepGoing {
		var n int
		var err error
		if opts.Mode == export.NamingRowColumn && opts.BaseName == "" {
			n, err = s.ExportDirect(opts.OutputDir)
		} else {
			n, err = s.ExportBatch(opts)
		}
		if err != nil {
			return fmt.Errorf("export stopped after %d files: %w", n, err)
		}
		fmt.Fprintf(out, "Wrote %d files to %s\n", n, opts.OutputDir)
		return nil
	}

	report, err := s.ExportInteractive(opts)
	if err != nil {
		return err
	}
	for _, failure := range report.Failures {
		fmt.Fprintf(cmd.ErrOrStderr(), "failed: %v\n", failure)
	}
	fmt.Fprintf(out, "Wrote %d files to %s (%d skipped, %d blocked, %d failed)\n",
		report.Exported, opts.OutputDir, report.Skipped, report.Blocked, len(report.Failures))
	if len(report.Failures) > 0 {
		return fmt.Errorf("%d crops failed", len(report.Failures))
	}
	return nil
}

func watchAndRerun(cmd *cobra.Command, srcPath string, run func() (string, error)) error {
	watcher := app.NewSourceWatcher(srcPath, time.Second)
	if watcher == nil {
		return fmt.Errorf("cannot watch %s", srcPath)
	}
	watcher.OnChange(func(path string) {
		log.Printf("[Watch] %s changed, slicing again", path)
		if _, err := run(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "slice failed: %v\n", err)
		}
	})
	watcher.Start()
	defer watcher.Stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl-C to stop)\n", srcPath)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop
	return nil
}

func newNamesCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "names [base]",
		Short: "Print the filename sequence generated from a base name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return fmt.Errorf("count must be positive, got %d", count)
			}
			pat := naming.Classify(args[0])
			log.Printf("[Naming] %q classified as %s", args[0], pat.Kind)
			for _, name := range naming.Sequence(args[0], count) {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 5, "Number of names")
	return cmd
}

func writeYAML(cmd *cobra.Command, v interface{}) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}
