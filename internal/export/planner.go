// Package export maps crop regions to output filenames and writes the crops.
package export

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"scan-slicer/internal/grid"
	"scan-slicer/internal/naming"
)

// NamingMode selects how plan filenames are generated.
type NamingMode int

const (
	NamingSequential NamingMode = iota // base-1, base-2, ...
	NamingRowColumn                    // base_row1_col1.png, ...
	NamingSequence                     // names from the filename sequencer
	NamingCustom                       // caller-supplied names
)

func (m NamingMode) String() string {
	switch m {
	case NamingSequential:
		return "sequential"
	case NamingRowColumn:
		return "rowcol"
	case NamingSequence:
		return "sequence"
	case NamingCustom:
		return "custom"
	default:
		return "NamingMode(" + strconv.Itoa(int(m)) + ")"
	}
}

// ParseNamingMode parses the String form of a NamingMode.
func ParseNamingMode(s string) (NamingMode, error) {
	switch strings.ToLower(s) {
	case "sequential", "":
		return NamingSequential, nil
	case "rowcol", "row-col", "grid":
		return NamingRowColumn, nil
	case "sequence":
		return NamingSequence, nil
	case "custom":
		return NamingCustom, nil
	}
	return NamingSequential, fmt.Errorf("invalid naming mode: %s (must be sequential, rowcol, sequence or custom)", s)
}

// PlanOptions configures Plan.
type PlanOptions struct {
	BaseName  string
	OutputDir string // Joined with each filename; not interpreted otherwise
	Mode      NamingMode
	Names     []string // Per-item names for NamingCustom
}

// Item pairs a region with its output file.
type Item struct {
	Region   grid.CropRegion `json:"region" yaml:"region"`
	Filename string          `json:"filename" yaml:"filename"`
	Path     string          `json:"path" yaml:"path"`
}

// Plan assigns a filename to each region, in region order. Duplicate names
// are kept as-is; a later crop overwrites an earlier one on disk.
func Plan(regions []grid.CropRegion, opts PlanOptions) ([]Item, error) {
	if len(regions) == 0 {
		return nil, ErrNoRegions
	}

	var sequenced []string
	if opts.Mode == NamingSequence {
		sequenced = naming.Sequence(opts.BaseName, len(regions))
	}

	items := make([]Item, len(regions))
	for i, r := range regions {
		var name string
		switch opts.Mode {
		case NamingRowColumn:
			name = RowColumnName(opts.BaseName, r)
		case NamingSequence:
			name = sequenced[i]
		case NamingCustom:
			if i < len(opts.Names) && strings.TrimSpace(opts.Names[i]) != "" {
				name = opts.Names[i]
			} else {
				name = sequentialName(opts.BaseName, i)
			}
		default:
			name = sequentialName(opts.BaseName, i)
		}

		filename := EnsurePNG(name)
		items[i] = Item{
			Region:   r,
			Filename: filename,
			Path:     filepath.Join(opts.OutputDir, filename),
		}
	}
	return items, nil
}

// DefaultNames returns the names the sequential mode would produce, for
// callers that let the user edit them before a custom export.
func DefaultNames(baseName string, n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = sequentialName(baseName, i)
	}
	return names
}

// RowColumnName returns base_row{R}_col{C}.png with 1-based row and column.
func RowColumnName(baseName string, r grid.CropRegion) string {
	return fmt.Sprintf("%s_row%d_col%d.png", baseName, r.Row+1, r.Column+1)
}

// EnsurePNG appends ".png" unless name already ends with it (case-sensitive).
func EnsurePNG(name string) string {
	if strings.HasSuffix(name, ".png") {
		return name
	}
	return name + ".png"
}

func sequentialName(baseName string, i int) string {
	return baseName + "-" + strconv.Itoa(i+1)
}
