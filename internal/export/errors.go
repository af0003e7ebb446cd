package export

import (
	"errors"
	"fmt"

	"scan-slicer/internal/grid"
)

// ErrNoRegions is returned when an export is requested with nothing to export.
var ErrNoRegions = errors.New("no regions to export")

// ErrExportInProgress is returned when an export starts while another runs.
var ErrExportInProgress = errors.New("export already in progress")

// CropError reports a region whose pixels could not be cropped.
type CropError struct {
	Region grid.CropRegion
	Err    error
}

func (e *CropError) Error() string {
	return fmt.Sprintf("failed to crop %s: %v", e.Region, e.Err)
}

func (e *CropError) Unwrap() error {
	return e.Err
}

// SaveError reports a crop that could not be written.
type SaveError struct {
	Filename string
	Err      error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("failed to save %s: %v", e.Filename, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}
