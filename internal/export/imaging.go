package export

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"
)

// ImagingBackend crops and encodes with the pure-Go imaging package.
type ImagingBackend struct{}

// Crop copies the pixels of src inside rect into a new image.
func (ImagingBackend) Crop(src image.Image, rect image.Rectangle) (image.Image, error) {
	r := rect.Intersect(src.Bounds())
	if r.Empty() {
		return nil, errors.New("crop rectangle outside image")
	}
	return imaging.Crop(src, r), nil
}

// Save encodes img to path, choosing the format from the extension.
func (ImagingBackend) Save(img image.Image, path string) error {
	return imaging.Save(img, path)
}
