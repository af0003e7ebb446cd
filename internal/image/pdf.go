package image

import (
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNoPageImage is returned when a PDF page carries no raster image to render.
var ErrNoPageImage = errors.New("page has no raster image")

// PDFDocument renders pages of scanned PDFs by extracting the largest
// embedded image on each page. Vector-only pages are not rendered.
type PDFDocument struct {
	path  string
	pages int
	conf  *model.Configuration
}

// OpenPDF reads the page count of the PDF at path.
func OpenPDF(path string) (*PDFDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	n, err := api.PageCount(f, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}
	return &PDFDocument{path: path, pages: n, conf: conf}, nil
}

// PageCount returns the number of pages.
func (d *PDFDocument) PageCount() int {
	return d.pages
}

// RenderPage returns page (0-based) scaled by scale relative to the size of
// the embedded image.
func (d *PDFDocument) RenderPage(page int, scale float64) (image.Image, error) {
	if page < 0 || page >= d.pages {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, page+1, d.pages)
	}

	f, err := os.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	extracted, err := api.ExtractImagesRaw(f, []string{strconv.Itoa(page + 1)}, d.conf)
	if err != nil {
		return nil, fmt.Errorf("failed to extract page images: %w", err)
	}

	var best *model.Image
	for _, byObj := range extracted {
		for objNr := range byObj {
			img := byObj[objNr]
			if img.IsImgMask || img.Thumb {
				continue
			}
			if best == nil || img.Width*img.Height > best.Width*best.Height {
				best = &img
			}
		}
	}
	if best == nil {
		return nil, ErrNoPageImage
	}

	decoded, _, err := image.Decode(best)
	if err != nil {
		return nil, fmt.Errorf("failed to decode page image: %w", err)
	}
	return scaleImage(decoded, scale), nil
}

// scaleImage resizes img by scale; a scale of 1 (or invalid) returns img unchanged.
func scaleImage(img image.Image, scale float64) image.Image {
	if scale <= 0 || scale == 1 {
		return img
	}
	w := int(math.Round(float64(img.Bounds().Dx()) * scale))
	if w < 1 {
		w = 1
	}
	return imaging.Resize(img, w, 0, imaging.Lanczos)
}
