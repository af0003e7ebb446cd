// Package image provides source loading for raster images and multi-page
// documents.
package image

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	"scan-slicer/pkg/geometry"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is wrapped by LoadError when the extension is not a
// known image or document type.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrPageOutOfRange is returned when selecting a page the source does not have.
var ErrPageOutOfRange = errors.New("page out of range")

// LoadError reports a source that could not be opened or decoded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("cannot load %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Kind distinguishes single raster images from paged documents.
type Kind int

const (
	KindRaster Kind = iota
	KindDocument
)

func (k Kind) String() string {
	if k == KindDocument {
		return "Document"
	}
	return "Image"
}

// PageRenderer rasterizes pages of a multi-page document.
type PageRenderer interface {
	PageCount() int
	RenderPage(page int, scale float64) (image.Image, error)
}

// DefaultRenderScale is the scale used when rendering document pages.
const DefaultRenderScale = 2.0

// Source is a loaded image, or the currently rendered page of a document.
type Source struct {
	Path  string      // Original file path
	Kind  Kind        // Raster or document
	Image image.Image // Pixels of the image or current page
	Page  int         // Current page (0-based), always 0 for rasters
	Scale float64     // Render scale for document pages

	renderer PageRenderer
}

// Loader opens sources. OpenDocument is the collaborator used for paged
// formats; tests and alternative backends may replace it.
type Loader struct {
	OpenDocument func(path string) (PageRenderer, error)
	RenderScale  float64
}

// DefaultLoader returns a Loader backed by the PDF renderer.
func DefaultLoader() *Loader {
	return &Loader{
		OpenDocument: func(path string) (PageRenderer, error) {
			return OpenPDF(path)
		},
		RenderScale: DefaultRenderScale,
	}
}

// Load opens path with the default loader.
func Load(path string) (*Source, error) {
	return DefaultLoader().Load(path)
}

// Load opens path as a raster image or, for documents, renders the first page.
func (l *Loader) Load(path string) (*Source, error) {
	if !IsSupportedFormat(path) {
		return nil, &LoadError{Path: path, Err: ErrUnsupportedFormat}
	}

	if IsDocument(path) {
		return l.loadDocument(path)
	}

	img, err := decodeFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	b := img.Bounds()
	log.Printf("[Source] loaded %s (%dx%d)", filepath.Base(path), b.Dx(), b.Dy())
	return &Source{Path: path, Kind: KindRaster, Image: img, Scale: 1}, nil
}

func (l *Loader) loadDocument(path string) (*Source, error) {
	if l.OpenDocument == nil {
		return nil, &LoadError{Path: path, Err: ErrUnsupportedFormat}
	}
	doc, err := l.OpenDocument(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if doc.PageCount() == 0 {
		return nil, &LoadError{Path: path, Err: errors.New("document has no pages")}
	}

	scale := l.RenderScale
	if scale <= 0 {
		scale = DefaultRenderScale
	}
	src := &Source{Path: path, Kind: KindDocument, Scale: scale, renderer: doc}
	if err := src.SelectPage(0); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	log.Printf("[Source] loaded %s (%d pages)", filepath.Base(path), doc.PageCount())
	return src, nil
}

func decodeFile(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// NewRasterSource wraps an in-memory image.
func NewRasterSource(path string, img image.Image) *Source {
	return &Source{Path: path, Kind: KindRaster, Image: img, Scale: 1}
}

// PageCount returns the number of pages; rasters have one.
func (s *Source) PageCount() int {
	if s.renderer == nil {
		return 1
	}
	return s.renderer.PageCount()
}

// SelectPage renders page (0-based) into s.Image. For rasters only page 0 is valid.
func (s *Source) SelectPage(page int) error {
	if page < 0 || page >= s.PageCount() {
		return fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, page+1, s.PageCount())
	}
	if s.renderer == nil {
		return nil
	}

	img, err := s.renderer.RenderPage(page, s.Scale)
	if err != nil {
		return fmt.Errorf("failed to render page %d: %w", page+1, err)
	}
	s.Image = img
	s.Page = page
	return nil
}

// Width returns the image width in pixels.
func (s *Source) Width() int {
	if s.Image == nil {
		return 0
	}
	return s.Image.Bounds().Dx()
}

// Height returns the image height in pixels.
func (s *Source) Height() int {
	if s.Image == nil {
		return 0
	}
	return s.Image.Bounds().Dy()
}

// Size returns the image dimensions.
func (s *Source) Size() geometry.Size {
	return geometry.NewSize(float64(s.Width()), float64(s.Height()))
}

// BaseName returns the file name without directory or extension, the default
// base for exported crops.
func (s *Source) BaseName() string {
	base := filepath.Base(s.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SupportedFormats returns the list of supported file extensions.
func SupportedFormats() []string {
	return []string{".pdf", ".png", ".jpg", ".jpeg", ".tiff", ".tif", ".bmp", ".gif", ".heic", ".webp"}
}

// IsSupportedFormat checks if the given path has a supported extension.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// IsDocument reports whether path is routed to the document renderer.
func IsDocument(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".pdf"
}
