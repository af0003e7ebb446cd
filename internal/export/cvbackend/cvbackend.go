// Package cvbackend implements crop, save and grayscale conversion on OpenCV.
package cvbackend

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Backend crops and writes images through OpenCV.
type Backend struct{}

// Crop copies the pixels of src inside rect, given in src coordinates.
func (Backend) Crop(src image.Image, rect image.Rectangle) (image.Image, error) {
	bounds := src.Bounds()
	r := rect.Intersect(bounds)
	if r.Empty() {
		return nil, fmt.Errorf("crop rectangle %v outside image %v", rect, bounds)
	}

	mat, err := ImageToMat(src)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	roi := mat.Region(r.Sub(bounds.Min))
	defer roi.Close()

	out := roi.Clone()
	defer out.Close()
	return out.ToImage()
}

// Save writes img with cv::imwrite; the format follows the extension.
func (Backend) Save(img image.Image, path string) error {
	mat, err := ImageToMat(img)
	if err != nil {
		return err
	}
	defer mat.Close()

	if ok := gocv.IMWrite(path, mat); !ok {
		return fmt.Errorf("imwrite failed for %s", path)
	}
	return nil
}

// Grayscale converts img to 8-bit luminance with cv::cvtColor.
func Grayscale(img image.Image) (*image.Gray, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	mat, err := ImageToMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	w, h := gray.Cols(), gray.Rows()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := range row {
			row[x] = gray.GetUCharAt(y, x)
		}
	}
	return out, nil
}

// ImageToMat converts a Go image.Image to a gocv.Mat in BGR format. The Mat
// origin is the image's Bounds().Min.
func ImageToMat(img image.Image) (gocv.Mat, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return gocv.NewMat(), fmt.Errorf("empty image")
	}

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			mat.SetUCharAt(y, x*3+0, uint8(b>>8))
			mat.SetUCharAt(y, x*3+1, uint8(g>>8))
			mat.SetUCharAt(y, x*3+2, uint8(r>>8))
		}
	}

	return mat, nil
}
