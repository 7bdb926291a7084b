package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// MaxDimension is the longest side, in pixels, of an uploaded source image.
	MaxDimension = 1024
	// Quality is the JPEG quality used when re-encoding source images.
	Quality = 60
)

var (
	ErrEmptyImage   = errors.New("imaging: empty image data")
	ErrInvalidImage = errors.New("imaging: invalid image data")
)

// Decode decodes jpeg, png, gif, webp, bmp or tiff data and reports the format name.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, format, nil
}

// Fit returns the size of a w x h image scaled so its longest side is at most limit.
// Images already within the limit keep their size.
func Fit(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}

// Scale resizes img to fit within limit using Catmull-Rom resampling.
func Scale(img image.Image, limit int) image.Image {
	b := img.Bounds()
	w, h := Fit(b.Dx(), b.Dy(), limit)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Encode writes img as a JPEG of the given quality.
func Encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Preprocess prepares a source image for upload: decode, scale to [MaxDimension],
// and re-encode as JPEG at [Quality].
func Preprocess(data []byte) ([]byte, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Encode(Scale(img, MaxDimension), Quality)
}

// Placeholder renders a square JPEG whose colour is derived from seed, so the same
// seed always yields the same image.
func Placeholder(seed string, size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: placeholder size must be positive", ErrInvalidImage)
	}

	h := fnv.New32a()
	h.Write([]byte(seed))
	sum := h.Sum32()
	fill := color.RGBA{R: uint8(sum >> 16), G: uint8(sum >> 8), B: uint8(sum), A: 255}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)
	return Encode(img, Quality)
}
