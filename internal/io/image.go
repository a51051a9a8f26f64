package ioutils

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoder registration

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder registration, common for video thumbnails
)

// ImageService prepares thumbnails for embedding as cover art.
//
// Thumbnails arrive as JPEG, PNG or WebP; the output is always JPEG because
// that is what every tag reader understands.
type ImageService struct {
	// Quality is the JPEG quality, 1-100.
	Quality int
}

// NewImageService creates an ImageService with quality 90.
func NewImageService() *ImageService {
	return &ImageService{Quality: 90}
}

// Cover decodes a thumbnail, shrinks it to fit within maxSize x maxSize
// keeping its aspect ratio, and encodes it as JPEG.
//
// Images already within bounds are only re-encoded. A maxSize <= 0
// disables resizing.
//
// Example:
//
//	cover, err := svc.Cover(ctx, webpThumb, 1000)
func (s *ImageService) Cover(ctx context.Context, data []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width, height := fitWithin(bounds.Dx(), bounds.Dy(), maxSize)
	if width == bounds.Dx() && height == bounds.Dy() {
		return s.encode(img)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	return s.encode(dst)
}

// fitWithin scales width x height down to fit a square of side max.
func fitWithin(width, height, max int) (int, int) {
	if max <= 0 || (width <= max && height <= max) || width == 0 || height == 0 {
		return width, height
	}
	ratio := float64(width) / float64(height)
	if ratio < 1 {
		// Height is the limiting factor
		return int(float64(max) * ratio), max
	}
	// Width is the limiting factor
	return max, int(float64(max) / ratio)
}

func (s *ImageService) encode(img image.Image) ([]byte, error) {
	quality := s.Quality
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
