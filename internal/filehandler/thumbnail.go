package filehandler

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// DefaultThumbnailMaxDimension is the maximum width or height of a preview thumbnail.
const DefaultThumbnailMaxDimension = 1024

// ErrThumbnailUnsupported is returned for media types the pure Go decoder
// cannot handle. Callers fall back to the original bytes.
var ErrThumbnailUnsupported = errors.New("thumbnail not supported for this media type")

// GenerateThumbnail downsizes a JPEG or PNG artifact so neither side exceeds
// maxDimension and re-encodes it as JPEG. Images already within bounds are
// re-encoded without resizing.
func GenerateThumbnail(a *Artifact, maxDimension int) ([]byte, string, error) {
	log.Debug().
		Str("name", a.Name).
		Str("mime_type", a.MediaType).
		Int("max_dimension", maxDimension).
		Msg("Generating thumbnail")

	var img image.Image
	var err error
	switch a.MediaType {
	case "image/jpeg":
		img, err = jpeg.Decode(bytes.NewReader(a.Data))
	case "image/png":
		img, err = png.Decode(bytes.NewReader(a.Data))
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrThumbnailUnsupported, a.MediaType)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	origWidth, origHeight := bounds.Dx(), bounds.Dy()
	newWidth, newHeight := calculateThumbnailDimensions(origWidth, origHeight, maxDimension)

	out := img
	if newWidth != origWidth || newHeight != origHeight {
		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		out = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 80}); err != nil {
		return nil, "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	log.Debug().
		Str("name", a.Name).
		Int("orig_width", origWidth).
		Int("orig_height", origHeight).
		Int("new_width", newWidth).
		Int("new_height", newHeight).
		Int("output_size", buf.Len()).
		Msg("Thumbnail generated")

	return buf.Bytes(), "image/jpeg", nil
}

// calculateThumbnailDimensions calculates new dimensions maintaining aspect ratio.
func calculateThumbnailDimensions(width, height, maxDimension int) (int, int) {
	if maxDimension <= 0 || (width <= maxDimension && height <= maxDimension) {
		return width, height
	}

	if width > height {
		return maxDimension, int(float64(height) * float64(maxDimension) / float64(width))
	}
	return int(float64(width) * float64(maxDimension) / float64(height)), maxDimension
}
