// Package preview renders a selected artifact into something a UI can show
// without touching the disk again: a base64 data URI.
package preview

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/fpang/leafscan/internal/filehandler"
	"github.com/rs/zerolog/log"
)

// ErrInvalidDataURI is returned by Decode for anything that is not a base64 data URI.
var ErrInvalidDataURI = errors.New("invalid data URI")

// Image is a displayable encoding of an artifact.
type Image struct {
	MediaType string
	DataURI   string
}

// Generator turns an artifact into a preview. Implementations must honour
// ctx cancellation; the workflow cancels a generation once its artifact has
// been superseded.
type Generator interface {
	Generate(ctx context.Context, a *filehandler.Artifact) (*Image, error)
}

// DataURI encodes the artifact's original bytes unchanged, so decoding the
// preview yields exactly what the user selected.
type DataURI struct{}

// Generate implements Generator.
func (DataURI) Generate(ctx context.Context, a *filehandler.Artifact) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Encode(a.MediaType, a.Data), nil
}

// Thumbnail downsizes JPEG and PNG artifacts before encoding them. Other
// image types (HEIC, GIF, WebP) are encoded as-is.
type Thumbnail struct {
	MaxDimension int
}

// Generate implements Generator.
func (t Thumbnail) Generate(ctx context.Context, a *filehandler.Artifact) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	maxDim := t.MaxDimension
	if maxDim <= 0 {
		maxDim = filehandler.DefaultThumbnailMaxDimension
	}

	data, mimeType, err := filehandler.GenerateThumbnail(a, maxDim)
	if errors.Is(err, filehandler.ErrThumbnailUnsupported) {
		log.Debug().Str("name", a.Name).Str("mime_type", a.MediaType).Msg("No thumbnail for media type, using original bytes")
		return Encode(a.MediaType, a.Data), nil
	}
	if err != nil {
		return nil, fmt.Errorf("preview %s: %w", a.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Encode(mimeType, data), nil
}

// Encode builds a base64 data URI.
func Encode(mediaType string, data []byte) *Image {
	return &Image{
		MediaType: mediaType,
		DataURI:   "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}
}

// Decode reverses Encode and returns the embedded bytes and media type.
func Decode(dataURI string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(dataURI, "data:")
	if !ok {
		return nil, "", ErrInvalidDataURI
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", ErrInvalidDataURI
	}
	mediaType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return nil, "", fmt.Errorf("%w: not base64 encoded", ErrInvalidDataURI)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return data, mediaType, nil
}
