package filehandler

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// ImageMetadata is the EXIF subset shown next to a selected leaf photo.
//
// Decoding uses evanoberholster/imagemeta, which auto-detects JPEG, HEIC,
// TIFF and friends from the header and only reads the metadata blocks.
type ImageMetadata struct {
	Latitude  float64
	Longitude float64
	HasGPS    bool

	DateTaken time.Time
	HasDate   bool

	CameraMake  string
	CameraModel string
}

// ExtractImageMetadata decodes EXIF metadata from an artifact's bytes.
// Most phone screenshots and web downloads carry none; callers should treat
// an error as "no metadata" rather than as a reason to reject the artifact.
func ExtractImageMetadata(a *Artifact) (*ImageMetadata, error) {
	log.Debug().Str("name", a.Name).Msg("Extracting EXIF metadata")

	exifData, err := imagemeta.Decode(bytes.NewReader(a.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	metadata := &ImageMetadata{}

	gps := exifData.GPS
	if gps.Latitude() != 0 || gps.Longitude() != 0 {
		metadata.Latitude = gps.Latitude()
		metadata.Longitude = gps.Longitude()
		metadata.HasGPS = true
	}

	// Priority: DateTimeOriginal > CreateDate > ModifyDate
	switch {
	case !exifData.DateTimeOriginal().IsZero():
		metadata.DateTaken = exifData.DateTimeOriginal()
		metadata.HasDate = true
	case !exifData.CreateDate().IsZero():
		metadata.DateTaken = exifData.CreateDate()
		metadata.HasDate = true
	case !exifData.ModifyDate().IsZero():
		metadata.DateTaken = exifData.ModifyDate()
		metadata.HasDate = true
	}

	metadata.CameraMake = strings.TrimSpace(exifData.Make)
	metadata.CameraModel = strings.TrimSpace(exifData.Model)

	log.Debug().
		Str("name", a.Name).
		Bool("has_gps", metadata.HasGPS).
		Bool("has_date", metadata.HasDate).
		Msg("Image metadata extraction complete")

	return metadata, nil
}

// Summary renders the metadata as short "key: value" lines. Missing fields
// are omitted; an empty string means nothing useful was found.
func (m *ImageMetadata) Summary() string {
	var sb strings.Builder

	if m.HasDate {
		sb.WriteString(fmt.Sprintf("Taken: %s\n", m.DateTaken.Format("Monday, January 2, 2006 3:04 PM")))
	}
	if m.CameraMake != "" || m.CameraModel != "" {
		sb.WriteString(fmt.Sprintf("Camera: %s\n", strings.TrimSpace(m.CameraMake+" "+m.CameraModel)))
	}
	if m.HasGPS {
		sb.WriteString(fmt.Sprintf("Location: %.6f, %.6f\n", m.Latitude, m.Longitude))
	}

	return sb.String()
}
