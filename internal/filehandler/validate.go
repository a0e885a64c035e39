package filehandler

import (
	"fmt"
	"strings"
)

// imageCategory is the media type prefix every submittable artifact declares.
const imageCategory = "image/"

// ValidationError reports an artifact that cannot be submitted.
type ValidationError struct {
	Name      string
	MediaType string
}

func (e *ValidationError) Error() string {
	if e.MediaType == "" {
		return fmt.Sprintf("%s: no media type declared, please select a valid image file (PNG, JPG, JPEG)", e.Name)
	}
	return fmt.Sprintf("%s: %s is not an image, please select a valid image file (PNG, JPG, JPEG)", e.Name, e.MediaType)
}

// IsSubmittable reports whether a declared media type belongs to the image category.
func IsSubmittable(mediaType string) bool {
	return len(mediaType) >= len(imageCategory) &&
		strings.EqualFold(mediaType[:len(imageCategory)], imageCategory)
}

// ValidateArtifact returns a *ValidationError unless the artifact declares an
// image media type. A nil artifact is treated as an empty selection.
func ValidateArtifact(a *Artifact) error {
	if a == nil {
		return &ValidationError{Name: "(none)"}
	}
	if !IsSubmittable(a.MediaType) {
		return &ValidationError{Name: a.Name, MediaType: a.MediaType}
	}
	return nil
}
