package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fpang/leafscan/internal/filehandler"
	"github.com/ncruces/zenity"
)

// ErrPickCanceled is returned when the user closes the picker without
// choosing a file.
var ErrPickCanceled = errors.New("file selection canceled")

// ImagePatterns returns the picker glob patterns for supported images.
func ImagePatterns() []string {
	patterns := make([]string, 0, len(filehandler.SupportedImageExtensions))
	for ext := range filehandler.SupportedImageExtensions {
		patterns = append(patterns, "*"+ext)
	}
	sort.Strings(patterns)
	return patterns
}

// PickImage opens the native file dialog restricted to image files and
// returns the chosen path.
func PickImage() (string, error) {
	path, err := zenity.SelectFile(
		zenity.Title("Select a leaf photo"),
		zenity.FileFilters{
			{Name: "Images", Patterns: ImagePatterns(), CaseFold: true},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return "", ErrPickCanceled
		}
		return "", fmt.Errorf("file picker failed: %w", err)
	}
	return path, nil
}
