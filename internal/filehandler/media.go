// Package filehandler loads leaf photos into submittable artifacts and decides
// whether an artifact qualifies for analysis.
//
// Validation is based on the declared media type only. Content is never
// sniffed, so a mislabeled file can be admitted and the classifier is left to
// reject it.
package filehandler

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// SupportedImageExtensions maps the extensions the upload form advertises to
// their declared media types.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
}

// fallbackMediaType is declared for files whose extension maps to nothing.
const fallbackMediaType = "application/octet-stream"

// Artifact is a file the user has chosen for analysis.
type Artifact struct {
	Name      string
	Size      int64
	MediaType string
	Data      []byte
}

// NewArtifact wraps bytes that arrived from somewhere other than the local
// disk (a multipart upload, an MCP tool call). Size is derived from data.
func NewArtifact(name, mediaType string, data []byte) *Artifact {
	return &Artifact{
		Name:      name,
		Size:      int64(len(data)),
		MediaType: mediaType,
		Data:      data,
	}
}

// SizeMB formats the artifact size the way the upload form shows it.
func (a *Artifact) SizeMB() string {
	return fmt.Sprintf("%.2f MB", float64(a.Size)/1024/1024)
}

// LoadArtifact reads a file from disk. The declared media type comes from the
// extension; unknown extensions are declared as application/octet-stream and
// will fail validation.
func LoadArtifact(filePath string) (*Artifact, error) {
	log.Debug().Str("path", filePath).Msg("Loading artifact")

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file not found: %s", filePath)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	artifact := &Artifact{
		Name:      filepath.Base(filePath),
		Size:      info.Size(),
		MediaType: GetMIMEType(filepath.Ext(filePath)),
		Data:      data,
	}

	log.Info().
		Str("path", filePath).
		Str("mime_type", artifact.MediaType).
		Int64("size_bytes", artifact.Size).
		Msg("Artifact loaded")

	return artifact, nil
}

// GetMIMEType returns the declared media type for a file extension.
func GetMIMEType(ext string) string {
	ext = strings.ToLower(ext)
	if mimeType, ok := SupportedImageExtensions[ext]; ok {
		return mimeType
	}
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		// Drop parameters such as "; charset=utf-8".
		if i := strings.Index(mimeType, ";"); i >= 0 {
			mimeType = strings.TrimSpace(mimeType[:i])
		}
		return mimeType
	}
	return fallbackMediaType
}

// IsImage returns true if the file extension is one the upload form accepts.
func IsImage(ext string) bool {
	_, ok := SupportedImageExtensions[strings.ToLower(ext)]
	return ok
}
