package cli

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/fpang/leafscan/internal/auth"
	"github.com/fpang/leafscan/internal/classifier"
	"github.com/fpang/leafscan/internal/filehandler"
	"github.com/rs/zerolog/log"
)

// ServerNotResponding is shown when a login or whoami call never reached
// the server.
const ServerNotResponding = "Server not responding. Please try again later."

// ResolveImagePath checks that path is an existing regular file and returns
// its absolute form.
func ResolveImagePath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", &filehandler.ValidationError{Name: path, MediaType: "inode/directory"}
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, nil
}

// LoginMessage maps a classifier login error to the text shown to the user.
func LoginMessage(err error) string {
	var loginErr *classifier.LoginError
	switch {
	case errors.As(err, &loginErr):
		return loginErr.Message
	case errors.Is(err, classifier.ErrNetwork):
		return ServerNotResponding
	default:
		return "Login failed"
	}
}

// RemedyMessage maps a Gemini error to the text shown to the user.
func RemedyMessage(err error) string {
	keyErr := auth.ClassifyError(err)
	switch keyErr.Type {
	case auth.ErrTypeNoKey:
		return "No Gemini API key configured. Set GEMINI_API_KEY or store it in ~/.leafscan/gemini.gpg"
	case auth.ErrTypeInvalidKey:
		return "Invalid Gemini API key. Please check your API key and try again"
	case auth.ErrTypeNetworkError:
		return "Network error. Please check your internet connection"
	case auth.ErrTypeQuotaExceeded:
		return "Gemini quota exceeded. Please try again later or check your usage limits"
	default:
		return "No remedy available due to an API error."
	}
}

// HandleSelectionError logs why a file could not be selected and exits.
func HandleSelectionError(err error, path string) {
	var valErr *filehandler.ValidationError
	switch {
	case errors.As(err, &valErr):
		log.Fatal().Str("path", path).Str("mime_type", valErr.MediaType).Msg("Not an image. Please select an image file")
	case os.IsNotExist(err):
		log.Fatal().Str("path", path).Msg("File not found")
	default:
		log.Fatal().Err(err).Str("path", path).Msg("Failed to read file")
	}
}
