package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/andresmejia3/stitcher/internal/types"
)

// --- 1. Terminal Errors ---

// hint returns a short remedy for the error kinds a user can act on.
func hint(err error) string {
	switch {
	case errors.Is(err, types.ErrMissingResource):
		return "Check the directory flags (or the config file) and that the detector run has finished."
	case errors.Is(err, types.ErrCorruptArtifact):
		return "The file could not be decoded. Re-export it or remove it from the batch."
	default:
		return ""
	}
}

// ShowError prints a formatted error box to stderr without exiting.
func ShowError(context string, err error) {
	writeError(os.Stderr, context, err)
}

// Die is the unified exit strategy for stitcher.
// It prints a formatted error box and exits with status 1.
func Die(context string, err error) {
	ShowError(context, err)
	os.Exit(1)
}

func writeError(w io.Writer, context string, err error) {
	fmt.Fprintf(w, "\n---------------------------------------------------------\n")
	fmt.Fprintf(w, "🚨 STITCHER ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(w, "DETAILS: %v\n", err)
		if h := hint(err); h != "" {
			fmt.Fprintf(w, "HINT: %s\n", h)
		}
	}
	fmt.Fprintf(w, "---------------------------------------------------------\n")
}

// --- 2. Image Identity ---

// GenerateImageID creates a deterministic hash for a source image file
// based on its path, size, and modification time.
func GenerateImageID(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	input := fmt.Sprintf("%s-%d-%d", path, info.Size(), info.ModTime().UnixNano())
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:]), nil
}

// ShortID trims an id for display.
func ShortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
