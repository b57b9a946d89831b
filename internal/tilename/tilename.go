// Package tilename encodes tile identity into filenames and decodes it back.
//
// A tile artifact is named {stem}_tile_{index}.{ext}. The stem may itself
// contain "_tile_", so decoding splits on the last occurrence.
package tilename

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andresmejia3/stitcher/internal/log"
	"github.com/andresmejia3/stitcher/internal/types"
)

// Delimiter separates the parent image stem from the tile index.
const Delimiter = "_tile_"

// Encode returns the artifact filename for a tile.
func Encode(stem string, index int, ext string) string {
	return fmt.Sprintf("%s%s%d.%s", stem, Delimiter, index, strings.TrimPrefix(ext, "."))
}

// Decode splits a tile artifact filename (with or without directory and
// extension) into its parent stem and tile index.
func Decode(name string) (string, int, error) {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	i := strings.LastIndex(base, Delimiter)
	if i < 0 {
		return "", 0, fmt.Errorf("%w: %q has no %q delimiter", types.ErrNamingMismatch, name, Delimiter)
	}
	stem, digits := base[:i], base[i+len(Delimiter):]
	if stem == "" {
		return "", 0, fmt.Errorf("%w: %q has an empty stem", types.ErrNamingMismatch, name)
	}
	// Atoi accepts a sign, which would break the round trip
	if digits == "" || strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return "", 0, fmt.Errorf("%w: %q has a non-numeric tile index %q", types.ErrNamingMismatch, name, digits)
	}
	index, err := strconv.Atoi(digits)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q: %v", types.ErrNamingMismatch, name, err)
	}
	return stem, index, nil
}

// Stem returns a filename without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// HasExt reports whether name has one of exts (case-insensitive, with or without the dot).
func HasExt(name string, exts []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	for _, e := range exts {
		if ext == strings.TrimPrefix(strings.ToLower(e), ".") {
			return true
		}
	}
	return false
}

// Group maps parent stem -> tile index -> artifact path for every tile
// artifact in dir with one of exts. Files that do not decode are logged and
// excluded.
func Group(dir string, exts []string) (map[string]map[int]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: tile directory %s", types.ErrMissingResource, dir)
		}
		return nil, err
	}

	groups := make(map[string]map[int]string)
	for _, e := range entries {
		if e.IsDir() || !HasExt(e.Name(), exts) {
			continue
		}
		stem, index, err := Decode(e.Name())
		if err != nil {
			log.Warn(log.Fields{"file": e.Name(), "error": err.Error()}, "Excluding file from tile groups")
			continue
		}
		if groups[stem] == nil {
			groups[stem] = make(map[int]string)
		}
		groups[stem][index] = filepath.Join(dir, e.Name())
	}
	return groups, nil
}

// HasTiles reports whether dir already holds at least one tile artifact of
// the given parent stem. A missing dir holds none.
func HasTiles(dir, stem string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), stem) {
			continue
		}
		if s, _, err := Decode(e.Name()); err == nil && s == stem {
			return true, nil
		}
	}
	return false, nil
}
