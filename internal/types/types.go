package types

import (
	"errors"
	"image"
)

// Error kinds shared by both pipelines. Wrap them with fmt.Errorf("%w: ...")
// and test with errors.Is.
var (
	// ErrMissingResource is fatal for the invocation (missing directory or run folder).
	ErrMissingResource = errors.New("missing resource")
	// ErrCorruptArtifact marks an unreadable source image or tile. The item is skipped.
	ErrCorruptArtifact = errors.New("corrupt artifact")
	// ErrMalformedAnnotation marks a bad label line or an out-of-bounds box. The line is skipped.
	ErrMalformedAnnotation = errors.New("malformed annotation")
	// ErrNamingMismatch marks a tile filename that does not decode into (stem, index).
	ErrNamingMismatch = errors.New("naming mismatch")
)

// Tile is one cropped cell of a source image.
type Tile struct {
	Index  int
	Origin image.Point // Top-left pixel in the source image
	Image  image.Image // Cropped pixels; smaller than nominal at right/bottom borders
}

// Size returns the actual pixel size of the tile.
func (t Tile) Size() image.Point {
	return t.Image.Bounds().Size()
}

// Rect returns the tile's rectangle in source image coordinates.
func (t Tile) Rect() image.Rectangle {
	return image.Rectangle{Min: t.Origin, Max: t.Origin.Add(t.Size())}
}

// SliceRecord describes one sliced source image, for the run history.
type SliceRecord struct {
	ImageID   string
	Path      string
	Stem      string
	Width     int
	Height    int
	TileCount int
}

// ReconstructionRecord describes one written reconstruction, for the run history.
type ReconstructionRecord struct {
	BatchID       string
	Stem          string
	RunDir        string
	OutputPath    string
	TilesPasted   int
	TilesMissing  int
	BoxesDrawn    int
	BoxesRejected int
}
