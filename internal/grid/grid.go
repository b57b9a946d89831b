/*
Package grid holds the single geometry shared by slicing and reconstruction.

A Grid maps a linear tile index to a pixel origin and back. Tiles are laid
out in row-major order: index = row*Cols + col. Origins are always multiples
of the stride, so the reconstructor can recover a tile's position from its
index alone.

Border policy: tiles are truncated, never shifted. On each axis we keep
adding tiles until one of them reaches the far edge of the image; that last
tile is clipped to the image. For an axis of length L, tile length T and
stride S:

	count = 1                          if L <= T
	count = 1 + ceil((L - T) / S)      otherwise

so the union of all tile rectangles is exactly the image, with no gaps and
no tile lying entirely in the overlap of its neighbour.
*/
package grid

import (
	"fmt"
	"image"
	"math"
)

// Grid describes how an image of a given size is split into tiles.
type Grid struct {
	ImageWidth  int
	ImageHeight int
	TileWidth   int
	TileHeight  int
	StrideX     int // Horizontal pixels between tile origins
	StrideY     int // Vertical pixels between tile origins
	Cols        int // Tiles per row
	Rows        int
}

// New computes the grid for an image. overlapX and overlapY are fractions of
// the tile size shared with the neighbouring tile, in [0, 1).
func New(imageWidth, imageHeight, tileWidth, tileHeight int, overlapX, overlapY float64) (Grid, error) {
	if imageWidth <= 0 || imageHeight <= 0 {
		return Grid{}, fmt.Errorf("image size must be positive, got %dx%d", imageWidth, imageHeight)
	}
	if tileWidth <= 0 || tileHeight <= 0 {
		return Grid{}, fmt.Errorf("tile size must be positive, got %dx%d", tileWidth, tileHeight)
	}
	if overlapX < 0 || overlapX >= 1 || overlapY < 0 || overlapY >= 1 {
		return Grid{}, fmt.Errorf("overlap must be in [0, 1), got %v x %v", overlapX, overlapY)
	}

	sx := Stride(tileWidth, overlapX)
	sy := Stride(tileHeight, overlapY)
	if sx < 1 || sy < 1 {
		return Grid{}, fmt.Errorf("stride must be at least 1 pixel, got %dx%d", sx, sy)
	}

	return Grid{
		ImageWidth:  imageWidth,
		ImageHeight: imageHeight,
		TileWidth:   tileWidth,
		TileHeight:  tileHeight,
		StrideX:     sx,
		StrideY:     sy,
		Cols:        AxisCount(imageWidth, tileWidth, sx),
		Rows:        AxisCount(imageHeight, tileHeight, sy),
	}, nil
}

// Stride returns floor(tileSize * (1 - overlap)).
func Stride(tileSize int, overlap float64) int {
	return int(math.Floor(float64(tileSize) * (1 - overlap)))
}

// AxisCount returns the number of tiles needed to cover one axis.
func AxisCount(imageSize, tileSize, stride int) int {
	if imageSize <= tileSize {
		return 1
	}
	rest := imageSize - tileSize
	return 1 + (rest+stride-1)/stride // round up
}

// Len returns the total number of tiles.
func (g Grid) Len() int {
	return g.Cols * g.Rows
}

// Contains reports whether index names a tile of this grid.
func (g Grid) Contains(index int) bool {
	return index >= 0 && index < g.Len()
}

// Index returns the linear index of the tile at (col, row).
func (g Grid) Index(col, row int) int {
	return row*g.Cols + col
}

// Cell splits a linear index into (col, row).
func (g Grid) Cell(index int) (int, int) {
	return index % g.Cols, index / g.Cols
}

// Origin returns the top-left pixel of the tile in image coordinates.
func (g Grid) Origin(index int) image.Point {
	col, row := g.Cell(index)
	return image.Pt(col*g.StrideX, row*g.StrideY)
}

// Rect returns the tile rectangle, clipped to the image.
func (g Grid) Rect(index int) image.Rectangle {
	o := g.Origin(index)
	r := image.Rect(o.X, o.Y, o.X+g.TileWidth, o.Y+g.TileHeight)
	return r.Intersect(g.Bounds())
}

// Bounds returns the full image rectangle.
func (g Grid) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.ImageWidth, g.ImageHeight)
}

// Rects returns every tile rectangle in index order.
func (g Grid) Rects() []image.Rectangle {
	rects := make([]image.Rectangle, g.Len())
	for i := range rects {
		rects[i] = g.Rect(i)
	}
	return rects
}

func (g Grid) String() string {
	return fmt.Sprintf("%dx%d tiles of %dx%d (stride %dx%d) over %dx%d",
		g.Cols, g.Rows, g.TileWidth, g.TileHeight, g.StrideX, g.StrideY, g.ImageWidth, g.ImageHeight)
}
