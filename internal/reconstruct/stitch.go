package reconstruct

import (
	"fmt"
	"image"
	"image/draw"
	"os"

	"github.com/disintegration/imaging"

	"github.com/andresmejia3/stitcher/internal/grid"
	"github.com/andresmejia3/stitcher/internal/log"
	"github.com/andresmejia3/stitcher/internal/types"
)

// StitchStats counts what happened to the tiles of one group.
type StitchStats struct {
	Pasted    int
	Missing   int // Index mapped to a file that does not exist
	Corrupt   int // File exists but does not decode
	OutOfGrid int // Index the grid has no cell for
}

// LoadFunc decodes one tile artifact.
type LoadFunc func(path string) (image.Image, error)

// LoadTile opens a tile artifact with imaging.
func LoadTile(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", types.ErrCorruptArtifact, path, err)
	}
	return img, nil
}

// Stitch pastes tiles into a zero-filled image of the grid's size. Tiles go
// in ascending index order at grid.Origin(index), clipped to the image, so
// a later tile overwrites the overlap it shares with earlier ones. Missing,
// unreadable and out-of-grid tiles are logged and leave the region as it was.
func Stitch(tiles map[int]string, g grid.Grid, load LoadFunc) (*image.RGBA, StitchStats) {
	if load == nil {
		load = LoadTile
	}
	dst := image.NewRGBA(g.Bounds())
	var stats StitchStats

	for _, idx := range sortedIndices(tiles) {
		path := tiles[idx]
		if !g.Contains(idx) {
			stats.OutOfGrid++
			log.Warn(log.Fields{"tile": path, "index": idx, "grid": g.String()}, "Tile index outside grid")
			continue
		}

		src, err := load(path)
		if err != nil {
			if os.IsNotExist(err) {
				stats.Missing++
				log.Warn(log.Fields{"tile": path}, "Tile does not exist")
			} else {
				stats.Corrupt++
				log.Warn(log.Fields{"tile": path, "error": err.Error()}, "Error loading tile")
			}
			continue
		}

		paste(dst, src, g.Origin(idx))
		stats.Pasted++
	}
	return dst, stats
}

// paste copies src with its top-left corner at origin. draw.Draw clips the
// destination rectangle to dst, which gives min(tile, image - origin).
func paste(dst *image.RGBA, src image.Image, origin image.Point) {
	sb := src.Bounds()
	r := image.Rectangle{Min: origin, Max: origin.Add(sb.Size())}
	draw.Draw(dst, r, src, sb.Min, draw.Src)
}
