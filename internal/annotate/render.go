package annotate

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/andresmejia3/stitcher/internal/log"
)

// Style of drawn boxes.
var (
	BoxColor  = color.RGBA{R: 255, A: 255}
	LineWidth = 3.0
)

// Stats counts what happened to the lines of one label source.
type Stats struct {
	Drawn     int
	Rejected  int // Parsed, but the box fell outside the image
	Malformed int // Wrong field count or non-numeric field
}

func (s *Stats) Add(o Stats) {
	s.Drawn += o.Drawn
	s.Rejected += o.Rejected
	s.Malformed += o.Malformed
}

// Render draws an outlined rectangle and a confidence label for every
// detection, in place.
func Render(img *image.RGBA, dets []Detection) {
	if len(dets) == 0 {
		return
	}
	dc := gg.NewContextForRGBA(img)
	dc.SetColor(BoxColor)
	dc.SetLineWidth(LineWidth)
	dc.SetFontFace(basicfont.Face7x13)

	for _, d := range dets {
		r := d.Box
		dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
		dc.Stroke()
		// Anchor the label's top-left corner at the box's top-left corner
		dc.DrawStringAnchored(fmt.Sprintf("%.2f", d.Confidence), float64(r.Min.X), float64(r.Min.Y), 0, 1)
	}
}

// RenderFile draws every valid annotation of a label file that is
// normalized to the full width x height image. A missing file draws nothing.
func RenderFile(img *image.RGBA, path string, width, height int) (Stats, error) {
	anns, malformed, err := ReadFile(path)
	stats := Stats{Malformed: malformed}
	if err != nil {
		return stats, err
	}

	dets := make([]Detection, 0, len(anns))
	for _, a := range anns {
		d, err := a.Resolve(width, height)
		if err != nil {
			stats.Rejected++
			log.Warn(log.Fields{"file": path, "error": err.Error()}, "Invalid bounding box")
			continue
		}
		dets = append(dets, d)
	}
	Render(img, dets)
	stats.Drawn = len(dets)
	return stats, nil
}

// RenderTileFile draws the annotations of a label file normalized to one
// tile. tile is the tile's actual rectangle in img.
func RenderTileFile(img *image.RGBA, path string, tile image.Rectangle) (Stats, error) {
	anns, malformed, err := ReadFile(path)
	stats := Stats{Malformed: malformed}
	if err != nil {
		return stats, err
	}

	dets := make([]Detection, 0, len(anns))
	for _, a := range anns {
		r, err := a.TileRect(tile)
		if err != nil {
			stats.Rejected++
			log.Warn(log.Fields{"file": path, "tile": tile.String(), "error": err.Error()}, "Invalid bounding box")
			continue
		}
		dets = append(dets, Detection{Box: r, Class: a.Class, Confidence: a.Confidence})
	}
	Render(img, dets)
	stats.Drawn = len(dets)
	return stats, nil
}
