// Package annotate parses detector label files and converts normalized
// boxes into absolute pixel rectangles.
//
// A label line holds six whitespace-separated numbers:
//
//	class cx cy w h confidence
//
// cx, cy, w and h are normalized to the image the detection was made on.
package annotate

import (
	"bufio"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"

	"github.com/andresmejia3/stitcher/internal/log"
	"github.com/andresmejia3/stitcher/internal/types"
)

const fieldCount = 6

// Annotation is one detection from a label file.
type Annotation struct {
	Class      int
	CX         float64
	CY         float64
	W          float64
	H          float64
	Confidence float64
}

// Detection is an annotation resolved to absolute pixels.
type Detection struct {
	Box        image.Rectangle
	Class      int
	Confidence float64
}

// ParseLine parses one label line.
func ParseLine(line string) (Annotation, error) {
	fields := strings.Fields(line)
	if len(fields) != fieldCount {
		return Annotation{}, fmt.Errorf("%w: expected %d fields, got %d", types.ErrMalformedAnnotation, fieldCount, len(fields))
	}

	var v [fieldCount]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Annotation{}, fmt.Errorf("%w: field %d %q is not a number", types.ErrMalformedAnnotation, i+1, f)
		}
		v[i] = x
	}

	return Annotation{
		Class:      int(v[0]),
		CX:         v[1],
		CY:         v[2],
		W:          v[3],
		H:          v[4],
		Confidence: v[5],
	}, nil
}

// ReadFile parses a label file. A missing file means no annotations.
// Malformed lines are logged and skipped; the count of skipped lines is returned.
func ReadFile(path string) ([]Annotation, int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	defer f.Close()

	var anns []Annotation
	skipped := 0
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		a, err := ParseLine(line)
		if err != nil {
			skipped++
			log.Warn(log.Fields{"file": path, "line": lineNo, "text": line, "error": err.Error()}, "Invalid label format")
			continue
		}
		anns = append(anns, a)
	}
	if err := scanner.Err(); err != nil {
		return anns, skipped, fmt.Errorf("reading %s: %w", path, err)
	}
	return anns, skipped, nil
}

// Rect converts the annotation to pixel corners on a width x height image.
// Values are truncated to integers and halved with floor division, and any
// corner outside [0,width] x [0,height] is rejected rather than clamped.
func (a Annotation) Rect(width, height int) (image.Rectangle, error) {
	cx := int(a.CX * float64(width))
	cy := int(a.CY * float64(height))
	w := int(a.W * float64(width))
	h := int(a.H * float64(height))

	r := image.Rectangle{
		Min: image.Pt(cx-floorDiv(w, 2), cy-floorDiv(h, 2)),
		Max: image.Pt(cx+floorDiv(w, 2), cy+floorDiv(h, 2)),
	}
	if r.Min.X < 0 || r.Min.Y < 0 || r.Max.X > width || r.Max.Y > height {
		return r, fmt.Errorf("%w: box (%d, %d), (%d, %d) outside %dx%d",
			types.ErrMalformedAnnotation, r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, width, height)
	}
	return r, nil
}

// TileRect converts an annotation normalized to a tile into full image
// pixels. tile is the tile's actual rectangle in the full image.
func (a Annotation) TileRect(tile image.Rectangle) (image.Rectangle, error) {
	r, err := a.Rect(tile.Dx(), tile.Dy())
	return r.Add(tile.Min), err
}

// Resolve converts an annotation to a Detection on a width x height image.
func (a Annotation) Resolve(width, height int) (Detection, error) {
	r, err := a.Rect(width, height)
	if err != nil {
		return Detection{}, err
	}
	return Detection{Box: r, Class: a.Class, Confidence: a.Confidence}, nil
}

// floorDiv rounds toward negative infinity, unlike Go's / operator.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
