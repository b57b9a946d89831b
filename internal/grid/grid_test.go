package grid

import (
	"fmt"
	"image"
	"testing"

	"github.com/stretchr/testify/require"
)

func rectToString(r image.Rectangle) string {
	return fmt.Sprintf("%v,%v,%v,%v", r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
}

func TestDefectImageGrid(t *testing.T) {
	g, err := New(1456, 1088, 256, 256, 0.2, 0.2)
	require.NoError(t, err)
	require.Equal(t, 204, g.StrideX)
	require.Equal(t, 204, g.StrideY)
	require.Equal(t, 7, g.Cols)
	require.Equal(t, 6, g.Rows)
	require.Equal(t, 42, g.Len())

	require.Equal(t, "0,0,256,256", rectToString(g.Rect(0)))
	require.Equal(t, "204,0,460,256", rectToString(g.Rect(1)))
	// Right border tile is truncated, not shifted
	require.Equal(t, "1224,0,1456,256", rectToString(g.Rect(6)))
	require.Equal(t, "0,204,256,460", rectToString(g.Rect(7)))
	require.Equal(t, "1224,1020,1456,1088", rectToString(g.Rect(41)))
}

func TestIndexRoundTrip(t *testing.T) {
	g, err := New(1000, 700, 128, 96, 0.25, 0.1)
	require.NoError(t, err)
	for i := 0; i < g.Len(); i++ {
		col, row := g.Cell(i)
		require.Equal(t, i, g.Index(col, row))
		require.Equal(t, image.Pt(col*g.StrideX, row*g.StrideY), g.Origin(i))
	}
	require.False(t, g.Contains(-1))
	require.False(t, g.Contains(g.Len()))
	require.True(t, g.Contains(g.Len()-1))
}

func TestAxisCount(t *testing.T) {
	require.Equal(t, 1, AxisCount(10, 11, 8))
	require.Equal(t, 1, AxisCount(10, 10, 8))
	require.Equal(t, 2, AxisCount(10, 5, 5))
	require.Equal(t, 3, AxisCount(11, 5, 5))
	require.Equal(t, 3, AxisCount(14, 6, 4))
}

func TestCoverage(t *testing.T) {
	validate := func(w, h, tw, th int, ox, oy float64) {
		g, err := New(w, h, tw, th, ox, oy)
		require.NoError(t, err)

		covered := make([]bool, w*h)
		for _, r := range g.Rects() {
			require.False(t, r.Empty(), "empty tile in %v", g)
			require.True(t, r.In(g.Bounds()))
			for y := r.Min.Y; y < r.Max.Y; y++ {
				for x := r.Min.X; x < r.Max.X; x++ {
					covered[y*w+x] = true
				}
			}
		}
		for i, c := range covered {
			require.True(t, c, "pixel %d,%d not covered by %v", i%w, i/w, g)
		}

		// The last tile on each axis is the first to reach the edge
		last := g.Rect(g.Len() - 1)
		require.Equal(t, w, last.Max.X)
		require.Equal(t, h, last.Max.Y)
		if g.Cols > 1 {
			require.Less(t, g.Origin(g.Cols-2).X+tw, w)
		}
		if g.Rows > 1 {
			require.Less(t, g.Origin(g.Index(0, g.Rows-2)).Y+th, h)
		}
	}

	validate(1456, 1088, 256, 256, 0.2, 0.2)
	validate(10, 10, 11, 11, 0, 0)
	validate(10, 10, 10, 10, 0.5, 0.5)
	validate(10, 5, 5, 5, 0, 0)
	validate(33, 17, 8, 6, 0.3, 0.6)

	for w := 14; w < 24; w++ {
		for tw := 3; tw <= 14; tw++ {
			for _, ov := range []float64{0, 0.1, 0.2, 0.5, 0.66} {
				validate(w, w/2+1, tw, tw, ov, ov)
			}
		}
	}
}

func TestInvalidGrid(t *testing.T) {
	cases := []struct {
		name         string
		w, h, tw, th int
		ox, oy       float64
	}{
		{"zero image", 0, 10, 4, 4, 0, 0},
		{"zero tile", 10, 10, 0, 4, 0, 0},
		{"negative overlap", 10, 10, 4, 4, -0.1, 0},
		{"overlap of one", 10, 10, 4, 4, 0, 1},
		{"stride collapses", 10, 10, 4, 4, 0.9, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.w, tc.h, tc.tw, tc.th, tc.ox, tc.oy)
			require.Error(t, err)
		})
	}
}
