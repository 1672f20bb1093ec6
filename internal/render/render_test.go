package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/tileswipe/internal/tile"
)

type selSet map[tile.ID]bool

func (s selSet) Contains(id tile.ID) bool { return s[id] }

func grid2(t *testing.T) tile.Mother {
	t.Helper()
	m, err := tile.NewMotherTile(tile.ID{Z: 1, X: 1, Y: 0}, nil, []tile.Child{
		{X: 2, Y: 0, Z: 2}, {X: 3, Y: 0, Z: 2}, {X: 2, Y: 1, Z: 2}, {X: 3, Y: 1, Z: 2},
	})
	require.NoError(t, err)
	return m
}

func black(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	return img
}

func TestFrameOverlayOnLoadedImage(t *testing.T) {
	m := grid2(t)
	frame := NewEngine().Frame(m, black(256, 256), nil, selSet{{Z: 2, X: 2, Y: 0}: true})
	require.Equal(t, image.Rect(0, 0, 256, 256), frame.Bounds())

	// selected cell 0 is tinted green
	c := frame.RGBAAt(64, 64)
	require.Greater(t, int(c.G), int(c.R)+30)
	require.Greater(t, int(c.G), int(c.B)+30)

	// unselected cell 3 keeps the base image
	require.Equal(t, color.RGBA{0, 0, 0, 255}, frame.RGBAAt(192, 192))

	// grid strokes on both sides of the cell boundary
	for _, x := range []int{126, 127, 128, 129} {
		p := frame.RGBAAt(x, 200)
		require.Greater(t, int(p.R), 150, "x=%d", x)
	}
	require.Equal(t, color.RGBA{0, 0, 0, 255}, frame.RGBAAt(131, 200))
}

func TestFramePlaceholder(t *testing.T) {
	m := grid2(t)
	frame := NewEngine().Frame(m, nil, errors.New("404"), nil)
	require.Equal(t, image.Rect(0, 0, PlaceholderSize, PlaceholderSize), frame.Bounds())
	require.Equal(t, color.RGBA{0xf0, 0xf0, 0xf0, 0xff}, frame.RGBAAt(40, 40))

	// the label is drawn left of centre on the baseline
	dark := 0
	for x := 80; x < 200; x++ {
		for y := 118; y < 130; y++ {
			if frame.RGBAAt(x, y).R < 0x80 {
				dark++
			}
		}
	}
	require.Positive(t, dark)

	// a load error wins over a stale base image
	frame = NewEngine().Frame(m, black(512, 512), errors.New("timeout"), nil)
	require.Equal(t, PlaceholderSize, frame.Bounds().Dx())
}

func TestFrameWithoutGrid(t *testing.T) {
	bad := tile.Mother{ID: tile.ID{Z: 1}, Err: tile.ErrInvalidGridShape}
	frame := NewEngine().Frame(bad, black(64, 64), nil, selSet{})
	require.Equal(t, color.RGBA{0, 0, 0, 255}, frame.RGBAAt(0, 0))
	require.Equal(t, color.RGBA{0, 0, 0, 255}, frame.RGBAAt(32, 32))
}

func TestFrameKeepsNativeSize(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 522, 522))
	frame := NewEngine().Frame(grid2(t), src, nil, nil)
	require.Equal(t, image.Rect(0, 0, 512, 512), frame.Bounds())
}

func TestTerminal(t *testing.T) {
	frame := NewEngine().Frame(grid2(t), black(256, 256), nil, nil)
	out := Terminal(frame, 8, 4)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	for _, l := range lines {
		require.Equal(t, 8, strings.Count(l, halfBlock))
	}
	require.Empty(t, Terminal(nil, 8, 4))
	require.Empty(t, Terminal(frame, 0, 4))
}

func TestEncodePNG(t *testing.T) {
	frame := NewEngine().Frame(grid2(t), nil, errors.New("x"), nil)
	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, frame))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, frame.Bounds(), img.Bounds())
}
