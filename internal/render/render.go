// Package render composes the annotation frame: the mother tile's base image
// (or a placeholder when it failed to load) with the grid and selection
// overlay on top. Every call recomputes the frame from scratch.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/jask/tileswipe/internal/tile"
)

const (
	PlaceholderSize = 256
	placeholderText = "Tile not available"
	strokeWidth     = 2
)

var (
	placeholderBG = color.RGBA{0xf0, 0xf0, 0xf0, 0xff}
	placeholderFG = color.RGBA{0x33, 0x33, 0x33, 0xff}
	gridStroke    = color.NRGBA{255, 255, 255, 204}
	selectedFill  = color.NRGBA{76, 175, 80, 128}
)

// Selected reports whether a child tile is part of the selection.
type Selected interface {
	Contains(id tile.ID) bool
}

// Engine draws frames. The zero value is not usable; call NewEngine.
type Engine struct {
	face font.Face
}

func NewEngine() *Engine {
	return &Engine{face: basicfont.Face7x13}
}

// Frame draws base at its native size, or the placeholder when base is nil
// or loadErr is set. Mothers without a valid grid get no overlay.
func (e *Engine) Frame(m tile.Mother, base image.Image, loadErr error, sel Selected) *image.RGBA {
	var img *image.RGBA
	if base == nil || loadErr != nil {
		img = e.placeholder()
	} else {
		img = toRGBA(base)
	}
	if m.HasGrid() {
		overlay(img, m, sel)
	}
	return img
}

func (e *Engine) placeholder() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, PlaceholderSize, PlaceholderSize))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: placeholderBG}, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(placeholderFG),
		Face: e.face,
		Dot:  fixed.P(80, 128),
	}
	d.DrawString(placeholderText)
	return img
}

// overlay strokes every cell and fills the selected ones. It is shared by
// the loaded and placeholder paths.
func overlay(img *image.RGBA, m tile.Mother, sel Selected) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	g := m.GridSize()
	for idx, child := range m.Children {
		r := tile.CellRect(idx, w, h, g)
		strokeRect(img, r, gridStroke, strokeWidth)
		if sel != nil && sel.Contains(child.ID()) {
			draw.Draw(img, r, &image.Uniform{C: selectedFill}, image.Point{}, draw.Over)
		}
	}
}

func strokeRect(img *image.RGBA, r image.Rectangle, c color.Color, width int) {
	src := &image.Uniform{C: c}
	for i := 0; i < width; i++ {
		x1, y1, x2, y2 := r.Min.X+i, r.Min.Y+i, r.Max.X-i, r.Max.Y-i
		if x2 <= x1 || y2 <= y1 {
			return
		}
		draw.Draw(img, image.Rect(x1, y1, x2, y1+1), src, image.Point{}, draw.Over)
		draw.Draw(img, image.Rect(x1, y2-1, x2, y2), src, image.Point{}, draw.Over)
		draw.Draw(img, image.Rect(x1, y1+1, x1+1, y2-1), src, image.Point{}, draw.Over)
		draw.Draw(img, image.Rect(x2-1, y1+1, x2, y2-1), src, image.Point{}, draw.Over)
	}
}

func toRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// EncodePNG writes frame as PNG.
func EncodePNG(w io.Writer, frame image.Image) error {
	if err := png.Encode(w, frame); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
