package render

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
	xdraw "golang.org/x/image/draw"
)

const halfBlock = "▀"

// Terminal resamples frame to cols x 2*rows pixels and renders it with
// upper half blocks: the foreground carries the top pixel of each cell and
// the background the bottom one, so each terminal cell shows two pixels.
func Terminal(frame image.Image, cols, rows int) string {
	if frame == nil || cols <= 0 || rows <= 0 {
		return ""
	}
	small := image.NewRGBA(image.Rect(0, 0, cols, rows*2))
	xdraw.CatmullRom.Scale(small, small.Bounds(), frame, frame.Bounds(), xdraw.Src, nil)

	var b strings.Builder
	for row := 0; row < rows; row++ {
		if row > 0 {
			b.WriteByte('\n')
		}
		for col := 0; col < cols; col++ {
			top := small.RGBAAt(col, row*2)
			bottom := small.RGBAAt(col, row*2+1)
			b.WriteString(lipgloss.NewStyle().
				Foreground(hex(top)).
				Background(hex(bottom)).
				Render(halfBlock))
		}
	}
	return b.String()
}

func hex(c color.RGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}
