// Package tile holds tile identities, mother/child grids and the pure
// coordinate math shared by hit-testing and rendering.
package tile

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"
)

// ErrInvalidGridShape is returned when a mother tile's children cannot form
// a square row-major grid.
var ErrInvalidGridShape = errors.New("invalid grid shape")

// ID names a raster tile at a pyramid level.
type ID struct {
	Z int `json:"z"`
	X int `json:"x"`
	Y int `json:"y"`
}

// Key is the canonical "{z}-{x}-{y}" form used for persistence.
func (id ID) Key() string {
	return fmt.Sprintf("%d-%d-%d", id.Z, id.X, id.Y)
}

func (id ID) String() string { return id.Key() }

// Child is a child tile as the decomposition service describes it. Bounds is
// [west, south, east, north] and is echoed back untouched at export time.
type Child struct {
	X      int       `json:"x"`
	Y      int       `json:"y"`
	Z      int       `json:"z"`
	Bounds []float64 `json:"bounds,omitempty"`
}

func (c Child) ID() ID { return ID{Z: c.Z, X: c.X, Y: c.Y} }

// Mother is a tile subdivided into a GridSize x GridSize grid of children,
// stored row-major. A Mother built outside NewMotherTile has no grid; Err
// then records why construction failed.
type Mother struct {
	ID       ID
	Bounds   []float64
	Children []Child
	Err      error
	gridSize int
}

// NewMotherTile validates the grid invariants: the child count is a perfect
// square and children are row-major on one zoom level, so that
// Children[r*g+c] sits at column c, row r.
func NewMotherTile(id ID, bounds []float64, children []Child) (Mother, error) {
	g, err := GridSize(len(children))
	if err != nil {
		return Mother{}, fmt.Errorf("mother %s: %w", id, err)
	}
	origin := children[0]
	for i, c := range children {
		row, col := i/g, i%g
		if c.Z != origin.Z || c.X != origin.X+col || c.Y != origin.Y+row {
			return Mother{}, fmt.Errorf("mother %s: child %d (%s) not at row %d col %d: %w",
				id, i, c.ID(), row, col, ErrInvalidGridShape)
		}
	}
	return Mother{ID: id, Bounds: bounds, Children: children, gridSize: g}, nil
}

// SortRowMajor orders children by row (y) then column (x). Decomposition
// services are free to list children in any order; the grid is not.
func SortRowMajor(children []Child) {
	sort.SliceStable(children, func(i, j int) bool {
		if children[i].Y != children[j].Y {
			return children[i].Y < children[j].Y
		}
		return children[i].X < children[j].X
	})
}

// GridSize returns sqrt(n) when n is a perfect square >= 1.
func GridSize(n int) (int, error) {
	if n < 1 {
		return 0, fmt.Errorf("%d children: %w", n, ErrInvalidGridShape)
	}
	g := int(math.Round(math.Sqrt(float64(n))))
	if g*g != n {
		return 0, fmt.Errorf("%d children is not a square: %w", n, ErrInvalidGridShape)
	}
	return g, nil
}

// GridSize of a constructed mother tile; 0 when it has no valid grid.
func (m Mother) GridSize() int { return m.gridSize }

// HasGrid reports whether hit-testing and overlays apply to m.
func (m Mother) HasGrid() bool { return m.gridSize > 0 }

// ChildIndexFromPoint maps a point on a w x h canvas to a row-major cell
// index. Points outside [0,w) x [0,h) produce an index outside [0, g*g) or
// a negative one; callers treat those as no hit.
func ChildIndexFromPoint(px, py, w, h float64, g int) int {
	cellW := w / float64(g)
	cellH := h / float64(g)
	col := int(math.Floor(px / cellW))
	row := int(math.Floor(py / cellH))
	return row*g + col
}

// ChildAt hit-tests a point against the mother tile rendered at w x h.
func (m Mother) ChildAt(px, py, w, h float64) (Child, bool) {
	if m.gridSize == 0 || w <= 0 || h <= 0 {
		return Child{}, false
	}
	if px < 0 || py < 0 || px >= w || py >= h {
		return Child{}, false
	}
	idx := ChildIndexFromPoint(px, py, w, h, m.gridSize)
	if idx < 0 || idx >= len(m.Children) {
		return Child{}, false
	}
	return m.Children[idx], true
}

// CellRect is the pixel rectangle covered by cell idx on a w x h canvas.
// Edges are rounded from the same fractional cell size ChildIndexFromPoint
// divides by, so adjacent cells tile the canvas without gaps.
func CellRect(idx, w, h, g int) image.Rectangle {
	row, col := idx/g, idx%g
	cellW := float64(w) / float64(g)
	cellH := float64(h) / float64(g)
	return image.Rect(
		int(math.Round(float64(col)*cellW)),
		int(math.Round(float64(row)*cellH)),
		int(math.Round(float64(col+1)*cellW)),
		int(math.Round(float64(row+1)*cellH)),
	)
}
