package tile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func grid(z, x0, y0, g int) []Child {
	out := make([]Child, 0, g*g)
	for r := 0; r < g; r++ {
		for c := 0; c < g; c++ {
			out = append(out, Child{Z: z, X: x0 + c, Y: y0 + r})
		}
	}
	return out
}

func TestKey(t *testing.T) {
	require.Equal(t, "19-300-400", ID{Z: 19, X: 300, Y: 400}.Key())
	require.Equal(t, ID{Z: 3, X: 1, Y: 2}, Child{X: 1, Y: 2, Z: 3}.ID())
}

func TestGridSize(t *testing.T) {
	for n, want := range map[int]int{1: 1, 4: 2, 9: 3, 16: 4, 256: 16} {
		g, err := GridSize(n)
		require.NoError(t, err)
		require.Equal(t, want, g)
	}
	for _, n := range []int{0, 2, 3, 5, 8, 15, -4} {
		_, err := GridSize(n)
		require.True(t, errors.Is(err, ErrInvalidGridShape), "n=%d", n)
	}
}

func TestNewMotherTileRowMajor(t *testing.T) {
	m, err := NewMotherTile(ID{Z: 18, X: 10, Y: 20}, nil, grid(20, 40, 80, 4))
	require.NoError(t, err)
	require.Equal(t, 4, m.GridSize())
	require.Equal(t, Child{Z: 20, X: 41, Y: 82}, m.Children[2*4+1])
}

func TestNewMotherTileRejectsColumnMajor(t *testing.T) {
	children := grid(20, 40, 80, 2)
	children[1], children[2] = children[2], children[1]
	_, err := NewMotherTile(ID{Z: 19, X: 20, Y: 40}, nil, children)
	require.ErrorIs(t, err, ErrInvalidGridShape)

	SortRowMajor(children)
	m, err := NewMotherTile(ID{Z: 19, X: 20, Y: 40}, nil, children)
	require.NoError(t, err)
	require.Equal(t, grid(20, 40, 80, 2), m.Children)
}

func TestNewMotherTileRejectsBadShapes(t *testing.T) {
	_, err := NewMotherTile(ID{}, nil, nil)
	require.ErrorIs(t, err, ErrInvalidGridShape)

	_, err = NewMotherTile(ID{}, nil, grid(5, 0, 0, 2)[:3])
	require.ErrorIs(t, err, ErrInvalidGridShape)

	mixed := grid(5, 0, 0, 2)
	mixed[3].Z = 6
	_, err = NewMotherTile(ID{}, nil, mixed)
	require.ErrorIs(t, err, ErrInvalidGridShape)
}

func TestChildIndexFromPointPartitionsCanvas(t *testing.T) {
	for _, tc := range []struct {
		w, h float64
		g    int
	}{
		{256, 256, 1}, {256, 256, 2}, {256, 256, 4}, {300, 200, 3}, {64, 32, 8},
	} {
		cellW, cellH := tc.w/float64(tc.g), tc.h/float64(tc.g)
		seen := map[int]bool{}
		for r := 0; r < tc.g; r++ {
			for c := 0; c < tc.g; c++ {
				want := r*tc.g + c
				// interior samples, including points a hair inside each edge
				for _, fx := range []float64{0.01, 0.5, 0.99} {
					for _, fy := range []float64{0.01, 0.5, 0.99} {
						px := (float64(c) + fx) * cellW
						py := (float64(r) + fy) * cellH
						got := ChildIndexFromPoint(px, py, tc.w, tc.h, tc.g)
						require.Equal(t, want, got, "w=%v h=%v g=%d at (%v,%v)", tc.w, tc.h, tc.g, px, py)
					}
				}
				seen[want] = true
			}
		}
		require.Len(t, seen, tc.g*tc.g)
	}
}

func TestChildAtScenario(t *testing.T) {
	m, err := NewMotherTile(ID{Z: 19, X: 1, Y: 1}, nil, grid(20, 2, 2, 2))
	require.NoError(t, err)

	c, ok := m.ChildAt(10, 10, 256, 256)
	require.True(t, ok)
	require.Equal(t, m.Children[0], c)

	c, ok = m.ChildAt(200, 200, 256, 256)
	require.True(t, ok)
	require.Equal(t, m.Children[3], c)
}

func TestChildAtOutOfRangeIsNoHit(t *testing.T) {
	m, err := NewMotherTile(ID{Z: 19}, nil, grid(20, 0, 0, 2))
	require.NoError(t, err)
	for _, p := range [][2]float64{{-1, 10}, {10, -0.5}, {256, 10}, {10, 256}, {999, 999}} {
		_, ok := m.ChildAt(p[0], p[1], 256, 256)
		require.False(t, ok, "point %v", p)
	}
	_, ok := Mother{}.ChildAt(1, 1, 256, 256)
	require.False(t, ok)
}

func TestCellRectTilesCanvas(t *testing.T) {
	w, h, g := 100, 70, 3
	area := 0
	for i := 0; i < g*g; i++ {
		r := CellRect(i, w, h, g)
		area += r.Dx() * r.Dy()
		mid := r.Min.Add(r.Size().Div(2))
		require.Equal(t, i, ChildIndexFromPoint(float64(mid.X), float64(mid.Y), float64(w), float64(h), g))
	}
	require.Equal(t, w*h, area)
}
