package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/tileswipe/internal/kv"
	"github.com/jask/tileswipe/internal/selection"
	"github.com/jask/tileswipe/internal/tile"
	"github.com/jask/tileswipe/internal/tilesvc"
)

type stubProvider struct {
	resp tilesvc.Response
	err  error
}

func (p stubProvider) LoadTiles(context.Context, tilesvc.Request) (tilesvc.Response, error) {
	return p.resp, p.err
}

// mother builds a 2x2 mother tile at z1 whose children sit at z2.
func mother(t *testing.T, x, y int) tile.Mother {
	t.Helper()
	var children []tile.Child
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			children = append(children, tile.Child{X: 2*x + c, Y: 2*y + r, Z: 2})
		}
	}
	m, err := tile.NewMotherTile(tile.ID{Z: 1, X: x, Y: y}, nil, children)
	require.NoError(t, err)
	return m
}

func response(t *testing.T, n int) tilesvc.Response {
	t.Helper()
	var ms []tile.Mother
	for i := 0; i < n; i++ {
		ms = append(ms, mother(t, i%2, i/2))
	}
	return tilesvc.Response{Mothers: ms, Config: json.RawMessage(`{"zoom":1}`)}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestLoadWrapsFailures(t *testing.T) {
	ctx := context.Background()
	_, err := Load(ctx, stubProvider{err: errors.New("boom")}, tilesvc.Request{})
	require.ErrorIs(t, err, ErrConfigLoad)

	_, err = Load(ctx, stubProvider{}, tilesvc.Request{})
	require.ErrorIs(t, err, ErrConfigLoad)

	resp, err := Load(ctx, stubProvider{resp: response(t, 2)}, tilesvc.Request{})
	require.NoError(t, err)
	require.Len(t, resp.Mothers, 2)
}

func TestOpenFreshSession(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	clk := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}

	s, err := Open(ctx, store, "building", response(t, 3), clk.now)
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)
	require.Equal(t, 0, s.Nav.Index())
	require.Equal(t, 0, s.Selection.Len())

	raw, ok, err := store.Get(ctx, StartKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1700000000000", raw)
}

func TestOpenRestoresAndClampsIndex(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, IndexKey, "7"))

	s, err := Open(ctx, store, "building", response(t, 3), nil)
	require.NoError(t, err)
	require.Equal(t, 2, s.Nav.Index())

	require.NoError(t, store.Set(ctx, IndexKey, "-4"))
	s, err = Open(ctx, store, "building", response(t, 3), nil)
	require.NoError(t, err)
	require.Equal(t, 0, s.Nav.Index())

	require.NoError(t, store.Set(ctx, IndexKey, "garbage"))
	s, err = Open(ctx, store, "building", response(t, 3), nil)
	require.NoError(t, err)
	require.Equal(t, 0, s.Nav.Index())
}

func TestNavigationBoundaries(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	s, err := Open(ctx, store, "building", response(t, 2), nil)
	require.NoError(t, err)

	moved, err := s.Retreat(ctx)
	require.NoError(t, err)
	require.False(t, moved)
	_, ok, _ := store.Get(ctx, IndexKey)
	require.False(t, ok, "no-op retreat must not persist")

	moved, err = s.Advance(ctx)
	require.NoError(t, err)
	require.True(t, moved)
	require.Equal(t, 1, s.Nav.Index())
	require.Equal(t, tile.ID{Z: 1, X: 1, Y: 0}, s.Current().ID)

	moved, err = s.Advance(ctx)
	require.NoError(t, err)
	require.False(t, moved)
	require.Equal(t, 1, s.Nav.Index())

	raw, _, _ := store.Get(ctx, IndexKey)
	require.Equal(t, "1", raw)
}

func TestClockResumesPersistedStart(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	clk := &fakeClock{t: time.UnixMilli(1_000_000)}

	s, err := Open(ctx, store, "building", response(t, 1), clk.now)
	require.NoError(t, err)
	clk.t = clk.t.Add(90 * time.Second)
	require.Equal(t, 90*time.Second, s.Clock.Elapsed())

	// a reload later keeps the original start
	clk.t = clk.t.Add(30 * time.Second)
	s2, err := Open(ctx, store, "building", response(t, 1), clk.now)
	require.NoError(t, err)
	require.Equal(t, s.Clock.StartedAt(), s2.Clock.StartedAt())
	require.Equal(t, int64(120), s2.Clock.ElapsedSeconds())

	prev := s2.Clock.Elapsed()
	clk.t = clk.t.Add(1500 * time.Millisecond)
	require.GreaterOrEqual(t, s2.Clock.Elapsed(), prev)
	require.Equal(t, 121*time.Second, s2.Clock.Elapsed())

	clk.t = time.UnixMilli(0)
	require.Zero(t, s2.Clock.Elapsed())
}

func TestFormatElapsed(t *testing.T) {
	require.Equal(t, "0s", FormatElapsed(0))
	require.Equal(t, "59s", FormatElapsed(59*time.Second))
	require.Equal(t, "2m 3s", FormatElapsed(123*time.Second))
	require.Equal(t, "1h 0m 5s", FormatElapsed(time.Hour+5*time.Second))
	require.Equal(t, "1h 2m 3s", FormatElapsed(3723*time.Second))
}

func TestPointerToggleAndDrag(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	s, err := Open(ctx, store, "building", response(t, 1), nil)
	require.NoError(t, err)
	const w, h = 256.0, 256.0

	changed, err := s.PointerDown(ctx, 10, 10, w, h)
	require.NoError(t, err)
	require.True(t, changed)
	require.True(t, s.Dragging())
	require.True(t, s.Selection.Contains(tile.ID{Z: 2, X: 0, Y: 0}))

	// dragging back over a selected cell keeps it selected
	changed, err = s.PointerMove(ctx, 20, 20, w, h)
	require.NoError(t, err)
	require.False(t, changed)

	changed, err = s.PointerMove(ctx, 200, 200, w, h)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, 2, s.Selection.Len())

	s.PointerUp()
	require.False(t, s.Dragging())
	changed, err = s.PointerMove(ctx, 200, 10, w, h)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, 2, s.Selection.Len())

	// a second press toggles off
	_, err = s.PointerDown(ctx, 200, 200, w, h)
	require.NoError(t, err)
	require.False(t, s.Selection.Contains(tile.ID{Z: 2, X: 1, Y: 1}))

	// presses outside the canvas start a drag without selecting
	s.PointerUp()
	changed, err = s.PointerDown(ctx, -5, 300, w, h)
	require.NoError(t, err)
	require.False(t, changed)
	require.True(t, s.Dragging())
}

func TestPointerIgnoresInvalidGrid(t *testing.T) {
	ctx := context.Background()
	resp := tilesvc.Response{Mothers: []tile.Mother{{
		ID:  tile.ID{Z: 1},
		Err: tile.ErrInvalidGridShape,
	}}}
	s, err := Open(ctx, kv.NewMemory(), "building", resp, nil)
	require.NoError(t, err)
	changed, err := s.PointerDown(ctx, 10, 10, 256, 256)
	require.NoError(t, err)
	require.False(t, changed)
	require.Zero(t, s.Selection.Len())
}

func TestResetClearsState(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	s, err := Open(ctx, store, "building", response(t, 2), nil)
	require.NoError(t, err)
	_, err = s.PointerDown(ctx, 10, 10, 256, 256)
	require.NoError(t, err)
	_, err = s.Advance(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))
	require.True(t, s.Closed())
	require.False(t, s.Clock.Running())
	require.Zero(t, s.Clock.Elapsed())
	require.Zero(t, s.Selection.Len())
	for _, k := range []string{IndexKey, StartKey, selection.Key} {
		_, ok, err := store.Get(ctx, k)
		require.NoError(t, err)
		require.False(t, ok, k)
	}

	_, err = s.Advance(ctx)
	require.ErrorIs(t, err, ErrClosed)
	_, err = s.PointerDown(ctx, 10, 10, 256, 256)
	require.ErrorIs(t, err, ErrClosed)
}

func TestDiscardUnblocksCorruptSelection(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, selection.Key, "{not json"))
	require.NoError(t, store.Set(ctx, IndexKey, "2"))
	require.NoError(t, store.Set(ctx, StartKey, "1700000000000"))

	_, err := Open(ctx, store, "building", response(t, 4), nil)
	require.Error(t, err)

	require.NoError(t, Discard(ctx, store))
	for _, k := range []string{selection.Key, IndexKey, StartKey} {
		_, ok, err := store.Get(ctx, k)
		require.NoError(t, err)
		require.False(t, ok, k)
	}
	s, err := Open(ctx, store, "building", response(t, 4), nil)
	require.NoError(t, err)
	require.Zero(t, s.Selection.Len())
	require.Zero(t, s.Nav.Index())
}
