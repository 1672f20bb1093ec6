// Package session owns the state of one annotation pass: the mother tiles,
// the selection, the navigation index and the session clock. A Session is
// created by Open, driven by pointer and navigation events, and torn down by
// Reset after export.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jask/tileswipe/internal/kv"
	"github.com/jask/tileswipe/internal/selection"
	"github.com/jask/tileswipe/internal/tile"
	"github.com/jask/tileswipe/internal/tilesvc"
)

var (
	// ErrConfigLoad marks a failed session start: malformed area of interest,
	// a failed tile request, or nothing to annotate.
	ErrConfigLoad = errors.New("config load failed")
	// ErrClosed is returned by mutations after Reset.
	ErrClosed = errors.New("session closed")
)

// Load asks the provider for the session's tiles. Errors are wrapped with
// ErrConfigLoad; nothing is persisted.
func Load(ctx context.Context, p tilesvc.Provider, req tilesvc.Request) (tilesvc.Response, error) {
	resp, err := p.LoadTiles(ctx, req)
	if err != nil {
		return tilesvc.Response{}, fmt.Errorf("%w: %w", ErrConfigLoad, err)
	}
	if len(resp.Mothers) == 0 {
		return tilesvc.Response{}, fmt.Errorf("%w: no tiles cover the area of interest", ErrConfigLoad)
	}
	return resp, nil
}

// Session is the explicit state object for one annotation pass.
type Session struct {
	ID        string
	Category  string
	Mothers   []tile.Mother
	Config    json.RawMessage
	Selection *selection.Store
	Nav       *Navigator
	Clock     *Clock

	kv       kv.Store
	dragging bool
	closed   bool
}

// Open restores persisted state for resp's tiles, creating the session start
// if this is a fresh session. now may be nil.
func Open(ctx context.Context, store kv.Store, category string, resp tilesvc.Response, now func() time.Time) (*Session, error) {
	if now == nil {
		now = time.Now
	}
	sel, err := selection.Restore(ctx, store)
	if err != nil {
		return nil, err
	}
	nav, err := restoreNavigator(ctx, store, len(resp.Mothers))
	if err != nil {
		return nil, err
	}
	clock, err := startClock(ctx, store, now)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        uuid.NewString(),
		Category:  category,
		Mothers:   resp.Mothers,
		Config:    resp.Config,
		Selection: sel,
		Nav:       nav,
		Clock:     clock,
		kv:        store,
	}, nil
}

// Current is the mother tile under the navigation index.
func (s *Session) Current() tile.Mother { return s.Mothers[s.Nav.Index()] }

func (s *Session) Closed() bool { return s.closed }

func (s *Session) Dragging() bool { return s.dragging }

// PointerDown toggles the child under (px, py) on a w x h canvas and starts
// a drag. A miss still starts the drag so that moving onto the grid paints.
// It reports whether the selection changed.
func (s *Session) PointerDown(ctx context.Context, px, py, w, h float64) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	s.dragging = true
	c, ok := s.Current().ChildAt(px, py, w, h)
	if !ok {
		return false, nil
	}
	if _, err := s.Selection.Toggle(ctx, c); err != nil {
		return false, err
	}
	return true, nil
}

// PointerMove paints while dragging: the child under the pointer is added if
// absent and never removed.
func (s *Session) PointerMove(ctx context.Context, px, py, w, h float64) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	if !s.dragging {
		return false, nil
	}
	c, ok := s.Current().ChildAt(px, py, w, h)
	if !ok {
		return false, nil
	}
	return s.Selection.AddIfAbsent(ctx, c)
}

// PointerUp ends a drag; leaving the canvas does the same.
func (s *Session) PointerUp() { s.dragging = false }

func (s *Session) Advance(ctx context.Context) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	s.dragging = false
	return s.Nav.Advance(ctx)
}

func (s *Session) Retreat(ctx context.Context) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	s.dragging = false
	return s.Nav.Retreat(ctx)
}

// Info summarises the session for status lines.
type Info struct {
	Selected int
	Total    int
	Position int // 1-based
	Elapsed  time.Duration
}

func (s *Session) Info() Info {
	return Info{
		Selected: s.Selection.Len(),
		Total:    len(s.Mothers),
		Position: s.Nav.Index() + 1,
		Elapsed:  s.Clock.Elapsed(),
	}
}

// Reset clears the selection, drops the persisted index and start time and
// stops the clock. Every step is attempted; the first error is returned.
func (s *Session) Reset(ctx context.Context) error {
	var errs []error
	if err := s.Selection.Clear(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.kv.Delete(ctx, IndexKey, StartKey); err != nil {
		errs = append(errs, fmt.Errorf("clear session keys: %w", err))
	}
	s.Clock.stop()
	s.dragging = false
	s.closed = true
	return errors.Join(errs...)
}

// Discard deletes every persisted key of a session without opening it. It is
// the way out when stored state cannot be restored.
func Discard(ctx context.Context, store kv.Store) error {
	if err := store.Delete(ctx, selection.Key, IndexKey, StartKey); err != nil {
		return fmt.Errorf("discard session: %w", err)
	}
	return nil
}
