package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jask/tileswipe/internal/kv"
)

// IndexKey holds the current mother tile index.
const IndexKey = "tileswipe_index"

// Navigator steps through n mother tiles. The index always stays inside
// [0, n-1].
type Navigator struct {
	kv    kv.Store
	index int
	n     int
}

func restoreNavigator(ctx context.Context, s kv.Store, n int) (*Navigator, error) {
	nav := &Navigator{kv: s, n: n}
	raw, ok, err := s.Get(ctx, IndexKey)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	if ok {
		if i, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			nav.index = i
		}
	}
	nav.index = clamp(nav.index, n)
	return nav, nil
}

func (n *Navigator) Index() int { return n.index }

func (n *Navigator) Len() int { return n.n }

// Advance moves to the next tile; at the last tile it is a no-op. It
// reports whether the index moved.
func (n *Navigator) Advance(ctx context.Context) (bool, error) {
	return n.step(ctx, 1)
}

// Retreat moves to the previous tile; at index 0 it is a no-op.
func (n *Navigator) Retreat(ctx context.Context) (bool, error) {
	return n.step(ctx, -1)
}

func (n *Navigator) step(ctx context.Context, delta int) (bool, error) {
	next := clamp(n.index+delta, n.n)
	if next == n.index {
		return false, nil
	}
	if err := n.kv.Set(ctx, IndexKey, strconv.Itoa(next)); err != nil {
		return false, fmt.Errorf("write index: %w", err)
	}
	n.index = next
	return true, nil
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
