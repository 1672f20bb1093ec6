// Package selection is the persisted set of selected child tiles, keyed by
// canonical tile key.
package selection

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/jask/tileswipe/internal/kv"
	"github.com/jask/tileswipe/internal/tile"
)

// Key is the kv key holding the selection snapshot.
const Key = "tileswipe_selections"

// Store maps tile keys to the child descriptors they were selected with.
// Every mutation writes the whole snapshot before returning; if the write
// fails the mutation is undone and the error returned.
type Store struct {
	kv    kv.Store
	byKey map[string]tile.Child
	order []string
}

// Restore loads the persisted snapshot; an absent key yields an empty store.
func Restore(ctx context.Context, s kv.Store) (*Store, error) {
	st := &Store{kv: s, byKey: map[string]tile.Child{}}
	raw, ok, err := s.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("read selections: %w", err)
	}
	if !ok || raw == "" {
		return st, nil
	}
	var snap map[string]tile.Child
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("decode selections: %w", err)
	}
	// map order is random; sort by key so restored entries are stable
	for _, k := range slices.Sorted(maps.Keys(snap)) {
		st.byKey[k] = snap[k]
		st.order = append(st.order, k)
	}
	return st, nil
}

// Toggle removes the child if selected, otherwise inserts it. It reports the
// membership after the call.
func (s *Store) Toggle(ctx context.Context, c tile.Child) (bool, error) {
	k := c.ID().Key()
	if _, ok := s.byKey[k]; ok {
		return false, s.Remove(ctx, c.ID())
	}
	return true, s.insert(ctx, k, c)
}

// AddIfAbsent inserts the child unless already present and reports whether
// the store changed.
func (s *Store) AddIfAbsent(ctx context.Context, c tile.Child) (bool, error) {
	k := c.ID().Key()
	if _, ok := s.byKey[k]; ok {
		return false, nil
	}
	return true, s.insert(ctx, k, c)
}

func (s *Store) Remove(ctx context.Context, id tile.ID) error {
	k := id.Key()
	prev, ok := s.byKey[k]
	if !ok {
		return nil
	}
	pos := s.indexOf(k)
	delete(s.byKey, k)
	s.order = append(s.order[:pos], s.order[pos+1:]...)
	if err := s.persist(ctx); err != nil {
		s.byKey[k] = prev
		s.order = append(s.order[:pos], append([]string{k}, s.order[pos:]...)...)
		return err
	}
	return nil
}

func (s *Store) Contains(id tile.ID) bool {
	_, ok := s.byKey[id.Key()]
	return ok
}

// Entries returns the selected descriptors in insertion order.
func (s *Store) Entries() []tile.Child {
	out := make([]tile.Child, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.byKey[k])
	}
	return out
}

func (s *Store) Len() int { return len(s.order) }

// Clear empties the store and deletes the persisted snapshot.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, Key); err != nil {
		return fmt.Errorf("clear selections: %w", err)
	}
	s.byKey = map[string]tile.Child{}
	s.order = nil
	return nil
}

func (s *Store) insert(ctx context.Context, k string, c tile.Child) error {
	s.byKey[k] = c
	s.order = append(s.order, k)
	if err := s.persist(ctx); err != nil {
		delete(s.byKey, k)
		s.order = s.order[:len(s.order)-1]
		return err
	}
	return nil
}

func (s *Store) persist(ctx context.Context) error {
	data, err := json.Marshal(s.byKey)
	if err != nil {
		return fmt.Errorf("encode selections: %w", err)
	}
	if err := s.kv.Set(ctx, Key, string(data)); err != nil {
		return fmt.Errorf("write selections: %w", err)
	}
	return nil
}

func (s *Store) indexOf(k string) int {
	for i, o := range s.order {
		if o == k {
			return i
		}
	}
	return -1
}
