package application

import (
	"context"
	"fmt"
	"sync"
)

// ListEventKind identifies a step of a mutating action on a list item.
type ListEventKind int

const (
	// ActionBegin removes the item optimistically and marks it in flight.
	ActionBegin ListEventKind = iota
	// ActionSucceeded commits the removal.
	ActionSucceeded
	// ActionFailed restores the item at its previous position.
	ActionFailed
)

func (k ListEventKind) String() string {
	switch k {
	case ActionBegin:
		return "begin"
	case ActionSucceeded:
		return "success"
	case ActionFailed:
		return "failure"
	default:
		return fmt.Sprintf("ListEventKind(%d)", int(k))
	}
}

// ListEvent is dispatched to a ListView for one item.
type ListEvent struct {
	Kind ListEventKind
	ID   string
}

type pendingRemoval[T any] struct {
	item  T
	index int
}

// ListView is a "pending work" list whose items leave the view when acted upon.
//
// Every mutating action runs through Begin, then exactly one of Succeeded or
// Failed. In-flight state is tracked per item id, so actions on different
// items never block each other.
type ListView[T any] struct {
	mu       sync.Mutex
	key      func(T) string
	items    []T
	inflight map[string]pendingRemoval[T]
	loaded   bool
}

// NewListView constructs an empty view keyed by the supplied function.
func NewListView[T any](key func(T) string) *ListView[T] {
	return &ListView[T]{
		key:      key,
		inflight: make(map[string]pendingRemoval[T]),
	}
}

// Replace swaps the contents with a fresh fetch. Items whose action is still in
// flight stay out of the view until the action settles.
func (v *ListView[T]) Replace(items []T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	next := make([]T, 0, len(items))
	for _, item := range items {
		if _, busy := v.inflight[v.key(item)]; busy {
			continue
		}
		next = append(next, item)
	}
	v.items = next
	v.loaded = true
}

// Loaded reports whether Replace has been called at least once.
func (v *ListView[T]) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded
}

// Items returns a copy of the visible items.
func (v *ListView[T]) Items() []T {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]T, len(v.items))
	copy(out, v.items)
	return out
}

// Get returns the visible item with the given id.
func (v *ListView[T]) Get(id string) (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if idx := v.indexLocked(id); idx >= 0 {
		return v.items[idx], true
	}
	var zero T
	return zero, false
}

// InFlight reports whether an action on id is outstanding.
func (v *ListView[T]) InFlight(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.inflight[id]
	return ok
}

// Dispatch applies one event.
func (v *ListView[T]) Dispatch(ev ListEvent) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch ev.Kind {
	case ActionBegin:
		if _, busy := v.inflight[ev.ID]; busy {
			return ErrActionInFlight
		}
		idx := v.indexLocked(ev.ID)
		if idx < 0 {
			return ErrStaleAction
		}
		v.inflight[ev.ID] = pendingRemoval[T]{item: v.items[idx], index: idx}
		v.items = append(v.items[:idx], v.items[idx+1:]...)
		return nil
	case ActionSucceeded:
		if _, busy := v.inflight[ev.ID]; !busy {
			return ErrStaleAction
		}
		delete(v.inflight, ev.ID)
		return nil
	case ActionFailed:
		removal, busy := v.inflight[ev.ID]
		if !busy {
			return ErrStaleAction
		}
		delete(v.inflight, ev.ID)
		if v.indexLocked(ev.ID) >= 0 {
			return nil
		}
		idx := removal.index
		if idx > len(v.items) {
			idx = len(v.items)
		}
		v.items = append(v.items, removal.item)
		copy(v.items[idx+1:], v.items[idx:])
		v.items[idx] = removal.item
		return nil
	default:
		return fmt.Errorf("unknown list event %v", ev.Kind)
	}
}

func (v *ListView[T]) indexLocked(id string) int {
	for i, item := range v.items {
		if v.key(item) == id {
			return i
		}
	}
	return -1
}

// runListAction wraps action with Begin and Succeeded/Failed events. The
// in-flight mark always clears, whatever the outcome.
func runListAction[T any](ctx context.Context, view *ListView[T], id string, action func(context.Context) error) (err error) {
	if err = view.Dispatch(ListEvent{Kind: ActionBegin, ID: id}); err != nil {
		return err
	}
	defer func() {
		kind := ActionSucceeded
		if err != nil {
			kind = ActionFailed
		}
		_ = view.Dispatch(ListEvent{Kind: kind, ID: id})
	}()
	return action(ctx)
}

// inFlight tracks per item actions that do not remove the item from a view.
type inFlight struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newInFlight() *inFlight {
	return &inFlight{ids: make(map[string]struct{})}
}

func (f *inFlight) begin(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.ids[id]; busy {
		return false
	}
	f.ids[id] = struct{}{}
	return true
}

func (f *inFlight) end(id string) {
	f.mu.Lock()
	delete(f.ids, id)
	f.mu.Unlock()
}

func (f *inFlight) active(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, busy := f.ids[id]
	return busy
}
