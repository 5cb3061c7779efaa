package lagbuffer

import (
	"cmp"
	"fmt"

	"github.com/sarchlab/lagbuffer/hooking"
	"github.com/sarchlab/lagbuffer/naming"
	"github.com/sarchlab/lagbuffer/ring"
)

// Windowed keeps the most recent events in a ring, a head state that includes
// all of them and a tail state right before the oldest one.
//
// An event older than everything already folded into the tail cannot be
// placed correctly anymore; it is applied at the start of the window.
type Windowed[S State[S, E], E Event[K], K cmp.Ordered] struct {
	naming.NamedBase
	hooking.HookableBase

	events  *ring.Ring[E]
	head    S
	tail    S
	scratch []E
}

// WindowedBuilder builds Windowed reconcilers.
type WindowedBuilder[S State[S, E], E Event[K], K cmp.Ordered] struct {
	capacity int
}

// MakeWindowedBuilder creates a WindowedBuilder with default parameters.
func MakeWindowedBuilder[S State[S, E], E Event[K], K cmp.Ordered]() WindowedBuilder[S, E, K] {
	return WindowedBuilder[S, E, K]{capacity: DefaultCapacity}
}

// WithCapacity sets the number of events kept in the window.
func (b WindowedBuilder[S, E, K]) WithCapacity(capacity int) WindowedBuilder[S, E, K] {
	b.capacity = capacity
	return b
}

// Build creates a Windowed reconciler starting from a copy of initial. It
// panics if the capacity is not positive.
func (b WindowedBuilder[S, E, K]) Build(name string, initial S) *Windowed[S, E, K] {
	if b.capacity <= 0 {
		panic(fmt.Sprintf("windowed %s: capacity must be positive, got %d",
			name, b.capacity))
	}

	return &Windowed[S, E, K]{
		NamedBase: naming.MakeNamedBase(name),
		events:    ring.New[E](b.capacity),
		head:      initial.Clone(),
		tail:      initial.Clone(),
		scratch:   make([]E, 0, b.capacity),
	}
}

// Update submits an event.
func (w *Windowed[S, E, K]) Update(evt E) {
	last, ok := w.events.PeekEnd()
	if ok && evt.OrderKey() < last.OrderKey() {
		w.reorder(evt)
		return
	}

	w.replay(evt)

	if w.NumHooks() > 0 {
		w.InvokeHook(hooking.HookCtx{Domain: w, Pos: HookPosInOrder, Item: evt})
	}
}

// reorder rebuilds the head from the tail, merging evt into the window.
func (w *Windowed[S, E, K]) reorder(evt E) {
	w.scratch = w.events.Drain(w.scratch[:0])
	w.head = w.tail.Clone()

	pending := true
	for _, queued := range w.scratch {
		if pending && evt.OrderKey() < queued.OrderKey() {
			w.replay(evt)
			pending = false
		}

		w.replay(queued)
	}

	if pending {
		w.replay(evt)
	}

	replayed := len(w.scratch) + 1
	clear(w.scratch)

	if w.NumHooks() > 0 {
		w.InvokeHook(hooking.HookCtx{
			Domain: w,
			Pos:    HookPosOutOfOrder,
			Item:   evt,
			Detail: ReorderDetail{Replayed: replayed},
		})
	}
}

// replay applies evt to the head and appends it to the window. An event that
// falls out of the window is folded into the tail.
func (w *Windowed[S, E, K]) replay(evt E) {
	w.head.Apply(evt)

	evicted, ok := w.events.Push(evt)
	if !ok {
		return
	}

	w.tail.Apply(evicted)

	if w.NumHooks() > 0 {
		w.InvokeHook(hooking.HookCtx{Domain: w, Pos: HookPosFold, Item: evicted})
	}
}

// State returns the head state. It is shared with the reconciler and must not
// be changed.
func (w *Windowed[S, E, K]) State() S {
	return w.head
}

// Snapshot returns a copy of the head state.
func (w *Windowed[S, E, K]) Snapshot() S {
	return w.head.Clone()
}

// Tail returns a copy of the state right before the oldest event in the
// window.
func (w *Windowed[S, E, K]) Tail() S {
	return w.tail.Clone()
}

// Events returns the events in the window in ascending key order.
func (w *Windowed[S, E, K]) Events() []E {
	return w.events.Items()
}

// Len returns the number of events in the window.
func (w *Windowed[S, E, K]) Len() int {
	return w.events.Size()
}

// Capacity returns the maximum number of events in the window.
func (w *Windowed[S, E, K]) Capacity() int {
	return w.events.Capacity()
}
