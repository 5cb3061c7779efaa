package lagbuffer

import (
	"cmp"
	"slices"

	"github.com/sarchlab/lagbuffer/hooking"
	"github.com/sarchlab/lagbuffer/naming"
)

// Naive keeps every event sorted by key and replays all of them on each read.
// It is slow but obviously correct, and serves as the reference for the other
// strategies.
type Naive[S State[S, E], E Event[K], K cmp.Ordered] struct {
	naming.NamedBase
	hooking.HookableBase

	initial S
	events  []E
}

// NewNaive creates a Naive reconciler starting from a copy of initial.
func NewNaive[S State[S, E], E Event[K], K cmp.Ordered](
	name string,
	initial S,
) *Naive[S, E, K] {
	return &Naive[S, E, K]{
		NamedBase: naming.MakeNamedBase(name),
		initial:   initial.Clone(),
	}
}

// Update submits an event.
func (n *Naive[S, E, K]) Update(evt E) {
	pos := upperBound(n.events, evt.OrderKey())
	n.events = slices.Insert(n.events, pos, evt)

	if n.NumHooks() == 0 {
		return
	}

	if pos == len(n.events)-1 {
		n.InvokeHook(hooking.HookCtx{Domain: n, Pos: HookPosInOrder, Item: evt})
		return
	}

	n.InvokeHook(hooking.HookCtx{
		Domain: n,
		Pos:    HookPosOutOfOrder,
		Item:   evt,
		Detail: ReorderDetail{Replayed: len(n.events)},
	})
}

// State replays every event onto a copy of the initial state.
func (n *Naive[S, E, K]) State() S {
	state := n.initial.Clone()
	for _, evt := range n.events {
		state.Apply(evt)
	}

	return state
}

// Events returns a copy of all events in ascending key order.
func (n *Naive[S, E, K]) Events() []E {
	return slices.Clone(n.events)
}

// Len returns the number of events.
func (n *Naive[S, E, K]) Len() int {
	return len(n.events)
}
