// Package ring provides a fixed-capacity circular store that overwrites its
// oldest element when full.
package ring

import (
	"fmt"

	"github.com/sarchlab/lagbuffer/hooking"
)

// HookPosRingPush marks when an element is pushed into the ring.
var HookPosRingPush = &hooking.HookPos{Name: "Ring Push"}

// HookPosRingPop marks when an element is popped from the ring.
var HookPosRingPop = &hooking.HookPos{Name: "Ring Pop"}

// HookPosRingEvict marks when a push overwrites the oldest element.
var HookPosRingEvict = &hooking.HookPos{Name: "Ring Evict"}

// A Ring is a circular FIFO with a capacity fixed at construction. Pushing
// into a full ring evicts the front element.
//
// start == end holds both for an empty ring and for a full one, so fullness
// is tracked by an explicit flag.
type Ring[T any] struct {
	hooking.HookableBase

	elements []T
	start    int
	end      int
	full     bool
}

// New creates an empty ring. It panics if capacity is not positive.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("ring capacity must be positive, got %d", capacity))
	}

	return &Ring[T]{elements: make([]T, capacity)}
}

// Push appends item at the logical end. If the ring is full, the front element
// is evicted first and returned with ok set to true.
func (r *Ring[T]) Push(item T) (evicted T, ok bool) {
	if r.full {
		evicted, ok = r.elements[r.start], true
		r.start = r.next(r.start)
		r.invoke(HookPosRingEvict, evicted)
	}

	r.elements[r.end] = item
	r.end = r.next(r.end)
	r.full = r.end == r.start

	r.invoke(HookPosRingPush, item)

	return evicted, ok
}

// Pop removes and returns the front element. ok is false if the ring is empty.
func (r *Ring[T]) Pop() (item T, ok bool) {
	if r.IsEmpty() {
		return item, false
	}

	var zero T
	item = r.elements[r.start]
	r.elements[r.start] = zero
	r.start = r.next(r.start)
	r.full = false

	r.invoke(HookPosRingPop, item)

	return item, true
}

// Peek returns the front element without removing it.
func (r *Ring[T]) Peek() (item T, ok bool) {
	if r.IsEmpty() {
		return item, false
	}

	return r.elements[r.start], true
}

// PeekEnd returns the most recently pushed element without removing it.
func (r *Ring[T]) PeekEnd() (item T, ok bool) {
	if r.IsEmpty() {
		return item, false
	}

	last := r.end - 1
	if last < 0 {
		last = len(r.elements) - 1
	}

	return r.elements[last], true
}

// Drain pops every element in FIFO order and appends them to dst.
func (r *Ring[T]) Drain(dst []T) []T {
	for {
		item, ok := r.Pop()
		if !ok {
			return dst
		}

		dst = append(dst, item)
	}
}

// Items returns a copy of the elements in FIFO order.
func (r *Ring[T]) Items() []T {
	items := make([]T, 0, r.Size())
	for i, n := r.start, r.Size(); n > 0; i, n = r.next(i), n-1 {
		items = append(items, r.elements[i])
	}

	return items
}

// Size returns the number of elements in the ring.
func (r *Ring[T]) Size() int {
	switch {
	case r.full:
		return len(r.elements)
	case r.end >= r.start:
		return r.end - r.start
	default:
		return len(r.elements) - r.start + r.end
	}
}

// Capacity returns the maximum number of elements the ring holds.
func (r *Ring[T]) Capacity() int {
	return len(r.elements)
}

// IsEmpty returns true if the ring holds no element.
func (r *Ring[T]) IsEmpty() bool {
	return !r.full && r.start == r.end
}

// IsFull returns true if the next push evicts an element.
func (r *Ring[T]) IsFull() bool {
	return r.full
}

// Clear removes all the elements without invoking hooks.
func (r *Ring[T]) Clear() {
	clear(r.elements)
	r.start = 0
	r.end = 0
	r.full = false
}

func (r *Ring[T]) next(i int) int {
	i++
	if i == len(r.elements) {
		return 0
	}

	return i
}

func (r *Ring[T]) invoke(pos *hooking.HookPos, item T) {
	if r.NumHooks() == 0 {
		return
	}

	r.InvokeHook(hooking.HookCtx{
		Domain: r,
		Pos:    pos,
		Item:   item,
	})
}
