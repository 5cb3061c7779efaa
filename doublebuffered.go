package lagbuffer

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/sarchlab/lagbuffer/hooking"
	"github.com/sarchlab/lagbuffer/naming"
)

// DoubleBuffered keeps two event logs, each with the state it starts from.
//
// Events go to the active log and are applied to the current state. Once the
// active log holds more than half of the capacity, new events are mirrored
// into the secondary log. When the active log exceeds the capacity, it is
// retired and the secondary log, already holding the most recent half, takes
// over. An out-of-order event therefore never replays more than about
// capacity events.
//
// The secondary log is always a suffix of the active log, and its base is the
// state produced by the active log's prefix.
//
// An event older than everything the active log retains is applied right
// after the active base, since the events before it are no longer kept.
type DoubleBuffered[S State[S, E], E Event[K], K cmp.Ordered] struct {
	naming.NamedBase
	hooking.HookableBase

	capacity int
	current  S
	active   int
	bases    [2]S
	logs     [2][]E
	swaps    uint64
}

// DoubleBufferedBuilder builds DoubleBuffered reconcilers.
type DoubleBufferedBuilder[S State[S, E], E Event[K], K cmp.Ordered] struct {
	capacity int
}

// MakeDoubleBufferedBuilder creates a DoubleBufferedBuilder with default
// parameters.
func MakeDoubleBufferedBuilder[
	S State[S, E], E Event[K], K cmp.Ordered,
]() DoubleBufferedBuilder[S, E, K] {
	return DoubleBufferedBuilder[S, E, K]{capacity: DefaultCapacity}
}

// WithCapacity sets the maximum length of the active log.
func (b DoubleBufferedBuilder[S, E, K]) WithCapacity(
	capacity int,
) DoubleBufferedBuilder[S, E, K] {
	b.capacity = capacity
	return b
}

// Build creates a DoubleBuffered reconciler starting from a copy of initial.
// It panics if the capacity is not positive.
func (b DoubleBufferedBuilder[S, E, K]) Build(
	name string,
	initial S,
) *DoubleBuffered[S, E, K] {
	if b.capacity <= 0 {
		panic(fmt.Sprintf("double-buffered %s: capacity must be positive, got %d",
			name, b.capacity))
	}

	return &DoubleBuffered[S, E, K]{
		NamedBase: naming.MakeNamedBase(name),
		capacity:  b.capacity,
		current:   initial.Clone(),
		bases:     [2]S{initial.Clone(), initial.Clone()},
		logs:      [2][]E{make([]E, 0, b.capacity+1), make([]E, 0, b.capacity+1)},
	}
}

// Update submits an event.
func (d *DoubleBuffered[S, E, K]) Update(evt E) {
	active := d.logs[d.active]
	if len(active) > 0 && evt.OrderKey() < active[len(active)-1].OrderKey() {
		d.reorder(evt)
	} else {
		d.append(evt)
	}

	if len(d.logs[d.active]) > d.capacity {
		d.swap()
	}
}

// mirrorThreshold is the active log length after which events are mirrored.
// It is at least one so that the secondary log never outgrows the capacity.
func (d *DoubleBuffered[S, E, K]) mirrorThreshold() int {
	return max(d.capacity/2, 1)
}

func (d *DoubleBuffered[S, E, K]) append(evt E) {
	a, s := d.active, 1-d.active

	d.logs[a] = append(d.logs[a], evt)

	if len(d.logs[a]) > d.mirrorThreshold() {
		if len(d.logs[s]) == 0 {
			d.bases[s] = d.current.Clone()
		}

		d.logs[s] = append(d.logs[s], evt)
	}

	d.current.Apply(evt)

	if d.NumHooks() > 0 {
		d.InvokeHook(hooking.HookCtx{Domain: d, Pos: HookPosInOrder, Item: evt})
	}
}

func (d *DoubleBuffered[S, E, K]) reorder(evt E) {
	a, s := d.active, 1-d.active

	boundary := len(d.logs[a]) - len(d.logs[s])
	pos := upperBound(d.logs[a], evt.OrderKey())
	d.logs[a] = slices.Insert(d.logs[a], pos, evt)

	rebase := false
	if len(d.logs[s]) > 0 {
		if pos >= boundary {
			d.logs[s] = slices.Insert(d.logs[s], pos-boundary, evt)
		} else {
			boundary++
			rebase = true
		}
	}

	d.current = d.bases[a].Clone()
	for i, queued := range d.logs[a] {
		if rebase && i == boundary {
			d.bases[s] = d.current.Clone()
		}

		d.current.Apply(queued)
	}

	if d.NumHooks() > 0 {
		d.InvokeHook(hooking.HookCtx{
			Domain: d,
			Pos:    HookPosOutOfOrder,
			Item:   evt,
			Detail: ReorderDetail{Replayed: len(d.logs[a])},
		})
	}
}

// swap retires the active log. The current state becomes the base of the
// retired log, which starts over empty as the secondary log.
//
// The promoted log must start from the state right before its first event.
// An empty secondary log has not captured that state yet, since mirroring
// starts only on in-order events, so it starts from the current state.
func (d *DoubleBuffered[S, E, K]) swap() {
	a, s := d.active, 1-d.active
	dropped := len(d.logs[a])

	if len(d.logs[s]) == 0 {
		d.bases[s] = d.current.Clone()
	}

	d.bases[a] = d.current.Clone()
	clear(d.logs[a])
	d.logs[a] = d.logs[a][:0]
	d.active = s
	d.swaps++

	if d.NumHooks() > 0 {
		d.InvokeHook(hooking.HookCtx{
			Domain: d,
			Pos:    HookPosSwap,
			Detail: SwapDetail{Dropped: dropped, Carried: len(d.logs[d.active])},
		})
	}
}

// State returns the current state. It is shared with the reconciler and must
// not be changed.
func (d *DoubleBuffered[S, E, K]) State() S {
	return d.current
}

// Snapshot returns a copy of the current state.
func (d *DoubleBuffered[S, E, K]) Snapshot() S {
	return d.current.Clone()
}

// Bases returns copies of the active and the secondary base, in this order.
func (d *DoubleBuffered[S, E, K]) Bases() (active, secondary S) {
	return d.bases[d.active].Clone(), d.bases[1-d.active].Clone()
}

// Logs returns copies of the active and the secondary log, in this order.
func (d *DoubleBuffered[S, E, K]) Logs() (active, secondary []E) {
	return slices.Clone(d.logs[d.active]), slices.Clone(d.logs[1-d.active])
}

// Len returns the length of the active log, which bounds the work of an
// out-of-order update.
func (d *DoubleBuffered[S, E, K]) Len() int {
	return len(d.logs[d.active])
}

// SecondaryLen returns the length of the secondary log.
func (d *DoubleBuffered[S, E, K]) SecondaryLen() int {
	return len(d.logs[1-d.active])
}

// Capacity returns the maximum length of the active log.
func (d *DoubleBuffered[S, E, K]) Capacity() int {
	return d.capacity
}

// Swaps returns how many times the logs have been swapped.
func (d *DoubleBuffered[S, E, K]) Swaps() uint64 {
	return d.swaps
}
