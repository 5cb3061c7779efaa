// Package lagbuffer reconciles a state with events that arrive out of order.
//
// Every event carries an order key. A reconciler keeps its state equal to the
// result of applying all submitted events, in ascending key order, to the
// initial state, no matter in which order the events were submitted. Events
// with equal keys keep their submission order.
//
// Three strategies trade memory for CPU differently:
//
//   - Windowed keeps the most recent events in a ring and a snapshot of the
//     state right before the ring's oldest event.
//   - DoubleBuffered keeps two event logs and starts filling the second one
//     half-way through the first, so that swapping logs never replays the full
//     history.
//   - Manual keeps every event with snapshots the caller inserts on demand.
//
// Naive sorts and replays the whole history and serves as the reference.
//
// Reconcilers are not safe for concurrent use.
package lagbuffer

import (
	"cmp"
	"sort"

	"github.com/sarchlab/lagbuffer/hooking"
	"github.com/sarchlab/lagbuffer/naming"
)

// DefaultCapacity is the capacity used by builders when none is given.
const DefaultCapacity = 64

// An Event is an immutable change with a totally ordered key.
type Event[K cmp.Ordered] interface {
	OrderKey() K
}

// A State can be cloned and changed by events. Apply changes the receiver in
// place and must only depend on the receiver and the event, so concrete states
// are usually pointer types.
type State[S any, E any] interface {
	Clone() S
	Apply(evt E)
}

// A LagBuffer accepts events in any order and exposes the reconciled state.
type LagBuffer[S any, E any] interface {
	naming.Named
	hooking.Hookable

	// Update submits an event.
	Update(evt E)

	// State returns the reconciled state. Depending on the strategy, the
	// returned value may be shared with the buffer and must not be changed.
	State() S
}

// upperBound returns the index of the first event whose key is greater than
// key, so that inserting there keeps equal keys in submission order.
func upperBound[E Event[K], K cmp.Ordered](events []E, key K) int {
	return sort.Search(len(events), func(i int) bool {
		return events[i].OrderKey() > key
	})
}
