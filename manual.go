package lagbuffer

import (
	"cmp"

	"github.com/sarchlab/lagbuffer/hooking"
	"github.com/sarchlab/lagbuffer/naming"
)

type entry[S any, E any] struct {
	isSnapshot bool
	snapshot   S
	event      E
}

// Manual keeps a log of events and snapshots. It never drops anything by
// itself: the caller decides when to take a snapshot with Compact and when to
// forget the history before it with Prune.
//
// The log always starts with a snapshot, and every snapshot equals the result
// of applying the events before it.
type Manual[S State[S, E], E Event[K], K cmp.Ordered] struct {
	naming.NamedBase
	hooking.HookableBase

	entries   []entry[S, E]
	latest    int
	events    int
	snapshots int
}

// NewManual creates a Manual reconciler whose log starts with a copy of
// initial.
func NewManual[S State[S, E], E Event[K], K cmp.Ordered](
	name string,
	initial S,
) *Manual[S, E, K] {
	return &Manual[S, E, K]{
		NamedBase: naming.MakeNamedBase(name),
		entries: []entry[S, E]{
			{isSnapshot: true, snapshot: initial.Clone()},
		},
		snapshots: 1,
	}
}

// Update submits an event.
func (m *Manual[S, E, K]) Update(evt E) {
	last, ok := m.lastEvent()
	if !ok || evt.OrderKey() >= last.OrderKey() {
		m.entries = append(m.entries, entry[S, E]{event: evt})
		m.events++

		if m.NumHooks() > 0 {
			m.InvokeHook(hooking.HookCtx{Domain: m, Pos: HookPosInOrder, Item: evt})
		}

		return
	}

	m.insert(evt)
}

func (m *Manual[S, E, K]) lastEvent() (evt E, ok bool) {
	for i := len(m.entries) - 1; i > 0; i-- {
		if !m.entries[i].isSnapshot {
			return m.entries[i].event, true
		}
	}

	return evt, false
}

// insert places evt after every event with a key not greater than its own and
// rebuilds the snapshots that follow it.
func (m *Manual[S, E, K]) insert(evt E) {
	pos := len(m.entries)
	for i := len(m.entries) - 1; i > 0; i-- {
		if m.entries[i].isSnapshot {
			continue
		}

		if m.entries[i].event.OrderKey() <= evt.OrderKey() {
			break
		}

		pos = i
	}

	m.entries = append(m.entries, entry[S, E]{})
	copy(m.entries[pos+1:], m.entries[pos:])
	m.entries[pos] = entry[S, E]{event: evt}
	m.events++

	if pos <= m.latest {
		m.latest++
	}

	replayed := m.rebuildFrom(pos)

	if m.NumHooks() > 0 {
		m.InvokeHook(hooking.HookCtx{
			Domain: m,
			Pos:    HookPosOutOfOrder,
			Item:   evt,
			Detail: ReorderDetail{Replayed: replayed},
		})
	}
}

// rebuildFrom recomputes the snapshots after index pos, starting from the
// nearest snapshot before it. It returns the number of events applied.
func (m *Manual[S, E, K]) rebuildFrom(pos int) int {
	if pos > m.latest {
		return 0
	}

	start := pos - 1
	for !m.entries[start].isSnapshot {
		start--
	}

	replayed := 0
	state := m.entries[start].snapshot.Clone()
	for i := start + 1; i <= m.latest; i++ {
		if m.entries[i].isSnapshot {
			m.entries[i].snapshot = state.Clone()
			continue
		}

		state.Apply(m.entries[i].event)
		replayed++
	}

	return replayed
}

// State returns a fresh value built from the latest snapshot and the events
// after it.
func (m *Manual[S, E, K]) State() S {
	if len(m.entries) == 0 || !m.entries[m.latest].isSnapshot {
		panic("manual log " + m.Name() + " lost its snapshot")
	}

	state := m.entries[m.latest].snapshot.Clone()
	for _, e := range m.entries[m.latest+1:] {
		state.Apply(e.event)
	}

	return state
}

// Compact appends a snapshot of the current state, so that later reads only
// replay the events submitted after it. Compacting a log that already ends
// with a snapshot does nothing.
func (m *Manual[S, E, K]) Compact() {
	if m.entries[len(m.entries)-1].isSnapshot {
		return
	}

	m.entries = append(m.entries, entry[S, E]{
		isSnapshot: true,
		snapshot:   m.State(),
	})
	m.latest = len(m.entries) - 1
	m.snapshots++

	if m.NumHooks() > 0 {
		m.InvokeHook(hooking.HookCtx{Domain: m, Pos: HookPosCompact})
	}
}

// Prune drops every entry before the latest snapshot.
func (m *Manual[S, E, K]) Prune() {
	if m.latest == 0 {
		return
	}

	for _, e := range m.entries[:m.latest] {
		if e.isSnapshot {
			m.snapshots--
		} else {
			m.events--
		}
	}

	dropped := m.latest
	m.entries = append(m.entries[:0], m.entries[m.latest:]...)
	clear(m.entries[len(m.entries):cap(m.entries)])
	m.latest = 0

	if m.NumHooks() > 0 {
		m.InvokeHook(hooking.HookCtx{
			Domain: m,
			Pos:    HookPosPrune,
			Detail: PruneDetail{Dropped: dropped},
		})
	}
}

// Len returns the number of entries in the log, counting snapshots.
func (m *Manual[S, E, K]) Len() int {
	return len(m.entries)
}

// EventCount returns the number of events in the log.
func (m *Manual[S, E, K]) EventCount() int {
	return m.events
}

// SnapshotCount returns the number of snapshots in the log.
func (m *Manual[S, E, K]) SnapshotCount() int {
	return m.snapshots
}

// PendingEvents returns the number of events after the latest snapshot.
func (m *Manual[S, E, K]) PendingEvents() int {
	return len(m.entries) - 1 - m.latest
}
