package tracing

import (
	"sort"
	"sync"

	"github.com/sarchlab/lagbuffer/hooking"
)

// CountTracer counts the records of every position, per buffer, and sums up
// the number of replayed events.
type CountTracer struct {
	lock     sync.Mutex
	counts   map[string]map[string]uint64
	replayed map[string]uint64
}

// NewCountTracer creates a new CountTracer.
func NewCountTracer() *CountTracer {
	return &CountTracer{
		counts:   make(map[string]map[string]uint64),
		replayed: make(map[string]uint64),
	}
}

// Trace counts the record.
func (t *CountTracer) Trace(rec Record) {
	t.lock.Lock()
	defer t.lock.Unlock()

	perPos, ok := t.counts[rec.Buffer]
	if !ok {
		perPos = make(map[string]uint64)
		t.counts[rec.Buffer] = perPos
	}

	perPos[rec.Pos.Name]++
	t.replayed[rec.Buffer] += uint64(rec.Replayed)
}

// Count returns how many records of a position were collected from a buffer.
func (t *CountTracer) Count(buffer string, pos *hooking.HookPos) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.counts[buffer][pos.Name]
}

// Replayed returns the total number of events that a buffer replayed.
func (t *CountTracer) Replayed(buffer string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.replayed[buffer]
}

// Counts returns a copy of the counters of a buffer, keyed by position name.
func (t *CountTracer) Counts(buffer string) map[string]uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	out := make(map[string]uint64, len(t.counts[buffer]))
	for pos, n := range t.counts[buffer] {
		out[pos] = n
	}

	return out
}

// Buffers returns the names of all buffers traced so far, sorted.
func (t *CountTracer) Buffers() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	names := make([]string, 0, len(t.counts))
	for name := range t.counts {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
