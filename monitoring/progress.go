package monitoring

import (
	"fmt"
	"sync"
	"time"
)

// A ProgressBar follows a replay through a known number of events. An event
// is pending from its submission until the reconciler has taken it in.
type ProgressBar struct {
	lock       sync.Mutex
	id         string
	name       string
	start      time.Time
	total      uint64
	pending    uint64
	reconciled uint64
}

type progressRsp struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Elapsed    float64   `json:"elapsed_seconds"`
	Total      uint64    `json:"total"`
	Pending    uint64    `json:"pending"`
	Reconciled uint64    `json:"reconciled"`
}

// Submit marks events as handed to the reconciler.
func (b *ProgressBar) Submit(n uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.pending += n
}

// Reconcile marks pending events as taken in. It panics if fewer events are
// pending.
func (b *ProgressBar) Reconcile(n uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if n > b.pending {
		panic(fmt.Sprintf("progress bar %s: reconciling %d events, %d pending",
			b.name, n, b.pending))
	}

	b.pending -= n
	b.reconciled += n
}

// Reconciled returns how many events are taken in.
func (b *ProgressBar) Reconciled() uint64 {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.reconciled
}

// Done tells if every event is reconciled.
func (b *ProgressBar) Done() bool {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.reconciled >= b.total
}

func (b *ProgressBar) status(now time.Time) progressRsp {
	b.lock.Lock()
	defer b.lock.Unlock()

	return progressRsp{
		ID:         b.id,
		Name:       b.name,
		StartTime:  b.start,
		Elapsed:    now.Sub(b.start).Seconds(),
		Total:      b.total,
		Pending:    b.pending,
		Reconciled: b.reconciled,
	}
}
