package tracing

import (
	"sync"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/lagbuffer/datarecording"
)

// TraceTableName is the table that DBTracers write into.
const TraceTableName = "lagbuffer_trace"

type traceTableEntry struct {
	Seq      uint64
	Buffer   string
	Pos      string
	OrderKey string
	Replayed int
	Dropped  int
	Carried  int
}

// DBTracer stores records into a data recorder.
type DBTracer struct {
	mu      sync.Mutex
	backend datarecording.DataRecorder
	seq     uint64
	done    bool
}

// NewDBTracer creates a new DBTracer. The records are flushed when the program
// exits through atexit, or earlier through Terminate.
func NewDBTracer(dataRecorder datarecording.DataRecorder) *DBTracer {
	dataRecorder.CreateTable(TraceTableName, traceTableEntry{})

	t := &DBTracer{backend: dataRecorder}

	atexit.Register(func() {
		t.Terminate()
	})

	return t
}

// Trace buffers the record for writing.
func (t *DBTracer) Trace(rec Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return
	}

	t.seq++
	t.backend.InsertData(TraceTableName, traceTableEntry{
		Seq:      t.seq,
		Buffer:   rec.Buffer,
		Pos:      rec.Pos.Name,
		OrderKey: rec.Key,
		Replayed: rec.Replayed,
		Dropped:  rec.Dropped,
		Carried:  rec.Carried,
	})
}

// Terminate flushes the records. Records traced afterwards are ignored.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return
	}

	t.done = true
	t.backend.Flush()
}
