package tracing

import (
	"log"
)

// LogTracer writes every record as a line of a logger.
type LogTracer struct {
	*log.Logger
}

// NewLogTracer creates a LogTracer that writes to the given logger.
func NewLogTracer(logger *log.Logger) *LogTracer {
	return &LogTracer{Logger: logger}
}

// Trace logs the record.
func (t *LogTracer) Trace(rec Record) {
	switch {
	case rec.Replayed > 0:
		t.Printf("%s, %s, key=%s, replayed=%d",
			rec.Buffer, rec.Pos.Name, rec.Key, rec.Replayed)
	case rec.Dropped > 0 || rec.Carried > 0:
		t.Printf("%s, %s, dropped=%d, carried=%d",
			rec.Buffer, rec.Pos.Name, rec.Dropped, rec.Carried)
	case rec.Key != "":
		t.Printf("%s, %s, key=%s", rec.Buffer, rec.Pos.Name, rec.Key)
	default:
		t.Printf("%s, %s", rec.Buffer, rec.Pos.Name)
	}
}
