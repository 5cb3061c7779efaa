package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/lagbuffer"
	"github.com/sarchlab/lagbuffer/hooking"
)

// A Record describes one thing that happened inside a reconciler.
type Record struct {
	// Buffer is the name of the reconciler.
	Buffer string

	// Pos is where the record was taken.
	Pos *hooking.HookPos

	// Key is the order key of the event involved, formatted as text. It is
	// empty for records that do not involve an event.
	Key string

	// Replayed is the number of events replayed by an out-of-order update.
	Replayed int

	// Dropped is the number of entries dropped by a swap or a prune.
	Dropped int

	// Carried is the number of events kept by a swap.
	Carried int
}

// A Tracer collects records from reconcilers.
type Tracer interface {
	Trace(rec Record)
}

func recordFromCtx(name string, ctx hooking.HookCtx) Record {
	rec := Record{
		Buffer: name,
		Pos:    ctx.Pos,
		Key:    orderKeyOf(ctx.Item),
	}

	switch detail := ctx.Detail.(type) {
	case lagbuffer.ReorderDetail:
		rec.Replayed = detail.Replayed
	case lagbuffer.SwapDetail:
		rec.Dropped = detail.Dropped
		rec.Carried = detail.Carried
	case lagbuffer.PruneDetail:
		rec.Dropped = detail.Dropped
	}

	return rec
}

// orderKeyOf formats the order key of an event. Events are generic over the
// key type, so the key is looked up through reflection.
func orderKeyOf(item any) string {
	if item == nil {
		return ""
	}

	method := reflect.ValueOf(item).MethodByName("OrderKey")
	if !method.IsValid() || method.Type().NumIn() != 0 || method.Type().NumOut() != 1 {
		return fmt.Sprint(item)
	}

	return fmt.Sprint(method.Call(nil)[0].Interface())
}
