package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/lagbuffer/hooking"
	"github.com/sarchlab/lagbuffer/naming"
)

// NamedHookable represents something that has a name and accepts hooks.
type NamedHookable interface {
	naming.Named
	hooking.Hookable
}

// CollectTrace lets the tracer collect records from a domain. Attaching the
// same tracer to a domain twice panics.
func CollectTrace(domain NamedHookable, tracer Tracer) {
	for _, hook := range domain.Hooks() {
		h, ok := hook.(*traceHook)
		if ok && h.t == tracer {
			panic(fmt.Sprintf(
				"domain %s already has tracer %s",
				domain.Name(), reflect.TypeOf(tracer)))
		}
	}

	h := traceHook{t: tracer, name: domain.Name()}
	domain.AcceptHook(&h)
}

// A traceHook turns hook invocations into records.
type traceHook struct {
	t    Tracer
	name string
}

// Func forwards the hook context to the tracer.
func (h *traceHook) Func(ctx hooking.HookCtx) {
	h.t.Trace(recordFromCtx(h.name, ctx))
}
