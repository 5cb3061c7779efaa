package tracing

import (
	"bytes"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/lagbuffer"
	"github.com/sarchlab/lagbuffer/examples/liststate"
)

type list = *liststate.State

func newWindowed(name string) *lagbuffer.Windowed[list, liststate.Event, uint64] {
	return lagbuffer.MakeWindowedBuilder[list, liststate.Event, uint64]().
		WithCapacity(2).
		Build(name, liststate.New())
}

func insert(id uint64) liststate.Event {
	return liststate.Event{ID: id, Value: int(id), Action: liststate.Insert}
}

var _ = Describe("CollectTrace", func() {
	It("should panic when the same tracer is attached twice", func() {
		b := newWindowed("Buffer")
		t := NewCountTracer()

		CollectTrace(b, t)

		Expect(func() { CollectTrace(b, t) }).To(Panic())
	})

	It("should allow different tracers", func() {
		b := newWindowed("Buffer")

		CollectTrace(b, NewCountTracer())
		CollectTrace(b, NewCountTracer())

		Expect(b.NumHooks()).To(Equal(2))
	})
})

var _ = Describe("CountTracer", func() {
	It("should count per buffer and position", func() {
		a := newWindowed("A")
		b := newWindowed("B")
		t := NewCountTracer()
		CollectTrace(a, t)
		CollectTrace(b, t)

		a.Update(insert(2))
		a.Update(insert(1))
		b.Update(insert(1))
		b.Update(insert(2))
		b.Update(insert(3))

		Expect(t.Buffers()).To(Equal([]string{"A", "B"}))
		Expect(t.Count("A", lagbuffer.HookPosInOrder)).To(Equal(uint64(1)))
		Expect(t.Count("A", lagbuffer.HookPosOutOfOrder)).To(Equal(uint64(1)))
		Expect(t.Replayed("A")).To(Equal(uint64(2)))
		Expect(t.Count("B", lagbuffer.HookPosInOrder)).To(Equal(uint64(3)))
		Expect(t.Count("B", lagbuffer.HookPosFold)).To(Equal(uint64(1)))
		Expect(t.Counts("B")).To(HaveKeyWithValue("Fold", uint64(1)))
	})
})

var _ = Describe("LogTracer", func() {
	It("should log reorders with their keys", func() {
		buf := new(bytes.Buffer)
		b := newWindowed("Buffer")
		CollectTrace(b, NewLogTracer(log.New(buf, "", 0)))

		b.Update(insert(2))
		b.Update(insert(1))

		Expect(buf.String()).To(Equal(
			"Buffer, In-Order Update, key=2\n" +
				"Buffer, Out-of-Order Update, key=1, replayed=2\n"))
	})

	It("should log swaps", func() {
		buf := new(bytes.Buffer)
		t := NewLogTracer(log.New(buf, "", 0))

		t.Trace(Record{Buffer: "D", Pos: lagbuffer.HookPosSwap, Dropped: 3, Carried: 1})
		t.Trace(Record{Buffer: "M", Pos: lagbuffer.HookPosCompact})

		Expect(buf.String()).To(Equal(
			"D, Swap, dropped=3, carried=1\nM, Compact\n"))
	})
})

var _ = Describe("DBTracer", func() {
	var (
		mockCtrl *gomock.Controller
		recorder *MockDataRecorder
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		recorder = NewMockDataRecorder(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should write records in order and flush once", func() {
		recorder.EXPECT().CreateTable(TraceTableName, traceTableEntry{})
		t := NewDBTracer(recorder)

		b := newWindowed("Buffer")
		CollectTrace(b, t)

		gomock.InOrder(
			recorder.EXPECT().InsertData(TraceTableName, traceTableEntry{
				Seq: 1, Buffer: "Buffer", Pos: "In-Order Update", OrderKey: "3",
			}),
			recorder.EXPECT().InsertData(TraceTableName, traceTableEntry{
				Seq: 2, Buffer: "Buffer", Pos: "Out-of-Order Update", OrderKey: "1",
				Replayed: 2,
			}),
			recorder.EXPECT().Flush(),
		)

		b.Update(insert(3))
		b.Update(insert(1))

		t.Terminate()
		t.Terminate()
		b.Update(insert(4))
	})
})
