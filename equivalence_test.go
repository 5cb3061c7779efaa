package lagbuffer

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/lagbuffer/examples/liststate"
)

var _ = Describe("Strategies", func() {
	const (
		capacity = 16
		jitter   = 4
		count    = 400
	)

	type factory func() LagBuffer[list, liststate.Event]

	strategies := map[string]factory{
		"windowed": func() LagBuffer[list, liststate.Event] {
			return MakeWindowedBuilder[list, liststate.Event, uint64]().
				WithCapacity(capacity).
				Build("Windowed", liststate.New())
		},
		"double buffered": func() LagBuffer[list, liststate.Event] {
			return MakeDoubleBufferedBuilder[list, liststate.Event, uint64]().
				WithCapacity(capacity).
				Build("DoubleBuffered", liststate.New())
		},
		"manual": func() LagBuffer[list, liststate.Event] {
			return NewManual[list, liststate.Event, uint64]("Manual", liststate.New())
		},
	}

	for name, build := range strategies {
		Context(name, func() {
			DescribeTable("should match the naive replay under bounded jitter",
				func(seed int64) {
					rng := rand.New(rand.NewSource(seed))
					events := liststate.Stream(rng, count, jitter, 3)

					b := build()
					ref := NewNaive[list, liststate.Event, uint64]("Naive", liststate.New())

					for i, evt := range events {
						b.Update(evt)
						ref.Update(evt)

						if m, ok := b.(*Manual[list, liststate.Event, uint64]); ok && i%10 == 9 {
							m.Compact()
						}

						if i%37 == 0 {
							Expect(b.State().Data).To(Equal(ref.State().Data))
						}
					}

					Expect(b.State().Data).To(Equal(ref.State().Data))
				},
				Entry("seed 1", int64(1)),
				Entry("seed 2", int64(2)),
				Entry("seed 42", int64(42)),
				Entry("seed 2024", int64(2024)),
			)

			It("should never reorder an in-order stream", func() {
				b := build()
				rec := &posRecorder{}
				b.AcceptHook(rec)

				for _, evt := range liststate.Stream(rand.New(rand.NewSource(5)), 100, 0, 4) {
					b.Update(evt)
				}

				Expect(rec.count(HookPosInOrder)).To(Equal(100))
				Expect(rec.count(HookPosOutOfOrder)).To(Equal(0))
			})

			It("should expose the initial state without events", func() {
				b := build()

				Expect(b.State().Data).To(BeEmpty())
			})

			It("should reconcile the late replace", func() {
				b := build()
				submitSimple(b)

				Expect(b.State().Data).To(Equal([]int{10, 100, 30}))
				Expect(b.State().Data).To(Equal([]int{10, 100, 30}))
			})
		})
	}

	It("should keep the double-buffered active log within capacity", func() {
		d := MakeDoubleBufferedBuilder[list, liststate.Event, uint64]().
			WithCapacity(capacity).
			Build("DoubleBuffered", liststate.New())

		for _, evt := range liststate.Stream(rand.New(rand.NewSource(9)), count, jitter, 3) {
			d.Update(evt)
			Expect(d.Len()).To(BeNumerically("<=", capacity))
			Expect(d.SecondaryLen()).To(BeNumerically("<=", capacity))
		}

		Expect(d.Swaps()).NotTo(BeZero())
	})
})
