package lagbuffer

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/lagbuffer/examples/liststate"
	"github.com/sarchlab/lagbuffer/hooking"
)

var _ = Describe("Windowed", func() {
	var (
		mockCtrl *gomock.Controller
		w        *Windowed[list, liststate.Event, uint64]
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		w = MakeWindowedBuilder[list, liststate.Event, uint64]().
			WithCapacity(4).
			Build("Windowed", liststate.New())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should panic on zero capacity", func() {
		Expect(func() {
			MakeWindowedBuilder[list, liststate.Event, uint64]().
				WithCapacity(0).
				Build("Windowed", liststate.New())
		}).To(Panic())
	})

	It("should use the default capacity", func() {
		d := MakeWindowedBuilder[list, liststate.Event, uint64]().
			Build("Windowed", liststate.New())

		Expect(d.Capacity()).To(Equal(DefaultCapacity))
	})

	It("should start from a copy of the initial state", func() {
		initial := &liststate.State{Data: []int{1}}
		w = MakeWindowedBuilder[list, liststate.Event, uint64]().
			Build("Windowed", initial)
		initial.Data[0] = 2

		Expect(w.State().Data).To(Equal([]int{1}))
		Expect(w.Tail().Data).To(Equal([]int{1}))
		Expect(w.Len()).To(Equal(0))
	})

	It("should reconcile a late replace", func() {
		submitSimple(w)

		Expect(w.State().Data).To(Equal([]int{10, 100, 30}))
		Expect(ids(w.Events())).To(Equal([]uint64{1, 2, 3, 4}))
	})

	It("should fold evicted events into the tail", func() {
		for i := uint64(1); i <= 6; i++ {
			w.Update(insert(i, int(i)*10))
		}

		Expect(w.Len()).To(Equal(4))
		Expect(w.Tail().Data).To(Equal([]int{10, 20}))
		Expect(w.State().Data).To(Equal([]int{10, 20, 30, 40, 50, 60}))
		Expect(ids(w.Events())).To(Equal([]uint64{3, 4, 5, 6}))
	})

	It("should keep the merged window after reordering a full ring", func() {
		for _, id := range []uint64{1, 2, 3, 5, 6} {
			w.Update(insert(id, int(id)*10))
		}

		w.Update(insert(4, 40))

		Expect(w.State().Data).To(Equal([]int{10, 20, 30, 40, 50, 60}))
		Expect(ids(w.Events())).To(Equal([]uint64{3, 4, 5, 6}))
		Expect(w.Tail().Data).To(Equal([]int{10, 20}))
	})

	It("should apply events older than the window at its start", func() {
		for i := uint64(2); i <= 6; i++ {
			w.Update(insert(i, int(i)*10))
		}

		w.Update(insert(1, 10))

		Expect(w.State().Data).To(Equal([]int{20, 10, 30, 40, 50, 60}))
		Expect(w.Tail().Data).To(Equal([]int{20, 10}))
	})

	It("should keep submission order for equal keys", func() {
		w.Update(insert(1, 10))
		w.Update(insert(2, 20))
		w.Update(replace(1, 10, 11))

		Expect(w.State().Data).To(Equal([]int{11, 20}))
	})

	It("should return the same state on repeated reads", func() {
		submitSimple(w)

		Expect(w.State()).To(BeIdenticalTo(w.State()))
		Expect(w.Snapshot()).NotTo(BeIdenticalTo(w.State()))
		Expect(w.Snapshot().Data).To(Equal(w.State().Data))
	})

	It("should invoke hooks", func() {
		hook := NewMockHook(mockCtrl)
		w.AcceptHook(hook)

		first := insert(2, 20)
		late := insert(1, 10)

		gomock.InOrder(
			hook.EXPECT().Func(hooking.HookCtx{
				Domain: w,
				Pos:    HookPosInOrder,
				Item:   first,
			}),
			hook.EXPECT().Func(hooking.HookCtx{
				Domain: w,
				Pos:    HookPosOutOfOrder,
				Item:   late,
				Detail: ReorderDetail{Replayed: 2},
			}),
		)

		w.Update(first)
		w.Update(late)
	})

	It("should report folds", func() {
		rec := &posRecorder{}
		w.AcceptHook(rec)

		for i := uint64(1); i <= 5; i++ {
			w.Update(insert(i, 0))
		}

		Expect(rec.count(HookPosInOrder)).To(Equal(5))
		Expect(rec.count(HookPosFold)).To(Equal(1))
		Expect(rec.count(HookPosOutOfOrder)).To(Equal(0))
	})
})
