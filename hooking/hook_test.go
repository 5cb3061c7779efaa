package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("HookableBase", func() {
	var (
		base *HookableBase
		pos  *HookPos
	)

	BeforeEach(func() {
		base = &HookableBase{}
		pos = &HookPos{Name: "Test"}
	})

	It("should invoke hooks in registration order", func() {
		var order []string
		first := NewHookFunc(func(ctx HookCtx) {
			order = append(order, "first:"+ctx.Pos.Name)
		})
		second := NewHookFunc(func(ctx HookCtx) {
			order = append(order, "second:"+ctx.Item.(string))
		})

		base.AcceptHook(first)
		base.AcceptHook(second)
		base.InvokeHook(HookCtx{Pos: pos, Item: "x"})

		Expect(base.NumHooks()).To(Equal(2))
		Expect(base.Hooks()).To(HaveLen(2))
		Expect(order).To(Equal([]string{"first:Test", "second:x"}))
	})

	It("should panic on duplicated hooks", func() {
		h := NewHookFunc(func(HookCtx) {})
		base.AcceptHook(h)

		Expect(func() { base.AcceptHook(h) }).To(Panic())
	})

	It("should do nothing without hooks", func() {
		Expect(func() { base.InvokeHook(HookCtx{Pos: pos}) }).NotTo(Panic())
		Expect(base.NumHooks()).To(Equal(0))
	})
})
