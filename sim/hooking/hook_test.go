package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type countingHook struct {
	count int
	last  HookCtx
}

func (h *countingHook) Func(ctx HookCtx) {
	h.count++
	h.last = ctx
}

var _ = Describe("HookableBase", func() {
	var (
		base *HookableBase
		pos  *HookPos
	)

	BeforeEach(func() {
		base = &HookableBase{}
		pos = &HookPos{Name: "Test"}
	})

	It("should invoke every hook in registration order", func() {
		var order []string
		base.AcceptHook(HookFunc(func(HookCtx) { order = append(order, "a") }))
		base.AcceptHook(HookFunc(func(HookCtx) { order = append(order, "b") }))

		base.InvokeHook(HookCtx{Pos: pos})

		Expect(base.NumHooks()).To(Equal(2))
		Expect(order).To(Equal([]string{"a", "b"}))
	})

	It("should pass the context to the hook", func() {
		hook := &countingHook{}
		base.AcceptHook(hook)

		base.InvokeHook(HookCtx{Pos: pos, Item: 42})

		Expect(hook.count).To(Equal(1))
		Expect(hook.last.Pos).To(BeIdenticalTo(pos))
		Expect(hook.last.Item).To(Equal(42))
	})

	It("should panic on duplicated hooks", func() {
		hook := &countingHook{}
		base.AcceptHook(hook)

		Expect(func() { base.AcceptHook(hook) }).To(Panic())
		Expect(base.Hooks()).To(HaveLen(1))
	})
})
