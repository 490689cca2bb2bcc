package cache

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Compulsory tracker", func() {
	It("should remember marked blocks", func() {
		t := newCompulsoryTracker()

		Expect(t.Contains(0xffff_ffff)).To(BeFalse())

		t.Mark(0xffff_ffff)
		t.Mark(0xffff_ffff)
		t.Mark(3)

		Expect(t.Contains(0xffff_ffff)).To(BeTrue())
		Expect(t.Contains(3)).To(BeTrue())
		Expect(t.Contains(4)).To(BeFalse())
		Expect(t.Len()).To(Equal(2))
	})
})
