package builtins_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cairo-vm-go/builtins"
	"github.com/sarchlab/cairo-vm-go/field"
	"github.com/sarchlab/cairo-vm-go/memory"
)

var _ = Describe("BitwiseRunner", func() {
	var (
		sm     *memory.SegmentManager
		mem    *memory.Memory
		runner *builtins.BitwiseRunner
		first  memory.Relocatable
	)

	BeforeEach(func() {
		sm = memory.NewSegmentManager()
		mem = sm.Memory
		runner = builtins.NewBitwiseRunner(true, 8, 251)
		runner.InitializeSegments(sm)
		runner.AddValidationRule(mem)
		mem.SetDeducer(runner.Base().Segment, builtins.AsDeducer(runner))
		first = runner.Base()

		Expect(mem.Insert(first, memory.FromFelt(field.FromUint64(0b1100)))).To(Succeed())
		Expect(mem.Insert(first.Add(1), memory.FromFelt(field.FromUint64(0b1010)))).To(Succeed())
	})

	It("deduces x&y, x^y, x|y at the expected cells", func() {
		and, err := mem.Get(first.Add(2))
		Expect(err).NotTo(HaveOccurred())
		xor, err := mem.Get(first.Add(3))
		Expect(err).NotTo(HaveOccurred())
		or, err := mem.Get(first.Add(4))
		Expect(err).NotTo(HaveOccurred())

		andFelt, _ := and.GetFelt()
		xorFelt, _ := xor.GetFelt()
		orFelt, _ := or.GetFelt()

		Expect(andFelt.Equal(field.FromUint64(0b1000))).To(BeTrue())
		Expect(xorFelt.Equal(field.FromUint64(0b0110))).To(BeTrue())
		Expect(orFelt.Equal(field.FromUint64(0b1110))).To(BeTrue())
	})

	It("deduces correctly for operands beyond 64 bits but within total_n_bits", func() {
		// Both the validation rule and the standard layouts permit inputs up
		// to 251 bits; deduction must compute the full field-width bitwise
		// operation rather than truncating through a 64-bit round trip.
		sm2 := memory.NewSegmentManager()
		r2 := builtins.NewBitwiseRunner(true, 8, 251)
		r2.InitializeSegments(sm2)
		mem2 := sm2.Memory
		r2.AddValidationRule(mem2)
		mem2.SetDeducer(r2.Base().Segment, builtins.AsDeducer(r2))
		base := r2.Base()

		high := field.FromUint64(1).Lsh(200)
		x := high.Add(field.FromUint64(0b1100))
		y := high.Add(field.FromUint64(0b1010))
		Expect(mem2.Insert(base, memory.FromFelt(x))).To(Succeed())
		Expect(mem2.Insert(base.Add(1), memory.FromFelt(y))).To(Succeed())

		and, err := mem2.Get(base.Add(2))
		Expect(err).NotTo(HaveOccurred())
		xor, err := mem2.Get(base.Add(3))
		Expect(err).NotTo(HaveOccurred())
		or, err := mem2.Get(base.Add(4))
		Expect(err).NotTo(HaveOccurred())

		andFelt, _ := and.GetFelt()
		xorFelt, _ := xor.GetFelt()
		orFelt, _ := or.GetFelt()

		Expect(andFelt.Equal(high.Add(field.FromUint64(0b1000)))).To(BeTrue())
		Expect(xorFelt.Equal(field.FromUint64(0b0110))).To(BeTrue())
		Expect(orFelt.Equal(high.Add(field.FromUint64(0b1110)))).To(BeTrue())
	})

	It("rejects an input exceeding total_n_bits", func() {
		sm2 := memory.NewSegmentManager()
		r2 := builtins.NewBitwiseRunner(true, 8, 4)
		r2.InitializeSegments(sm2)
		r2.AddValidationRule(sm2.Memory)

		err := sm2.Memory.Insert(r2.Base(), memory.FromFelt(field.FromUint64(1<<5)))
		Expect(err).To(HaveOccurred())
	})
})
