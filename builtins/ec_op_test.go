package builtins_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cairo-vm-go/builtins"
	"github.com/sarchlab/cairo-vm-go/field"
	"github.com/sarchlab/cairo-vm-go/memory"
)

var _ = Describe("EcOpRunner", func() {
	var (
		sm     *memory.SegmentManager
		mem    *memory.Memory
		runner *builtins.EcOpRunner
		first  memory.Relocatable
	)

	BeforeEach(func() {
		sm = memory.NewSegmentManager()
		mem = sm.Memory
		runner = builtins.NewEcOpRunner(true, 1024, 256)
		runner.InitializeSegments(sm)
		mem.SetDeducer(runner.Base().Segment, builtins.AsDeducer(runner))
		first = runner.Base()
	})

	It("returns P unchanged when m is zero, regardless of Q", func() {
		px := field.FromUint64(11)
		py := field.FromUint64(22)
		Expect(mem.Insert(first, memory.FromFelt(px))).To(Succeed())
		Expect(mem.Insert(first.Add(1), memory.FromFelt(py))).To(Succeed())
		Expect(mem.Insert(first.Add(2), memory.FromFelt(field.FromUint64(5)))).To(Succeed())
		Expect(mem.Insert(first.Add(3), memory.FromFelt(field.FromUint64(7)))).To(Succeed())
		Expect(mem.Insert(first.Add(4), memory.FromFelt(field.Zero))).To(Succeed())

		rx, err := mem.Get(first.Add(5))
		Expect(err).NotTo(HaveOccurred())
		ry, err := mem.Get(first.Add(6))
		Expect(err).NotTo(HaveOccurred())

		rxFelt, _ := rx.GetFelt()
		ryFelt, _ := ry.GetFelt()
		Expect(rxFelt.Equal(px)).To(BeTrue())
		Expect(ryFelt.Equal(py)).To(BeTrue())
	})
})
