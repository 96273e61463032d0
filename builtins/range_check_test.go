package builtins_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cairo-vm-go/builtins"
	"github.com/sarchlab/cairo-vm-go/field"
	"github.com/sarchlab/cairo-vm-go/memory"
)

var _ = Describe("RangeCheckRunner", func() {
	var (
		mem      *memory.Memory
		runner   *builtins.RangeCheckRunner
		cellAddr memory.Relocatable
	)

	BeforeEach(func() {
		sm := memory.NewSegmentManager()
		mem = sm.Memory
		runner = builtins.NewRangeCheckRunner(true, 8, 8)
		runner.InitializeSegments(sm)
		cellAddr = runner.Base()
		runner.AddValidationRule(mem)
	})

	It("accepts a value within 2^128", func() {
		v, err := field.FromHex("0xffffffffffffffffffffffffffffff")
		Expect(err).NotTo(HaveOccurred())
		Expect(mem.Insert(cellAddr, memory.FromFelt(v))).To(Succeed())
	})

	It("rejects 2^128 itself", func() {
		v := field.One.Lsh(128)
		err := mem.Insert(cellAddr, memory.FromFelt(v))
		Expect(err).To(HaveOccurred())
		var target *builtins.InputOutOfRangeError
		Expect(err).To(BeAssignableToTypeOf(target))
	})

	It("rejects a relocatable value", func() {
		err := mem.Insert(cellAddr, memory.FromRelocatable(memory.NewRelocatable(1, 0)))
		Expect(err).To(HaveOccurred())
	})
})
