package runner_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cairo-vm-go/builtins"
	"github.com/sarchlab/cairo-vm-go/field"
	"github.com/sarchlab/cairo-vm-go/memory"
	"github.com/sarchlab/cairo-vm-go/program"
	"github.com/sarchlab/cairo-vm-go/runner"
)

// primeHex matches field.Prime()'s hex rendering, duplicated here (rather
// than exported from field) since only the program artifact's textual
// encoding needs it.
const primeHex = "0x800000000000011000000000000000000000000000000000000000000000001"

// encodeWord mirrors vm/vm_test.go's bit layout helper: three biased
// 16-bit offsets followed by 15 flag bits.
func encodeWord(offDst, offOp0, offOp1 int32, flags uint64) uint64 {
	bias := int32(1 << 15)
	word := uint64(uint16(offDst+bias)) |
		uint64(uint16(offOp0+bias))<<16 |
		uint64(uint16(offOp1+bias))<<32
	return word | flags<<48
}

const (
	fDstReg       = 1 << 0
	fOp1Imm       = 1 << 2
	fOp1Fp        = 1 << 4
	fPcJumpRel    = 1 << 8
	fOpcodeCall   = 1 << 12
	fOpcodeRet    = 1 << 13
	fOpcodeAssert = 1 << 14
)

func wordsToProgram(words []uint64) *program.Program {
	data := make([]string, len(words))
	for i, w := range words {
		data[i] = fmt.Sprintf("0x%x", w)
	}
	return &program.Program{Prime: primeHex, Data: data}
}

var _ = Describe("CairoRunner", func() {
	Describe("call/ret balance", func() {
		It("restores fp to its pre-call value once foo returns", func() {
			// main: call_rel +2 -> foo; foo: ret.
			prog := wordsToProgram([]uint64{
				encodeWord(0, 1, 1, fOp1Imm|fPcJumpRel|fOpcodeCall),
				2,
				encodeWord(-2, -1, -2, fDstReg|fOp1Fp|fOpcodeRet),
			})

			r, err := runner.NewCairoRunner(prog, builtins.LayoutPlain)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Initialize()).To(Succeed())

			preCallFp := r.Context().Fp
			Expect(r.Run()).To(Succeed())

			Expect(r.Context().Fp).To(Equal(preCallFp))
			Expect(r.Context().Pc.Offset).To(Equal(uint64(3)))
		})
	})

	Describe("write-once violation", func() {
		It("fails when two assert_eq instructions disagree on the same cell", func() {
			prog := wordsToProgram([]uint64{
				encodeWord(0, 0, 1, fOp1Imm|fOpcodeAssert),
				5,
				encodeWord(0, 0, 1, fOp1Imm|fOpcodeAssert),
				6,
			})

			r, err := runner.NewCairoRunner(prog, builtins.LayoutPlain)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Initialize()).To(Succeed())
			Expect(r.Run()).To(HaveOccurred())
		})
	})

	Describe("relocation artifacts", func() {
		It("produces a relocated trace and memory entries for a single-step run", func() {
			prog := wordsToProgram([]uint64{
				encodeWord(0, 0, 1, fOp1Imm|fOpcodeAssert),
				42,
			})

			r, err := runner.NewCairoRunner(prog, builtins.LayoutPlain, runner.WithProofMode())
			Expect(err).NotTo(HaveOccurred())

			result, err := r.Execute()
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Trace).To(HaveLen(1))
			Expect(result.Memory).NotTo(BeEmpty())
		})
	})

	Describe("range-check builtin wiring", func() {
		It("rejects a value that does not fit in the configured bit width", func() {
			prog := wordsToProgram([]uint64{
				encodeWord(0, 0, 1, fOp1Imm|fPcJumpRel|fOpcodeAssert),
				1,
			})

			r, err := runner.NewCairoRunner(prog, builtins.LayoutSmall)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Initialize()).To(Succeed())

			rangeCheck := r.Builtins().RangeCheck
			Expect(rangeCheck).NotTo(BeNil())

			tooBig := field.FromUint64(1).Lsh(128)
			err = r.Memory().Insert(rangeCheck.Base(), memory.FromFelt(tooBig))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("resource accounting", func() {
		It("reports the step count and zeroed builtin usage for a plain-layout run", func() {
			prog := wordsToProgram([]uint64{
				encodeWord(0, 0, 1, fOp1Imm|fOpcodeAssert),
				42,
			})

			r, err := runner.NewCairoRunner(prog, builtins.LayoutPlain)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Initialize()).To(Succeed())
			Expect(r.Run()).To(Succeed())

			res := r.Resources()
			Expect(res.Steps).To(Equal(uint64(1)))
			Expect(res.BuiltinUsage).To(BeEmpty())
		})
	})

	Describe("pedersen builtin wiring", func() {
		It("deduces the hash output cell lazily and consistently", func() {
			prog := wordsToProgram([]uint64{
				encodeWord(0, 0, 1, fOp1Imm|fPcJumpRel|fOpcodeAssert),
				1,
			})

			r, err := runner.NewCairoRunner(prog, builtins.LayoutSmall)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Initialize()).To(Succeed())

			pedersen := r.Builtins().Pedersen
			Expect(pedersen).NotTo(BeNil())

			base := pedersen.Base()
			Expect(r.Memory().Insert(base, memory.FromFelt(field.FromUint64(3)))).To(Succeed())
			Expect(r.Memory().Insert(base.Add(1), memory.FromFelt(field.FromUint64(5)))).To(Succeed())

			v, err := r.Memory().Get(base.Add(2))
			Expect(err).NotTo(HaveOccurred())
			hash, err := v.GetFelt()
			Expect(err).NotTo(HaveOccurred())

			// Deducing twice must return the exact same value (write-once
			// consistency, spec §4.8).
			v2, err := r.Memory().Get(base.Add(2))
			Expect(err).NotTo(HaveOccurred())
			hash2, _ := v2.GetFelt()
			Expect(hash.Equal(hash2)).To(BeTrue())
		})
	})
})
