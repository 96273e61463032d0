package builtins

import (
	"github.com/sarchlab/cairo-vm-go/memory"
)

// RangeCheckRunner validates that every cell written to its segment is an
// integer within [0, 2^(16*nParts)) (spec §4.6). It is input-only: it
// never deduces a cell's value, only rejects bad writes.
type RangeCheckRunner struct {
	base
	nParts uint
}

// NewRangeCheckRunner builds the range-check builtin for the given
// number of 16-bit parts (the "n_parts" instance parameter; the standard
// layouts use 8, giving a 128-bit bound).
func NewRangeCheckRunner(incl bool, ratio uint64, nParts uint) *RangeCheckRunner {
	return &RangeCheckRunner{
		base: base{
			name:             "range_check",
			included:         included(incl),
			ratio:            ratio,
			cellsPerInstance: uint64(nParts),
			nInputCells:      uint64(nParts),
		},
		nParts: nParts,
	}
}

// Bits returns the bound 16*nParts used by the validation rule.
func (r *RangeCheckRunner) Bits() uint {
	return 16 * r.nParts
}

func (r *RangeCheckRunner) AddValidationRule(mem *memory.Memory) {
	bits := r.Bits()
	mem.AddValidationRule(r.segmentBase.Segment, func(_ *memory.Memory, addr memory.Relocatable, value memory.MaybeRelocatable) error {
		if value.IsRelocatable() {
			return &InputOutOfRangeError{Builtin: r.name, Address: addr, Bits: bits}
		}
		f, _ := value.GetFelt()
		if !f.LessThanPowerOfTwo(bits) {
			return &InputOutOfRangeError{Builtin: r.name, Address: addr, Bits: bits}
		}
		return nil
	})
}

func (r *RangeCheckRunner) DeduceMemoryCell(addr memory.Relocatable, mem *memory.Memory) (memory.MaybeRelocatable, bool, error) {
	return memory.MaybeRelocatable{}, false, nil
}

func (r *RangeCheckRunner) FinalStack(sm *memory.SegmentManager, stackTop memory.Relocatable) (memory.Relocatable, error) {
	return r.finalStack(sm, stackTop)
}
