package builtins

import (
	"github.com/sarchlab/cairo-vm-go/field"
	"github.com/sarchlab/cairo-vm-go/memory"
)

// BitwiseRunner computes x&y, x^y and x|y from two inputs, 5 cells per
// instance: x, y, x&y, x^y, x|y (spec §4.6).
type BitwiseRunner struct {
	base
	totalNBits uint
}

// NewBitwiseRunner builds the bitwise builtin. totalNBits bounds both
// inputs (the standard layouts use 251, the field's bit width).
func NewBitwiseRunner(incl bool, ratio uint64, totalNBits uint) *BitwiseRunner {
	return &BitwiseRunner{
		base: base{
			name:             "bitwise",
			included:         included(incl),
			ratio:            ratio,
			cellsPerInstance: 5,
			nInputCells:      2,
		},
		totalNBits: totalNBits,
	}
}

func (r *BitwiseRunner) AddValidationRule(mem *memory.Memory) {
	bits := r.totalNBits
	mem.AddValidationRule(r.segmentBase.Segment, func(_ *memory.Memory, addr memory.Relocatable, value memory.MaybeRelocatable) error {
		index := addr.Offset % r.cellsPerInstance
		if index >= r.nInputCells {
			return nil
		}
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

func (r *BitwiseRunner) DeduceMemoryCell(addr memory.Relocatable, mem *memory.Memory) (memory.MaybeRelocatable, bool, error) {
	index := addr.Offset % r.cellsPerInstance
	if index < r.nInputCells {
		return memory.MaybeRelocatable{}, false, nil
	}

	firstInputAddr, err := addr.Sub(index)
	if err != nil {
		return memory.MaybeRelocatable{}, false, nil
	}
	xVal, ok := mem.Peek(firstInputAddr)
	if !ok {
		return memory.MaybeRelocatable{}, false, nil
	}
	yVal, ok := mem.Peek(firstInputAddr.Add(1))
	if !ok {
		return memory.MaybeRelocatable{}, false, nil
	}

	xFelt, err := xVal.GetFelt()
	if err != nil {
		return memory.MaybeRelocatable{}, false, err
	}
	yFelt, err := yVal.GetFelt()
	if err != nil {
		return memory.MaybeRelocatable{}, false, err
	}
	xWords, yWords := xFelt.Words(), yFelt.Words()
	var resultWords [4]uint64
	switch index {
	case 2:
		for i := range resultWords {
			resultWords[i] = xWords[i] & yWords[i]
		}
	case 3:
		for i := range resultWords {
			resultWords[i] = xWords[i] ^ yWords[i]
		}
	case 4:
		for i := range resultWords {
			resultWords[i] = xWords[i] | yWords[i]
		}
	default:
		return memory.MaybeRelocatable{}, false, nil
	}
	return memory.FromFelt(field.FromWords(resultWords)), true, nil
}

func (r *BitwiseRunner) FinalStack(sm *memory.SegmentManager, stackTop memory.Relocatable) (memory.Relocatable, error) {
	return r.finalStack(sm, stackTop)
}
