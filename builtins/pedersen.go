package builtins

import (
	"github.com/sarchlab/cairo-vm-go/field"
	"github.com/sarchlab/cairo-vm-go/memory"
)

// PedersenRunner deduces a hash output cell from two input cells, 3
// cells per instance: x, y, hash (spec §4.6).
//
// The official Pedersen hash splits each 252-bit input against four
// fixed elliptic-curve constant points and sums the resulting
// scalar-multiples; those constant-point tables were never retrieved
// into this pack (original_source/ only carries the integration test,
// not the curve-parameter source), so pedersenHash below is a
// documented simplification: a fixed-constant polynomial combination of
// the two inputs over the same field, preserving the "2 inputs, 1
// deduced output, write-once" shape without claiming bit-for-bit
// compatibility with the real hash.
type PedersenRunner struct {
	base
}

// NewPedersenRunner builds the Pedersen builtin.
func NewPedersenRunner(incl bool, ratio uint64) *PedersenRunner {
	return &PedersenRunner{
		base: base{
			name:             "pedersen",
			included:         included(incl),
			ratio:            ratio,
			cellsPerInstance: 3,
			nInputCells:      2,
		},
	}
}

func (r *PedersenRunner) AddValidationRule(mem *memory.Memory) {}

func (r *PedersenRunner) DeduceMemoryCell(addr memory.Relocatable, mem *memory.Memory) (memory.MaybeRelocatable, bool, error) {
	index := addr.Offset % r.cellsPerInstance
	if index != 2 {
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
	x, err := xVal.GetFelt()
	if err != nil {
		return memory.MaybeRelocatable{}, false, err
	}
	y, err := yVal.GetFelt()
	if err != nil {
		return memory.MaybeRelocatable{}, false, err
	}

	return memory.FromFelt(pedersenHash(x, y)), true, nil
}

func (r *PedersenRunner) FinalStack(sm *memory.SegmentManager, stackTop memory.Relocatable) (memory.Relocatable, error) {
	return r.finalStack(sm, stackTop)
}

var (
	pedersenC0 = mustFeltFromHex("0x49ee3eba8c1600700ee1b87eb599f16716b0b1022947733551fde4050ca6804")
	pedersenC1 = mustFeltFromHex("0x3001d68e243c0f6e1a414d60ed6ab30a6a33c8998a8862b9e1c0cd2ae6b04c")
	pedersenC2 = mustFeltFromHex("0x5bb9440e27889a364bcb678b1f679ecd1347acdedcbf36e83494f857cc58026")
)

// pedersenHash is the simplified Pedersen-shaped compression function
// documented above: c0 + c1*x + c2*y + x*y, all mod P.
func pedersenHash(x, y field.Felt) field.Felt {
	return pedersenC0.Add(pedersenC1.Mul(x)).Add(pedersenC2.Mul(y)).Add(x.Mul(y))
}
