package builtins

import (
	"github.com/sarchlab/cairo-vm-go/field"
	"github.com/sarchlab/cairo-vm-go/memory"
)

// EcOpRunner computes R = P + m*Q over the STARK curve, 7 cells per
// instance: p_x, p_y, q_x, q_y, m, r_x, r_y (spec §4.6).
type EcOpRunner struct {
	base
	scalarBits uint
}

// NewEcOpRunner builds the EC-op builtin. scalarBits bounds m (the
// reference instance definition uses 256).
func NewEcOpRunner(incl bool, ratio uint64, scalarBits uint) *EcOpRunner {
	return &EcOpRunner{
		base: base{
			name:             "ec_op",
			included:         included(incl),
			ratio:            ratio,
			cellsPerInstance: 7,
			nInputCells:      5,
		},
		scalarBits: scalarBits,
	}
}

func (r *EcOpRunner) AddValidationRule(mem *memory.Memory) {}

func (r *EcOpRunner) DeduceMemoryCell(addr memory.Relocatable, mem *memory.Memory) (memory.MaybeRelocatable, bool, error) {
	index := addr.Offset % r.cellsPerInstance
	if index < r.nInputCells {
		return memory.MaybeRelocatable{}, false, nil
	}

	firstInputAddr, err := addr.Sub(index)
	if err != nil {
		return memory.MaybeRelocatable{}, false, nil
	}

	felts := make([]field.Felt, 5)
	for i := uint64(0); i < 5; i++ {
		v, ok := mem.Peek(firstInputAddr.Add(i))
		if !ok {
			return memory.MaybeRelocatable{}, false, nil
		}
		f, err := v.GetFelt()
		if err != nil {
			return memory.MaybeRelocatable{}, false, err
		}
		felts[i] = f
	}

	p := point{x: felts[0], y: felts[1]}
	q := point{x: felts[2], y: felts[3]}
	m := felts[4]

	mq, err := q.scalarMul(m, r.scalarBits)
	if err != nil {
		return memory.MaybeRelocatable{}, false, err
	}
	res, err := p.add(mq)
	if err != nil {
		return memory.MaybeRelocatable{}, false, err
	}

	switch index {
	case 5:
		return memory.FromFelt(res.x), true, nil
	case 6:
		return memory.FromFelt(res.y), true, nil
	default:
		return memory.MaybeRelocatable{}, false, nil
	}
}

func (r *EcOpRunner) FinalStack(sm *memory.SegmentManager, stackTop memory.Relocatable) (memory.Relocatable, error) {
	return r.finalStack(sm, stackTop)
}
