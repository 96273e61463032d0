package builtins

import (
	"github.com/sarchlab/cairo-vm-go/field"
	"github.com/sarchlab/cairo-vm-go/memory"
)

// PoseidonRunner deduces a 3-element permutation output, 6 cells per
// instance: 3 input state cells followed by 3 output state cells
// (spec §4.6).
//
// The official Poseidon builtin runs the Hades permutation over
// Starkware's published round constants and MDS matrix; neither table
// was retrieved into this pack, so poseidonPermute below is a documented
// simplification — a fixed small number of full rounds using an x^3
// S-box and a hand-picked 3x3 MDS matrix, structurally matching Hades
// (add round constants, S-box every lane, mix) without matching its
// exact constants.
type PoseidonRunner struct {
	base
}

// NewPoseidonRunner builds the Poseidon builtin.
func NewPoseidonRunner(incl bool, ratio uint64) *PoseidonRunner {
	return &PoseidonRunner{
		base: base{
			name:             "poseidon",
			included:         included(incl),
			ratio:            ratio,
			cellsPerInstance: 6,
			nInputCells:      3,
		},
	}
}

func (r *PoseidonRunner) AddValidationRule(mem *memory.Memory) {}

func (r *PoseidonRunner) DeduceMemoryCell(addr memory.Relocatable, mem *memory.Memory) (memory.MaybeRelocatable, bool, error) {
	index := addr.Offset % r.cellsPerInstance
	if index < r.nInputCells {
		return memory.MaybeRelocatable{}, false, nil
	}

	firstInputAddr, err := addr.Sub(index)
	if err != nil {
		return memory.MaybeRelocatable{}, false, nil
	}

	var state [3]field.Felt
	for i := uint64(0); i < 3; i++ {
		v, ok := mem.Peek(firstInputAddr.Add(i))
		if !ok {
			return memory.MaybeRelocatable{}, false, nil
		}
		f, err := v.GetFelt()
		if err != nil {
			return memory.MaybeRelocatable{}, false, err
		}
		state[i] = f
	}

	out := poseidonPermute(state)
	slot := index - r.nInputCells
	return memory.FromFelt(out[slot]), true, nil
}

func (r *PoseidonRunner) FinalStack(sm *memory.SegmentManager, stackTop memory.Relocatable) (memory.Relocatable, error) {
	return r.finalStack(sm, stackTop)
}

const poseidonRounds = 8

var poseidonRoundConstants = [poseidonRounds][3]field.Felt{}

func init() {
	// Deterministic, non-official round constants: documented
	// simplification (see PoseidonRunner doc comment).
	seed := field.FromUint64(0x9e3779b97f4a7c15)
	step := field.FromUint64(3)
	v := seed
	for round := 0; round < poseidonRounds; round++ {
		for lane := 0; lane < 3; lane++ {
			v = v.Mul(step).Add(field.FromUint64(uint64(round*3 + lane + 1)))
			poseidonRoundConstants[round][lane] = v
		}
	}
}

// poseidonMix is a fixed, invertible-in-spirit 3x3 mixing matrix applied
// after the S-box layer each round.
func poseidonMix(s [3]field.Felt) [3]field.Felt {
	two := field.FromUint64(2)
	three := field.FromUint64(3)
	return [3]field.Felt{
		s[0].Add(s[1]).Add(s[2]),
		s[0].Add(two.Mul(s[1])).Add(s[2]),
		s[0].Add(s[1]).Add(three.Mul(s[2])),
	}
}

func poseidonPermute(state [3]field.Felt) [3]field.Felt {
	s := state
	for round := 0; round < poseidonRounds; round++ {
		for lane := 0; lane < 3; lane++ {
			s[lane] = s[lane].Add(poseidonRoundConstants[round][lane])
			s[lane] = s[lane].Mul(s[lane]).Mul(s[lane]) // x^3 S-box
		}
		s = poseidonMix(s)
	}
	return s
}
