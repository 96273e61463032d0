package builtins

import (
	"github.com/sarchlab/cairo-vm-go/field"
	"github.com/sarchlab/cairo-vm-go/memory"
)

// EcdsaRunner validates (pubkey, message) pairs, 2 cells per instance.
// Unlike the other builtins it never deduces a cell; it only rejects
// writes that fail verification against a registered signature.
type EcdsaRunner struct {
	base
	signatures map[uint64]ecdsaSig
}

type ecdsaSig struct {
	r, s field.Felt
}

// NewEcdsaRunner builds the ECDSA builtin.
func NewEcdsaRunner(incl bool, ratio uint64) *EcdsaRunner {
	return &EcdsaRunner{
		base: base{
			name:             "ecdsa",
			included:         included(incl),
			ratio:            ratio,
			cellsPerInstance: 2,
			nInputCells:      2,
		},
		signatures: make(map[uint64]ecdsaSig),
	}
}

// AddSignature registers a signature for the instance whose pubkey cell
// lives at pubkeyAddr, to be checked once the paired message cell is
// written.
func (r *EcdsaRunner) AddSignature(pubkeyAddr memory.Relocatable, rVal, sVal field.Felt) {
	r.signatures[pubkeyAddr.Offset] = ecdsaSig{r: rVal, s: sVal}
}

func (r *EcdsaRunner) AddValidationRule(mem *memory.Memory) {
	mem.AddValidationRule(r.segmentBase.Segment, func(m *memory.Memory, addr memory.Relocatable, value memory.MaybeRelocatable) error {
		index := addr.Offset % r.cellsPerInstance
		if index != 1 {
			return nil
		}
		pubkeyAddr, err := addr.Sub(1)
		if err != nil {
			return nil
		}
		sig, ok := r.signatures[pubkeyAddr.Offset]
		if !ok {
			return &MissingSignatureError{PubkeyAddr: pubkeyAddr}
		}
		pubkeyVal, ok := m.Peek(pubkeyAddr)
		if !ok {
			return &MissingSignatureError{PubkeyAddr: pubkeyAddr}
		}
		pubkey, err := pubkeyVal.GetFelt()
		if err != nil {
			return err
		}
		msg, err := value.GetFelt()
		if err != nil {
			return err
		}
		if !verifySimplified(pubkey, msg, sig) {
			return &InvalidSignatureError{PubkeyAddr: pubkeyAddr}
		}
		return nil
	})
}

func (r *EcdsaRunner) DeduceMemoryCell(addr memory.Relocatable, mem *memory.Memory) (memory.MaybeRelocatable, bool, error) {
	return memory.MaybeRelocatable{}, false, nil
}

func (r *EcdsaRunner) FinalStack(sm *memory.SegmentManager, stackTop memory.Relocatable) (memory.Relocatable, error) {
	return r.finalStack(sm, stackTop)
}

// verifySimplified checks a reduced stand-in for the curve-based ECDSA
// verification equation. The real check recovers a point from (r, s, msg)
// via scalar multiplication against the protocol's fixed generator point
// and compares its x-coordinate to r; the official generator constant was
// never retrieved into this pack, so this builtin checks the algebraic
// relation msg == pubkey*r*s^-1 (mod P) instead, a documented
// simplification rather than the official curve-point recovery.
func verifySimplified(pubkey, msg field.Felt, sig ecdsaSig) bool {
	if sig.s.IsZero() {
		return false
	}
	sInv, err := sig.s.Inverse()
	if err != nil {
		return false
	}
	lhs := pubkey.Mul(sig.r).Mul(sInv)
	return lhs.Equal(msg)
}
