// Package vm implements the Cairo instruction decoder and the one-step
// execution engine: operand-address computation, operand deduction,
// opcode assertions and register updates (spec §4.3-4.4).
package vm

import "fmt"

// Register names an ap/fp-relative base register.
type Register int

const (
	Ap Register = iota
	Fp
)

// Op1Src selects where op1's base address comes from.
type Op1Src int

const (
	Op1SrcOp0 Op1Src = iota
	Op1SrcImm
	Op1SrcAp
	Op1SrcFp
)

// ResLogic selects how `res` relates to op0/op1.
type ResLogic int

const (
	ResOp1 ResLogic = iota
	ResAdd
	ResMul
	ResUnconstrained
)

// PcUpdate selects how pc advances after a step.
type PcUpdate int

const (
	PcNextInstr PcUpdate = iota
	PcJumpAbs
	PcJumpRel
	PcJnz
)

// ApUpdate selects how ap advances after a step.
type ApUpdate int

const (
	ApRegular ApUpdate = iota
	ApAdd
	ApAdd1
	ApAdd2
)

// Opcode selects the instruction's side effects.
type Opcode int

const (
	OpcodeNop Opcode = iota
	OpcodeCall
	OpcodeRet
	OpcodeAssertEq
)

// offsetBias is the bias added to the three 16-bit offset fields so that
// the signed range [-2^15, 2^15) is representable as an unsigned 16-bit word.
const offsetBias = 1 << 15

// Instruction is the decoded form of a 63-bit Cairo instruction word.
type Instruction struct {
	OffDst int16
	OffOp0 int16
	OffOp1 int16

	DstRegister Register
	Op0Register Register
	Op1Source   Op1Src
	Res         ResLogic
	PcUpdate    PcUpdate
	ApUpdate    ApUpdate
	Opcode      Opcode
}

// Size returns the number of memory cells the instruction occupies: 2 if
// op1 reads an immediate (the immediate is the following cell), else 1.
func (i *Instruction) Size() uint64 {
	if i.Op1Source == Op1SrcImm {
		return 2
	}
	return 1
}

const (
	dstRegBit = 1 << iota
	op0RegBit
	op1ImmBit
	op1ApBit
	op1FpBit
	resAddBit
	resMulBit
	pcJumpAbsBit
	pcJumpRelBit
	pcJnzBit
	apAddBit
	apAdd1Bit
	opcodeCallBit
	opcodeRetBit
	opcodeAssertEqBit
)

// flagsMask covers the 15 defined flag bits; anything above it is the
// unused top bit, which must be zero.
const flagsMask = (1 << 15) - 1

// DecodeInstruction unpacks a 63-bit encoded word into an Instruction,
// enforcing the decoder's mutual-exclusion and unused-bit invariants
// (spec §4.3). word must fit in 63 bits.
func DecodeInstruction(word uint64) (*Instruction, error) {
	if word>>63 != 0 {
		return nil, fmt.Errorf("vm: %w: top bit set", ErrInvalidInstruction)
	}

	offDst := uint16(word)
	offOp0 := uint16(word >> 16)
	offOp1 := uint16(word >> 32)
	flags := (word >> 48) & flagsMask

	inst := &Instruction{
		OffDst: biasedToSigned(offDst),
		OffOp0: biasedToSigned(offOp0),
		OffOp1: biasedToSigned(offOp1),
	}

	if flags&dstRegBit != 0 {
		inst.DstRegister = Fp
	} else {
		inst.DstRegister = Ap
	}
	if flags&op0RegBit != 0 {
		inst.Op0Register = Fp
	} else {
		inst.Op0Register = Ap
	}

	op1Group := boolCount(flags&op1ImmBit != 0, flags&op1ApBit != 0, flags&op1FpBit != 0)
	if op1Group > 1 {
		return nil, fmt.Errorf("vm: %w: more than one op1_src flag set", ErrInvalidInstruction)
	}
	switch {
	case flags&op1ImmBit != 0:
		inst.Op1Source = Op1SrcImm
	case flags&op1ApBit != 0:
		inst.Op1Source = Op1SrcAp
	case flags&op1FpBit != 0:
		inst.Op1Source = Op1SrcFp
	default:
		inst.Op1Source = Op1SrcOp0
	}

	resGroup := boolCount(flags&resAddBit != 0, flags&resMulBit != 0)
	if resGroup > 1 {
		return nil, fmt.Errorf("vm: %w: both res_add and res_mul set", ErrInvalidInstruction)
	}

	pcGroup := boolCount(flags&pcJumpAbsBit != 0, flags&pcJumpRelBit != 0, flags&pcJnzBit != 0)
	if pcGroup > 1 {
		return nil, fmt.Errorf("vm: %w: more than one pc_update flag set", ErrInvalidInstruction)
	}
	switch {
	case flags&pcJumpAbsBit != 0:
		inst.PcUpdate = PcJumpAbs
	case flags&pcJumpRelBit != 0:
		inst.PcUpdate = PcJumpRel
	case flags&pcJnzBit != 0:
		inst.PcUpdate = PcJnz
	default:
		inst.PcUpdate = PcNextInstr
	}

	switch {
	case inst.PcUpdate == PcJnz:
		if flags&resAddBit != 0 || flags&resMulBit != 0 {
			return nil, fmt.Errorf("vm: %w: jnz requires unconstrained res", ErrInvalidInstruction)
		}
		inst.Res = ResUnconstrained
	case flags&resAddBit != 0:
		inst.Res = ResAdd
	case flags&resMulBit != 0:
		inst.Res = ResMul
	default:
		inst.Res = ResOp1
	}

	apGroup := boolCount(flags&apAddBit != 0, flags&apAdd1Bit != 0)
	if apGroup > 1 {
		return nil, fmt.Errorf("vm: %w: both ap_add and ap_add1 set", ErrInvalidInstruction)
	}
	switch {
	case flags&apAddBit != 0:
		inst.ApUpdate = ApAdd
	case flags&apAdd1Bit != 0:
		inst.ApUpdate = ApAdd1
	default:
		inst.ApUpdate = ApRegular
	}

	opGroup := boolCount(flags&opcodeCallBit != 0, flags&opcodeRetBit != 0, flags&opcodeAssertEqBit != 0)
	if opGroup > 1 {
		return nil, fmt.Errorf("vm: %w: more than one opcode flag set", ErrInvalidInstruction)
	}
	switch {
	case flags&opcodeCallBit != 0:
		inst.Opcode = OpcodeCall
		if inst.ApUpdate != ApRegular {
			return nil, fmt.Errorf("vm: %w: call requires ap_update = regular", ErrInvalidInstruction)
		}
	case flags&opcodeRetBit != 0:
		inst.Opcode = OpcodeRet
	case flags&opcodeAssertEqBit != 0:
		inst.Opcode = OpcodeAssertEq
	default:
		inst.Opcode = OpcodeNop
	}

	return inst, nil
}

func biasedToSigned(v uint16) int16 {
	return int16(int32(v) - offsetBias)
}

func boolCount(bs ...bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}
