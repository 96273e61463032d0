package vm

import (
	"fmt"

	"github.com/sarchlab/cairo-vm-go/field"
	"github.com/sarchlab/cairo-vm-go/memory"
)

// HintRunner is the boundary to the pluggable hint processor (spec §5.3):
// before a step's operand deduction the runner may insert memory cells or
// mutate its own scope state. The vm package never depends on hints
// directly, to let callers supply their own processor.
type HintRunner interface {
	RunHint(vm *VirtualMachine) error
}

// Config toggles optional, more expensive bookkeeping.
type Config struct {
	// ProofMode records the full (pc, ap, fp) trace, required to produce
	// the relocated trace artifact at the end of a run.
	ProofMode bool
}

// VirtualMachine runs one Cairo program against a shared memory store.
type VirtualMachine struct {
	Context Context
	Memory  *memory.Memory
	Step    uint64
	Trace   []Context

	config Config
	// instructions caches decoded words keyed by pc offset, since a
	// program's bytecode never changes segment and loops re-execute the
	// same instructions many times.
	instructions map[uint64]*Instruction
}

// NewVirtualMachine builds a VM starting at initialContext.
func NewVirtualMachine(initialContext Context, mem *memory.Memory, config Config) *VirtualMachine {
	var trace []Context
	if config.ProofMode {
		trace = make([]Context, 0)
	}
	return &VirtualMachine{
		Context:      initialContext,
		Memory:       mem,
		Trace:        trace,
		config:       config,
		instructions: make(map[uint64]*Instruction),
	}
}

// RunStep decodes (or fetches from cache) the instruction at pc, records
// the pre-step trace entry, and executes it.
func (vm *VirtualMachine) RunStep(hintRunner HintRunner) error {
	if hintRunner != nil {
		if err := hintRunner.RunHint(vm); err != nil {
			return fmt.Errorf("vm: running hint: %w", err)
		}
	}

	inst, ok := vm.instructions[vm.Context.Pc.Offset]
	if !ok {
		raw, err := vm.Memory.GetFelt(vm.Context.Pc)
		if err != nil {
			return fmt.Errorf("vm: reading instruction: %w", err)
		}
		f, _ := raw.GetFelt()
		word, ok := f.Uint64()
		if !ok {
			return fmt.Errorf("vm: %w: instruction word does not fit in 63 bits", ErrInvalidInstruction)
		}
		inst, err = DecodeInstruction(word)
		if err != nil {
			return fmt.Errorf("vm: decoding instruction: %w", err)
		}
		vm.instructions[vm.Context.Pc.Offset] = inst
	}

	if vm.config.ProofMode {
		vm.Trace = append(vm.Trace, vm.Context)
	}

	if err := vm.RunInstruction(inst); err != nil {
		return fmt.Errorf("vm: running instruction at %s: %w", vm.Context.Pc, err)
	}
	vm.Step++
	return nil
}

// RunUntilPC steps until pc reaches target, or fails with
// ErrEndOfProgramUnreachable if maxSteps is exceeded first. maxSteps <= 0
// means unbounded.
func (vm *VirtualMachine) RunUntilPC(target memory.Relocatable, hintRunner HintRunner, maxSteps int64) error {
	var taken int64
	for !vm.Context.Pc.Equal(target) {
		if maxSteps > 0 && taken >= maxSteps {
			return fmt.Errorf("vm: %w: after %d steps, pc still at %s", ErrEndOfProgramUnreachable, taken, vm.Context.Pc)
		}
		if err := vm.RunStep(hintRunner); err != nil {
			return err
		}
		taken++
	}
	return nil
}

// RunInstruction executes a single decoded instruction against the
// current context, following the operand-deduction / assertions /
// register-update pipeline (spec §4.4 steps 2-6).
func (vm *VirtualMachine) RunInstruction(inst *Instruction) error {
	dstAddr := vm.dstAddr(inst)
	op0Addr := vm.op0Addr(inst)
	op1Addr, err := vm.op1Addr(inst, op0Addr)
	if err != nil {
		return fmt.Errorf("op1 address: %w", err)
	}

	res, err := vm.deduceOperands(inst, dstAddr, op0Addr, op1Addr)
	if err != nil {
		return fmt.Errorf("operand deduction: %w", err)
	}

	if err := vm.applyOpcodeAssertions(inst, dstAddr, op0Addr, res); err != nil {
		return fmt.Errorf("opcode assertions: %w", err)
	}

	nextPc, err := vm.updatePc(inst, dstAddr, op1Addr, res)
	if err != nil {
		return fmt.Errorf("pc update: %w", err)
	}
	nextAp, err := vm.updateAp(inst, res)
	if err != nil {
		return fmt.Errorf("ap update: %w", err)
	}
	nextFp, err := vm.updateFp(inst, dstAddr)
	if err != nil {
		return fmt.Errorf("fp update: %w", err)
	}

	vm.Memory.MarkAccessed(vm.Context.Pc)
	vm.Memory.MarkAccessed(dstAddr)
	vm.Memory.MarkAccessed(op0Addr)
	vm.Memory.MarkAccessed(op1Addr)

	vm.Context.Pc = nextPc
	vm.Context.Ap = nextAp
	vm.Context.Fp = nextFp
	return nil
}

func (vm *VirtualMachine) dstAddr(inst *Instruction) memory.Relocatable {
	return addOffset(vm.Context.RegisterAddress(inst.DstRegister), inst.OffDst)
}

func (vm *VirtualMachine) op0Addr(inst *Instruction) memory.Relocatable {
	return addOffset(vm.Context.RegisterAddress(inst.Op0Register), inst.OffOp0)
}

func (vm *VirtualMachine) op1Addr(inst *Instruction, op0Addr memory.Relocatable) (memory.Relocatable, error) {
	var base memory.Relocatable
	switch inst.Op1Source {
	case Op1SrcOp0:
		v, err := vm.Memory.Get(op0Addr)
		if err != nil {
			return memory.Relocatable{}, fmt.Errorf("reading op0 as op1 base: %w", err)
		}
		r, err := v.GetRelocatable()
		if err != nil {
			return memory.Relocatable{}, fmt.Errorf("op0 is not an address: %w", err)
		}
		base = r
	case Op1SrcImm:
		base = vm.Context.Pc
	case Op1SrcFp:
		base = vm.Context.AddressFp()
	case Op1SrcAp:
		base = vm.Context.AddressAp()
	}
	return addOffset(base, inst.OffOp1), nil
}

func addOffset(base memory.Relocatable, off int16) memory.Relocatable {
	if off >= 0 {
		return base.Add(uint64(off))
	}
	r, err := base.Sub(uint64(-off))
	if err != nil {
		// Offsets are bounded to +-2^15 and registers never underflow
		// past segment start in a well-formed program; a negative result
		// here indicates a malformed instruction stream, surfaced the
		// same way any other address overflow would be: the subsequent
		// memory access fails with an out-of-range address.
		return memory.NewRelocatable(base.Segment, 0)
	}
	return r
}

// deduceOperands runs the fixed point over {dst, op0, op1, res} described
// in spec §4.4 step 3 and returns the resolved res value.
func (vm *VirtualMachine) deduceOperands(inst *Instruction, dstAddr, op0Addr, op1Addr memory.Relocatable) (memory.MaybeRelocatable, error) {
	dstVal, dstKnown := vm.Memory.Peek(dstAddr)
	op0Val, op0Known := vm.Memory.Peek(op0Addr)
	op1Val, op1Known := vm.Memory.Peek(op1Addr)

	if inst.Opcode == OpcodeCall {
		retPc := memory.FromRelocatable(vm.Context.Pc.Add(inst.Size()))
		if op0Known {
			if !op0Val.Equal(retPc) {
				return memory.MaybeRelocatable{}, ErrCantWriteReturnPc
			}
		} else {
			op0Val, op0Known = retPc, true
		}
		retFp := memory.FromRelocatable(vm.Context.AddressFp())
		if dstKnown {
			if !dstVal.Equal(retFp) {
				return memory.MaybeRelocatable{}, ErrCantWriteReturnFp
			}
		} else {
			dstVal, dstKnown = retFp, true
		}
	}

	var res memory.MaybeRelocatable
	var resKnown bool

	switch inst.Res {
	case ResUnconstrained:
		resKnown = false
	case ResOp1:
		if op1Known {
			res, resKnown = op1Val, true
		}
	case ResAdd, ResMul:
		if op0Known && op1Known {
			var err error
			if inst.Res == ResAdd {
				res, err = memory.Add(op0Val, op1Val)
			} else {
				res, err = memory.Mul(op0Val, op1Val)
			}
			if err != nil {
				return memory.MaybeRelocatable{}, err
			}
			resKnown = true
		} else if dstKnown && (op0Known || op1Known) {
			knownVal, unknownAddr := op1Val, op0Addr
			if op0Known {
				knownVal, unknownAddr = op0Val, op1Addr
			}
			var missing memory.MaybeRelocatable
			var err error
			if inst.Res == ResAdd {
				missing, err = memory.Sub(dstVal, knownVal)
			} else {
				missing, err = deduceMulOperand(dstVal, knownVal)
			}
			if err != nil {
				return memory.MaybeRelocatable{}, err
			}
			if unknownAddr == op0Addr {
				op0Val, op0Known = missing, true
			} else {
				op1Val, op1Known = missing, true
			}
			res, resKnown = dstVal, true
		}
	}

	if inst.Opcode == OpcodeAssertEq {
		if resKnown {
			if dstKnown {
				if !dstVal.Equal(res) {
					return memory.MaybeRelocatable{}, ErrDiffAssertValues
				}
			} else {
				dstVal, dstKnown = res, true
			}
		} else if dstKnown {
			res, resKnown = dstVal, true
		}
	}

	if op0Known {
		if err := vm.Memory.Insert(op0Addr, op0Val); err != nil {
			return memory.MaybeRelocatable{}, err
		}
	}
	if op1Known {
		if err := vm.Memory.Insert(op1Addr, op1Val); err != nil {
			return memory.MaybeRelocatable{}, err
		}
	}
	if dstKnown {
		if err := vm.Memory.Insert(dstAddr, dstVal); err != nil {
			return memory.MaybeRelocatable{}, err
		}
	}

	needsDst := inst.Opcode == OpcodeAssertEq || inst.Opcode == OpcodeCall || inst.PcUpdate == PcJnz
	needsRes := inst.Res != ResUnconstrained
	if (needsDst && !dstKnown) || (needsRes && !resKnown) {
		return memory.MaybeRelocatable{}, ErrUnknownOperand
	}
	return res, nil
}

// deduceMulOperand solves `dst = known * x` for x, requiring both sides
// to be field elements (spec §4.4 step 3: mul never involves relocatables).
func deduceMulOperand(dst, known memory.MaybeRelocatable) (memory.MaybeRelocatable, error) {
	if dst.IsRelocatable() || known.IsRelocatable() {
		return memory.MaybeRelocatable{}, fmt.Errorf("vm: mul deduction requires field elements")
	}
	dstFelt, _ := dst.GetFelt()
	knownFelt, _ := known.GetFelt()
	inv, err := knownFelt.Inverse()
	if err != nil {
		return memory.MaybeRelocatable{}, fmt.Errorf("vm: mul deduction: %w", err)
	}
	return memory.FromFelt(dstFelt.Mul(inv)), nil
}

func (vm *VirtualMachine) applyOpcodeAssertions(inst *Instruction, dstAddr, op0Addr memory.Relocatable, res memory.MaybeRelocatable) error {
	switch inst.Opcode {
	case OpcodeCall:
		if err := vm.Memory.Insert(dstAddr, memory.FromRelocatable(vm.Context.AddressFp())); err != nil {
			return err
		}
		retPc := vm.Context.Pc.Add(inst.Size())
		return vm.Memory.Insert(op0Addr, memory.FromRelocatable(retPc))
	case OpcodeAssertEq:
		return vm.Memory.Insert(dstAddr, res)
	}
	return nil
}

func (vm *VirtualMachine) updatePc(inst *Instruction, dstAddr, op1Addr memory.Relocatable, res memory.MaybeRelocatable) (memory.Relocatable, error) {
	switch inst.PcUpdate {
	case PcNextInstr:
		return vm.Context.Pc.Add(inst.Size()), nil
	case PcJumpAbs:
		r, err := res.GetRelocatable()
		if err != nil {
			return memory.Relocatable{}, fmt.Errorf("absolute jump: %w", err)
		}
		return r, nil
	case PcJumpRel:
		f, err := res.GetFelt()
		if err != nil {
			return memory.Relocatable{}, fmt.Errorf("relative jump: %w", err)
		}
		return addFeltOffset(vm.Context.Pc, f)
	case PcJnz:
		destVal, err := vm.Memory.GetFelt(dstAddr)
		if err != nil {
			return memory.Relocatable{}, err
		}
		dest, _ := destVal.GetFelt()
		if dest.IsZero() {
			return vm.Context.Pc.Add(inst.Size()), nil
		}
		op1Val, err := vm.Memory.GetFelt(op1Addr)
		if err != nil {
			return memory.Relocatable{}, err
		}
		f, _ := op1Val.GetFelt()
		return addFeltOffset(vm.Context.Pc, f)
	}
	return memory.Relocatable{}, fmt.Errorf("vm: unknown pc_update value %d", inst.PcUpdate)
}

func addFeltOffset(base memory.Relocatable, f field.Felt) (memory.Relocatable, error) {
	n, ok := f.Uint64()
	if !ok {
		return memory.Relocatable{}, fmt.Errorf("vm: jump offset %s does not fit in 64 bits", f)
	}
	return base.Add(n), nil
}

func (vm *VirtualMachine) updateAp(inst *Instruction, res memory.MaybeRelocatable) (uint64, error) {
	if inst.Opcode == OpcodeCall {
		return vm.Context.Ap + 2, nil
	}
	switch inst.ApUpdate {
	case ApRegular:
		return vm.Context.Ap, nil
	case ApAdd:
		f, err := res.GetFelt()
		if err != nil {
			return 0, fmt.Errorf("ap update: %w", err)
		}
		n, ok := f.Uint64()
		if !ok {
			return 0, fmt.Errorf("vm: ap_update add value %s does not fit in 64 bits", f)
		}
		return vm.Context.Ap + n, nil
	case ApAdd1:
		return vm.Context.Ap + 1, nil
	case ApAdd2:
		return vm.Context.Ap + 2, nil
	}
	return 0, fmt.Errorf("vm: unknown ap_update value %d", inst.ApUpdate)
}

func (vm *VirtualMachine) updateFp(inst *Instruction, dstAddr memory.Relocatable) (uint64, error) {
	switch inst.Opcode {
	case OpcodeCall:
		return vm.Context.Ap + 2, nil
	case OpcodeRet:
		dst, err := vm.Memory.GetRelocatable(dstAddr)
		if err != nil {
			return 0, fmt.Errorf("ret: %w", err)
		}
		return dst.Offset, nil
	default:
		return vm.Context.Fp, nil
	}
}

// RelocatedTrace flattens the recorded trace using a relocation table.
// Requires ProofMode to have been set at construction time.
func (vm *VirtualMachine) RelocatedTrace(table []uint64) []Trace {
	out := make([]Trace, len(vm.Trace))
	for i, ctx := range vm.Trace {
		out[i] = ctx.Relocate(table)
	}
	return out
}
