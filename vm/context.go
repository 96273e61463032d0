package vm

import (
	"fmt"

	"github.com/sarchlab/cairo-vm-go/memory"
)

// ProgramSegment and ExecutionSegment are the two segments every run
// allocates up front (spec §5.2): bytecode lives in segment 0, the
// stack/register file in segment 1. Builtins and temporary segments are
// allocated afterwards.
const (
	ProgramSegment   = 0
	ExecutionSegment = 1
)

// Context is the VM's register file: the three values that drive a step
// (spec §4.4).
type Context struct {
	Pc memory.Relocatable
	Ap uint64
	Fp uint64
}

func (c Context) String() string {
	return fmt.Sprintf("pc=%s ap=%d fp=%d", c.Pc, c.Ap, c.Fp)
}

// AddressAp returns the address of the current top-of-stack cell.
func (c Context) AddressAp() memory.Relocatable {
	return memory.NewRelocatable(ExecutionSegment, c.Ap)
}

// AddressFp returns the address of the current frame-pointer cell.
func (c Context) AddressFp() memory.Relocatable {
	return memory.NewRelocatable(ExecutionSegment, c.Fp)
}

// RegisterAddress returns AddressAp or AddressFp depending on which
// register an instruction's dst/op0 operand selects.
func (c Context) RegisterAddress(r Register) memory.Relocatable {
	if r == Fp {
		return c.AddressFp()
	}
	return c.AddressAp()
}

// Trace is one relocated trace entry: (pc, ap, fp) flattened into the
// single linear address space produced at the end of a run (spec §6).
type Trace struct {
	Pc uint64
	Ap uint64
	Fp uint64
}

// Relocate flattens ctx using a relocation table (memory.SegmentManager.
// RelocateSegments), yielding the trace entry written to the relocated
// trace artifact.
func (c Context) Relocate(table []uint64) Trace {
	return Trace{
		Pc: memory.RelocateAddress(c.Pc, table),
		Ap: table[ExecutionSegment] + c.Ap,
		Fp: table[ExecutionSegment] + c.Fp,
	}
}
