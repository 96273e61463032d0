// Package builtins implements the Cairo VM's builtin-runner framework:
// one capability set (spec §4.5) dispatched per builtin kind, rather than
// a deep class hierarchy (spec §9).
package builtins

import (
	"github.com/sarchlab/cairo-vm-go/memory"
)

// Runner is the capability set every builtin exposes. Implementations are
// tagged by Name and dispatched through this single interface — never
// through a type hierarchy.
type Runner interface {
	Name() string
	Base() memory.Relocatable
	Included() bool

	// InitializeSegments allocates the builtin's segment and records its
	// base address.
	InitializeSegments(sm *memory.SegmentManager)
	// InitialStack returns [(base, 0)] when included, else nil.
	InitialStack() []memory.MaybeRelocatable
	// AddValidationRule installs any per-cell validation predicate on the
	// builtin's segment (a no-op for builtins without input constraints
	// checked that way, e.g. Pedersen).
	AddValidationRule(mem *memory.Memory)
	// DeduceMemoryCell lazily computes an output cell's value, or reports
	// ok=false if the cell cannot yet be deduced (spec §4.5, §4.8).
	DeduceMemoryCell(addr memory.Relocatable, mem *memory.Memory) (value memory.MaybeRelocatable, ok bool, err error)
	// FinalStack pops this builtin's pointer off the execution stack tail
	// (spec §4.7 step 4), validating the stop pointer.
	FinalStack(sm *memory.SegmentManager, stackTop memory.Relocatable) (memory.Relocatable, error)

	CellsPerInstance() uint64
	NInputCells() uint64
	Ratio() uint64

	// GetAllocatedMemoryUnits returns cells_per_instance * (step / ratio),
	// per spec §4.5.
	GetAllocatedMemoryUnits(step uint64) (uint64, error)
	// GetUsedCells returns the builtin segment's populated size.
	GetUsedCells(sm *memory.SegmentManager) uint64
	// GetUsedInstances returns GetUsedCells / cells_per_instance, rounded up.
	GetUsedInstances(sm *memory.SegmentManager) uint64
}

// base holds the fields and default method bodies shared by every
// concrete runner; each kind embeds it and overrides DeduceMemoryCell /
// AddValidationRule / FinalStack as needed.
type base struct {
	name             string
	included         included
	ratio            uint64
	cellsPerInstance uint64
	nInputCells      uint64
	segmentBase      memory.Relocatable
	hasBase          bool
}

type included bool

func (b *base) Name() string { return b.name }

func (b *base) Base() memory.Relocatable { return b.segmentBase }

func (b *base) Included() bool { return bool(b.included) }

func (b *base) CellsPerInstance() uint64 { return b.cellsPerInstance }

func (b *base) NInputCells() uint64 { return b.nInputCells }

func (b *base) Ratio() uint64 { return b.ratio }

func (b *base) InitializeSegments(sm *memory.SegmentManager) {
	b.segmentBase = sm.Add()
	b.hasBase = true
}

func (b *base) InitialStack() []memory.MaybeRelocatable {
	if !b.included {
		return nil
	}
	return []memory.MaybeRelocatable{memory.FromRelocatable(b.segmentBase)}
}

func (b *base) GetAllocatedMemoryUnits(step uint64) (uint64, error) {
	if b.ratio == 0 {
		return 0, nil
	}
	if step%b.ratio != 0 {
		return 0, &StepNotDivisibleByRatioError{Step: step, Ratio: b.ratio, Builtin: b.name}
	}
	return b.cellsPerInstance * (step / b.ratio), nil
}

func (b *base) GetUsedCells(sm *memory.SegmentManager) uint64 {
	return sm.GetSegmentUsedSize(b.segmentBase.Segment)
}

func (b *base) GetUsedInstances(sm *memory.SegmentManager) uint64 {
	used := b.GetUsedCells(sm)
	if b.cellsPerInstance == 0 {
		return 0
	}
	return ceilDiv(used, b.cellsPerInstance)
}

// finalStack implements the shared spec §4.5 final_stack algorithm: when
// included, pop one word from stackTop-1, require it to be a relocatable
// in this builtin's segment, and verify its offset matches
// used_instances*cells_per_instance.
func (b *base) finalStack(sm *memory.SegmentManager, stackTop memory.Relocatable) (memory.Relocatable, error) {
	if !b.included {
		return stackTop, nil
	}
	ptrAddr, err := stackTop.Sub(1)
	if err != nil {
		return memory.Relocatable{}, &NoStopPointerError{Builtin: b.name}
	}
	stopPtr, err := sm.Memory.GetRelocatable(ptrAddr)
	if err != nil {
		return memory.Relocatable{}, &NoStopPointerError{Builtin: b.name}
	}
	if stopPtr.Segment != b.segmentBase.Segment {
		return memory.Relocatable{}, &InvalidStopPointerError{Builtin: b.name, Reason: "segment mismatch"}
	}
	expected := b.GetUsedInstances(sm) * b.cellsPerInstance
	if stopPtr.Offset != expected {
		return memory.Relocatable{}, &InvalidStopPointerError{Builtin: b.name, Reason: "offset mismatch"}
	}
	return ptrAddr, nil
}

// AsDeducer adapts a Runner's DeduceMemoryCell to memory.Deducer's
// (mem, addr) parameter order, so callers can wire a builtin's segment
// with mem.SetDeducer(runner.Base().Segment, builtins.AsDeducer(runner)).
func AsDeducer(r Runner) memory.Deducer {
	return func(m *memory.Memory, addr memory.Relocatable) (memory.MaybeRelocatable, bool, error) {
		return r.DeduceMemoryCell(addr, m)
	}
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
