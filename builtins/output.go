package builtins

import "github.com/sarchlab/cairo-vm-go/memory"

// OutputRunner exposes the program's public output segment. It never
// deduces anything: every cell is written directly by the program
// (spec §4.6).
type OutputRunner struct {
	base
}

// NewOutputRunner builds the output builtin. It has no per-instance
// structure, so cellsPerInstance/nInputCells/ratio are all 1.
func NewOutputRunner(incl bool) *OutputRunner {
	return &OutputRunner{base: base{
		name:             "output",
		included:         included(incl),
		ratio:            1,
		cellsPerInstance: 1,
		nInputCells:      1,
	}}
}

func (r *OutputRunner) AddValidationRule(mem *memory.Memory) {}

func (r *OutputRunner) DeduceMemoryCell(addr memory.Relocatable, mem *memory.Memory) (memory.MaybeRelocatable, bool, error) {
	return memory.MaybeRelocatable{}, false, nil
}

func (r *OutputRunner) FinalStack(sm *memory.SegmentManager, stackTop memory.Relocatable) (memory.Relocatable, error) {
	return r.finalStack(sm, stackTop)
}
