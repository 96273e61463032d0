// Package runner orchestrates a complete Cairo program execution: segment
// setup, the initial stack, the step-engine loop, builtin finalization,
// cell-budget verification, and relocation into the two output artifacts
// (spec §4.7).
package runner

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/cairo-vm-go/builtins"
	"github.com/sarchlab/cairo-vm-go/field"
	"github.com/sarchlab/cairo-vm-go/memory"
	"github.com/sarchlab/cairo-vm-go/program"
	"github.com/sarchlab/cairo-vm-go/trace"
	"github.com/sarchlab/cairo-vm-go/vm"
)

// CairoRunner drives one program from a loaded artifact through to its
// relocated artifacts. Each phase is exposed individually so a caller can
// inspect state between them (e.g. a debugger stepping instruction by
// instruction); Execute runs all of them in order.
type CairoRunner struct {
	program *program.Program
	layout  *builtins.Set

	sm *memory.SegmentManager
	vm *vm.VirtualMachine

	programBase   memory.Relocatable
	executionBase memory.Relocatable
	endPc         memory.Relocatable

	entrypoint uint64
	hintRunner vm.HintRunner
	maxSteps   int64
	proofMode  bool

	log *logrus.Entry
}

// Option configures a CairoRunner at construction time.
type Option func(*CairoRunner)

// WithEntrypoint sets the program-counter offset execution starts at.
// The compiled-program artifact resolves named entrypoints to offsets
// before reaching the runner (spec §6: identifiers are a hint-interface
// concern, not a core one); this option is where that resolved offset
// enters the core. Defaults to 0.
func WithEntrypoint(offset uint64) Option {
	return func(r *CairoRunner) { r.entrypoint = offset }
}

// WithHintRunner installs the hint processor consulted before each step.
// Omitting it runs with no hint support, which the step engine must
// tolerate (spec §9).
func WithHintRunner(h vm.HintRunner) Option {
	return func(r *CairoRunner) { r.hintRunner = h }
}

// WithMaxSteps bounds how many steps Run will take before giving up with
// ErrEndOfProgramUnreachable. 0 (the default) means unbounded.
func WithMaxSteps(n int64) Option {
	return func(r *CairoRunner) { r.maxSteps = n }
}

// WithProofMode enables full (pc, ap, fp) trace recording, required to
// produce the relocated trace artifact.
func WithProofMode() Option {
	return func(r *CairoRunner) { r.proofMode = true }
}

// WithLogger overrides the logger the runner reports phase transitions
// to. Defaults to the standard logger.
func WithLogger(l *logrus.Logger) Option {
	return func(r *CairoRunner) { r.log = l.WithField("component", "runner") }
}

// NewCairoRunner builds a runner for prog under the named builtin layout.
func NewCairoRunner(prog *program.Program, layout builtins.Layout, opts ...Option) (*CairoRunner, error) {
	set, err := builtins.NewSet(layout)
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}
	r := &CairoRunner{
		program: prog,
		layout:  set,
		sm:      memory.NewSegmentManager(),
		log:     logrus.StandardLogger().WithField("component", "runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Initialize allocates the program, execution, and builtin segments,
// writes the program's bytecode, wires every builtin's validation rule
// and deducer into memory, builds the initial stack, and starts the VM
// at the configured entrypoint (spec §4.7 step 1-2).
func (r *CairoRunner) Initialize() error {
	r.log.WithField("builtins", len(r.layout.Runners())).Info("initializing")

	if err := r.program.CheckPrime(); err != nil {
		return fmt.Errorf("runner: %w", err)
	}
	felts, err := r.program.Felts()
	if err != nil {
		return fmt.Errorf("runner: %w", err)
	}

	r.programBase = r.sm.Add()
	r.executionBase = r.sm.Add()
	if r.programBase.Segment != vm.ProgramSegment || r.executionBase.Segment != vm.ExecutionSegment {
		return fmt.Errorf("runner: program/execution segments allocated out of canonical order")
	}

	progValues := make([]memory.MaybeRelocatable, len(felts))
	for i, f := range felts {
		progValues[i] = memory.FromFelt(f)
	}
	if _, err := r.sm.LoadData(r.programBase, progValues); err != nil {
		return fmt.Errorf("runner: loading program data: %w", err)
	}

	for _, b := range r.layout.Runners() {
		b.InitializeSegments(r.sm)
		b.AddValidationRule(r.sm.Memory)
		r.sm.Memory.SetDeducer(b.Base().Segment, builtins.AsDeducer(b))
	}

	var stack []memory.MaybeRelocatable
	for _, b := range r.layout.Runners() {
		stack = append(stack, b.InitialStack()...)
	}
	r.endPc = memory.NewRelocatable(r.programBase.Segment, uint64(len(felts)))
	stack = append(stack, memory.FromRelocatable(r.endPc), memory.FromFelt(field.Zero))

	stackTop, err := r.sm.LoadData(r.executionBase, stack)
	if err != nil {
		return fmt.Errorf("runner: writing initial stack: %w", err)
	}

	initialCtx := vm.Context{
		Pc: memory.NewRelocatable(r.programBase.Segment, r.entrypoint),
		Ap: stackTop.Offset,
		Fp: stackTop.Offset,
	}
	r.vm = vm.NewVirtualMachine(initialCtx, r.sm.Memory, vm.Config{ProofMode: r.proofMode})
	return nil
}

// Run drives the step engine until pc reaches the sentinel end address
// (spec §4.7 step 3).
func (r *CairoRunner) Run() error {
	r.log.Info("running")
	if err := r.vm.RunUntilPC(r.endPc, r.hintRunner, r.maxSteps); err != nil {
		return fmt.Errorf("runner: %w", err)
	}
	return nil
}

// Finalize pops each builtin's stop pointer off the execution stack tail,
// in reverse canonical order (spec §4.7 step 4). It does not check that
// the stack below the popped stop pointers has been fully consumed.
func (r *CairoRunner) Finalize() error {
	r.log.Info("finalizing")
	runners := r.layout.Runners()
	stackTop := memory.NewRelocatable(vm.ExecutionSegment, r.vm.Context.Ap)
	for i := len(runners) - 1; i >= 0; i-- {
		var err error
		stackTop, err = runners[i].FinalStack(r.sm, stackTop)
		if err != nil {
			return fmt.Errorf("runner: finalizing %s: %w", runners[i].Name(), err)
		}
	}
	return nil
}

// VerifyAllocatedCells checks used_cells <= allocated_cells for every
// builtin (spec §4.7 step 5). A builtin with ratio 0 has no step-derived
// budget and is skipped.
func (r *CairoRunner) VerifyAllocatedCells() error {
	for _, b := range r.layout.Runners() {
		if b.Ratio() == 0 {
			continue
		}
		allocated, err := b.GetAllocatedMemoryUnits(r.vm.Step)
		if err != nil {
			return fmt.Errorf("runner: %w", err)
		}
		used := b.GetUsedCells(r.sm)
		if used > allocated {
			return &builtins.InsufficientAllocatedCellsError{Builtin: b.Name(), Used: used, Allocated: allocated}
		}
	}
	return nil
}

// RelocationResult is the pair of artifacts a finished run produces
// (spec §4.7 step 6, §6).
type RelocationResult struct {
	Trace  []vm.Trace
	Memory []trace.RelocatedMemoryEntry
}

// Relocate computes segment sizes and the relocation table, then flattens
// the recorded trace (if proof mode was enabled) and every populated
// memory cell into the two artifact shapes (spec §4.7 step 6).
func (r *CairoRunner) Relocate() (RelocationResult, error) {
	r.log.Info("relocating")
	r.sm.ComputeEffectiveSizes(nil)
	table := r.sm.RelocateSegments()

	relocatedMemory, err := trace.RelocateMemory(r.sm, table)
	if err != nil {
		return RelocationResult{}, fmt.Errorf("runner: %w", err)
	}
	return RelocationResult{
		Trace:  r.vm.RelocatedTrace(table),
		Memory: relocatedMemory,
	}, nil
}

// Execute runs every phase in order: Initialize, Run, Finalize,
// VerifyAllocatedCells, Relocate.
func (r *CairoRunner) Execute() (RelocationResult, error) {
	if err := r.Initialize(); err != nil {
		return RelocationResult{}, err
	}
	if err := r.Run(); err != nil {
		return RelocationResult{}, err
	}
	if err := r.Finalize(); err != nil {
		return RelocationResult{}, err
	}
	if err := r.VerifyAllocatedCells(); err != nil {
		return RelocationResult{}, err
	}
	return r.Relocate()
}

// Memory exposes the run's underlying memory store, e.g. for a CLI to
// inspect the output builtin's segment after a run.
func (r *CairoRunner) Memory() *memory.Memory { return r.sm.Memory }

// Context returns the VM's current register file.
func (r *CairoRunner) Context() vm.Context { return r.vm.Context }

// Step returns the number of steps executed so far.
func (r *CairoRunner) Step() uint64 { return r.vm.Step }

// Builtins returns the runner's configured builtin set.
func (r *CairoRunner) Builtins() *builtins.Set { return r.layout }

// Resources is an ExecutionResources-style summary of one run: total steps
// taken plus, per included builtin, the number of instances its segment
// ended up holding. Grounded on original_source's
// get_used_cells_and_allocated_size/ExecutionResources accounting, useful
// for a CLI's verbose output the way the teacher's benchmark harness prints
// per-run validation checks.
type Resources struct {
	Steps        uint64
	BuiltinUsage map[string]uint64
}

// Resources reports the step count and per-builtin used-instance counts for
// the run so far. Safe to call after Run (or Execute) has completed.
func (r *CairoRunner) Resources() Resources {
	usage := make(map[string]uint64, len(r.layout.Runners()))
	for _, b := range r.layout.Runners() {
		usage[b.Name()] = b.GetUsedInstances(r.sm)
	}
	return Resources{Steps: r.vm.Step, BuiltinUsage: usage}
}

// WriteOutput writes every populated cell of the output segment to w, one
// field element's decimal string per line, in address order. Returns nil
// without writing anything if no output builtin is included in the layout.
func (r *CairoRunner) WriteOutput(w io.Writer) error {
	out := r.layout.Output
	if out == nil || !out.Included() {
		return nil
	}
	segment := out.Base().Segment
	for _, offset := range r.sm.Memory.Cells(segment) {
		v, err := r.sm.Memory.Get(memory.NewRelocatable(segment, offset))
		if err != nil {
			return fmt.Errorf("runner: reading output cell %d: %w", offset, err)
		}
		felt, err := v.GetFelt()
		if err != nil {
			return fmt.Errorf("runner: output cell %d: %w", offset, err)
		}
		if _, err := fmt.Fprintln(w, felt.String()); err != nil {
			return fmt.Errorf("runner: writing output: %w", err)
		}
	}
	return nil
}
