// Package hints implements the pluggable hint-execution boundary the VM's
// step loop calls through (spec §5.3): user-supplied Cairo/Python snippets
// keyed by program counter, executed immediately before their instruction.
package hints

import (
	"fmt"

	"github.com/sarchlab/cairo-vm-go/vm"
)

// Processor executes the hint(s) registered at a given program counter.
// A real implementation would interpret the hint's source (e.g. a Python
// subset); this package only supplies the dispatch boundary and a
// NoOpProcessor, matching spec §9's decision to keep hint execution out
// of the VM's core.
type Processor interface {
	ExecuteHint(pcOffset uint64, code string, vm *vm.VirtualMachine, scopes *ExecutionScopes) error
}

// NoOpProcessor ignores every hint. The VM's core must run correctly
// against it for any hint-free program, and RunStep must not special-case
// a nil Processor differently from this one.
type NoOpProcessor struct{}

func (NoOpProcessor) ExecuteHint(uint64, string, *vm.VirtualMachine, *ExecutionScopes) error {
	return nil
}

// ExecutionScopes is a stack of named variable scopes, mirroring the
// reference implementation's hint scope stack: a hint can stash state in
// its current scope (e.g. a loop counter) and push a child scope for
// nested control flow, popped again once that flow ends.
type ExecutionScopes struct {
	frames []map[string]any
}

// NewExecutionScopes returns a scope stack with a single, empty root
// frame, matching the state a hint processor starts a run with.
func NewExecutionScopes() *ExecutionScopes {
	return &ExecutionScopes{frames: []map[string]any{{}}}
}

// Enter pushes a new, empty frame.
func (s *ExecutionScopes) Enter() {
	s.frames = append(s.frames, map[string]any{})
}

// Exit pops the current frame. Exiting the root frame is a programming
// error in any caller, since the root frame always exists for a run's
// lifetime.
func (s *ExecutionScopes) Exit() error {
	if len(s.frames) <= 1 {
		return fmt.Errorf("hints: cannot exit the root scope")
	}
	s.frames = s.frames[:len(s.frames)-1]
	return nil
}

// Set stores a value in the current (innermost) frame.
func (s *ExecutionScopes) Set(name string, value any) {
	s.frames[len(s.frames)-1][name] = value
}

// Get looks up name starting from the innermost frame outward, the way a
// nested hint expects to see variables set by an enclosing one.
func (s *ExecutionScopes) Get(name string) (any, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if v, ok := s.frames[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Runner adapts a Processor and a program's pc-keyed hint table into a
// vm.HintRunner.
type Runner struct {
	processor Processor
	hints     map[uint64][]string
	scopes    *ExecutionScopes
}

// Option configures a Runner.
type Option func(*Runner)

// WithScopes supplies a pre-built scope stack (e.g. resumed from a prior
// run segment), instead of the fresh one NewRunner creates by default.
func WithScopes(scopes *ExecutionScopes) Option {
	return func(r *Runner) { r.scopes = scopes }
}

// NewRunner builds a Runner dispatching through processor. hints maps a
// program-counter offset (within the program segment) to the ordered
// hint source snippets registered there.
func NewRunner(processor Processor, hints map[uint64][]string, opts ...Option) *Runner {
	r := &Runner{
		processor: processor,
		hints:     hints,
		scopes:    NewExecutionScopes(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scopes returns the runner's scope stack.
func (r *Runner) Scopes() *ExecutionScopes { return r.scopes }

// RunHint implements vm.HintRunner: it runs every hint registered at the
// VM's current pc offset, in registration order.
func (r *Runner) RunHint(vmachine *vm.VirtualMachine) error {
	codes, ok := r.hints[vmachine.Context.Pc.Offset]
	if !ok {
		return nil
	}
	for i, code := range codes {
		if err := r.processor.ExecuteHint(vmachine.Context.Pc.Offset, code, vmachine, r.scopes); err != nil {
			return fmt.Errorf("hints: executing hint %d at pc offset %d: %w", i, vmachine.Context.Pc.Offset, err)
		}
	}
	return nil
}
