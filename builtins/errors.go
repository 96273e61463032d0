package builtins

import (
	"fmt"

	"github.com/sarchlab/cairo-vm-go/memory"
)

// StepNotDivisibleByRatioError reports that GetAllocatedMemoryUnits was
// asked for a step count that doesn't divide evenly by the builtin's
// ratio (spec §4.5).
type StepNotDivisibleByRatioError struct {
	Step, Ratio uint64
	Builtin     string
}

func (e *StepNotDivisibleByRatioError) Error() string {
	return fmt.Sprintf("builtins: %s: step %d not divisible by ratio %d", e.Builtin, e.Step, e.Ratio)
}

// NoStopPointerError reports a final_stack call with nothing to pop.
type NoStopPointerError struct {
	Builtin string
}

func (e *NoStopPointerError) Error() string {
	return fmt.Sprintf("builtins: %s: no stop pointer on the execution stack", e.Builtin)
}

// InvalidStopPointerError reports a popped stop pointer that fails
// segment or offset validation.
type InvalidStopPointerError struct {
	Builtin string
	Reason  string
}

func (e *InvalidStopPointerError) Error() string {
	return fmt.Sprintf("builtins: %s: invalid stop pointer: %s", e.Builtin, e.Reason)
}

// InsufficientAllocatedCellsError reports used_cells > allocated cells at
// end-of-run verification (spec §4.7 step 5).
type InsufficientAllocatedCellsError struct {
	Builtin         string
	Used, Allocated uint64
}

func (e *InsufficientAllocatedCellsError) Error() string {
	return fmt.Sprintf("builtins: %s: used %d cells but only %d allocated", e.Builtin, e.Used, e.Allocated)
}

// InputOutOfRangeError reports a builtin input that fails its bound
// check (e.g. range-check's 2^(16n) bound, Keccak's state_rep bound,
// bitwise's total_n_bits bound).
type InputOutOfRangeError struct {
	Builtin string
	Address memory.Relocatable
	Bits    uint
}

func (e *InputOutOfRangeError) Error() string {
	return fmt.Sprintf("builtins: %s: input at %s exceeds %d bits", e.Builtin, e.Address, e.Bits)
}

// UnknownLayoutError reports an unrecognized layout name passed to NewSet.
type UnknownLayoutError struct {
	Layout string
}

func (e *UnknownLayoutError) Error() string {
	return fmt.Sprintf("builtins: unknown layout %q", e.Layout)
}

// MissingSignatureError reports an ECDSA message cell written without a
// prior AddSignature call for its instance's pubkey address.
type MissingSignatureError struct {
	PubkeyAddr memory.Relocatable
}

func (e *MissingSignatureError) Error() string {
	return fmt.Sprintf("builtins: ecdsa: no signature registered for pubkey at %s", e.PubkeyAddr)
}

// InvalidSignatureError reports an ECDSA (pubkey, message) pair that
// fails verification against its registered signature.
type InvalidSignatureError struct {
	PubkeyAddr memory.Relocatable
}

func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf("builtins: ecdsa: signature does not verify for pubkey at %s", e.PubkeyAddr)
}
