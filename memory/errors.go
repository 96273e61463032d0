package memory

import "fmt"

// InconsistentMemoryError reports a write to a cell that already holds a
// different value. Memory is write-once (spec §3): the second write is
// always the fault, never the first.
type InconsistentMemoryError struct {
	Address  Relocatable
	Existing MaybeRelocatable
	New      MaybeRelocatable
}

func (e *InconsistentMemoryError) Error() string {
	return fmt.Sprintf("memory: inconsistent write at %s: existing %s, new %s", e.Address, e.Existing, e.New)
}

// UnknownMemoryCellError reports a read from a cell nothing has written or
// deduced.
type UnknownMemoryCellError struct {
	Address Relocatable
}

func (e *UnknownMemoryCellError) Error() string {
	return fmt.Sprintf("memory: unknown cell at %s", e.Address)
}

// ExpectedIntegerError reports a read that required a field element but
// found a relocatable.
type ExpectedIntegerError struct {
	Address Relocatable
}

func (e *ExpectedIntegerError) Error() string {
	return fmt.Sprintf("memory: expected a field element at %s, found a relocatable", e.Address)
}

// ExpectedRelocatableError reports a read that required a relocatable but
// found a field element.
type ExpectedRelocatableError struct {
	Address Relocatable
}

func (e *ExpectedRelocatableError) Error() string {
	return fmt.Sprintf("memory: expected a relocatable at %s, found a field element", e.Address)
}

// ValidationFailedError reports a segment validation rule rejecting a
// value at the moment it is inserted (spec §4.6).
type ValidationFailedError struct {
	Address Relocatable
	Reason  string
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("memory: validation failed at %s: %s", e.Address, e.Reason)
}

// UnknownSegmentError reports an access to a segment the manager never
// allocated.
type UnknownSegmentError struct {
	Segment int
}

func (e *UnknownSegmentError) Error() string {
	return fmt.Sprintf("memory: unknown segment %d", e.Segment)
}
