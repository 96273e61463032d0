// Package trace encodes the two artifacts a run produces once finished
// (spec §6): the relocated trace (one `(pc, ap, fp)` triple per step) and
// the relocated memory (one `(address, value)` pair per populated cell),
// both in the fixed binary layout external tooling consumes.
package trace

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sarchlab/cairo-vm-go/field"
	"github.com/sarchlab/cairo-vm-go/memory"
	"github.com/sarchlab/cairo-vm-go/vm"
)

// EncodeTrace writes entries as 3 little-endian uint64s each (pc, ap, fp,
// in that order), per spec §6.
func EncodeTrace(w io.Writer, entries []vm.Trace) error {
	buf := make([]byte, 8)
	for i, e := range entries {
		for _, word := range [3]uint64{e.Pc, e.Ap, e.Fp} {
			binary.LittleEndian.PutUint64(buf, word)
			if _, err := w.Write(buf); err != nil {
				return fmt.Errorf("trace: writing entry %d: %w", i, err)
			}
		}
	}
	return nil
}

// RelocatedMemoryEntry is one populated cell in the flattened address
// space, ready for serialization.
type RelocatedMemoryEntry struct {
	Address uint64
	Value   field.Felt
}

// RelocateMemory walks every populated cell across every permanent segment
// of sm and flattens it into the linear address space described by table
// (as produced by sm.RelocateSegments()), in ascending address order.
// Relocatable values are themselves flattened into a field element holding
// their linear address (spec §6: the artifact stores only field elements).
func RelocateMemory(sm *memory.SegmentManager, table []uint64) ([]RelocatedMemoryEntry, error) {
	var entries []RelocatedMemoryEntry
	for segmentID := 0; segmentID < sm.NumSegments(); segmentID++ {
		for _, offset := range sm.Memory.Cells(segmentID) {
			addr := memory.NewRelocatable(segmentID, offset)
			v, err := sm.Memory.Get(addr)
			if err != nil {
				return nil, fmt.Errorf("trace: reading %s: %w", addr, err)
			}
			felt, err := relocatedValue(v, table)
			if err != nil {
				return nil, fmt.Errorf("trace: relocating value at %s: %w", addr, err)
			}
			entries = append(entries, RelocatedMemoryEntry{
				Address: memory.RelocateAddress(addr, table),
				Value:   felt,
			})
		}
	}
	return entries, nil
}

// relocatedValue returns v as a field element, flattening a relocatable
// into its linear address first.
func relocatedValue(v memory.MaybeRelocatable, table []uint64) (field.Felt, error) {
	if !v.IsRelocatable() {
		return v.GetFelt()
	}
	rel, err := v.GetRelocatable()
	if err != nil {
		return field.Felt{}, err
	}
	return field.FromUint64(memory.RelocateAddress(rel, table)), nil
}

// EncodeMemory writes entries as an 8-byte little-endian address followed
// by a 32-byte big-endian field element, per spec §6.
func EncodeMemory(w io.Writer, entries []RelocatedMemoryEntry) error {
	addrBuf := make([]byte, 8)
	for i, e := range entries {
		binary.LittleEndian.PutUint64(addrBuf, e.Address)
		if _, err := w.Write(addrBuf); err != nil {
			return fmt.Errorf("trace: writing address %d: %w", i, err)
		}
		valueBuf := e.Value.BytesBE()
		if _, err := w.Write(valueBuf[:]); err != nil {
			return fmt.Errorf("trace: writing value %d: %w", i, err)
		}
	}
	return nil
}
