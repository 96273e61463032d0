package memory

// SegmentManager tracks segment allocation and computes the relocation
// table that flattens the segmented address space into a single linear
// one at the end of a run (spec §4.7).
type SegmentManager struct {
	Memory *Memory

	numSegments    int
	numTempSegments int
	// effectiveSizes[i] is the number of cells segment i must occupy in
	// the relocated trace, set once by ComputeEffectiveSizes.
	effectiveSizes map[int]uint64
}

// NewSegmentManager returns a manager with no segments allocated yet.
func NewSegmentManager() *SegmentManager {
	return &SegmentManager{Memory: NewMemory(), effectiveSizes: make(map[int]uint64)}
}

// Add allocates a new permanent segment and returns its base address.
func (s *SegmentManager) Add() Relocatable {
	id := s.numSegments
	s.numSegments++
	s.Memory.EnsureSegment(id)
	return NewRelocatable(id, 0)
}

// AddTemporary allocates a new temporary segment, addressed with a
// negative segment id starting at -1 (spec §4.7). RelocateSegments covers
// permanent segments only: temporary segments get no relocation entry.
func (s *SegmentManager) AddTemporary() Relocatable {
	s.numTempSegments++
	id := -s.numTempSegments
	s.Memory.EnsureSegment(id)
	s.Memory.MarkTemporary(id)
	return NewRelocatable(id, 0)
}

// LoadData writes values sequentially starting at base, returning the
// address immediately past the last cell written. Used to load program
// bytecode and to build the initial execution stack (spec §5.2).
func (s *SegmentManager) LoadData(base Relocatable, values []MaybeRelocatable) (Relocatable, error) {
	addr := base
	for _, v := range values {
		if err := s.Memory.Insert(addr, v); err != nil {
			return Relocatable{}, err
		}
		addr = addr.Add(1)
	}
	return addr, nil
}

// GetSegmentUsedSize returns the used size of segment id: one past the
// highest offset written (0 if nothing was written).
func (s *SegmentManager) GetSegmentUsedSize(id int) uint64 {
	return s.Memory.SegmentSize(id)
}

// ComputeEffectiveSizes finalizes the size of every permanent segment,
// taking the larger of the naturally populated size and any size a
// builtin runner has reported it needs reserved (e.g. range-check must
// reserve a multiple of its ratio, spec §4.6). A size passed in `reserved`
// is used only when it exceeds the natural size; segments not mentioned
// use their natural size.
func (s *SegmentManager) ComputeEffectiveSizes(reserved map[int]uint64) {
	s.effectiveSizes = make(map[int]uint64, s.numSegments)
	for id := 0; id < s.numSegments; id++ {
		size := s.Memory.SegmentSize(id)
		if r, ok := reserved[id]; ok && r > size {
			size = r
		}
		s.effectiveSizes[id] = size
	}
}

// RelocateSegments builds the relocation table mapping each permanent
// segment to its base offset in the flattened address space:
// reloc[0] = 1 (address 0 is reserved), reloc[k+1] = reloc[k] + size(k).
// ComputeEffectiveSizes must have been called first.
func (s *SegmentManager) RelocateSegments() []uint64 {
	table := make([]uint64, s.numSegments+1)
	table[0] = 1
	for k := 0; k < s.numSegments; k++ {
		table[k+1] = table[k] + s.effectiveSizes[k]
	}
	return table[:s.numSegments]
}

// RelocateAddress flattens a relocatable into a single linear address
// using a previously computed relocation table.
func RelocateAddress(addr Relocatable, table []uint64) uint64 {
	return table[addr.Segment] + addr.Offset
}

// NumSegments returns the number of permanent segments allocated so far.
func (s *SegmentManager) NumSegments() int {
	return s.numSegments
}
