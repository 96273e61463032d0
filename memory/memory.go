package memory

import "sort"

// ValidationRule inspects a freshly written cell and rejects values that
// violate a builtin's invariant (e.g. range-check's "fits in 128 bits",
// spec §4.6). It runs once, at insertion time, never retroactively.
type ValidationRule func(mem *Memory, addr Relocatable, value MaybeRelocatable) error

// Deducer lazily computes the value of a cell nothing has written yet
// (spec §4.8), such as a builtin's output cell or a hint-filled input. It
// returns ok=false when the cell cannot be deduced from what is currently
// in memory.
type Deducer func(mem *Memory, addr Relocatable) (value MaybeRelocatable, ok bool, err error)

type segment struct {
	cells      map[uint64]MaybeRelocatable
	accessed   map[uint64]bool
	rules      []ValidationRule
	deducer    Deducer
	isTemp     bool
}

// Memory is the VM's segmented, write-once address space. Segments are
// created lazily by the first call that writes to or configures them
// (Insert, EnsureSegment, a validation rule or deducer); reading from a
// segment that has never been created returns UnknownMemoryCellError.
type Memory struct {
	segments map[int]*segment
}

// NewMemory returns an empty memory store.
func NewMemory() *Memory {
	return &Memory{segments: make(map[int]*segment)}
}

func (m *Memory) segmentFor(id int) *segment {
	s, ok := m.segments[id]
	if !ok {
		s = &segment{cells: make(map[uint64]MaybeRelocatable), accessed: make(map[uint64]bool)}
		m.segments[id] = s
	}
	return s
}

// EnsureSegment registers segment id if absent, without writing to it.
// Used by the segment manager when it allocates a new segment ahead of
// any writes (e.g. builtin base segments, spec §4.7).
func (m *Memory) EnsureSegment(id int) {
	m.segmentFor(id)
}

// AddValidationRule attaches a rule to segment id, run on every future
// insert into that segment.
func (m *Memory) AddValidationRule(segmentID int, rule ValidationRule) {
	s := m.segmentFor(segmentID)
	s.rules = append(s.rules, rule)
}

// SetDeducer attaches a lazy-deduction hook to segment id, consulted by
// Get when a cell has no value yet.
func (m *Memory) SetDeducer(segmentID int, d Deducer) {
	m.segmentFor(segmentID).deducer = d
}

// MarkTemporary flags segment id as a temporary segment (spec §4.7). The
// flag is only recorded: relocation does not map temporary segments into
// the permanent address space.
func (m *Memory) MarkTemporary(segmentID int) {
	m.segmentFor(segmentID).isTemp = true
}

// Insert writes value at addr. Writing the same value twice is a no-op;
// writing a different value to an already-populated cell is an
// InconsistentMemoryError (memory is write-once).
func (m *Memory) Insert(addr Relocatable, value MaybeRelocatable) error {
	s := m.segmentFor(addr.Segment)
	if existing, ok := s.cells[addr.Offset]; ok {
		if existing.Equal(value) {
			return nil
		}
		return &InconsistentMemoryError{Address: addr, Existing: existing, New: value}
	}
	for _, rule := range s.rules {
		if err := rule(m, addr, value); err != nil {
			return err
		}
	}
	s.cells[addr.Offset] = value
	return nil
}

// Get reads the value at addr, consulting the segment's deducer if the
// cell is empty. Returns UnknownMemoryCellError if nothing is there and
// nothing can be deduced.
func (m *Memory) Get(addr Relocatable) (MaybeRelocatable, error) {
	s := m.segments[addr.Segment]
	if s == nil {
		return MaybeRelocatable{}, &UnknownMemoryCellError{Address: addr}
	}
	if v, ok := s.cells[addr.Offset]; ok {
		return v, nil
	}
	if s.deducer != nil {
		v, ok, err := s.deducer(m, addr)
		if err != nil {
			return MaybeRelocatable{}, err
		}
		if ok {
			if err := m.Insert(addr, v); err != nil {
				return MaybeRelocatable{}, err
			}
			return v, nil
		}
	}
	return MaybeRelocatable{}, &UnknownMemoryCellError{Address: addr}
}

// Peek reads the raw cell at addr without consulting the segment's
// deducer, returning ok=false if nothing has been written there yet.
// Used by operand deduction (spec §4.4 step 3), which must distinguish
// "not yet known" from "known" without forcing a deduction.
func (m *Memory) Peek(addr Relocatable) (MaybeRelocatable, bool) {
	s := m.segments[addr.Segment]
	if s == nil {
		return MaybeRelocatable{}, false
	}
	v, ok := s.cells[addr.Offset]
	return v, ok
}

// GetFelt reads addr and requires it to hold a field element.
func (m *Memory) GetFelt(addr Relocatable) (v MaybeRelocatable, err error) {
	v, err = m.Get(addr)
	if err != nil {
		return MaybeRelocatable{}, err
	}
	if v.IsRelocatable() {
		return MaybeRelocatable{}, &ExpectedIntegerError{Address: addr}
	}
	return v, nil
}

// GetRelocatable reads addr and requires it to hold a relocatable.
func (m *Memory) GetRelocatable(addr Relocatable) (Relocatable, error) {
	v, err := m.Get(addr)
	if err != nil {
		return Relocatable{}, err
	}
	return v.GetRelocatable()
}

// MarkAccessed records that addr participated in a step. Builtin
// GetUsedCells accounting does not read this flag; it uses segment size.
func (m *Memory) MarkAccessed(addr Relocatable) {
	s := m.segmentFor(addr.Segment)
	s.accessed[addr.Offset] = true
}

// IsAccessed reports whether addr was ever marked accessed.
func (m *Memory) IsAccessed(addr Relocatable) bool {
	s := m.segments[addr.Segment]
	return s != nil && s.accessed[addr.Offset]
}

// Has reports whether addr currently holds a value (without deducing).
func (m *Memory) Has(addr Relocatable) bool {
	s := m.segments[addr.Segment]
	if s == nil {
		return false
	}
	_, ok := s.cells[addr.Offset]
	return ok
}

// SegmentSize returns one past the highest populated offset in segment
// id, i.e. the number of cells required to hold it.
func (m *Memory) SegmentSize(segmentID int) uint64 {
	s := m.segments[segmentID]
	if s == nil || len(s.cells) == 0 {
		return 0
	}
	var max uint64
	for off := range s.cells {
		if off+1 > max {
			max = off + 1
		}
	}
	return max
}

// SegmentIDs returns all known segment ids in ascending order.
func (m *Memory) SegmentIDs() []int {
	ids := make([]int, 0, len(m.segments))
	for id := range m.segments {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Cells returns the populated offsets of segment id in ascending order,
// used when producing the relocated memory artifact (spec §6).
func (m *Memory) Cells(segmentID int) []uint64 {
	s := m.segments[segmentID]
	if s == nil {
		return nil
	}
	offs := make([]uint64, 0, len(s.cells))
	for off := range s.cells {
		offs = append(offs, off)
	}
	sort.Slice(offs, func(i, j int) bool { return offs[i] < offs[j] })
	return offs
}
