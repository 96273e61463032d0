package builtins

// Layout names the standard builtin sets a CairoRunner can be
// configured with, matching the reference implementation's instance
// definitions (original_source/.../builtins_instance_def.rs).
type Layout string

const (
	LayoutPlain                Layout = "plain"
	LayoutSmall                Layout = "small"
	LayoutDex                  Layout = "dex"
	LayoutPerpetualWithBitwise Layout = "perpetual_with_bitwise"
	LayoutBitwise              Layout = "bitwise"
	LayoutRecursive            Layout = "recursive"
	LayoutAll                  Layout = "all"
)

// Set is the ordered collection of runners a layout wires up; order
// matches the reference implementation's stack-pointer convention
// (output, pedersen, range_check, ecdsa, bitwise, ec_op, keccak,
// poseidon).
type Set struct {
	Output     *OutputRunner
	Pedersen   *PedersenRunner
	RangeCheck *RangeCheckRunner
	Ecdsa      *EcdsaRunner
	Bitwise    *BitwiseRunner
	EcOp       *EcOpRunner
	Keccak     *KeccakRunner
	Poseidon   *PoseidonRunner
}

// Runners returns the set's non-nil runners in stack order.
func (s *Set) Runners() []Runner {
	var rs []Runner
	if s.Output != nil {
		rs = append(rs, s.Output)
	}
	if s.Pedersen != nil {
		rs = append(rs, s.Pedersen)
	}
	if s.RangeCheck != nil {
		rs = append(rs, s.RangeCheck)
	}
	if s.Ecdsa != nil {
		rs = append(rs, s.Ecdsa)
	}
	if s.Bitwise != nil {
		rs = append(rs, s.Bitwise)
	}
	if s.EcOp != nil {
		rs = append(rs, s.EcOp)
	}
	if s.Keccak != nil {
		rs = append(rs, s.Keccak)
	}
	if s.Poseidon != nil {
		rs = append(rs, s.Poseidon)
	}
	return rs
}

// NewSet builds the builtin runner set for a named layout. Ratios and
// cell-bound parameters mirror the reference definitions' defaults
// (pedersen ratio 32/1, range-check 8 parts/ratio 8, ecdsa ratio 2048,
// bitwise ratio 64/251 total bits, ec_op ratio 1024/256 scalar bits, keccak ratio
// 2048 with state_rep [200;8]).
func NewSet(layout Layout) (*Set, error) {
	switch layout {
	case LayoutPlain:
		return &Set{}, nil
	case LayoutSmall, LayoutDex:
		return &Set{
			Output:     NewOutputRunner(true),
			Pedersen:   NewPedersenRunner(true, 32),
			RangeCheck: NewRangeCheckRunner(true, 8, 8),
			Ecdsa:      NewEcdsaRunner(true, 2048),
		}, nil
	case LayoutPerpetualWithBitwise:
		return &Set{
			Output:     NewOutputRunner(true),
			Pedersen:   NewPedersenRunner(true, 32),
			RangeCheck: NewRangeCheckRunner(true, 8, 8),
			Ecdsa:      NewEcdsaRunner(true, 2048),
			Bitwise:    NewBitwiseRunner(true, 64, 251),
			EcOp:       NewEcOpRunner(true, 1024, 256),
		}, nil
	case LayoutBitwise:
		return &Set{
			Output:     NewOutputRunner(true),
			Pedersen:   NewPedersenRunner(true, 256),
			RangeCheck: NewRangeCheckRunner(true, 8, 8),
			Ecdsa:      NewEcdsaRunner(true, 1024),
			Bitwise:    NewBitwiseRunner(true, 8, 251),
		}, nil
	case LayoutRecursive:
		return &Set{
			Output:     NewOutputRunner(true),
			Pedersen:   NewPedersenRunner(true, 256),
			RangeCheck: NewRangeCheckRunner(true, 8, 8),
			Bitwise:    NewBitwiseRunner(true, 16, 251),
			Keccak:     NewKeccakRunner(true, 2048, repeat(200, 8)),
		}, nil
	case LayoutAll:
		return &Set{
			Output:     NewOutputRunner(true),
			Pedersen:   NewPedersenRunner(true, 32),
			RangeCheck: NewRangeCheckRunner(true, 8, 8),
			Ecdsa:      NewEcdsaRunner(true, 2048),
			Bitwise:    NewBitwiseRunner(true, 64, 251),
			EcOp:       NewEcOpRunner(true, 1024, 256),
			Poseidon:   NewPoseidonRunner(true, 32),
		}, nil
	default:
		return nil, &UnknownLayoutError{Layout: string(layout)}
	}
}

func repeat(v uint, n int) []uint {
	out := make([]uint, n)
	for i := range out {
		out[i] = v
	}
	return out
}
