package memory

import (
	"fmt"

	"github.com/sarchlab/cairo-vm-go/field"
)

// MaybeRelocatable is the tagged union stored in every memory cell: either
// a field element or a relocatable address (spec §3). Equality is
// structural; ordering is undefined across variants.
type MaybeRelocatable struct {
	isRelocatable bool
	felt          field.Felt
	rel           Relocatable
}

// FromFelt wraps a field element.
func FromFelt(f field.Felt) MaybeRelocatable {
	return MaybeRelocatable{felt: f}
}

// FromRelocatable wraps a relocatable address.
func FromRelocatable(r Relocatable) MaybeRelocatable {
	return MaybeRelocatable{isRelocatable: true, rel: r}
}

// IsRelocatable reports whether the cell holds an address rather than a
// field element.
func (m MaybeRelocatable) IsRelocatable() bool {
	return m.isRelocatable
}

// GetFelt returns the field element, or an error if m holds a relocatable.
func (m MaybeRelocatable) GetFelt() (field.Felt, error) {
	if m.isRelocatable {
		return field.Felt{}, fmt.Errorf("memory: expected a field element, found relocatable %s", m.rel)
	}
	return m.felt, nil
}

// GetRelocatable returns the relocatable, or an error if m holds a felt.
func (m MaybeRelocatable) GetRelocatable() (Relocatable, error) {
	if !m.isRelocatable {
		return Relocatable{}, fmt.Errorf("memory: expected a relocatable, found field element %s", m.felt)
	}
	return m.rel, nil
}

// Equal reports structural equality across variants.
func (m MaybeRelocatable) Equal(other MaybeRelocatable) bool {
	if m.isRelocatable != other.isRelocatable {
		return false
	}
	if m.isRelocatable {
		return m.rel.Equal(other.rel)
	}
	return m.felt.Equal(other.felt)
}

// String renders the held variant.
func (m MaybeRelocatable) String() string {
	if m.isRelocatable {
		return m.rel.String()
	}
	return m.felt.String()
}

// Add implements the VM's res = op0 + op1 rule (spec §4.4): felt+felt is a
// felt, relocatable+felt is a relocatable, relocatable+relocatable is an
// error (two addresses cannot be summed).
func Add(a, b MaybeRelocatable) (MaybeRelocatable, error) {
	switch {
	case !a.isRelocatable && !b.isRelocatable:
		return FromFelt(a.felt.Add(b.felt)), nil
	case a.isRelocatable && !b.isRelocatable:
		n, ok := b.felt.Uint64()
		if !ok {
			return MaybeRelocatable{}, fmt.Errorf("memory: offset %s too large to add to a relocatable", b.felt)
		}
		return FromRelocatable(a.rel.Add(n)), nil
	case !a.isRelocatable && b.isRelocatable:
		n, ok := a.felt.Uint64()
		if !ok {
			return MaybeRelocatable{}, fmt.Errorf("memory: offset %s too large to add to a relocatable", a.felt)
		}
		return FromRelocatable(b.rel.Add(n)), nil
	default:
		return MaybeRelocatable{}, fmt.Errorf("memory: cannot add two relocatables (%s, %s)", a.rel, b.rel)
	}
}

// Sub implements res = a - b: felt-felt is a felt; relocatable-felt is a
// relocatable; relocatable-relocatable (same segment) is a felt holding the
// integer distance; anything else is an error.
func Sub(a, b MaybeRelocatable) (MaybeRelocatable, error) {
	switch {
	case !a.isRelocatable && !b.isRelocatable:
		return FromFelt(a.felt.Sub(b.felt)), nil
	case a.isRelocatable && b.isRelocatable:
		d, err := a.rel.SubRel(b.rel)
		if err != nil {
			return MaybeRelocatable{}, err
		}
		return FromFelt(field.FromUint64(d)), nil
	case a.isRelocatable && !b.isRelocatable:
		n, ok := b.felt.Uint64()
		if !ok {
			return MaybeRelocatable{}, fmt.Errorf("memory: offset %s too large to subtract from a relocatable", b.felt)
		}
		r, err := a.rel.Sub(n)
		if err != nil {
			return MaybeRelocatable{}, err
		}
		return FromRelocatable(r), nil
	default:
		return MaybeRelocatable{}, fmt.Errorf("memory: cannot subtract a relocatable from a field element (%s, %s)", a.felt, b.rel)
	}
}

// Mul implements res = a * b. Only defined for two field elements; spec §3
// classifies multiplication involving a relocatable as an OperandDeduction
// error.
func Mul(a, b MaybeRelocatable) (MaybeRelocatable, error) {
	if a.isRelocatable || b.isRelocatable {
		return MaybeRelocatable{}, fmt.Errorf("memory: cannot multiply a relocatable value")
	}
	return FromFelt(a.felt.Mul(b.felt)), nil
}
