// Package field implements arithmetic over the Cairo prime field.
package field

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Felt is an element of Z/PZ where P is the Cairo prime
// 2^251 + 17*2^192 + 1. The zero value is the field element 0.
type Felt struct {
	v uint256.Int
}

// primeHex is P = 2^251 + 17*2^192 + 1 in hex.
const primeHex = "0x800000000000011000000000000000000000000000000000000000000000001"

var prime uint256.Int

func init() {
	p, err := uint256.FromHex(primeHex)
	if err != nil {
		panic(fmt.Sprintf("field: bad prime constant: %v", err))
	}
	prime = *p
}

// Prime returns a copy of the Cairo field modulus.
func Prime() Felt {
	return Felt{v: prime}
}

// Zero is the additive identity.
var Zero = Felt{}

// One is the multiplicative identity.
var One = FromUint64(1)

// FromUint64 builds a Felt from a small unsigned integer.
func FromUint64(x uint64) Felt {
	var f Felt
	f.v.SetUint64(x)
	return f
}

// FromBytesBE interprets buf as a big-endian integer, reduced mod P.
// buf must be at most 32 bytes.
func FromBytesBE(buf []byte) (Felt, error) {
	if len(buf) > 32 {
		return Felt{}, fmt.Errorf("field: byte slice of length %d exceeds 32 bytes", len(buf))
	}
	var f Felt
	f.v.SetBytes(buf)
	f.v.Mod(&f.v, &prime)
	return f, nil
}

// FromHex parses a "0x..."-prefixed hex string, reduced mod P.
func FromHex(s string) (Felt, error) {
	v, err := uint256.FromHex(s)
	if err != nil {
		return Felt{}, fmt.Errorf("field: invalid hex literal %q: %w", s, err)
	}
	var f Felt
	f.v.Mod(v, &prime)
	return f, nil
}

// BytesBE returns the 32-byte big-endian encoding of f, used by the
// relocated-memory artifact (see trace.EncodeMemory).
func (f Felt) BytesBE() [32]byte {
	return f.v.Bytes32()
}

// Add returns f + g mod P.
func (f Felt) Add(g Felt) Felt {
	var r Felt
	r.v.AddMod(&f.v, &g.v, &prime)
	return r
}

// Sub returns f - g mod P.
func (f Felt) Sub(g Felt) Felt {
	var r Felt
	// uint256 has no SubMod; emulate via (f + (P - g)) mod P.
	var negG uint256.Int
	negG.Sub(&prime, &g.v)
	negG.Mod(&negG, &prime)
	r.v.AddMod(&f.v, &negG, &prime)
	return r
}

// Mul returns f * g mod P.
func (f Felt) Mul(g Felt) Felt {
	var r Felt
	r.v.MulMod(&f.v, &g.v, &prime)
	return r
}

// Neg returns -f mod P.
func (f Felt) Neg() Felt {
	return Zero.Sub(f)
}

// Inverse returns the multiplicative inverse of f via Fermat's little
// theorem (f^(P-2) mod P). Reports an error for f == 0.
func (f Felt) Inverse() (Felt, error) {
	if f.IsZero() {
		return Felt{}, fmt.Errorf("field: inverse of zero is undefined")
	}
	var exp uint256.Int
	exp.Sub(&prime, uint256.NewInt(2))
	// uint256's Exp has no modulus parameter, so the exponentiation is
	// done with explicit modular squaring below.
	return modPow(f, exp), nil
}

// modPow computes base^exp mod P via square-and-multiply, since
// uint256.Exp has no modulus parameter.
func modPow(base Felt, exp uint256.Int) Felt {
	result := One
	b := base
	e := exp
	one := uint256.NewInt(1)
	zero := uint256.NewInt(0)
	for e.Cmp(zero) != 0 {
		var bit uint256.Int
		bit.And(&e, one)
		if bit.Cmp(one) == 0 {
			result = result.Mul(b)
		}
		b = b.Mul(b)
		e.Rsh(&e, 1)
	}
	return result
}

// Lsh returns f << n mod P, used for the range-bound checks the builtins
// and decoder rely on (values are always small shifts: e.g. 16, 64, 128, 251).
func (f Felt) Lsh(n uint) Felt {
	var r Felt
	r.v.Lsh(&f.v, n)
	r.v.Mod(&r.v, &prime)
	return r
}

// Cmp returns -1, 0 or 1 comparing f and g as unsigned integers in [0, P).
func (f Felt) Cmp(g Felt) int {
	return f.v.Cmp(&g.v)
}

// IsZero reports whether f is the additive identity.
func (f Felt) IsZero() bool {
	return f.v.IsZero()
}

// LessThanPowerOfTwo reports whether f < 2^bits, used by the range-check
// and bitwise validation rules and the Keccak input bound (spec §4.6).
func (f Felt) LessThanPowerOfTwo(bits uint) bool {
	bound := One.Lsh(bits)
	// if bits >= 252 the shift itself wraps mod P; callers never ask for
	// bounds that large in practice (range-check parts top out well below it).
	return f.Cmp(bound) < 0
}

// Words returns the four 64-bit little-endian limbs of f's canonical
// representative, used by callers (e.g. builtins.scalarMul) that need to
// walk individual bits without a modular round trip.
func (f Felt) Words() [4]uint64 {
	return [4]uint64(f.v)
}

// FromWords builds a Felt directly from four 64-bit little-endian limbs,
// the inverse of Words. Used by callers (e.g. builtins.BitwiseRunner) that
// compute limb-wise over already-bounded operands and know the result
// still fits below the prime without a modular reduction.
func FromWords(words [4]uint64) Felt {
	return Felt{v: uint256.Int(words)}
}

// Uint64 returns f as a uint64, with ok=false if f does not fit.
func (f Felt) Uint64() (val uint64, ok bool) {
	if !f.v.IsUint64() {
		return 0, false
	}
	return f.v.Uint64(), true
}

// String renders f in decimal.
func (f Felt) String() string {
	return f.v.Dec()
}

// Equal reports structural equality.
func (f Felt) Equal(g Felt) bool {
	return f.v.Eq(&g.v)
}
