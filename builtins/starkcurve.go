package builtins

import "github.com/sarchlab/cairo-vm-go/field"

// point is an affine point on the short Weierstrass STARK curve
// y^2 = x^3 + alpha*x + beta (mod P). EC-op and ECDSA deduce over this
// curve (spec §4.6); alpha/beta match the standard Cairo curve.
type point struct {
	x, y field.Felt
	zero bool // the point at infinity
}

var (
	curveAlpha = field.One
	curveBeta  = mustFeltFromHex("0x6f21413efbe40de150e596d72f7a8c5609ad26c15c915c1f4cdfcb99cee9e89")
)

func mustFeltFromHex(s string) field.Felt {
	f, err := field.FromHex(s)
	if err != nil {
		panic(err)
	}
	return f
}

func infinity() point { return point{zero: true} }

// add implements affine point addition/doubling on the STARK curve.
func (p point) add(q point) (point, error) {
	if p.zero {
		return q, nil
	}
	if q.zero {
		return p, nil
	}

	var lambda field.Felt
	if p.x.Equal(q.x) {
		if p.y.Equal(q.y.Neg()) {
			return infinity(), nil
		}
		// doubling: lambda = (3x^2 + alpha) / 2y
		three := field.FromUint64(3)
		num := three.Mul(p.x.Mul(p.x)).Add(curveAlpha)
		denomInv, err := p.y.Add(p.y).Inverse()
		if err != nil {
			return point{}, err
		}
		lambda = num.Mul(denomInv)
	} else {
		num := q.y.Sub(p.y)
		denomInv, err := q.x.Sub(p.x).Inverse()
		if err != nil {
			return point{}, err
		}
		lambda = num.Mul(denomInv)
	}

	rx := lambda.Mul(lambda).Sub(p.x).Sub(q.x)
	ry := lambda.Mul(p.x.Sub(rx)).Sub(p.y)
	return point{x: rx, y: ry}, nil
}

// scalarMul computes n*p via double-and-add, where n is given as the
// little-endian bit sequence of a field element up to nBits bits
// (ec_op's scalar, spec §4.6, is a full field element).
func (p point) scalarMul(n field.Felt, nBits uint) (point, error) {
	result := infinity()
	addend := p
	words := n.Words()
	for i := uint(0); i < nBits; i++ {
		if bitAt(words, i) {
			var err error
			result, err = result.add(addend)
			if err != nil {
				return point{}, err
			}
		}
		var err error
		addend, err = addend.add(addend)
		if err != nil {
			return point{}, err
		}
	}
	return result, nil
}

// bitAt returns bit i (0 = least significant) of a Felt's little-endian
// 64-bit limb words, as returned by field.Felt.Words.
func bitAt(words [4]uint64, i uint) bool {
	limb := words[i/64]
	return (limb>>(i%64))&1 == 1
}
