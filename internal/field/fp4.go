package field

import "math/big"

// Beta is the quadratic-quartic non-residue defining the twist x^4 - beta.
const Beta uint64 = 11

// NBeta is p - 11, the additive inverse of Beta. Mul below reduces by
// Beta itself and does not use NBeta.
var NBeta = Fp(Modulus - Beta)

// Fp4 is an element of Fp[x] / (x^4 - Beta), represented by its four
// coordinates in the basis {1, x, x^2, x^3}.
type Fp4 struct {
	C0, C1, C2, C3 Fp
}

// Fp4Zero is the additive identity. Virtual address 0 is permanently
// bound to this value by the decoder and every pass downstream of it.
func Fp4Zero() Fp4 { return Fp4{} }

// Fp4One is the multiplicative identity.
func Fp4One() Fp4 { return Fp4{C0: One()} }

// FromFp embeds a base-field element as the constant coordinate of Fp4.
func FromFp(v Fp) Fp4 { return Fp4{C0: v} }

// IsZero reports whether every coordinate is zero.
func (a Fp4) IsZero() bool {
	return a.C0.IsZero() && a.C1.IsZero() && a.C2.IsZero() && a.C3.IsZero()
}

// Equal reports coordinate-wise equality.
func (a Fp4) Equal(b Fp4) bool {
	return a.C0 == b.C0 && a.C1 == b.C1 && a.C2 == b.C2 && a.C3 == b.C3
}

// Coord returns the i-th coordinate (i in 0..3) as a base-field element,
// and 0 for any other i. Callers wrap it with FromFp for RefSub semantics,
// where the result's higher coordinates are zero.
func (a Fp4) Coord(i int) Fp {
	switch i {
	case 0:
		return a.C0
	case 1:
		return a.C1
	case 2:
		return a.C2
	case 3:
		return a.C3
	default:
		return 0
	}
}

// Add returns a+b coordinate-wise.
func (a Fp4) Add(b Fp4) Fp4 {
	return Fp4{
		C0: a.C0.Add(b.C0),
		C1: a.C1.Add(b.C1),
		C2: a.C2.Add(b.C2),
		C3: a.C3.Add(b.C3),
	}
}

// Sub returns a-b coordinate-wise.
func (a Fp4) Sub(b Fp4) Fp4 {
	return Fp4{
		C0: a.C0.Sub(b.C0),
		C1: a.C1.Sub(b.C1),
		C2: a.C2.Sub(b.C2),
		C3: a.C3.Sub(b.C3),
	}
}

// Neg returns -a coordinate-wise.
func (a Fp4) Neg() Fp4 {
	return Fp4Zero().Sub(a)
}

// Mul computes schoolbook multiplication modulo x^4-Beta, reducing
// wraparound terms (degree >= 4) by multiplying them by Beta instead of
// carrying a separate reduction step.
func (a Fp4) Mul(b Fp4) Fp4 {
	// raw[k] = sum_{i+j=k} a_i*b_j for k in 0..6
	var raw [7]Fp
	coeffA := [4]Fp{a.C0, a.C1, a.C2, a.C3}
	coeffB := [4]Fp{b.C0, b.C1, b.C2, b.C3}
	for i := 0; i < 4; i++ {
		if coeffA[i].IsZero() {
			continue
		}
		for j := 0; j < 4; j++ {
			raw[i+j] = raw[i+j].Add(coeffA[i].Mul(coeffB[j]))
		}
	}
	beta := NewFp(Beta)
	return Fp4{
		C0: foldHigh(raw, beta, 0),
		C1: foldHigh(raw, beta, 1),
		C2: foldHigh(raw, beta, 2),
		C3: foldHigh(raw, beta, 3),
	}
}

// foldHigh computes coordinate k of the reduced product: raw[k] plus
// beta*raw[k+4] for the wraparound term that lands on x^k after
// reduction by x^4 = beta (only k=0,1,2 have a wraparound partner since
// raw has degree at most 6).
func foldHigh(raw [7]Fp, beta Fp, k int) Fp {
	v := raw[k]
	if k+4 <= 6 {
		v = v.Add(raw[k+4].Mul(beta))
	}
	return v
}

// ShiftLeft16 multiplies every coordinate by 2^16.
func (a Fp4) ShiftLeft16() Fp4 {
	return Fp4{
		C0: a.C0.ShiftLeft16(),
		C1: a.C1.ShiftLeft16(),
		C2: a.C2.ShiftLeft16(),
		C3: a.C3.ShiftLeft16(),
	}
}

// order4Minus2 is p^4 - 2, the Fermat exponent for inversion in the
// multiplicative group of Fp4 (order p^4 - 1). Computed once at package
// init since it overflows uint64.
var order4Minus2 = func() *big.Int {
	p := new(big.Int).SetUint64(Modulus)
	p4 := new(big.Int).Exp(p, big.NewInt(4), nil)
	return p4.Sub(p4, big.NewInt(2))
}()

// Exp raises a to the power given by the big.Int exponent e via
// square-and-multiply.
func (a Fp4) Exp(e *big.Int) Fp4 {
	result := Fp4One()
	base := a
	for i := 0; i < e.BitLen(); i++ {
		if e.Bit(i) == 1 {
			result = result.Mul(base)
		}
		base = base.Mul(base)
	}
	return result
}

// Inv returns the multiplicative inverse of a via a^(p^4-2). Inv of the
// zero element returns zero, so the constant pass folds INV of a known
// zero operand to zero.
func (a Fp4) Inv() Fp4 {
	if a.IsZero() {
		return Fp4Zero()
	}
	return a.Exp(order4Minus2)
}
