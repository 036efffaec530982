package hdr

import "math/big"

// FromBig converts an arbitrary-precision value to a Float, keeping the top
// ~106 mantissa bits. The exponent is preserved exactly, so magnitudes far
// below the float64 range (pixel deltas near 2^-3300) survive where a
// float64 round trip would flush them to zero.
func FromBig(v *big.Float) Float {
	if v == nil || v.Sign() == 0 {
		return Zero
	}
	exp := v.MantExp(nil)

	// Mantissa in ±[0.5, 1.0); its float64 rounding lands in head, the
	// remainder's in tail.
	mant := new(big.Float).SetPrec(v.Prec())
	mant.SetMantExp(v, -exp)

	head, _ := mant.Float64()
	rest := new(big.Float).SetPrec(v.Prec()).Sub(mant, new(big.Float).SetFloat64(head))
	tail, _ := rest.Float64()

	return Float{Head: head, Tail: tail, Exp: int32(exp)}.normalize()
}
