package hdr

// Complex pairs two extended-range floats as a complex value.
type Complex struct {
	Re Float
	Im Float
}

// ComplexZero is the zero complex value.
var ComplexZero = Complex{}

// ComplexFromFloat64 builds a Complex from native real and imaginary parts.
func ComplexFromFloat64(re, im float64) Complex {
	return Complex{Re: FromFloat64(re), Im: FromFloat64(im)}
}

// Float64 returns the native (re, im) pair, with the usual narrowing caveats.
func (c Complex) Float64() (re, im float64) {
	return c.Re.Float64(), c.Im.Float64()
}

// IsZero reports whether both components are zero.
func (c Complex) IsZero() bool { return c.Re.IsZero() && c.Im.IsZero() }

// Add returns c + d.
func (c Complex) Add(d Complex) Complex {
	return Complex{Re: c.Re.Add(d.Re), Im: c.Im.Add(d.Im)}
}

// Sub returns c - d.
func (c Complex) Sub(d Complex) Complex {
	return Complex{Re: c.Re.Sub(d.Re), Im: c.Im.Sub(d.Im)}
}

// Mul returns the complex product c × d.
func (c Complex) Mul(d Complex) Complex {
	return Complex{
		Re: c.Re.Mul(d.Re).Sub(c.Im.Mul(d.Im)),
		Im: c.Re.Mul(d.Im).Add(c.Im.Mul(d.Re)),
	}
}

// MulFloat64Pair multiplies c by the native complex value (re, im).
// Orbit values are stored as float64 pairs, so the per-step product
// 2·Z_m·δz comes through here without allocating intermediates.
func (c Complex) MulFloat64Pair(re, im float64) Complex {
	hre, him := FromFloat64(re), FromFloat64(im)
	return Complex{
		Re: c.Re.Mul(hre).Sub(c.Im.Mul(him)),
		Im: c.Re.Mul(him).Add(c.Im.Mul(hre)),
	}
}

// Square returns c².
func (c Complex) Square() Complex {
	return Complex{
		Re: c.Re.Square().Sub(c.Im.Square()),
		Im: c.Re.Mul(c.Im).Ldexp(1),
	}
}

// Scale returns c with both components multiplied by a native scalar.
func (c Complex) Scale(s float64) Complex {
	return Complex{Re: c.Re.MulFloat64(s), Im: c.Im.MulFloat64(s)}
}

// Double returns 2c (an exact exponent shift).
func (c Complex) Double() Complex {
	return Complex{Re: c.Re.Ldexp(1), Im: c.Im.Ldexp(1)}
}

// NormSq returns |c|² in the extended domain.
func (c Complex) NormSq() Float {
	return c.Re.Square().Add(c.Im.Square())
}

// Norm returns |c| in the extended domain.
func (c Complex) Norm() Float {
	return c.NormSq().Sqrt()
}
