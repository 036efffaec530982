// Package hdr implements an extended-range floating point type for deep-zoom
// perturbation arithmetic.
//
// A Float stores a value as (Head + Tail) × 2^Exp, where Head is normalized
// to ±[0.5, 1.0) and Tail carries the rounding error of Head, giving roughly
// twice the mantissa bits of a float64 together with an exponent range far
// beyond the native ±1023. Per-point deltas at extreme zoom reach magnitudes
// around 2^-3300, which a bare float64 silently flushes to zero; every
// magnitude comparison that drives iteration control flow must therefore stay
// in this domain (see Cmp, Less) and never narrow to float64 first.
package hdr

import "math"

// Float is an extended-range floating point value: (Head + Tail) × 2^Exp.
//
// Invariants after every operation:
//   - Head is zero (the distinguished zero value, with Tail 0) or
//     |Head| is in [0.5, 1.0).
//   - |Tail| is at most about one ulp of Head.
type Float struct {
	// Head is the primary mantissa, normalized to ±[0.5, 1.0).
	Head float64
	// Tail is the error term extending Head's precision.
	Tail float64
	// Exp is the binary exponent.
	Exp int32
}

// Zero is the distinguished zero value.
var Zero = Float{}

// FromFloat64 converts a float64 to a Float. The conversion is exact.
func FromFloat64(v float64) Float {
	if v == 0 {
		return Zero
	}
	m, e := math.Frexp(v)
	return Float{Head: m, Tail: 0, Exp: int32(e)}
}

// Float64 converts back to float64. Values outside the float64 exponent
// range overflow to ±Inf or underflow to zero; this is only safe for
// display and for magnitudes known to be moderate (orbit values, escape
// tests are done in the hdr domain instead).
func (f Float) Float64() float64 {
	if f.Head == 0 {
		return 0
	}
	return math.Ldexp(f.Head+f.Tail, int(f.Exp))
}

// IsZero reports whether f is zero.
func (f Float) IsZero() bool { return f.Head == 0 }

// IsNegative reports whether f is strictly negative.
func (f Float) IsNegative() bool { return f.Head < 0 }

// Sign returns -1, 0, or +1.
func (f Float) Sign() int {
	switch {
	case f.Head < 0:
		return -1
	case f.Head > 0:
		return 1
	default:
		return 0
	}
}

// normalize restores the Head ∈ ±[0.5, 1.0) invariant.
func (f Float) normalize() Float {
	if f.Head == 0 {
		if f.Tail != 0 {
			// Cancellation left everything in the tail.
			return Float{Head: f.Tail, Exp: f.Exp}.normalize()
		}
		return Zero
	}
	m, e := math.Frexp(f.Head)
	if e == 0 {
		return f
	}
	// Ldexp by a power of two is exact; tail underflow to zero is harmless
	// since the tail is already below one ulp of the head.
	return Float{
		Head: m,
		Tail: math.Ldexp(f.Tail, -e),
		Exp:  f.Exp + int32(e),
	}
}

// Neg returns -f.
func (f Float) Neg() Float {
	return Float{Head: -f.Head, Tail: -f.Tail, Exp: f.Exp}
}

// Abs returns |f|.
func (f Float) Abs() Float {
	if f.Head < 0 {
		return f.Neg()
	}
	return f
}

// Ldexp returns f × 2^n.
func (f Float) Ldexp(n int32) Float {
	if f.Head == 0 {
		return Zero
	}
	return Float{Head: f.Head, Tail: f.Tail, Exp: f.Exp + n}
}

// Add returns f + g with error tracking (two-sum on the heads).
func (f Float) Add(g Float) Float {
	if f.Head == 0 {
		return g
	}
	if g.Head == 0 {
		return f
	}

	diff := f.Exp - g.Exp
	// Beyond ~107 bits of exponent separation the smaller operand cannot
	// touch even the tail of the larger one.
	if diff > 107 {
		return f
	}
	if diff < -107 {
		return g
	}

	var aH, aT, bH, bT float64
	var exp int32
	if diff >= 0 {
		aH, aT = f.Head, f.Tail
		bH = math.Ldexp(g.Head, int(-diff))
		bT = math.Ldexp(g.Tail, int(-diff))
		exp = f.Exp
	} else {
		aH = math.Ldexp(f.Head, int(diff))
		aT = math.Ldexp(f.Tail, int(diff))
		bH, bT = g.Head, g.Tail
		exp = g.Exp
	}

	sum := aH + bH
	err := twoSumErr(aH, bH, sum)
	return Float{Head: sum, Tail: err + aT + bT, Exp: exp}.normalize()
}

// Sub returns f - g.
func (f Float) Sub(g Float) Float { return f.Add(g.Neg()) }

// Mul returns f × g with an FMA-derived error term.
func (f Float) Mul(g Float) Float {
	if f.Head == 0 || g.Head == 0 {
		return Zero
	}
	p := f.Head * g.Head
	err := math.FMA(f.Head, g.Head, -p)
	// The Tail×Tail cross term is below the result's precision.
	tail := err + f.Head*g.Tail + f.Tail*g.Head
	return Float{Head: p, Tail: tail, Exp: f.Exp + g.Exp}.normalize()
}

// MulFloat64 returns f scaled by a native float64.
func (f Float) MulFloat64(s float64) Float {
	return f.Mul(FromFloat64(s))
}

// Square returns f², slightly cheaper than f.Mul(f).
func (f Float) Square() Float {
	if f.Head == 0 {
		return Zero
	}
	p := f.Head * f.Head
	err := math.FMA(f.Head, f.Head, -p)
	tail := err + 2*f.Head*f.Tail
	return Float{Head: p, Tail: tail, Exp: 2 * f.Exp}.normalize()
}

// Sqrt returns √f for f ≥ 0. Negative inputs return zero; they do not occur
// on the radius paths this exists for.
func (f Float) Sqrt() Float {
	if f.Head <= 0 {
		return Zero
	}
	mant := f.Head + f.Tail
	e := f.Exp
	if e&1 != 0 {
		// Shift to an even exponent so e/2 is exact for negative e too.
		mant *= 2
		e--
	}
	s := math.Sqrt(mant)
	// One correction step recovers the bits float64 sqrt dropped.
	r := math.FMA(-s, s, mant)
	return Float{Head: s, Tail: r / (2 * s), Exp: e / 2}.normalize()
}

// Div returns f / g. Division by zero returns zero; callers on the table
// merge path guard degenerate coefficients before dividing.
func (f Float) Div(g Float) Float {
	if f.Head == 0 || g.Head == 0 {
		return Zero
	}
	q0 := f.Head / g.Head
	// Residual of the head quotient, then one refinement against the tails.
	r := math.FMA(-q0, g.Head, f.Head)
	q1 := (r + f.Tail - q0*g.Tail) / g.Head
	return Float{Head: q0, Tail: q1, Exp: f.Exp - g.Exp}.normalize()
}

// Cmp compares f and g, returning -1, 0, or +1. The comparison is exact in
// the extended domain; it never narrows to float64.
func (f Float) Cmp(g Float) int {
	fs, gs := f.Sign(), g.Sign()
	if fs != gs {
		if fs < gs {
			return -1
		}
		return 1
	}
	if fs == 0 {
		return 0
	}
	return f.Sub(g).Sign()
}

// Less reports f < g.
func (f Float) Less(g Float) bool { return f.Cmp(g) < 0 }

// Greater reports f > g.
func (f Float) Greater(g Float) bool { return f.Cmp(g) > 0 }

// Min returns the smaller of f and g.
func Min(f, g Float) Float {
	if f.Cmp(g) <= 0 {
		return f
	}
	return g
}

// Max returns the larger of f and g.
func Max(f, g Float) Float {
	if f.Cmp(g) >= 0 {
		return f
	}
	return g
}

// twoSumErr computes the rounding error of sum = a + b (Knuth two-sum).
func twoSumErr(a, b, sum float64) float64 {
	bv := sum - a
	av := sum - bv
	return (b - bv) + (a - av)
}
