// Package orbit computes reference orbits for perturbation rendering.
//
// The reference trajectory is the only place the engine touches arbitrary
// precision arithmetic. It is evaluated once per reference point with
// math/big at a bit-width derived from the zoom depth, then stored as a
// float64 sequence: orbit values are bounded by the escape radius, so they
// stay representable at native precision even though the per-point deltas
// around them do not.
package orbit

import (
	"errors"
	"math"
	"math/big"
)

// ErrPrecisionInsufficient reports that the reference point's bit-width
// cannot separate it from its pixel-scale neighbors. The caller must raise
// the precision budget and retry; nothing is recovered here.
var ErrPrecisionInsufficient = errors.New("orbit: precision insufficient to resolve reference point")

// Point is an arbitrary-precision point in parameter space.
type Point struct {
	X *big.Float
	Y *big.Float
}

// NewPoint creates a Point from native coordinates at the given precision.
func NewPoint(x, y float64, prec uint) Point {
	return Point{
		X: big.NewFloat(x).SetPrec(prec),
		Y: big.NewFloat(y).SetPrec(prec),
	}
}

// ParsePoint creates a Point from decimal coordinate strings at the given
// precision. Deep-zoom centers are normally exchanged as strings because
// they exceed float64 long before they become interesting.
func ParsePoint(x, y string, prec uint) (Point, error) {
	px, _, err := big.ParseFloat(x, 10, prec, big.ToNearestEven)
	if err != nil {
		return Point{}, err
	}
	py, _, err := big.ParseFloat(y, 10, prec, big.ToNearestEven)
	if err != nil {
		return Point{}, err
	}
	return Point{X: px, Y: py}, nil
}

// Prec returns the working precision of the point in bits.
func (p Point) Prec() uint { return p.X.Prec() }

// Params configures a reference orbit computation.
type Params struct {
	// Budget is the iteration budget; the stored sequence never exceeds it.
	Budget int
	// EscapeRadiusSq is the squared escape radius of the recurrence.
	EscapeRadiusSq float64
	// MinBits is the bit-width required to resolve the reference point at
	// the target pixel resolution (see RequiredBits). Zero disables the
	// check; otherwise Compute fails with ErrPrecisionInsufficient when the
	// point's precision falls short.
	MinBits uint
}

// Orbit is a reference trajectory reduced to native precision.
type Orbit struct {
	// RefX, RefY is the reference point narrowed to float64.
	RefX, RefY float64
	// Points holds the iterate values Z_n as (re, im) pairs.
	Points [][2]float64
	// Deriv holds the derivative values dZ_n/dC as (re, im) pairs.
	Deriv [][2]float64
	// EscapedAt is the iteration index at which the reference escaped,
	// or -1 if it stayed bounded for the whole budget.
	EscapedAt int
}

// Len returns the number of stored iterates.
func (o *Orbit) Len() int { return len(o.Points) }

// Escaped reports whether the reference point itself escaped.
func (o *Orbit) Escaped() bool { return o.EscapedAt >= 0 }

// At returns the iterate value at index m, clamped to the last stored
// value when m runs past the sequence (the ReferenceExhausted case; the
// iterator falls back to standard steps there rather than failing).
func (o *Orbit) At(m int) (re, im float64) {
	if m >= len(o.Points) {
		m = len(o.Points) - 1
	}
	p := o.Points[m]
	return p[0], p[1]
}

// DerivAt returns the derivative value at index m with the same clamping.
func (o *Orbit) DerivAt(m int) (re, im float64) {
	if m >= len(o.Deriv) {
		m = len(o.Deriv) - 1
	}
	d := o.Deriv[m]
	return d[0], d[1]
}

// Compute evaluates the escape-time recurrence z' = z² + c at c's full
// precision, recording native-precision iterates and derivatives.
func Compute(c Point, p Params) (*Orbit, error) {
	if p.MinBits > 0 && c.Prec() < p.MinBits {
		return nil, ErrPrecisionInsufficient
	}
	if p.Budget <= 0 {
		return &Orbit{
			RefX: toFloat(c.X), RefY: toFloat(c.Y), EscapedAt: -1,
		}, nil
	}

	// The stored sequence starts at the critical point Z_0 = 0 with
	// Der_0 = 0. Keeping the zero iterate at index 0 is what makes
	// re-basing exact: a delta re-anchored at m = 0 represents the full
	// value with no reference contribution.
	prec := c.Prec()
	x := zero(prec)
	y := zero(prec)
	derX := zero(prec)
	derY := zero(prec)

	escapeSq := big.NewFloat(p.EscapeRadiusSq).SetPrec(prec)
	one := big.NewFloat(1).SetPrec(prec)
	two := big.NewFloat(2).SetPrec(prec)

	// Scratch values reused across iterations.
	xSq := zero(prec)
	ySq := zero(prec)
	t1 := zero(prec)
	t2 := zero(prec)
	magSq := zero(prec)

	o := &Orbit{
		RefX:      toFloat(c.X),
		RefY:      toFloat(c.Y),
		Points:    make([][2]float64, 0, p.Budget),
		Deriv:     make([][2]float64, 0, p.Budget),
		EscapedAt: -1,
	}

	for n := 0; n < p.Budget; n++ {
		dx, dy := toFloat(derX), toFloat(derY)
		// At deep zoom the derivative grows without bound and eventually
		// exceeds float64; truncate the stored sequence there. Consumers
		// treat the short orbit as exhausted, not as an escape.
		if math.IsInf(dx, 0) || math.IsInf(dy, 0) || math.IsNaN(dx) || math.IsNaN(dy) {
			break
		}

		o.Points = append(o.Points, [2]float64{toFloat(x), toFloat(y)})
		o.Deriv = append(o.Deriv, [2]float64{dx, dy})

		xSq.Mul(x, x)
		ySq.Mul(y, y)
		magSq.Add(xSq, ySq)
		if magSq.Cmp(escapeSq) > 0 {
			o.EscapedAt = n
			break
		}

		// Der' = 2·Z·Der + 1:
		//   re' = 2(x·derX − y·derY) + 1
		//   im' = 2(x·derY + y·derX)
		t1.Mul(x, derX)
		t2.Mul(y, derY)
		newDerX := zero(prec).Sub(t1, t2)
		newDerX.Mul(newDerX, two)
		newDerX.Add(newDerX, one)
		t1.Mul(x, derY)
		t2.Mul(y, derX)
		newDerY := zero(prec).Add(t1, t2)
		newDerY.Mul(newDerY, two)

		// z' = z² + c
		newX := zero(prec).Sub(xSq, ySq)
		newX.Add(newX, c.X)
		newY := zero(prec).Mul(two, x)
		newY.Mul(newY, y)
		newY.Add(newY, c.Y)

		x, y = newX, newY
		derX, derY = newDerX, newDerY
	}

	return o, nil
}

// IterateDirect classifies a single point by running the recurrence entirely
// in arbitrary precision. This is the bounded last-resort path for points
// the quadtree could not resolve against any reference; it is far too slow
// for anything else.
func IterateDirect(c Point, budget int, escapeRadiusSq float64) (iterations int, escaped bool) {
	// Starts from the critical point, mirroring Compute, so iteration
	// counts line up with perturbation results for the same point.
	prec := c.Prec()
	x := zero(prec)
	y := zero(prec)
	escapeSq := big.NewFloat(escapeRadiusSq).SetPrec(prec)
	two := big.NewFloat(2).SetPrec(prec)

	xSq := zero(prec)
	ySq := zero(prec)
	magSq := zero(prec)

	for n := 0; n < budget; n++ {
		xSq.Mul(x, x)
		ySq.Mul(y, y)
		magSq.Add(xSq, ySq)
		if magSq.Cmp(escapeSq) > 0 {
			return n, true
		}
		newX := zero(prec).Sub(xSq, ySq)
		newX.Add(newX, c.X)
		newY := zero(prec).Mul(two, x)
		newY.Mul(newY, y)
		newY.Add(newY, c.Y)
		x, y = newX, newY
	}
	return budget, false
}

func zero(prec uint) *big.Float {
	return new(big.Float).SetPrec(prec)
}

func toFloat(f *big.Float) float64 {
	v, _ := f.Float64()
	return v
}
