// Package bla builds hierarchical bivariate linear approximation tables
// from a reference orbit.
//
// An entry linearizes a span of iterations as δz' = A·δz + B·δc, valid
// while |δz| stays inside a proven radius. Level 0 holds one single-step
// entry per orbit value; level k merges adjacent pairs of level k-1 into
// entries covering 2^k steps. All coefficients and radii live in the
// extended-range domain: merged validity radii shrink multiplicatively and
// fall out of float64 range long before the deltas themselves do.
package bla

import (
	"math"

	"github.com/gertalot/fractalwonder-sub003/internal/hdr"
)

// unitRoundOff is the round-off of the native float64 orbit storage; it
// bounds the error of dropping the quadratic term over a single step.
const unitRoundOff = 0x1p-53

// Entry is one linear approximation covering Skip iterations.
//
// Position map:    δz' = A·δz + B·δc
// Derivative map:  δρ' = A·δρ + D·δz + E·δc
type Entry struct {
	A hdr.Complex
	B hdr.Complex
	D hdr.Complex
	E hdr.Complex
	// Skip is the number of iterations the entry advances.
	Skip int
	// RSq is the squared validity radius: the entry applies only while
	// |δz|² is strictly below it.
	RSq hdr.Float
}

// SingleStep builds the level-0 entry for one orbit value Z with derivative
// Der: A = 2Z, B = 1, D = 2·Der, E = 0, skip 1, radius = unit-round-off·|Z|.
func SingleStep(zRe, zIm, derRe, derIm float64) Entry {
	zMag := math.Sqrt(zRe*zRe + zIm*zIm)
	r := hdr.FromFloat64(unitRoundOff * zMag)
	return Entry{
		A:    hdr.ComplexFromFloat64(2*zRe, 2*zIm),
		B:    hdr.ComplexFromFloat64(1, 0),
		D:    hdr.ComplexFromFloat64(2*derRe, 2*derIm),
		E:    hdr.ComplexZero,
		Skip: 1,
		RSq:  r.Square(),
	}
}

// Merge combines entry x (applied first) with entry y (applied second) into
// one entry covering both spans, given an upper bound on |δc| over the
// region the table serves.
//
//	A' = A_y·A_x
//	B' = A_y·B_x + B_y
//	D' = A_y·D_x + D_y·A_x
//	E' = A_y·E_x + D_y·B_x + E_y
//	r' = min(r_x, max(0, (r_y − |B_x|·dcMax) / |A_x|))
func Merge(x, y Entry, dcMax hdr.Float) Entry {
	a := y.A.Mul(x.A)
	b := y.A.Mul(x.B).Add(y.B)
	d := y.A.Mul(x.D).Add(y.D.Mul(x.A))
	e := y.A.Mul(x.E).Add(y.D.Mul(x.B)).Add(y.E)

	rx := x.RSq.Sqrt()
	ry := y.RSq.Sqrt()
	adjusted := ry.Sub(x.B.Norm().Mul(dcMax))
	if adjusted.IsNegative() {
		adjusted = hdr.Zero
	}
	axMag := x.A.Norm()
	if axMag.IsZero() {
		// Degenerate linearization (orbit value at the origin); the merged
		// entry keeps the coefficients but can never be accepted.
		adjusted = hdr.Zero
	} else {
		adjusted = adjusted.Div(axMag)
	}
	r := hdr.Min(rx, adjusted)

	return Entry{
		A:    a,
		B:    b,
		D:    d,
		E:    e,
		Skip: x.Skip + y.Skip,
		RSq:  r.Square(),
	}
}
