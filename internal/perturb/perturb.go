// Package perturb implements the per-point perturbation iterator.
//
// Each point is classified by iterating its delta against a shared reference
// orbit, optionally skipping runs of iterations through an approximation
// table. All control-flow comparisons (escape, unreliability, re-basing,
// table validity) happen in the extended-range domain; narrowing any of
// them to float64 first is the bug class this engine exists to avoid.
package perturb

import (
	"math"

	"github.com/gertalot/fractalwonder-sub003/internal/bla"
	"github.com/gertalot/fractalwonder-sub003/internal/hdr"
	"github.com/gertalot/fractalwonder-sub003/internal/orbit"
)

// Options configures one point classification.
type Options struct {
	// Budget is the iteration budget.
	Budget int
	// EscapeRadiusSq is the squared escape radius.
	EscapeRadiusSq float64
	// TauSq is the squared unreliability threshold τ² of the Pauldelbrot
	// criterion: the point is flagged when |z|² < τ²·|Z_m|².
	TauSq float64
	// GlitchFloorSq is the numerical floor on |Z_m|² below which the
	// unreliability test is suppressed (the criterion divides by |Z_m|²).
	GlitchFloorSq float64
	// Table enables approximation-table skipping when non-nil.
	Table *bla.Table
	// TrackDerivative propagates the derivative delta for shading output.
	TrackDerivative bool
}

// Result is the classification of one point.
type Result struct {
	// Iterations the point survived (or the budget, for in-set points).
	Iterations int
	// Escaped reports whether the point left the escape radius.
	Escaped bool
	// Glitched reports that the computation became numerically unreliable
	// and the result needs re-deriving against a closer reference.
	Glitched bool
	// NormalRe, NormalIm is the unit surface-normal direction derived from
	// the escape-time derivative, zero unless escaped with tracking on.
	NormalRe, NormalIm float64
	// Skipped counts iterations advanced through the approximation table.
	Skipped int
	// Rebases counts delta re-anchoring events.
	Rebases int
}

// Iterate classifies the point at offset dc from the reference orbit's
// center.
func Iterate(o *orbit.Orbit, dc hdr.Complex, opt Options) Result {
	if o.Len() == 0 {
		// No reference data at all; nothing to perturb against.
		return Result{Glitched: true}
	}

	escapeSq := hdr.FromFloat64(opt.EscapeRadiusSq)

	// The orbit begins at the critical point Z_0 = 0, so a zero delta
	// represents the point's own trajectory exactly from the start.
	dz := hdr.ComplexZero
	drho := hdr.ComplexZero
	m := 0
	n := 0
	res := Result{}

	for n < opt.Budget {
		// Past the stored orbit the reference has no data; the last value
		// stands in and the step below proceeds without the table
		// (ReferenceExhausted is a fallback, not an error).
		exhausted := m >= o.Len()
		zmRe, zmIm := o.At(m)

		z := hdr.Complex{
			Re: hdr.FromFloat64(zmRe).Add(dz.Re),
			Im: hdr.FromFloat64(zmIm).Add(dz.Im),
		}
		zSq := z.NormSq()

		// Escape test.
		if zSq.Greater(escapeSq) {
			res.Iterations = n
			res.Escaped = true
			if opt.TrackDerivative {
				derRe, derIm := o.DerivAt(m)
				rho := hdr.Complex{
					Re: hdr.FromFloat64(derRe).Add(drho.Re),
					Im: hdr.FromFloat64(derIm).Add(drho.Im),
				}
				res.NormalRe, res.NormalIm = surfaceNormal(z, rho)
			}
			return res
		}

		// Unreliability (Pauldelbrot) test. The orbit magnitude is a plain
		// float64 product — orbit values are native by construction — but
		// the comparison against |z|² stays in the extended domain.
		zmSq := zmRe*zmRe + zmIm*zmIm
		if zmSq > opt.GlitchFloorSq && zSq.Less(hdr.FromFloat64(opt.TauSq*zmSq)) {
			res.Glitched = true
		}

		// Re-basing test: the delta dominates the absolute value, so
		// re-anchor to the current position and restart the reference.
		dzSq := dz.NormSq()
		if zSq.Less(dzSq) {
			dz = z
			if opt.TrackDerivative {
				derRe, derIm := o.DerivAt(m)
				drho = hdr.Complex{
					Re: hdr.FromFloat64(derRe).Add(drho.Re),
					Im: hdr.FromFloat64(derIm).Add(drho.Im),
				}
			}
			m = 0
			res.Rebases++
			continue
		}

		// Approximation table: apply the largest aligned valid entry.
		if opt.Table != nil && !exhausted {
			if e := opt.Table.FindValid(m, dzSq); e != nil {
				if opt.TrackDerivative {
					drho = e.A.Mul(drho).Add(e.D.Mul(dz)).Add(e.E.Mul(dc))
				}
				dz = e.A.Mul(dz).Add(e.B.Mul(dc))
				m += e.Skip
				n += e.Skip
				res.Skipped += e.Skip
				continue
			}
		}

		// Standard step: δz' = 2·Z_m·δz + δz² + δc.
		oldDz := dz
		dz = dz.MulFloat64Pair(zmRe, zmIm).Double().Add(dz.Square()).Add(dc)
		if opt.TrackDerivative {
			// δρ' = 2·Z_m·δρ + 2·δz·Der_m + 2·δz·δρ
			derRe, derIm := o.DerivAt(m)
			drho = drho.MulFloat64Pair(zmRe, zmIm).Double().
				Add(oldDz.MulFloat64Pair(derRe, derIm).Double()).
				Add(oldDz.Mul(drho).Double())
		}
		m++
		n++
	}

	res.Iterations = opt.Budget
	return res
}

// surfaceNormal returns the unit direction of u = z·conj(ρ), the analytic
// surface normal used by exterior shading. Both components are brought to a
// common exponent before narrowing so the ratio survives even when the
// magnitudes themselves are outside float64 range.
func surfaceNormal(z, rho hdr.Complex) (float64, float64) {
	uRe := z.Re.Mul(rho.Re).Add(z.Im.Mul(rho.Im))
	uIm := z.Im.Mul(rho.Re).Sub(z.Re.Mul(rho.Im))
	if uRe.IsZero() && uIm.IsZero() {
		return 0, 0
	}

	maxExp := uRe.Exp
	if uIm.Exp > maxExp {
		maxExp = uIm.Exp
	}
	reScaled := (uRe.Head + uRe.Tail) * math.Exp2(float64(uRe.Exp-maxExp))
	imScaled := (uIm.Head + uIm.Tail) * math.Exp2(float64(uIm.Exp-maxExp))

	norm := math.Sqrt(reScaled*reScaled + imScaled*imScaled)
	if norm == 0 || math.IsInf(norm, 0) || math.IsNaN(norm) {
		return 0, 0
	}
	return reScaled / norm, imScaled / norm
}
