package orbit

import (
	"math"
	"math/big"
)

// safetyBits absorbs rounding error accumulated by the recurrence itself.
const safetyBits = 64

// minPrecisionBits is the floor for any orbit computation.
const minPrecisionBits = 64

// RequiredBits returns the mantissa bit-width needed to compute a reference
// orbit for a region of the given extent at the given grid resolution.
//
// The width grows with the base-2 logarithm of the reciprocal pixel size
// (the orbit must distinguish adjacent grid points), plus a margin for
// error amplification over the iteration budget, plus a fixed safety
// margin. The result is rounded up to a power of two, minimum 64.
func RequiredBits(center Point, width, height *big.Float, gridW, gridH, budget int) uint {
	if width == nil || width.Sign() <= 0 || height == nil || height.Sign() <= 0 {
		return minPrecisionBits
	}

	log2DX := log2Approx(width) - math.Log2(float64(max(gridW, 1)))
	log2DY := log2Approx(height) - math.Log2(float64(max(gridH, 1)))
	log2MinDelta := math.Min(log2DX, log2DY)

	// Magnitude bound M = max(|cx| + w/2, |cy| + h/2), approximated in log2
	// with one extra bit covering the sum.
	log2MX := math.Max(log2Abs(center.X), log2Approx(width)-1) + 1
	log2MY := math.Max(log2Abs(center.Y), log2Approx(height)-1) + 1
	log2M := math.Max(log2MX, log2MY)

	ratioBits := math.Ceil(log2M - log2MinDelta)
	if ratioBits < 0 {
		ratioBits = 0
	}

	iterBits := 0.0
	if budget > 1 {
		iterBits = math.Ceil(math.Log2(float64(budget)))
	}

	total := int(ratioBits) + int(iterBits) + safetyBits
	return nextPow2(max(total, minPrecisionBits))
}

// log2Approx approximates log2 of a positive big.Float without loss from
// narrowing: exponent from MantExp, fraction from the float64 mantissa.
func log2Approx(f *big.Float) float64 {
	if f == nil || f.Sign() == 0 {
		return math.Inf(-1)
	}
	mant := new(big.Float)
	exp := f.MantExp(mant)
	m, _ := mant.Float64()
	return float64(exp) + math.Log2(math.Abs(m))
}

func log2Abs(f *big.Float) float64 {
	if f == nil || f.Sign() == 0 {
		return math.Inf(-1)
	}
	return log2Approx(f)
}

func nextPow2(n int) uint {
	p := 1
	for p < n {
		p <<= 1
	}
	return uint(p)
}
