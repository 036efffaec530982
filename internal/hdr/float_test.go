package hdr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Conversion Tests
// =============================================================================

func TestFromFloat64_Zero(t *testing.T) {
	f := FromFloat64(0)
	assert.True(t, f.IsZero())
	assert.Equal(t, 0.0, f.Head)
	assert.Equal(t, 0.0, f.Tail)
	assert.Equal(t, int32(0), f.Exp)
}

func TestFromFloat64_OneIsNormalized(t *testing.T) {
	f := FromFloat64(1.0)
	// 1.0 = 0.5 × 2^1
	assert.Equal(t, 0.5, f.Head)
	assert.Equal(t, int32(1), f.Exp)
}

func TestFromFloat64_RoundTrip(t *testing.T) {
	values := []float64{1.0, -1.0, 0.5, 2.0, 1e10, 1e-10, -math.Pi, 3.14159e-200}
	for _, v := range values {
		f := FromFloat64(v)
		assert.Equal(t, v, f.Float64(), "round trip of %g", v)
	}
}

func TestNormalize_RangeOneToTwo(t *testing.T) {
	f := Float{Head: 1.5, Tail: 0, Exp: 0}.normalize()
	assert.Equal(t, 0.75, f.Head)
	assert.Equal(t, int32(1), f.Exp)
}

func TestNormalize_PromotesTail(t *testing.T) {
	f := Float{Head: 0, Tail: 0.5, Exp: 3}.normalize()
	assert.Equal(t, 0.5, f.Head)
	assert.Equal(t, 0.0, f.Tail)
	assert.Equal(t, int32(3), f.Exp)
}

// =============================================================================
// Arithmetic Tests
// =============================================================================

func TestAdd_Basic(t *testing.T) {
	sum := FromFloat64(2).Add(FromFloat64(3))
	assert.InDelta(t, 5.0, sum.Float64(), 1e-14)
}

func TestAdd_Zero(t *testing.T) {
	a := FromFloat64(5)
	assert.Equal(t, a, a.Add(Zero))
	assert.Equal(t, a, Zero.Add(a))
}

func TestAdd_DistantExponents(t *testing.T) {
	big := FromFloat64(1e10)
	small := FromFloat64(1e-30)
	assert.Equal(t, big, big.Add(small))
	assert.Equal(t, big, small.Add(big))
}

func TestAdd_Cancellation(t *testing.T) {
	a := FromFloat64(1.0)
	b := FromFloat64(1.0 - 1e-10)
	diff := a.Sub(b)
	assert.InEpsilon(t, 1e-10, diff.Float64(), 1e-6)
}

func TestMul_Basic(t *testing.T) {
	p := FromFloat64(2).Mul(FromFloat64(3))
	assert.InDelta(t, 6.0, p.Float64(), 1e-14)
}

func TestMul_ByZero(t *testing.T) {
	a := FromFloat64(5)
	assert.True(t, a.Mul(Zero).IsZero())
	assert.True(t, Zero.Mul(a).IsZero())
}

func TestMul_KeepsExtendedPrecision(t *testing.T) {
	// (1 + 1e-10)(1 + 2e-10): the cross terms need more than 53 bits.
	a := FromFloat64(1 + 1e-10)
	b := FromFloat64(1 + 2e-10)
	p := a.Mul(b)
	expected := (1 + 1e-10) * (1 + 2e-10)
	assert.InEpsilon(t, expected, p.Float64(), 1e-14)
}

func TestSquare_MatchesMul(t *testing.T) {
	for _, v := range []float64{0.7, -3.2, 1e-160} {
		f := FromFloat64(v)
		assert.Equal(t, f.Mul(f), f.Square(), "square of %g", v)
	}
}

func TestSqrt_Basic(t *testing.T) {
	for _, v := range []float64{4.0, 2.0, 0.25, 1e-12} {
		r := FromFloat64(v).Sqrt()
		assert.InEpsilon(t, math.Sqrt(v), r.Float64(), 1e-14)
	}
}

func TestSqrt_OddNegativeExponent(t *testing.T) {
	// 2^-3301 has an odd exponent and underflows float64 entirely.
	f := FromFloat64(0.5).Ldexp(-3300) // 2^-3301
	r := f.Sqrt()
	sq := r.Square()
	// The relative error of sqrt-then-square stays far below float64 eps.
	rel := sq.Sub(f).Div(f).Float64()
	assert.Less(t, math.Abs(rel), 1e-25)
}

func TestDiv_Basic(t *testing.T) {
	q := FromFloat64(6).Div(FromFloat64(3))
	assert.InDelta(t, 2.0, q.Float64(), 1e-14)
}

func TestDiv_ByZeroIsZero(t *testing.T) {
	assert.True(t, FromFloat64(1).Div(Zero).IsZero())
}

// =============================================================================
// Comparison Tests
// =============================================================================

func TestCmp_OrdersSubFloat64Magnitudes(t *testing.T) {
	// Both values are far below float64's smallest subnormal. Narrowing
	// either one to float64 would flush it to zero and lose the ordering.
	a := FromFloat64(0.75).Ldexp(-3300)
	b := FromFloat64(0.75).Ldexp(-3290)
	require.True(t, a.Less(b))
	require.True(t, b.Greater(a))
	assert.Equal(t, 0.0, a.Float64(), "narrowed value underflows, as expected")
}

func TestCmp_SignHandling(t *testing.T) {
	tests := []struct {
		name string
		a, b Float
		want int
	}{
		{"negative < positive", FromFloat64(-1), FromFloat64(1e-300), -1},
		{"zero < positive", Zero, FromFloat64(1e-300), -1},
		{"negative < zero", FromFloat64(-1e-300), Zero, -1},
		{"equal", FromFloat64(1.5), FromFloat64(1.5), 0},
		{"same exp, head order", FromFloat64(0.75), FromFloat64(0.5), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Cmp(tt.b))
			assert.Equal(t, -tt.want, tt.b.Cmp(tt.a))
		})
	}
}

func TestCmp_EqualHeadsDifferentTails(t *testing.T) {
	a := FromFloat64(1).Add(FromFloat64(1e-20))
	b := FromFloat64(1)
	assert.Equal(t, 1, a.Cmp(b))
}

func TestMinMax(t *testing.T) {
	a := FromFloat64(0.5).Ldexp(-100)
	b := FromFloat64(0.5).Ldexp(-90)
	assert.Equal(t, a, Min(a, b))
	assert.Equal(t, b, Max(a, b))
}
