package perturb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gertalot/fractalwonder-sub003/internal/bla"
	"github.com/gertalot/fractalwonder-sub003/internal/hdr"
	"github.com/gertalot/fractalwonder-sub003/internal/orbit"
)

const (
	testEscapeSq = 65536.0
	testTauSq    = 1e-6
	testFloorSq  = 1e-20
)

func computeOrbit(t *testing.T, x, y float64, budget int) *orbit.Orbit {
	t.Helper()
	o, err := orbit.Compute(orbit.NewPoint(x, y, 128), orbit.Params{
		Budget:         budget,
		EscapeRadiusSq: testEscapeSq,
	})
	require.NoError(t, err)
	return o
}

func opts(budget int) Options {
	return Options{
		Budget:         budget,
		EscapeRadiusSq: testEscapeSq,
		TauSq:          testTauSq,
		GlitchFloorSq:  testFloorSq,
	}
}

// =============================================================================
// Basic Classification Tests
// =============================================================================

func TestIterate_ZeroDeltaFollowsReference(t *testing.T) {
	o := computeOrbit(t, -0.5, 0, 500)
	res := Iterate(o, hdr.ComplexZero, opts(500))
	assert.False(t, res.Escaped, "the reference point itself is in the set")
	assert.Equal(t, 500, res.Iterations)
	assert.False(t, res.Glitched)
}

func TestIterate_FarDeltaEscapesQuickly(t *testing.T) {
	o := computeOrbit(t, -0.5, 0, 500)
	// c + δc = (2, 0): escapes almost immediately.
	res := Iterate(o, hdr.ComplexFromFloat64(2.5, 0), opts(500))
	assert.True(t, res.Escaped)
	assert.Less(t, res.Iterations, 10)
	assert.False(t, res.Glitched, "clean escape must not be flagged unreliable")
}

func TestIterate_ClassificationMatchesDirect(t *testing.T) {
	o := computeOrbit(t, -0.5, 0, 500)
	deltas := [][2]float64{
		{0.01, 0.01}, {-0.005, 0.002}, {0.1, -0.05}, {0, 0.001},
		{2.5, 0}, {1.5, 1.5}, {-1.2, 0.3},
	}
	for _, d := range deltas {
		res := Iterate(o, hdr.ComplexFromFloat64(d[0], d[1]), opts(500))
		_, directEscaped := orbit.IterateDirect(
			orbit.NewPoint(-0.5+d[0], d[1], 128), 500, testEscapeSq)
		assert.Equal(t, directEscaped, res.Escaped, "delta (%g, %g)", d[0], d[1])
	}
}

func TestIterate_EmptyOrbitIsGlitched(t *testing.T) {
	res := Iterate(&orbit.Orbit{EscapedAt: -1}, hdr.ComplexZero, opts(100))
	assert.True(t, res.Glitched)
	assert.False(t, res.Escaped)
}

// =============================================================================
// Re-basing and Reference Exhaustion
// =============================================================================

func TestIterate_RebasesWhenDeltaDominates(t *testing.T) {
	// A short escaped reference forces the iterator past the orbit end,
	// where re-basing (or the clamped fallback) must keep it sound.
	o := computeOrbit(t, -0.5, 0, 500)
	// A largish delta whose trajectory strays far from the reference's.
	res := Iterate(o, hdr.ComplexFromFloat64(0.26, 0.4), opts(500))
	assert.Positive(t, res.Rebases, "trajectories this far apart must re-anchor")
}

func TestIterate_ExhaustedReferenceStillClassifies(t *testing.T) {
	// Reference escapes fast; in-set neighbors need many more iterations
	// than the orbit holds, exercising the last-value fallback path.
	o, err := orbit.Compute(orbit.NewPoint(0.3, 0.02, 128), orbit.Params{
		Budget:         200,
		EscapeRadiusSq: testEscapeSq,
	})
	require.NoError(t, err)
	require.True(t, o.Escaped())

	// δc bringing the point to (-0.5, 0), deep in the set.
	res := Iterate(o, hdr.ComplexFromFloat64(-0.8, -0.02), opts(200))
	assert.False(t, res.Escaped)
	assert.Equal(t, 200, res.Iterations)
}

// =============================================================================
// Unreliability Detection
// =============================================================================

func TestIterate_GlitchFloorSuppressesDetection(t *testing.T) {
	// Reference at the origin: every orbit value is zero, so |Z_m|² never
	// exceeds the floor and the unreliability test must never fire.
	o := computeOrbit(t, 0, 0, 300)
	res := Iterate(o, hdr.ComplexFromFloat64(0.1, 0.1), opts(300))
	assert.False(t, res.Glitched)
}

// =============================================================================
// Approximation Table Equivalence
// =============================================================================

func withTable(t *testing.T, o *orbit.Orbit, dcMax float64, budget int) (Options, Options) {
	t.Helper()
	on := opts(budget)
	on.Table = bla.Build(o, hdr.FromFloat64(dcMax))
	off := opts(budget)
	return on, off
}

func TestIterate_TableMatchesPlainForEscapingPoint(t *testing.T) {
	o := computeOrbit(t, -0.5, 0, 500)
	on, off := withTable(t, o, 0.15, 500)
	dc := hdr.ComplexFromFloat64(0.1, 0.1)

	got := Iterate(o, dc, on)
	want := Iterate(o, dc, off)
	assert.Equal(t, want.Escaped, got.Escaped)
	assert.Equal(t, want.Iterations, got.Iterations)
}

func TestIterate_TableMatchesPlainForInSetPoint(t *testing.T) {
	o := computeOrbit(t, -0.5, 0, 500)
	on, off := withTable(t, o, 0.02, 500)
	dc := hdr.ComplexFromFloat64(0.01, 0.01)

	got := Iterate(o, dc, on)
	want := Iterate(o, dc, off)
	assert.Equal(t, want.Escaped, got.Escaped)
	assert.Equal(t, want.Iterations, got.Iterations)
}

func TestIterate_TableMatchesPlainAcrossDeltaSweep(t *testing.T) {
	o := computeOrbit(t, -0.5, 0, 1000)
	deltas := [][2]float64{
		{0.01, 0.01}, {-0.005, 0.002}, {0.1, -0.05},
		{0, 0.001}, {0.05, 0.05}, {-0.02, 0.03},
	}
	for _, d := range deltas {
		dcMax := max(abs(d[0])+abs(d[1]), 0.001)
		on, off := withTable(t, o, dcMax, 1000)
		dc := hdr.ComplexFromFloat64(d[0], d[1])

		got := Iterate(o, dc, on)
		want := Iterate(o, dc, off)
		assert.Equal(t, want.Escaped, got.Escaped, "delta (%g, %g)", d[0], d[1])
		assert.Equal(t, want.Iterations, got.Iterations,
			"delta (%g, %g): plain=%d table=%d", d[0], d[1], want.Iterations, got.Iterations)
	}
}

func TestIterate_TableActuallySkips(t *testing.T) {
	o := computeOrbit(t, -0.5, 0, 1024)
	on := opts(1024)
	on.Table = bla.Build(o, hdr.FromFloat64(0.5).Ldexp(-130))
	dc := hdr.Complex{
		Re: hdr.FromFloat64(0.7).Ldexp(-131),
		Im: hdr.FromFloat64(0.3).Ldexp(-131),
	}
	res := Iterate(o, dc, on)
	assert.Positive(t, res.Skipped, "deep-zoom deltas must ride the table")
}

// TestIterate_CenterTileAtHighBudget guards the historical defect where a
// misaligned table lookup corrupted the tile containing the reference point
// itself: deltas there never grow, re-basing never resets m, and a wrong
// linear map walks undetected. With correct alignment the table-enabled run
// must agree exactly with the plain run for near-zero deltas at high budget.
func TestIterate_CenterTileAtHighBudget(t *testing.T) {
	if testing.Short() {
		t.Skip("high-budget regression sweep")
	}
	const budget = 200_000
	o := computeOrbit(t, -0.5, 0, budget)
	on := opts(budget)
	on.Table = bla.Build(o, hdr.FromFloat64(0.5).Ldexp(-500))
	off := opts(budget)

	deltas := []hdr.Complex{
		hdr.ComplexZero,
		{Re: hdr.FromFloat64(0.5).Ldexp(-520), Im: hdr.Zero},
		{Re: hdr.FromFloat64(0.7).Ldexp(-510), Im: hdr.FromFloat64(-0.7).Ldexp(-510)},
	}
	for i, dc := range deltas {
		got := Iterate(o, dc, on)
		want := Iterate(o, dc, off)
		require.Equal(t, want.Escaped, got.Escaped, "delta %d", i)
		require.Equal(t, want.Iterations, got.Iterations, "delta %d", i)
		assert.False(t, got.Escaped, "points this close to an in-set reference stay in")
		assert.Equal(t, budget, got.Iterations)
	}
}

// =============================================================================
// Derivative Tracking
// =============================================================================

func TestIterate_SurfaceNormalOnEscape(t *testing.T) {
	o := computeOrbit(t, -0.5, 0, 500)
	o2 := opts(500)
	o2.TrackDerivative = true
	res := Iterate(o, hdr.ComplexFromFloat64(0.1, 0.1), o2)
	require.True(t, res.Escaped)
	norm := res.NormalRe*res.NormalRe + res.NormalIm*res.NormalIm
	assert.InDelta(t, 1.0, norm, 1e-9, "normal must be a unit vector")
}

func TestIterate_NoNormalWithoutTracking(t *testing.T) {
	o := computeOrbit(t, -0.5, 0, 500)
	res := Iterate(o, hdr.ComplexFromFloat64(0.1, 0.1), opts(500))
	require.True(t, res.Escaped)
	assert.Zero(t, res.NormalRe)
	assert.Zero(t, res.NormalIm)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
