package fractalwonder

// Option configures a Renderer during creation.
//
// Example:
//
//	// Defaults tuned for interactive deep zooming
//	r := fractalwonder.New()
//
//	// Heavier budget, no iteration skipping
//	r := fractalwonder.New(
//	    fractalwonder.WithBudget(5_000_000),
//	    fractalwonder.WithApproximation(false),
//	)
type Option func(*config)

// config holds the tunable parameters of a Renderer.
type config struct {
	budget         int
	escapeRadiusSq float64
	tauSq          float64
	glitchFloorSq  float64
	deltaMargin    float64
	useTable       bool
	derivatives    bool
	tileSize       int
	maxDepth       int
	minCellSize    int
	workers        int
	progress       func(ProgressEvent)
}

// defaultConfig returns the default renderer configuration.
func defaultConfig() config {
	return config{
		budget:         100_000,
		escapeRadiusSq: 65536,
		tauSq:          1e-6,
		glitchFloorSq:  1e-20,
		deltaMargin:    1.0,
		useTable:       true,
		derivatives:    false,
		tileSize:       64,
		maxDepth:       8,
		minCellSize:    8,
		workers:        0, // GOMAXPROCS
	}
}

// WithBudget sets the iteration budget. Deep views need budgets in the
// millions; the default is 100000.
func WithBudget(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.budget = n
		}
	}
}

// WithEscapeRadiusSq sets the squared escape radius of the recurrence.
// Large radii (the default is 65536) smooth iteration counts for
// downstream coloring.
func WithEscapeRadiusSq(r float64) Option {
	return func(c *config) {
		if r > 0 {
			c.escapeRadiusSq = r
		}
	}
}

// WithUnreliabilityThresholdSq sets τ², the squared magnitude ratio below
// which a point's delta computation is flagged unreliable. The default 1e-6
// works well in practice but is render-tunable.
func WithUnreliabilityThresholdSq(tauSq float64) Option {
	return func(c *config) {
		if tauSq > 0 {
			c.tauSq = tauSq
		}
	}
}

// WithUnreliabilityFloorSq sets the numerical floor on |Z_m|² below which
// the unreliability test is suppressed. Default 1e-20.
func WithUnreliabilityFloorSq(floorSq float64) Option {
	return func(c *config) {
		if floorSq > 0 {
			c.glitchFloorSq = floorSq
		}
	}
}

// WithDeltaMargin scales the maximum delta magnitude the approximation
// table is built for. Values above 1 trade skip acceptance for safety
// margin; the default is 1.
func WithDeltaMargin(m float64) Option {
	return func(c *config) {
		if m > 0 {
			c.deltaMargin = m
		}
	}
}

// WithApproximation enables or disables the iteration-skipping
// approximation table. Enabled by default; disabling it is mainly useful
// for validating results, since the two paths must classify identically.
func WithApproximation(enabled bool) Option {
	return func(c *config) {
		c.useTable = enabled
	}
}

// WithDerivatives enables derivative tracking, producing a surface-normal
// direction per escaped point for downstream shading.
func WithDerivatives(enabled bool) Option {
	return func(c *config) {
		c.derivatives = enabled
	}
}

// WithTileSize sets the edge length in pixels of the work tiles handed to
// workers, and of the sub-tiles used for unreliability aggregation.
func WithTileSize(px int) Option {
	return func(c *config) {
		if px > 0 {
			c.tileSize = px
		}
	}
}

// WithMaxDepth sets the maximum quadtree subdivision depth for unreliable
// regions. Default 8.
func WithMaxDepth(d int) Option {
	return func(c *config) {
		if d >= 0 {
			c.maxDepth = d
		}
	}
}

// WithMinCellSize sets the minimum quadtree cell edge in pixels below which
// cells are no longer subdivided. Default 8.
func WithMinCellSize(px int) Option {
	return func(c *config) {
		if px > 0 {
			c.minCellSize = px
		}
	}
}

// WithWorkers sets the number of worker goroutines. Zero or negative uses
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithProgress installs a progress callback. The callback is invoked from
// worker goroutines as tiles complete and must be safe for concurrent use;
// keep it cheap, it sits on the render path.
func WithProgress(fn func(ProgressEvent)) Option {
	return func(c *config) {
		c.progress = fn
	}
}
