package fractalwonder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync/atomic"

	"github.com/gertalot/fractalwonder-sub003/internal/bla"
	"github.com/gertalot/fractalwonder-sub003/internal/hdr"
	"github.com/gertalot/fractalwonder-sub003/internal/orbit"
	"github.com/gertalot/fractalwonder-sub003/internal/parallel"
	"github.com/gertalot/fractalwonder-sub003/internal/perturb"
)

var (
	// ErrPrecisionInsufficient reports that the region's coordinates do not
	// carry enough bits to separate neighboring grid points. The caller must
	// re-supply the region at a higher precision (see Region.Prec) and retry.
	ErrPrecisionInsufficient = orbit.ErrPrecisionInsufficient

	// ErrSuperseded reports that a newer render request took over while this
	// one was in flight; its partial results were discarded.
	ErrSuperseded = errors.New("fractalwonder: render superseded by a newer request")

	// ErrInvalidRegion reports a region with missing coordinates or a
	// non-positive extent.
	ErrInvalidRegion = errors.New("fractalwonder: invalid region")

	// ErrInvalidGrid reports non-positive grid dimensions.
	ErrInvalidGrid = errors.New("fractalwonder: grid dimensions must be positive")
)

// Renderer runs the adaptive multi-reference render loop. It owns a worker
// pool shared across renders; renders themselves hold no state between
// calls, every orbit, table and cell is scoped to one Render and discarded.
//
// A Renderer is safe for concurrent use, but concurrent Render calls
// supersede each other: starting a render advances the generation counter,
// and workers of an older generation finish their current tile, observe the
// moved counter and discard their work.
type Renderer struct {
	cfg        config
	pool       *parallel.Pool
	generation atomic.Uint64
}

// New creates a Renderer with the given options applied over the defaults.
func New(opts ...Option) *Renderer {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Renderer{cfg: cfg, pool: parallel.NewPool(cfg.workers)}
}

// Close releases the worker pool. The Renderer must not be used afterwards.
func (r *Renderer) Close() { r.pool.Close() }

// Cancel supersedes any in-flight render. In-flight Render calls return
// ErrSuperseded; workers discard rather than report their current tile.
func (r *Renderer) Cancel() { r.generation.Add(1) }

// cell is one quadtree node. Cells live in a flat arena slice addressed by
// index; parent and children hold arena indices (-1 when absent), so there
// is no recursive ownership to tear down on cancellation.
type cell struct {
	// x, y, w, h is the cell's pixel rectangle within the grid.
	x, y, w, h int
	// depth is the subdivision depth, 0 for the root.
	depth    int
	parent   int
	children [4]int
}

// renderState carries the per-render values shared by every pass.
type renderState struct {
	cfg    *config
	gen    uint64
	region Region
	prec   uint

	gridW, gridH int
	frame        *Frame

	// pdX, pdY are the parameter-space pixel deltas along each axis, kept
	// both at full precision (for reference points and the fallback) and in
	// the extended-range domain (for per-point deltas, whose magnitudes are
	// far below float64 resolution at depth).
	pdX, pdY   *big.Float
	pdXh, pdYh hdr.Float
}

// Render computes the classification frame for the region sampled at
// gridW × gridH points. It blocks until the frame is complete, the context
// is cancelled, or a newer render supersedes it.
func (r *Renderer) Render(ctx context.Context, region Region, gridW, gridH int) (*Frame, error) {
	if gridW <= 0 || gridH <= 0 {
		return nil, ErrInvalidGrid
	}
	if !region.valid() {
		return nil, ErrInvalidRegion
	}
	gen := r.generation.Add(1)
	cfg := &r.cfg

	center := orbit.Point{X: region.CenterX, Y: region.CenterY}
	minBits := orbit.RequiredBits(center, region.Width, region.Height, gridW, gridH, cfg.budget)
	if region.Prec() < minBits {
		return nil, fmt.Errorf("fractalwonder: region carries %d bits, grid needs %d: %w",
			region.Prec(), minBits, ErrPrecisionInsufficient)
	}

	prec := region.Prec()
	st := &renderState{
		cfg:    cfg,
		gen:    gen,
		region: region,
		prec:   prec,
		gridW:  gridW,
		gridH:  gridH,
		frame:  newFrame(gridW, gridH),
		pdX:    axisDelta(region.Width, gridW, prec),
		pdY:    axisDelta(region.Height, gridH, prec),
	}
	st.pdXh = hdr.FromBig(st.pdX)
	st.pdYh = hdr.FromBig(st.pdY)

	Logger().Info("render started",
		"generation", gen, "grid_w", gridW, "grid_h", gridH,
		"budget", cfg.budget, "precision_bits", minBits)

	cells := make([]cell, 0, 8)
	cells = append(cells, cell{
		w: gridW, h: gridH, parent: -1, children: [4]int{-1, -1, -1, -1},
	})

	active := []int{0}
	for pass := 0; len(active) > 0; pass++ {
		var next []int
		passGlitches := 0

		for _, ci := range active {
			glitches, err := r.renderCell(ctx, st, cells[ci], pass)
			if err != nil {
				return nil, err
			}
			if glitches == 0 {
				continue
			}
			passGlitches += glitches

			c := cells[ci]
			if c.depth < cfg.maxDepth && c.w/2 >= cfg.minCellSize && c.h/2 >= cfg.minCellSize {
				kids := subdivide(&cells, ci)
				next = append(next, kids[:]...)
			} else {
				// Depth and size limits are exhausted; whatever is still
				// unreliable in this cell goes through the bounded per-point
				// arbitrary-precision path.
				recovered, err := st.fallbackCell(ctx, r, c)
				if err != nil {
					return nil, err
				}
				Logger().Warn("arbitrary-precision fallback engaged",
					"generation", gen, "pass", pass, "depth", c.depth, "points", recovered)
			}
		}

		Logger().Info("render pass finished",
			"generation", gen, "pass", pass, "cells", len(active), "glitched_points", passGlitches)
		if cfg.progress != nil {
			cfg.progress(ProgressEvent{
				Generation:     gen,
				Pass:           pass,
				GlitchedPoints: passGlitches,
				PassDone:       true,
			})
		}
		active = next
	}

	Logger().Info("render finished", "generation", gen)
	return st.frame, nil
}

// renderCell computes one quadtree cell against a fresh reference at its
// center and returns the number of points flagged unreliable. On passes
// after the first, only tiles still containing unreliable points are
// recomputed; reliable results are left untouched.
func (r *Renderer) renderCell(ctx context.Context, st *renderState, c cell, pass int) (int, error) {
	cfg := st.cfg

	// Cheap pre-check before the expensive orbit: a recovery pass over a
	// clean quadrant is a no-op.
	all := parallel.SplitRect(c.x, c.y, c.w, c.h, cfg.tileSize)
	tiles := all
	if pass > 0 {
		tiles = tiles[:0:0]
		for _, t := range all {
			if st.tileHasGlitch(t) {
				tiles = append(tiles, t)
			}
		}
		if len(tiles) == 0 {
			return 0, nil
		}
	}

	// The cell's reference sits at its pixel-space center.
	fcx := float64(c.x) + float64(c.w)/2
	fcy := float64(c.y) + float64(c.h)/2
	orb, err := orbit.Compute(st.pointAt(fcx, fcy), orbit.Params{
		Budget:         cfg.budget,
		EscapeRadiusSq: cfg.escapeRadiusSq,
		MinBits:        st.prec,
	})
	if err != nil {
		return 0, fmt.Errorf("fractalwonder: cell reference orbit: %w", err)
	}

	var table *bla.Table
	if cfg.useTable {
		// Every delta the table will see is bounded by the cell's
		// half-diagonal in parameter space.
		halfDiag := 0.5 * math.Hypot(float64(c.w), float64(c.h)) * cfg.deltaMargin
		dcMax := hdr.Max(st.pdXh, st.pdYh).MulFloat64(halfDiag)
		table = bla.Build(orb, dcMax)
	}

	Logger().Debug("cell reference ready",
		"generation", st.gen, "pass", pass, "depth", c.depth,
		"orbit_len", orb.Len(), "orbit_escaped", orb.Escaped(),
		"table_levels", tableLevels(table), "tiles", len(tiles))

	// The orbit and table are fully built before any worker is handed a
	// tile; the pool submission is the readiness handoff.
	var done, glitches atomic.Int64
	work := make([]func(), len(tiles))
	for i, tile := range tiles {
		work[i] = func() {
			if ctx.Err() != nil || r.generation.Load() != st.gen {
				// Superseded; discard rather than report.
				return
			}
			g := st.computeTile(orb, table, tile, fcx, fcy, pass > 0)
			glitches.Add(int64(g))
			d := done.Add(1)
			if cfg.progress != nil {
				cfg.progress(ProgressEvent{
					Generation:     st.gen,
					Pass:           pass,
					Depth:          c.depth,
					TilesDone:      int(d),
					TilesTotal:     len(tiles),
					GlitchedPoints: int(glitches.Load()),
				})
			}
		}
	}
	if err := r.pool.Execute(ctx, work); err != nil {
		return 0, err
	}
	if r.generation.Load() != st.gen {
		return 0, ErrSuperseded
	}
	return int(glitches.Load()), nil
}

// computeTile classifies every point of one tile against the cell's
// reference. With recomputeOnly set, points whose current result is reliable
// are skipped so a later pass supersedes only what it must.
func (st *renderState) computeTile(orb *orbit.Orbit, table *bla.Table, tile parallel.Tile, fcx, fcy float64, recomputeOnly bool) int {
	cfg := st.cfg
	opt := perturb.Options{
		Budget:          cfg.budget,
		EscapeRadiusSq:  cfg.escapeRadiusSq,
		TauSq:           cfg.tauSq,
		GlitchFloorSq:   cfg.glitchFloorSq,
		Table:           table,
		TrackDerivative: cfg.derivatives,
	}

	glitches := 0
	for py := tile.Y; py < tile.Y+tile.Height; py++ {
		row := py * st.gridW
		for px := tile.X; px < tile.X+tile.Width; px++ {
			idx := row + px
			if recomputeOnly && !st.frame.Points[idx].Glitched {
				continue
			}

			// Pixel-center offset from the reference, in pixel units; the
			// scale by the pixel delta happens in the extended domain where
			// the result's magnitude is representable.
			dc := hdr.Complex{
				Re: st.pdXh.MulFloat64(float64(px) + 0.5 - fcx),
				Im: st.pdYh.MulFloat64(fcy - (float64(py) + 0.5)),
			}

			res := perturb.Iterate(orb, dc, opt)
			st.frame.Points[idx] = PointResult{
				Iterations: res.Iterations,
				Escaped:    res.Escaped,
				Glitched:   res.Glitched,
				NormalRe:   res.NormalRe,
				NormalIm:   res.NormalIm,
			}
			if res.Glitched {
				glitches++
			}
		}
	}
	return glitches
}

// fallbackCell recomputes the cell's remaining unreliable points directly
// with arbitrary-precision arithmetic, one point at a time. Bounded and
// expected to be small; derivative output is not available on this path.
func (st *renderState) fallbackCell(ctx context.Context, r *Renderer, c cell) (int, error) {
	recovered := 0
	for py := c.y; py < c.y+c.h; py++ {
		row := py * st.gridW
		for px := c.x; px < c.x+c.w; px++ {
			idx := row + px
			if !st.frame.Points[idx].Glitched {
				continue
			}
			if err := ctx.Err(); err != nil {
				return recovered, err
			}
			if r.generation.Load() != st.gen {
				return recovered, ErrSuperseded
			}

			p := st.pointAt(float64(px)+0.5, float64(py)+0.5)
			iters, escaped := orbit.IterateDirect(p, st.cfg.budget, st.cfg.escapeRadiusSq)
			st.frame.Points[idx] = PointResult{Iterations: iters, Escaped: escaped}
			recovered++
		}
	}
	return recovered, nil
}

// pointAt returns the parameter-space point of fractional pixel coordinates
// (fx, fy). The pixel offset from the grid center is exact in float64 (it is
// a small half-integer); the scale to parameter space happens at full
// precision.
func (st *renderState) pointAt(fx, fy float64) orbit.Point {
	offX := new(big.Float).SetPrec(st.prec).SetFloat64(fx - float64(st.gridW)/2)
	offX.Mul(offX, st.pdX)
	offY := new(big.Float).SetPrec(st.prec).SetFloat64(fy - float64(st.gridH)/2)
	offY.Mul(offY, st.pdY)

	x := new(big.Float).SetPrec(st.prec).Add(st.region.CenterX, offX)
	// Grid rows grow downward, the imaginary axis grows upward.
	y := new(big.Float).SetPrec(st.prec).Sub(st.region.CenterY, offY)
	return orbit.Point{X: x, Y: y}
}

// tileHasGlitch reports whether any point of the tile is currently flagged
// unreliable.
func (st *renderState) tileHasGlitch(t parallel.Tile) bool {
	for py := t.Y; py < t.Y+t.Height; py++ {
		row := py * st.gridW
		for px := t.X; px < t.X+t.Width; px++ {
			if st.frame.Points[row+px].Glitched {
				return true
			}
		}
	}
	return false
}

// subdivide splits the cell at arena index ci into four equal children and
// returns their indices. Odd dimensions round the first half down.
func subdivide(cells *[]cell, ci int) [4]int {
	c := (*cells)[ci]
	w1, h1 := c.w/2, c.h/2
	quads := [4]cell{
		{x: c.x, y: c.y, w: w1, h: h1},
		{x: c.x + w1, y: c.y, w: c.w - w1, h: h1},
		{x: c.x, y: c.y + h1, w: w1, h: c.h - h1},
		{x: c.x + w1, y: c.y + h1, w: c.w - w1, h: c.h - h1},
	}

	var idx [4]int
	for i := range quads {
		quads[i].depth = c.depth + 1
		quads[i].parent = ci
		quads[i].children = [4]int{-1, -1, -1, -1}
		idx[i] = len(*cells)
		*cells = append(*cells, quads[i])
	}
	(*cells)[ci].children = idx
	return idx
}

// axisDelta returns extent/n at the given precision.
func axisDelta(extent *big.Float, n int, prec uint) *big.Float {
	d := new(big.Float).SetPrec(prec).SetInt64(int64(n))
	return d.Quo(new(big.Float).SetPrec(prec).Copy(extent), d)
}

func tableLevels(t *bla.Table) int {
	if t == nil {
		return 0
	}
	return t.Levels()
}
