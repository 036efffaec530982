// Package fractalwonder computes escape-time classifications for rectangular
// point grids at extreme zoom depth, down to pixel scales around 2^-3300.
//
// The engine is built on perturbation theory: one reference trajectory is
// evaluated at arbitrary precision per render cell, and every other point in
// the cell is iterated as a small delta from it using an extended-range
// float type that keeps magnitude comparisons sound far below the float64
// exponent range. A hierarchical linear-approximation table lets the
// per-point iterator skip many steps at once when provably safe, and an
// adaptive quadtree introduces additional, closer references wherever the
// delta computation turns numerically unreliable.
//
// The public surface is small: build a Renderer with New and functional
// options, describe the target viewport as a Region, and call Render to
// obtain a Frame of per-point results. Coloring, shading and interaction
// belong to external consumers of the Frame.
package fractalwonder
