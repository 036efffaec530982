package fractalwonder

// PointResult is the classification of a single grid point. Results from a
// later quadtree pass supersede earlier ones for the same point; they are
// never merged.
type PointResult struct {
	// Iterations the point survived. Equal to the budget for in-set points.
	Iterations int
	// Escaped reports whether the point left the escape radius.
	Escaped bool
	// Glitched reports that the result is numerically unreliable. After a
	// completed render this is only set for points the quadtree could not
	// resolve within its depth and size limits, which the fallback then
	// recomputed; a true value here indicates the fallback was skipped by
	// cancellation.
	Glitched bool
	// NormalRe, NormalIm is the unit surface-normal direction for shading,
	// zero unless derivative tracking is enabled and the point escaped.
	NormalRe, NormalIm float64
}

// Frame is a completed grid of point results in row-major order.
type Frame struct {
	Width  int
	Height int
	Points []PointResult
}

func newFrame(w, h int) *Frame {
	return &Frame{Width: w, Height: h, Points: make([]PointResult, w*h)}
}

// At returns the result for grid point (x, y).
func (f *Frame) At(x, y int) PointResult {
	return f.Points[y*f.Width+x]
}

// GlitchedCount returns the number of points still flagged unreliable.
func (f *Frame) GlitchedCount() int {
	n := 0
	for i := range f.Points {
		if f.Points[i].Glitched {
			n++
		}
	}
	return n
}

// ProgressEvent reports render progress. Events are delivered from worker
// goroutines as tiles complete and once per finished pass.
type ProgressEvent struct {
	// Generation identifies the render the event belongs to.
	Generation uint64
	// Pass is the quadtree pass number, starting at 0.
	Pass int
	// Depth is the subdivision depth of the cell being computed.
	Depth int
	// TilesDone and TilesTotal count work tiles within the current pass.
	TilesDone  int
	TilesTotal int
	// GlitchedPoints is the running count of unreliable points in the pass.
	GlitchedPoints int
	// PassDone marks the pass-summary event.
	PassDone bool
}
