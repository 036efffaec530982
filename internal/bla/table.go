package bla

import (
	"github.com/gertalot/fractalwonder-sub003/internal/hdr"
	"github.com/gertalot/fractalwonder-sub003/internal/orbit"
)

// Table is a hierarchical approximation table for one reference orbit.
//
// levels[k][i] covers the 2^k orbit steps starting at index i·2^k (the last
// entry of a level may cover fewer when the orbit length is not a power of
// two). An entry is only a correct linear map when applied starting exactly
// at its own start index; Lookup enforces that alignment.
//
// A Table is immutable after Build and safe for concurrent readers.
type Table struct {
	levels [][]Entry
	dcMax  hdr.Float
}

// Build derives a table from a reference orbit, where dcMax bounds |δc| over
// every point the table will serve.
func Build(o *orbit.Orbit, dcMax hdr.Float) *Table {
	n := o.Len()
	t := &Table{dcMax: dcMax}
	if n == 0 {
		return t
	}

	level0 := make([]Entry, n)
	for i := 0; i < n; i++ {
		zRe, zIm := o.At(i)
		derRe, derIm := o.DerivAt(i)
		level0[i] = SingleStep(zRe, zIm, derRe, derIm)
	}
	t.levels = append(t.levels, level0)

	for prev := level0; len(prev) > 1; {
		next := make([]Entry, 0, (len(prev)+1)/2)
		for i := 0; i+1 < len(prev); i += 2 {
			next = append(next, Merge(prev[i], prev[i+1], dcMax))
		}
		if len(prev)%2 == 1 {
			// Odd trailing entry carries forward unchanged. Its index halves,
			// so its start position i·2^k is preserved exactly.
			next = append(next, prev[len(prev)-1])
		}
		t.levels = append(t.levels, next)
		prev = next
	}
	return t
}

// FromLevels reassembles a table from previously built levels, as decoded
// from a snapshot. The slices are adopted, not copied.
func FromLevels(levels [][]Entry, dcMax hdr.Float) *Table {
	return &Table{levels: levels, dcMax: dcMax}
}

// Levels returns the number of levels in the table (0 for an empty table).
func (t *Table) Levels() int { return len(t.levels) }

// LevelEntries returns the entries of level k. The slice is shared and must
// not be mutated; it exists for snapshot encoding and tests.
func (t *Table) LevelEntries(k int) []Entry {
	if k < 0 || k >= len(t.levels) {
		return nil
	}
	return t.levels[k]
}

// DCMax returns the |δc| bound the table was built with.
func (t *Table) DCMax() hdr.Float { return t.dcMax }

// FindValid returns the largest-skip entry applicable at orbit index m with
// the current |δz|², or nil when no entry applies and the caller must take
// a standard step.
//
// An entry at level k is considered only when m is an exact multiple of 2^k:
// the entry is the composition of the single steps starting at i·2^k, and
// applying it anywhere else substitutes the wrong linear map while looking
// plausible — the historical corruption mode in uniform regions where
// re-basing never resets m. Acceptance requires |δz|² strictly below the
// entry's validity radius squared, compared in the extended domain.
func (t *Table) FindValid(m int, dzSq hdr.Float) *Entry {
	if m < 0 {
		return nil
	}
	for k := len(t.levels) - 1; k >= 0; k-- {
		if m&((1<<k)-1) != 0 {
			continue
		}
		i := m >> k
		level := t.levels[k]
		if i >= len(level) {
			continue
		}
		e := &level[i]
		if !dzSq.Less(e.RSq) {
			continue
		}
		// Re-derive the alignment before handing the entry out. A misaligned
		// entry must never be applied; treat any violation as "not found".
		if i<<k != m {
			continue
		}
		return e
	}
	return nil
}
