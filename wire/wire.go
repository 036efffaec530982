// Package wire encodes orbit and approximation-table snapshots for exchange
// with out-of-process executors.
//
// Snapshots are flat, index-addressable records: every extended-range float
// is written as its exact head/tail mantissa bit patterns plus the exponent,
// so a decoded snapshot reproduces bit-identical comparison behavior on the
// other side. Beyond bit exactness the encoding is a plain little-endian
// layout with a magic/version header and a generation id; receivers discard
// snapshots whose generation is stale rather than trying to patch them.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gertalot/fractalwonder-sub003/internal/bla"
	"github.com/gertalot/fractalwonder-sub003/internal/hdr"
	"github.com/gertalot/fractalwonder-sub003/internal/orbit"
)

// Format identification.
const (
	// Magic marks the start of every snapshot ("FWS" + version byte slot).
	Magic = uint32(0x00535746)
	// Version is the current encoding version.
	Version = uint32(1)
)

var (
	// ErrBadMagic reports data that is not a snapshot at all.
	ErrBadMagic = errors.New("wire: bad magic")
	// ErrVersion reports a snapshot from an incompatible encoder.
	ErrVersion = errors.New("wire: unsupported version")
	// ErrTruncated reports a snapshot cut short of its declared contents.
	ErrTruncated = errors.New("wire: truncated snapshot")
)

// Snapshot bundles the read-only per-pass state a parallel executor needs:
// the reference orbit, its approximation table, and the generation that
// produced them. Executors compare Generation against the current render
// generation and discard stale snapshots.
type Snapshot struct {
	Generation uint64
	Orbit      *orbit.Orbit
	Table      *bla.Table
}

// Record sizes in bytes.
const (
	floatSize   = 8 + 8 + 4                     // head, tail, exp
	complexSize = 2 * floatSize                 // re, im
	entrySize   = 4*complexSize + floatSize + 4 // A B D E, rSq, skip
	pointSize   = 4 * 8                         // zRe, zIm, derRe, derIm
)

// Encode serializes a snapshot to its wire form.
func Encode(s *Snapshot) []byte {
	o := s.Orbit
	t := s.Table

	n := 0
	if o != nil {
		n = o.Len()
	}
	levels := 0
	entries := 0
	if t != nil {
		levels = t.Levels()
		for k := range levels {
			entries += len(t.LevelEntries(k))
		}
	}

	size := 4 + 4 + 8 + // magic, version, generation
		8 + 8 + // reference point
		8 + n*pointSize + // orbit count + records
		floatSize + 4 + levels*4 + entries*entrySize // dcMax, level count, level sizes, entries

	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, Magic)
	buf = binary.LittleEndian.AppendUint32(buf, Version)
	buf = binary.LittleEndian.AppendUint64(buf, s.Generation)

	if o != nil {
		buf = appendF64(buf, o.RefX)
		buf = appendF64(buf, o.RefY)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(int64(o.EscapedAt)))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(n))
		for i := range n {
			p := o.Points[i]
			d := o.Deriv[i]
			buf = appendF64(buf, p[0])
			buf = appendF64(buf, p[1])
			buf = appendF64(buf, d[0])
			buf = appendF64(buf, d[1])
		}
	} else {
		buf = appendF64(buf, 0)
		buf = appendF64(buf, 0)
		buf = binary.LittleEndian.AppendUint64(buf, ^uint64(0))
		buf = binary.LittleEndian.AppendUint32(buf, 0)
	}

	if t != nil {
		buf = appendFloat(buf, t.DCMax())
		buf = binary.LittleEndian.AppendUint32(buf, uint32(levels))
		for k := range levels {
			es := t.LevelEntries(k)
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(es)))
			for i := range es {
				buf = appendEntry(buf, &es[i])
			}
		}
	} else {
		buf = appendFloat(buf, hdr.Zero)
		buf = binary.LittleEndian.AppendUint32(buf, 0)
	}
	return buf
}

// Decode reconstructs a snapshot from its wire form.
func Decode(data []byte) (*Snapshot, error) {
	d := decoder{data: data}

	if magic := d.u32(); magic != Magic {
		if d.err != nil {
			return nil, d.err
		}
		return nil, fmt.Errorf("%w: 0x%08x", ErrBadMagic, magic)
	}
	if v := d.u32(); v != Version && d.err == nil {
		return nil, fmt.Errorf("%w: %d", ErrVersion, v)
	}

	s := &Snapshot{Generation: d.u64()}

	o := &orbit.Orbit{
		RefX:      d.f64(),
		RefY:      d.f64(),
		EscapedAt: int(int64(d.u64())),
	}
	n := int(d.u32())
	if d.err != nil {
		return nil, d.err
	}
	if remaining := len(data) - d.off; remaining < n*pointSize {
		return nil, ErrTruncated
	}
	o.Points = make([][2]float64, n)
	o.Deriv = make([][2]float64, n)
	for i := range n {
		o.Points[i] = [2]float64{d.f64(), d.f64()}
		o.Deriv[i] = [2]float64{d.f64(), d.f64()}
	}
	s.Orbit = o

	dcMax := d.float()
	levelCount := int(d.u32())
	if d.err != nil {
		return nil, d.err
	}
	levels := make([][]bla.Entry, 0, levelCount)
	for range levelCount {
		count := int(d.u32())
		if d.err != nil {
			return nil, d.err
		}
		if remaining := len(data) - d.off; remaining < count*entrySize {
			return nil, ErrTruncated
		}
		es := make([]bla.Entry, count)
		for i := range count {
			es[i] = d.entry()
		}
		levels = append(levels, es)
	}
	if d.err != nil {
		return nil, d.err
	}
	s.Table = bla.FromLevels(levels, dcMax)
	return s, nil
}

// ============================================================================
// Encoding helpers
// ============================================================================

func appendF64(buf []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
}

func appendFloat(buf []byte, f hdr.Float) []byte {
	buf = appendF64(buf, f.Head)
	buf = appendF64(buf, f.Tail)
	return binary.LittleEndian.AppendUint32(buf, uint32(f.Exp))
}

func appendComplex(buf []byte, c hdr.Complex) []byte {
	buf = appendFloat(buf, c.Re)
	return appendFloat(buf, c.Im)
}

func appendEntry(buf []byte, e *bla.Entry) []byte {
	buf = appendComplex(buf, e.A)
	buf = appendComplex(buf, e.B)
	buf = appendComplex(buf, e.D)
	buf = appendComplex(buf, e.E)
	buf = appendFloat(buf, e.RSq)
	return binary.LittleEndian.AppendUint32(buf, uint32(e.Skip))
}

// ============================================================================
// Decoding helpers
// ============================================================================

type decoder struct {
	data []byte
	off  int
	err  error
}

func (d *decoder) u32() uint32 {
	if d.err != nil {
		return 0
	}
	if d.off+4 > len(d.data) {
		d.err = ErrTruncated
		return 0
	}
	v := binary.LittleEndian.Uint32(d.data[d.off:])
	d.off += 4
	return v
}

func (d *decoder) u64() uint64 {
	if d.err != nil {
		return 0
	}
	if d.off+8 > len(d.data) {
		d.err = ErrTruncated
		return 0
	}
	v := binary.LittleEndian.Uint64(d.data[d.off:])
	d.off += 8
	return v
}

func (d *decoder) f64() float64 {
	return math.Float64frombits(d.u64())
}

func (d *decoder) float() hdr.Float {
	return hdr.Float{
		Head: d.f64(),
		Tail: d.f64(),
		Exp:  int32(d.u32()),
	}
}

func (d *decoder) complex() hdr.Complex {
	return hdr.Complex{Re: d.float(), Im: d.float()}
}

func (d *decoder) entry() bla.Entry {
	return bla.Entry{
		A:    d.complex(),
		B:    d.complex(),
		D:    d.complex(),
		E:    d.complex(),
		RSq:  d.float(),
		Skip: int(d.u32()),
	}
}
