package fractalwonder

import (
	"fmt"
	"math/big"
)

// Region describes a target viewport in parameter space: an
// arbitrary-precision center and the real-axis width and imaginary-axis
// height of the spanned rectangle. At interesting depths the extents are
// far below float64 resolution, so all four values are big.Floats; the
// precision they carry must be sufficient to separate neighboring grid
// points or Render fails with ErrPrecisionInsufficient.
type Region struct {
	CenterX *big.Float
	CenterY *big.Float
	Width   *big.Float
	Height  *big.Float
}

// NewRegion builds a Region from native coordinates at the given precision.
// Only usable for shallow views; deep centers must come through ParseRegion,
// a float64 center cannot address them.
func NewRegion(centerX, centerY, width, height float64, prec uint) Region {
	return Region{
		CenterX: big.NewFloat(centerX).SetPrec(prec),
		CenterY: big.NewFloat(centerY).SetPrec(prec),
		Width:   big.NewFloat(width).SetPrec(prec),
		Height:  big.NewFloat(height).SetPrec(prec),
	}
}

// ParseRegion builds a Region from decimal strings at the given precision.
// Deep-zoom coordinates are normally exchanged as strings because they
// exceed float64 long before they become interesting.
func ParseRegion(centerX, centerY, width, height string, prec uint) (Region, error) {
	parse := func(s, name string) (*big.Float, error) {
		v, _, err := big.ParseFloat(s, 10, prec, big.ToNearestEven)
		if err != nil {
			return nil, fmt.Errorf("fractalwonder: parse region %s %q: %w", name, s, err)
		}
		return v, nil
	}
	var r Region
	var err error
	if r.CenterX, err = parse(centerX, "center x"); err != nil {
		return Region{}, err
	}
	if r.CenterY, err = parse(centerY, "center y"); err != nil {
		return Region{}, err
	}
	if r.Width, err = parse(width, "width"); err != nil {
		return Region{}, err
	}
	if r.Height, err = parse(height, "height"); err != nil {
		return Region{}, err
	}
	return r, nil
}

// Prec returns the working precision of the region's center in bits.
func (r Region) Prec() uint {
	if r.CenterX == nil {
		return 0
	}
	return r.CenterX.Prec()
}

// valid reports whether the region has all coordinates and a positive
// extent.
func (r Region) valid() bool {
	return r.CenterX != nil && r.CenterY != nil &&
		r.Width != nil && r.Width.Sign() > 0 &&
		r.Height != nil && r.Height.Sign() > 0
}
