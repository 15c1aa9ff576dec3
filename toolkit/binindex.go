// Package toolkit computes histograms and applies tone curves and colour
// mappings to core.Bitmap values.
package toolkit

import (
	"math"
	"math/bits"

	"golang.org/x/exp/constraints"

	apperrors "github.com/Skryldev/imagecore/errors"
)

// widthOf returns the number of bits in T.
func widthOf[T constraints.Integer]() uint {
	var x T = 1
	var w uint
	for x != 0 {
		x <<= 1
		w++
	}
	return w
}

// scaleIndex returns floor(u * bins / 2^w) clamped to bins-1.  The product is
// computed in 128 bits so no width can overflow.
func scaleIndex(u uint64, w uint, bins int) int {
	hi, lo := bits.Mul64(u, uint64(bins))
	idx := hi<<(64-w) | lo>>w
	if idx >= uint64(bins) {
		return bins - 1
	}
	return int(idx)
}

// UnsignedBins returns the bin mapper for an unsigned sample type.  When
// bins covers the full range of T the sample value is the index.
func UnsignedBins[T constraints.Unsigned](bins int) func(T) int {
	w := widthOf[T]()
	if w < 63 && bins == 1<<w {
		last := uint64(bins - 1)
		return func(v T) int {
			return int(min(uint64(v), last))
		}
	}
	return func(v T) int {
		return scaleIndex(uint64(v), w, bins)
	}
}

// SignedBins returns the bin mapper for a signed sample type.  Values are
// shifted by the type minimum onto the unsigned range of the same width.
func SignedBins[T constraints.Signed](bins int) func(T) int {
	w := widthOf[T]()
	lowest := uint64(int64(-1) << (w - 1))
	return func(v T) int {
		return scaleIndex(uint64(int64(v))-lowest, w, bins)
	}
}

// FloatBins returns the bin mapper for floating point samples in [lo, hi].
// Values outside the range are clamped and NaN lands in bin 0.  A
// degenerate range maps everything to bin 0.
func FloatBins[T constraints.Float](bins int, lo, hi float64) (func(T) int, error) {
	const op = "histogram.float_bins"
	if bins < 1 {
		return nil, apperrors.Newf(apperrors.CategoryInput, op, "%w: %d", apperrors.ErrInvalidBins, bins)
	}
	if math.IsNaN(lo) || math.IsNaN(hi) || lo > hi {
		return nil, apperrors.Newf(apperrors.CategoryInput, op, "%w: [%g, %g]", apperrors.ErrInvalidRange, lo, hi)
	}
	if lo == hi {
		return func(T) int { return 0 }, nil
	}
	n := float64(bins)
	span := hi - lo
	last := bins - 1
	return func(v T) int {
		f := (float64(v) - lo) * n / span
		switch {
		case !(f > 0):
			return 0
		case f >= float64(last):
			return last
		}
		return int(f)
	}, nil
}
