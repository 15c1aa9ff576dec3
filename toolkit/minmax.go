package toolkit

import (
	"math"

	"github.com/Skryldev/imagecore/core"
	apperrors "github.com/Skryldev/imagecore/errors"
)

// Range is a closed value interval.
type Range struct {
	Min, Max float64
}

// merge returns the smallest range covering r and o.
func (r Range) merge(o Range) Range {
	return Range{Min: math.Min(r.Min, o.Min), Max: math.Max(r.Max, o.Max)}
}

// sampleReaders returns a float64 reader for every sample of a pixel.
func sampleReaders(bm *core.Bitmap) ([]reader[float64], error) {
	n := bm.SamplesPerPixel()
	out := make([]reader[float64], n)
	for i := range out {
		switch bm.Type() {
		case core.TypeBitmap:
			if bm.BPP() < 8 {
				return nil, unsupported("histogram.min_max", bm)
			}
			r := u8At(i)
			out[i] = func(px []byte) float64 { return float64(r(px)) }
		case core.TypeUInt16, core.TypeRGB16, core.TypeRGBA16:
			r := u16At(i)
			out[i] = func(px []byte) float64 { return float64(r(px)) }
		case core.TypeInt16:
			r := i16At(i)
			out[i] = func(px []byte) float64 { return float64(r(px)) }
		case core.TypeUInt32, core.TypeRGB32, core.TypeRGBA32:
			r := u32At(i)
			out[i] = func(px []byte) float64 { return float64(r(px)) }
		case core.TypeInt32:
			r := i32At(i)
			out[i] = func(px []byte) float64 { return float64(r(px)) }
		case core.TypeFloat, core.TypeRGBF, core.TypeRGBAF, core.TypeComplexF:
			out[i] = f32At(i)
		case core.TypeDouble, core.TypeComplex:
			out[i] = f64At(i)
		default:
			return nil, unsupported("histogram.min_max", bm)
		}
	}
	return out, nil
}

// FindMinMax scans bm once and returns the range of every sample channel in
// storage order (R, G, B, A for colour types, real and imaginary for complex
// types).  NaN and infinite samples are ignored; a channel holding nothing
// else reports [0, 0].
func FindMinMax(bm *core.Bitmap) ([]Range, error) {
	const op = "histogram.min_max"
	if !bm.HasPixels() {
		return nil, apperrors.New(apperrors.CategoryInput, op, apperrors.ErrNoPixels)
	}
	readers, err := sampleReaders(bm)
	if err != nil {
		return nil, err
	}
	return scanRanges(bm, readers), nil
}

func scanRanges(bm *core.Bitmap, readers []reader[float64]) []Range {
	out := make([]Range, len(readers))
	for i := range out {
		out[i] = Range{Min: math.Inf(1), Max: math.Inf(-1)}
	}
	eachPixel(bm, func(px []byte) {
		for i, r := range readers {
			v := r(px)
			if math.IsInf(v, 0) {
				continue
			}
			if v < out[i].Min {
				out[i].Min = v
			}
			if v > out[i].Max {
				out[i].Max = v
			}
		}
	})
	for i := range out {
		if out[i].Min > out[i].Max {
			out[i] = Range{}
		}
	}
	return out
}

func unsupported(op string, bm *core.Bitmap) error {
	return apperrors.Newf(apperrors.CategoryInput, op, "%w: %d-bit %s", apperrors.ErrUnsupportedImage, bm.BPP(), bm.Type())
}
