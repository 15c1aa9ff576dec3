package toolkit

import (
	"golang.org/x/exp/constraints"

	"github.com/Skryldev/imagecore/core"
	apperrors "github.com/Skryldev/imagecore/errors"
)

// HistogramChannel is a caller-owned output buffer.  Bin i is stored at
// Counts[i*Stride].
type HistogramChannel struct {
	Counts []uint32
	Stride int
}

// HistogramRequest selects the buffers MakeHistogram fills.  Nil channels
// are skipped.
//
// For colour types Red, Green and Blue receive the matching channel and Luma
// a Rec. 709 weighted brightness.  Complex types put the real part in Red,
// the imaginary part in Green and the magnitude in Blue.  Single channel
// types put their only sample in Red.  A buffer the image type has no
// channel for is left zeroed.
type HistogramRequest struct {
	Bins  int
	Red   *HistogramChannel
	Green *HistogramChannel
	Blue  *HistogramChannel
	Luma  *HistogramChannel
}

func (r HistogramRequest) channels() [4]*HistogramChannel {
	return [4]*HistogramChannel{r.Red, r.Green, r.Blue, r.Luma}
}

// binner pairs an output buffer with the mapping from pixel bytes to bin.
type binner struct {
	counts []uint32
	stride int
	index  func(px []byte) int
}

// MakeHistogram counts the pixels of bm into the requested buffers in a
// single pass and returns the value range the bins cover: the numeric range
// of integer types, the scanned range of floating point types.
//
// Every requested buffer is zeroed before the image type is checked, so a
// failed call never leaves stale counts behind.
func MakeHistogram(bm *core.Bitmap, req HistogramRequest) (Range, error) {
	const op = "histogram.make"
	if !bm.HasPixels() {
		return Range{}, apperrors.New(apperrors.CategoryInput, op, apperrors.ErrNoPixels)
	}
	if req.Bins < 1 {
		return Range{}, apperrors.Newf(apperrors.CategoryInput, op, "%w: %d", apperrors.ErrInvalidBins, req.Bins)
	}
	chans := req.channels()
	requested := false
	for _, c := range chans {
		if c == nil {
			continue
		}
		requested = true
		if c.Stride <= 0 {
			return Range{}, apperrors.Newf(apperrors.CategoryInput, op, "%w: %d", apperrors.ErrInvalidStride, c.Stride)
		}
		if need := (req.Bins-1)*c.Stride + 1; len(c.Counts) < need {
			return Range{}, apperrors.Newf(apperrors.CategoryInput, op, "%w: buffer holds %d entries, need %d", apperrors.ErrInvalidStride, len(c.Counts), need)
		}
	}
	if !requested {
		return Range{}, nil
	}
	for _, c := range chans {
		if c == nil {
			continue
		}
		for i := 0; i < req.Bins; i++ {
			c.Counts[i*c.Stride] = 0
		}
	}

	bins := req.Bins
	switch bm.Type() {
	case core.TypeBitmap:
		switch bm.BPP() {
		case 8:
			return unsignedHistogram(bm, bins, chans, [4]reader[uint8]{u8At(0)}), nil
		case 24, 32:
			return unsignedHistogram(bm, bins, chans, rgbReaders(u8At)), nil
		}
	case core.TypeUInt16:
		return unsignedHistogram(bm, bins, chans, [4]reader[uint16]{u16At(0)}), nil
	case core.TypeRGB16, core.TypeRGBA16:
		return unsignedHistogram(bm, bins, chans, rgbReaders(u16At)), nil
	case core.TypeUInt32:
		return unsignedHistogram(bm, bins, chans, [4]reader[uint32]{u32At(0)}), nil
	case core.TypeRGB32, core.TypeRGBA32:
		return unsignedHistogram(bm, bins, chans, rgbReaders(u32At)), nil
	case core.TypeInt16:
		return signedHistogram(bm, bins, chans, [4]reader[int16]{i16At(0)}), nil
	case core.TypeInt32:
		return signedHistogram(bm, bins, chans, [4]reader[int32]{i32At(0)}), nil
	case core.TypeFloat:
		return floatHistogram(bm, bins, chans, [4]reader[float64]{f32At(0)}, 1)
	case core.TypeDouble:
		return floatHistogram(bm, bins, chans, [4]reader[float64]{f64At(0)}, 1)
	case core.TypeRGBF, core.TypeRGBAF:
		r, g, b := f32At(0), f32At(1), f32At(2)
		return floatHistogram(bm, bins, chans, [4]reader[float64]{r, g, b, lumaFloat(r, g, b)}, 3)
	case core.TypeComplex:
		re, im := f64At(0), f64At(1)
		return floatHistogram(bm, bins, chans, [4]reader[float64]{re, im, magnitude(re, im)}, 2)
	case core.TypeComplexF:
		re, im := f32At(0), f32At(1)
		return floatHistogram(bm, bins, chans, [4]reader[float64]{re, im, magnitude(re, im)}, 2)
	}
	return Range{}, unsupported(op, bm)
}

func unsignedHistogram[T constraints.Unsigned](bm *core.Bitmap, bins int, chans [4]*HistogramChannel, sels [4]reader[T]) Range {
	fill(bm, activeBinners(chans, sels, UnsignedBins[T](bins)))
	return Range{Min: 0, Max: float64(^T(0))}
}

func signedHistogram[T constraints.Signed](bm *core.Bitmap, bins int, chans [4]*HistogramChannel, sels [4]reader[T]) Range {
	fill(bm, activeBinners(chans, sels, SignedBins[T](bins)))
	w := widthOf[T]()
	lo := int64(-1) << (w - 1)
	return Range{Min: float64(lo), Max: float64(-(lo + 1))}
}

// floatHistogram scans the first n selectors for the value range, then bins
// every requested channel against it.  A constant image puts every pixel in
// bin 0 without a second pass.
func floatHistogram(bm *core.Bitmap, bins int, chans [4]*HistogramChannel, sels [4]reader[float64], n int) (Range, error) {
	ranges := scanRanges(bm, sels[:n])
	rng := ranges[0]
	for _, r := range ranges[1:] {
		rng = rng.merge(r)
	}
	if rng.Min == rng.Max {
		total := uint32(bm.Width() * bm.Height())
		for i, c := range chans {
			if c != nil && sels[i] != nil {
				c.Counts[0] = total
			}
		}
		return rng, nil
	}
	index, err := FloatBins[float64](bins, rng.Min, rng.Max)
	if err != nil {
		return Range{}, err
	}
	fill(bm, activeBinners(chans, sels, index))
	return rng, nil
}

// activeBinners pairs every requested buffer with its selector.  Buffers
// without a selector stay zeroed.
func activeBinners[T any](chans [4]*HistogramChannel, sels [4]reader[T], index func(T) int) []binner {
	active := make([]binner, 0, len(chans))
	for i, c := range chans {
		sel := sels[i]
		if c == nil || sel == nil {
			continue
		}
		active = append(active, binner{
			counts: c.Counts,
			stride: c.Stride,
			index:  func(px []byte) int { return index(sel(px)) },
		})
	}
	return active
}

// fill is the single traversal shared by every image type.
func fill(bm *core.Bitmap, active []binner) {
	if len(active) == 0 {
		return
	}
	eachPixel(bm, func(px []byte) {
		for i := range active {
			b := &active[i]
			b.counts[b.index(px)*b.stride]++
		}
	})
}

// GetHistogram returns a 256-bin histogram of an 8, 24 or 32-bit BITMAP.
// 8-bit images count their raw values whatever the channel.  For 24 and
// 32-bit images ChannelRGB and ChannelBlack count the rounded Rec. 709 grey
// level.
func GetHistogram(bm *core.Bitmap, ch Channel) ([256]uint32, error) {
	const op = "histogram.get"
	var hist [256]uint32
	if !bm.HasPixels() {
		return hist, apperrors.New(apperrors.CategoryInput, op, apperrors.ErrNoPixels)
	}
	if bm.Type() != core.TypeBitmap {
		return hist, unsupported(op, bm)
	}

	var sel reader[uint8]
	switch bm.BPP() {
	case 8:
		sel = u8At(0)
	case 24, 32:
		rgb := rgbReaders(u8At)
		switch ch {
		case ChannelRed:
			sel = rgb[0]
		case ChannelGreen:
			sel = rgb[1]
		case ChannelBlue:
			sel = rgb[2]
		case ChannelRGB, ChannelBlack:
			sel = rgb[3]
		default:
			return hist, apperrors.Newf(apperrors.CategoryInput, op, "%w: %s", apperrors.ErrInvalidChannel, ch)
		}
	default:
		return hist, unsupported(op, bm)
	}
	eachPixel(bm, func(px []byte) { hist[sel(px)]++ })
	return hist, nil
}
