package toolkit

import (
	"encoding/binary"
	"math"

	"golang.org/x/exp/constraints"

	"github.com/Skryldev/imagecore/core"
)

// A reader extracts one scalar from the bytes of a single pixel.
type reader[T any] func(px []byte) T

func u8At(i int) reader[uint8] {
	return func(px []byte) uint8 { return px[i] }
}

func u16At(i int) reader[uint16] {
	off := 2 * i
	return func(px []byte) uint16 { return binary.LittleEndian.Uint16(px[off:]) }
}

func i16At(i int) reader[int16] {
	off := 2 * i
	return func(px []byte) int16 { return int16(binary.LittleEndian.Uint16(px[off:])) }
}

func u32At(i int) reader[uint32] {
	off := 4 * i
	return func(px []byte) uint32 { return binary.LittleEndian.Uint32(px[off:]) }
}

func i32At(i int) reader[int32] {
	off := 4 * i
	return func(px []byte) int32 { return int32(binary.LittleEndian.Uint32(px[off:])) }
}

func f32At(i int) reader[float64] {
	off := 4 * i
	return func(px []byte) float64 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(px[off:])))
	}
}

func f64At(i int) reader[float64] {
	off := 8 * i
	return func(px []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(px[off:])) }
}

// Rec. 709 luma weights.
const (
	lumaR = 0.2126
	lumaG = 0.7152
	lumaB = 0.0722
)

// lumaOf combines three unsigned channels into a rounded luma value of the
// same width.
func lumaOf[T constraints.Unsigned](r, g, b reader[T]) reader[T] {
	top := float64(^T(0))
	return func(px []byte) T {
		l := lumaR*float64(r(px)) + lumaG*float64(g(px)) + lumaB*float64(b(px)) + 0.5
		if l > top {
			l = top
		}
		return T(l)
	}
}

func lumaFloat(r, g, b reader[float64]) reader[float64] {
	return func(px []byte) float64 {
		return lumaR*r(px) + lumaG*g(px) + lumaB*b(px)
	}
}

func magnitude(re, im reader[float64]) reader[float64] {
	return func(px []byte) float64 { return math.Hypot(re(px), im(px)) }
}

// rgbReaders returns red, green, blue and luma readers over sample readers
// built by at.
func rgbReaders[T constraints.Unsigned](at func(int) reader[T]) [4]reader[T] {
	r, g, b := at(0), at(1), at(2)
	return [4]reader[T]{r, g, b, lumaOf(r, g, b)}
}

// eachPixel calls fn with the bytes of every pixel, row by row.
func eachPixel(bm *core.Bitmap, fn func(px []byte)) {
	step := bm.BPP() / 8
	w := bm.Width()
	for y := 0; y < bm.Height(); y++ {
		line := bm.ScanLine(y)
		for x := 0; x < w; x++ {
			fn(line[x*step : x*step+step])
		}
	}
}
