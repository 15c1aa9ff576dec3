package toolkit

import (
	"fmt"
	"math"

	"github.com/Skryldev/imagecore/core"
	apperrors "github.com/Skryldev/imagecore/errors"
)

// Channel selects the colour channels an operation applies to.
type Channel int

const (
	ChannelRGB Channel = iota
	ChannelRed
	ChannelGreen
	ChannelBlue
	ChannelAlpha
	ChannelBlack
)

func (c Channel) String() string {
	switch c {
	case ChannelRGB:
		return "rgb"
	case ChannelRed:
		return "red"
	case ChannelGreen:
		return "green"
	case ChannelBlue:
		return "blue"
	case ChannelAlpha:
		return "alpha"
	case ChannelBlack:
		return "black"
	}
	return fmt.Sprintf("Channel(%d)", int(c))
}

// ParseChannel maps a channel name as printed by String back to a Channel.
func ParseChannel(s string) (Channel, error) {
	for c := ChannelRGB; c <= ChannelBlack; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, apperrors.Newf(apperrors.CategoryInput, "curve.channel", "%w: %q", apperrors.ErrInvalidChannel, s)
}

// Curve maps every 8-bit sample value to a new one.
type Curve [256]uint8

// Identity returns the curve that leaves every value unchanged.
func Identity() Curve {
	var c Curve
	for i := range c {
		c[i] = uint8(i)
	}
	return c
}

// Then returns the curve that applies c first and next second.
func (c Curve) Then(next Curve) Curve {
	var out Curve
	for i, v := range c {
		out[i] = next[v]
	}
	return out
}

// BuildLookupTable combines contrast, brightness and gamma adjustments and
// an optional inversion into one curve, applied in that fixed order.
// brightness and contrast are percentages in [-100, 100]; gamma is ignored
// unless it is positive and not 1.  The second result counts the
// adjustments that were applied.
//
// Every step works on unrounded values clamped to [0, 255]; rounding happens
// once at the end, so the combined curve differs from chaining single
// purpose curves.
func BuildLookupTable(brightness, contrast, gamma float64, invert bool) (Curve, int) {
	if brightness == 0 && contrast == 0 && gamma == 1 && !invert {
		return Identity(), 0
	}

	var v [256]float64
	for i := range v {
		v[i] = float64(i)
	}
	n := 0
	if contrast != 0 {
		scale := (100 + contrast) / 100
		for i := range v {
			v[i] = clamp255(128 + (v[i]-128)*scale)
		}
		n++
	}
	if brightness != 0 {
		scale := (100 + brightness) / 100
		for i := range v {
			v[i] = clamp255(v[i] * scale)
		}
		n++
	}
	if gamma > 0 && gamma != 1 {
		exp := 1 / gamma
		norm := 255 * math.Pow(255, -exp)
		for i := range v {
			v[i] = clamp255(math.Pow(v[i], exp) * norm)
		}
		n++
	}

	var c Curve
	for i := range c {
		c[i] = uint8(math.Floor(v[i] + 0.5))
	}
	if invert {
		for i := range c {
			c[i] = 255 - c[i]
		}
		n++
	}
	return c, n
}

func clamp255(v float64) float64 {
	return math.Max(0, math.Min(v, 255))
}

// AdjustCurve applies lut to an 8, 24 or 32-bit BITMAP.  8-bit images with a
// colour palette have the palette remapped and their pixels left alone; the
// channel is ignored at 8 bits.  ChannelAlpha requires a 32-bit image.
func AdjustCurve(bm *core.Bitmap, lut Curve, ch Channel) error {
	const op = "curve.adjust"
	if !bm.HasPixels() {
		return apperrors.New(apperrors.CategoryInput, op, apperrors.ErrNoPixels)
	}
	if bm.Type() != core.TypeBitmap {
		return unsupported(op, bm)
	}

	switch bm.BPP() {
	case 8:
		if bm.ColorType() == core.ColorPalette {
			pal := bm.Palette()
			for i := range pal {
				pal[i].R = lut[pal[i].R]
				pal[i].G = lut[pal[i].G]
				pal[i].B = lut[pal[i].B]
			}
			return nil
		}
		eachPixel(bm, func(px []byte) { px[0] = lut[px[0]] })
		return nil
	case 24, 32:
	default:
		return unsupported(op, bm)
	}

	var first, last int
	switch ch {
	case ChannelRGB:
		first, last = 0, 2
	case ChannelRed, ChannelGreen, ChannelBlue:
		first = int(ch - ChannelRed)
		last = first
	case ChannelAlpha:
		if bm.BPP() != 32 {
			return apperrors.Newf(apperrors.CategoryInput, op, "%w: %s on a %d-bit image", apperrors.ErrInvalidChannel, ch, bm.BPP())
		}
		first, last = 3, 3
	default:
		return apperrors.Newf(apperrors.CategoryInput, op, "%w: %s", apperrors.ErrInvalidChannel, ch)
	}
	eachPixel(bm, func(px []byte) {
		for i := first; i <= last; i++ {
			px[i] = lut[px[i]]
		}
	})
	return nil
}

// AdjustGamma applies a gamma correction to every colour channel.  Values
// below 1 darken the image, values above 1 brighten it.
func AdjustGamma(bm *core.Bitmap, gamma float64) error {
	if !(gamma > 0) {
		return apperrors.Newf(apperrors.CategoryInput, "curve.gamma", "%w: gamma %g", apperrors.ErrInvalidRange, gamma)
	}
	lut, _ := BuildLookupTable(0, 0, gamma, false)
	return AdjustCurve(bm, lut, ChannelRGB)
}

// AdjustBrightness scales every colour channel by (100+percentage)/100.
func AdjustBrightness(bm *core.Bitmap, percentage float64) error {
	lut, _ := BuildLookupTable(percentage, 0, 1, false)
	return AdjustCurve(bm, lut, ChannelRGB)
}

// AdjustContrast stretches every colour channel around the mid level 128.
func AdjustContrast(bm *core.Bitmap, percentage float64) error {
	lut, _ := BuildLookupTable(0, percentage, 1, false)
	return AdjustCurve(bm, lut, ChannelRGB)
}

// AdjustColors applies BuildLookupTable's combined curve to every colour
// channel.  A neutral parameter set leaves the image untouched.
func AdjustColors(bm *core.Bitmap, brightness, contrast, gamma float64, invert bool) error {
	const op = "curve.adjust_colors"
	if !bm.HasPixels() {
		return apperrors.New(apperrors.CategoryInput, op, apperrors.ErrNoPixels)
	}
	if bm.Type() != core.TypeBitmap {
		return unsupported(op, bm)
	}
	switch bm.BPP() {
	case 8, 24, 32:
	default:
		return unsupported(op, bm)
	}
	lut, n := BuildLookupTable(brightness, contrast, gamma, invert)
	if n == 0 {
		return nil
	}
	return AdjustCurve(bm, lut, ChannelRGB)
}

// Invert produces the negative of bm.  Palette images have their palette
// inverted; all other supported images have every sample inverted,
// including alpha.
func Invert(bm *core.Bitmap) error {
	const op = "curve.invert"
	if !bm.HasPixels() {
		return apperrors.New(apperrors.CategoryInput, op, apperrors.ErrNoPixels)
	}
	switch bm.Type() {
	case core.TypeBitmap:
		switch bm.BPP() {
		case 1, 4, 8:
			if bm.ColorType() == core.ColorPalette {
				pal := bm.Palette()
				for i := range pal {
					pal[i].R = 255 - pal[i].R
					pal[i].G = 255 - pal[i].G
					pal[i].B = 255 - pal[i].B
				}
				return nil
			}
		case 24, 32:
		default:
			return unsupported(op, bm)
		}
	case core.TypeUInt16, core.TypeRGB16, core.TypeRGBA16:
	default:
		return unsupported(op, bm)
	}

	// Inverting every byte of a little-endian word inverts the word.
	for y := 0; y < bm.Height(); y++ {
		line := bm.ScanLine(y)
		for i := range line {
			line[i] = ^line[i]
		}
	}
	return nil
}
