package toolkit

import (
	"image/color"

	"github.com/Skryldev/imagecore/core"
	apperrors "github.com/Skryldev/imagecore/errors"
)

// ApplyColorMapping replaces every occurrence of src[i] with dst[i] and
// returns the number of replaced pixels, or palette entries for images of 8
// bits or less.  Only the first min(len(src), len(dst)) pairs are used and
// the first matching pair wins.  With swap set dst[i] is also replaced by
// src[i].  Alpha is compared and replaced only for 32-bit images when
// ignoreAlpha is false.
func ApplyColorMapping(bm *core.Bitmap, src, dst []color.NRGBA, ignoreAlpha, swap bool) (int, error) {
	const op = "colormap.apply"
	if !bm.HasPixels() {
		return 0, apperrors.New(apperrors.CategoryInput, op, apperrors.ErrNoPixels)
	}
	if bm.Type() != core.TypeBitmap {
		return 0, unsupported(op, bm)
	}
	n := min(len(src), len(dst))
	if n == 0 {
		return 0, nil
	}

	// lookup returns the replacement for c, if any pair matches.
	lookup := func(c color.NRGBA, withAlpha bool) (color.NRGBA, bool) {
		for j := 0; j < n; j++ {
			from, to := src[j], dst[j]
			for pass := 0; pass < 2; pass++ {
				if c.R == from.R && c.G == from.G && c.B == from.B && (!withAlpha || c.A == from.A) {
					return to, true
				}
				if !swap {
					break
				}
				from, to = to, from
			}
		}
		return c, false
	}

	changed := 0
	switch bm.BPP() {
	case 1, 4, 8:
		pal := bm.Palette()
		for i, c := range pal {
			if to, ok := lookup(c, false); ok {
				pal[i].R, pal[i].G, pal[i].B = to.R, to.G, to.B
				changed++
			}
		}
	case 24:
		eachPixel(bm, func(px []byte) {
			if to, ok := lookup(color.NRGBA{R: px[0], G: px[1], B: px[2]}, false); ok {
				px[0], px[1], px[2] = to.R, to.G, to.B
				changed++
			}
		})
	case 32:
		withAlpha := !ignoreAlpha
		eachPixel(bm, func(px []byte) {
			if to, ok := lookup(color.NRGBA{R: px[0], G: px[1], B: px[2], A: px[3]}, withAlpha); ok {
				px[0], px[1], px[2] = to.R, to.G, to.B
				if withAlpha {
					px[3] = to.A
				}
				changed++
			}
		})
	default:
		return 0, unsupported(op, bm)
	}
	return changed, nil
}

// SwapColors exchanges two colours and returns the number of changes.
func SwapColors(bm *core.Bitmap, a, b color.NRGBA, ignoreAlpha bool) (int, error) {
	return ApplyColorMapping(bm, []color.NRGBA{a}, []color.NRGBA{b}, ignoreAlpha, true)
}

// ApplyPaletteIndexMapping rewrites the palette indices of a 4 or 8-bit
// image the way ApplyColorMapping rewrites colours and returns the number of
// changed pixels.  1-bit images are not remapped and report zero changes.
func ApplyPaletteIndexMapping(bm *core.Bitmap, src, dst []uint8, swap bool) (int, error) {
	const op = "colormap.apply_index"
	if !bm.HasPixels() {
		return 0, apperrors.New(apperrors.CategoryInput, op, apperrors.ErrNoPixels)
	}
	if bm.Type() != core.TypeBitmap {
		return 0, unsupported(op, bm)
	}
	bpp := bm.BPP()
	switch bpp {
	case 1:
		return 0, nil
	case 4, 8:
	default:
		return 0, unsupported(op, bm)
	}
	n := min(len(src), len(dst))
	if n == 0 {
		return 0, nil
	}

	changed := 0
	w := bm.Width()
	for y := 0; y < bm.Height(); y++ {
		line := bm.ScanLine(y)
		for x := 0; x < w; x++ {
			v := core.PaletteIndex(line, x, bpp)
			for j := 0; j < n; j++ {
				to, hit := dst[j], v == src[j]
				if !hit && swap && v == dst[j] {
					to, hit = src[j], true
				}
				if hit {
					core.SetPaletteIndex(line, x, bpp, to)
					changed++
					break
				}
			}
		}
	}
	return changed, nil
}

// SwapPaletteIndices exchanges two palette indices and returns the number of
// changed pixels.
func SwapPaletteIndices(bm *core.Bitmap, a, b uint8) (int, error) {
	return ApplyPaletteIndexMapping(bm, []uint8{a}, []uint8{b}, true)
}
