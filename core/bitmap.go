package core

import (
	"fmt"
	"image/color"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	apperrors "github.com/Skryldev/imagecore/errors"
	"github.com/Skryldev/imagecore/metadata"
)

// ImageType identifies the in-memory pixel encoding of a Bitmap.
type ImageType int

const (
	TypeUnknown  ImageType = iota
	TypeBitmap             // 1, 4, 8, 24 or 32 bit packed integer
	TypeUInt16             // 16-bit unsigned grey
	TypeInt16              // 16-bit signed grey
	TypeUInt32             // 32-bit unsigned grey
	TypeInt32              // 32-bit signed grey
	TypeFloat              // 32-bit IEEE float grey
	TypeDouble             // 64-bit IEEE float grey
	TypeComplex            // 2 x 64-bit IEEE float (real, imaginary)
	TypeRGB16              // 3 x 16-bit unsigned
	TypeRGBA16             // 4 x 16-bit unsigned
	TypeRGBF               // 3 x 32-bit IEEE float
	TypeRGBAF              // 4 x 32-bit IEEE float
	TypeComplexF           // 2 x 32-bit IEEE float (real, imaginary)
	TypeRGB32              // 3 x 32-bit unsigned
	TypeRGBA32             // 4 x 32-bit unsigned
)

var imageTypeNames = [...]string{
	TypeUnknown:  "UNKNOWN",
	TypeBitmap:   "BITMAP",
	TypeUInt16:   "UINT16",
	TypeInt16:    "INT16",
	TypeUInt32:   "UINT32",
	TypeInt32:    "INT32",
	TypeFloat:    "FLOAT",
	TypeDouble:   "DOUBLE",
	TypeComplex:  "COMPLEX",
	TypeRGB16:    "RGB16",
	TypeRGBA16:   "RGBA16",
	TypeRGBF:     "RGBF",
	TypeRGBAF:    "RGBAF",
	TypeComplexF: "COMPLEXF",
	TypeRGB32:    "RGB32",
	TypeRGBA32:   "RGBA32",
}

func (t ImageType) String() string {
	if t < 0 || int(t) >= len(imageTypeNames) {
		return fmt.Sprintf("ImageType(%d)", int(t))
	}
	return imageTypeNames[t]
}

// fixedBPP returns the only valid depth for non-BITMAP types, 0 for BITMAP
// and -1 for unknown types.
func (t ImageType) fixedBPP() int {
	switch t {
	case TypeBitmap:
		return 0
	case TypeUInt16, TypeInt16:
		return 16
	case TypeUInt32, TypeInt32, TypeFloat:
		return 32
	case TypeDouble, TypeRGBA16, TypeComplexF:
		return 64
	case TypeRGB16:
		return 48
	case TypeRGBF, TypeRGB32:
		return 96
	case TypeRGBAF, TypeRGBA32, TypeComplex:
		return 128
	}
	return -1
}

// ColorType classifies how pixel values are to be interpreted.
type ColorType int

const (
	ColorMinIsWhite ColorType = iota // greyscale, 0 is white
	ColorMinIsBlack                  // greyscale, 0 is black
	ColorRGB
	ColorPalette
	ColorRGBAlpha
	ColorCMYK
)

func (c ColorType) String() string {
	switch c {
	case ColorMinIsWhite:
		return "MINISWHITE"
	case ColorMinIsBlack:
		return "MINISBLACK"
	case ColorRGB:
		return "RGB"
	case ColorPalette:
		return "PALETTE"
	case ColorRGBAlpha:
		return "RGBALPHA"
	case ColorCMYK:
		return "CMYK"
	}
	return fmt.Sprintf("ColorType(%d)", int(c))
}

// Bitmap is the in-memory image shared by plugins and the toolkit.
//
// Scanlines are stored top-down, Pitch bytes apart.  Multi-byte samples are
// little-endian and channels are ordered R, G, B, A.  A header-only bitmap
// carries dimensions, type and palette but no pixel buffer.
type Bitmap struct {
	typ     ImageType
	width   int
	height  int
	bpp     int
	pitch   int
	pix     []byte
	palette []color.NRGBA
	meta    map[metadata.Model]map[string]string
}

// NewBitmap allocates a zeroed bitmap.  bpp may be 0 for every type except
// TypeBitmap, in which case the type's natural depth is used.
func NewBitmap(t ImageType, width, height, bpp int) (*Bitmap, error) {
	return newBitmap(t, width, height, bpp, true)
}

// NewHeaderBitmap returns a bitmap without a pixel buffer.  Plugins use it to
// answer LoadNoPixels requests.
func NewHeaderBitmap(t ImageType, width, height, bpp int) (*Bitmap, error) {
	return newBitmap(t, width, height, bpp, false)
}

func newBitmap(t ImageType, width, height, bpp int, withPixels bool) (*Bitmap, error) {
	const op = "bitmap.new"
	if width <= 0 || height <= 0 {
		return nil, apperrors.Newf(apperrors.CategoryInput, op, "%w: %dx%d", apperrors.ErrInvalidDimensions, width, height)
	}
	fixed := t.fixedBPP()
	switch {
	case fixed < 0:
		return nil, apperrors.Newf(apperrors.CategoryInput, op, "%w: %s", apperrors.ErrUnsupportedImage, t)
	case fixed == 0:
		switch bpp {
		case 1, 4, 8, 24, 32:
		default:
			return nil, apperrors.Newf(apperrors.CategoryInput, op, "%w: %d-bit %s", apperrors.ErrUnsupportedImage, bpp, t)
		}
	case bpp == 0:
		bpp = fixed
	case bpp != fixed:
		return nil, apperrors.Newf(apperrors.CategoryInput, op, "%w: %d-bit %s", apperrors.ErrUnsupportedImage, bpp, t)
	}

	bm := &Bitmap{
		typ:    t,
		width:  width,
		height: height,
		bpp:    bpp,
		pitch:  (width*bpp + 7) / 8,
	}
	if t == TypeBitmap && bpp <= 8 {
		bm.palette = greyRamp(1 << bpp)
	}
	if withPixels {
		bm.pix = make([]byte, bm.pitch*height)
	}
	return bm, nil
}

// greyRamp builds a linear black-to-white palette of n entries.
func greyRamp(n int) []color.NRGBA {
	pal := make([]color.NRGBA, n)
	for i := range pal {
		v := uint8(i * 255 / (n - 1))
		pal[i] = color.NRGBA{R: v, G: v, B: v, A: 0xff}
	}
	return pal
}

func (b *Bitmap) Type() ImageType { return b.typ }
func (b *Bitmap) Width() int      { return b.width }
func (b *Bitmap) Height() int     { return b.height }
func (b *Bitmap) BPP() int        { return b.bpp }

// Pitch is the distance in bytes between two scanlines.
func (b *Bitmap) Pitch() int { return b.pitch }

// HasPixels reports whether the bitmap carries a pixel payload.
func (b *Bitmap) HasPixels() bool { return b != nil && b.pix != nil }

// Bits returns the raw pixel buffer, nil for header-only bitmaps.
func (b *Bitmap) Bits() []byte { return b.pix }

// ScanLine returns row y, or nil when y is out of range or there are no pixels.
func (b *Bitmap) ScanLine(y int) []byte {
	if b.pix == nil || y < 0 || y >= b.height {
		return nil
	}
	off := y * b.pitch
	return b.pix[off : off+b.pitch : off+b.pitch]
}

// Palette returns the colour table of a 1, 4 or 8-bit bitmap.  The slice is
// shared; modifying it modifies the bitmap.
func (b *Bitmap) Palette() []color.NRGBA { return b.palette }

// SetPalette copies pal into the bitmap's colour table.  Extra entries are
// ignored, missing entries are left unchanged.
func (b *Bitmap) SetPalette(pal []color.NRGBA) {
	copy(b.palette, pal)
}

// ColorType derives the colour classification from type, depth and palette.
func (b *Bitmap) ColorType() ColorType {
	switch b.typ {
	case TypeBitmap:
		switch b.bpp {
		case 1, 4, 8:
			return paletteColorType(b.palette)
		case 24:
			return ColorRGB
		default:
			return ColorRGBAlpha
		}
	case TypeRGB16, TypeRGBF, TypeRGB32:
		return ColorRGB
	case TypeRGBA16, TypeRGBAF, TypeRGBA32:
		return ColorRGBAlpha
	}
	return ColorMinIsBlack
}

func paletteColorType(pal []color.NRGBA) ColorType {
	n := len(pal)
	if n < 2 {
		return ColorPalette
	}
	black, white := true, true
	for i, c := range pal {
		if c.R != c.G || c.G != c.B {
			return ColorPalette
		}
		v := uint8(i * 255 / (n - 1))
		if c.R != v {
			black = false
		}
		if c.R != 255-v {
			white = false
		}
	}
	switch {
	case black:
		return ColorMinIsBlack
	case white:
		return ColorMinIsWhite
	}
	return ColorPalette
}

// SamplesPerPixel returns the number of channels of a non-palette type.
func (b *Bitmap) SamplesPerPixel() int {
	switch b.typ {
	case TypeBitmap:
		switch b.bpp {
		case 24:
			return 3
		case 32:
			return 4
		}
		return 1
	case TypeComplex, TypeComplexF:
		return 2
	case TypeRGB16, TypeRGBF, TypeRGB32:
		return 3
	case TypeRGBA16, TypeRGBAF, TypeRGBA32:
		return 4
	}
	return 1
}

// SetMetadata stores a textual tag under the given model.  An empty value
// removes the tag.
func (b *Bitmap) SetMetadata(model metadata.Model, key, value string) {
	if value == "" {
		delete(b.meta[model], key)
		return
	}
	if b.meta == nil {
		b.meta = make(map[metadata.Model]map[string]string)
	}
	if b.meta[model] == nil {
		b.meta[model] = make(map[string]string)
	}
	b.meta[model][key] = value
}

// Metadata looks up a tag stored with SetMetadata.
func (b *Bitmap) Metadata(model metadata.Model, key string) (string, bool) {
	v, ok := b.meta[model][key]
	return v, ok
}

// MetadataKeys returns the tag keys stored under model in sorted order.
func (b *Bitmap) MetadataKeys(model metadata.Model) []string {
	keys := maps.Keys(b.meta[model])
	slices.Sort(keys)
	return keys
}

// MetadataCount returns the number of tags stored under model.
func (b *Bitmap) MetadataCount(model metadata.Model) int { return len(b.meta[model]) }

// Clone returns a deep copy, including palette and metadata.
func (b *Bitmap) Clone() *Bitmap {
	out := *b
	if b.pix != nil {
		out.pix = append([]byte(nil), b.pix...)
	}
	if b.palette != nil {
		out.palette = append([]color.NRGBA(nil), b.palette...)
	}
	if b.meta != nil {
		out.meta = make(map[metadata.Model]map[string]string, len(b.meta))
		for m, tags := range b.meta {
			out.meta[m] = maps.Clone(tags)
		}
	}
	return &out
}
