package core

import (
	"encoding/binary"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	apperrors "github.com/Skryldev/imagecore/errors"
)

// FromImage copies img into a new Bitmap, choosing the closest encoding:
// 8-bit grey or palette, UINT16 grey, RGB16/RGBA16 for 16-bit colour, and
// 24 or 32-bit for everything else.
func FromImage(img image.Image) (*Bitmap, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch src := img.(type) {
	case *image.Gray:
		bm, err := NewBitmap(TypeBitmap, w, h, 8)
		if err != nil {
			return nil, err
		}
		for y := 0; y < h; y++ {
			copy(bm.ScanLine(y), src.Pix[y*src.Stride:y*src.Stride+w])
		}
		return bm, nil

	case *image.Paletted:
		bm, err := NewBitmap(TypeBitmap, w, h, 8)
		if err != nil {
			return nil, err
		}
		pal := make([]color.NRGBA, 256)
		for i, c := range src.Palette {
			if i == len(pal) {
				break
			}
			pal[i] = color.NRGBAModel.Convert(c).(color.NRGBA)
		}
		bm.SetPalette(pal)
		for y := 0; y < h; y++ {
			copy(bm.ScanLine(y), src.Pix[y*src.Stride:y*src.Stride+w])
		}
		return bm, nil

	case *image.Gray16:
		bm, err := NewBitmap(TypeUInt16, w, h, 0)
		if err != nil {
			return nil, err
		}
		for y := 0; y < h; y++ {
			line := bm.ScanLine(y)
			row := src.Pix[y*src.Stride:]
			for x := 0; x < w; x++ {
				binary.LittleEndian.PutUint16(line[2*x:], binary.BigEndian.Uint16(row[2*x:]))
			}
		}
		return bm, nil

	case *image.NRGBA64, *image.RGBA64:
		return from16(img)
	}

	t, bpp, spp := TypeBitmap, 32, 4
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		bpp, spp = 24, 3
	}
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, w, h))
		xdraw.Draw(nrgba, nrgba.Bounds(), img, b.Min, xdraw.Src)
	}
	bm, err := NewBitmap(t, w, h, bpp)
	if err != nil {
		return nil, err
	}
	for y := 0; y < h; y++ {
		line := bm.ScanLine(y)
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := 0; x < w; x++ {
			copy(line[x*spp:x*spp+spp], row[x*4:x*4+spp])
		}
	}
	return bm, nil
}

func from16(img image.Image) (*Bitmap, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	t, spp := TypeRGBA16, 4
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		t, spp = TypeRGB16, 3
	}
	bm, err := NewBitmap(t, w, h, 0)
	if err != nil {
		return nil, err
	}
	for y := 0; y < h; y++ {
		line := bm.ScanLine(y)
		for x := 0; x < w; x++ {
			c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			px := line[x*spp*2:]
			binary.LittleEndian.PutUint16(px[0:], c.R)
			binary.LittleEndian.PutUint16(px[2:], c.G)
			binary.LittleEndian.PutUint16(px[4:], c.B)
			if spp == 4 {
				binary.LittleEndian.PutUint16(px[6:], c.A)
			}
		}
	}
	return bm, nil
}

// ToImage exposes a bitmap as an image.Image for the standard codecs.  Only
// BITMAP, UINT16, RGB16 and RGBA16 bitmaps can be converted.
func ToImage(bm *Bitmap) (image.Image, error) {
	const op = "bitmap.to_image"
	if !bm.HasPixels() {
		return nil, apperrors.New(apperrors.CategoryInput, op, apperrors.ErrNoPixels)
	}
	w, h := bm.Width(), bm.Height()
	rect := image.Rect(0, 0, w, h)

	switch bm.Type() {
	case TypeBitmap:
		switch bm.BPP() {
		case 1, 4, 8:
			if bm.BPP() == 8 && bm.ColorType() == ColorMinIsBlack {
				dst := image.NewGray(rect)
				for y := 0; y < h; y++ {
					copy(dst.Pix[y*dst.Stride:], bm.ScanLine(y)[:w])
				}
				return dst, nil
			}
			pal := make(color.Palette, len(bm.Palette()))
			for i, c := range bm.Palette() {
				pal[i] = c
			}
			dst := image.NewPaletted(rect, pal)
			for y := 0; y < h; y++ {
				line := bm.ScanLine(y)
				for x := 0; x < w; x++ {
					dst.Pix[y*dst.Stride+x] = PaletteIndex(line, x, bm.BPP())
				}
			}
			return dst, nil
		case 24, 32:
			spp := bm.BPP() / 8
			dst := image.NewNRGBA(rect)
			for y := 0; y < h; y++ {
				line := bm.ScanLine(y)
				row := dst.Pix[y*dst.Stride:]
				for x := 0; x < w; x++ {
					copy(row[x*4:x*4+3], line[x*spp:x*spp+3])
					if spp == 4 {
						row[x*4+3] = line[x*4+3]
					} else {
						row[x*4+3] = 0xff
					}
				}
			}
			return dst, nil
		}
	case TypeUInt16:
		dst := image.NewGray16(rect)
		for y := 0; y < h; y++ {
			line := bm.ScanLine(y)
			row := dst.Pix[y*dst.Stride:]
			for x := 0; x < w; x++ {
				binary.BigEndian.PutUint16(row[2*x:], binary.LittleEndian.Uint16(line[2*x:]))
			}
		}
		return dst, nil
	case TypeRGB16, TypeRGBA16:
		spp := bm.SamplesPerPixel()
		dst := image.NewNRGBA64(rect)
		for y := 0; y < h; y++ {
			line := bm.ScanLine(y)
			row := dst.Pix[y*dst.Stride:]
			for x := 0; x < w; x++ {
				px := line[x*spp*2:]
				for c := 0; c < 3; c++ {
					binary.BigEndian.PutUint16(row[x*8+2*c:], binary.LittleEndian.Uint16(px[2*c:]))
				}
				a := uint16(0xffff)
				if spp == 4 {
					a = binary.LittleEndian.Uint16(px[6:])
				}
				binary.BigEndian.PutUint16(row[x*8+6:], a)
			}
		}
		return dst, nil
	}
	return nil, apperrors.Newf(apperrors.CategoryInput, op, "%w: %d-bit %s", apperrors.ErrUnsupportedImage, bm.BPP(), bm.Type())
}

// PaletteIndex reads the index of pixel x from a 1, 4 or 8-bit scanline.
// Sub-byte pixels are packed most significant bits first.
func PaletteIndex(line []byte, x, bpp int) uint8 {
	switch bpp {
	case 1:
		return (line[x>>3] >> (7 - uint(x&7))) & 1
	case 4:
		if x&1 == 0 {
			return line[x>>1] >> 4
		}
		return line[x>>1] & 0x0f
	}
	return line[x]
}

// SetPaletteIndex writes the index of pixel x into a 1, 4 or 8-bit scanline.
func SetPaletteIndex(line []byte, x, bpp int, v uint8) {
	switch bpp {
	case 1:
		mask := byte(0x80) >> uint(x&7)
		if v&1 != 0 {
			line[x>>3] |= mask
		} else {
			line[x>>3] &^= mask
		}
	case 4:
		if x&1 == 0 {
			line[x>>1] = line[x>>1]&0x0f | v<<4
		} else {
			line[x>>1] = line[x>>1]&0xf0 | v&0x0f
		}
	default:
		line[x] = v
	}
}
