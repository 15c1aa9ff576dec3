package codec

import (
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/Skryldev/imagecore/core"
	apperrors "github.com/Skryldev/imagecore/errors"
)

// raster adapts a Go image codec to the plugin table.  Pixels are moved
// through core.FromImage and core.ToImage.
type raster struct {
	info
	decode       func(io.Reader) (image.Image, error)
	decodeConfig func(io.Reader) (image.Config, error)
	encode       func(w io.Writer, img image.Image, flags int) error

	depths []int            // BITMAP depths accepted by Save
	types  []core.ImageType // non-BITMAP types accepted by Save
}

func (c raster) init(p *core.Plugin, _ core.FormatID) {
	c.apply(p)
	p.Load = c.load
	p.SupportsNoPixels = func() bool { return true }
	p.SupportsICC = func() bool { return false }
	if c.encode == nil {
		return
	}
	p.Save = c.save
	p.SupportsExportDepth = depthSet(c.depths...)
	p.SupportsExportType = typeSet(append([]core.ImageType{core.TypeBitmap}, c.types...)...)
}

func (c raster) load(r io.ReadSeeker, _ any, flags int) (*core.Bitmap, error) {
	op := c.op("load")
	if flags&core.LoadNoPixels != 0 {
		cfg, err := c.decodeConfig(r)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
		}
		return headerBitmap(cfg)
	}
	img, err := c.decode(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	return core.FromImage(img)
}

func (c raster) save(w io.WriteSeeker, bm *core.Bitmap, _ any, flags int) error {
	op := c.op("save")
	if !c.accepts(bm) {
		return apperrors.Newf(apperrors.CategoryInput, op, "%w: %d-bit %s", apperrors.ErrUnsupportedImage, bm.BPP(), bm.Type())
	}
	img, err := core.ToImage(bm)
	if err != nil {
		return err
	}
	if err := c.encode(w, img, flags); err != nil {
		return apperrors.Wrap(apperrors.CategoryEncode, op, err)
	}
	return nil
}

func (c raster) accepts(bm *core.Bitmap) bool {
	if bm.Type() == core.TypeBitmap {
		return depthSet(c.depths...)(bm.BPP())
	}
	return typeSet(c.types...)(bm.Type())
}

func (c raster) op(action string) string { return c.format + "." + action }

// headerBitmap answers a LoadNoPixels request from a decoded image.Config.
func headerBitmap(cfg image.Config) (*core.Bitmap, error) {
	switch m := cfg.ColorModel.(type) {
	case color.Palette:
		bm, err := core.NewHeaderBitmap(core.TypeBitmap, cfg.Width, cfg.Height, 8)
		if err != nil {
			return nil, err
		}
		pal := make([]color.NRGBA, len(m))
		for i, c := range m {
			pal[i] = color.NRGBAModel.Convert(c).(color.NRGBA)
		}
		bm.SetPalette(pal)
		return bm, nil
	}
	switch cfg.ColorModel {
	case color.GrayModel:
		return core.NewHeaderBitmap(core.TypeBitmap, cfg.Width, cfg.Height, 8)
	case color.Gray16Model:
		return core.NewHeaderBitmap(core.TypeUInt16, cfg.Width, cfg.Height, 0)
	case color.RGBA64Model, color.NRGBA64Model:
		return core.NewHeaderBitmap(core.TypeRGBA16, cfg.Width, cfg.Height, 0)
	case color.RGBAModel, color.NRGBAModel:
		return core.NewHeaderBitmap(core.TypeBitmap, cfg.Width, cfg.Height, 32)
	}
	return core.NewHeaderBitmap(core.TypeBitmap, cfg.Width, cfg.Height, 24)
}

// NewBMP returns the Windows bitmap plugin.
func NewBMP() core.InitFunc {
	return raster{
		info: info{
			format: "BMP", description: "Windows or OS/2 Bitmap", extensions: "bmp",
			mime: "image/bmp", magic: []string{"BM"},
		},
		decode:       bmp.Decode,
		decodeConfig: bmp.DecodeConfig,
		encode:       func(w io.Writer, img image.Image, _ int) error { return bmp.Encode(w, img) },
		depths:       []int{1, 4, 8, 24, 32},
	}.init
}

// NewJPEG returns the JPEG plugin.  Save takes the quality from the low bits
// of the flags and falls back to defaultQuality.
func NewJPEG(defaultQuality int) core.InitFunc {
	if defaultQuality < 1 || defaultQuality > 100 {
		defaultQuality = jpeg.DefaultQuality
	}
	return raster{
		info: info{
			format: "JPEG", description: "JPEG - JFIF Compliant", extensions: "jpg,jif,jpeg,jpe",
			mime: "image/jpeg", magic: []string{"\xff\xd8\xff"},
		},
		decode:       jpeg.Decode,
		decodeConfig: jpeg.DecodeConfig,
		encode: func(w io.Writer, img image.Image, flags int) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: quality(flags, defaultQuality)})
		},
		depths: []int{8, 24},
	}.init
}

// NewPNG returns the PNG plugin.
func NewPNG() core.InitFunc {
	return raster{
		info: info{
			format: "PNG", description: "Portable Network Graphics", extensions: "png",
			mime: "image/png", magic: []string{"\x89PNG\r\n\x1a\n"},
		},
		decode:       png.Decode,
		decodeConfig: png.DecodeConfig,
		encode: func(w io.Writer, img image.Image, flags int) error {
			enc := &png.Encoder{CompressionLevel: pngCompression(flags)}
			return enc.Encode(w, img)
		},
		depths: []int{1, 4, 8, 24, 32},
		types:  []core.ImageType{core.TypeUInt16, core.TypeRGB16, core.TypeRGBA16},
	}.init
}

// NewGIF returns the GIF plugin.  True-colour bitmaps are quantised to the
// Plan 9 palette on save.
func NewGIF() core.InitFunc {
	return raster{
		info: info{
			format: "GIF", description: "Graphics Interchange Format", extensions: "gif",
			mime: "image/gif", magic: []string{"GIF87a", "GIF89a"},
		},
		decode:       gif.Decode,
		decodeConfig: gif.DecodeConfig,
		encode:       func(w io.Writer, img image.Image, _ int) error { return gif.Encode(w, img, nil) },
		depths:       []int{1, 4, 8, 24, 32},
	}.init
}

// NewTIFF returns the TIFF plugin.  TIFFDeflate selects deflate compression
// with a horizontal predictor.
func NewTIFF() core.InitFunc {
	return raster{
		info: info{
			format: "TIFF", description: "Tagged Image File Format", extensions: "tif,tiff",
			mime: "image/tiff", magic: []string{"II*\x00", "MM\x00*"},
		},
		decode:       tiff.Decode,
		decodeConfig: tiff.DecodeConfig,
		encode: func(w io.Writer, img image.Image, flags int) error {
			opts := &tiff.Options{Compression: tiff.Uncompressed}
			if flags&core.TIFFDeflate != 0 {
				opts = &tiff.Options{Compression: tiff.Deflate, Predictor: true}
			}
			return tiff.Encode(w, img, opts)
		},
		depths: []int{1, 4, 8, 24, 32},
		types:  []core.ImageType{core.TypeUInt16, core.TypeRGB16, core.TypeRGBA16},
	}.init
}

// NewWebP returns the WebP plugin.  Output is always lossless.
func NewWebP() core.InitFunc {
	return raster{
		info: info{
			format: "WEBP", description: "Google WebP image format", extensions: "webp",
			mime: "image/webp", magic: []string{"RIFF????WEBP"},
		},
		decode:       webp.Decode,
		decodeConfig: webp.DecodeConfig,
		encode:       func(w io.Writer, img image.Image, _ int) error { return nativewebp.Encode(w, img, nil) },
		depths:       []int{24, 32},
	}.init
}

func quality(flags, fallback int) int {
	if q := flags & core.JPEGQualityMask; q >= 1 && q <= 100 {
		return q
	}
	return fallback
}

func pngCompression(flags int) png.CompressionLevel {
	switch {
	case flags&core.PNGNoCompression != 0:
		return png.NoCompression
	case flags&0x0f == core.PNGBestSpeed:
		return png.BestSpeed
	case flags&0x0f == core.PNGBestCompression:
		return png.BestCompression
	}
	return png.DefaultCompression
}
