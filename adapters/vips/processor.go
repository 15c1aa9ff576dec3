// Package vips provides HEIF and AVIF plugins backed by libvips.
//
// libvips is a process-wide C library, so every plugin registered from this
// package holds a reference on one shared runtime.  The runtime starts with
// the first handle and shuts down when the last one is closed; libvips
// cannot be started again afterwards in the same process.
package vips

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"runtime"
	"strconv"
	"sync"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/Skryldev/imagecore/config"
	"github.com/Skryldev/imagecore/core"
	apperrors "github.com/Skryldev/imagecore/errors"
	"github.com/Skryldev/imagecore/metadata"
)

// ErrShutdown is returned by Startup once the shared runtime has been shut
// down.
var ErrShutdown = errors.New("libvips has been shut down")

// Default encode quality when the save flags carry none.
const defaultQuality = 50

var runtimeState struct {
	mu       sync.Mutex
	refs     int
	shutdown bool
}

// Handle is one reference on the libvips runtime.  It implements
// core.Module so the registry can own it and release it on teardown.
type Handle struct {
	name   string
	closed bool
}

// Startup acquires a reference on the libvips runtime, starting it on the
// first call.  The handle must be closed, either directly or by the
// registry that owns it.
func Startup(name string, cfg config.VipsConfig, logger core.Logger) (*Handle, error) {
	st := &runtimeState
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.shutdown {
		return nil, apperrors.New(apperrors.CategoryResource, "vips.startup", ErrShutdown)
	}
	if st.refs == 0 {
		if logger == nil {
			logger = core.NopLogger{}
		}
		govips.LoggingSettings(logHandler(logger), govips.LogLevelWarning)
		workers := cfg.MaxWorkers
		if workers <= 0 {
			workers = runtime.NumCPU()
		}
		govips.Startup(&govips.Config{
			ConcurrencyLevel: workers,
			MaxCacheSize:     cfg.MaxCacheSize,
			ReportLeaks:      cfg.ReportLeaks,
		})
		logger.Info("vips.startup", "workers", workers)
	}
	st.refs++
	return &Handle{name: name}, nil
}

func (h *Handle) Name() string { return h.name }

// Close releases the reference.  The last Close shuts libvips down.
func (h *Handle) Close() error {
	st := &runtimeState
	st.mu.Lock()
	defer st.mu.Unlock()
	if h.closed {
		return fmt.Errorf("vips handle %s already closed", h.name)
	}
	h.closed = true
	st.refs--
	if st.refs == 0 {
		govips.Shutdown()
		st.shutdown = true
	}
	return nil
}

func logHandler(l core.Logger) func(string, govips.LogLevel, string) {
	return func(domain string, level govips.LogLevel, msg string) {
		switch level {
		case govips.LogLevelError, govips.LogLevelCritical:
			l.Error("vips.log", "domain", domain, "message", msg)
		case govips.LogLevelWarning:
			l.Warn("vips.log", "domain", domain, "message", msg)
		default:
			l.Debug("vips.log", "domain", domain, "message", msg)
		}
	}
}

// ─── Plugins ──────────────────────────────────────────────────────────────────

// codec describes one libvips-backed format.
type codec struct {
	format      string
	description string
	extensions  string
	mime        string
	brands      []string // ISO-BMFF ftyp brands
	export      func(ref *govips.ImageRef, quality int, lossless bool) ([]byte, error)
}

var heif = codec{
	format:      "HEIF",
	description: "High Efficiency Image File Format",
	extensions:  "heif,heic",
	mime:        "image/heif",
	brands:      []string{"heic", "heix", "hevc", "hevx", "heim", "heis", "mif1"},
	export: func(ref *govips.ImageRef, quality int, lossless bool) ([]byte, error) {
		ep := govips.NewHeifExportParams()
		ep.Quality = quality
		ep.Lossless = lossless
		buf, _, err := ref.ExportHeif(ep)
		return buf, err
	},
}

var avif = codec{
	format:      "AVIF",
	description: "AV1 Image File Format",
	extensions:  "avif",
	mime:        "image/avif",
	brands:      []string{"avif", "avis"},
	export: func(ref *govips.ImageRef, quality int, lossless bool) ([]byte, error) {
		ep := govips.NewAvifExportParams()
		ep.Quality = quality
		ep.Lossless = lossless
		buf, _, err := ref.ExportAvif(ep)
		return buf, err
	},
}

// InitHEIF fills in the HEIF plugin.  The caller must hold a Handle for as
// long as the plugin stays registered.
func InitHEIF(p *core.Plugin, id core.FormatID) { heif.init(p, id) }

// InitAVIF fills in the AVIF plugin.
func InitAVIF(p *core.Plugin, id core.FormatID) { avif.init(p, id) }

// Register adds the HEIF and AVIF plugins to lib.  Each registration owns
// its own Handle, so the runtime stays up until both are released.
func Register(lib *core.Library, cfg config.VipsConfig, logger core.Logger) ([]core.FormatID, error) {
	var ids []core.FormatID
	for _, c := range []codec{avif, heif} {
		h, err := Startup(c.format, cfg, logger)
		if err != nil {
			return ids, err
		}
		id, err := lib.RegisterModule(c.init, h, core.Overrides{})
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c codec) init(p *core.Plugin, _ core.FormatID) {
	p.Format = func() string { return c.format }
	p.Description = func() string { return c.description }
	p.Extensions = func() string { return c.extensions }
	p.MIME = func() string { return c.mime }
	p.Validate = c.validate
	p.Load = c.load
	p.Save = c.save
	p.SupportsExportDepth = func(d int) bool { return d == 24 || d == 32 }
	p.SupportsExportType = func(t core.ImageType) bool { return t == core.TypeBitmap }
	p.SupportsNoPixels = func() bool { return true }
	p.SupportsICC = func() bool { return true }
}

// validate checks the ISO-BMFF ftyp box: a 4-byte size, "ftyp", then the
// major brand.
func (c codec) validate(r io.ReadSeeker) bool {
	var box [12]byte
	if _, err := io.ReadFull(r, box[:]); err != nil {
		return false
	}
	if string(box[4:8]) != "ftyp" {
		return false
	}
	brand := string(box[8:12])
	for _, b := range c.brands {
		if b == brand {
			return true
		}
	}
	return false
}

func (c codec) load(r io.ReadSeeker, _ any, flags int) (*core.Bitmap, error) {
	op := "vips.load." + c.format
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	ref, err := govips.NewImageFromBuffer(raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	defer ref.Close()

	var bm *core.Bitmap
	if flags&core.LoadNoPixels != 0 {
		bpp := 24
		switch {
		case ref.Bands() == 1:
			bpp = 8
		case ref.HasAlpha():
			bpp = 32
		}
		bm, err = core.NewHeaderBitmap(core.TypeBitmap, ref.Width(), ref.Height(), bpp)
	} else {
		bm, err = toBitmap(ref)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	setOrientation(bm, ref.Orientation())
	return bm, nil
}

func (c codec) save(w io.WriteSeeker, bm *core.Bitmap, _ any, flags int) error {
	op := "vips.save." + c.format
	if bm.Type() != core.TypeBitmap || (bm.BPP() != 24 && bm.BPP() != 32) {
		return apperrors.Newf(apperrors.CategoryInput, op, "%w: %d-bit %s", apperrors.ErrUnsupportedImage, bm.BPP(), bm.Type())
	}
	ref, err := fromBitmap(bm)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryEncode, op, err)
	}
	defer ref.Close()

	quality := flags & core.JPEGQualityMask
	if quality < 1 || quality > 100 {
		quality = defaultQuality
	}
	buf, err := c.export(ref, quality, flags&core.VipsLossless != 0)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryEncode, op, err)
	}
	if _, err := w.Write(buf); err != nil {
		return apperrors.Wrap(apperrors.CategoryEncode, op, err)
	}
	return nil
}

// ─── Steps ────────────────────────────────────────────────────────────────────

// ThumbnailStep replaces the pipeline bitmap with a thumbnail cut by
// vips_thumbnail() straight from the encoded input, so the full-size image
// is never decoded.  The source format must be one libvips can read.
type ThumbnailStep struct {
	Size int
}

func (s *ThumbnailStep) Name() string { return "vips.thumbnail" }

func (s *ThumbnailStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	if len(img.Data) == 0 {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}
	ref, err := govips.NewThumbnailFromBuffer(img.Data, s.Size, s.Size, govips.InterestingCentre)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	defer ref.Close()
	bm, err := toBitmap(ref)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	out := *img
	out.Bitmap = bm
	return &out, nil
}

// AutoRotateStep decodes the encoded input with libvips, applies its EXIF
// orientation and replaces the pipeline bitmap with the upright result.
type AutoRotateStep struct{}

func (s *AutoRotateStep) Name() string { return "vips.auto_rotate" }

func (s *AutoRotateStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	if len(img.Data) == 0 {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}
	ref, err := govips.NewImageFromBuffer(img.Data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	defer ref.Close()
	if err := ref.AutoRotate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	bm, err := toBitmap(ref)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	out := *img
	out.Bitmap = bm
	return &out, nil
}

// ─── helpers ──────────────────────────────────────────────────────────────────

// toBitmap moves pixels out of libvips through an uncompressed PNG.
func toBitmap(ref *govips.ImageRef) (*core.Bitmap, error) {
	ep := govips.NewPngExportParams()
	ep.Compression = 0
	ep.StripMetadata = true
	buf, _, err := ref.ExportPng(ep)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	return core.FromImage(img)
}

func fromBitmap(bm *core.Bitmap) (*govips.ImageRef, error) {
	img, err := core.ToImage(bm)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return govips.NewImageFromBuffer(buf.Bytes())
}

// setOrientation records the EXIF orientation under its TIFF tag name.
func setOrientation(bm *core.Bitmap, orientation int) {
	if orientation <= 1 {
		return
	}
	lib := metadata.Instance()
	id, ok := lib.ID(metadata.ModelMain, "Orientation")
	if !ok {
		return
	}
	bm.SetMetadata(metadata.ModelMain, lib.Name(metadata.ModelMain, id), strconv.Itoa(orientation))
}

var (
	_ core.Module = (*Handle)(nil)
	_ core.Step   = (*ThumbnailStep)(nil)
	_ core.Step   = (*AutoRotateStep)(nil)
)
