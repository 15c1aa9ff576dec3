// Package imagecore is the high-level entry point: a process-wide plugin
// library with file and memory load/save helpers, and a Processor that runs
// step pipelines over readers.
package imagecore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/Skryldev/imagecore/adapters/codec"
	"github.com/Skryldev/imagecore/config"
	"github.com/Skryldev/imagecore/core"
	apperrors "github.com/Skryldev/imagecore/errors"
	"github.com/Skryldev/imagecore/hooks"
	"github.com/Skryldev/imagecore/pipeline"
	"github.com/Skryldev/imagecore/toolkit"
	"github.com/Skryldev/imagecore/utils"
)

// Re-export the most used built-in format ids.
const (
	BMP  = codec.BMP
	JPEG = codec.JPEG
	PNG  = codec.PNG
	GIF  = codec.GIF
	TIFF = codec.TIFF
	WEBP = codec.WEBP
	PGM  = codec.PGM
	PPM  = codec.PPM
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// NewLibrary returns an uninitialised library holding every built-in plugin.
func NewLibrary(cfg config.Config) *core.Library {
	return core.NewLibrary(cfg, codec.Builtins(cfg))
}

var (
	stdOnce sync.Once
	std     *core.Library
)

// Default returns the process-wide library used by the package-level
// helpers.
func Default() *core.Library {
	stdOnce.Do(func() { std = NewLibrary(config.Default()) })
	return std
}

// Initialise takes a reference on the process-wide library.
func Initialise() error { return Default().Initialise() }

// DeInitialise drops a reference on the process-wide library.
func DeInitialise() error { return Default().DeInitialise() }

// GetFileType sniffs the content of the file at path.
func GetFileType(path string) (core.FormatID, error) {
	reg, err := Default().Registry()
	if err != nil {
		return core.FormatUnknown, err
	}
	f, err := os.Open(path)
	if err != nil {
		return core.FormatUnknown, apperrors.Wrap(apperrors.CategoryInput, "get_file_type", err)
	}
	defer f.Close()
	return reg.DetectFormat(f)
}

// GetFileTypeFromName maps a file name to a format by its extension.
func GetFileTypeFromName(name string) core.FormatID {
	reg, err := Default().Registry()
	if err != nil {
		return core.FormatUnknown
	}
	return reg.DetectFormatByExtension(name)
}

// Load reads the file at path with plugin id.  Pass core.FormatUnknown to
// sniff the content first.
func Load(id core.FormatID, path string, flags int) (*core.Bitmap, error) {
	reg, err := Default().Registry()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "load", err)
	}
	defer f.Close()
	if id == core.FormatUnknown {
		if id, err = reg.DetectFormat(f); err != nil {
			return nil, err
		}
	}
	return reg.Load(id, f, flags)
}

// Save writes bm to path with plugin id.  The image is encoded into a
// temporary file in the same directory and renamed over path only on
// success, so a failed save leaves any existing file untouched.
func Save(id core.FormatID, bm *core.Bitmap, path string, flags int) error {
	const op = "save"
	reg, err := Default().Registry()
	if err != nil {
		return err
	}
	if !bm.HasPixels() {
		return apperrors.New(apperrors.CategoryInput, op, apperrors.ErrNoPixels)
	}
	d, ok := reg.FindByID(id)
	if !ok {
		return apperrors.Newf(apperrors.CategoryInput, op, "%w: %d", apperrors.ErrInvalidFormat, id)
	}
	if !d.CanSave() {
		return apperrors.Newf(apperrors.CategoryFormat, op, "%w: %s cannot save", apperrors.ErrUnsupportedOperation, d.Format())
	}

	mode := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryResource, op, err)
	}
	tmp := f.Name()
	defer os.Remove(tmp) // no-op once renamed

	if err := reg.Save(id, bm, f, flags); err != nil {
		f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		f.Close()
		return apperrors.Wrap(apperrors.CategoryResource, op, err)
	}
	if err := f.Close(); err != nil {
		return apperrors.Wrap(apperrors.CategoryEncode, op, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return apperrors.Wrap(apperrors.CategoryResource, op, err)
	}
	return nil
}

// LoadFromMemory decodes data with plugin id, sniffing the content when id
// is core.FormatUnknown.
func LoadFromMemory(id core.FormatID, data []byte, flags int) (*core.Bitmap, error) {
	reg, err := Default().Registry()
	if err != nil {
		return nil, err
	}
	ms := utils.NewMemoryStream(data)
	if id == core.FormatUnknown {
		if id, err = reg.DetectFormat(ms); err != nil {
			return nil, err
		}
	}
	return reg.Load(id, ms, flags)
}

// SaveToMemory encodes bm with plugin id.
func SaveToMemory(id core.FormatID, bm *core.Bitmap, flags int) ([]byte, error) {
	reg, err := Default().Registry()
	if err != nil {
		return nil, err
	}
	ms := utils.NewMemoryStream(nil)
	if err := reg.Save(id, bm, ms, flags); err != nil {
		return nil, err
	}
	return ms.Bytes(), nil
}

// ── Processor ─────────────────────────────────────────────────────────────────

// Processor is the primary pipeline entry point.  It owns its own library so
// several processors can run with different configurations.
type Processor struct {
	inner  *core.Processor
	lib    *core.Library
	logger core.Logger
}

// New creates a Processor with every built-in plugin.  Call Start before
// Process.
func New(cfg config.Config) *Processor {
	lib := NewLibrary(cfg)
	p := &Processor{inner: core.New(cfg, lib), lib: lib}
	p.SetLogger(hooks.NewLevelLogger(cfg.LogLevel))
	return p
}

// SetLogger attaches a structured logger.
func (p *Processor) SetLogger(l core.Logger) {
	p.logger = l
	p.lib.SetLogger(l)
	p.inner.SetLogger(l)
}

// SetMetrics attaches a metrics collector.
func (p *Processor) SetMetrics(m core.MetricsCollector) { p.inner.SetMetrics(m) }

// AddHook registers an observer for pipeline step events.
func (p *Processor) AddHook(h core.Hook) { p.inner.AddHook(h) }

// Start initialises the processor's library.
func (p *Processor) Start() error { return p.lib.Initialise() }

// Stop releases the library reference taken by Start.
func (p *Processor) Stop() error { return p.lib.DeInitialise() }

// Library returns the processor's plugin library.
func (p *Processor) Library() *core.Library { return p.lib }

// Registry returns the live registry, or nil before Start.
func (p *Processor) Registry() *core.Registry {
	reg, err := p.lib.Registry()
	if err != nil {
		return nil
	}
	return reg
}

// Process executes the provided steps synchronously and returns the result.
func (p *Processor) Process(ctx context.Context, src core.Source, steps ...core.Step) (*core.ProcessingResult, error) {
	return p.inner.Process(ctx, src, steps...)
}

// Batch runs the same steps on multiple sources concurrently.
func (p *Processor) Batch(ctx context.Context, sources []core.Source, steps ...core.Step) ([]*core.ProcessingResult, []error) {
	return p.inner.Batch(ctx, sources, steps...)
}

// NewPipeline creates a reusable pipeline sharing the processor's registry,
// logger and retry policy.  Call it after Start.
func (p *Processor) NewPipeline(steps ...core.Step) *pipeline.Pipeline {
	cfg := p.lib.Config()
	return pipeline.New().
		Use(steps...).
		WithRegistry(p.Registry()).
		WithLogger(p.logger).
		WithRetry(cfg.MaxRetries, cfg.RetryDelay)
}

// Stats returns lightweight processing statistics.
func (p *Processor) Stats() (processed, errors int64) {
	return p.inner.ProcessedCount(), p.inner.ErrorCount()
}

// Decode returns a decode step bound to the processor's registry.
func (p *Processor) Decode(flags int) core.Step {
	return &pipeline.DecodeStep{Registry: p.Registry(), Flags: flags}
}

// ConvertFormat returns a step that makes the next Encode save with the
// named plugin, e.g. "PNG".
func (p *Processor) ConvertFormat(format string) core.Step {
	return &pipeline.ConvertFormatStep{Registry: p.Registry(), Format: format}
}

// Encode returns an encode step bound to the processor's registry.
func (p *Processor) Encode(flags int) core.Step {
	return &pipeline.EncodeStep{Registry: p.Registry(), Flags: flags}
}

// AdaptiveCompress returns a step that iteratively reduces quality to hit a
// target size in bytes.
func (p *Processor) AdaptiveCompress(targetBytes int64, minQ, maxQ int) core.Step {
	return &pipeline.AdaptiveCompressStep{
		Registry:        p.Registry(),
		TargetSizeBytes: targetBytes,
		MinQuality:      minQ,
		MaxQuality:      maxQ,
		StepSize:        5,
	}
}

// ── Source constructors ────────────────────────────────────────────────────────

// FromReader creates a Source from an io.Reader.
func FromReader(r io.Reader) core.Source { return core.Source{Reader: r, Size: -1} }

// FromReaderWithMeta creates a Source with known size and content-type hints.
func FromReaderWithMeta(r io.Reader, size int64, contentType, name string) core.Source {
	return core.Source{Reader: r, Size: size, ContentType: contentType, Name: name}
}

// ── Step constructors ─────────────────────────────────────────────────────────

// Resize returns a resize step.  Pass 0 for one axis to preserve aspect ratio.
func Resize(width, height int) core.Step { return &pipeline.ResizeStep{Width: width, Height: height} }

// Crop returns a crop step.
func Crop(x, y, width, height int) core.Step {
	return &pipeline.CropStep{X: x, Y: y, Width: width, Height: height}
}

// Thumbnail returns a square thumbnail step.
func Thumbnail(size int) core.Step { return &pipeline.ThumbnailStep{Size: size} }

// Grayscale returns a step that converts the image to grayscale.
func Grayscale() core.Step { return &pipeline.GrayscaleStep{} }

// AdjustColors returns a step applying brightness and contrast percentages,
// gamma and optional inversion.
func AdjustColors(brightness, contrast, gamma float64, invert bool) core.Step {
	return &pipeline.AdjustColorsStep{Brightness: brightness, Contrast: contrast, Gamma: gamma, Invert: invert}
}

// Curve returns a step applying lut to ch.
func Curve(lut toolkit.Curve, ch toolkit.Channel) core.Step {
	return &pipeline.CurveStep{Curve: lut, Channel: ch}
}

// Invert returns a step producing the negative image.
func Invert() core.Step { return &pipeline.InvertStep{} }

// Histogram returns a step attaching per-channel histograms with the given
// bin count.
func Histogram(bins int) core.Step { return &pipeline.HistogramStep{Bins: bins} }

// Watermark returns a step compositing mark at (x, y).
func Watermark(mark *core.Bitmap, x, y int) core.Step {
	return &pipeline.WatermarkStep{Watermark: mark, OffsetX: x, OffsetY: y}
}
