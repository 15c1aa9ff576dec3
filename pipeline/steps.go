package pipeline

import (
	"context"
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/Skryldev/imagecore/core"
	apperrors "github.com/Skryldev/imagecore/errors"
	"github.com/Skryldev/imagecore/toolkit"
	"github.com/Skryldev/imagecore/utils"
)

// bitmapOf returns the decoded bitmap of img or an error naming the step.
func bitmapOf(step string, img *core.ImageData) (*core.Bitmap, error) {
	if img.Bitmap == nil || !img.Bitmap.HasPixels() {
		return nil, apperrors.New(apperrors.CategoryPipeline, step, apperrors.ErrNoPixels)
	}
	return img.Bitmap, nil
}

func registryOf(step string, reg *core.Registry) error {
	if reg == nil {
		return apperrors.New(apperrors.CategoryPipeline, step, apperrors.ErrNotInitialised)
	}
	return nil
}

func withBitmap(img *core.ImageData, bm *core.Bitmap) *core.ImageData {
	out := *img
	out.Bitmap = bm
	return &out
}

// ── Decode ────────────────────────────────────────────────────────────────────

// DecodeStep loads img.Data into a bitmap with the plugin chosen for
// img.Format.
type DecodeStep struct {
	Registry *core.Registry
	Flags    int // load flags, e.g. core.LoadNoPixels
}

func (s *DecodeStep) Name() string { return "decode" }

func (s *DecodeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, s.Name(), err)
	}
	if img.Bitmap != nil {
		return img, nil // already decoded
	}
	if len(img.Data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(), apperrors.ErrEmptyInput)
	}
	if img.Format == core.FormatUnknown {
		return nil, apperrors.New(apperrors.CategoryFormat, s.Name(), apperrors.ErrUnsupportedFormat)
	}
	if err := registryOf(s.Name(), s.Registry); err != nil {
		return nil, err
	}
	bm, err := s.Registry.Load(img.Format, utils.NewMemoryStream(img.Data), s.Flags)
	if err != nil {
		return nil, err
	}
	return withBitmap(img, bm), nil
}

// ── Tone ──────────────────────────────────────────────────────────────────────

// AdjustColorsStep applies brightness, contrast, gamma and inversion in one
// lookup-table pass.
type AdjustColorsStep struct {
	Brightness, Contrast float64 // percentages, -100..100
	Gamma                float64 // 1 is neutral
	Invert               bool
}

func (s *AdjustColorsStep) Name() string { return "adjust_colors" }

func (s *AdjustColorsStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	bm, err := bitmapOf(s.Name(), img)
	if err != nil {
		return nil, err
	}
	gamma := s.Gamma
	if gamma == 0 {
		gamma = 1
	}
	bm = bm.Clone()
	if err := toolkit.AdjustColors(bm, s.Brightness, s.Contrast, gamma, s.Invert); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	return withBitmap(img, bm), nil
}

// CurveStep applies a lookup table to one channel.
type CurveStep struct {
	Curve   toolkit.Curve
	Channel toolkit.Channel
}

func (s *CurveStep) Name() string { return "curve" }

func (s *CurveStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	bm, err := bitmapOf(s.Name(), img)
	if err != nil {
		return nil, err
	}
	bm = bm.Clone()
	if err := toolkit.AdjustCurve(bm, s.Curve, s.Channel); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	return withBitmap(img, bm), nil
}

// InvertStep produces the negative of the image.
type InvertStep struct{}

func (s *InvertStep) Name() string { return "invert" }

func (s *InvertStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	bm, err := bitmapOf(s.Name(), img)
	if err != nil {
		return nil, err
	}
	bm = bm.Clone()
	if err := toolkit.Invert(bm); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	return withBitmap(img, bm), nil
}

// ── Histogram ─────────────────────────────────────────────────────────────────

// HistogramStep attaches a red, green, blue and luma histogram to the
// ImageData.  The bitmap itself is not modified.
type HistogramStep struct {
	Bins int // default 256
}

func (s *HistogramStep) Name() string { return "histogram" }

func (s *HistogramStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	bm, err := bitmapOf(s.Name(), img)
	if err != nil {
		return nil, err
	}
	bins := s.Bins
	if bins == 0 {
		bins = 256
	}
	channel := func() *toolkit.HistogramChannel {
		return &toolkit.HistogramChannel{Counts: make([]uint32, bins), Stride: 1}
	}
	req := toolkit.HistogramRequest{Bins: bins, Red: channel(), Green: channel(), Blue: channel(), Luma: channel()}
	rng, err := toolkit.MakeHistogram(bm, req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	out := *img
	out.Histogram = &core.HistogramResult{
		Bins:  bins,
		Red:   req.Red.Counts,
		Green: req.Green.Counts,
		Blue:  req.Blue.Counts,
		Luma:  req.Luma.Counts,
		Min:   rng.Min,
		Max:   rng.Max,
	}
	return &out, nil
}

// ── Geometry ──────────────────────────────────────────────────────────────────

// ResizeStep resizes the image to the given dimensions, preserving aspect ratio
// when one axis is 0.
type ResizeStep struct {
	Width, Height int
	// Resampler controls quality vs speed.  Defaults to draw.BiLinear.
	Resampler xdraw.Interpolator
}

func (s *ResizeStep) Name() string { return "resize" }

func (s *ResizeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	bm, err := bitmapOf(s.Name(), img)
	if err != nil {
		return nil, err
	}

	dstW, dstH := utils.ScaleDimensions(bm.Width(), bm.Height(), s.Width, s.Height)
	if dstW == bm.Width() && dstH == bm.Height() {
		return img, nil // nothing to do
	}
	if dstW <= 0 || dstH <= 0 {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrInvalidDimensions)
	}

	src, err := core.ToImage(bm)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	sampler := s.Resampler
	if sampler == nil {
		sampler = xdraw.BiLinear
	}
	dst := sameKind(src, image.Rect(0, 0, dstW, dstH))
	sampler.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	out, err := core.FromImage(dst)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	return withBitmap(img, out), nil
}

// sameKind allocates a destination that keeps grey and 16-bit images in
// their encoding.  Palette images are resampled to true colour.
func sameKind(src image.Image, r image.Rectangle) xdraw.Image {
	switch src.(type) {
	case *image.Gray:
		return image.NewGray(r)
	case *image.Gray16:
		return image.NewGray16(r)
	case *image.NRGBA64:
		return image.NewNRGBA64(r)
	}
	return image.NewNRGBA(r)
}

// CropStep crops a rectangle from the image.
type CropStep struct {
	X, Y, Width, Height int
}

func (s *CropStep) Name() string { return "crop" }

func (s *CropStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	bm, err := bitmapOf(s.Name(), img)
	if err != nil {
		return nil, err
	}
	src, err := core.ToImage(bm)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}

	rect := image.Rect(s.X, s.Y, s.X+s.Width, s.Y+s.Height)
	if rect.Empty() || !rect.In(src.Bounds()) {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(),
			fmt.Errorf("%w: crop rect %v exceeds image bounds %v", apperrors.ErrInvalidDimensions, rect, src.Bounds()))
	}
	sub := src.(interface {
		SubImage(image.Rectangle) image.Image
	}).SubImage(rect)

	out, err := core.FromImage(sub)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	return withBitmap(img, out), nil
}

// ThumbnailStep is a convenience step that combines Resize with square cropping.
type ThumbnailStep struct {
	Size int // square size in pixels
}

func (s *ThumbnailStep) Name() string { return "thumbnail" }

func (s *ThumbnailStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	bm, err := bitmapOf(s.Name(), img)
	if err != nil {
		return nil, err
	}

	// Step 1: resize so smallest dimension == s.Size.
	var rw, rh int
	if bm.Width() < bm.Height() {
		rw, rh = s.Size, 0
	} else {
		rw, rh = 0, s.Size
	}
	resized, err := (&ResizeStep{Width: rw, Height: rh}).Execute(ctx, img)
	if err != nil {
		return nil, err
	}

	// Step 2: centre-crop to square.
	rb := resized.Bitmap
	ox := (rb.Width() - s.Size) / 2
	oy := (rb.Height() - s.Size) / 2
	return (&CropStep{X: ox, Y: oy, Width: s.Size, Height: s.Size}).Execute(ctx, resized)
}

// ── Colour space ──────────────────────────────────────────────────────────────

// GrayscaleStep converts the image to an 8-bit greyscale bitmap.
type GrayscaleStep struct{}

func (s *GrayscaleStep) Name() string { return "grayscale" }

func (s *GrayscaleStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	bm, err := bitmapOf(s.Name(), img)
	if err != nil {
		return nil, err
	}
	src, err := core.ToImage(bm)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	dst := image.NewGray(src.Bounds())
	xdraw.Draw(dst, dst.Bounds(), src, image.Point{}, xdraw.Src)

	out, err := core.FromImage(dst)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	return withBitmap(img, out), nil
}

// ── Watermark ─────────────────────────────────────────────────────────────────

// WatermarkStep composites a watermark bitmap at the given offset.
type WatermarkStep struct {
	Watermark *core.Bitmap
	OffsetX   int
	OffsetY   int
}

func (s *WatermarkStep) Name() string { return "watermark" }

func (s *WatermarkStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	bm, err := bitmapOf(s.Name(), img)
	if err != nil {
		return nil, err
	}
	src, err := core.ToImage(bm)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	mark, err := core.ToImage(s.Watermark)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}

	dst := image.NewNRGBA(src.Bounds())
	xdraw.Draw(dst, dst.Bounds(), src, image.Point{}, xdraw.Src)
	offset := image.Point{X: s.OffsetX, Y: s.OffsetY}
	xdraw.Draw(dst, mark.Bounds().Add(offset), mark, image.Point{}, xdraw.Over)

	out, err := core.FromImage(dst)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	return withBitmap(img, out), nil
}

// ── Format conversion ─────────────────────────────────────────────────────────

// ConvertFormatStep selects the plugin the next EncodeStep saves with.
type ConvertFormatStep struct {
	Registry *core.Registry
	Format   string // plugin format name, e.g. "PNG"
}

func (s *ConvertFormatStep) Name() string { return "convert_format" }

func (s *ConvertFormatStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := registryOf(s.Name(), s.Registry); err != nil {
		return nil, err
	}
	d, ok := s.Registry.FindByFormat(s.Format)
	if !ok {
		return nil, apperrors.Newf(apperrors.CategoryFormat, s.Name(), "%w: %s", apperrors.ErrUnsupportedFormat, s.Format)
	}
	if !d.CanSave() {
		return nil, apperrors.Newf(apperrors.CategoryFormat, s.Name(), "%w: %s cannot save", apperrors.ErrUnsupportedOperation, d.Format())
	}
	out := *img
	out.Format = d.ID()
	return &out, nil
}

// ── Encode ────────────────────────────────────────────────────────────────────

// EncodeStep saves the bitmap with the plugin for img.Format and replaces
// img.Data with the encoded bytes.
type EncodeStep struct {
	Registry *core.Registry
	Flags    int // save flags, e.g. a JPEG quality or core.PNMSaveASCII
}

func (s *EncodeStep) Name() string { return "encode" }

func (s *EncodeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, s.Name(), err)
	}
	bm, err := bitmapOf(s.Name(), img)
	if err != nil {
		return nil, err
	}
	data, err := encode(s.Registry, img.Format, bm, s.Flags)
	if err != nil {
		return nil, err
	}
	out := *img
	out.Data = data
	return &out, nil
}

func encode(reg *core.Registry, id core.FormatID, bm *core.Bitmap, flags int) ([]byte, error) {
	if err := registryOf("encode", reg); err != nil {
		return nil, err
	}
	ms := utils.NewMemoryStream(nil)
	if err := reg.Save(id, bm, ms, flags); err != nil {
		return nil, err
	}
	return ms.Bytes(), nil
}

// ── AdaptiveCompress ──────────────────────────────────────────────────────────

// AdaptiveCompressStep lowers the save quality until the encoded size fits
// the target.  It only makes sense for plugins that read a quality from the
// flags, such as JPEG.
type AdaptiveCompressStep struct {
	Registry        *core.Registry
	TargetSizeBytes int64
	MinQuality      int
	MaxQuality      int
	StepSize        int
}

func (s *AdaptiveCompressStep) Name() string { return "adaptive_compress" }

func (s *AdaptiveCompressStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if s.TargetSizeBytes <= 0 {
		return img, nil
	}
	bm, err := bitmapOf(s.Name(), img)
	if err != nil {
		return nil, err
	}

	quality := s.MaxQuality
	if quality <= 0 || quality > 100 {
		quality = 100
	}
	minQ := 1
	if s.MinQuality > 0 {
		minQ = s.MinQuality
	}
	step := s.StepSize
	if step <= 0 {
		step = 5
	}

	var best []byte
	for quality >= minQ {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
		}
		data, err := encode(s.Registry, img.Format, bm, quality)
		if err != nil {
			return nil, err
		}
		best = data
		if int64(len(data)) <= s.TargetSizeBytes {
			break
		}
		quality -= step
	}

	out := *img
	out.Data = best
	return &out, nil
}

var (
	_ core.Step = (*DecodeStep)(nil)
	_ core.Step = (*AdjustColorsStep)(nil)
	_ core.Step = (*CurveStep)(nil)
	_ core.Step = (*InvertStep)(nil)
	_ core.Step = (*HistogramStep)(nil)
	_ core.Step = (*ResizeStep)(nil)
	_ core.Step = (*CropStep)(nil)
	_ core.Step = (*ThumbnailStep)(nil)
	_ core.Step = (*GrayscaleStep)(nil)
	_ core.Step = (*WatermarkStep)(nil)
	_ core.Step = (*ConvertFormatStep)(nil)
	_ core.Step = (*EncodeStep)(nil)
	_ core.Step = (*AdaptiveCompressStep)(nil)
)
