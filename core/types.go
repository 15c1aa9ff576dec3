package core

import (
	"context"
	"io"
	"time"
)

// FormatID identifies a registered plugin.  Ids are dense, start at 0 and are
// assigned in registration order.
type FormatID int

// FormatUnknown is returned when no plugin matches.
const FormatUnknown FormatID = -1

// Load and save flags.  The low 16 bits are reserved for plugin options.
const (
	// LoadNoPixels asks a plugin that supports it to return a header-only bitmap.
	LoadNoPixels = 0x8000

	// JPEGQualityMask extracts a quality (1-100) from JPEG and WEBP save flags.
	JPEGQualityMask = 0x7F

	PNMSaveRaw   = 0 // binary samples (P4, P5, P6)
	PNMSaveASCII = 1 // text samples (P1, P2, P3)

	PNGBestSpeed       = 0x0001
	PNGBestCompression = 0x0009
	PNGNoCompression   = 0x0800

	TIFFDeflate = 0x0200

	// VipsLossless asks the libvips HEIF/AVIF encoder for lossless output.
	VipsLossless = 0x0100
)

// Plugin is the capability table a format handler fills in from its InitFunc.
// Every hook is optional; a nil hook means the capability is not supported.
type Plugin struct {
	Format      func() string
	Description func() string
	Extensions  func() string // comma separated, no dots
	RegExpr     func() string
	MIME        func() string

	// Open starts a per-operation session.  The returned value is handed to
	// Load or Save and then to Close, and never outlives the operation.
	Open  func(s io.Seeker, forReading bool) (any, error)
	Close func(s io.Seeker, session any)

	Load     func(r io.ReadSeeker, session any, flags int) (*Bitmap, error)
	Save     func(w io.WriteSeeker, bm *Bitmap, session any, flags int) error
	Validate func(r io.ReadSeeker) bool

	SupportsExportDepth func(depth int) bool
	SupportsExportType  func(t ImageType) bool
	SupportsICC         func() bool
	SupportsNoPixels    func() bool

	// Magic lists known leading signatures.  A '?' byte matches anything.
	// Formats without a reliable signature leave it empty.
	Magic []string
}

// InitFunc fills in p.  It is called exactly once per registration with the
// id the plugin will receive.
type InitFunc func(p *Plugin, id FormatID)

// Overrides replaces the plugin's own naming.  Empty fields are ignored.
// The same plugin can be registered several times under different names.
type Overrides struct {
	Format      string
	Description string
	Extensions  string
	RegExpr     string
}

// Module is a handle to an externally loaded plugin module.  The registry
// owns every module it accepts and closes it on teardown.
type Module interface {
	Name() string
	Close() error
}

// ImageData is the value passed through a pipeline.
// Data holds encoded bytes; Bitmap holds the decoded pixels.
type ImageData struct {
	Data   []byte
	Format FormatID

	Bitmap *Bitmap

	// Histogram carries the result of the last histogram step, if any.
	Histogram *HistogramResult

	// Size of the original raw input.
	OriginalSize int64
}

// HistogramResult is attached to ImageData by histogram steps.
type HistogramResult struct {
	Bins             int
	Red, Green, Blue []uint32
	Luma             []uint32
	Min, Max         float64
}

// ProcessingResult is returned to the caller after the full pipeline completes.
type ProcessingResult struct {
	Primary *ImageData

	// Observability.
	ProcessingTime time.Duration
	StepTimings    map[string]time.Duration
}

// Source abstracts where raw bytes come from.
type Source struct {
	Reader      io.Reader
	ContentType string // optional MIME hint
	Name        string // optional file name, used for extension lookup
	Size        int64  // -1 if unknown
}

// Step is the fundamental pipeline building block.  Each Step transforms an
// *ImageData value and must be safe for concurrent use across goroutines.
type Step interface {
	Name() string
	Execute(ctx context.Context, img *ImageData) (*ImageData, error)
}

// Hook is an optional observer invoked around pipeline steps.
type Hook interface {
	BeforeStep(ctx context.Context, stepName string, img *ImageData)
	AfterStep(ctx context.Context, stepName string, img *ImageData, d time.Duration, err error)
}
