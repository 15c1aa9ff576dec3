package errors

import (
	"errors"
	"fmt"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryInput     Category = "input"    // invalid argument, caught before any work
	CategoryFormat    Category = "format"   // no plugin claims the data or the operation is missing
	CategoryResource  Category = "resource" // module loading, allocation
	CategoryPlugin    Category = "plugin"   // a plugin hook failed or panicked
	CategoryDecode    Category = "decode"
	CategoryEncode    Category = "encode"
	CategoryPipeline  Category = "pipeline"
	CategoryConfig    Category = "config"
	CategoryTransient Category = "transient"
)

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Category  Category
	Op        string // operation name
	Err       error
	Retryable bool
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// New creates a non-retryable ProcessingError.
func New(category Category, op string, err error) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: err}
}

// Newf creates a non-retryable ProcessingError from a format string.  Use %w
// to keep a sentinel reachable through errors.Is.
func Newf(category Category, op string, format string, args ...any) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: fmt.Errorf(format, args...)}
}

// Transient creates a retryable ProcessingError.
func Transient(op string, err error) *ProcessingError {
	return &ProcessingError{Category: CategoryTransient, Op: op, Err: err, Retryable: true}
}

// Wrap wraps an existing error with context.  An error that already carries
// a category keeps it; only the operation name is added.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return &ProcessingError{Category: pe.Category, Op: op, Err: err, Retryable: pe.Retryable}
	}
	return New(category, op, err)
}

// IsRetryable reports whether err represents a transient failure.
func IsRetryable(err error) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category == cat
	}
	return false
}

// CategoryOf returns the category of err, or "" when err is not a
// ProcessingError.
func CategoryOf(err error) Category {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// Sentinel errors for common failure modes.
var (
	ErrUnsupportedFormat    = errors.New("unsupported image format")
	ErrInvalidDimensions    = errors.New("invalid dimensions")
	ErrEmptyInput           = errors.New("empty input")
	ErrInvalidFormat        = errors.New("invalid format identifier")
	ErrNoPixels             = errors.New("bitmap has no pixel data")
	ErrNoInitFunc           = errors.New("plugin has no init function")
	ErrNoFormatName         = errors.New("plugin has no format name")
	ErrUnsupportedOperation = errors.New("operation not supported by plugin")
	ErrUnsupportedImage     = errors.New("unsupported image type or bit depth")
	ErrInvalidChannel       = errors.New("invalid color channel")
	ErrInvalidBins          = errors.New("bin count must be at least 1")
	ErrInvalidStride        = errors.New("histogram stride must be positive")
	ErrInvalidRange         = errors.New("invalid value range")
	ErrPluginFault          = errors.New("plugin fault")
	ErrNotInitialised       = errors.New("library not initialised")
)
