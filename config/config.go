package config

import (
	"errors"
	"time"
)

// Config is the top-level configuration struct.  All fields have safe defaults
// so callers can start with Default() and override only what they need.
type Config struct {
	// External plugin discovery.  Modules are only scanned when
	// LoadLocalPluginsOnly is false.
	PluginSearchPaths    []string // "" is the working directory
	PluginPattern        string   // glob matched inside each search path; default "*.fip"
	LoadLocalPluginsOnly bool

	// Number of leading bytes the format probe reads for signature matching.
	SignatureSize int // default 32

	// Default encode quality for lossy codecs when flags do not carry one.
	DefaultQuality int // 1-100; default 85

	// Streaming / memory limits.
	MaxImageBytes int64 // 0 = no limit
	ChunkSize     int   // streaming chunk size in bytes; default 32 KiB

	// Retry of transient pipeline failures.
	MaxRetries int
	RetryDelay time.Duration

	// libvips-backed HEIF/AVIF module.
	Vips VipsConfig

	// Logging.
	LogLevel string // "debug", "info", "warn", "error"
}

// VipsConfig configures the optional libvips module.
type VipsConfig struct {
	Enabled      bool
	MaxWorkers   int // default: runtime.NumCPU()
	MaxCacheSize int
	ReportLeaks  bool
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		PluginSearchPaths:    []string{"", "plugins"},
		PluginPattern:        "*.fip",
		LoadLocalPluginsOnly: true,
		SignatureSize:        32,
		DefaultQuality:       85,
		ChunkSize:            32 * 1024,
		MaxRetries:           0,
		RetryDelay:           200 * time.Millisecond,
		LogLevel:             "info",
	}
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.DefaultQuality < 1 || c.DefaultQuality > 100 {
		return errors.New("config: DefaultQuality must be between 1 and 100")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: ChunkSize must be positive")
	}
	if c.SignatureSize <= 0 {
		return errors.New("config: SignatureSize must be positive")
	}
	if c.MaxImageBytes < 0 {
		return errors.New("config: MaxImageBytes must not be negative")
	}
	if c.MaxRetries < 0 {
		return errors.New("config: MaxRetries must not be negative")
	}
	if !c.LoadLocalPluginsOnly && c.PluginPattern == "" {
		return errors.New("config: PluginPattern is required when external plugins are enabled")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New("config: LogLevel must be one of debug, info, warn, error")
	}
	return nil
}
