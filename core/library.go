package core

import (
	"path/filepath"
	"sync"

	"github.com/Skryldev/imagecore/config"
	apperrors "github.com/Skryldev/imagecore/errors"
	"github.com/Skryldev/imagecore/metadata"
)

// BuiltinPlugin is one entry of the fixed built-in registration list.
type BuiltinPlugin struct {
	Init      InitFunc
	Overrides Overrides
}

// Library owns a Registry and its reference-counted lifecycle.  The registry
// is built on the first Initialise and torn down by the matching last
// DeInitialise; nested pairs are no-ops.
type Library struct {
	mu       sync.Mutex
	cfg      config.Config
	builtins []BuiltinPlugin
	logger   Logger
	refs     int
	registry *Registry
}

// NewLibrary creates an uninitialised Library.  builtins are registered in
// the given order on every 0→1 transition, so their ids are stable.
func NewLibrary(cfg config.Config, builtins []BuiltinPlugin) *Library {
	return &Library{cfg: cfg, builtins: builtins, logger: NopLogger{}}
}

// SetLogger attaches a structured logger used by the library and by every
// registry it builds.
func (l *Library) SetLogger(lg Logger) {
	if lg == nil {
		lg = NopLogger{}
	}
	l.mu.Lock()
	l.logger = lg
	if l.registry != nil {
		l.registry.SetLogger(lg)
	}
	l.mu.Unlock()
}

// Config returns the configuration the library was created with.
func (l *Library) Config() config.Config { return l.cfg }

// Initialise increments the reference count and builds the registry on the
// first call.
func (l *Library) Initialise() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.refs > 0 {
		l.refs++
		return nil
	}
	if err := config.Validate(l.cfg); err != nil {
		return apperrors.Wrap(apperrors.CategoryConfig, "library.init", err)
	}

	// The tag table is shared by codecs; build it before any plugin can run.
	metadata.Init()

	reg := NewRegistry()
	reg.SetLogger(l.logger)
	reg.SetSignatureSize(l.cfg.SignatureSize)
	for _, b := range l.builtins {
		if _, err := reg.Register(b.Init, nil, b.Overrides); err != nil {
			l.logger.Warn("library.builtin.reject", "format", b.Overrides.Format, "error", err.Error())
		}
	}
	if !l.cfg.LoadLocalPluginsOnly {
		l.scanModules(reg)
	}

	l.registry = reg
	l.refs = 1
	l.logger.Info("library.init", "plugins", reg.Count())
	return nil
}

// DeInitialise decrements the reference count and releases the registry and
// every module it owns on the last call.  Calls without a matching
// Initialise are ignored.
func (l *Library) DeInitialise() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.refs == 0 {
		return nil
	}
	l.refs--
	if l.refs > 0 {
		return nil
	}
	reg := l.registry
	l.registry = nil
	err := reg.Close()
	l.logger.Info("library.teardown", "error", err)
	return err
}

// RefCount returns the current initialisation depth.
func (l *Library) RefCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refs
}

// Registry returns the live registry, or ErrNotInitialised.
func (l *Library) Registry() (*Registry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.registry == nil {
		return nil, apperrors.New(apperrors.CategoryInput, "library.registry", apperrors.ErrNotInitialised)
	}
	return l.registry, nil
}

// RegisterLocal registers an in-process plugin after the built-ins.
func (l *Library) RegisterLocal(init InitFunc, ov Overrides) (FormatID, error) {
	return l.RegisterModule(init, nil, ov)
}

// RegisterModule registers a plugin backed by mod.  The registry takes
// ownership of mod, also when registration fails.
func (l *Library) RegisterModule(init InitFunc, mod Module, ov Overrides) (FormatID, error) {
	reg, err := l.Registry()
	if err != nil {
		if mod != nil {
			mod.Close()
		}
		return FormatUnknown, err
	}
	return reg.Register(init, mod, ov)
}

// RegisterExternal opens the plugin module at path and registers it.
func (l *Library) RegisterExternal(path string, ov Overrides) (FormatID, error) {
	reg, err := l.Registry()
	if err != nil {
		return FormatUnknown, err
	}
	return registerExternal(reg, path, ov)
}

func registerExternal(reg *Registry, path string, ov Overrides) (FormatID, error) {
	mod, init, err := OpenModule(path)
	if err != nil {
		return FormatUnknown, err
	}
	return reg.Register(init, mod, ov)
}

// scanModules registers every module matching the configured pattern in the
// configured search paths.  Failures are logged and skipped.
func (l *Library) scanModules(reg *Registry) {
	for _, dir := range l.cfg.PluginSearchPaths {
		matches, err := filepath.Glob(filepath.Join(dir, l.cfg.PluginPattern))
		if err != nil {
			l.logger.Warn("library.module.scan", "dir", dir, "error", err.Error())
			continue
		}
		for _, path := range matches {
			id, err := registerExternal(reg, path, Overrides{})
			if err != nil {
				l.logger.Warn("library.module.skip", "path", path, "error", err.Error())
				continue
			}
			l.logger.Info("library.module.load", "path", path, "id", int(id))
		}
	}
}
