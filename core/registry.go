package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/exp/slices"

	apperrors "github.com/Skryldev/imagecore/errors"
)

// ── Descriptor ────────────────────────────────────────────────────────────────

// Descriptor is a registered plugin.  Everything but the enabled flag is fixed
// at registration time.
type Descriptor struct {
	id      FormatID
	plugin  Plugin
	module  Module
	enabled atomic.Bool

	format      string
	description string
	extensions  string
	regexpr     string
	mime        string
	sig         signature
}

func (d *Descriptor) ID() FormatID { return d.id }

// Format returns the effective format name: the override if one was given,
// else the plugin's own.
func (d *Descriptor) Format() string      { return d.format }
func (d *Descriptor) Description() string { return d.description }
func (d *Descriptor) Extensions() string  { return d.extensions }
func (d *Descriptor) RegExpr() string     { return d.regexpr }

// MIME is always the plugin's own value; it cannot be overridden.
func (d *Descriptor) MIME() string  { return d.mime }
func (d *Descriptor) Enabled() bool { return d.enabled.Load() }

// ModuleName returns the name of the owning module, "" for built-ins.
func (d *Descriptor) ModuleName() string {
	if d.module == nil {
		return ""
	}
	return d.module.Name()
}

func (d *Descriptor) CanLoad() bool     { return d.plugin.Load != nil }
func (d *Descriptor) CanSave() bool     { return d.plugin.Save != nil }
func (d *Descriptor) CanValidate() bool { return d.plugin.Validate != nil }

// Magic returns the plugin's known signatures.
func (d *Descriptor) Magic() []string { return slices.Clone(d.plugin.Magic) }

func (d *Descriptor) SupportsExportDepth(depth int) bool {
	f := d.plugin.SupportsExportDepth
	return f != nil && d.plugin.Save != nil && safeBool(func() bool { return f(depth) })
}

func (d *Descriptor) SupportsExportType(t ImageType) bool {
	f := d.plugin.SupportsExportType
	return f != nil && d.plugin.Save != nil && safeBool(func() bool { return f(t) })
}

func (d *Descriptor) SupportsICC() bool {
	return d.plugin.SupportsICC != nil && safeBool(d.plugin.SupportsICC)
}

func (d *Descriptor) SupportsNoPixels() bool {
	return d.plugin.SupportsNoPixels != nil && safeBool(d.plugin.SupportsNoPixels)
}

// resolve caches the naming hooks so lookups never call into plugin code.
func (d *Descriptor) resolve(ov Overrides) error {
	var err error
	pick := func(override string, f func() string) string {
		if override != "" || err != nil {
			return override
		}
		var s string
		s, err = safeString(f)
		return s
	}
	d.format = pick(ov.Format, d.plugin.Format)
	d.description = pick(ov.Description, d.plugin.Description)
	d.extensions = pick(ov.Extensions, d.plugin.Extensions)
	d.regexpr = pick(ov.RegExpr, d.plugin.RegExpr)
	d.mime = pick("", d.plugin.MIME)
	if err != nil {
		return err
	}
	if d.format == "" {
		return apperrors.ErrNoFormatName
	}
	d.sig = newSignature(d.plugin.Magic, d.regexpr)
	return nil
}

// ── signature ─────────────────────────────────────────────────────────────────

// signature is the cheap first probe tier.  Explicit magic strings win over an
// anchored regex hint; formats with neither have no known signature.
type signature struct {
	magic [][]byte
	re    *regexp.Regexp
}

func newSignature(magic []string, hint string) signature {
	var s signature
	for _, m := range magic {
		if m != "" {
			s.magic = append(s.magic, []byte(m))
		}
	}
	if len(s.magic) == 0 && strings.HasPrefix(hint, "^") {
		s.re, _ = regexp.Compile(hint)
	}
	return s
}

func (s signature) known() bool { return len(s.magic) > 0 || s.re != nil }

func (s signature) match(prefix []byte) bool {
	if s.re != nil {
		return s.re.Match(prefix)
	}
	for _, m := range s.magic {
		if matchMagic(m, prefix) {
			return true
		}
	}
	return false
}

func matchMagic(magic, prefix []byte) bool {
	if len(prefix) < len(magic) {
		return false
	}
	for i, b := range magic {
		if b != '?' && prefix[i] != b {
			return false
		}
	}
	return true
}

// ── Registry ──────────────────────────────────────────────────────────────────

// Registry is the ordered plugin catalog.  Ids index a slice, so lookup by id
// is O(1); lookups by name or MIME type scan in id order.
//
// Registry is safe for concurrent use.  Plugin hooks are always called
// without the lock held, except InitFunc, which must not call back into the
// registry.
type Registry struct {
	mu      sync.RWMutex
	nodes   []*Descriptor
	logger  Logger
	sigSize int
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{logger: NopLogger{}, sigSize: 32}
}

// SetLogger attaches a structured logger.
func (r *Registry) SetLogger(l Logger) {
	if l == nil {
		l = NopLogger{}
	}
	r.mu.Lock()
	r.logger = l
	r.mu.Unlock()
}

// SetSignatureSize sets how many leading bytes DetectFormat reads for the
// signature tier.
func (r *Registry) SetSignatureSize(n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	r.sigSize = n
	r.mu.Unlock()
}

// Register runs init with the next id and stores the resulting plugin.
// Ownership of mod passes to the registry: it is closed when the
// registration is rejected, and on Close otherwise.
func (r *Registry) Register(init InitFunc, mod Module, ov Overrides) (FormatID, error) {
	const op = "registry.register"
	if init == nil {
		r.release(mod)
		return FormatUnknown, apperrors.New(apperrors.CategoryInput, op, apperrors.ErrNoInitFunc)
	}

	r.mu.Lock()
	id := FormatID(len(r.nodes))
	d := &Descriptor{id: id, module: mod}
	err := safeInit(init, &d.plugin, id)
	if err == nil {
		err = d.resolve(ov)
	}
	if err != nil {
		r.mu.Unlock()
		r.log().Warn("registry.reject", "id", int(id), "module", moduleName(mod), "error", err.Error())
		r.release(mod)
		return FormatUnknown, apperrors.Wrap(apperrors.CategoryPlugin, op, err)
	}
	d.enabled.Store(true)
	r.nodes = append(r.nodes, d)
	logger := r.logger
	r.mu.Unlock()

	logger.Debug("registry.register", "id", int(id), "format", d.format, "module", moduleName(mod))
	return id, nil
}

// FindByID returns the descriptor with the given id, enabled or not.
func (r *Registry) FindByID(id FormatID) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || int(id) >= len(r.nodes) {
		return nil, false
	}
	return r.nodes[id], true
}

// FindByFormat matches the effective format name case-insensitively,
// skipping disabled plugins.
func (r *Registry) FindByFormat(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.nodes {
		if d.Enabled() && strings.EqualFold(d.format, name) {
			return d, true
		}
	}
	return nil, false
}

// FindByMIME matches the plugin's MIME type exactly, skipping disabled plugins.
func (r *Registry) FindByMIME(mime string) (*Descriptor, bool) {
	if mime == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.nodes {
		if d.Enabled() && d.mime == mime {
			return d, true
		}
	}
	return nil, false
}

// SetEnabled toggles a plugin and returns its previous state.
func (r *Registry) SetEnabled(id FormatID, enabled bool) (bool, error) {
	d, ok := r.FindByID(id)
	if !ok {
		return false, apperrors.Newf(apperrors.CategoryInput, "registry.enable", "%w: %d", apperrors.ErrInvalidFormat, id)
	}
	prev := d.enabled.Swap(enabled)
	r.log().Debug("registry.enable", "id", int(id), "format", d.format, "enabled", enabled)
	return prev, nil
}

// IsEnabled reports the enabled state of a plugin.
func (r *Registry) IsEnabled(id FormatID) (bool, error) {
	d, ok := r.FindByID(id)
	if !ok {
		return false, apperrors.Newf(apperrors.CategoryInput, "registry.is_enabled", "%w: %d", apperrors.ErrInvalidFormat, id)
	}
	return d.Enabled(), nil
}

// Count returns the number of registered plugins, enabled or not.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Descriptors returns a snapshot of all descriptors in id order.
func (r *Registry) Descriptors() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.nodes)
}

// Close releases every owned module and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	nodes := r.nodes
	r.nodes = nil
	r.mu.Unlock()

	var errs []error
	for _, d := range nodes {
		if d.module == nil {
			continue
		}
		if err := d.module.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.module.Name(), err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return apperrors.New(apperrors.CategoryResource, "registry.close", err)
	}
	return nil
}

func (r *Registry) log() Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logger
}

func (r *Registry) signatureSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sigSize
}

func (r *Registry) release(mod Module) {
	if mod == nil {
		return
	}
	if err := mod.Close(); err != nil {
		r.log().Warn("registry.release", "module", mod.Name(), "error", err.Error())
	}
}

func moduleName(m Module) string {
	if m == nil {
		return ""
	}
	return m.Name()
}

// ── panic boundaries ──────────────────────────────────────────────────────────

func pluginFault(r any) error {
	return fmt.Errorf("%w: %v", apperrors.ErrPluginFault, r)
}

func safeInit(init InitFunc, p *Plugin, id FormatID) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = pluginFault(rec)
		}
	}()
	init(p, id)
	return nil
}

func safeString(f func() string) (s string, err error) {
	if f == nil {
		return "", nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = pluginFault(rec)
		}
	}()
	return f(), nil
}

func safeBool(f func() bool) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return f()
}
