package core

import (
	"errors"
	"io"
	"path/filepath"
	"strings"

	apperrors "github.com/Skryldev/imagecore/errors"
)

// DetectFormat identifies the plugin that claims the content of s.
//
// Enabled plugins are tried in id order.  A plugin with a known signature that
// does not match the stream prefix is skipped without running its validator.
// The position of s is the same on return as on entry, whatever the outcome.
func (r *Registry) DetectFormat(s io.ReadSeeker) (id FormatID, err error) {
	const op = "probe.detect"
	if s == nil {
		return FormatUnknown, apperrors.New(apperrors.CategoryInput, op, apperrors.ErrEmptyInput)
	}
	start, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return FormatUnknown, apperrors.Wrap(apperrors.CategoryResource, op, err)
	}
	defer func() {
		if _, serr := s.Seek(start, io.SeekStart); serr != nil && err == nil {
			id, err = FormatUnknown, apperrors.Wrap(apperrors.CategoryResource, op, serr)
		}
	}()

	prefix := make([]byte, r.signatureSize())
	n, rerr := io.ReadFull(s, prefix)
	if rerr != nil && !errors.Is(rerr, io.EOF) && !errors.Is(rerr, io.ErrUnexpectedEOF) {
		return FormatUnknown, apperrors.Wrap(apperrors.CategoryResource, op, rerr)
	}
	prefix = prefix[:n]

	for _, d := range r.Descriptors() {
		if !d.Enabled() || d.plugin.Validate == nil {
			continue
		}
		if d.sig.known() && !d.sig.match(prefix) {
			continue
		}
		if r.validateAt(d, s, start) {
			return d.id, nil
		}
	}
	return FormatUnknown, apperrors.New(apperrors.CategoryFormat, op, apperrors.ErrUnsupportedFormat)
}

// ValidateFormat runs a single plugin's validator against s, restoring the
// stream position afterwards.  Disabled plugins never validate.
func (r *Registry) ValidateFormat(id FormatID, s io.ReadSeeker) bool {
	d, ok := r.FindByID(id)
	if !ok || s == nil || !d.Enabled() || d.plugin.Validate == nil {
		return false
	}
	start, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return false
	}
	defer s.Seek(start, io.SeekStart) //nolint:errcheck // best effort, nothing to report through a bool
	return r.validateAt(d, s, start)
}

// validateAt positions s at start, runs the validator and rewinds again.
func (r *Registry) validateAt(d *Descriptor, s io.ReadSeeker, start int64) (ok bool) {
	if _, err := s.Seek(start, io.SeekStart); err != nil {
		return false
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.log().Warn("probe.validate.panic", "id", int(d.id), "format", d.format, "panic", rec)
			ok = false
		}
		s.Seek(start, io.SeekStart) //nolint:errcheck // the caller restores again on exit
	}()
	return d.plugin.Validate(s)
}

// DetectFormatByExtension maps a file name to a plugin by its extension.
//
// The text after the last '.' of the base name (or the whole base name) is
// compared case-insensitively with each enabled plugin's format name and
// then with each entry of its extension list.
func (r *Registry) DetectFormatByExtension(name string) FormatID {
	ext := filepath.Base(name)
	if i := strings.LastIndexByte(ext, '.'); i >= 0 {
		ext = ext[i+1:]
	}
	if ext == "" {
		return FormatUnknown
	}
	for _, d := range r.Descriptors() {
		if !d.Enabled() {
			continue
		}
		if strings.EqualFold(d.format, ext) {
			return d.id
		}
		for _, tok := range strings.Split(d.extensions, ",") {
			if strings.EqualFold(strings.TrimSpace(tok), ext) {
				return d.id
			}
		}
	}
	return FormatUnknown
}
