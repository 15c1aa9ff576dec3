package core

import (
	"io"

	apperrors "github.com/Skryldev/imagecore/errors"
)

// Load decodes a bitmap from s with the plugin registered under id.
//
// The plugin's Open hook (if any) runs first with read intent; Close runs on
// every exit path once Open has succeeded, including panics inside Load.
func (r *Registry) Load(id FormatID, s io.ReadSeeker, flags int) (bm *Bitmap, err error) {
	const op = "dispatch.load"
	d, err := r.lookup(op, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, apperrors.New(apperrors.CategoryInput, op, apperrors.ErrEmptyInput)
	}
	if d.plugin.Load == nil {
		return nil, apperrors.Newf(apperrors.CategoryFormat, op, "%w: %s cannot load", apperrors.ErrUnsupportedOperation, d.format)
	}

	session, err := r.open(d, s, true)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPlugin, op, err)
	}
	defer r.close(d, s, session)

	err = func() (err error) {
		defer recoverFault(&err)
		bm, err = d.plugin.Load(s, session, flags)
		return err
	}()
	switch {
	case err != nil:
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op+"."+d.format, err)
	case bm == nil:
		return nil, apperrors.Newf(apperrors.CategoryDecode, op+"."+d.format, "%w: plugin returned no bitmap", apperrors.ErrPluginFault)
	}
	return bm, nil
}

// Save encodes bm into s with the plugin registered under id.  Header-only
// bitmaps are rejected before any plugin code runs.
func (r *Registry) Save(id FormatID, bm *Bitmap, s io.WriteSeeker, flags int) (err error) {
	const op = "dispatch.save"
	if !bm.HasPixels() {
		return apperrors.New(apperrors.CategoryInput, op, apperrors.ErrNoPixels)
	}
	d, err := r.lookup(op, id)
	if err != nil {
		return err
	}
	if s == nil {
		return apperrors.New(apperrors.CategoryInput, op, apperrors.ErrEmptyInput)
	}
	if d.plugin.Save == nil {
		return apperrors.Newf(apperrors.CategoryFormat, op, "%w: %s cannot save", apperrors.ErrUnsupportedOperation, d.format)
	}

	session, err := r.open(d, s, false)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryPlugin, op, err)
	}
	defer r.close(d, s, session)

	err = func() (err error) {
		defer recoverFault(&err)
		return d.plugin.Save(s, bm, session, flags)
	}()
	return apperrors.Wrap(apperrors.CategoryEncode, op+"."+d.format, err)
}

func (r *Registry) lookup(op string, id FormatID) (*Descriptor, error) {
	d, ok := r.FindByID(id)
	if !ok {
		return nil, apperrors.Newf(apperrors.CategoryInput, op, "%w: %d", apperrors.ErrInvalidFormat, id)
	}
	return d, nil
}

func (r *Registry) open(d *Descriptor, s io.Seeker, forReading bool) (session any, err error) {
	if d.plugin.Open == nil {
		return nil, nil
	}
	defer recoverFault(&err)
	return d.plugin.Open(s, forReading)
}

func (r *Registry) close(d *Descriptor, s io.Seeker, session any) {
	if d.plugin.Close == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.log().Error("dispatch.close.panic", "id", int(d.id), "format", d.format, "panic", rec)
		}
	}()
	d.plugin.Close(s, session)
}

func recoverFault(err *error) {
	if rec := recover(); rec != nil {
		*err = apperrors.New(apperrors.CategoryPlugin, "plugin", pluginFault(rec))
	}
}
