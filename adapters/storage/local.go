// Package storage persists pipeline output.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Skryldev/imagecore/core"
	apperrors "github.com/Skryldev/imagecore/errors"
	"github.com/Skryldev/imagecore/metadata"
)

// Local stores encoded images on the local filesystem.  Each image is
// written as <name>.<ext>, where ext is the first extension of the plugin
// that encoded it.  Bitmap metadata goes to a <name>.<ext>.meta.json
// side-car.
type Local struct {
	rootDir     string
	permissions os.FileMode
}

// NewLocal creates a Local storage adapter rooted at dir.
func NewLocal(dir string, perm os.FileMode) (*Local, error) {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: mkdir %s: %w", dir, err)
	}
	return &Local{rootDir: dir, permissions: perm}, nil
}

// Path returns where Put stores name encoded by d.
func (l *Local) Path(name string, d *core.Descriptor) string {
	ext, _, _ := strings.Cut(d.Extensions(), ",")
	return filepath.Join(l.rootDir, filepath.Clean("/"+name)+"."+ext)
}

// Put writes img.Data under name.  The format must resolve in reg.
func (l *Local) Put(ctx context.Context, reg *core.Registry, name string, img *core.ImageData) (string, error) {
	const op = "storage.put"
	if err := ctx.Err(); err != nil {
		return "", apperrors.Wrap(apperrors.CategoryResource, op, err)
	}
	if len(img.Data) == 0 {
		return "", apperrors.New(apperrors.CategoryInput, op, apperrors.ErrEmptyInput)
	}
	d, ok := reg.FindByID(img.Format)
	if !ok {
		return "", apperrors.New(apperrors.CategoryFormat, op, apperrors.ErrUnsupportedFormat)
	}

	path := l.Path(name, d)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", apperrors.Wrap(apperrors.CategoryResource, op, err)
	}
	if err := os.WriteFile(path, img.Data, l.permissions); err != nil {
		return "", apperrors.Wrap(apperrors.CategoryResource, op, err)
	}

	// Persist metadata as a side-car JSON file.
	if meta := sidecar(img.Bitmap); len(meta) > 0 {
		buf, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return "", apperrors.Wrap(apperrors.CategoryResource, op, err)
		}
		if err := os.WriteFile(path+".meta.json", buf, l.permissions); err != nil {
			return "", apperrors.Wrap(apperrors.CategoryResource, op, err)
		}
	}
	return path, nil
}

// Get opens the stored file at path, as returned by Put.
func (l *Local) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryResource, "storage.get", err)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.New(apperrors.CategoryInput, "storage.get", fmt.Errorf("not found: %s", path))
		}
		return nil, apperrors.Wrap(apperrors.CategoryResource, "storage.get", err)
	}
	return f, nil
}

// Metadata reads the side-car written by Put.  A missing side-car yields an
// empty map.
func (l *Local) Metadata(path string) (map[string]map[string]string, error) {
	buf, err := os.ReadFile(path + ".meta.json")
	if errors.Is(err, os.ErrNotExist) {
		return map[string]map[string]string{}, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryResource, "storage.metadata", err)
	}
	var meta map[string]map[string]string
	if err := json.Unmarshal(buf, &meta); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryResource, "storage.metadata", err)
	}
	return meta, nil
}

// Delete removes a stored file and its side-car.
func (l *Local) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryResource, "storage.delete", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(apperrors.CategoryResource, "storage.delete", err)
	}
	_ = os.Remove(path + ".meta.json")
	return nil
}

// Exists reports whether path is stored.
func (l *Local) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperrors.Wrap(apperrors.CategoryResource, "storage.exists", err)
	}
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, apperrors.Wrap(apperrors.CategoryResource, "storage.exists", err)
}

// StoreStep writes the encoded image to a Local store as the last step of a
// pipeline.  It passes the image through unchanged.
type StoreStep struct {
	Store    *Local
	Registry *core.Registry
	Key      string
}

func (s *StoreStep) Name() string { return "store" }

func (s *StoreStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if s.Store == nil || s.Registry == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrNotInitialised)
	}
	if _, err := s.Store.Put(ctx, s.Registry, s.Key, img); err != nil {
		return nil, err
	}
	return img, nil
}

var _ core.Step = (*StoreStep)(nil)

var models = []metadata.Model{
	metadata.ModelComments,
	metadata.ModelMain,
	metadata.ModelExif,
	metadata.ModelGPS,
	metadata.ModelCustom,
}

// sidecar collects the known tags of every metadata model, keyed by model.
func sidecar(bm *core.Bitmap) map[string]map[string]string {
	meta := map[string]map[string]string{}
	if bm == nil {
		return meta
	}
	for _, m := range models {
		if bm.MetadataCount(m) == 0 {
			continue
		}
		tags := map[string]string{}
		for _, key := range bm.MetadataKeys(m) {
			if v, ok := bm.Metadata(m, key); ok {
				tags[key] = v
			}
		}
		meta[m.String()] = tags
	}
	return meta
}
