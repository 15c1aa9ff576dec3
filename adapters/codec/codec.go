// Package codec provides the built-in format plugins.
//
// Formats with a Go decoder or encoder are full plugins; the rest are
// identify-only descriptors that let the registry recognise a file without
// being able to load it.
package codec

import (
	"io"

	"golang.org/x/exp/slices"

	"github.com/Skryldev/imagecore/config"
	"github.com/Skryldev/imagecore/core"
)

// Stable ids of the built-in plugins.  Builtins registers them in this order.
const (
	BMP core.FormatID = iota
	ICO
	JPEG
	JNG
	KOALA
	IFF
	MNG
	PBM
	PBMRAW
	PCD
	PCX
	PGM
	PGMRAW
	PNG
	PPM
	PPMRAW
	RAS
	TARGA
	TIFF
	WBMP
	PSD
	CUT
	XBM
	XPM
	DDS
	GIF
	HDR
	G3
	SGI
	EXR
	J2K
	JP2
	PFM
	PICT
	RAW
	WEBP
	JXR
)

// Builtins returns the built-in plugin list in canonical order.
func Builtins(cfg config.Config) []core.BuiltinPlugin {
	pnm := NewPNM()
	return []core.BuiltinPlugin{
		{Init: NewBMP()},
		{Init: identify(icoInfo)},
		{Init: NewJPEG(cfg.DefaultQuality)},
		{Init: identify(jngInfo)},
		{Init: identify(koalaInfo)},
		{Init: identify(iffInfo)},
		{Init: identify(mngInfo)},
		{Init: pnm, Overrides: core.Overrides{Format: "PBM", Description: "Portable Bitmap (ASCII)", Extensions: "pbm", RegExpr: "^P1"}},
		{Init: pnm, Overrides: core.Overrides{Format: "PBMRAW", Description: "Portable Bitmap (RAW)", Extensions: "pbm", RegExpr: "^P4"}},
		{Init: identify(pcdInfo)},
		{Init: identify(pcxInfo)},
		{Init: pnm, Overrides: core.Overrides{Format: "PGM", Description: "Portable Greymap (ASCII)", Extensions: "pgm", RegExpr: "^P2"}},
		{Init: pnm, Overrides: core.Overrides{Format: "PGMRAW", Description: "Portable Greymap (RAW)", Extensions: "pgm", RegExpr: "^P5"}},
		{Init: NewPNG()},
		{Init: pnm, Overrides: core.Overrides{Format: "PPM", Description: "Portable Pixelmap (ASCII)", Extensions: "ppm", RegExpr: "^P3"}},
		{Init: pnm, Overrides: core.Overrides{Format: "PPMRAW", Description: "Portable Pixelmap (RAW)", Extensions: "ppm", RegExpr: "^P6"}},
		{Init: identify(rasInfo)},
		{Init: identify(targaInfo)},
		{Init: NewTIFF()},
		{Init: identify(wbmpInfo)},
		{Init: identify(psdInfo)},
		{Init: identify(cutInfo)},
		{Init: identify(xbmInfo)},
		{Init: identify(xpmInfo)},
		{Init: identify(ddsInfo)},
		{Init: NewGIF()},
		{Init: identify(hdrInfo)},
		{Init: NewG3()},
		{Init: identify(sgiInfo)},
		{Init: identify(exrInfo)},
		{Init: identify(j2kInfo)},
		{Init: identify(jp2Info)},
		{Init: identify(pfmInfo)},
		{Init: identify(pictInfo)},
		{Init: identify(rawInfo)},
		{Init: NewWebP()},
		{Init: identify(jxrInfo)},
	}
}

// info is the naming and signature data every plugin carries.
type info struct {
	format      string
	description string
	extensions  string
	mime        string
	magic       []string
}

// apply fills the naming hooks and, when signatures are known, a validator
// that checks them.
func (i info) apply(p *core.Plugin) {
	p.Format = func() string { return i.format }
	p.Description = func() string { return i.description }
	p.Extensions = func() string { return i.extensions }
	p.MIME = func() string { return i.mime }
	p.Magic = i.magic
	if len(i.magic) > 0 {
		p.Validate = magicValidator(i.magic)
	}
}

// magicValidator accepts a stream that starts with one of magic.  A '?' in
// a signature matches any byte.
func magicValidator(magic []string) func(io.ReadSeeker) bool {
	longest := 0
	for _, m := range magic {
		longest = max(longest, len(m))
	}
	return func(r io.ReadSeeker) bool {
		buf := make([]byte, longest)
		n, _ := io.ReadFull(r, buf)
		buf = buf[:n]
		for _, m := range magic {
			if hasMagic(buf, m) {
				return true
			}
		}
		return false
	}
}

func hasMagic(buf []byte, magic string) bool {
	if len(buf) < len(magic) {
		return false
	}
	for i := 0; i < len(magic); i++ {
		if magic[i] != '?' && buf[i] != magic[i] {
			return false
		}
	}
	return true
}

// depthSet and typeSet back the SupportsExport hooks.
func depthSet(depths ...int) func(int) bool {
	return func(d int) bool { return slices.Contains(depths, d) }
}

func typeSet(types ...core.ImageType) func(core.ImageType) bool {
	return func(t core.ImageType) bool { return slices.Contains(types, t) }
}
