package codec

import (
	"io"

	"golang.org/x/image/ccitt"

	"github.com/Skryldev/imagecore/core"
	apperrors "github.com/Skryldev/imagecore/errors"
)

// Raw fax pages are always 1728 pixels wide.
const g3Width = 1728

var g3Info = info{
	format: "G3", description: "Raw fax format CCITT G.3", extensions: "g3",
	mime: "image/fax-g3",
}

// NewG3 returns the raw Group 3 fax plugin.  It has no signature and no
// validator, so it is only reached by name or extension.  Load only.
func NewG3() core.InitFunc {
	return func(p *core.Plugin, _ core.FormatID) {
		g3Info.apply(p)
		p.Load = loadG3
		p.SupportsNoPixels = func() bool { return false }
	}
}

func loadG3(r io.ReadSeeker, _ any, _ int) (*core.Bitmap, error) {
	const op = "g3.load"
	data, err := io.ReadAll(ccitt.NewReader(r, ccitt.MSB, ccitt.Group3, g3Width, ccitt.AutoDetectHeight, &ccitt.Options{}))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	pitch := (g3Width + 7) / 8
	height := len(data) / pitch
	if height == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, op, apperrors.ErrEmptyInput)
	}

	bm, err := core.NewBitmap(core.TypeBitmap, g3Width, height, 1)
	if err != nil {
		return nil, err
	}
	// The decoder writes white as 1, which matches the black-first palette.
	for y := 0; y < height; y++ {
		copy(bm.ScanLine(y), data[y*pitch:(y+1)*pitch])
	}
	return bm, nil
}
