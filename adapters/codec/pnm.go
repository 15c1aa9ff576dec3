package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/Skryldev/imagecore/core"
	apperrors "github.com/Skryldev/imagecore/errors"
	"github.com/Skryldev/imagecore/metadata"
)

// pnmCommentKey is the ModelComments tag that carries '#' header comments,
// one per line.
const pnmCommentKey = "Comment"

// Longest ASCII sample line written by Save.
const pnmLineWidth = 70

var (
	pnmBlack = color.NRGBA{A: 0xff}
	pnmWhite = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

var pnmInfo = info{
	format:      "PNM",
	description: "Portable Network Media",
	extensions:  "pbm,pgm,ppm",
	mime:        "image/x-portable-anymap",
}

// NewPNM returns the Netpbm plugin.  It reads and writes all six variants;
// the registry normally holds it under six names, one per magic number.
//
// Save writes binary samples unless flags carry PNMSaveASCII.  1-bit bitmaps
// become PBM, 8 and 24-bit bitmaps PGM and PPM, UINT16 and RGB16 become
// 16-bit PGM and PPM with a maxval of 65535.
func NewPNM() core.InitFunc {
	return func(p *core.Plugin, _ core.FormatID) {
		pnmInfo.apply(p)
		p.RegExpr = func() string { return "^P[1-6]" }
		p.Validate = validatePNM
		p.Load = loadPNM
		p.Save = savePNM
		p.SupportsExportDepth = depthSet(1, 8, 24)
		p.SupportsExportType = typeSet(core.TypeBitmap, core.TypeUInt16, core.TypeRGB16)
		p.SupportsNoPixels = func() bool { return true }
	}
}

func validatePNM(r io.ReadSeeker) bool {
	var sig [2]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return false
	}
	return sig[0] == 'P' && sig[1] >= '1' && sig[1] <= '6'
}

// ── load ──────────────────────────────────────────────────────────────────────

// pnmReader tokenises a Netpbm header and ASCII raster.
type pnmReader struct {
	r        *bufio.Reader
	comments []string
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

// skip consumes whitespace and comments and returns the first other byte.
func (p *pnmReader) skip() (byte, error) {
	for {
		c, err := p.r.ReadByte()
		if err != nil {
			return 0, err
		}
		switch {
		case c == '#':
			line, err := p.r.ReadString('\n')
			if err != nil && err != io.EOF {
				return 0, err
			}
			line = strings.TrimRight(line, "\r\n")
			p.comments = append(p.comments, commentText(strings.TrimPrefix(line, " ")))
		case isSpace(c):
		default:
			return c, nil
		}
	}
}

// commentText returns a header comment as UTF-8.  Comments that are not
// valid UTF-8 are read as Latin-1.
func commentText(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	if d, err := charmap.ISO8859_1.NewDecoder().String(s); err == nil {
		return d
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}

// int reads one decimal value.  The delimiter that ends it is consumed, so a
// raster that follows the header starts at the next byte.
func (p *pnmReader) int() (int, error) {
	c, err := p.skip()
	if err != nil {
		return 0, err
	}
	if c < '0' || c > '9' {
		return 0, fmt.Errorf("pnm: unexpected character %q", c)
	}
	v := int(c - '0')
	for {
		c, err = p.r.ReadByte()
		if err == io.EOF {
			return v, nil
		}
		if err != nil {
			return 0, err
		}
		if c < '0' || c > '9' {
			if c == '#' {
				p.r.UnreadByte() //nolint:errcheck // the byte was just read
			}
			return v, nil
		}
		v = v*10 + int(c-'0')
		if v > 1<<30 {
			return 0, fmt.Errorf("pnm: value out of range")
		}
	}
}

// bit reads a single PBM sample, which may be packed without separators.
func (p *pnmReader) bit() (uint8, error) {
	c, err := p.skip()
	if err != nil {
		return 0, err
	}
	switch c {
	case '0':
		return 0, nil
	case '1':
		return 1, nil
	}
	return 0, fmt.Errorf("pnm: unexpected character %q in bitmap", c)
}

type pnmHeader struct {
	kind          byte // '1'..'6'
	width, height int
	maxval        int
}

func (h pnmHeader) ascii() bool { return h.kind <= '3' }

func (h pnmHeader) channels() int {
	if h.kind == '3' || h.kind == '6' {
		return 3
	}
	return 1
}

func loadPNM(r io.ReadSeeker, _ any, flags int) (*core.Bitmap, error) {
	const op = "pnm.load"
	p := &pnmReader{r: bufio.NewReader(r)}

	h, err := p.header()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}

	typ, bpp := core.TypeBitmap, 0
	switch {
	case h.kind == '1' || h.kind == '4':
		bpp = 1
	case h.maxval > 255 && h.channels() == 1:
		typ = core.TypeUInt16
	case h.maxval > 255:
		typ = core.TypeRGB16
	case h.channels() == 1:
		bpp = 8
	default:
		bpp = 24
	}

	var bm *core.Bitmap
	if flags&core.LoadNoPixels != 0 {
		bm, err = core.NewHeaderBitmap(typ, h.width, h.height, bpp)
	} else {
		bm, err = core.NewBitmap(typ, h.width, h.height, bpp)
	}
	if err != nil {
		return nil, err
	}
	if bpp == 1 {
		bm.Palette()[0] = pnmBlack
		bm.Palette()[1] = pnmWhite
	}
	if len(p.comments) > 0 {
		bm.SetMetadata(metadata.ModelComments, pnmCommentKey, strings.Join(p.comments, "\n"))
	}
	if !bm.HasPixels() {
		return bm, nil
	}

	if bpp == 1 {
		err = p.readBits(bm, h)
	} else {
		err = p.readSamples(bm, h)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	return bm, nil
}

func (p *pnmReader) header() (pnmHeader, error) {
	var h pnmHeader
	var sig [2]byte
	if _, err := io.ReadFull(p.r, sig[:]); err != nil {
		return h, err
	}
	if sig[0] != 'P' || sig[1] < '1' || sig[1] > '6' {
		return h, fmt.Errorf("pnm: bad magic %q", sig[:])
	}
	h.kind = sig[1]

	var err error
	if h.width, err = p.int(); err != nil {
		return h, err
	}
	if h.height, err = p.int(); err != nil {
		return h, err
	}
	if h.kind == '1' || h.kind == '4' {
		h.maxval = 1
		return h, nil
	}
	if h.maxval, err = p.int(); err != nil {
		return h, err
	}
	if h.maxval < 1 || h.maxval > 65535 {
		return h, fmt.Errorf("pnm: maxval %d out of range", h.maxval)
	}
	return h, nil
}

// readBits fills a 1-bit bitmap.  PBM uses 1 for black, the palette has
// black at index 0, so samples are inverted.
func (p *pnmReader) readBits(bm *core.Bitmap, h pnmHeader) error {
	for y := 0; y < h.height; y++ {
		line := bm.ScanLine(y)
		if !h.ascii() {
			if _, err := io.ReadFull(p.r, line); err != nil {
				return err
			}
			for i := range line {
				line[i] = ^line[i]
			}
			line[len(line)-1] &= padMask(h.width)
			continue
		}
		for x := 0; x < h.width; x++ {
			v, err := p.bit()
			if err != nil {
				return err
			}
			core.SetPaletteIndex(line, x, 1, 1-v)
		}
	}
	return nil
}

// readSamples fills 8, 24-bit, UINT16 and RGB16 bitmaps, scaling each
// sample from maxval to the full range of the destination.
func (p *pnmReader) readSamples(bm *core.Bitmap, h pnmHeader) error {
	wide := h.maxval > 255
	n := h.width * h.channels()
	raw := make([]byte, n)
	if wide {
		raw = make([]byte, 2*n)
	}
	for y := 0; y < h.height; y++ {
		line := bm.ScanLine(y)
		if !h.ascii() {
			if _, err := io.ReadFull(p.r, raw); err != nil {
				return err
			}
		}
		for i := 0; i < n; i++ {
			var v int
			switch {
			case h.ascii():
				var err error
				if v, err = p.int(); err != nil {
					return err
				}
			case wide:
				v = int(binary.BigEndian.Uint16(raw[2*i:]))
			default:
				v = int(raw[i])
			}
			v = min(v, h.maxval)
			if wide {
				binary.LittleEndian.PutUint16(line[2*i:], uint16(65535*v/h.maxval))
			} else {
				line[i] = uint8(255 * v / h.maxval)
			}
		}
	}
	return nil
}

// ── save ──────────────────────────────────────────────────────────────────────

func savePNM(w io.WriteSeeker, bm *core.Bitmap, _ any, flags int) error {
	const op = "pnm.save"
	magic, maxval := 0, 0
	switch {
	case bm.Type() == core.TypeBitmap && bm.BPP() == 1:
		magic = 1
	case bm.Type() == core.TypeBitmap && bm.BPP() == 8:
		magic, maxval = 2, 255
	case bm.Type() == core.TypeBitmap && bm.BPP() == 24:
		magic, maxval = 3, 255
	case bm.Type() == core.TypeUInt16:
		magic, maxval = 2, 65535
	case bm.Type() == core.TypeRGB16:
		magic, maxval = 3, 65535
	default:
		return apperrors.Newf(apperrors.CategoryInput, op, "%w: %d-bit %s", apperrors.ErrUnsupportedImage, bm.BPP(), bm.Type())
	}
	ascii := flags&core.PNMSaveASCII != 0
	if !ascii {
		magic += 3
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "P%d\n", magic)
	if c, ok := bm.Metadata(metadata.ModelComments, pnmCommentKey); ok {
		for _, line := range strings.Split(c, "\n") {
			fmt.Fprintf(bw, "# %s\n", line)
		}
	}
	fmt.Fprintf(bw, "%d %d\n", bm.Width(), bm.Height())
	if maxval > 0 {
		fmt.Fprintf(bw, "%d\n", maxval)
	}

	var err error
	switch {
	case bm.BPP() == 1:
		err = writeBits(bw, bm, ascii)
	case ascii:
		err = writeASCII(bw, bm)
	default:
		err = writeRaw(bw, bm)
	}
	if err == nil {
		err = bw.Flush()
	}
	return apperrors.Wrap(apperrors.CategoryEncode, op, err)
}

// writeBits writes a 1-bit bitmap.  Index 0 is written as black unless the
// palette runs from white to black.
func writeBits(bw *bufio.Writer, bm *core.Bitmap, ascii bool) error {
	invert := bm.ColorType() != core.ColorMinIsWhite
	lw := &lineWriter{w: bw}
	row := make([]byte, bm.Pitch())
	for y := 0; y < bm.Height(); y++ {
		line := bm.ScanLine(y)
		if !ascii {
			for i, b := range line {
				if invert {
					b = ^b
				}
				row[i] = b
			}
			row[len(row)-1] &= padMask(bm.Width())
			if _, err := bw.Write(row); err != nil {
				return err
			}
			continue
		}
		for x := 0; x < bm.Width(); x++ {
			v := core.PaletteIndex(line, x, 1)
			if invert {
				v ^= 1
			}
			lw.token(strconv.Itoa(int(v)))
		}
	}
	return lw.end()
}

// padMask keeps the pixel bits of the last byte of a 1-bit row of width w.
func padMask(w int) byte {
	if w%8 == 0 {
		return 0xff
	}
	return 0xff << uint(8-w%8)
}

func writeASCII(bw *bufio.Writer, bm *core.Bitmap) error {
	lw := &lineWriter{w: bw}
	n := bm.Width() * bm.SamplesPerPixel()
	for y := 0; y < bm.Height(); y++ {
		line := bm.ScanLine(y)
		for i := 0; i < n; i++ {
			if bm.Type() == core.TypeBitmap {
				lw.token(strconv.Itoa(int(line[i])))
			} else {
				lw.token(strconv.Itoa(int(binary.LittleEndian.Uint16(line[2*i:]))))
			}
		}
	}
	return lw.end()
}

func writeRaw(bw *bufio.Writer, bm *core.Bitmap) error {
	n := bm.Width() * bm.SamplesPerPixel()
	for y := 0; y < bm.Height(); y++ {
		line := bm.ScanLine(y)
		if bm.Type() == core.TypeBitmap {
			if _, err := bw.Write(line[:n]); err != nil {
				return err
			}
			continue
		}
		var be [2]byte
		for i := 0; i < n; i++ {
			binary.BigEndian.PutUint16(be[:], binary.LittleEndian.Uint16(line[2*i:]))
			if _, err := bw.Write(be[:]); err != nil {
				return err
			}
		}
	}
	return nil
}

// lineWriter writes space separated tokens, breaking lines before they
// reach pnmLineWidth characters.
type lineWriter struct {
	w   *bufio.Writer
	n   int
	err error
}

func (l *lineWriter) token(s string) {
	if l.err != nil {
		return
	}
	if l.n > 0 && l.n+1+len(s) >= pnmLineWidth {
		l.err = l.w.WriteByte('\n')
		l.n = 0
	}
	if l.n > 0 {
		l.w.WriteByte(' ') //nolint:errcheck // bufio keeps the first error for Flush
		l.n++
	}
	l.w.WriteString(s) //nolint:errcheck // as above
	l.n += len(s)
}

func (l *lineWriter) end() error {
	if l.err == nil && l.n > 0 {
		l.err = l.w.WriteByte('\n')
	}
	return l.err
}
