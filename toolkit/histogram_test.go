package toolkit_test

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Skryldev/imagecore/core"
	apperrors "github.com/Skryldev/imagecore/errors"
	"github.com/Skryldev/imagecore/toolkit"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

func newBitmap(t testing.TB, typ core.ImageType, w, h, bpp int) *core.Bitmap {
	t.Helper()
	bm, err := core.NewBitmap(typ, w, h, bpp)
	if err != nil {
		t.Fatalf("NewBitmap(%s, %d, %d, %d): %v", typ, w, h, bpp, err)
	}
	return bm
}

// setSamples writes gen(k) into the k-th sample of bm in storage order,
// encoded the way the image type stores it.
func setSamples(t testing.TB, bm *core.Bitmap, gen func(k int) float64) {
	t.Helper()
	spp := bm.SamplesPerPixel()
	size := bm.BPP() / 8 / spp
	k := 0
	for y := 0; y < bm.Height(); y++ {
		line := bm.ScanLine(y)
		for s := 0; s < bm.Width()*spp; s++ {
			v := gen(k)
			k++
			p := line[s*size:]
			switch bm.Type() {
			case core.TypeBitmap:
				p[0] = uint8(v)
			case core.TypeUInt16, core.TypeRGB16, core.TypeRGBA16:
				binary.LittleEndian.PutUint16(p, uint16(v))
			case core.TypeInt16:
				binary.LittleEndian.PutUint16(p, uint16(int16(v)))
			case core.TypeUInt32, core.TypeRGB32, core.TypeRGBA32:
				binary.LittleEndian.PutUint32(p, uint32(v))
			case core.TypeInt32:
				binary.LittleEndian.PutUint32(p, uint32(int32(v)))
			case core.TypeFloat, core.TypeRGBF, core.TypeRGBAF, core.TypeComplexF:
				binary.LittleEndian.PutUint32(p, math.Float32bits(float32(v)))
			case core.TypeDouble, core.TypeComplex:
				binary.LittleEndian.PutUint64(p, math.Float64bits(v))
			default:
				t.Fatalf("setSamples: unsupported type %s", bm.Type())
			}
		}
	}
}

func channel(bins int) *toolkit.HistogramChannel {
	return &toolkit.HistogramChannel{Counts: make([]uint32, bins), Stride: 1}
}

func sum(c *toolkit.HistogramChannel, bins int) int {
	n := 0
	for i := 0; i < bins; i++ {
		n += int(c.Counts[i*c.Stride])
	}
	return n
}

func unsignedGen(k int) float64 { return float64((k * 37) % 251) }
func signedGen(k int) float64   { return float64((k*37)%251 - 125) }
func floatGen(k int) float64    { return math.Sin(float64(k)) * 10 }

// ── MakeHistogram ─────────────────────────────────────────────────────────────

func TestMakeHistogramMassConservation(t *testing.T) {
	const w, h = 7, 5
	tests := []struct {
		typ      core.ImageType
		bpp      int
		gen      func(int) float64
		channels int // Red, Green, Blue, Luma in that order
	}{
		{core.TypeBitmap, 8, unsignedGen, 1},
		{core.TypeBitmap, 24, unsignedGen, 4},
		{core.TypeBitmap, 32, unsignedGen, 4},
		{core.TypeUInt16, 0, unsignedGen, 1},
		{core.TypeInt16, 0, signedGen, 1},
		{core.TypeUInt32, 0, unsignedGen, 1},
		{core.TypeInt32, 0, signedGen, 1},
		{core.TypeFloat, 0, floatGen, 1},
		{core.TypeDouble, 0, floatGen, 1},
		{core.TypeComplex, 0, floatGen, 3},
		{core.TypeComplexF, 0, floatGen, 3},
		{core.TypeRGB16, 0, unsignedGen, 4},
		{core.TypeRGBA16, 0, unsignedGen, 4},
		{core.TypeRGB32, 0, unsignedGen, 4},
		{core.TypeRGBA32, 0, unsignedGen, 4},
		{core.TypeRGBF, 0, floatGen, 4},
		{core.TypeRGBAF, 0, floatGen, 4},
	}
	for _, bins := range []int{1, 3, 64, 256} {
		for _, tt := range tests {
			bm := newBitmap(t, tt.typ, w, h, tt.bpp)
			setSamples(t, bm, tt.gen)

			chans := make([]*toolkit.HistogramChannel, 4)
			for i := 0; i < tt.channels; i++ {
				chans[i] = channel(bins)
			}
			req := toolkit.HistogramRequest{Bins: bins, Red: chans[0], Green: chans[1], Blue: chans[2], Luma: chans[3]}
			if _, err := toolkit.MakeHistogram(bm, req); err != nil {
				t.Fatalf("%s/%d bins: %v", tt.typ, bins, err)
			}
			for i := 0; i < tt.channels; i++ {
				if got := sum(chans[i], bins); got != w*h {
					t.Errorf("%s/%d bins channel %d: sum %d, want %d", tt.typ, bins, i, got, w*h)
				}
			}
		}
	}
}

func TestMakeHistogramExactGrey(t *testing.T) {
	bm := newBitmap(t, core.TypeBitmap, 16, 17, 8)
	// rows 0..15 hold every value once, row 16 repeats 200.
	for y := 0; y < 17; y++ {
		line := bm.ScanLine(y)
		for x := range line {
			if y == 16 {
				line[x] = 200
			} else {
				line[x] = uint8(y*16 + x)
			}
		}
	}
	red := channel(256)
	rng, err := toolkit.MakeHistogram(bm, toolkit.HistogramRequest{Bins: 256, Red: red})
	if err != nil {
		t.Fatalf("MakeHistogram: %v", err)
	}
	for i, n := range red.Counts {
		want := uint32(1)
		if i == 200 {
			want = 17
		}
		if n != want {
			t.Errorf("bin %d: got %d, want %d", i, n, want)
		}
	}
	if diff := cmp.Diff(toolkit.Range{Min: 0, Max: 255}, rng); diff != "" {
		t.Errorf("range mismatch (-want +got):\n%s", diff)
	}
}

func TestMakeHistogramDegenerateFloat(t *testing.T) {
	bm := newBitmap(t, core.TypeFloat, 4, 3, 0)
	setSamples(t, bm, func(int) float64 { return 2.5 })

	red := channel(8)
	rng, err := toolkit.MakeHistogram(bm, toolkit.HistogramRequest{Bins: 8, Red: red})
	if err != nil {
		t.Fatalf("MakeHistogram: %v", err)
	}
	want := []uint32{12, 0, 0, 0, 0, 0, 0, 0}
	if diff := cmp.Diff(want, red.Counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	if rng.Min != 2.5 || rng.Max != 2.5 {
		t.Errorf("range = %+v, want [2.5, 2.5]", rng)
	}
}

func TestMakeHistogramFloatSpread(t *testing.T) {
	bm := newBitmap(t, core.TypeDouble, 4, 1, 0)
	values := []float64{-1, 0, 0.5, 1}
	setSamples(t, bm, func(k int) float64 { return values[k] })

	red := channel(4)
	rng, err := toolkit.MakeHistogram(bm, toolkit.HistogramRequest{Bins: 4, Red: red})
	if err != nil {
		t.Fatalf("MakeHistogram: %v", err)
	}
	// (v+1)*4/2: -1→0, 0→2, 0.5→3, 1→4 clamped to 3.
	if diff := cmp.Diff([]uint32{1, 0, 1, 2}, red.Counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(toolkit.Range{Min: -1, Max: 1}, rng); diff != "" {
		t.Errorf("range mismatch (-want +got):\n%s", diff)
	}
}

func TestMakeHistogramRGBAndLuma(t *testing.T) {
	bm := newBitmap(t, core.TypeBitmap, 4, 1, 24)
	copy(bm.ScanLine(0), []byte{
		255, 0, 0,
		255, 0, 0,
		255, 255, 255,
		0, 0, 0,
	})
	red, green, luma := channel(256), channel(256), channel(256)
	if _, err := toolkit.MakeHistogram(bm, toolkit.HistogramRequest{Bins: 256, Red: red, Green: green, Luma: luma}); err != nil {
		t.Fatalf("MakeHistogram: %v", err)
	}
	checks := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"red[255]", red.Counts[255], 3},
		{"red[0]", red.Counts[0], 1},
		{"green[0]", green.Counts[0], 3},
		{"green[255]", green.Counts[255], 1},
		{"luma[54]", luma.Counts[54], 2},
		{"luma[255]", luma.Counts[255], 1},
		{"luma[0]", luma.Counts[0], 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %d, want %d", c.name, c.got, c.want)
		}
	}
}

func TestMakeHistogramStrideAndZeroing(t *testing.T) {
	bm := newBitmap(t, core.TypeBitmap, 2, 2, 8)
	copy(bm.ScanLine(0), []byte{0, 255})
	copy(bm.ScanLine(1), []byte{255, 255})

	// Interleave two histograms of 2 bins; only the even slots belong to red.
	shared := []uint32{9, 7, 9, 7}
	red := &toolkit.HistogramChannel{Counts: shared, Stride: 2}
	if _, err := toolkit.MakeHistogram(bm, toolkit.HistogramRequest{Bins: 2, Red: red}); err != nil {
		t.Fatalf("MakeHistogram: %v", err)
	}
	if diff := cmp.Diff([]uint32{1, 7, 3, 7}, shared); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestMakeHistogramUnsupportedChannelStaysZero(t *testing.T) {
	bm := newBitmap(t, core.TypeUInt16, 3, 3, 0)
	setSamples(t, bm, unsignedGen)

	red, luma := channel(16), channel(16)
	luma.Counts[3] = 42
	if _, err := toolkit.MakeHistogram(bm, toolkit.HistogramRequest{Bins: 16, Red: red, Luma: luma}); err != nil {
		t.Fatalf("MakeHistogram: %v", err)
	}
	if got := sum(red, 16); got != 9 {
		t.Errorf("red sum = %d, want 9", got)
	}
	if diff := cmp.Diff(make([]uint32, 16), luma.Counts); diff != "" {
		t.Errorf("luma should be zeroed (-want +got):\n%s", diff)
	}
}

func TestMakeHistogramRanges(t *testing.T) {
	tests := []struct {
		typ  core.ImageType
		bpp  int
		want toolkit.Range
	}{
		{core.TypeBitmap, 32, toolkit.Range{Min: 0, Max: 255}},
		{core.TypeUInt16, 0, toolkit.Range{Min: 0, Max: 65535}},
		{core.TypeInt16, 0, toolkit.Range{Min: -32768, Max: 32767}},
		{core.TypeUInt32, 0, toolkit.Range{Min: 0, Max: math.MaxUint32}},
		{core.TypeInt32, 0, toolkit.Range{Min: math.MinInt32, Max: math.MaxInt32}},
		{core.TypeRGBA16, 0, toolkit.Range{Min: 0, Max: 65535}},
	}
	for _, tt := range tests {
		bm := newBitmap(t, tt.typ, 2, 2, tt.bpp)
		got, err := toolkit.MakeHistogram(bm, toolkit.HistogramRequest{Bins: 4, Red: channel(4)})
		if err != nil {
			t.Fatalf("%s: %v", tt.typ, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("%s range mismatch (-want +got):\n%s", tt.typ, diff)
		}
	}
}

func TestMakeHistogramComplex(t *testing.T) {
	bm := newBitmap(t, core.TypeComplex, 2, 1, 0)
	// (3, 4) and (0, 0): real spans [0, 3], imaginary [0, 4].
	values := []float64{3, 4, 0, 0}
	setSamples(t, bm, func(k int) float64 { return values[k] })

	re, im, mag := channel(2), channel(2), channel(2)
	rng, err := toolkit.MakeHistogram(bm, toolkit.HistogramRequest{Bins: 2, Red: re, Green: im, Blue: mag})
	if err != nil {
		t.Fatalf("MakeHistogram: %v", err)
	}
	if diff := cmp.Diff(toolkit.Range{Min: 0, Max: 4}, rng); diff != "" {
		t.Errorf("range mismatch (-want +got):\n%s", diff)
	}
	// 3*2/4 = 1.5 → 1; 4 → 1; magnitude 5 clamps to 1.
	for name, c := range map[string]*toolkit.HistogramChannel{"real": re, "imag": im, "magnitude": mag} {
		if diff := cmp.Diff([]uint32{1, 1}, c.Counts); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestMakeHistogramErrors(t *testing.T) {
	header, err := core.NewHeaderBitmap(core.TypeBitmap, 4, 4, 8)
	if err != nil {
		t.Fatalf("NewHeaderBitmap: %v", err)
	}
	grey := newBitmap(t, core.TypeBitmap, 4, 4, 8)

	tests := []struct {
		name string
		bm   *core.Bitmap
		req  toolkit.HistogramRequest
		want error
	}{
		{"no pixels", header, toolkit.HistogramRequest{Bins: 4, Red: channel(4)}, apperrors.ErrNoPixels},
		{"nil bitmap", nil, toolkit.HistogramRequest{Bins: 4, Red: channel(4)}, apperrors.ErrNoPixels},
		{"zero bins", grey, toolkit.HistogramRequest{Bins: 0, Red: channel(4)}, apperrors.ErrInvalidBins},
		{"zero stride", grey, toolkit.HistogramRequest{Bins: 4, Red: &toolkit.HistogramChannel{Counts: make([]uint32, 4)}}, apperrors.ErrInvalidStride},
		{"short buffer", grey, toolkit.HistogramRequest{Bins: 4, Red: &toolkit.HistogramChannel{Counts: make([]uint32, 4), Stride: 2}}, apperrors.ErrInvalidStride},
	}
	for _, tt := range tests {
		_, err := toolkit.MakeHistogram(tt.bm, tt.req)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
		}
		if !apperrors.IsCategory(err, apperrors.CategoryInput) {
			t.Errorf("%s: category = %q, want input", tt.name, apperrors.CategoryOf(err))
		}
	}
}

func TestMakeHistogramNoBuffers(t *testing.T) {
	bm := newBitmap(t, core.TypeBitmap, 4, 4, 4)
	rng, err := toolkit.MakeHistogram(bm, toolkit.HistogramRequest{Bins: 16})
	if err != nil {
		t.Fatalf("expected success without buffers, got %v", err)
	}
	if rng != (toolkit.Range{}) {
		t.Errorf("range = %+v, want zero", rng)
	}
}

func TestMakeHistogramUnsupportedTypeZeroesBuffers(t *testing.T) {
	bm := newBitmap(t, core.TypeBitmap, 4, 4, 4)
	red := channel(4)
	for i := range red.Counts {
		red.Counts[i] = 9
	}
	_, err := toolkit.MakeHistogram(bm, toolkit.HistogramRequest{Bins: 4, Red: red})
	if !errors.Is(err, apperrors.ErrUnsupportedImage) {
		t.Fatalf("got %v, want ErrUnsupportedImage", err)
	}
	if diff := cmp.Diff(make([]uint32, 4), red.Counts); diff != "" {
		t.Errorf("buffer not zeroed (-want +got):\n%s", diff)
	}
}

// ── FindMinMax / GetHistogram ─────────────────────────────────────────────────

func TestFindMinMax(t *testing.T) {
	bm := newBitmap(t, core.TypeRGBAF, 2, 1, 0)
	values := []float64{1, -2, 3, 0.5, 4, 5, math.NaN(), 1}
	setSamples(t, bm, func(k int) float64 { return values[k] })

	got, err := toolkit.FindMinMax(bm)
	if err != nil {
		t.Fatalf("FindMinMax: %v", err)
	}
	want := []toolkit.Range{{Min: 1, Max: 4}, {Min: -2, Max: 5}, {Min: 3, Max: 3}, {Min: 0.5, Max: 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ranges mismatch (-want +got):\n%s", diff)
	}
}

func TestMakeHistogramInfinities(t *testing.T) {
	bm := newBitmap(t, core.TypeFloat, 5, 1, 0)
	values := []float64{0, 0.5, 1, math.Inf(1), math.Inf(-1)}
	setSamples(t, bm, func(k int) float64 { return values[k] })

	red := channel(4)
	rng, err := toolkit.MakeHistogram(bm, toolkit.HistogramRequest{Bins: 4, Red: red})
	if err != nil {
		t.Fatalf("MakeHistogram: %v", err)
	}
	if want := (toolkit.Range{Min: 0, Max: 1}); rng != want {
		t.Errorf("range: got %+v, want %+v", rng, want)
	}
	if diff := cmp.Diff([]uint32{2, 0, 1, 2}, red.Counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}

	got, err := toolkit.FindMinMax(bm)
	if err != nil {
		t.Fatalf("FindMinMax: %v", err)
	}
	if diff := cmp.Diff([]toolkit.Range{{Min: 0, Max: 1}}, got); diff != "" {
		t.Errorf("ranges mismatch (-want +got):\n%s", diff)
	}
}

func TestGetHistogram(t *testing.T) {
	bm := newBitmap(t, core.TypeBitmap, 3, 1, 32)
	copy(bm.ScanLine(0), []byte{
		10, 20, 30, 255,
		10, 200, 0, 0,
		255, 255, 255, 255,
	})

	red, err := toolkit.GetHistogram(bm, toolkit.ChannelRed)
	if err != nil {
		t.Fatalf("GetHistogram red: %v", err)
	}
	if red[10] != 2 || red[255] != 1 {
		t.Errorf("red: got [10]=%d [255]=%d, want 2 and 1", red[10], red[255])
	}

	grey, err := toolkit.GetHistogram(bm, toolkit.ChannelBlack)
	if err != nil {
		t.Fatalf("GetHistogram black: %v", err)
	}
	// 0.2126*10 + 0.7152*20 + 0.0722*30 = 18.596, rounded to 19.
	if grey[19] != 1 || grey[255] != 1 {
		t.Errorf("grey: got [19]=%d [255]=%d, want 1 and 1", grey[19], grey[255])
	}

	if _, err := toolkit.GetHistogram(bm, toolkit.ChannelAlpha); !errors.Is(err, apperrors.ErrInvalidChannel) {
		t.Errorf("alpha: got %v, want ErrInvalidChannel", err)
	}
}

func BenchmarkMakeHistogram(b *testing.B) {
	bm := newBitmap(b, core.TypeBitmap, 512, 512, 24)
	setSamples(b, bm, unsignedGen)
	req := toolkit.HistogramRequest{Bins: 256, Red: channel(256), Green: channel(256), Blue: channel(256), Luma: channel(256)}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := toolkit.MakeHistogram(bm, req); err != nil {
			b.Fatal(err)
		}
	}
}
