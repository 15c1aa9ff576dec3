package toolkit_test

import (
	"errors"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Skryldev/imagecore/core"
	apperrors "github.com/Skryldev/imagecore/errors"
	"github.com/Skryldev/imagecore/toolkit"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
)

func TestApplyColorMapping24(t *testing.T) {
	bm := newBitmap(t, core.TypeBitmap, 3, 1, 24)
	copy(bm.ScanLine(0), []byte{255, 0, 0, 0, 0, 255, 0, 255, 0})

	n, err := toolkit.ApplyColorMapping(bm, []color.NRGBA{red}, []color.NRGBA{green}, true, false)
	if err != nil {
		t.Fatalf("ApplyColorMapping: %v", err)
	}
	if n != 1 {
		t.Errorf("changes = %d, want 1", n)
	}
	if diff := cmp.Diff([]byte{0, 255, 0, 0, 0, 255, 0, 255, 0}, bm.ScanLine(0)); diff != "" {
		t.Errorf("pixels mismatch (-want +got):\n%s", diff)
	}
}

func TestSwapColors(t *testing.T) {
	bm := newBitmap(t, core.TypeBitmap, 3, 1, 24)
	copy(bm.ScanLine(0), []byte{255, 0, 0, 0, 0, 255, 0, 255, 0})

	n, err := toolkit.SwapColors(bm, red, blue, true)
	if err != nil {
		t.Fatalf("SwapColors: %v", err)
	}
	if n != 2 {
		t.Errorf("changes = %d, want 2", n)
	}
	if diff := cmp.Diff([]byte{0, 0, 255, 255, 0, 0, 0, 255, 0}, bm.ScanLine(0)); diff != "" {
		t.Errorf("pixels mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyColorMappingAlpha(t *testing.T) {
	src := []color.NRGBA{{R: 255, A: 128}}
	dst := []color.NRGBA{{B: 255, A: 64}}

	t.Run("compared", func(t *testing.T) {
		bm := newBitmap(t, core.TypeBitmap, 2, 1, 32)
		copy(bm.ScanLine(0), []byte{255, 0, 0, 128, 255, 0, 0, 255})
		n, err := toolkit.ApplyColorMapping(bm, src, dst, false, false)
		if err != nil {
			t.Fatalf("ApplyColorMapping: %v", err)
		}
		if n != 1 {
			t.Errorf("changes = %d, want 1", n)
		}
		if diff := cmp.Diff([]byte{0, 0, 255, 64, 255, 0, 0, 255}, bm.ScanLine(0)); diff != "" {
			t.Errorf("pixels mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("ignored", func(t *testing.T) {
		bm := newBitmap(t, core.TypeBitmap, 2, 1, 32)
		copy(bm.ScanLine(0), []byte{255, 0, 0, 128, 255, 0, 0, 255})
		n, err := toolkit.ApplyColorMapping(bm, src, dst, true, false)
		if err != nil {
			t.Fatalf("ApplyColorMapping: %v", err)
		}
		if n != 2 {
			t.Errorf("changes = %d, want 2", n)
		}
		if diff := cmp.Diff([]byte{0, 0, 255, 128, 0, 0, 255, 255}, bm.ScanLine(0)); diff != "" {
			t.Errorf("pixels mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestApplyColorMappingPalette(t *testing.T) {
	bm := newBitmap(t, core.TypeBitmap, 4, 1, 8)
	copy(bm.ScanLine(0), []byte{10, 10, 20, 30})

	grey10 := color.NRGBA{R: 10, G: 10, B: 10, A: 255}
	n, err := toolkit.ApplyColorMapping(bm, []color.NRGBA{grey10}, []color.NRGBA{red}, true, false)
	if err != nil {
		t.Fatalf("ApplyColorMapping: %v", err)
	}
	// Palette entries are counted, not pixels.
	if n != 1 {
		t.Errorf("changes = %d, want 1", n)
	}
	if got := bm.Palette()[10]; got != red {
		t.Errorf("palette[10] = %v, want %v", got, red)
	}
	if diff := cmp.Diff([]byte{10, 10, 20, 30}, bm.ScanLine(0)); diff != "" {
		t.Errorf("pixels must not change (-want +got):\n%s", diff)
	}
}

func TestApplyColorMappingErrors(t *testing.T) {
	if _, err := toolkit.ApplyColorMapping(newBitmap(t, core.TypeRGB16, 1, 1, 0), []color.NRGBA{red}, []color.NRGBA{blue}, true, false); !errors.Is(err, apperrors.ErrUnsupportedImage) {
		t.Errorf("RGB16: got %v, want ErrUnsupportedImage", err)
	}
	header, err := core.NewHeaderBitmap(core.TypeBitmap, 1, 1, 24)
	if err != nil {
		t.Fatalf("NewHeaderBitmap: %v", err)
	}
	if _, err := toolkit.ApplyColorMapping(header, []color.NRGBA{red}, []color.NRGBA{blue}, true, false); !errors.Is(err, apperrors.ErrNoPixels) {
		t.Errorf("header only: got %v, want ErrNoPixels", err)
	}
	n, err := toolkit.ApplyColorMapping(newBitmap(t, core.TypeBitmap, 1, 1, 24), nil, []color.NRGBA{blue}, true, false)
	if err != nil || n != 0 {
		t.Errorf("empty mapping: got %d, %v; want 0, nil", n, err)
	}
}

func TestApplyPaletteIndexMapping4(t *testing.T) {
	bm := newBitmap(t, core.TypeBitmap, 3, 2, 4)
	// Pixels 1 2 1 on both rows; the low nibble of the last byte is padding.
	copy(bm.ScanLine(0), []byte{0x12, 0x10})
	copy(bm.ScanLine(1), []byte{0x12, 0x10})

	n, err := toolkit.ApplyPaletteIndexMapping(bm, []uint8{1}, []uint8{5}, false)
	if err != nil {
		t.Fatalf("ApplyPaletteIndexMapping: %v", err)
	}
	if n != 4 {
		t.Errorf("changes = %d, want 4", n)
	}
	for y := 0; y < 2; y++ {
		if diff := cmp.Diff([]byte{0x52, 0x50}, bm.ScanLine(y)); diff != "" {
			t.Errorf("row %d mismatch (-want +got):\n%s", y, diff)
		}
	}
}

func TestSwapPaletteIndices(t *testing.T) {
	bm := newBitmap(t, core.TypeBitmap, 4, 1, 8)
	copy(bm.ScanLine(0), []byte{1, 2, 3, 1})

	n, err := toolkit.SwapPaletteIndices(bm, 1, 3)
	if err != nil {
		t.Fatalf("SwapPaletteIndices: %v", err)
	}
	if n != 3 {
		t.Errorf("changes = %d, want 3", n)
	}
	if diff := cmp.Diff([]byte{3, 2, 1, 3}, bm.ScanLine(0)); diff != "" {
		t.Errorf("pixels mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyPaletteIndexMapping1Bit(t *testing.T) {
	bm := newBitmap(t, core.TypeBitmap, 8, 1, 1)
	copy(bm.ScanLine(0), []byte{0xAA})
	n, err := toolkit.SwapPaletteIndices(bm, 0, 1)
	if err != nil || n != 0 {
		t.Errorf("1-bit: got %d, %v; want 0, nil", n, err)
	}
	if got := bm.ScanLine(0)[0]; got != 0xAA {
		t.Errorf("pixels changed: %#x", got)
	}
}
