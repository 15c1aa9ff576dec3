package utils_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Skryldev/imagecore/utils"
)

func TestScaleDimensions(t *testing.T) {
	tests := []struct {
		srcW, srcH, tw, th int
		wantW, wantH       int
	}{
		{800, 600, 0, 0, 800, 600},
		{800, 600, 400, 0, 400, 300},
		{800, 600, 0, 150, 200, 150},
		{800, 600, 10, 20, 10, 20},
	}
	for _, tc := range tests {
		w, h := utils.ScaleDimensions(tc.srcW, tc.srcH, tc.tw, tc.th)
		if w != tc.wantW || h != tc.wantH {
			t.Errorf("ScaleDimensions(%d, %d, %d, %d): got %dx%d, want %dx%d",
				tc.srcW, tc.srcH, tc.tw, tc.th, w, h, tc.wantW, tc.wantH)
		}
	}
}

func TestMemoryStream(t *testing.T) {
	ms := utils.NewMemoryStream(nil)
	if _, err := ms.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if _, err := ms.Seek(8, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	ms.Write([]byte("!"))
	if diff := cmp.Diff([]byte("hello\x00\x00\x00!"), ms.Bytes()); diff != "" {
		t.Errorf("content (-want +got):\n%s", diff)
	}

	if pos, _ := ms.Seek(-4, io.SeekEnd); pos != 5 {
		t.Errorf("SeekEnd: got %d, want 5", pos)
	}
	ms.Write([]byte("XY"))
	if pos, _ := ms.Seek(0, io.SeekCurrent); pos != 7 {
		t.Errorf("SeekCurrent: got %d, want 7", pos)
	}
	ms.Seek(0, io.SeekStart)
	got, err := io.ReadAll(ms)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "helloXY\x00!" {
		t.Errorf("got %q", got)
	}
	if _, err := ms.Seek(-1, io.SeekStart); err == nil {
		t.Error("negative seek accepted")
	}
	if _, err := ms.Seek(0, 42); err == nil {
		t.Error("bad whence accepted")
	}
}

func TestLimitedReader(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		max     int64
		wantErr error
	}{
		{"under", "abc", 4, nil},
		{"exact", "abcd", 4, nil},
		{"over", "abcde", 4, utils.ErrTooLarge},
		{"unlimited", strings.Repeat("x", 100), 0, nil},
	}
	for _, tc := range tests {
		r := &utils.LimitedReader{R: strings.NewReader(tc.input), Max: tc.max}
		got, err := io.ReadAll(r)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.wantErr)
		}
		if tc.wantErr == nil && string(got) != tc.input {
			t.Errorf("%s: got %q", tc.name, got)
		}
	}
}

func TestDrainReader(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 50)
	buf, err := utils.DrainReader(context.Background(), bytes.NewReader(data), 7)
	if err != nil {
		t.Fatal(err)
	}
	got := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)
	if !bytes.Equal(got, data) {
		t.Errorf("got %d bytes, want %d", len(got), len(data))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := utils.DrainReader(ctx, bytes.NewReader(data), 0); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: got %v", err)
	}
}
