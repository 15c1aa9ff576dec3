package utils

import (
	"errors"
	"io"
)

// ScaleDimensions computes output (w, h) preserving aspect ratio.
// Pass 0 for either axis to calculate it from the other.
func ScaleDimensions(srcW, srcH, targetW, targetH int) (int, int) {
	if targetW == 0 && targetH == 0 {
		return srcW, srcH
	}
	if targetW == 0 {
		ratio := float64(targetH) / float64(srcH)
		return int(float64(srcW) * ratio), targetH
	}
	if targetH == 0 {
		ratio := float64(targetW) / float64(srcW)
		return targetW, int(float64(srcH) * ratio)
	}
	return targetW, targetH
}

// CloneBytes returns a copy of b (safe for use after the source buffer is released).
func CloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// MemoryStream is an in-memory io.ReadWriteSeeker.  Writes past the end grow
// the buffer; seeking past the end and writing zero-fills the gap.
type MemoryStream struct {
	buf []byte
	pos int64
}

// NewMemoryStream returns a stream positioned at 0 over b.  The stream takes
// ownership of b.
func NewMemoryStream(b []byte) *MemoryStream { return &MemoryStream{buf: b} }

// Bytes returns the full content regardless of the current position.
func (m *MemoryStream) Bytes() []byte { return m.buf }

// Len returns the content length.
func (m *MemoryStream) Len() int { return len(m.buf) }

func (m *MemoryStream) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *MemoryStream) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		if end > int64(cap(m.buf)) {
			grown := make([]byte, end, end*2)
			copy(grown, m.buf)
			m.buf = grown
		} else {
			tail := m.buf[len(m.buf):end]
			clear(tail)
			m.buf = m.buf[:end]
		}
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *MemoryStream) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = m.pos + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("memory stream: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("memory stream: negative position")
	}
	m.pos = abs
	return abs, nil
}
