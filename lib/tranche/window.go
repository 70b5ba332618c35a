// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tranche

import (
	"fmt"
	"io"
	"os"
)

// Span is an absolute, bounds-checked region of the underlying file.
// Spans are only produced by a Window, so every Span lies inside the
// window it came from.
type Span struct {
	// Offset is the absolute offset in the underlying file.
	Offset uint64

	// Length is the number of bytes in the span. Zero only for the
	// whole-window span of an empty window.
	Length uint64
}

// End returns the absolute offset one past the last byte of the span.
func (s Span) End() uint64 {
	return s.Offset + s.Length
}

// Window is the configured [start, start+size) slice of an underlying
// file. It is immutable after construction and is the single
// authority for converting window-relative ranges into absolute spans.
type Window struct {
	reader           io.ReaderAt
	closer           io.Closer
	underlyingLength uint64
	start            uint64
	size             uint64
}

// NewWindow creates a window over reader, whose true length is
// underlyingLength. A size of -1 exposes everything from start to the
// end of the file. The size is truncated so the window never extends
// past the end of the file; a start at or beyond the end yields an
// empty window, which is valid.
//
// The caller retains ownership of reader; Close on the returned
// window does not close it.
func NewWindow(reader io.ReaderAt, underlyingLength, start, size int64) (*Window, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if underlyingLength < 0 {
		return nil, fmt.Errorf("underlying length %d is negative", underlyingLength)
	}
	if start < 0 {
		return nil, fmt.Errorf("window start %d is negative", start)
	}
	if size < ToEnd {
		return nil, fmt.Errorf("window size %d is negative", size)
	}

	window := &Window{
		reader:           reader,
		underlyingLength: uint64(underlyingLength),
		start:            uint64(start),
	}
	if start < underlyingLength {
		remaining := uint64(underlyingLength - start)
		window.size = remaining
		if size != ToEnd && uint64(size) < remaining {
			window.size = uint64(size)
		}
	}
	return window, nil
}

// OpenWindow opens path read-only and creates a window over it. The
// file's length is queried once here. The returned window owns the
// file; call Close when the mount is torn down.
func OpenWindow(path string, start, size int64) (*Window, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	length, err := fileLength(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("measuring %s: %w", path, err)
	}

	window, err := NewWindow(file, length, start, size)
	if err != nil {
		file.Close()
		return nil, err
	}
	window.closer = file
	return window, nil
}

// fileLength returns the byte length of file. Regular files report it
// through stat; block devices report zero there, so seek to the end
// instead.
func fileLength(file *os.File) (int64, error) {
	info, err := file.Stat()
	if err != nil {
		return 0, err
	}
	if info.Mode().IsRegular() {
		return info.Size(), nil
	}
	return file.Seek(0, io.SeekEnd)
}

// Start returns the absolute offset of the first byte of the window.
func (w *Window) Start() uint64 { return w.start }

// Size returns the effective (possibly truncated) window size.
func (w *Window) Size() uint64 { return w.size }

// UnderlyingLength returns the length of the underlying file as
// measured at construction.
func (w *Window) UnderlyingLength() uint64 { return w.underlyingLength }

// Whole returns the span covering the entire window. Its length is
// zero for an empty window.
func (w *Window) Whole() Span {
	return Span{Offset: w.start, Length: w.size}
}

// Clamp intersects a window-relative range with the window. ToEnd
// requests everything remaining. The result is false when the range
// begins before the window, begins at or past its end, or would
// otherwise produce a zero or negative length.
func (w *Window) Clamp(r Range) (Span, bool) {
	if r.Begin < 0 {
		return Span{}, false
	}
	if r.Length == 0 || r.Length < ToEnd {
		return Span{}, false
	}

	begin := uint64(r.Begin)
	if begin > w.size {
		return Span{}, false
	}

	remaining := w.size - begin
	length := remaining
	if r.Bounded() && uint64(r.Length) < remaining {
		length = uint64(r.Length)
	}
	if length == 0 {
		return Span{}, false
	}

	return Span{Offset: w.start + begin, Length: length}, true
}

// readAt performs a positioned read on the underlying file.
func (w *Window) readAt(dest []byte, offset uint64) (int, error) {
	return w.reader.ReadAt(dest, int64(offset))
}

// Close releases the underlying file if the window opened it.
func (w *Window) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}
