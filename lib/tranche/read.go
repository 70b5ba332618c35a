// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tranche

import (
	"errors"
	"fmt"
	"io"
	"syscall"
)

// Read and access errors.
var (
	// ErrReadFault is returned for a read that starts at or beyond
	// the end of the entity. This is a fault rather than a zero-byte
	// read.
	ErrReadFault = errors.New("read offset at or beyond end of file")

	// ErrNotReadable is returned for reads of the root or of a path
	// that did not resolve.
	ErrNotReadable = errors.New("not a readable file")

	// ErrAccess is returned for any open that asks for more than
	// read-only access.
	ErrAccess = errors.New("only read-only access is permitted")
)

// CheckAccess rejects open flags whose access mode is anything other
// than O_RDONLY.
func CheckAccess(flags uint32) error {
	if flags&syscall.O_ACCMODE != syscall.O_RDONLY {
		return ErrAccess
	}
	return nil
}

// Reader serves reads of resolved entities from the window's
// underlying file. Every read is a single positioned read bounded by
// the entity's span; there is no buffering and no state between calls.
type Reader struct {
	window *Window
}

// NewReader creates a Reader over window.
func NewReader(window *Window) *Reader {
	return &Reader{window: window}
}

// ReadAt reads up to len(dest) bytes of entity starting at offset
// (relative to the entity, as the kernel sees the file). The read is
// truncated at the end of the entity's span. A read starting at or
// beyond the span's end fails with ErrReadFault. Reads of the control
// file always return zero bytes.
func (r *Reader) ReadAt(entity Entity, dest []byte, offset int64) (int, error) {
	if entity.Kind == KindControl {
		return 0, nil
	}
	if !entity.Readable() {
		return 0, fmt.Errorf("reading %s entity: %w", entity.Kind, ErrNotReadable)
	}

	span := entity.Span
	if offset < 0 || uint64(offset) >= span.Length {
		return 0, fmt.Errorf("reading %q at offset %d of %d: %w", entity.Name, offset, span.Length, ErrReadFault)
	}

	want := span.Length - uint64(offset)
	if uint64(len(dest)) < want {
		want = uint64(len(dest))
	}
	if want == 0 {
		return 0, nil
	}

	count, err := r.window.readAt(dest[:want], span.Offset+uint64(offset))
	if err != nil && !errors.Is(err, io.EOF) {
		return count, fmt.Errorf("reading %d bytes at absolute offset %d: %w", want, span.Offset+uint64(offset), err)
	}
	return count, nil
}
