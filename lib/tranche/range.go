// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tranche

import (
	"errors"
	"fmt"
	"strconv"
)

// ToEnd is the Range.Length sentinel meaning "everything from Begin to
// the end of the window".
const ToEnd int64 = -1

// Range grammar errors. ParseRange wraps these with the offending
// segment; match them with errors.Is.
var (
	ErrInvalidCharacter     = errors.New("invalid character")
	ErrMultipleSeparators   = errors.New("more than one separator")
	ErrOverflow             = errors.New("offset overflows int64")
	ErrZeroOrNegativeLength = errors.New("zero or negative length")
)

// Range is a window-relative byte range parsed from a path segment.
// It knows nothing about the window it will be applied to; use
// Window.Clamp to turn it into an absolute Span.
type Range struct {
	// Begin is the offset from the start of the window.
	Begin int64

	// Length is the number of bytes requested, or ToEnd.
	Length int64
}

// Bounded reports whether the range has an explicit length.
func (r Range) Bounded() bool {
	return r.Length != ToEnd
}

// String renders the range in its canonical "<begin>+<length>" or
// "<begin>+" form. ParseRange(r.String()) returns r.
func (r Range) String() string {
	begin := strconv.FormatInt(r.Begin, 10)
	if !r.Bounded() {
		return begin + "+"
	}
	return begin + "+" + strconv.FormatInt(r.Length, 10)
}

// isSeparator reports whether c splits a segment into head and tail.
func isSeparator(c byte) bool {
	return c == '+' || c == ':' || c == '-'
}

// ParseRange parses a range segment (a path name with the leading
// slash removed). The segment consists of decimal digits and at most
// one separator:
//
//	"5"     begin 5, to end
//	"5+10"  begin 5, length 10
//	"5:15"  begin 5, length 10 (15 is an end offset)
//	"5-15"  same as ':'
//	"5+", "5:", "5-"
//	        begin 5, to end
//
// An empty head is begin 0. A computed length of exactly -1 (for
// example "5:4") coincides with ToEnd and is accepted as such; any
// other non-positive length is rejected.
func ParseRange(segment string) (Range, error) {
	separator := -1
	separators := 0
	for i := 0; i < len(segment); i++ {
		c := segment[i]
		if isSeparator(c) {
			separators++
			separator = i
			continue
		}
		if c < '0' || c > '9' {
			return Range{}, fmt.Errorf("range %q: %w %q at position %d", segment, ErrInvalidCharacter, c, i)
		}
	}
	if separators > 1 {
		return Range{}, fmt.Errorf("range %q: %w", segment, ErrMultipleSeparators)
	}

	if separator < 0 {
		begin, err := parseOffset(segment)
		if err != nil {
			return Range{}, fmt.Errorf("range %q: begin: %w", segment, err)
		}
		return Range{Begin: begin, Length: ToEnd}, nil
	}

	head, tail := segment[:separator], segment[separator+1:]
	begin, err := parseOffset(head)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: begin: %w", segment, err)
	}
	if tail == "" {
		return Range{Begin: begin, Length: ToEnd}, nil
	}

	value, err := parseOffset(tail)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: tail: %w", segment, err)
	}

	// Both operands are non-negative, so the subtraction cannot
	// overflow.
	length := value
	if segment[separator] != '+' {
		length = value - begin
	}
	if length < ToEnd || length == 0 {
		return Range{}, fmt.Errorf("range %q: %w (%d)", segment, ErrZeroOrNegativeLength, length)
	}

	return Range{Begin: begin, Length: length}, nil
}

// parseOffset parses an unsigned decimal string. The caller has
// already restricted the input to ASCII digits.
func parseOffset(digits string) (int64, error) {
	if digits == "" {
		return 0, nil
	}
	value, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, ErrOverflow
		}
		return 0, err
	}
	return value, nil
}
