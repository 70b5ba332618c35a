// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tranche maps requested paths onto bounded byte spans of a
// single underlying file.
//
// A [Window] is the configured [start, start+size) slice of the file
// (the "tranche"). Paths under the mount root name either the whole
// window (a generated default name), a control file, or a range of the
// window encoded directly in the name:
//
//	/<begin>           begin to the end of the window
//	/<begin>+<length>  length bytes starting at begin
//	/<begin>:<end>     begin up to (not including) end
//	/<begin>-<end>     same as ':'
//	/<begin>+ /<begin>: /<begin>-
//	                   begin to the end of the window
//
// All offsets in a range name are relative to the window start. The
// [Window] is the only place that converts them to absolute offsets in
// the underlying file; [Resolver] and [Reader] consume its clamped
// [Span] values and never re-derive bounds.
//
// Everything in this package is immutable after construction and safe
// for concurrent use. Reads are positioned (io.ReaderAt), so there is
// no shared cursor.
package tranche
