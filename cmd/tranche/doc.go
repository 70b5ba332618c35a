// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// tranche exposes a byte range of a file through a read-only FUSE
// mount.
//
// The window [begin, begin+size) of the input file appears as a single
// file in the mountpoint, whose full path is printed on stdout once the
// mount is ready. Sub-ranges of the window can be read without
// remounting by naming them:
//
//	cat "$mnt/1:5"     window bytes 1 through 4
//	cat "$mnt/3+100"   100 bytes starting at window offset 3
//	cat "$mnt/40+"     everything from window offset 40
//
// Reading (or just opening and closing) "$mnt/kill" unmounts the
// filesystem and the process exits.
//
// Without --mountpoint a temporary directory under $TMPDIR is created
// and removed after unmount. The process always serves in the
// foreground; SIGINT and SIGTERM unmount cleanly.
package main
