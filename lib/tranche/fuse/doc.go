// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fuse mounts a tranche window as a read-only FUSE filesystem.
//
// The mount is a single directory. Listing it shows one file, the
// whole window under its generated default name. Any other name is
// resolved on lookup by [tranche.Resolver]: names that parse as a
// range expression ("5+10", "5:15", "5-", ...) become regular files
// covering that part of the window, and the control file ("kill" by
// default) is always present even though it is not listed.
//
// # Read Path
//
// Lookup clamps the range once and stores the resulting span in the
// inode. Reads go straight to the underlying file with a positioned
// read bounded by that span; there is no cache beyond the kernel page
// cache, which is safe because the underlying bytes are treated as
// immutable for the lifetime of the mount. A read that starts at or
// beyond the end of a file fails with EFAULT.
//
// # Control File
//
// Opening the control file succeeds for read-only access. Releasing
// it runs the configured [Unmounter] against the mountpoint (lazy
// fusermount unmount by default), after which the kernel stops
// delivering requests and the server's Wait returns.
//
// # Write Path
//
// Not implemented. Opens that request write access fail with EACCES;
// all mutation operations fall through to go-fuse defaults.
package fuse
