// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"context"
	"errors"
	"syscall"

	"github.com/bureau-foundation/tranche/lib/tranche"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// blockSize is reported as the preferred I/O size of every file.
const blockSize = 65536

// rootNode is the mount's only directory. Its children are created on
// lookup from the resolver; the only persistent state is the shared
// filesystem.
type rootNode struct {
	gofuse.Inode
	fs *filesystem
}

var _ gofuse.InodeEmbedder = (*rootNode)(nil)
var _ gofuse.NodeLookuper = (*rootNode)(nil)
var _ gofuse.NodeReaddirer = (*rootNode)(nil)
var _ gofuse.NodeGetattrer = (*rootNode)(nil)

func (r *rootNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	return fillAttr(r.fs.resolver.Resolve("/"), &out.Attr)
}

func (r *rootNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	entity := r.fs.resolver.Lookup(name)

	var node gofuse.InodeEmbedder
	switch entity.Kind {
	case tranche.KindDefault, tranche.KindRange:
		node = &fileNode{fs: r.fs, entity: entity}
	case tranche.KindControl:
		node = &controlNode{fs: r.fs}
	default:
		return nil, syscall.ENOENT
	}

	if errno := fillAttr(entity, &out.Attr); errno != 0 {
		return nil, errno
	}
	child := r.NewInode(ctx, node, gofuse.StableAttr{Mode: syscall.S_IFREG})
	return child, 0
}

func (r *rootNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	listing, err := r.fs.resolver.List("/")
	if err != nil {
		return nil, toErrno(err)
	}

	entries := make([]fuse.DirEntry, 0, len(listing))
	for _, entry := range listing {
		entries = append(entries, fuse.DirEntry{
			Name: entry.Name,
			Mode: entry.Mode,
		})
	}
	return &sliceDirStream{entries: entries}, 0
}

// fileNode is the whole-window file or a range file. The span was
// clamped when the name was looked up and does not change.
type fileNode struct {
	gofuse.Inode
	fs     *filesystem
	entity tranche.Entity
}

var _ gofuse.InodeEmbedder = (*fileNode)(nil)
var _ gofuse.NodeGetattrer = (*fileNode)(nil)
var _ gofuse.NodeOpener = (*fileNode)(nil)
var _ gofuse.NodeReader = (*fileNode)(nil)
var _ gofuse.NodeSetattrer = (*fileNode)(nil)

func (n *fileNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	return fillAttr(n.entity, &out.Attr)
}

// Setattr accepts timestamp updates without storing them, so touch
// succeeds. Every other change is refused.
func (n *fileNode) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if !timesOnly(in.Valid) {
		return syscall.EACCES
	}
	return fillAttr(n.entity, &out.Attr)
}

func (n *fileNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if err := tranche.CheckAccess(flags); err != nil {
		return nil, 0, toErrno(err)
	}

	// The underlying bytes are treated as immutable while mounted,
	// so the kernel page cache stays valid.
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (n *fileNode) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	count, err := n.fs.reader.ReadAt(n.entity, dest, off)
	if err != nil {
		if !errors.Is(err, tranche.ErrReadFault) {
			n.fs.options.Logger.Error("read failed",
				"name", n.entity.Name,
				"offset", off,
				"error", err,
			)
		}
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(dest[:count]), 0
}

// controlNode is the control file. It is always empty; releasing an
// open handle on it unmounts the filesystem.
type controlNode struct {
	gofuse.Inode
	fs *filesystem
}

var _ gofuse.InodeEmbedder = (*controlNode)(nil)
var _ gofuse.NodeGetattrer = (*controlNode)(nil)
var _ gofuse.NodeOpener = (*controlNode)(nil)
var _ gofuse.NodeReader = (*controlNode)(nil)
var _ gofuse.NodeSetattrer = (*controlNode)(nil)

func (c *controlNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	return fillAttr(tranche.Entity{Kind: tranche.KindControl}, &out.Attr)
}

func (c *controlNode) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if !timesOnly(in.Valid) {
		return syscall.EACCES
	}
	return fillAttr(tranche.Entity{Kind: tranche.KindControl}, &out.Attr)
}

func (c *controlNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if err := tranche.CheckAccess(flags); err != nil {
		return nil, 0, toErrno(err)
	}
	return &controlHandle{fs: c.fs}, fuse.FOPEN_DIRECT_IO, 0
}

func (c *controlNode) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	return fuse.ReadResultData(nil), 0
}

// controlHandle is the open handle on the control file.
type controlHandle struct {
	fs *filesystem
}

var _ gofuse.FileReleaser = (*controlHandle)(nil)

// Release unmounts the filesystem. The unmount runs synchronously and
// the bridge is told the release succeeded whatever its outcome; the
// kernel stops delivering requests once the unmount lands.
func (h *controlHandle) Release(ctx context.Context) syscall.Errno {
	h.fs.releaseControl(ctx)
	return 0
}

// releaseControl runs the unmounter against the mountpoint, bounded
// by the configured timeout.
func (f *filesystem) releaseControl(ctx context.Context) {
	options := f.options
	options.Logger.Info("control file released, unmounting", "mountpoint", options.Mountpoint)

	// The release context belongs to the FUSE request and may be
	// cancelled as soon as the kernel stops waiting for it.
	unmountCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), options.UnmountTimeout)
	defer cancel()

	if err := options.Unmounter.Unmount(unmountCtx, options.Mountpoint); err != nil {
		options.Logger.Error("unmount from control file failed",
			"mountpoint", options.Mountpoint,
			"error", err,
		)
	}
}

// timeAttrs are the setattr bits a utimensat call can carry.
const timeAttrs = fuse.FATTR_ATIME | fuse.FATTR_MTIME | fuse.FATTR_ATIME_NOW |
	fuse.FATTR_MTIME_NOW | fuse.FATTR_CTIME | fuse.FATTR_FH | fuse.FATTR_LOCKOWNER

// timesOnly reports whether a setattr request changes nothing but
// timestamps.
func timesOnly(valid uint32) bool {
	return valid&^timeAttrs == 0
}

// fillAttr copies the entity's attributes into a FUSE attribute block.
func fillAttr(entity tranche.Entity, out *fuse.Attr) syscall.Errno {
	attr, err := entity.Attr()
	if err != nil {
		return toErrno(err)
	}
	out.Mode = attr.Mode
	out.Nlink = attr.Nlink
	out.Size = attr.Size
	out.Blocks = (attr.Size + 511) / 512
	out.Blksize = blockSize
	return 0
}

// toErrno maps tranche errors onto the errno reported to the kernel.
func toErrno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, tranche.ErrReadFault):
		return syscall.EFAULT
	case errors.Is(err, tranche.ErrAccess):
		return syscall.EACCES
	case errors.Is(err, tranche.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, tranche.ErrNotDirectory):
		return syscall.ENOTDIR
	case errors.Is(err, tranche.ErrNotReadable):
		return syscall.EISDIR
	default:
		return syscall.EIO
	}
}

// sliceDirStream implements fs.DirStream from a slice of entries.
type sliceDirStream struct {
	entries []fuse.DirEntry
	index   int
}

func (s *sliceDirStream) HasNext() bool {
	return s.index < len(s.entries)
}

func (s *sliceDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	if s.index >= len(s.entries) {
		return fuse.DirEntry{}, syscall.EINVAL
	}
	entry := s.entries[s.index]
	s.index++
	return entry, 0
}

func (s *sliceDirStream) Close() {}
