// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"syscall"
	"testing"

	"github.com/bureau-foundation/tranche/lib/tranche"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// recordingUnmounter records every mountpoint it is asked to unmount.
type recordingUnmounter struct {
	mu     sync.Mutex
	calls  []string
	result error
}

func (r *recordingUnmounter) Unmount(ctx context.Context, mountpoint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("unmount called without a deadline")
	}
	r.calls = append(r.calls, mountpoint)
	return r.result
}

// testFilesystem builds the shared node state over a 100-byte
// in-memory file with window [10, 30), without mounting anything.
func testFilesystem(t *testing.T, unmounter Unmounter) (*filesystem, []byte) {
	t.Helper()
	content := make([]byte, 100)
	for i := range content {
		content[i] = byte(i)
	}
	window, err := tranche.NewWindow(bytes.NewReader(content), int64(len(content)), 10, 20)
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	resolver, err := tranche.NewResolver(window, "whole", "")
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return &filesystem{
		options: &Options{
			Mountpoint:     "/mnt/tranche-test",
			Window:         window,
			Unmounter:      unmounter,
			UnmountTimeout: DefaultUnmountTimeout,
			Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		},
		resolver: resolver,
		reader:   tranche.NewReader(window),
	}, content
}

func TestFileNodeGetattr(t *testing.T) {
	fs, _ := testFilesystem(t, nil)
	node := &fileNode{fs: fs, entity: fs.resolver.Resolve("/5:15")}

	var out fuse.AttrOut
	if errno := node.Getattr(context.Background(), nil, &out); errno != 0 {
		t.Fatalf("Getattr: %v", errno)
	}
	if out.Size != 10 {
		t.Errorf("Size = %d, want 10", out.Size)
	}
	if out.Mode != syscall.S_IFREG|0o444 {
		t.Errorf("Mode = %o, want %o", out.Mode, syscall.S_IFREG|0o444)
	}
	if out.Blocks != 1 {
		t.Errorf("Blocks = %d, want 1", out.Blocks)
	}
}

func TestFileNodeOpenRejectsWrite(t *testing.T) {
	fs, _ := testFilesystem(t, nil)
	for _, path := range []string{"/whole", "/5:15", "/0+"} {
		node := &fileNode{fs: fs, entity: fs.resolver.Resolve(path)}
		for _, flags := range []uint32{syscall.O_WRONLY, syscall.O_RDWR} {
			if _, _, errno := node.Open(context.Background(), flags); errno != syscall.EACCES {
				t.Errorf("Open(%s, %#x) = %v, want EACCES", path, flags, errno)
			}
		}
		_, fuseFlags, errno := node.Open(context.Background(), syscall.O_RDONLY)
		if errno != 0 {
			t.Errorf("Open(%s, O_RDONLY) = %v", path, errno)
		}
		if fuseFlags&fuse.FOPEN_KEEP_CACHE == 0 {
			t.Errorf("Open(%s) flags = %#x, want FOPEN_KEEP_CACHE", path, fuseFlags)
		}
	}
}

func TestFileNodeRead(t *testing.T) {
	fs, content := testFilesystem(t, nil)
	node := &fileNode{fs: fs, entity: fs.resolver.Resolve("/0+")}

	dest := make([]byte, 5)
	result, errno := node.Read(context.Background(), nil, dest, 19)
	if errno != 0 {
		t.Fatalf("Read: %v", errno)
	}
	got, status := result.Bytes(make([]byte, 5))
	if !status.Ok() {
		t.Fatalf("ReadResult.Bytes: %v", status)
	}
	if !bytes.Equal(got, content[29:30]) {
		t.Errorf("Read = %v, want %v", got, content[29:30])
	}

	if _, errno := node.Read(context.Background(), nil, dest, 20); errno != syscall.EFAULT {
		t.Errorf("Read past end = %v, want EFAULT", errno)
	}
}

func TestControlNode(t *testing.T) {
	unmounter := &recordingUnmounter{}
	fs, _ := testFilesystem(t, unmounter)
	node := &controlNode{fs: fs}

	var out fuse.AttrOut
	if errno := node.Getattr(context.Background(), nil, &out); errno != 0 {
		t.Fatalf("Getattr: %v", errno)
	}
	if out.Mode != syscall.S_IFREG|0o777 || out.Size != 0 {
		t.Errorf("attr = mode %o size %d, want mode %o size 0", out.Mode, out.Size, syscall.S_IFREG|0o777)
	}

	if _, _, errno := node.Open(context.Background(), syscall.O_WRONLY); errno != syscall.EACCES {
		t.Errorf("Open(O_WRONLY) = %v, want EACCES", errno)
	}

	handle, _, errno := node.Open(context.Background(), syscall.O_RDONLY)
	if errno != 0 {
		t.Fatalf("Open: %v", errno)
	}

	result, errno := node.Read(context.Background(), handle, make([]byte, 16), 0)
	if errno != 0 {
		t.Fatalf("Read: %v", errno)
	}
	if result.Size() != 0 {
		t.Errorf("Read returned %d bytes, want 0", result.Size())
	}

	if len(unmounter.calls) != 0 {
		t.Fatalf("unmount called before release: %v", unmounter.calls)
	}

	releaser, ok := handle.(*controlHandle)
	if !ok {
		t.Fatalf("Open returned %T, want *controlHandle", handle)
	}
	if errno := releaser.Release(context.Background()); errno != 0 {
		t.Errorf("Release = %v, want 0", errno)
	}
	if len(unmounter.calls) != 1 || unmounter.calls[0] != "/mnt/tranche-test" {
		t.Errorf("unmount calls = %v, want [/mnt/tranche-test]", unmounter.calls)
	}
}

func TestControlReleaseSucceedsWhenUnmountFails(t *testing.T) {
	unmounter := &recordingUnmounter{result: errors.New("fusermount: not mounted")}
	fs, _ := testFilesystem(t, unmounter)

	// A cancelled request context must not cancel the unmount.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handle := &controlHandle{fs: fs}
	if errno := handle.Release(ctx); errno != 0 {
		t.Errorf("Release = %v, want 0", errno)
	}
	if len(unmounter.calls) != 1 {
		t.Errorf("unmount calls = %d, want 1", len(unmounter.calls))
	}
}

func TestToErrno(t *testing.T) {
	tests := []struct {
		err  error
		want syscall.Errno
	}{
		{nil, 0},
		{fmt.Errorf("wrapped: %w", tranche.ErrReadFault), syscall.EFAULT},
		{tranche.ErrAccess, syscall.EACCES},
		{tranche.ErrNotFound, syscall.ENOENT},
		{tranche.ErrNotDirectory, syscall.ENOTDIR},
		{tranche.ErrNotReadable, syscall.EISDIR},
		{io.ErrUnexpectedEOF, syscall.EIO},
	}
	for _, test := range tests {
		if got := toErrno(test.err); got != test.want {
			t.Errorf("toErrno(%v) = %v, want %v", test.err, got, test.want)
		}
	}
}

func TestSliceDirStream(t *testing.T) {
	stream := &sliceDirStream{entries: []fuse.DirEntry{{Name: "a"}, {Name: "b"}}}
	var names []string
	for stream.HasNext() {
		entry, errno := stream.Next()
		if errno != 0 {
			t.Fatalf("Next: %v", errno)
		}
		names = append(names, entry.Name)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("names = %v, want [a b]", names)
	}
	if _, errno := stream.Next(); errno != syscall.EINVAL {
		t.Errorf("Next past end = %v, want EINVAL", errno)
	}
}

func TestUnmounterFunc(t *testing.T) {
	var got string
	unmounter := UnmounterFunc(func(ctx context.Context, mountpoint string) error {
		got = mountpoint
		return nil
	})
	if err := unmounter.Unmount(context.Background(), "/mnt/x"); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	if got != "/mnt/x" {
		t.Errorf("mountpoint = %q, want /mnt/x", got)
	}
}

func TestCommandUnmounterReportsFailure(t *testing.T) {
	unmounter := &CommandUnmounter{Binary: "false"}
	err := unmounter.Unmount(context.Background(), "/nonexistent")
	if err == nil {
		t.Fatal("expected error from failing unmount command")
	}
}

func TestDetachUnmounterHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := DetachUnmounter{}.Unmount(ctx, "/nonexistent")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Unmount with cancelled context = %v, want context.Canceled", err)
	}
}

func TestDefaultUnmounter(t *testing.T) {
	unmounter := DefaultUnmounter()
	if unmounter == nil {
		t.Fatal("DefaultUnmounter returned nil")
	}
	if _, err := NewCommandUnmounter(); err == nil {
		if _, ok := unmounter.(*CommandUnmounter); !ok {
			t.Errorf("DefaultUnmounter = %T, want *CommandUnmounter when fusermount is installed", unmounter)
		}
	}
}

func TestSetattrAcceptsTimesOnly(t *testing.T) {
	fs, _ := testFilesystem(t, nil)
	file := &fileNode{fs: fs, entity: fs.resolver.Resolve("/5+10")}
	control := &controlNode{fs: fs}

	type setattrer interface {
		Setattr(context.Context, gofuse.FileHandle, *fuse.SetAttrIn, *fuse.AttrOut) syscall.Errno
	}
	nodes := map[string]setattrer{"file": file, "control": control}

	tests := []struct {
		name  string
		valid uint32
		want  syscall.Errno
	}{
		{"touch", fuse.FATTR_ATIME | fuse.FATTR_MTIME | fuse.FATTR_ATIME_NOW | fuse.FATTR_MTIME_NOW, 0},
		{"explicit times with ctime", fuse.FATTR_ATIME | fuse.FATTR_MTIME | fuse.FATTR_CTIME, 0},
		{"futimens", fuse.FATTR_MTIME | fuse.FATTR_FH, 0},
		{"truncate", fuse.FATTR_SIZE, syscall.EACCES},
		{"chmod", fuse.FATTR_MODE, syscall.EACCES},
		{"chown with times", fuse.FATTR_UID | fuse.FATTR_MTIME, syscall.EACCES},
	}
	for nodeName, node := range nodes {
		for _, test := range tests {
			in := &fuse.SetAttrIn{}
			in.Valid = test.valid
			var out fuse.AttrOut
			if errno := node.Setattr(context.Background(), nil, in, &out); errno != test.want {
				t.Errorf("%s Setattr(%s) = %v, want %v", nodeName, test.name, errno, test.want)
			}
		}
	}

	var out fuse.AttrOut
	in := &fuse.SetAttrIn{}
	in.Valid = fuse.FATTR_MTIME_NOW | fuse.FATTR_MTIME
	if errno := file.Setattr(context.Background(), nil, in, &out); errno != 0 || out.Size != 10 {
		t.Errorf("Setattr = %v, size %d; want 0, size 10", errno, out.Size)
	}
}
