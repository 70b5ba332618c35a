// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"
)

// Unmounter tears down the mount at mountpoint. It is the only side
// effect the control file has.
type Unmounter interface {
	Unmount(ctx context.Context, mountpoint string) error
}

// UnmounterFunc adapts a function to the Unmounter interface.
type UnmounterFunc func(ctx context.Context, mountpoint string) error

func (f UnmounterFunc) Unmount(ctx context.Context, mountpoint string) error {
	return f(ctx, mountpoint)
}

// CommandUnmounter unmounts with "fusermount -u -z". The lazy flag
// matters: the control file that triggered the unmount is still
// referenced while its release is in flight.
type CommandUnmounter struct {
	// Binary is the fusermount executable.
	Binary string
}

// NewCommandUnmounter locates fusermount (or fusermount3) on PATH.
func NewCommandUnmounter() (*CommandUnmounter, error) {
	binary, err := exec.LookPath("fusermount")
	if err != nil {
		binary, err = exec.LookPath("fusermount3")
		if err != nil {
			return nil, fmt.Errorf("fusermount/fusermount3 not found: %w", err)
		}
	}
	return &CommandUnmounter{Binary: binary}, nil
}

func (u *CommandUnmounter) Unmount(ctx context.Context, mountpoint string) error {
	cmd := exec.CommandContext(ctx, u.Binary, "-u", "-z", mountpoint)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s -u -z %s: %w: %s", u.Binary, mountpoint, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// DetachUnmounter detaches the mount directly with umount2(MNT_DETACH).
// This needs CAP_SYS_ADMIN and is used when fusermount is unavailable
// and the process runs as root.
type DetachUnmounter struct{}

func (DetachUnmounter) Unmount(ctx context.Context, mountpoint string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := unix.Unmount(mountpoint, unix.MNT_DETACH); err != nil {
		return fmt.Errorf("detaching %s: %w", mountpoint, err)
	}
	return nil
}

// DefaultUnmounter returns the fusermount unmounter if fusermount is
// installed, the direct detach unmounter when running as root without
// it, and otherwise an unmounter that reports why it cannot work.
func DefaultUnmounter() Unmounter {
	command, err := NewCommandUnmounter()
	if err == nil {
		return command
	}
	if os.Geteuid() == 0 {
		return DetachUnmounter{}
	}
	return UnmounterFunc(func(context.Context, string) error {
		return err
	})
}

// FUSEAvailable reports whether /dev/fuse can be opened for reading
// and writing by this process.
func FUSEAvailable() error {
	if err := unix.Access("/dev/fuse", unix.R_OK|unix.W_OK); err != nil {
		return fmt.Errorf("/dev/fuse is not accessible: %w", err)
	}
	return nil
}
