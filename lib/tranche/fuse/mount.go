// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/tranche/lib/tranche"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// DefaultUnmountTimeout bounds the unmount command run when the
// control file is released.
const DefaultUnmountTimeout = 10 * time.Second

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	Mountpoint string

	// Window is the tranche to expose. The mount does not close it.
	Window *tranche.Window

	// DefaultName is the name of the whole-window file. If empty, a
	// random name is generated.
	DefaultName string

	// ControlName is the name of the control file. If empty,
	// tranche.DefaultControlName is used.
	ControlName string

	// Unmounter is invoked when the control file is released. If
	// nil, DefaultUnmounter() is used.
	Unmounter Unmounter

	// UnmountTimeout bounds the Unmounter call. Zero uses
	// DefaultUnmountTimeout.
	UnmountTimeout time.Duration

	// Announce receives the full path of the default file, one line,
	// once the mount is up. Nil suppresses the announcement.
	Announce io.Writer

	// AllowOther permits other users (including root) to access
	// the mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Debug logs every FUSE request and response through Logger.
	Debug bool

	// DirectMount makes go-fuse call mount(2) itself before falling
	// back to fusermount. Always on when running as root, so a root
	// host without fusermount can mount and, through
	// DetachUnmounter, unmount.
	DirectMount bool

	// Logger receives diagnostic messages. If nil, errors are
	// written to stderr.
	Logger *slog.Logger
}

// filesystem is the state shared by every node of one mount.
type filesystem struct {
	options  *Options
	resolver *tranche.Resolver
	reader   *tranche.Reader
}

// Mount mounts the tranche filesystem at the configured mountpoint and
// announces the default file. The caller must either call Unmount on
// the returned Server or wait for the control file to be released
// (server.Wait). The mountpoint directory is created if it does not
// exist.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Window == nil {
		return nil, fmt.Errorf("window is required")
	}

	options.setDefaults()

	mountpoint, err := filepath.Abs(options.Mountpoint)
	if err != nil {
		return nil, fmt.Errorf("resolving mountpoint %s: %w", options.Mountpoint, err)
	}
	options.Mountpoint = mountpoint

	resolver, err := tranche.NewResolver(options.Window, options.DefaultName, options.ControlName)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &rootNode{fs: &filesystem{
		options:  &options,
		resolver: resolver,
		reader:   tranche.NewReader(options.Window),
	}}

	// Lookups only parse and clamp a name, so short kernel caches
	// cost little.
	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second
	negativeTimeout := 100 * time.Millisecond

	debugLogger := slog.NewLogLogger(options.Logger.Handler(), slog.LevelDebug)
	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		Logger:          debugLogger,
		MountOptions: mountOptions(&options, debugLogger),
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	defaultPath := filepath.Join(options.Mountpoint, resolver.DefaultName())
	options.Logger.Info("tranche FUSE filesystem mounted",
		"mountpoint", options.Mountpoint,
		"default_path", defaultPath,
		"control_path", filepath.Join(options.Mountpoint, resolver.ControlName()),
		"direct_mount", options.DirectMount,
		"start", options.Window.Start(),
		"size", options.Window.Size(),
	)

	if options.Announce != nil {
		if _, err := fmt.Fprintln(options.Announce, defaultPath); err != nil {
			options.Logger.Warn("announcing default path failed", "error", err)
		}
	}

	return server, nil
}

// setDefaults fills every unset optional field.
func (o *Options) setDefaults() {
	if o.DefaultName == "" {
		o.DefaultName = tranche.GenerateName()
	}
	if o.Unmounter == nil {
		o.Unmounter = DefaultUnmounter()
	}
	if o.UnmountTimeout == 0 {
		o.UnmountTimeout = DefaultUnmountTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}
	if os.Geteuid() == 0 {
		o.DirectMount = true
	}
}

// mountOptions builds the kernel-facing mount options.
func mountOptions(options *Options, logger *log.Logger) fuse.MountOptions {
	return fuse.MountOptions{
		FsName:      "tranche",
		Name:        "tranche",
		AllowOther:  options.AllowOther,
		Debug:       options.Debug,
		DirectMount: options.DirectMount,
		Logger:      logger,
	}
}
