// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tranche/lib/config"
	"github.com/bureau-foundation/tranche/lib/process"
	"github.com/bureau-foundation/tranche/lib/tranche"
	tranchefuse "github.com/bureau-foundation/tranche/lib/tranche/fuse"
	"github.com/bureau-foundation/tranche/lib/version"
)

// usageExitCode is the exit status for bad flags or configuration.
// Failures after the configuration is accepted exit with 1.
const usageExitCode = 2

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		process.Fatal(err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	// Handle --version before flag parsing so it works alongside
	// otherwise incomplete flag sets.
	if len(args) > 0 && args[0] == "--version" {
		version.Print(stdout, "tranche")
		return nil
	}

	flagSet := newFlagSet()
	flagSet.SetOutput(stderr)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet, stderr)
			return nil
		}
		return &process.ExitError{Code: usageExitCode, Err: err}
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet, stderr)
		return nil
	}

	cfg, err := resolveConfig(flagSet)
	if err != nil {
		return &process.ExitError{Code: usageExitCode, Err: err}
	}

	logger := newLogger(stderr, cfg)

	window, err := tranche.OpenWindow(cfg.File, cfg.Begin, cfg.Size)
	if err != nil {
		return err
	}
	defer window.Close()
	logger.Debug("window opened",
		"file", cfg.File,
		"file_length", window.UnderlyingLength(),
		"start", window.Start(),
		"size", window.Size(),
	)

	mountpoint, removeMountpoint, err := prepareMountpoint(cfg.Mountpoint)
	if err != nil {
		return err
	}
	defer removeMountpoint(logger)

	if err := tranchefuse.FUSEAvailable(); err != nil {
		return err
	}

	var announce io.Writer
	if !cfg.Quiet {
		announce = stdout
	}

	server, err := tranchefuse.Mount(tranchefuse.Options{
		Mountpoint:     mountpoint,
		Window:         window,
		DefaultName:    cfg.Name,
		ControlName:    cfg.ControlName,
		UnmountTimeout: cfg.UnmountTimeoutDuration(),
		Announce:       announce,
		AllowOther:     cfg.AllowOther,
		Debug:          cfg.Debug,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	served := make(chan struct{})
	go func() {
		server.Wait()
		close(served)
	}()

	select {
	case <-served:
		logger.Info("filesystem unmounted", "mountpoint", mountpoint)
	case <-ctx.Done():
		logger.Info("signal received, unmounting", "mountpoint", mountpoint)
		if err := server.Unmount(); err != nil {
			return fmt.Errorf("unmounting %s: %w", mountpoint, err)
		}
		<-served
	}
	return nil
}

// newLogger builds the stderr logger. Quiet raises the level so only
// problems are reported; debug lowers it to include FUSE traffic.
func newLogger(stderr io.Writer, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case cfg.Debug:
		level = slog.LevelDebug
	case cfg.Quiet:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}

func printHelp(flagSet *pflag.FlagSet, out io.Writer) {
	fmt.Fprintf(out, `tranche %s: expose a byte range of a file through a FUSE mount.

Usage:
  tranche [flags] -f FILE
  tranche [flags] FILE

Once mounted, the full path of the file exposing the whole range is
printed on stdout. Sub-ranges are read by name, relative to --begin:

  <b>        from b to the end      <b>+<n>   n bytes from b
  <b>:<e>    from b up to e         <b>-<e>   same as ':'
  <b>+ <b>: <b>-                    from b to the end

Closing <mountpoint>/kill unmounts the filesystem.

Examples:
  # Expose bytes 10..19 of hello.txt, then read bytes 11..14
  f=$(tranche -b 10 -s 10 -f hello.txt) && cat "$(dirname "$f")/1:5"

  # Use a config file
  TRANCHE_CONFIG=tranche.yaml tranche

Flags:
`, version.Short())
	flagSet.SetOutput(out)
	flagSet.PrintDefaults()
}
