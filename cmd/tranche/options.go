// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tranche/lib/config"
)

// mountpointPattern names temporary mountpoints: $TMPDIR/tranchemntNNNN.
const mountpointPattern = "tranchemnt"

func newFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("tranche", pflag.ContinueOnError)
	flagSet.SortFlags = false
	flagSet.Int64P("begin", "b", 0, "start byte position to expose")
	flagSet.Int64P("size", "s", -1, "size in bytes to expose (-1: to end of file)")
	flagSet.StringP("file", "f", "", "input file to expose")
	flagSet.StringP("name", "o", "", "name of the exposed file (default: random)")
	flagSet.StringP("mountpoint", "m", "", "mount point (default: new temporary directory)")
	flagSet.String("control-name", "", "name of the file that unmounts on release (default: kill)")
	flagSet.BoolP("quiet", "q", false, "do not print the exposed file path")
	flagSet.BoolP("debug", "D", false, "debug logging, including FUSE requests")
	flagSet.Bool("allow-other", false, "allow other users to access the mount")
	flagSet.Duration("unmount-timeout", 0, "bound on the unmount run by the control file (default: 10s)")
	flagSet.String("config", "", "YAML config file (default: $"+config.EnvironmentVariable+")")
	flagSet.BoolP("help", "h", false, "show help")
	return flagSet
}

// resolveConfig builds the effective configuration: defaults, then the
// config file (--config or TRANCHE_CONFIG) if any, then every flag that
// was given explicitly. A single positional argument names the file.
func resolveConfig(flagSet *pflag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	var err error
	switch configPath, _ := flagSet.GetString("config"); {
	case configPath != "":
		cfg, err = config.LoadFile(configPath)
	case config.Path() != "":
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if flagSet.Changed("begin") {
		cfg.Begin, _ = flagSet.GetInt64("begin")
	}
	if flagSet.Changed("size") {
		cfg.Size, _ = flagSet.GetInt64("size")
	}
	if flagSet.Changed("file") {
		cfg.File, _ = flagSet.GetString("file")
	}
	if flagSet.Changed("name") {
		cfg.Name, _ = flagSet.GetString("name")
	}
	if flagSet.Changed("mountpoint") {
		cfg.Mountpoint, _ = flagSet.GetString("mountpoint")
	}
	if flagSet.Changed("control-name") {
		cfg.ControlName, _ = flagSet.GetString("control-name")
	}
	if flagSet.Changed("quiet") {
		cfg.Quiet, _ = flagSet.GetBool("quiet")
	}
	if flagSet.Changed("debug") {
		cfg.Debug, _ = flagSet.GetBool("debug")
	}
	if flagSet.Changed("allow-other") {
		cfg.AllowOther, _ = flagSet.GetBool("allow-other")
	}
	if flagSet.Changed("unmount-timeout") {
		timeout, _ := flagSet.GetDuration("unmount-timeout")
		cfg.UnmountTimeout = timeout.String()
	}

	switch positional := flagSet.Args(); {
	case len(positional) > 1:
		return nil, fmt.Errorf("unexpected argument: %s", positional[1])
	case len(positional) == 1 && flagSet.Changed("file"):
		return nil, fmt.Errorf("input file given both as --file and as argument %q", positional[0])
	case len(positional) == 1:
		cfg.File = positional[0]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// prepareMountpoint returns the directory to mount on and a cleanup
// function. An empty path creates a temporary directory, which the
// cleanup removes once the filesystem is unmounted; an explicit path is
// left alone.
func prepareMountpoint(path string) (string, func(*slog.Logger), error) {
	if path != "" {
		return path, func(*slog.Logger) {}, nil
	}

	created, err := os.MkdirTemp("", mountpointPattern)
	if err != nil {
		return "", nil, fmt.Errorf("creating temporary mountpoint: %w", err)
	}
	return created, func(logger *slog.Logger) {
		if err := os.Remove(created); err != nil {
			logger.Warn("removing temporary mountpoint failed", "mountpoint", created, "error", err)
		}
	}, nil
}
