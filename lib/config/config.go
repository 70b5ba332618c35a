// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/tranche/lib/tranche"
)

// EnvironmentVariable names the environment variable holding the path
// of the configuration file.
const EnvironmentVariable = "TRANCHE_CONFIG"

// Config is the configuration for one tranche mount.
type Config struct {
	// File is the underlying file to expose. Required.
	File string `yaml:"file"`

	// Begin is the absolute offset of the first exposed byte.
	// Default: 0
	Begin int64 `yaml:"begin"`

	// Size is the number of bytes to expose. -1 exposes everything
	// from Begin to the end of the file.
	// Default: -1
	Size int64 `yaml:"size"`

	// Mountpoint is the directory to mount on. Empty creates a
	// temporary directory that is removed after unmount.
	Mountpoint string `yaml:"mountpoint"`

	// Name is the name of the whole-window file. Empty generates
	// a random name.
	Name string `yaml:"name"`

	// ControlName is the name of the file whose release unmounts.
	// Default: kill
	ControlName string `yaml:"control_name"`

	// Quiet suppresses printing the default file path at startup.
	Quiet bool `yaml:"quiet"`

	// Debug enables debug logging, including every FUSE request.
	Debug bool `yaml:"debug"`

	// AllowOther lets other users access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool `yaml:"allow_other"`

	// UnmountTimeout bounds the unmount run by the control file.
	// Default: 10s
	UnmountTimeout string `yaml:"unmount_timeout"`
}

// Default returns the default configuration. File is left empty; it
// must come from the config file or the command line.
func Default() *Config {
	return &Config{
		Begin:          0,
		Size:           -1,
		ControlName:    tranche.DefaultControlName,
		UnmountTimeout: "10s",
	}
}

// Load loads configuration from the TRANCHE_CONFIG environment
// variable. It fails if the variable is not set; callers that treat
// the file as optional should check Path first.
func Load() (*Config, error) {
	configPath := Path()
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of a tranche YAML config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// Path returns the config file path named by TRANCHE_CONFIG, or "".
func Path() string {
	return os.Getenv(EnvironmentVariable)
}

// LoadFile loads configuration from a specific file path, on top of
// Default. Unknown keys are an error.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration on top of Default and expands
// variables in paths.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.File = expandVars(c.File, vars)
	c.Mountpoint = expandVars(c.Mountpoint, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// UnmountTimeoutDuration parses UnmountTimeout. Call Validate first.
func (c *Config) UnmountTimeoutDuration() time.Duration {
	duration, err := time.ParseDuration(c.UnmountTimeout)
	if err != nil {
		return 0
	}
	return duration
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.File == "" {
		errs = append(errs, fmt.Errorf("file is required"))
	}
	if c.Begin < 0 {
		errs = append(errs, fmt.Errorf("begin must not be negative, got %d", c.Begin))
	}
	if c.Size < -1 {
		errs = append(errs, fmt.Errorf("size must be -1 (to end of file) or non-negative, got %d", c.Size))
	}
	if strings.Contains(c.Name, "/") {
		errs = append(errs, fmt.Errorf("name %q must not contain '/'", c.Name))
	}
	if c.ControlName == "" {
		errs = append(errs, fmt.Errorf("control_name is required"))
	} else if strings.Contains(c.ControlName, "/") {
		errs = append(errs, fmt.Errorf("control_name %q must not contain '/'", c.ControlName))
	}
	if duration, err := time.ParseDuration(c.UnmountTimeout); err != nil {
		errs = append(errs, fmt.Errorf("unmount_timeout: %w", err))
	} else if duration <= 0 {
		errs = append(errs, fmt.Errorf("unmount_timeout must be positive, got %s", c.UnmountTimeout))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
