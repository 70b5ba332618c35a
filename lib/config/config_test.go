// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Size != -1 {
		t.Errorf("expected size=-1, got %d", cfg.Size)
	}
	if cfg.ControlName != "kill" {
		t.Errorf("expected control_name=kill, got %s", cfg.ControlName)
	}
	if cfg.UnmountTimeoutDuration() != 10*time.Second {
		t.Errorf("expected unmount_timeout=10s, got %s", cfg.UnmountTimeout)
	}

	// The default alone is not valid: the file is required.
	if err := cfg.Validate(); err == nil {
		t.Error("expected Validate() to require file")
	}
}

func TestLoad_RequiresTrancheConfig(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when TRANCHE_CONFIG not set, got nil")
	}

	expectedMsg := "TRANCHE_CONFIG environment variable not set"
	if !strings.HasPrefix(err.Error(), expectedMsg) {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithTrancheConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "tranche.yaml")

	configContent := `
file: /data/disk.img
begin: 4096
size: 1048576
mountpoint: /mnt/tranche
name: disk
quiet: true
unmount_timeout: 3s
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv(EnvironmentVariable, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.File != "/data/disk.img" {
		t.Errorf("expected file=/data/disk.img, got %s", cfg.File)
	}
	if cfg.Begin != 4096 || cfg.Size != 1048576 {
		t.Errorf("expected begin=4096 size=1048576, got begin=%d size=%d", cfg.Begin, cfg.Size)
	}
	if cfg.Mountpoint != "/mnt/tranche" {
		t.Errorf("expected mountpoint=/mnt/tranche, got %s", cfg.Mountpoint)
	}
	if cfg.Name != "disk" || !cfg.Quiet {
		t.Errorf("expected name=disk quiet=true, got name=%s quiet=%v", cfg.Name, cfg.Quiet)
	}

	// Unset keys keep their defaults.
	if cfg.ControlName != "kill" {
		t.Errorf("expected control_name=kill, got %s", cfg.ControlName)
	}
	if cfg.UnmountTimeoutDuration() != 3*time.Second {
		t.Errorf("expected unmount_timeout=3s, got %s", cfg.UnmountTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() failed: %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestParse_UnknownKey(t *testing.T) {
	_, err := Parse([]byte("file: /a\nbgein: 5\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) failed: %v", err)
	}
	if cfg.Size != -1 {
		t.Errorf("expected defaults from empty input, got size=%d", cfg.Size)
	}
}

func TestExpandVariables(t *testing.T) {
	t.Setenv("TRANCHE_TEST_DATA", "/srv/data")

	cfg, err := Parse([]byte(`
file: ${TRANCHE_TEST_DATA}/image.bin
mountpoint: ${TRANCHE_TEST_UNSET:-/tmp/fallback}
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.File != "/srv/data/image.bin" {
		t.Errorf("expected file=/srv/data/image.bin, got %s", cfg.File)
	}
	if cfg.Mountpoint != "/tmp/fallback" {
		t.Errorf("expected mountpoint=/tmp/fallback, got %s", cfg.Mountpoint)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"negative begin", func(c *Config) { c.Begin = -1 }, "begin must not be negative"},
		{"bad size", func(c *Config) { c.Size = -2 }, "size must be"},
		{"slash in name", func(c *Config) { c.Name = "a/b" }, "name \"a/b\""},
		{"empty control", func(c *Config) { c.ControlName = "" }, "control_name is required"},
		{"bad timeout", func(c *Config) { c.UnmountTimeout = "soon" }, "unmount_timeout"},
		{"zero timeout", func(c *Config) { c.UnmountTimeout = "0s" }, "must be positive"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			cfg.File = "/data/file"
			test.modify(cfg)

			err := cfg.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() failed: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, test.wantErr)
			}
		})
	}
}
