// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for tranche mounts.
//
// Configuration is optional. When used it is loaded from a single YAML
// file specified by:
//   - the --config flag passed to the command, or
//   - the TRANCHE_CONFIG environment variable
//
// There is no automatic discovery. Command-line flags given explicitly
// override values from the file; everything else comes from [Default].
//
// Paths (file, mountpoint) may use ${VAR} and ${VAR:-default}
// expansion for portability.
package config
