// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tranche

import "github.com/google/uuid"

// NamePrefix prefixes generated default file names.
const NamePrefix = "tranche-"

// GenerateName returns a fresh random name for the whole-window file.
// Generated names always contain letters and several separators, so
// they never collide with the range grammar.
func GenerateName() string {
	return NamePrefix + uuid.NewString()
}
