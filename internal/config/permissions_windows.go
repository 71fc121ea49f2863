// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

//go:build windows

package config

import (
	"io/fs"
	"log/slog"
)

// InsecurePermissions always reports false; Windows uses ACLs, not mode bits.
func InsecurePermissions(string) (bool, fs.FileMode, error) {
	return false, 0, nil
}

// WarnInsecurePermissions is a no-op on Windows.
func WarnInsecurePermissions(path string) {
	if path != "" {
		slog.Debug("config permission check not implemented on Windows", "path", path)
	}
}
