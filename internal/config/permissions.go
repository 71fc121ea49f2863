// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// readableByOthers are the group and world read bits.
const readableByOthers fs.FileMode = 0o044

// InsecurePermissions reports whether the file at path can be read by
// users other than its owner.
func InsecurePermissions(path string) (bool, fs.FileMode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, 0, err
	}
	perm := info.Mode().Perm()
	return perm&readableByOthers != 0, perm, nil
}

// WarnInsecurePermissions logs a warning when the config file, which may
// hold API keys, is group- or world-readable. It never fails.
func WarnInsecurePermissions(path string) {
	if path == "" {
		return
	}
	insecure, perm, err := InsecurePermissions(path)
	if err != nil {
		slog.Debug("could not stat config file for permission check", "path", path, "error", err)
		return
	}
	if insecure {
		slog.Warn("config file has insecure permissions, API keys may be readable by other users",
			"path", path, "mode", perm, "recommended", "0600")
	}
}
