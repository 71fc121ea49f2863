// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	artlenserr "github.com/artlens/artlens/pkg/errors"
)

//go:embed artlens.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/artlens/artlens.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", artlenserr.Errorf(artlenserr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "artlens", "artlens.yaml"), nil
}

// BootstrapConfig writes the default commented config if none exists yet.
// It returns the path written, or "" when the file already existed or could
// not be written; failures are logged at debug level only.
func BootstrapConfig() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}
	if err := WriteDefault(cfgPath, false); err != nil {
		slog.Debug("skipping config bootstrap", "path", cfgPath, "error", err)
		return ""
	}
	slog.Info("created default config", "path", cfgPath)
	return cfgPath
}

// WriteDefault writes DefaultConfigYAML to path with 0600 permissions. An
// existing file is an error unless force is set.
func WriteDefault(path string, force bool) error {
	return Write(path, DefaultConfigYAML, force)
}

// Write writes a config file, creating its directory with 0700.
func Write(path string, data []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return artlenserr.New(artlenserr.CodeConfigAlreadyExists, "config file already exists",
				artlenserr.Field("path", path))
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return artlenserr.Wrap(err, artlenserr.CodeConfigLoadReadFailure, "creating config directory",
			artlenserr.Field("path", path))
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return artlenserr.Wrap(err, artlenserr.CodeConfigLoadReadFailure, "writing config",
			artlenserr.Field("path", path))
	}
	return nil
}
