// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package secrets

import (
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	artlenserr "github.com/artlens/artlens/pkg/errors"
)

const scheme = "keyring://"

// IsURI reports whether value is a keyring:// reference.
func IsURI(value string) bool {
	return strings.HasPrefix(value, scheme)
}

// URI builds keyring://service/key.
func URI(service, key string) string {
	return scheme + service + "/" + key
}

// ParseURI splits keyring://service/key.
func ParseURI(uri string) (service, key string, err error) {
	rest, ok := strings.CutPrefix(uri, scheme)
	if !ok {
		return "", "", artlenserr.Errorf(artlenserr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}
	service, key, ok = strings.Cut(rest, "/")
	if !ok || service == "" || key == "" {
		return "", "", artlenserr.Errorf(artlenserr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}
	return service, key, nil
}

// Resolve returns the secret a keyring URI points at, or value unchanged
// when it is not a URI.
func Resolve(s Store, value string) (string, error) {
	if !IsURI(value) {
		return value, nil
	}
	service, key, err := ParseURI(value)
	if err != nil {
		return "", err
	}
	secret, err := s.Get(service, key)
	if err != nil {
		return "", artlenserr.Wrapf(err, artlenserr.CodeSecretResolveFailure, "resolving %q", value)
	}
	return secret, nil
}

// ResolveViper replaces every keyring URI held by v with its secret. A
// failed lookup is logged and the URI is kept, so the provider that needs
// the key reports the problem when it is built.
func ResolveViper(v *viper.Viper, s Store) {
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if !IsURI(val) {
			continue
		}
		resolved, err := Resolve(s, val)
		if err != nil {
			slog.Warn("could not resolve keyring reference", "config_key", key, "error", err)
			continue
		}
		v.Set(key, resolved)
	}
}
