// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

// Package secrets keeps provider API keys out of config files by storing
// them in the OS keyring and referencing them as keyring://service/key.
package secrets

import (
	"errors"

	"github.com/zalando/go-keyring"

	artlenserr "github.com/artlens/artlens/pkg/errors"
)

// DefaultService is the keyring service used by artlens init.
const DefaultService = "artlens"

// Store saves and reads secrets by (service, key).
type Store interface {
	Set(service, key, value string) error
	// Get returns an error with CodeSecretNotFound for unknown keys.
	Get(service, key string) (string, error)
	Delete(service, key string) error
}

// Keyring is a Store backed by the OS keyring (Keychain, Secret Service or
// Credential Manager).
type Keyring struct{}

func NewKeyring() *Keyring { return &Keyring{} }

func (Keyring) Set(service, key, value string) error {
	if err := checkAddress(service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return artlenserr.Wrapf(err, artlenserr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	return nil
}

func (Keyring) Get(service, key string) (string, error) {
	if err := checkAddress(service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", artlenserr.Errorf(artlenserr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return "", artlenserr.Wrapf(err, artlenserr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (Keyring) Delete(service, key string) error {
	if err := checkAddress(service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return artlenserr.Errorf(artlenserr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return artlenserr.Wrapf(err, artlenserr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}
	return nil
}

func checkAddress(service, key string) error {
	if service == "" || key == "" {
		return artlenserr.New(artlenserr.CodeSecretInvalidInput, "secret service and key must not be empty")
	}
	return nil
}
