// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	"github.com/zalando/go-keyring"

	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// indexKeySuffix names the entry holding the JSON list of keys stored for a
// service; go-keyring cannot enumerate entries itself.
const indexKeySuffix = "::keys-index"

// KeyringStore keeps secrets in the OS keyring (Keychain, secret-service or
// Credential Manager) through zalando/go-keyring.
type KeyringStore struct{}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func checkRef(op, service, key string) error {
	if service == "" {
		return snerr.New(snerr.CodeSecretInvalidInput, "secret "+op+": service must not be empty")
	}
	if key == "" {
		return snerr.New(snerr.CodeSecretInvalidInput, "secret "+op+": key must not be empty")
	}
	return nil
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := checkRef("store", service, key); err != nil {
		return err
	}

	if err := keyring.Set(service, key, value); err != nil {
		return snerr.Wrapf(err, snerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}

	return s.updateIndex(service, func(keys []string) []string {
		if slices.Contains(keys, key) {
			return keys
		}
		return append(keys, key)
	})
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := checkRef("retrieve", service, key); err != nil {
		return "", err
	}

	val, err := keyring.Get(service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return "", snerr.Errorf(snerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	case err != nil:
		return "", snerr.Wrapf(err, snerr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkRef("delete", service, key); err != nil {
		return err
	}

	err := keyring.Delete(service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return snerr.Errorf(snerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	case err != nil:
		return snerr.Wrapf(err, snerr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}

	return s.updateIndex(service, func(keys []string) []string {
		return slices.DeleteFunc(keys, func(k string) bool { return k == key })
	})
}

// List returns the stored key names for service in insertion order.
func (s *KeyringStore) List(service string) ([]string, error) {
	raw, err := keyring.Get(service, service+indexKeySuffix)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, snerr.Wrapf(err, snerr.CodeSecretListFailure, "loading key index for service %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, snerr.Wrapf(err, snerr.CodeSecretListFailure, "decoding key index for service %s", service)
	}
	return keys, nil
}

func (s *KeyringStore) updateIndex(service string, edit func([]string) []string) error {
	keys, err := s.List(service)
	if err != nil {
		return err
	}
	keys = edit(keys)

	indexKey := service + indexKeySuffix
	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("failed to clean up empty key index", "service", service, "error", err)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return snerr.Wrapf(err, snerr.CodeSecretListFailure, "encoding key index for service %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return snerr.Wrapf(err, snerr.CodeSecretListFailure, "saving key index for service %s", service)
	}
	return nil
}
