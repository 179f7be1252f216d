// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package secrets

import (
	"errors"
	"strings"

	"github.com/spf13/viper"

	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

const keyringScheme = "keyring://"

// IsKeyringURI reports whether value uses the keyring:// scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// ParseKeyringURI splits keyring://service/key. The key may itself contain
// slashes.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", snerr.Errorf(snerr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}

	service, key, ok := strings.Cut(strings.TrimPrefix(uri, keyringScheme), "/")
	if !ok || service == "" || key == "" {
		return "", "", snerr.Errorf(snerr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}
	return service, key, nil
}

// KeyringURI builds the URI that refers to service/key.
func KeyringURI(service, key string) string {
	return keyringScheme + service + "/" + key
}

// ResolveKeyringURI returns the secret behind a keyring:// URI, or value
// unchanged when it is a literal.
func ResolveKeyringURI(store Store, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}

	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}

	secret, err := store.Retrieve(service, key)
	if err != nil {
		return "", snerr.Wrapf(err, snerr.CodeSecretResolveFailure, "resolving keyring URI %q", value)
	}
	return secret, nil
}

// ResolveViperSecrets replaces every keyring:// value held by v with the
// secret it points to. Entries that cannot be resolved are blanked, so an
// unresolved URI is never sent upstream as a credential, and reported
// together in the returned error.
func ResolveViperSecrets(v *viper.Viper, store Store) error {
	var errs []error
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if !IsKeyringURI(val) {
			continue
		}

		resolved, err := ResolveKeyringURI(store, val)
		if err != nil {
			v.Set(key, "")
			errs = append(errs, snerr.Wrapf(err, snerr.CodeSecretResolveFailure, "config key %s", key))
			continue
		}
		v.Set(key, resolved)
	}
	return errors.Join(errs...)
}
