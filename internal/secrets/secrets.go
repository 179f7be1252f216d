// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package secrets

// DefaultService is the keyring service smartnotes stores its credentials
// under, e.g. keyring://smartnotes/embedding.api_key.
const DefaultService = "smartnotes"

// Store is a named-secret store keyed by service and key.
type Store interface {
	Store(service, key, value string) error

	// Retrieve returns CodeSecretNotFound when the key does not exist.
	Retrieve(service, key string) (string, error)

	// Delete returns CodeSecretNotFound when the key does not exist.
	Delete(service, key string) error

	List(service string) ([]string, error)
}
