// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package secrets_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/OlesyaDud/smart-notes/internal/secrets"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

func init() {
	// Tests never touch the real OS keyring.
	keyring.MockInit()
}

var _ secrets.Store = (*secrets.KeyringStore)(nil)

func TestKeyringStore_StoreAndRetrieve(t *testing.T) {
	ks := secrets.NewKeyringStore()

	require.NoError(t, ks.Store("test-roundtrip", "embedding.api_key", "sk-secret-123"))

	val, err := ks.Retrieve("test-roundtrip", "embedding.api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-secret-123", val)
}

func TestKeyringStore_NotFound(t *testing.T) {
	ks := secrets.NewKeyringStore()

	_, err := ks.Retrieve("no-such-service", "no-key")
	require.Error(t, err)
	assert.True(t, snerr.HasCode(err, snerr.CodeSecretNotFound), "got: %v", err)
	assert.True(t, snerr.IsNotFound(err))

	err = ks.Delete("no-such-service", "no-key")
	require.Error(t, err)
	assert.True(t, snerr.HasCode(err, snerr.CodeSecretNotFound), "got: %v", err)
}

func TestKeyringStore_Delete(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := "test-delete"

	require.NoError(t, ks.Store(svc, "telegram.token", "123:abc"))
	require.NoError(t, ks.Delete(svc, "telegram.token"))

	_, err := ks.Retrieve(svc, "telegram.token")
	assert.True(t, snerr.HasCode(err, snerr.CodeSecretNotFound))

	keys, err := ks.List(svc)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestKeyringStore_List(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := "test-list"

	keys, err := ks.List(svc)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, ks.Store(svc, "key-a", "val-a"))
	require.NoError(t, ks.Store(svc, "key-b", "val-b"))
	require.NoError(t, ks.Store(svc, "key-a", "val-a2"))
	require.NoError(t, ks.Store(svc, "key-c", "val-c"))
	require.NoError(t, ks.Delete(svc, "key-b"))

	keys, err = ks.List(svc)
	require.NoError(t, err)
	assert.Equal(t, []string{"key-a", "key-c"}, keys)

	val, err := ks.Retrieve(svc, "key-a")
	require.NoError(t, err)
	assert.Equal(t, "val-a2", val)
}

func TestKeyringStore_InvalidInput(t *testing.T) {
	ks := secrets.NewKeyringStore()

	tests := []struct {
		name    string
		service string
		key     string
	}{
		{"empty service", "", "key"},
		{"empty key", "svc", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ks.Store(tt.service, tt.key, "val")
			assert.True(t, snerr.HasCode(err, snerr.CodeSecretInvalidInput))

			_, err = ks.Retrieve(tt.service, tt.key)
			assert.True(t, snerr.HasCode(err, snerr.CodeSecretInvalidInput))

			err = ks.Delete(tt.service, tt.key)
			assert.True(t, snerr.HasCode(err, snerr.CodeSecretInvalidInput))
		})
	}
}

func TestKeyringStore_EmptyValueAllowed(t *testing.T) {
	ks := secrets.NewKeyringStore()

	require.NoError(t, ks.Store("test-empty", "key", ""))
	val, err := ks.Retrieve("test-empty", "key")
	require.NoError(t, err)
	assert.Empty(t, val)
}

func TestKeyringStore_IsolatedServices(t *testing.T) {
	ks := secrets.NewKeyringStore()

	require.NoError(t, ks.Store("svc-a", "shared-key", "value-a"))
	require.NoError(t, ks.Store("svc-b", "shared-key", "value-b"))

	valA, err := ks.Retrieve("svc-a", "shared-key")
	require.NoError(t, err)
	assert.Equal(t, "value-a", valA)

	valB, err := ks.Retrieve("svc-b", "shared-key")
	require.NoError(t, err)
	assert.Equal(t, "value-b", valB)
}
