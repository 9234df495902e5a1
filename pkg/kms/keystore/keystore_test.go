/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyID(t *testing.T) {
	require.Equal(t, "did:web:dataspace4health.lu#key-0", KeyID(DefaultHost))
	require.Equal(t, "did:web:example.org#key-0", KeyID("example.org"))
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "private.json")
	store := NewFileStore(path)

	// empty store is not an error
	pair, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, pair)

	generated, err := GenerateWithSize("example.org", 2048)
	require.NoError(t, err)
	require.NoError(t, store.Save(generated))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, "did:web:example.org#key-0", loaded.PrivateKey.KeyID)
	require.Equal(t, generated.PrivateKey.Algorithm, loaded.PrivateKey.Algorithm)
	require.True(t, loaded.PublicKey.IsPublic())
}

func TestFileStoreCorruptKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "private.json")
	require.NoError(t, os.WriteFile(path, []byte("not a jwk"), 0o600))

	_, err := NewFileStore(path).Load()
	require.ErrorIs(t, err, ErrKeyLoad)
}

func TestLoadOrCreate(t *testing.T) {
	store := &fakeStore{}

	pair, err := LoadOrCreate(store, "example.org")
	require.NoError(t, err)
	require.NotNil(t, pair)
	require.Same(t, pair, store.saved)

	// second call returns the stored pair without regenerating
	again, err := LoadOrCreate(store, "example.org")
	require.NoError(t, err)
	require.Same(t, pair, again)
}

type fakeStore struct {
	saved *KeyPair
}

func (s *fakeStore) Load() (*KeyPair, error) {
	return s.saved, nil
}

func (s *fakeStore) Save(pair *KeyPair) error {
	s.saved = pair
	return nil
}
