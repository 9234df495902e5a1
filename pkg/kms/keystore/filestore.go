/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-jose/go-jose/v3"
)

const keyFileMode = 0o600

// FileStore persists the private JWK as JSON at a fixed path. The public key
// is derived on load.
type FileStore struct {
	path string
}

// NewFileStore builds a file-backed key store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the stored key pair. A missing file is not an error: it returns
// (nil, nil) so the caller can decide to generate.
func (s *FileStore) Load() (*KeyPair, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("%w: read %s: %s", ErrKeyLoad, s.path, err)
	}

	private := &jose.JSONWebKey{}
	if err := json.Unmarshal(raw, private); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %s", ErrKeyLoad, s.path, err)
	}

	if private.IsPublic() {
		return nil, fmt.Errorf("%w: %s holds no private key material", ErrKeyLoad, s.path)
	}

	public := private.Public()

	return &KeyPair{PublicKey: &public, PrivateKey: private}, nil
}

// Save writes the private JWK, creating parent directories as needed.
func (s *FileStore) Save(pair *KeyPair) error {
	raw, err := pair.PrivateKey.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create key directory: %w", err)
		}
	}

	if err := os.WriteFile(s.path, raw, keyFileMode); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}

	return nil
}
