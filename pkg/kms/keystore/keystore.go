/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package keystore manages the JSON Web Key pair used for credential signing.
package keystore

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v3"
)

// ErrKeyLoad is returned when stored key material cannot be loaded or parsed.
var ErrKeyLoad = errors.New("key load failed")

const (
	// DefaultHost anchors the fixed key-identifier convention when no
	// caller-supplied key is provided.
	DefaultHost = "dataspace4health.lu"

	// DefaultKeySize is the modulus size of generated RSA keys.
	DefaultKeySize = 4096

	defaultAlgorithm = string(jose.PS256)
)

// KeyID returns the fixed did:web key-identifier convention for a host.
func KeyID(host string) string {
	return "did:web:" + host + "#key-0"
}

// KeyPair holds a signing key and its public counterpart in JWK form.
type KeyPair struct {
	PublicKey  *jose.JSONWebKey
	PrivateKey *jose.JSONWebKey
}

// Store persists one key pair at a fixed location. Load returns (nil, nil)
// when no key material exists yet.
type Store interface {
	Load() (*KeyPair, error)
	Save(pair *KeyPair) error
}

// Generate creates a fresh RSA key pair under the fixed key-identifier
// convention.
func Generate(host string) (*KeyPair, error) {
	return GenerateWithSize(host, DefaultKeySize)
}

// GenerateWithSize creates a fresh RSA key pair with the given modulus size.
func GenerateWithSize(host string, bits int) (*KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate RSA key: %w", err)
	}

	private := &jose.JSONWebKey{
		Key:       key,
		KeyID:     KeyID(host),
		Algorithm: defaultAlgorithm,
		Use:       "sig",
	}

	public := private.Public()

	return &KeyPair{PublicKey: &public, PrivateKey: private}, nil
}

// LoadOrCreate returns the stored key pair, generating and persisting a new
// one when the store is empty.
func LoadOrCreate(store Store, host string) (*KeyPair, error) {
	pair, err := store.Load()
	if err != nil {
		return nil, err
	}

	if pair != nil {
		return pair, nil
	}

	pair, err = Generate(host)
	if err != nil {
		return nil, err
	}

	if err := store.Save(pair); err != nil {
		return nil, err
	}

	return pair, nil
}
