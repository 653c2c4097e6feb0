// Copyright 2025 Dominik Schlosser
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package keys abstracts the platform secure area holding device-bound
// credential keys. The wallet core never sees raw private keys for
// platform-backed documents; it asks the secure area for a crypto.Signer
// and handles the locked-key case explicitly.
package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
)

// Algorithm identifies a signature algorithm for response generation.
type Algorithm string

const (
	AlgorithmES256 Algorithm = "ES256"
	AlgorithmES384 Algorithm = "ES384"
	AlgorithmES512 Algorithm = "ES512"
)

// ErrKeyLocked is returned when a key requires user authentication before
// it can sign. Callers re-prompt, obtain UnlockData and retry.
var ErrKeyLocked = errors.New("key is locked: user authentication required")

// UnlockData carries the user-authentication material required to unlock a
// key for a single signing operation.
type UnlockData struct {
	KeyID      string
	Passphrase string
}

// SecureArea is the narrow interface to the platform key store.
type SecureArea interface {
	// Signer returns a signer for the key bound to keyID. When the key is
	// protected by user authentication and unlock is nil or does not match,
	// it returns ErrKeyLocked.
	Signer(keyID string, unlock *UnlockData) (crypto.Signer, error)
}

// SoftwareSecureArea is an in-memory SecureArea used by tests and the CLI.
type SoftwareSecureArea struct {
	mu   sync.Mutex
	keys map[string]*softwareKey
}

type softwareKey struct {
	key        *ecdsa.PrivateKey
	passphrase string // empty means never locked
}

func NewSoftwareSecureArea() *SoftwareSecureArea {
	return &SoftwareSecureArea{keys: make(map[string]*softwareKey)}
}

// CreateKey generates a P-256 key under keyID. A non-empty passphrase makes
// the key require matching UnlockData on every signing operation.
func (s *SoftwareSecureArea) CreateKey(keyID, passphrase string) (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[keyID] = &softwareKey{key: key, passphrase: passphrase}
	return key, nil
}

// ImportKey registers an existing key under keyID.
func (s *SoftwareSecureArea) ImportKey(keyID string, key *ecdsa.PrivateKey, passphrase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[keyID] = &softwareKey{key: key, passphrase: passphrase}
}

func (s *SoftwareSecureArea) Signer(keyID string, unlock *UnlockData) (crypto.Signer, error) {
	s.mu.Lock()
	sk, ok := s.keys[keyID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no key with id %s", keyID)
	}
	if sk.passphrase != "" {
		if unlock == nil || unlock.Passphrase != sk.passphrase {
			return nil, ErrKeyLocked
		}
	}
	return sk.key, nil
}
