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

package cmd

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	jose "github.com/go-jose/go-jose/v3"

	"github.com/dominikschlosser/wallet-core/internal/mock"
)

func TestParsePublicKeyPEM(t *testing.T) {
	key, err := mock.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	pub, err := parsePublicKey(pemBytes)
	if err != nil {
		t.Fatalf("parsePublicKey: %v", err)
	}
	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok || !ecPub.Equal(&key.PublicKey) {
		t.Errorf("parsed key = %T", pub)
	}
}

func TestParsePublicKeyJWK(t *testing.T) {
	key, err := mock.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	jwkJSON, err := (&jose.JSONWebKey{Key: &key.PublicKey}).MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}

	pub, err := parsePublicKey(jwkJSON)
	if err != nil {
		t.Fatalf("parsePublicKey: %v", err)
	}
	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok || !ecPub.Equal(&key.PublicKey) {
		t.Errorf("parsed key = %T", pub)
	}
}

func TestParsePublicKeyRejectsGarbage(t *testing.T) {
	if _, err := parsePublicKey([]byte("not a key")); err == nil {
		t.Error("expected error for garbage input")
	}
}
