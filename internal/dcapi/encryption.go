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

package dcapi

import (
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/hpke"
	"github.com/fxamacker/cbor/v2"

	"github.com/dominikschlosser/wallet-core/internal/format"
)

// encryptionInfo is the decoded recipient material from the request's
// encryptionInfo blob: base64url(CBOR(["dcapi", {nonce, recipientPublicKey}])).
type encryptionInfo struct {
	Nonce []byte
	// RecipientPublicKey is the verifier's P-256 key as an uncompressed
	// SEC1 point.
	RecipientPublicKey []byte
}

type encryptionParams struct {
	Nonce              []byte          `cbor:"nonce"`
	RecipientPublicKey cbor.RawMessage `cbor:"recipientPublicKey"`
}

// coseKey is the EC2 subset of a COSE_Key (RFC 9052 §7).
type coseKey struct {
	Kty int    `cbor:"1,keyasint"`
	Crv int    `cbor:"-1,keyasint"`
	X   []byte `cbor:"-2,keyasint"`
	Y   []byte `cbor:"-3,keyasint"`
}

const (
	coseKtyEC2  = 2
	coseCrvP256 = 1
)

// parseEncryptionInfo decodes the base64url encryptionInfo blob and
// validates the recipient key is a P-256 EC2 COSE_Key.
func parseEncryptionInfo(encryptionInfoB64 string) (*encryptionInfo, error) {
	raw, err := format.DecodeBase64URL(encryptionInfoB64)
	if err != nil {
		return nil, fmt.Errorf("decoding encryptionInfo: %w", err)
	}

	var outer []cbor.RawMessage
	if err := cbor.Unmarshal(raw, &outer); err != nil {
		return nil, fmt.Errorf("parsing encryptionInfo CBOR: %w", err)
	}
	if len(outer) != 2 {
		return nil, fmt.Errorf("encryptionInfo must be a 2-element array, got %d", len(outer))
	}

	var label string
	if err := cbor.Unmarshal(outer[0], &label); err != nil || label != "dcapi" {
		return nil, fmt.Errorf("encryptionInfo label is not dcapi")
	}

	var params encryptionParams
	if err := cbor.Unmarshal(outer[1], &params); err != nil {
		return nil, fmt.Errorf("parsing encryption parameters: %w", err)
	}
	if len(params.RecipientPublicKey) == 0 {
		return nil, fmt.Errorf("encryptionInfo has no recipientPublicKey")
	}

	var key coseKey
	if err := cbor.Unmarshal(params.RecipientPublicKey, &key); err != nil {
		return nil, fmt.Errorf("parsing recipientPublicKey: %w", err)
	}
	if key.Kty != coseKtyEC2 || key.Crv != coseCrvP256 {
		return nil, fmt.Errorf("recipientPublicKey must be an EC2 P-256 key")
	}
	if len(key.X) == 0 || len(key.Y) == 0 {
		return nil, fmt.Errorf("recipientPublicKey is missing coordinates")
	}

	point := make([]byte, 0, 65)
	point = append(point, 0x04)
	point = append(point, pad32(key.X)...)
	point = append(point, pad32(key.Y)...)

	return &encryptionInfo{
		Nonce:              params.Nonce,
		RecipientPublicKey: point,
	}, nil
}

func pad32(b []byte) []byte {
	if len(b) >= 32 {
		return b
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// hpkeSeal encrypts plaintext for the recipient using HPKE base mode
// with DHKEM(P-256, HKDF-SHA256), HKDF-SHA256 and AES-128-GCM, the
// suite ISO 18013-7 Annex C fixes for DCAPI responses. The session
// transcript is bound as AAD. Returns the ephemeral encapsulated key
// and the ciphertext.
func hpkeSeal(recipientPoint, plaintext, sessionTranscript []byte) (enc, ciphertext []byte, err error) {
	kem := hpke.KEM_P256_HKDF_SHA256
	suite := hpke.NewSuite(kem, hpke.KDF_HKDF_SHA256, hpke.AEAD_AES128GCM)

	pub, err := kem.Scheme().UnmarshalBinaryPublicKey(recipientPoint)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing recipient key: %w", err)
	}

	sender, err := suite.NewSender(pub, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating HPKE sender: %w", err)
	}
	enc, sealer, err := sender.Setup(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("HPKE setup: %w", err)
	}
	ciphertext, err = sealer.Seal(plaintext, sessionTranscript)
	if err != nil {
		return nil, nil, fmt.Errorf("HPKE seal: %w", err)
	}
	return enc, ciphertext, nil
}
