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

package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/asn1"
	"fmt"
	"math/big"
)

// SignES256Raw signs data with SHA-256 and returns the JOSE/COSE raw
// r||s signature (64 bytes for P-256).
func SignES256Raw(signer crypto.Signer, data []byte) ([]byte, error) {
	h := sha256.Sum256(data)
	der, err := signer.Sign(rand.Reader, h[:], crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("signing: %w", err)
	}

	pub, ok := signer.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("signer is not an EC key")
	}
	return derToRaw(der, (pub.Curve.Params().BitSize+7)/8)
}

// derToRaw converts an ASN.1 DER ECDSA signature to fixed-width r||s.
func derToRaw(der []byte, keySize int) ([]byte, error) {
	var sig struct {
		R, S *big.Int
	}
	if _, err := asn1.Unmarshal(der, &sig); err != nil {
		return nil, fmt.Errorf("parsing DER signature: %w", err)
	}

	raw := make([]byte, 2*keySize)
	rBytes := sig.R.Bytes()
	sBytes := sig.S.Bytes()
	if len(rBytes) > keySize || len(sBytes) > keySize {
		return nil, fmt.Errorf("signature component exceeds key size")
	}
	copy(raw[keySize-len(rBytes):keySize], rBytes)
	copy(raw[2*keySize-len(sBytes):], sBytes)
	return raw, nil
}
