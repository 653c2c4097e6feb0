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

package mdoc

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/dominikschlosser/wallet-core/internal/format"
)

// SessionTranscriptDCAPI builds the ISO 18013-7 Annex C session
// transcript binding a Digital Credentials API presentation to its
// calling origin:
//
//	[null, null, ["dcapi", SHA256(CBOR([encryptionInfoBase64, origin]))]]
//
// The encoding is bit-exact across implementations; verifiers recompute
// it independently.
func SessionTranscriptDCAPI(encryptionInfoBase64, origin string) ([]byte, error) {
	handoverInfo, err := cbor.Marshal([]any{encryptionInfoBase64, origin})
	if err != nil {
		return nil, fmt.Errorf("encoding dcapi handover info: %w", err)
	}
	hash := sha256.Sum256(handoverInfo)

	transcript, err := cbor.Marshal([]any{nil, nil, []any{"dcapi", hash[:]}})
	if err != nil {
		return nil, fmt.Errorf("encoding session transcript: %w", err)
	}
	return transcript, nil
}

// SessionTranscriptOID4VP builds the ISO 18013-7 B.4.4 session
// transcript for OpenID4VP:
//
//	[null, null, [SHA256(CBOR([clientId, mdocGeneratedNonce])),
//	              SHA256(CBOR([responseUri, mdocGeneratedNonce])), nonce]]
func SessionTranscriptOID4VP(clientID, responseURI, nonce, mdocGeneratedNonce string) ([]byte, error) {
	clientIDToHash, err := cbor.Marshal([]any{clientID, mdocGeneratedNonce})
	if err != nil {
		return nil, fmt.Errorf("encoding clientId handover: %w", err)
	}
	responseURIToHash, err := cbor.Marshal([]any{responseURI, mdocGeneratedNonce})
	if err != nil {
		return nil, fmt.Errorf("encoding responseUri handover: %w", err)
	}

	clientIDHash := sha256.Sum256(clientIDToHash)
	responseURIHash := sha256.Sum256(responseURIToHash)

	transcript, err := cbor.Marshal([]any{nil, nil, []any{clientIDHash[:], responseURIHash[:], nonce}})
	if err != nil {
		return nil, fmt.Errorf("encoding session transcript: %w", err)
	}
	return transcript, nil
}

// GeneratedNonce returns the wallet-generated nonce that salts the
// OpenID4VP session transcript, 16 random bytes as unpadded base64url.
func GeneratedNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	return format.EncodeBase64URL(buf), nil
}
