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
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestSessionTranscriptDCAPIGoldenBytes(t *testing.T) {
	// Fixed vector: the transcript must be byte-for-byte stable.
	transcript, err := SessionTranscriptDCAPI("AQID", "https://example.com")
	if err != nil {
		t.Fatalf("SessionTranscriptDCAPI: %v", err)
	}

	want, err := hex.DecodeString("83f6f68265646361706958209d9d4338ec5332e197b1c2151b4ad891b279e5272771d6e04f97598dc993e598")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(transcript, want) {
		t.Fatalf("transcript = %x, want %x", transcript, want)
	}
}

func TestSessionTranscriptOID4VPStructure(t *testing.T) {
	transcript, err := SessionTranscriptOID4VP("client.example", "https://verifier.example/response", "nonce-1", "mdoc-nonce")
	if err != nil {
		t.Fatalf("SessionTranscriptOID4VP: %v", err)
	}

	var arr []any
	if err := cborDecMode.Unmarshal(transcript, &arr); err != nil {
		t.Fatalf("decoding transcript: %v", err)
	}
	if len(arr) != 3 || arr[0] != nil || arr[1] != nil {
		t.Fatalf("transcript shape = %v", arr)
	}

	handover, ok := arr[2].([]any)
	if !ok || len(handover) != 3 {
		t.Fatalf("handover = %v", arr[2])
	}

	clientIDToHash, _ := cbor.Marshal([]any{"client.example", "mdoc-nonce"})
	wantClientHash := sha256.Sum256(clientIDToHash)
	if got, ok := handover[0].([]byte); !ok || !bytes.Equal(got, wantClientHash[:]) {
		t.Errorf("clientIdHash = %x, want %x", handover[0], wantClientHash)
	}
	if handover[2] != "nonce-1" {
		t.Errorf("nonce = %v, want nonce-1", handover[2])
	}
}

func TestGeneratedNonce(t *testing.T) {
	n1, err := GeneratedNonce()
	if err != nil {
		t.Fatalf("GeneratedNonce: %v", err)
	}
	n2, err := GeneratedNonce()
	if err != nil {
		t.Fatalf("GeneratedNonce: %v", err)
	}
	if n1 == n2 {
		t.Error("nonces must be random")
	}
	// 16 bytes -> 22 base64url chars, no padding
	if len(n1) != 22 {
		t.Errorf("nonce length = %d, want 22", len(n1))
	}
}
