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

package sdjwt

import (
	"crypto"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dominikschlosser/wallet-core/internal/format"
	"github.com/dominikschlosser/wallet-core/internal/keys"
)

// Present builds a selective-disclosure presentation of the token: the
// issuer-signed JWT, the disclosures needed for the selected top-level
// claims (including every nested disclosure they reference), and a
// key-binding JWT over aud, nonce and the sd_hash of the presentation.
func Present(token *Token, selectedClaims []string, signer crypto.Signer, aud, nonce string) (string, error) {
	if token == nil {
		return "", fmt.Errorf("no token to present")
	}

	kept := selectDisclosures(token, selectedClaims)

	parts := []string{strings.SplitN(token.Raw, "~", 2)[0]}
	for _, d := range kept {
		parts = append(parts, d.Raw)
	}
	presentation := strings.Join(parts, "~") + "~"

	if signer == nil {
		return presentation, nil
	}

	kbJWT, err := buildKeyBindingJWT(presentation, signer, aud, nonce)
	if err != nil {
		return "", fmt.Errorf("building key binding JWT: %w", err)
	}
	return presentation + kbJWT, nil
}

// selectDisclosures keeps the disclosures for the selected top-level
// claims and chases digest references into nested object and array
// disclosures until no new digest is needed.
func selectDisclosures(token *Token, selectedClaims []string) []Disclosure {
	selected := make(map[string]bool, len(selectedClaims))
	for _, c := range selectedClaims {
		selected[c] = true
	}

	needed := make(map[string]bool)

	// Claims plainly visible in the payload can still reference array
	// entry disclosures.
	for k, v := range token.Payload {
		if selected[k] {
			collectDigests(v, needed)
		}
	}

	keep := make(map[string]bool)
	for {
		changed := false
		for _, d := range token.Disclosures {
			if keep[d.Digest] {
				continue
			}
			if (!d.IsArrayEntry && selected[d.Name]) || needed[d.Digest] {
				keep[d.Digest] = true
				collectDigests(d.Value, needed)
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	var kept []Disclosure
	for _, d := range token.Disclosures {
		if keep[d.Digest] {
			kept = append(kept, d)
		}
	}
	return kept
}

// collectDigests gathers every _sd and array-entry digest referenced
// inside a disclosure value.
func collectDigests(v any, needed map[string]bool) {
	switch val := v.(type) {
	case map[string]any:
		if sdArr, ok := val["_sd"].([]any); ok {
			for _, d := range sdArr {
				if s, ok := d.(string); ok {
					needed[s] = true
				}
			}
		}
		for k, sub := range val {
			if k == "_sd" || k == "_sd_alg" {
				continue
			}
			collectDigests(sub, needed)
		}
	case []any:
		for _, item := range val {
			if obj, ok := item.(map[string]any); ok {
				if digest, ok := obj["..."].(string); ok {
					needed[digest] = true
					continue
				}
			}
			collectDigests(item, needed)
		}
	}
}

func buildKeyBindingJWT(presentation string, signer crypto.Signer, aud, nonce string) (string, error) {
	hash := sha256.Sum256([]byte(presentation))

	header := map[string]any{
		"typ": "kb+jwt",
		"alg": "ES256",
	}
	payload := map[string]any{
		"iat":     time.Now().Unix(),
		"aud":     aud,
		"nonce":   nonce,
		"sd_hash": format.EncodeBase64URL(hash[:]),
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	signingInput := format.EncodeBase64URL(headerJSON) + "." + format.EncodeBase64URL(payloadJSON)
	sig, err := keys.SignES256Raw(signer, []byte(signingInput))
	if err != nil {
		return "", err
	}

	return signingInput + "." + format.EncodeBase64URL(sig), nil
}
