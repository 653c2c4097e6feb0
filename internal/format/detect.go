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

package format

import (
	"encoding/hex"
	"encoding/json"
	"strings"
)

type CredentialFormat string

const (
	FormatSDJWT     CredentialFormat = "dc+sd-jwt"
	FormatJWT       CredentialFormat = "jwt"
	FormatMDOC      CredentialFormat = "mso_mdoc"
	FormatTrustList CredentialFormat = "trustlist"
	FormatUnknown   CredentialFormat = "unknown"
)

// Detect auto-detects the credential format from raw input.
//
// Detection order:
//  1. SD-JWT (contains '~')
//  2. mDOC (hex/base64url CBOR)
//  3. JWT (3 dot-separated parts) — payload inspected for a trust list marker
func Detect(input string) CredentialFormat {
	input = strings.TrimSpace(input)
	if input == "" {
		return FormatUnknown
	}

	// SD-JWT always contains ~ separators
	if strings.Contains(input, "~") {
		return FormatSDJWT
	}

	// mDOC, hex or base64url encoded CBOR
	if isHex(input) {
		b, err := hex.DecodeString(input)
		if err == nil && len(b) > 0 && isCBORStart(b[0]) {
			return FormatMDOC
		}
	}
	b, err := DecodeBase64URL(input)
	if err == nil && len(b) > 0 && isCBORStart(b[0]) {
		return FormatMDOC
	}

	parts := strings.Split(input, ".")
	if len(parts) == 3 && len(parts[0]) > 0 && len(parts[1]) > 0 {
		if isTrustListPayload(parts[1]) {
			return FormatTrustList
		}
		return FormatJWT
	}

	return FormatUnknown
}

func isTrustListPayload(payloadB64 string) bool {
	data, err := DecodeBase64URL(payloadB64)
	if err != nil {
		return false
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return false
	}
	_, ok := m["TrustedEntitiesList"]
	return ok
}

// isCBORStart checks if a byte looks like a CBOR map, array, or tag start.
func isCBORStart(b byte) bool {
	major := b >> 5
	return major == 5 || // map
		major == 6 || // tag (e.g. tag 24)
		major == 4 // array (DeviceResponse)
}
