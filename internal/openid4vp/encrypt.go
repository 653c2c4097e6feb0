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

package openid4vp

import (
	"crypto"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"

	jose "github.com/go-jose/go-jose/v3"
)

// extractEncryptionKey extracts the verifier's EC public key and kid from
// client_metadata.jwks.keys[0].
func extractEncryptionKey(reqObj *ResolvedRequestObject) (*ecdsa.PublicKey, string, error) {
	jwkMap, err := firstJWK(reqObj)
	if err != nil {
		return nil, "", err
	}

	jwkJSON, err := json.Marshal(jwkMap)
	if err != nil {
		return nil, "", fmt.Errorf("marshaling JWK: %w", err)
	}

	var jwk jose.JSONWebKey
	if err := jwk.UnmarshalJSON(jwkJSON); err != nil {
		return nil, "", fmt.Errorf("parsing JWK: %w", err)
	}

	pubKey, ok := jwk.Key.(*ecdsa.PublicKey)
	if !ok {
		return nil, "", fmt.Errorf("encryption key is not an EC public key")
	}

	return pubKey, jwk.KeyID, nil
}

// HasEncryptionKey reports whether the request object carries an encryption JWK.
func HasEncryptionKey(reqObj *ResolvedRequestObject) bool {
	_, _, err := extractEncryptionKey(reqObj)
	return err == nil
}

// JWKThumbprint extracts the encryption JWK from client_metadata.jwks.keys[0]
// and computes its RFC 7638 thumbprint (SHA-256). Returns nil if no key is found.
func JWKThumbprint(reqObj *ResolvedRequestObject) []byte {
	jwkMap, err := firstJWK(reqObj)
	if err != nil {
		return nil
	}

	jwkJSON, err := json.Marshal(jwkMap)
	if err != nil {
		return nil
	}

	var jwk jose.JSONWebKey
	if err := jwk.UnmarshalJSON(jwkJSON); err != nil {
		return nil
	}

	thumbprint, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil
	}
	return thumbprint
}

func firstJWK(reqObj *ResolvedRequestObject) (map[string]any, error) {
	if reqObj == nil {
		return nil, fmt.Errorf("no request object")
	}

	jwks, ok := reqObj.ClientMetadata["jwks"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("no jwks in client_metadata")
	}

	keysSlice, ok := jwks["keys"].([]any)
	if !ok || len(keysSlice) == 0 {
		return nil, fmt.Errorf("no keys in jwks")
	}

	jwkMap, ok := keysSlice[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid key format")
	}
	return jwkMap, nil
}

// EncryptResponse encrypts the authorization response as a JWE for
// direct_post.jwt response mode. mdocNonce, when non-empty, becomes the
// apu header per ISO 18013-7 Annex B.
func EncryptResponse(vpToken any, state string, submission map[string]any, mdocNonce string, reqObj *ResolvedRequestObject) (string, error) {
	payload := map[string]any{
		"vp_token": vpToken,
	}
	if state != "" {
		payload["state"] = state
	}
	if submission != nil {
		payload["presentation_submission"] = submission
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling response payload: %w", err)
	}

	encKey, kid, err := extractEncryptionKey(reqObj)
	if err != nil {
		return "", fmt.Errorf("extracting encryption key: %w", err)
	}

	enc := "A128GCM"
	if supported, ok := reqObj.ClientMetadata["authorization_encrypted_response_enc"].(string); ok && supported != "" {
		enc = supported
	}

	var apu []byte
	if mdocNonce != "" {
		apu = []byte(mdocNonce)
	}
	// apv identifies the recipient key per RFC 7518 §4.6.2; the RFC
	// 7638 thumbprint of the encryption JWK serves as its identifier.
	apv := JWKThumbprint(reqObj)

	return encryptJWE(payloadJSON, encKey, kid, enc, apu, apv)
}
