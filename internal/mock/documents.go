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

package mock

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dominikschlosser/wallet-core/internal/document"
)

// SDJWTDocument generates a mock SD-JWT credential and wraps it as a
// store-ready document bound to the given device key.
func SDJWTDocument(id, keyID string, cfg SDJWTConfig) (document.Document, error) {
	token, err := GenerateSDJWT(cfg)
	if err != nil {
		return document.Document{}, fmt.Errorf("generating SD-JWT: %w", err)
	}

	claims := make(map[string]any, len(cfg.Claims))
	for name, value := range cfg.Claims {
		claims[name] = value
	}

	doc := document.Document{
		ID:     id,
		Format: document.FormatSDJWT,
		VCT:    cfg.VCT,
		Claims: claims,
		Raw:    []byte(token),
		KeyID:  keyID,
	}
	if cfg.ExpiresIn > 0 {
		doc.Expiry = time.Now().Add(cfg.ExpiresIn)
	}
	return doc, nil
}

// MdocDocument generates a mock mdoc credential and wraps it as a
// store-ready document. Claims are keyed namespace:element the way the
// query matcher expects for this format.
func MdocDocument(id, keyID string, cfg MDOCConfig) (document.Document, error) {
	encoded, err := GenerateMDOC(cfg)
	if err != nil {
		return document.Document{}, fmt.Errorf("generating mdoc: %w", err)
	}
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return document.Document{}, fmt.Errorf("decoding mdoc: %w", err)
	}

	claims := make(map[string]any, len(cfg.Claims))
	for name, value := range cfg.Claims {
		claims[cfg.Namespace+":"+name] = value
	}

	return document.Document{
		ID:      id,
		Format:  document.FormatMdoc,
		DocType: cfg.DocType,
		Claims:  claims,
		Raw:     raw,
		KeyID:   keyID,
		Expiry:  time.Now().Add(90 * 24 * time.Hour),
	}, nil
}
