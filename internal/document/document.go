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

// Package document models the locally stored credentials the wallet can
// present. The store itself is an external collaborator; the core only
// reads immutable snapshots through the narrow Store interface.
package document

import (
	"fmt"
	"sync"
	"time"
)

// Format identifies the credential format of a stored document.
type Format string

const (
	FormatMdoc  Format = "mso_mdoc"
	FormatSDJWT Format = "dc+sd-jwt"
)

// Document is one stored credential.
//
// Claims is a flattened view used for matching: mdoc data elements are
// keyed "namespace:element", SD-JWT claims by their resolved top-level
// name (nested values stay nested under that key).
type Document struct {
	ID      string
	Format  Format
	DocType string // mdoc only
	VCT     string // SD-JWT only
	Claims  map[string]any

	// Raw carries the issuer-signed material needed to build a
	// presentation: the IssuerSigned CBOR structure for mdoc, the
	// compact serialized SD-JWT (with disclosures) for SD-JWT VC.
	Raw []byte

	// KeyID names the device key bound to this credential in the
	// secure area. Empty means no usable key.
	KeyID string

	// Expiry is the credential validity end; zero means no expiry known.
	Expiry time.Time

	// IssuerMetadata is the resolved issuer display metadata, recorded
	// into transaction logs alongside presentations.
	IssuerMetadata map[string]any
}

// Usable reports whether the document can be presented at the given
// time: it must be unexpired and have a bound key.
func (d Document) Usable(now time.Time) bool {
	if d.KeyID == "" {
		return false
	}
	if !d.Expiry.IsZero() && now.After(d.Expiry) {
		return false
	}
	return true
}

// TypeLabel is the human-facing credential type, VCT for SD-JWT and
// doctype for mdoc.
func (d Document) TypeLabel() string {
	if d.VCT != "" {
		return d.VCT
	}
	return d.DocType
}

// Store is the read-side boundary to the wallet's credential storage.
// Implementations are expected to be safe for concurrent use.
type Store interface {
	List() []Document
	Get(id string) (Document, bool)
}

// MemoryStore is an in-memory Store for tests and the CLI.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document
	// order preserves insertion order for List.
	order []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Document)}
}

func (s *MemoryStore) Add(doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[doc.ID]; !exists {
		s.order = append(s.order, doc.ID)
	}
	s.docs[doc.ID] = doc
	return nil
}

func (s *MemoryStore) List() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.docs[id])
	}
	return out
}

func (s *MemoryStore) Get(id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	return doc, ok
}
