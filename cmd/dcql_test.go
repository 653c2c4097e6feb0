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
	"testing"
	"time"

	"github.com/dominikschlosser/wallet-core/internal/dcql"
	"github.com/dominikschlosser/wallet-core/internal/document"
	"github.com/dominikschlosser/wallet-core/internal/mock"
)

func TestDocumentFromRawSDJWT(t *testing.T) {
	key, err := mock.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	token, err := mock.GenerateSDJWT(mock.SDJWTConfig{
		Issuer:    "https://issuer.example",
		VCT:       mock.DefaultPIDVCT,
		ExpiresIn: time.Hour,
		Claims:    mock.DefaultClaims,
		Key:       key,
	})
	if err != nil {
		t.Fatalf("GenerateSDJWT: %v", err)
	}

	doc, err := documentFromRaw("cred-1", token)
	if err != nil {
		t.Fatalf("documentFromRaw: %v", err)
	}
	if doc.Format != document.FormatSDJWT {
		t.Errorf("format = %q", doc.Format)
	}
	if doc.VCT != mock.DefaultPIDVCT {
		t.Errorf("vct = %q", doc.VCT)
	}
	if doc.Claims["given_name"] != "ERIKA" {
		t.Errorf("given_name = %v", doc.Claims["given_name"])
	}
}

func TestDocumentFromRawMdocMatchesGeneratedQuery(t *testing.T) {
	key, err := mock.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	encoded, err := mock.GenerateMDOC(mock.MDOCConfig{
		DocType:   "eu.europa.ec.eudi.pid.1",
		Namespace: "eu.europa.ec.eudi.pid.1",
		Claims:    map[string]any{"family_name": "MUSTERMANN"},
		Key:       key,
	})
	if err != nil {
		t.Fatalf("GenerateMDOC: %v", err)
	}

	doc, err := documentFromRaw("cred-1", encoded)
	if err != nil {
		t.Fatalf("documentFromRaw: %v", err)
	}
	if doc.Format != document.FormatMdoc {
		t.Errorf("format = %q", doc.Format)
	}

	query := dcql.FromDocument(doc)
	matches := dcql.Evaluate(query, []document.Document{doc}, time.Now(), nil)
	if len(matches) == 0 {
		t.Fatal("generated query should match its source credential")
	}
}

func TestDocumentFromRawRejectsGarbage(t *testing.T) {
	if _, err := documentFromRaw("cred-1", "definitely not a credential"); err == nil {
		t.Error("expected format detection error")
	}
}
