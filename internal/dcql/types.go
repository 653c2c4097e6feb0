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

package dcql

// QueryID is the unique key of one credential query within a request.
type QueryID string

// Query is a DCQL query (OID4VP 1.0 Section 6).
type Query struct {
	Credentials    []CredentialQuery    `json:"credentials"`
	CredentialSets []CredentialSetQuery `json:"credential_sets,omitempty"`
}

// CredentialQuery defines a single credential request.
type CredentialQuery struct {
	ID     QueryID         `json:"id"`
	Format string          `json:"format"`
	Meta   *CredentialMeta `json:"meta,omitempty"`
	Claims []ClaimQuery    `json:"claims,omitempty"`
	// ClaimSets lists preference-ordered index sets into Claims; the
	// first fully satisfiable set wins.
	ClaimSets [][]int `json:"claim_sets,omitempty"`
}

// CredentialMeta contains format-specific metadata.
type CredentialMeta struct {
	VCTValues    []string `json:"vct_values,omitempty"`
	DoctypeValue string   `json:"doctype_value,omitempty"`
}

// ClaimQuery defines a single claim request.
// Path elements are strings (object keys), numbers (array indexes) or
// nil (array wildcard).
type ClaimQuery struct {
	Path           []any `json:"path"`
	IntentToRetain bool  `json:"intent_to_retain,omitempty"`
}

// CredentialSetQuery is a requirement group over credential queries.
// Options is preference-ordered; an option is satisfied only when every
// listed query id has at least one matching stored credential.
type CredentialSetQuery struct {
	Purpose  any         `json:"purpose,omitempty"`
	Required *bool       `json:"required,omitempty"`
	Options  [][]QueryID `json:"options"`
}

// IsRequired reports the group's requiredness, defaulting to true when
// the field is absent.
func (s CredentialSetQuery) IsRequired() bool {
	return s.Required == nil || *s.Required
}
