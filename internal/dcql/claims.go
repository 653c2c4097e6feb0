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

import (
	"github.com/dominikschlosser/wallet-core/internal/document"
)

// MatchesFormat checks if a document matches the requested format.
func MatchesFormat(doc document.Document, queryFormat string) bool {
	if queryFormat == "" {
		return true
	}
	return string(doc.Format) == queryFormat
}

// MatchesMeta checks format-specific metadata (vct_values, doctype_value).
func MatchesMeta(doc document.Document, meta *CredentialMeta) bool {
	if meta == nil {
		return true
	}

	if len(meta.VCTValues) > 0 {
		if doc.VCT == "" {
			return false
		}
		found := false
		for _, v := range meta.VCTValues {
			if v == doc.VCT {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if meta.DoctypeValue != "" && doc.DocType != meta.DoctypeValue {
		return false
	}

	return true
}

// SelectClaims determines which claim keys of the document satisfy the
// credential query. It returns nil when the document cannot satisfy it.
func SelectClaims(doc document.Document, cq CredentialQuery) []string {
	if len(cq.Claims) == 0 {
		// No specific claims requested, include all
		all := make([]string, 0, len(doc.Claims))
		for k := range doc.Claims {
			all = append(all, k)
		}
		return all
	}

	if len(cq.ClaimSets) > 0 {
		return selectFromClaimSets(doc, cq)
	}

	var selected []string
	for _, claim := range cq.Claims {
		key := ClaimKeyFromPath(doc, claim.Path)
		if key != "" {
			selected = append(selected, key)
		}
	}
	if len(selected) == 0 {
		return nil
	}
	return selected
}

// selectFromClaimSets picks the first satisfiable claim_set in
// preference order.
func selectFromClaimSets(doc document.Document, cq CredentialQuery) []string {
	for _, set := range cq.ClaimSets {
		var selected []string
		satisfiable := true
		for _, index := range set {
			if index < 0 || index >= len(cq.Claims) {
				satisfiable = false
				break
			}
			key := ClaimKeyFromPath(doc, cq.Claims[index].Path)
			if key == "" {
				satisfiable = false
				break
			}
			selected = append(selected, key)
		}
		if satisfiable && len(selected) > 0 {
			return selected
		}
	}
	return nil
}

// ClaimKeyFromPath resolves a DCQL claim path to a stored claim key.
// For SD-JWT: path is like ["given_name"] -> key "given_name"
//
//	nested object: ["address", "street_address"] -> validates subclaim exists, returns "address"
//	array wildcard: ["nationalities", nil] -> validates value is array, returns "nationalities"
//	array index:    ["nationalities", 0] -> validates array has enough elements, returns "nationalities"
//
// For mdoc: path is like ["org.iso.18013.5.1", "given_name"] -> key
// "org.iso.18013.5.1:given_name".
func ClaimKeyFromPath(doc document.Document, path []any) string {
	if len(path) == 0 {
		return ""
	}

	if doc.Format == document.FormatMdoc && len(path) >= 2 {
		ns, ok1 := path[0].(string)
		elem, ok2 := path[1].(string)
		if ok1 && ok2 {
			key := ns + ":" + elem
			if _, exists := doc.Claims[key]; exists {
				return key
			}
		}
		return ""
	}

	// SD-JWT
	key, ok := path[0].(string)
	if !ok {
		return ""
	}
	val, exists := doc.Claims[key]
	if !exists {
		return ""
	}

	if len(path) == 1 {
		return key
	}

	switch second := path[1].(type) {
	case string:
		obj, ok := val.(map[string]any)
		if !ok {
			return ""
		}
		if _, exists := obj[second]; !exists {
			return ""
		}
		return key
	case float64:
		arr, ok := val.([]any)
		if !ok {
			return ""
		}
		idx := int(second)
		if idx < 0 || idx >= len(arr) {
			return ""
		}
		return key
	case int:
		arr, ok := val.([]any)
		if !ok {
			return ""
		}
		if second < 0 || second >= len(arr) {
			return ""
		}
		return key
	case nil:
		if _, ok := val.([]any); !ok {
			return ""
		}
		return key
	default:
		return ""
	}
}
