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
	"sort"
	"strings"

	"github.com/dominikschlosser/wallet-core/internal/document"
)

// FromDocument generates a DCQL query requesting every claim of a
// stored document, CLI convenience for exercising the matcher.
func FromDocument(doc document.Document) *Query {
	id := sanitizeID(doc.TypeLabel())
	if id == "" {
		id = "credential_0"
	}

	cq := CredentialQuery{ID: QueryID(id), Format: string(doc.Format)}

	switch doc.Format {
	case document.FormatMdoc:
		cq.Claims = mdocClaimQueries(doc)
		if doc.DocType != "" {
			cq.Meta = &CredentialMeta{DoctypeValue: doc.DocType}
		}
	default:
		cq.Claims = sdjwtClaimQueries(doc)
		if doc.VCT != "" {
			cq.Meta = &CredentialMeta{VCTValues: []string{doc.VCT}}
		}
	}

	return &Query{Credentials: []CredentialQuery{cq}}
}

func mdocClaimQueries(doc document.Document) []ClaimQuery {
	var claims []ClaimQuery
	for _, key := range sortedKeys(doc.Claims) {
		ns, elem, ok := strings.Cut(key, ":")
		if !ok {
			continue
		}
		claims = append(claims, ClaimQuery{Path: []any{ns, elem}})
	}
	return claims
}

// skipClaims are standard JWT claims that shouldn't be in DCQL queries.
var skipClaims = map[string]bool{
	"iss": true, "sub": true, "aud": true, "exp": true,
	"nbf": true, "iat": true, "jti": true, "vct": true,
	"cnf": true, "_sd_alg": true, "status": true,
}

func sdjwtClaimQueries(doc document.Document) []ClaimQuery {
	var result []ClaimQuery
	for _, k := range sortedKeys(doc.Claims) {
		if skipClaims[k] {
			continue
		}
		result = append(result, extractPaths([]any{k}, doc.Claims[k])...)
	}
	return result
}

// extractPaths recursively generates DCQL claim paths.
// For leaf values it returns the current path.
// For objects it recurses into each key.
// For arrays it appends a null wildcard element.
func extractPaths(prefix []any, v any) []ClaimQuery {
	switch val := v.(type) {
	case map[string]any:
		var result []ClaimQuery
		for _, k := range sortedKeys(val) {
			if k == "_sd" || k == "_sd_alg" {
				continue
			}
			path := append(append([]any{}, prefix...), k)
			result = append(result, extractPaths(path, val[k])...)
		}
		if len(result) == 0 {
			// Object with only _sd entries, request the object itself
			return []ClaimQuery{{Path: prefix}}
		}
		return result
	case []any:
		path := append(append([]any{}, prefix...), nil)
		return []ClaimQuery{{Path: path}}
	default:
		return []ClaimQuery{{Path: prefix}}
	}
}

func sanitizeID(s string) string {
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.TrimLeft(s, "_")
	if len(s) > 50 {
		s = s[:50]
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
