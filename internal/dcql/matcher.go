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

// DetermineRequestedDocuments applies credential_sets constraints to the
// credential queries of a request, given the set of query ids for which
// the wallet holds at least one matching credential.
//
// Without credential_sets every available query is requested. With
// credential_sets, each group is resolved to its first fully available
// option in declared order. An unsatisfiable required group makes the
// whole request unsatisfiable and yields an empty map, so that no
// partial disclosure can happen. Unsatisfiable optional groups are
// dropped. Ids appearing in several satisfied groups collapse, the
// result is keyed by query id.
func DetermineRequestedDocuments(credentials map[QueryID]CredentialQuery, credentialSets []CredentialSetQuery, availableIDs map[QueryID]bool) map[QueryID]CredentialQuery {
	result := make(map[QueryID]CredentialQuery)

	if len(credentialSets) == 0 {
		for id, cq := range credentials {
			if availableIDs[id] {
				result[id] = cq
			}
		}
		return result
	}

	for _, set := range credentialSets {
		option, ok := firstSatisfiableOption(set, availableIDs)
		if !ok {
			if set.IsRequired() {
				return map[QueryID]CredentialQuery{}
			}
			continue
		}
		for _, id := range option {
			if cq, exists := credentials[id]; exists {
				result[id] = cq
			}
		}
	}

	return result
}

// firstSatisfiableOption returns the first option, in declared order,
// whose query ids are all available.
func firstSatisfiableOption(set CredentialSetQuery, availableIDs map[QueryID]bool) ([]QueryID, bool) {
	for _, option := range set.Options {
		satisfiable := true
		for _, id := range option {
			if !availableIDs[id] {
				satisfiable = false
				break
			}
		}
		if satisfiable {
			return option, true
		}
	}
	return nil, false
}
