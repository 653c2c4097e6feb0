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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dominikschlosser/wallet-core/internal/document"
)

// Match pairs a credential query with one stored document that can
// satisfy it, along with the claim keys selected for disclosure.
type Match struct {
	QueryID      QueryID
	DocumentID   string
	Format       document.Format
	SelectedKeys []string
}

// Evaluate matches the stored documents against a full DCQL query,
// applying credential_sets constraints. The result maps each requested
// query id to its candidate documents in store order. An unsatisfiable
// required credential set yields an empty map.
func Evaluate(query *Query, docs []document.Document, now time.Time, log logrus.FieldLogger) map[QueryID][]Match {
	if log == nil {
		log = logrus.StandardLogger()
	}

	candidates := make(map[QueryID][]Match)
	credentials := make(map[QueryID]CredentialQuery, len(query.Credentials))

	for _, cq := range query.Credentials {
		credentials[cq.ID] = cq
		for _, doc := range docs {
			if !doc.Usable(now) {
				log.WithFields(logrus.Fields{"query": cq.ID, "document": doc.ID}).
					Debug("dcql: document skipped, expired or no key")
				continue
			}
			if !MatchesFormat(doc, cq.Format) {
				log.WithFields(logrus.Fields{"query": cq.ID, "document": doc.ID}).
					Debug("dcql: document skipped, format mismatch")
				continue
			}
			if !MatchesMeta(doc, cq.Meta) {
				log.WithFields(logrus.Fields{"query": cq.ID, "document": doc.ID}).
					Debug("dcql: document skipped, meta mismatch")
				continue
			}
			selected := SelectClaims(doc, cq)
			if selected == nil {
				log.WithFields(logrus.Fields{"query": cq.ID, "document": doc.ID}).
					Debug("dcql: document skipped, required claims not found")
				continue
			}
			candidates[cq.ID] = append(candidates[cq.ID], Match{
				QueryID:      cq.ID,
				DocumentID:   doc.ID,
				Format:       doc.Format,
				SelectedKeys: selected,
			})
		}
	}

	availableIDs := make(map[QueryID]bool, len(candidates))
	for id := range candidates {
		availableIDs[id] = true
	}

	requested := DetermineRequestedDocuments(credentials, query.CredentialSets, availableIDs)
	if len(requested) == 0 && len(query.CredentialSets) > 0 {
		log.Warn("dcql: required credential set unsatisfiable")
	}

	result := make(map[QueryID][]Match, len(requested))
	for id := range requested {
		result[id] = candidates[id]
	}
	return result
}
