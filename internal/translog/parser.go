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

package translog

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dominikschlosser/wallet-core/internal/format"
	"github.com/dominikschlosser/wallet-core/internal/mdoc"
	"github.com/dominikschlosser/wallet-core/internal/sdjwt"
)

// DocumentMetadata is the per-document descriptor stored in
// TransactionLog.Metadata, serialized as JSON.
type DocumentMetadata struct {
	// QueryID keys the descriptor to a DCQL query; empty descriptors
	// are matched by position instead.
	QueryID        string         `json:"query_id,omitempty"`
	Format         string         `json:"format,omitempty"`
	TypeLabel      string         `json:"type,omitempty"`
	IssuerMetadata map[string]any `json:"issuer_metadata,omitempty"`
}

// PresentedClaim is one disclosed claim reconstructed from a log.
type PresentedClaim struct {
	Path  []string
	Value any
}

// PresentedDocument is the read-only reconstruction of one disclosed
// document.
type PresentedDocument struct {
	// QueryID is set when the response keyed presentations by DCQL
	// query id.
	QueryID        string
	Format         string
	TypeLabel      string
	Claims         []PresentedClaim
	IssuerMetadata map[string]any
}

// PresentationTransactionLog is the human-readable view of a completed
// presentation log.
type PresentationTransactionLog struct {
	Timestamp    time.Time
	Status       Status
	RelyingParty RelyingParty
	Documents    []PresentedDocument
}

// ParsePresentation reconstructs what was disclosed from a persisted
// transaction log. It requires a presentation log with both legs and
// the relying party recorded; anything less is a hard error since a
// Completed log always carries them.
func ParsePresentation(l TransactionLog) (*PresentationTransactionLog, error) {
	if l.Type != TypePresentation {
		return nil, fmt.Errorf("translog: not a presentation log (type %s)", l.Type)
	}
	if l.DataFormat == nil {
		return nil, fmt.Errorf("translog: log has no data format")
	}
	if len(l.RawRequest) == 0 {
		return nil, fmt.Errorf("translog: log has no raw request")
	}
	if len(l.RawResponse) == 0 {
		return nil, fmt.Errorf("translog: log has no raw response")
	}
	if l.RelyingParty == nil {
		return nil, fmt.Errorf("translog: log has no relying party")
	}

	var docs []PresentedDocument
	var err error
	switch *l.DataFormat {
	case FormatCBOR:
		docs, err = parseCBORResponse(l.RawResponse)
	case FormatJSON:
		docs, err = parseJSONResponse(l.RawResponse)
	default:
		return nil, fmt.Errorf("translog: unknown data format %s", *l.DataFormat)
	}
	if err != nil {
		return nil, err
	}

	applyMetadata(docs, l.Metadata)

	return &PresentationTransactionLog{
		Timestamp:    l.Timestamp,
		Status:       l.Status,
		RelyingParty: *l.RelyingParty,
		Documents:    docs,
	}, nil
}

// parseCBORResponse reconstructs documents from a raw CBOR
// DeviceResponse (proximity flow).
func parseCBORResponse(raw []byte) ([]PresentedDocument, error) {
	parsed, err := mdoc.ParseDeviceResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("translog: parsing DeviceResponse: %w", err)
	}

	var docs []PresentedDocument
	for _, d := range parsed {
		docs = append(docs, presentedFromMdoc(d))
	}
	return docs, nil
}

// parseJSONResponse reconstructs documents from an OpenID4VP
// direct_post form body: the vp_token is either a single presentation
// string, an array, or a DCQL map keyed by query id.
func parseJSONResponse(raw []byte) ([]PresentedDocument, error) {
	form, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, fmt.Errorf("translog: parsing response form: %w", err)
	}
	vpToken := form.Get("vp_token")
	if vpToken == "" {
		if form.Get("response") != "" {
			return nil, fmt.Errorf("translog: response is encrypted, cannot reconstruct")
		}
		return nil, fmt.Errorf("translog: response carries no vp_token")
	}

	// Keyed map, array, or plain string.
	var docs []PresentedDocument
	switch {
	case strings.HasPrefix(vpToken, "{"):
		var tokenMap map[string]string
		if err := json.Unmarshal([]byte(vpToken), &tokenMap); err != nil {
			return nil, fmt.Errorf("translog: parsing vp_token map: %w", err)
		}
		queryIDs := make([]string, 0, len(tokenMap))
		for id := range tokenMap {
			queryIDs = append(queryIDs, id)
		}
		sort.Strings(queryIDs)
		for _, id := range queryIDs {
			doc, err := presentedFromToken(tokenMap[id])
			if err != nil {
				return nil, err
			}
			doc.QueryID = id
			docs = append(docs, doc)
		}
	case strings.HasPrefix(vpToken, "["):
		var tokens []string
		if err := json.Unmarshal([]byte(vpToken), &tokens); err != nil {
			return nil, fmt.Errorf("translog: parsing vp_token array: %w", err)
		}
		for _, token := range tokens {
			doc, err := presentedFromToken(token)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	default:
		doc, err := presentedFromToken(vpToken)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// presentedFromToken decodes one VP token entry: SD-JWT presentations
// carry ~ separators, everything else is a base64url DeviceResponse.
func presentedFromToken(token string) (PresentedDocument, error) {
	if strings.Contains(token, "~") {
		parsed, err := sdjwt.Parse(token)
		if err != nil {
			return PresentedDocument{}, fmt.Errorf("translog: parsing SD-JWT presentation: %w", err)
		}
		vct, _ := parsed.ResolvedClaims["vct"].(string)
		return PresentedDocument{
			Format:    "dc+sd-jwt",
			TypeLabel: vct,
			Claims:    flattenClaims(disclosedOnly(parsed)),
		}, nil
	}

	raw, err := format.DecodeBase64URL(token)
	if err != nil {
		return PresentedDocument{}, fmt.Errorf("translog: decoding mdoc VP token: %w", err)
	}
	parsed, err := mdoc.ParseDeviceResponse(raw)
	if err != nil {
		return PresentedDocument{}, fmt.Errorf("translog: parsing mdoc VP token: %w", err)
	}
	if len(parsed) == 0 {
		return PresentedDocument{}, fmt.Errorf("translog: empty DeviceResponse in VP token")
	}
	return presentedFromMdoc(parsed[0]), nil
}

func presentedFromMdoc(d *mdoc.Document) PresentedDocument {
	nested := make(map[string]any)
	for ns, items := range d.NameSpaces {
		elems := make(map[string]any, len(items))
		for _, item := range items {
			elems[item.ElementIdentifier] = item.ElementValue
		}
		nested[ns] = elems
	}
	return PresentedDocument{
		Format:    "mso_mdoc",
		TypeLabel: d.DocType,
		Claims:    flattenClaims(nested),
	}
}

// disclosedOnly keeps the claims actually carried by disclosures,
// dropping always-visible JWT body claims.
func disclosedOnly(token *sdjwt.Token) map[string]any {
	claims := make(map[string]any)
	for _, disc := range token.Disclosures {
		if disc.IsArrayEntry || disc.Name == "" {
			continue
		}
		if v, ok := token.ResolvedClaims[disc.Name]; ok {
			claims[disc.Name] = v
		} else {
			claims[disc.Name] = disc.Value
		}
	}
	return claims
}

// flattenClaims turns nested claim maps into a flat, de-duplicated
// claim list. Only leaf paths are emitted, so when a parent object and
// one of its children would collide the deepest path wins. Output is
// sorted for deterministic rendering.
func flattenClaims(claims map[string]any) []PresentedClaim {
	var out []PresentedClaim
	var walk func(path []string, v any)
	walk = func(path []string, v any) {
		if m, ok := v.(map[string]any); ok && len(m) > 0 {
			for k, child := range m {
				walk(append(append([]string{}, path...), k), child)
			}
			return
		}
		out = append(out, PresentedClaim{Path: path, Value: v})
	}
	for k, v := range claims {
		walk([]string{k}, v)
	}

	sort.Slice(out, func(i, j int) bool {
		return strings.Join(out[i].Path, ".") < strings.Join(out[j].Path, ".")
	})
	return out
}

// applyMetadata attaches the stored per-document descriptors, matching
// by query id when the descriptor carries one and by position
// otherwise.
func applyMetadata(docs []PresentedDocument, metadata []string) {
	for i, raw := range metadata {
		var md DocumentMetadata
		if err := json.Unmarshal([]byte(raw), &md); err != nil {
			continue
		}

		idx := -1
		if md.QueryID != "" {
			for j := range docs {
				if docs[j].QueryID == md.QueryID {
					idx = j
					break
				}
			}
		} else if i < len(docs) {
			idx = i
		}
		if idx < 0 {
			continue
		}

		if md.TypeLabel != "" && docs[idx].TypeLabel == "" {
			docs[idx].TypeLabel = md.TypeLabel
		}
		docs[idx].IssuerMetadata = md.IssuerMetadata
	}
}
