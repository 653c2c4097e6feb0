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

// Package openid4vp implements the wallet side of OpenID4VP
// authorization requests: the Presentation Exchange and DCQL request
// processors and the VP token response generators.
package openid4vp

import (
	"encoding/json"
	"fmt"

	"github.com/dominikschlosser/wallet-core/internal/dcql"
)

// ResolvedRequestObject is the authorization request after JAR
// resolution: the transport layer fetches and (optionally) verifies the
// request JWT; the core consumes its payload.
type ResolvedRequestObject struct {
	ClientID     string
	Nonce        string
	State        string
	ResponseURI  string
	ResponseMode string

	// PresentationDefinition is the raw Presentation Exchange query,
	// nil when the request carries a DCQL query instead.
	PresentationDefinition map[string]any
	// DCQLQuery is the parsed DCQL query, nil for Presentation Exchange.
	DCQLQuery *dcql.Query

	// ClientMetadata carries the verifier metadata, including the
	// encryption JWKS for direct_post.jwt.
	ClientMetadata map[string]any

	// X5C is the certificate chain from the request JWT header, used
	// for the reader authentication verdict.
	X5C []any

	// Raw is the serialized request as received, kept for the
	// transaction log.
	Raw []byte
}

// ParseRequestObject builds a ResolvedRequestObject from decoded
// request JWT payload and header maps.
func ParseRequestObject(payload, header map[string]any, raw []byte) (*ResolvedRequestObject, error) {
	ro := &ResolvedRequestObject{Raw: raw}

	ro.ClientID, _ = payload["client_id"].(string)
	ro.Nonce, _ = payload["nonce"].(string)
	ro.State, _ = payload["state"].(string)
	ro.ResponseURI, _ = payload["response_uri"].(string)
	if ro.ResponseURI == "" {
		ro.ResponseURI, _ = payload["redirect_uri"].(string)
	}
	ro.ResponseMode, _ = payload["response_mode"].(string)
	ro.ClientMetadata, _ = payload["client_metadata"].(map[string]any)

	if header != nil {
		ro.X5C, _ = header["x5c"].([]any)
	}

	if pd, ok := payload["presentation_definition"].(map[string]any); ok {
		ro.PresentationDefinition = pd
	}

	if dq, ok := payload["dcql_query"]; ok {
		queryJSON, err := json.Marshal(dq)
		if err != nil {
			return nil, fmt.Errorf("re-encoding dcql_query: %w", err)
		}
		var query dcql.Query
		if err := json.Unmarshal(queryJSON, &query); err != nil {
			return nil, fmt.Errorf("parsing dcql_query: %w", err)
		}
		ro.DCQLQuery = &query
	}

	if ro.PresentationDefinition == nil && ro.DCQLQuery == nil {
		return nil, fmt.Errorf("request carries neither presentation_definition nor dcql_query")
	}
	if ro.Nonce == "" {
		return nil, fmt.Errorf("request is missing nonce")
	}

	return ro, nil
}

// Payload wraps a resolved request object for the processor contract.
type Payload struct {
	RequestObject *ResolvedRequestObject
}
