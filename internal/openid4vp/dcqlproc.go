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

package openid4vp

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dominikschlosser/wallet-core/internal/dcql"
	"github.com/dominikschlosser/wallet-core/internal/document"
	"github.com/dominikschlosser/wallet-core/internal/keys"
	"github.com/dominikschlosser/wallet-core/internal/readerauth"
	"github.com/dominikschlosser/wallet-core/internal/request"
)

// Config wires the OpenID4VP processors. Store and SecureArea are
// mandatory.
type Config struct {
	Store      document.Store
	Trust      *readerauth.TrustStore
	SecureArea keys.SecureArea
	Logger     logrus.FieldLogger
}

// DCQLProcessor matches OpenID4VP authorization requests carrying a
// DCQL query against the stored documents.
type DCQLProcessor struct {
	store document.Store
	trust *readerauth.TrustStore
	area  keys.SecureArea
	log   logrus.FieldLogger
}

func NewDCQLProcessor(cfg Config) (*DCQLProcessor, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("openid4vp: config missing document store")
	}
	if cfg.SecureArea == nil {
		return nil, fmt.Errorf("openid4vp: config missing secure area")
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &DCQLProcessor{store: cfg.Store, trust: cfg.Trust, area: cfg.SecureArea, log: log}, nil
}

// Process evaluates the request's DCQL query. Credential-set semantics
// apply: a required set with no satisfiable option fails the whole
// request, optional sets degrade to whatever matched.
func (p *DCQLProcessor) Process(req request.Request) request.ProcessedRequest {
	if req.Protocol != request.ProtocolOpenID4VPDCQL {
		return request.Failed{Cause: fmt.Errorf("openid4vp: DCQL processor received %s request", req.Protocol)}
	}
	payload, ok := req.Payload.(Payload)
	if !ok || payload.RequestObject == nil {
		return request.Failed{Cause: fmt.Errorf("openid4vp: unexpected payload type %T", req.Payload)}
	}
	reqObj := payload.RequestObject
	if reqObj.DCQLQuery == nil {
		return request.Failed{Cause: fmt.Errorf("openid4vp: request carries no dcql_query")}
	}

	var readerAuth *request.ReaderAuth
	if p.trust != nil && len(reqObj.X5C) > 0 {
		readerAuth = p.trust.EvaluateX5C(reqObj.X5C)
	}

	matches := dcql.Evaluate(reqObj.DCQLQuery, p.store.List(), time.Now(), p.log)
	if len(matches) == 0 {
		return request.Failed{Cause: fmt.Errorf("openid4vp: no stored document satisfies the query")}
	}

	queryIDs := make([]string, 0, len(matches))
	for id := range matches {
		queryIDs = append(queryIDs, string(id))
	}
	sort.Strings(queryIDs)

	var requested []request.RequestedDocument
	for _, id := range queryIDs {
		for _, m := range matches[dcql.QueryID(id)] {
			requested = append(requested, request.RequestedDocument{
				DocumentID: m.DocumentID,
				QueryID:    string(m.QueryID),
				Items:      itemsFromSelectedKeys(m.Format, m.SelectedKeys),
				ReaderAuth: readerAuth,
			})
		}
	}

	return &ProcessedDCQLRequest{
		SuccessBase: request.SuccessBase{RequestedDocuments: requested},
		reqObj:      reqObj,
		store:       p.store,
		area:        p.area,
		log:         p.log,
	}
}

// itemsFromSelectedKeys converts matcher claim keys into request items.
// Mdoc keys are namespace:element pairs, SD-JWT keys are top-level
// claim names.
func itemsFromSelectedKeys(f document.Format, keys []string) []request.Item {
	items := make([]request.Item, 0, len(keys))
	for _, k := range keys {
		if f == document.FormatMdoc {
			ns, elem, ok := strings.Cut(k, ":")
			if !ok {
				continue
			}
			items = append(items, request.Item{Namespace: ns, Element: elem})
		} else {
			items = append(items, request.Item{Element: k, Path: []any{k}})
		}
	}
	return items
}

// ProcessedDCQLRequest is the success outcome of Process.
type ProcessedDCQLRequest struct {
	request.SuccessBase

	reqObj *ResolvedRequestObject
	store  document.Store
	area   keys.SecureArea
	log    logrus.FieldLogger
}

// GenerateResponse builds the vp_token map keyed by query ID. When the
// user approved several documents for the same query, the first one in
// disclosure order wins.
func (p *ProcessedDCQLRequest) GenerateResponse(disclosed request.DisclosedDocuments, _ keys.Algorithm) request.ResponseResult {
	if len(disclosed.Documents) == 0 {
		return request.Failure(fmt.Errorf("openid4vp: nothing disclosed"))
	}

	binding, err := newSessionBinding(p.reqObj)
	if err != nil {
		return request.Failure(err)
	}

	tokenMap := make(map[string]string)
	var docIDs, queryIDs []string

	for _, dd := range disclosed.Documents {
		if dd.QueryID == "" {
			return request.Failure(fmt.Errorf("openid4vp: disclosed document %s has no query id", dd.DocumentID))
		}
		if _, done := tokenMap[dd.QueryID]; done {
			p.log.WithField("query", dd.QueryID).Debug("openid4vp: extra document for query ignored")
			continue
		}

		stored, ok := p.store.Get(dd.DocumentID)
		if !ok {
			return request.Failure(fmt.Errorf("openid4vp: unknown document %s", dd.DocumentID))
		}

		signer, err := keys.SignerFor(p.area, stored.KeyID, dd.KeyUnlock)
		if err != nil {
			if errors.Is(err, keys.ErrKeyLocked) {
				return request.UserAuthRequired(&keys.UnlockData{KeyID: stored.KeyID})
			}
			return request.Failure(fmt.Errorf("openid4vp: obtaining signer for %s: %w", dd.DocumentID, err))
		}

		token, err := buildPresentation(stored, dd.Items, signer, p.reqObj, binding)
		if err != nil {
			return request.Failure(fmt.Errorf("openid4vp: building presentation for %s: %w", dd.DocumentID, err))
		}

		tokenMap[dd.QueryID] = token
		docIDs = append(docIDs, dd.DocumentID)
		queryIDs = append(queryIDs, dd.QueryID)
	}

	resp, err := assembleResponse(request.ProtocolOpenID4VPDCQL, p.reqObj, tokenMap, nil, binding.MDocNonce, binding.Transcript, docIDs, queryIDs)
	if err != nil {
		return request.Failure(err)
	}
	return request.Success(resp)
}
