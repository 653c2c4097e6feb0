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

// Package device processes ISO 18013-5 proximity device requests and
// generates the signed CBOR DeviceResponse.
package device

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dominikschlosser/wallet-core/internal/document"
	"github.com/dominikschlosser/wallet-core/internal/keys"
	"github.com/dominikschlosser/wallet-core/internal/mdoc"
	"github.com/dominikschlosser/wallet-core/internal/readerauth"
	"github.com/dominikschlosser/wallet-core/internal/request"
)

// Payload is the transport-provided input for one proximity request:
// the raw DeviceRequest CBOR plus the session transcript established
// during device engagement.
type Payload struct {
	DeviceRequest     []byte
	SessionTranscript []byte
}

// Config wires a Processor. Store and SecureArea are mandatory.
type Config struct {
	Store      document.Store
	Trust      *readerauth.TrustStore
	SecureArea keys.SecureArea
	Logger     logrus.FieldLogger
}

// Processor turns proximity device requests into processed requests.
type Processor struct {
	store document.Store
	trust *readerauth.TrustStore
	area  keys.SecureArea
	log   logrus.FieldLogger
}

func NewProcessor(cfg Config) (*Processor, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("device: config missing document store")
	}
	if cfg.SecureArea == nil {
		return nil, fmt.Errorf("device: config missing secure area")
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Processor{store: cfg.Store, trust: cfg.Trust, area: cfg.SecureArea, log: log}, nil
}

// Process matches the device request against the stored documents.
func (p *Processor) Process(req request.Request) request.ProcessedRequest {
	if req.Protocol != request.ProtocolMdoc {
		return request.Failed{Cause: fmt.Errorf("device: processor received %s request", req.Protocol)}
	}
	payload, ok := req.Payload.(Payload)
	if !ok {
		return request.Failed{Cause: fmt.Errorf("device: unexpected payload type %T", req.Payload)}
	}

	deviceRequest, err := mdoc.ParseDeviceRequest(payload.DeviceRequest)
	if err != nil {
		return request.Failed{Cause: fmt.Errorf("device: malformed request: %w", err)}
	}

	now := time.Now()
	var requested []request.RequestedDocument
	for _, dr := range deviceRequest.DocRequests {
		var readerAuth *request.ReaderAuth
		if p.trust != nil {
			readerAuth = p.trust.Evaluate(dr.ReaderAuth)
		}

		items := itemsFromDocRequest(dr)

		for _, doc := range p.store.List() {
			if doc.Format != document.FormatMdoc || doc.DocType != dr.DocType {
				continue
			}
			if !doc.Usable(now) {
				p.log.WithField("document", doc.ID).Debug("device: document unusable, skipped")
				continue
			}
			requested = append(requested, request.RequestedDocument{
				DocumentID: doc.ID,
				Items:      items,
				ReaderAuth: readerAuth,
			})
		}
	}

	if len(requested) == 0 {
		return request.Failed{Cause: fmt.Errorf("device: no stored document matches the request")}
	}

	return &ProcessedDeviceRequest{
		SuccessBase:       request.SuccessBase{RequestedDocuments: requested},
		sessionTranscript: payload.SessionTranscript,
		store:             p.store,
		area:              p.area,
		log:               p.log,
	}
}

func itemsFromDocRequest(dr mdoc.DocRequest) []request.Item {
	var items []request.Item
	for ns, elems := range dr.NameSpaces {
		for elem, retain := range elems {
			items = append(items, request.Item{
				Namespace:      ns,
				Element:        elem,
				IntentToRetain: retain,
			})
		}
	}
	return items
}

// ProcessedDeviceRequest is the success outcome of Process. It is
// consumed once to generate the DeviceResponse for the user-approved
// disclosures.
type ProcessedDeviceRequest struct {
	request.SuccessBase

	sessionTranscript []byte
	store             document.Store
	area              keys.SecureArea
	log               logrus.FieldLogger
}

// GenerateResponse assembles and signs the DeviceResponse. A locked
// document key surfaces as UserAuthRequired so the caller can prompt
// for authentication and retry with unlock data. Every other failure
// terminates this attempt.
func (p *ProcessedDeviceRequest) GenerateResponse(disclosed request.DisclosedDocuments, _ keys.Algorithm) request.ResponseResult {
	if len(disclosed.Documents) == 0 {
		return request.Failure(fmt.Errorf("device: nothing disclosed"))
	}

	var docs []mdoc.ResponseDocument
	var docIDs []string
	for _, dd := range disclosed.Documents {
		stored, ok := p.store.Get(dd.DocumentID)
		if !ok {
			return request.Failure(fmt.Errorf("device: unknown document %s", dd.DocumentID))
		}

		parsed, err := mdoc.ParseIssuerSigned(stored.Raw)
		if err != nil {
			return request.Failure(fmt.Errorf("device: parsing stored document %s: %w", dd.DocumentID, err))
		}

		signer, err := keys.SignerFor(p.area, stored.KeyID, dd.KeyUnlock)
		if err != nil {
			if errors.Is(err, keys.ErrKeyLocked) {
				return request.UserAuthRequired(&keys.UnlockData{KeyID: stored.KeyID})
			}
			return request.Failure(fmt.Errorf("device: obtaining signer for %s: %w", dd.DocumentID, err))
		}

		docs = append(docs, mdoc.ResponseDocument{
			Doc:    parsed,
			Items:  disclosedItems(dd),
			Signer: signer,
		})
		docIDs = append(docIDs, dd.DocumentID)
	}

	body, err := mdoc.BuildDeviceResponse(docs, p.sessionTranscript)
	if err != nil {
		return request.Failure(fmt.Errorf("device: building DeviceResponse: %w", err))
	}

	return request.Success(&request.Response{
		Protocol:          request.ProtocolMdoc,
		Body:              body,
		ContentType:       "application/cbor",
		SessionTranscript: p.sessionTranscript,
		DocumentIDs:       docIDs,
	})
}

func disclosedItems(dd request.DisclosedDocument) []mdoc.DisclosedItem {
	items := make([]mdoc.DisclosedItem, 0, len(dd.Items))
	for _, item := range dd.Items {
		items = append(items, mdoc.DisclosedItem{Namespace: item.Namespace, Element: item.Element})
	}
	return items
}
