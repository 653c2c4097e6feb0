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

// Package dcapi processes Digital Credentials API presentation
// requests: browser-mediated mdoc requests bound to the calling origin
// and answered with an HPKE-encrypted DeviceResponse.
package dcapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/dominikschlosser/wallet-core/internal/document"
	"github.com/dominikschlosser/wallet-core/internal/format"
	"github.com/dominikschlosser/wallet-core/internal/keys"
	"github.com/dominikschlosser/wallet-core/internal/mdoc"
	"github.com/dominikschlosser/wallet-core/internal/readerauth"
	"github.com/dominikschlosser/wallet-core/internal/request"
)

// mdocProtocol is the request entry protocol this processor answers.
const mdocProtocol = "org-iso-mdoc"

// Payload is the platform-provided input: the Digital Credentials API
// request JSON, the verified calling origin, and optionally the id of
// the stored document backing the credential entry the user tapped.
type Payload struct {
	RequestJSON []byte
	Origin      string
	// SelectedDocumentID restricts matching to one stored document.
	// Empty means every matching document is offered.
	SelectedDocumentID string
}

// Config wires a Processor. Store and SecureArea are mandatory.
type Config struct {
	Store      document.Store
	Trust      *readerauth.TrustStore
	SecureArea keys.SecureArea
	Logger     logrus.FieldLogger
}

// Processor turns Digital Credentials API requests into processed
// requests.
type Processor struct {
	store document.Store
	trust *readerauth.TrustStore
	area  keys.SecureArea
	log   logrus.FieldLogger
}

func NewProcessor(cfg Config) (*Processor, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("dcapi: config missing document store")
	}
	if cfg.SecureArea == nil {
		return nil, fmt.Errorf("dcapi: config missing secure area")
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Processor{store: cfg.Store, trust: cfg.Trust, area: cfg.SecureArea, log: log}, nil
}

// Process validates origin binding and matches the embedded device
// request against the stored documents. A missing origin aborts the
// transaction; there is no fallback.
func (p *Processor) Process(req request.Request) request.ProcessedRequest {
	if req.Protocol != request.ProtocolDCAPI {
		return request.Failed{Cause: fmt.Errorf("dcapi: processor received %s request", req.Protocol)}
	}
	payload, ok := req.Payload.(Payload)
	if !ok {
		return request.Failed{Cause: fmt.Errorf("dcapi: unexpected payload type %T", req.Payload)}
	}
	if payload.Origin == "" {
		return request.Failed{Cause: fmt.Errorf("dcapi: request carries no origin, aborting")}
	}

	deviceRequestB64, encryptionInfoB64, err := extractMdocRequest(payload.RequestJSON)
	if err != nil {
		return request.Failed{Cause: fmt.Errorf("dcapi: %w", err)}
	}

	deviceRequestRaw, err := format.DecodeBase64URL(deviceRequestB64)
	if err != nil {
		return request.Failed{Cause: fmt.Errorf("dcapi: decoding deviceRequest: %w", err)}
	}
	deviceRequest, err := mdoc.ParseDeviceRequest(deviceRequestRaw)
	if err != nil {
		return request.Failed{Cause: fmt.Errorf("dcapi: malformed device request: %w", err)}
	}

	encInfo, err := parseEncryptionInfo(encryptionInfoB64)
	if err != nil {
		return request.Failed{Cause: fmt.Errorf("dcapi: %w", err)}
	}

	transcript, err := mdoc.SessionTranscriptDCAPI(encryptionInfoB64, payload.Origin)
	if err != nil {
		return request.Failed{Cause: fmt.Errorf("dcapi: building session transcript: %w", err)}
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
			if payload.SelectedDocumentID != "" && doc.ID != payload.SelectedDocumentID {
				p.log.WithField("document", doc.ID).Debug("dcapi: document not selected by user, skipped")
				continue
			}
			if !doc.Usable(now) {
				p.log.WithField("document", doc.ID).Debug("dcapi: document unusable, skipped")
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
		return request.Failed{Cause: fmt.Errorf("dcapi: no stored document matches the request")}
	}

	return &ProcessedDCAPIRequest{
		SuccessBase:       request.SuccessBase{RequestedDocuments: requested},
		sessionTranscript: transcript,
		encInfo:           encInfo,
		store:             p.store,
		area:              p.area,
		log:               p.log,
	}
}

// extractMdocRequest pulls the org-iso-mdoc entry out of the request
// JSON: {"requests":[{"protocol":"org-iso-mdoc","data":{...}}]}.
func extractMdocRequest(requestJSON []byte) (deviceRequestB64, encryptionInfoB64 string, err error) {
	if !gjson.ValidBytes(requestJSON) {
		return "", "", fmt.Errorf("request is not valid JSON")
	}

	entries := gjson.GetBytes(requestJSON, "requests")
	if !entries.IsArray() {
		return "", "", fmt.Errorf("request has no requests array")
	}

	for _, entry := range entries.Array() {
		if entry.Get("protocol").String() != mdocProtocol {
			continue
		}
		deviceRequestB64 = entry.Get("data.deviceRequest").String()
		encryptionInfoB64 = entry.Get("data.encryptionInfo").String()
		if deviceRequestB64 == "" || encryptionInfoB64 == "" {
			return "", "", fmt.Errorf("%s entry is missing deviceRequest or encryptionInfo", mdocProtocol)
		}
		return deviceRequestB64, encryptionInfoB64, nil
	}

	return "", "", fmt.Errorf("no %s entry in request", mdocProtocol)
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

// ProcessedDCAPIRequest is the success outcome of Process.
type ProcessedDCAPIRequest struct {
	request.SuccessBase

	sessionTranscript []byte
	encInfo           *encryptionInfo
	store             document.Store
	area              keys.SecureArea
	log               logrus.FieldLogger
}

// GenerateResponse builds the inner DeviceResponse, encrypts it with
// HPKE for the recipient key from encryptionInfo, and wraps it into the
// Digital Credentials API response JSON.
func (p *ProcessedDCAPIRequest) GenerateResponse(disclosed request.DisclosedDocuments, _ keys.Algorithm) request.ResponseResult {
	if len(disclosed.Documents) == 0 {
		return request.Failure(fmt.Errorf("dcapi: nothing disclosed"))
	}

	var docs []mdoc.ResponseDocument
	var docIDs []string
	for _, dd := range disclosed.Documents {
		stored, ok := p.store.Get(dd.DocumentID)
		if !ok {
			return request.Failure(fmt.Errorf("dcapi: unknown document %s", dd.DocumentID))
		}

		parsed, err := mdoc.ParseIssuerSigned(stored.Raw)
		if err != nil {
			return request.Failure(fmt.Errorf("dcapi: parsing stored document %s: %w", dd.DocumentID, err))
		}

		signer, err := keys.SignerFor(p.area, stored.KeyID, dd.KeyUnlock)
		if err != nil {
			if errors.Is(err, keys.ErrKeyLocked) {
				return request.UserAuthRequired(&keys.UnlockData{KeyID: stored.KeyID})
			}
			return request.Failure(fmt.Errorf("dcapi: obtaining signer for %s: %w", dd.DocumentID, err))
		}

		items := make([]mdoc.DisclosedItem, 0, len(dd.Items))
		for _, item := range dd.Items {
			items = append(items, mdoc.DisclosedItem{Namespace: item.Namespace, Element: item.Element})
		}

		docs = append(docs, mdoc.ResponseDocument{Doc: parsed, Items: items, Signer: signer})
		docIDs = append(docIDs, dd.DocumentID)
	}

	deviceResponse, err := mdoc.BuildDeviceResponse(docs, p.sessionTranscript)
	if err != nil {
		return request.Failure(fmt.Errorf("dcapi: building DeviceResponse: %w", err))
	}

	enc, ciphertext, err := hpkeSeal(p.encInfo.RecipientPublicKey, deviceResponse, p.sessionTranscript)
	if err != nil {
		return request.Failure(fmt.Errorf("dcapi: encrypting DeviceResponse: %w", err))
	}

	envelope, err := cbor.Marshal([]any{"dcapi", map[string]any{
		"enc":        enc,
		"cipherText": ciphertext,
	}})
	if err != nil {
		return request.Failure(fmt.Errorf("dcapi: encoding response envelope: %w", err))
	}

	body := []byte(fmt.Sprintf(`{"response":%q}`, format.EncodeBase64URL(envelope)))

	return request.Success(&request.Response{
		Protocol:          request.ProtocolDCAPI,
		Body:              body,
		ContentType:       "application/json",
		SessionTranscript: p.sessionTranscript,
		DeviceResponse:    deviceResponse,
		DocumentIDs:       docIDs,
	})
}
