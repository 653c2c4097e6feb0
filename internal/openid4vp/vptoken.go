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
	"crypto"
	"fmt"

	"github.com/dominikschlosser/wallet-core/internal/document"
	"github.com/dominikschlosser/wallet-core/internal/format"
	"github.com/dominikschlosser/wallet-core/internal/mdoc"
	"github.com/dominikschlosser/wallet-core/internal/request"
	"github.com/dominikschlosser/wallet-core/internal/sdjwt"
)

// sessionBinding is the wallet-generated transcript material for one
// response. The nonce is drawn once per response so every disclosed
// mdoc signs over the same session transcript.
type sessionBinding struct {
	MDocNonce  string
	Transcript []byte
}

// newSessionBinding draws the mdoc-generated nonce and derives the
// ISO 18013-7 session transcript shared by all mdoc presentations in
// the response.
func newSessionBinding(reqObj *ResolvedRequestObject) (*sessionBinding, error) {
	nonce, err := mdoc.GeneratedNonce()
	if err != nil {
		return nil, err
	}
	transcript, err := mdoc.SessionTranscriptOID4VP(reqObj.ClientID, reqObj.ResponseURI, reqObj.Nonce, nonce)
	if err != nil {
		return nil, err
	}
	return &sessionBinding{MDocNonce: nonce, Transcript: transcript}, nil
}

// buildPresentation creates a single VP token string for one disclosed
// document. For mdoc it builds a base64url DeviceResponse bound to the
// response's session transcript; for SD-JWT it filters disclosures and
// appends a Key Binding JWT with aud set to the verifier's client_id.
func buildPresentation(doc document.Document, items []request.Item, signer crypto.Signer, reqObj *ResolvedRequestObject, binding *sessionBinding) (string, error) {
	switch doc.Format {
	case document.FormatMdoc:
		return buildMdocPresentation(doc, items, signer, binding)
	case document.FormatSDJWT:
		return buildSDJWTPresentation(doc, items, signer, reqObj)
	default:
		return "", fmt.Errorf("unsupported document format: %s", doc.Format)
	}
}

func buildMdocPresentation(doc document.Document, items []request.Item, signer crypto.Signer, binding *sessionBinding) (string, error) {
	parsed, err := mdoc.ParseIssuerSigned(doc.Raw)
	if err != nil {
		return "", fmt.Errorf("parsing stored mdoc %s: %w", doc.ID, err)
	}

	disclosed := make([]mdoc.DisclosedItem, 0, len(items))
	for _, it := range items {
		disclosed = append(disclosed, mdoc.DisclosedItem{Namespace: it.Namespace, Element: it.Element})
	}

	body, err := mdoc.BuildDeviceResponse([]mdoc.ResponseDocument{{
		Doc:    parsed,
		Items:  disclosed,
		Signer: signer,
	}}, binding.Transcript)
	if err != nil {
		return "", err
	}

	return format.EncodeBase64URL(body), nil
}

func buildSDJWTPresentation(doc document.Document, items []request.Item, signer crypto.Signer, reqObj *ResolvedRequestObject) (string, error) {
	token, err := sdjwt.Parse(string(doc.Raw))
	if err != nil {
		return "", fmt.Errorf("parsing stored SD-JWT %s: %w", doc.ID, err)
	}

	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Element)
	}

	return sdjwt.Present(token, names, signer, reqObj.ClientID, reqObj.Nonce)
}
