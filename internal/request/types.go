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

// Package request defines the contract types crossing between the
// protocol processors, the response generators, and the embedding
// application: requests, processed requests, disclosed documents and
// the terminal response results. These are the only types UI and
// transport code touch.
package request

import (
	"fmt"

	"github.com/dominikschlosser/wallet-core/internal/keys"
)

// Protocol identifies which presentation protocol a request belongs to.
// Every switch over it must carry an error default, never a silent one.
type Protocol string

const (
	// ProtocolMdoc is an ISO 18013-5 proximity device request.
	ProtocolMdoc Protocol = "mdoc"
	// ProtocolOpenID4VPPresEx is an OpenID4VP authorization request
	// carrying a Presentation Exchange presentation_definition.
	ProtocolOpenID4VPPresEx Protocol = "openid4vp-pe"
	// ProtocolOpenID4VPDCQL is an OpenID4VP authorization request
	// carrying a DCQL query.
	ProtocolOpenID4VPDCQL Protocol = "openid4vp-dcql"
	// ProtocolDCAPI is a platform Digital Credentials API request.
	ProtocolDCAPI Protocol = "dcapi"
)

func (p Protocol) Valid() bool {
	switch p {
	case ProtocolMdoc, ProtocolOpenID4VPPresEx, ProtocolOpenID4VPDCQL, ProtocolDCAPI:
		return true
	}
	return false
}

// Request is a raw inbound presentation request tagged with its protocol.
// Payload holds the protocol-specific request object; processors check
// the tag and reject mismatches as programmer errors.
type Request struct {
	Protocol Protocol
	Payload  any
}

// ReaderAuth captures the reader-authentication verdict attached to a
// requested document: the certificate chain presented by the verifier,
// whether it chained to a trust anchor, and the subject common name.
type ReaderAuth struct {
	CertChain  [][]byte
	Trusted    bool
	CommonName string
	// Raw is the reader-auth structure as received on the wire,
	// retained for the transaction log.
	Raw []byte
}

// Item is one requested claim or data element within a document.
// Namespace/Element address mdoc data elements; Path addresses SD-JWT
// claims. Exactly one addressing form is populated per item.
type Item struct {
	Namespace      string
	Element        string
	Path           []any
	IntentToRetain bool
}

// RequestedDocument pairs a stored document with the items a verifier
// asked for. QueryID is set for DCQL-matched documents and empty
// otherwise.
type RequestedDocument struct {
	DocumentID string
	QueryID    string
	Items      []Item
	ReaderAuth *ReaderAuth
}

// DisclosedDocument is the user-approved disclosure for one requested
// document: exactly the items the holder consents to reveal, plus the
// unlock material for the document key when the platform demanded it.
type DisclosedDocument struct {
	DocumentID string
	QueryID    string
	Items      []Item
	KeyUnlock  *keys.UnlockData
}

// DisclosedDocuments is the full user-approved selection for one request.
type DisclosedDocuments struct {
	Documents []DisclosedDocument
}

// Response is a generated protocol response ready for transport dispatch.
type Response struct {
	// Kind distinguishes the concrete payload shape.
	Protocol Protocol
	// Body is the wire payload: CBOR DeviceResponse bytes for mdoc,
	// the serialized authorization response for OpenID4VP, the
	// response JSON for DCAPI.
	Body []byte
	// ContentType hints at the transport encoding of Body.
	ContentType string
	// SessionTranscript is the transcript the response was bound to,
	// when the protocol has one. Retained for the transaction log.
	SessionTranscript []byte
	// DeviceResponse holds the pre-encryption DeviceResponse bytes
	// when Body is an encrypted envelope. Retained for the transaction
	// log, never sent on the wire.
	DeviceResponse []byte
	// DocumentIDs lists the documents actually disclosed, in response
	// order, for transaction-log metadata resolution.
	DocumentIDs []string
	// QueryIDs parallels DocumentIDs for DCQL responses, empty otherwise.
	QueryIDs []string
}

// ResultKind tags a ResponseResult.
type ResultKind int

const (
	ResultSuccess ResultKind = iota
	ResultUserAuthRequired
	ResultFailure
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "Success"
	case ResultUserAuthRequired:
		return "UserAuthRequired"
	case ResultFailure:
		return "Failure"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}

// ResponseResult is the terminal outcome of response generation. Every
// generation path ends in exactly one of the three kinds; errors never
// propagate past this type.
type ResponseResult struct {
	Kind     ResultKind
	Response *Response
	// Unlock identifies the locked key when Kind is ResultUserAuthRequired.
	// The caller prompts for user authentication and retries generation
	// with the unlock material filled into the disclosed document.
	Unlock *keys.UnlockData
	Cause  error
}

func Success(resp *Response) ResponseResult {
	return ResponseResult{Kind: ResultSuccess, Response: resp}
}

func UserAuthRequired(unlock *keys.UnlockData) ResponseResult {
	return ResponseResult{Kind: ResultUserAuthRequired, Unlock: unlock}
}

func Failure(cause error) ResponseResult {
	return ResponseResult{Kind: ResultFailure, Cause: cause}
}

// ProcessedRequest is the sealed outcome of request processing: either a
// Success carrying the matched documents and a response generator, or a
// Failure carrying the cause. Concrete implementations live with their
// protocol processors.
type ProcessedRequest interface {
	processedRequest()
}

// Failed is the failure arm of ProcessedRequest.
type Failed struct {
	Cause error
}

func (Failed) processedRequest() {}

func (f Failed) Error() string { return f.Cause.Error() }

// Success is the common success arm embedded by the protocol-specific
// processed request types. It exposes the matched documents; the
// embedding type provides GenerateResponse.
type SuccessBase struct {
	RequestedDocuments []RequestedDocument
}

func (SuccessBase) processedRequest() {}
