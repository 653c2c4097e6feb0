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

// Package translog records presentation sessions as append-only
// transaction logs and reconstructs human-readable views from them.
package translog

import (
	"time"

	"github.com/dominikschlosser/wallet-core/internal/format"
	"github.com/dominikschlosser/wallet-core/internal/request"
)

// Status is the lifecycle state of a transaction log. Completed and
// Error are terminal; Incomplete is the only non-terminal state.
type Status string

const (
	StatusIncomplete Status = "Incomplete"
	StatusCompleted  Status = "Completed"
	StatusError      Status = "Error"
)

// Type distinguishes what kind of transaction was recorded.
type Type string

const (
	TypePresentation Type = "Presentation"
	TypeIssuance     Type = "Issuance"
)

// DataFormat tags how RawRequest and RawResponse are encoded.
type DataFormat string

const (
	FormatCBOR DataFormat = "Cbor"
	FormatJSON DataFormat = "Json"
)

// UnidentifiedRelyingParty is the fallback name when a request carries
// no reader authentication.
const UnidentifiedRelyingParty = "Unidentified Relying Party"

// RelyingParty describes the verifier as recorded at request time.
type RelyingParty struct {
	Name string `json:"name"`
	// CertChain holds the presented certificates, DER as base64.
	CertChain []string `json:"cert_chain,omitempty"`
	Verified  bool     `json:"verified"`
	// ReaderAuth is the raw reader-auth structure, base64.
	ReaderAuth string `json:"reader_auth,omitempty"`
}

// TransactionLog is the append-only audit record of one presentation
// session. It is never mutated in place; every transition returns a
// modified copy.
type TransactionLog struct {
	Timestamp    time.Time     `json:"timestamp"`
	Status       Status        `json:"status"`
	Type         Type          `json:"type"`
	RelyingParty *RelyingParty `json:"relying_party,omitempty"`
	RawRequest   []byte        `json:"raw_request,omitempty"`
	RawResponse  []byte        `json:"raw_response,omitempty"`
	DataFormat   *DataFormat   `json:"data_format,omitempty"`
	// SessionTranscript is set when the protocol bound one.
	SessionTranscript []byte `json:"session_transcript,omitempty"`
	// Metadata holds one JSON descriptor per disclosed document,
	// keyed by position or query id.
	Metadata []string `json:"metadata,omitempty"`
}

// New starts an Incomplete presentation log stamped now.
func New() TransactionLog {
	return TransactionLog{
		Timestamp: time.Now(),
		Status:    StatusIncomplete,
		Type:      TypePresentation,
	}
}

// WithRequest records the raw request. An unknown protocol does not
// panic; it marks the log as Error so the session still terminates
// cleanly.
func (l TransactionLog) WithRequest(protocol request.Protocol, raw []byte) TransactionLog {
	df, ok := dataFormatFor(protocol)
	if !ok {
		l.Status = StatusError
		return l
	}
	l.DataFormat = &df
	l.RawRequest = raw
	return l
}

// WithRelyingParty records the reader-auth verdict. A nil verdict
// records the unidentified fallback.
func (l TransactionLog) WithRelyingParty(ra *request.ReaderAuth) TransactionLog {
	if ra == nil {
		l.RelyingParty = &RelyingParty{Name: UnidentifiedRelyingParty}
		return l
	}

	rp := &RelyingParty{
		Name:     ra.CommonName,
		Verified: ra.Trusted,
	}
	if rp.Name == "" {
		rp.Name = UnidentifiedRelyingParty
	}
	for _, der := range ra.CertChain {
		rp.CertChain = append(rp.CertChain, format.EncodeBase64Std(der))
	}
	if len(ra.Raw) > 0 {
		rp.ReaderAuth = format.EncodeBase64Std(ra.Raw)
	}
	l.RelyingParty = rp
	return l
}

// WithResponse records the response leg and moves the log to its
// terminal state: Completed on success, Error when response generation
// failed. When the response body is an encrypted envelope the plain
// DeviceResponse bytes are recorded instead so the log stays
// reconstructable.
func (l TransactionLog) WithResponse(resp *request.Response, metadata []string, cause error) TransactionLog {
	if cause != nil || resp == nil {
		l.Status = StatusError
		return l
	}
	l.Status = StatusCompleted
	if len(resp.DeviceResponse) > 0 {
		l.RawResponse = resp.DeviceResponse
	} else {
		l.RawResponse = resp.Body
	}
	l.SessionTranscript = resp.SessionTranscript
	l.Metadata = metadata
	return l
}

// WithError forces the terminal Error state regardless of what legs
// were recorded.
func (l TransactionLog) WithError() TransactionLog {
	l.Status = StatusError
	return l
}

// dataFormatFor tags how the recorded response parses back. DCAPI logs
// the plain DeviceResponse, so it reconstructs as CBOR like the
// proximity flow.
func dataFormatFor(protocol request.Protocol) (DataFormat, bool) {
	switch protocol {
	case request.ProtocolMdoc, request.ProtocolDCAPI:
		return FormatCBOR, true
	case request.ProtocolOpenID4VPPresEx, request.ProtocolOpenID4VPDCQL:
		return FormatJSON, true
	default:
		return "", false
	}
}
