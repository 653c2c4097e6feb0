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

package mdoc

import (
	"crypto"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
)

const (
	// MDLDocType is the ISO 18013-5 mobile driving licence doctype.
	MDLDocType = "org.iso.18013.5.1.mDL"
	// MDLNamespace is the mandatory mDL data element namespace.
	MDLNamespace = "org.iso.18013.5.1"
)

// ErrAgeOverLimit is returned when a single mDL response would disclose
// more than two age_over_NN elements at once. ISO 18013-5 caps the
// number of simultaneous age attestations to limit age profiling.
var ErrAgeOverLimit = errors.New("more than two age_over_NN elements in one mDL response")

// DisclosedItem names one issuer-signed element approved for disclosure.
type DisclosedItem struct {
	Namespace string
	Element   string
}

// ResponseDocument is one document to include in a DeviceResponse.
type ResponseDocument struct {
	Doc    *Document
	Items  []DisclosedItem
	Signer crypto.Signer
}

// BuildDeviceResponse assembles and signs a CBOR DeviceResponse. For
// each document it keeps only the disclosed issuer-signed items and
// signs a DeviceAuthentication structure over the session transcript
// with the document's bound key.
func BuildDeviceResponse(docs []ResponseDocument, sessionTranscript []byte) ([]byte, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents to include in DeviceResponse")
	}

	var encodedDocs []any
	for _, rd := range docs {
		encoded, err := buildResponseDocument(rd, sessionTranscript)
		if err != nil {
			return nil, fmt.Errorf("building response document %s: %w", rd.Doc.DocType, err)
		}
		encodedDocs = append(encodedDocs, encoded)
	}

	return cbor.Marshal(map[string]any{
		"version":   "1.0",
		"documents": encodedDocs,
		"status":    uint64(0),
	})
}

func buildResponseDocument(rd ResponseDocument, sessionTranscript []byte) (map[string]any, error) {
	if rd.Doc == nil || rd.Doc.IssuerAuth == nil {
		return nil, fmt.Errorf("document has no issuerAuth")
	}
	if err := checkAgeOverLimit(rd.Doc.DocType, rd.Items); err != nil {
		return nil, err
	}

	nameSpaces, err := selectIssuerSignedItems(rd.Doc, rd.Items)
	if err != nil {
		return nil, err
	}

	deviceSigned, err := signDeviceAuth(rd.Doc.DocType, sessionTranscript, rd.Signer)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"docType": rd.Doc.DocType,
		"issuerSigned": map[string]any{
			"nameSpaces": nameSpaces,
			"issuerAuth": cbor.RawMessage(rd.Doc.IssuerAuth.RawCOSE),
		},
		"deviceSigned": deviceSigned,
	}, nil
}

// checkAgeOverLimit rejects mDL disclosures with more than two
// simultaneous age_over_NN attestations.
func checkAgeOverLimit(docType string, items []DisclosedItem) error {
	if docType != MDLDocType {
		return nil
	}
	count := 0
	for _, item := range items {
		if item.Namespace == MDLNamespace && strings.HasPrefix(item.Element, "age_over_") {
			count++
		}
	}
	if count > 2 {
		return fmt.Errorf("%w: %d requested", ErrAgeOverLimit, count)
	}
	return nil
}

// selectIssuerSignedItems merges the stored issuer-signed namespaces
// with the disclosed subset, preserving the original Tag-24 encodings
// so the MSO digests keep verifying.
func selectIssuerSignedItems(doc *Document, items []DisclosedItem) (map[string][]cbor.RawMessage, error) {
	disclosed := make(map[string]map[string]bool)
	for _, item := range items {
		if disclosed[item.Namespace] == nil {
			disclosed[item.Namespace] = make(map[string]bool)
		}
		disclosed[item.Namespace][item.Element] = true
	}

	result := make(map[string][]cbor.RawMessage)
	for ns, nsItems := range doc.NameSpaces {
		wanted := disclosed[ns]
		if len(wanted) == 0 {
			continue
		}
		for _, isi := range nsItems {
			if !wanted[isi.ElementIdentifier] {
				continue
			}
			raw := isi.RawCBOR
			if raw == nil {
				encoded, err := encodeIssuerSignedItem(isi)
				if err != nil {
					return nil, err
				}
				raw = encoded
			}
			result[ns] = append(result[ns], cbor.RawMessage(raw))
		}
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("no disclosed items present in document")
	}
	return result, nil
}

func encodeIssuerSignedItem(isi IssuerSignedItem) ([]byte, error) {
	inner, err := cbor.Marshal(map[string]any{
		"digestID":          isi.DigestID,
		"random":            isi.Random,
		"elementIdentifier": isi.ElementIdentifier,
		"elementValue":      isi.ElementValue,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding IssuerSignedItem: %w", err)
	}
	return cbor.Marshal(cbor.Tag{Number: 24, Content: inner})
}

// signDeviceAuth produces the deviceSigned structure: empty device
// namespaces plus a COSE_Sign1 deviceSignature over
// DeviceAuthentication = ["DeviceAuthentication", SessionTranscript,
// DocType, DeviceNameSpacesBytes], carried as a detached payload.
func signDeviceAuth(docType string, sessionTranscript []byte, signer crypto.Signer) (map[string]any, error) {
	if signer == nil {
		return nil, fmt.Errorf("no signer for device authentication")
	}

	emptyNS, err := cbor.Marshal(map[string]any{})
	if err != nil {
		return nil, err
	}
	deviceNameSpacesBytes, err := cbor.Marshal(cbor.Tag{Number: 24, Content: emptyNS})
	if err != nil {
		return nil, err
	}

	deviceAuth, err := cbor.Marshal([]any{
		"DeviceAuthentication",
		cbor.RawMessage(sessionTranscript),
		docType,
		cbor.RawMessage(deviceNameSpacesBytes),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding DeviceAuthentication: %w", err)
	}
	deviceAuthBytes, err := cbor.Marshal(cbor.Tag{Number: 24, Content: deviceAuth})
	if err != nil {
		return nil, err
	}

	coseSigner, err := cose.NewSigner(cose.AlgorithmES256, signer)
	if err != nil {
		return nil, fmt.Errorf("creating COSE signer: %w", err)
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Payload = deviceAuthBytes
	if err := msg.Sign(rand.Reader, nil, coseSigner); err != nil {
		return nil, fmt.Errorf("signing DeviceAuthentication: %w", err)
	}
	// Detach the payload; verifiers reconstruct it from the transcript.
	msg.Payload = nil

	signature, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("encoding deviceSignature: %w", err)
	}

	return map[string]any{
		"nameSpaces": cbor.RawMessage(deviceNameSpacesBytes),
		"deviceAuth": map[string]any{
			"deviceSignature": cbor.RawMessage(signature),
		},
	}, nil
}
