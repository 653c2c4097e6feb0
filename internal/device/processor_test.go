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

package device

import (
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/dominikschlosser/wallet-core/internal/document"
	"github.com/dominikschlosser/wallet-core/internal/keys"
	"github.com/dominikschlosser/wallet-core/internal/mdoc"
	"github.com/dominikschlosser/wallet-core/internal/request"
)

func issuerSignedCBOR(t *testing.T, namespace string, elements map[string]any) []byte {
	t.Helper()

	var taggedItems []cbor.Tag
	digestID := uint64(0)
	for elem, value := range elements {
		itemBytes, err := cbor.Marshal(map[string]any{
			"digestID":          digestID,
			"random":            []byte("random-salt"),
			"elementIdentifier": elem,
			"elementValue":      value,
		})
		if err != nil {
			t.Fatal(err)
		}
		taggedItems = append(taggedItems, cbor.Tag{Number: 24, Content: itemBytes})
		digestID++
	}

	coseArr := []any{
		[]byte{0xa1, 0x01, 0x26},
		map[any]any{},
		[]byte("payload"),
		make([]byte, 64),
	}

	data, err := cbor.Marshal(map[string]any{
		"nameSpaces": map[string]any{namespace: taggedItems},
		"issuerAuth": cbor.Tag{Number: 18, Content: coseArr},
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func deviceRequestCBOR(t *testing.T, docType string, nameSpaces map[string]map[string]bool) []byte {
	t.Helper()
	itemsBytes, err := cbor.Marshal(map[string]any{
		"docType":    docType,
		"nameSpaces": nameSpaces,
	})
	if err != nil {
		t.Fatal(err)
	}
	data, err := cbor.Marshal(map[string]any{
		"version": "1.0",
		"docRequests": []any{map[string]any{
			"itemsRequest": cbor.Tag{Number: 24, Content: itemsBytes},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func setup(t *testing.T, passphrase string) (*Processor, []byte) {
	t.Helper()

	area := keys.NewSoftwareSecureArea()
	if _, err := area.CreateKey("k1", passphrase); err != nil {
		t.Fatal(err)
	}

	store := document.NewMemoryStore()
	raw := issuerSignedCBOR(t, mdoc.MDLNamespace, map[string]any{
		"family_name": "Mustermann",
		"given_name":  "Erika",
	})
	if err := store.Add(document.Document{
		ID:      "doc-1",
		Format:  document.FormatMdoc,
		DocType: mdoc.MDLDocType,
		KeyID:   "k1",
		Raw:     raw,
		Claims: map[string]any{
			mdoc.MDLNamespace + ":family_name": "Mustermann",
			mdoc.MDLNamespace + ":given_name":  "Erika",
		},
	}); err != nil {
		t.Fatal(err)
	}

	p, err := NewProcessor(Config{Store: store, SecureArea: area})
	if err != nil {
		t.Fatal(err)
	}

	transcript, err := mdoc.SessionTranscriptDCAPI("AQID", "https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	return p, transcript
}

func TestProcessMatchesByDocType(t *testing.T) {
	p, transcript := setup(t, "")

	req := request.Request{Protocol: request.ProtocolMdoc, Payload: Payload{
		DeviceRequest: deviceRequestCBOR(t, mdoc.MDLDocType, map[string]map[string]bool{
			mdoc.MDLNamespace: {"family_name": true},
		}),
		SessionTranscript: transcript,
	}}

	processed := p.Process(req)
	success, ok := processed.(*ProcessedDeviceRequest)
	if !ok {
		t.Fatalf("expected success, got %#v", processed)
	}
	if len(success.RequestedDocuments) != 1 {
		t.Fatalf("expected 1 requested document, got %d", len(success.RequestedDocuments))
	}
	rd := success.RequestedDocuments[0]
	if rd.DocumentID != "doc-1" {
		t.Errorf("document id = %s", rd.DocumentID)
	}
	if len(rd.Items) != 1 || rd.Items[0].Element != "family_name" || !rd.Items[0].IntentToRetain {
		t.Errorf("items = %v", rd.Items)
	}
}

func TestProcessNoMatchingDocType(t *testing.T) {
	p, transcript := setup(t, "")

	req := request.Request{Protocol: request.ProtocolMdoc, Payload: Payload{
		DeviceRequest: deviceRequestCBOR(t, "org.iso.23220.photoid.1", map[string]map[string]bool{
			"org.iso.23220.1": {"family_name": true},
		}),
		SessionTranscript: transcript,
	}}

	if _, ok := p.Process(req).(request.Failed); !ok {
		t.Fatal("expected failure for unmatched doctype")
	}
}

func TestProcessProtocolMismatch(t *testing.T) {
	p, _ := setup(t, "")
	res := p.Process(request.Request{Protocol: request.ProtocolDCAPI})
	if _, ok := res.(request.Failed); !ok {
		t.Fatal("expected failure for protocol mismatch")
	}
}

func TestGenerateResponseSignsDisclosure(t *testing.T) {
	p, transcript := setup(t, "")

	processed := p.Process(request.Request{Protocol: request.ProtocolMdoc, Payload: Payload{
		DeviceRequest: deviceRequestCBOR(t, mdoc.MDLDocType, map[string]map[string]bool{
			mdoc.MDLNamespace: {"family_name": true, "given_name": true},
		}),
		SessionTranscript: transcript,
	}})
	success := processed.(*ProcessedDeviceRequest)

	result := success.GenerateResponse(request.DisclosedDocuments{Documents: []request.DisclosedDocument{{
		DocumentID: "doc-1",
		Items:      []request.Item{{Namespace: mdoc.MDLNamespace, Element: "family_name"}},
	}}}, keys.AlgorithmES256)

	if result.Kind != request.ResultSuccess {
		t.Fatalf("expected success, got %s (%v)", result.Kind, result.Cause)
	}

	parsed, err := mdoc.ParseDeviceResponse(result.Response.Body)
	if err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	items := parsed[0].NameSpaces[mdoc.MDLNamespace]
	if len(items) != 1 || items[0].ElementIdentifier != "family_name" {
		t.Fatalf("disclosed items = %v", items)
	}
}

func TestGenerateResponseLockedKey(t *testing.T) {
	p, transcript := setup(t, "secret")

	processed := p.Process(request.Request{Protocol: request.ProtocolMdoc, Payload: Payload{
		DeviceRequest: deviceRequestCBOR(t, mdoc.MDLDocType, map[string]map[string]bool{
			mdoc.MDLNamespace: {"family_name": true},
		}),
		SessionTranscript: transcript,
	}})
	success := processed.(*ProcessedDeviceRequest)

	disclosed := request.DisclosedDocuments{Documents: []request.DisclosedDocument{{
		DocumentID: "doc-1",
		Items:      []request.Item{{Namespace: mdoc.MDLNamespace, Element: "family_name"}},
	}}}

	result := success.GenerateResponse(disclosed, keys.AlgorithmES256)
	if result.Kind != request.ResultUserAuthRequired {
		t.Fatalf("expected UserAuthRequired, got %s (%v)", result.Kind, result.Cause)
	}
	if result.Unlock == nil || result.Unlock.KeyID != "k1" {
		t.Fatalf("unlock = %+v", result.Unlock)
	}

	// Retry with unlock data succeeds.
	disclosed.Documents[0].KeyUnlock = &keys.UnlockData{KeyID: "k1", Passphrase: "secret"}
	result = success.GenerateResponse(disclosed, keys.AlgorithmES256)
	if result.Kind != request.ResultSuccess {
		t.Fatalf("expected success after unlock, got %s (%v)", result.Kind, result.Cause)
	}
}

func TestGenerateResponseAgeOverCapPropagates(t *testing.T) {
	area := keys.NewSoftwareSecureArea()
	if _, err := area.CreateKey("k1", ""); err != nil {
		t.Fatal(err)
	}
	store := document.NewMemoryStore()
	raw := issuerSignedCBOR(t, mdoc.MDLNamespace, map[string]any{
		"age_over_16": true, "age_over_18": true, "age_over_21": true,
	})
	if err := store.Add(document.Document{
		ID: "doc-1", Format: document.FormatMdoc, DocType: mdoc.MDLDocType,
		KeyID: "k1", Raw: raw,
	}); err != nil {
		t.Fatal(err)
	}
	p, err := NewProcessor(Config{Store: store, SecureArea: area})
	if err != nil {
		t.Fatal(err)
	}

	transcript, _ := mdoc.SessionTranscriptDCAPI("AQID", "https://example.com")
	processed := p.Process(request.Request{Protocol: request.ProtocolMdoc, Payload: Payload{
		DeviceRequest: deviceRequestCBOR(t, mdoc.MDLDocType, map[string]map[string]bool{
			mdoc.MDLNamespace: {"age_over_16": false, "age_over_18": false, "age_over_21": false},
		}),
		SessionTranscript: transcript,
	}})
	success := processed.(*ProcessedDeviceRequest)

	result := success.GenerateResponse(request.DisclosedDocuments{Documents: []request.DisclosedDocument{{
		DocumentID: "doc-1",
		Items: []request.Item{
			{Namespace: mdoc.MDLNamespace, Element: "age_over_16"},
			{Namespace: mdoc.MDLNamespace, Element: "age_over_18"},
			{Namespace: mdoc.MDLNamespace, Element: "age_over_21"},
		},
	}}}, keys.AlgorithmES256)

	if result.Kind != request.ResultFailure {
		t.Fatalf("expected failure, got %s", result.Kind)
	}
}
