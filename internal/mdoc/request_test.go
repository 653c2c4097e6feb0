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
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func buildDeviceRequestCBOR(t *testing.T, docType string, nameSpaces map[string]map[string]bool, readerAuth any) []byte {
	t.Helper()

	itemsRequest := map[string]any{
		"docType":    docType,
		"nameSpaces": nameSpaces,
	}
	itemsBytes, err := cbor.Marshal(itemsRequest)
	if err != nil {
		t.Fatal(err)
	}

	docRequest := map[string]any{
		"itemsRequest": cbor.Tag{Number: 24, Content: itemsBytes},
	}
	if readerAuth != nil {
		docRequest["readerAuth"] = readerAuth
	}

	data, err := cbor.Marshal(map[string]any{
		"version":     "1.0",
		"docRequests": []any{docRequest},
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestParseDeviceRequest(t *testing.T) {
	data := buildDeviceRequestCBOR(t, MDLDocType, map[string]map[string]bool{
		MDLNamespace: {"family_name": true, "age_over_18": false},
	}, nil)

	req, err := ParseDeviceRequest(data)
	if err != nil {
		t.Fatalf("ParseDeviceRequest: %v", err)
	}
	if req.Version != "1.0" {
		t.Errorf("version = %q", req.Version)
	}
	if len(req.DocRequests) != 1 {
		t.Fatalf("expected 1 docRequest, got %d", len(req.DocRequests))
	}

	dr := req.DocRequests[0]
	if dr.DocType != MDLDocType {
		t.Errorf("docType = %q", dr.DocType)
	}
	elems := dr.NameSpaces[MDLNamespace]
	if len(elems) != 2 {
		t.Fatalf("expected 2 elements, got %v", elems)
	}
	if !elems["family_name"] {
		t.Error("family_name intentToRetain should be true")
	}
	if elems["age_over_18"] {
		t.Error("age_over_18 intentToRetain should be false")
	}
	if len(dr.ItemsRequestBytes) == 0 {
		t.Error("expected preserved itemsRequest bytes")
	}
}

func TestParseDeviceRequestWithReaderAuth(t *testing.T) {
	coseArr := []any{
		[]byte{0xa1, 0x01, 0x26},
		map[any]any{},
		nil,
		make([]byte, 64),
	}
	data := buildDeviceRequestCBOR(t, MDLDocType, map[string]map[string]bool{
		MDLNamespace: {"family_name": true},
	}, cbor.Tag{Number: 18, Content: coseArr})

	req, err := ParseDeviceRequest(data)
	if err != nil {
		t.Fatalf("ParseDeviceRequest: %v", err)
	}
	if len(req.DocRequests[0].ReaderAuth) == 0 {
		t.Error("expected readerAuth bytes")
	}
}

func TestParseDeviceRequestMissingDocRequests(t *testing.T) {
	data, err := cbor.Marshal(map[string]any{"version": "1.0"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseDeviceRequest(data); err == nil {
		t.Fatal("expected error for missing docRequests")
	}
}

func TestParseDeviceRequestMissingDocType(t *testing.T) {
	itemsBytes, err := cbor.Marshal(map[string]any{
		"nameSpaces": map[string]any{MDLNamespace: map[string]any{"family_name": true}},
	})
	if err != nil {
		t.Fatal(err)
	}
	data, err := cbor.Marshal(map[string]any{
		"version":     "1.0",
		"docRequests": []any{map[string]any{"itemsRequest": cbor.Tag{Number: 24, Content: itemsBytes}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseDeviceRequest(data); err == nil {
		t.Fatal("expected error for missing docType")
	}
}
