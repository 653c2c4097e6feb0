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
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ParseDeviceRequest decodes an ISO 18013-5 DeviceRequest from CBOR.
func ParseDeviceRequest(data []byte) (*DeviceRequest, error) {
	var raw map[any]any
	if err := cborDecMode.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding DeviceRequest CBOR: %w", err)
	}

	req := &DeviceRequest{}
	if v, ok := raw["version"].(string); ok {
		req.Version = v
	}

	docRequests, ok := raw["docRequests"].([]any)
	if !ok || len(docRequests) == 0 {
		return nil, fmt.Errorf("DeviceRequest has no docRequests")
	}

	for i, entry := range docRequests {
		entryMap, ok := entry.(map[any]any)
		if !ok {
			return nil, fmt.Errorf("invalid docRequest at index %d", i)
		}
		dr, err := parseDocRequest(entryMap)
		if err != nil {
			return nil, fmt.Errorf("parsing docRequest %d: %w", i, err)
		}
		req.DocRequests = append(req.DocRequests, *dr)
	}

	return req, nil
}

func parseDocRequest(entry map[any]any) (*DocRequest, error) {
	itemsRequestRaw, ok := entry["itemsRequest"]
	if !ok {
		return nil, fmt.Errorf("missing itemsRequest")
	}

	// itemsRequest is Tag-24 wrapped CBOR
	var itemsBytes []byte
	var tag24 []byte
	switch v := itemsRequestRaw.(type) {
	case cbor.Tag:
		if v.Number != 24 {
			return nil, fmt.Errorf("itemsRequest has unexpected tag %d", v.Number)
		}
		b, ok := v.Content.([]byte)
		if !ok {
			return nil, fmt.Errorf("itemsRequest tag 24 content is not bstr")
		}
		itemsBytes = b
		if encoded, err := cbor.Marshal(v); err == nil {
			tag24 = encoded
		}
	case []byte:
		itemsBytes = v
	default:
		return nil, fmt.Errorf("cannot handle itemsRequest type %T", itemsRequestRaw)
	}

	var items map[any]any
	if err := cborDecMode.Unmarshal(itemsBytes, &items); err != nil {
		return nil, fmt.Errorf("decoding ItemsRequest: %w", err)
	}

	dr := &DocRequest{
		NameSpaces:        make(map[string]map[string]bool),
		ItemsRequestBytes: tag24,
	}

	docType, ok := items["docType"].(string)
	if !ok || docType == "" {
		return nil, fmt.Errorf("ItemsRequest missing docType")
	}
	dr.DocType = docType

	nsMap, ok := items["nameSpaces"].(map[any]any)
	if !ok {
		return nil, fmt.Errorf("ItemsRequest missing nameSpaces")
	}
	for nsKey, nsVal := range nsMap {
		ns := fmt.Sprintf("%v", nsKey)
		elems, ok := nsVal.(map[any]any)
		if !ok {
			continue
		}
		dr.NameSpaces[ns] = make(map[string]bool, len(elems))
		for elemKey, retain := range elems {
			elem := fmt.Sprintf("%v", elemKey)
			intentToRetain, _ := retain.(bool)
			dr.NameSpaces[ns][elem] = intentToRetain
		}
	}

	// readerAuth is an optional COSE_Sign1
	if ra, ok := entry["readerAuth"]; ok {
		switch v := ra.(type) {
		case []byte:
			dr.ReaderAuth = v
		case cbor.Tag:
			if encoded, err := cbor.Marshal(v); err == nil {
				dr.ReaderAuth = encoded
			}
		default:
			if encoded, err := cbor.Marshal(cbor.Tag{Number: 18, Content: ra}); err == nil {
				dr.ReaderAuth = encoded
			}
		}
	}

	return dr, nil
}
