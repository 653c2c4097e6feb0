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

import "time"

// Document represents a parsed mDOC credential.
type Document struct {
	Raw        []byte
	DocType    string
	NameSpaces map[string][]IssuerSignedItem
	IssuerAuth *IssuerAuth
	// DeviceSigned contains the device authentication data from a DeviceResponse.
	DeviceSigned *DeviceSigned
	// IsDeviceResponse indicates this was parsed from a DeviceResponse wrapper.
	IsDeviceResponse bool
}

// DeviceSigned contains the device-signed portion of a DeviceResponse document.
type DeviceSigned struct {
	DeviceAuth map[string]any
}

// IssuerSignedItem represents a single claim within a namespace.
type IssuerSignedItem struct {
	DigestID          uint64
	Random            []byte
	ElementIdentifier string
	ElementValue      any
	// RawCBOR is the full Tag-24 encoding of the item, preserved for
	// digest verification and for re-assembly into responses.
	RawCBOR []byte
}

// DeviceRequest is a parsed ISO 18013-5 device request.
type DeviceRequest struct {
	Version     string
	DocRequests []DocRequest
}

// DocRequest is one per-doctype request inside a DeviceRequest.
// Namespaces maps namespace to element identifier to intentToRetain.
type DocRequest struct {
	DocType    string
	NameSpaces map[string]map[string]bool
	// ReaderAuth is the raw COSE_Sign1 reader authentication, nil when
	// the reader did not authenticate.
	ReaderAuth []byte
	// ItemsRequestBytes is the Tag-24 wrapped ItemsRequest the reader
	// signed over.
	ItemsRequestBytes []byte
}

// IssuerAuth represents the COSE_Sign1 issuer authentication.
type IssuerAuth struct {
	RawCOSE           []byte
	ProtectedHeader   map[any]any
	UnprotectedHeader map[any]any
	Payload           []byte
	Signature         []byte
	MSO               *MSO
}

// MSO is the Mobile Security Object.
type MSO struct {
	Version         string
	DigestAlgorithm string
	DocType         string
	ValueDigests    map[string]map[uint64][]byte
	ValidityInfo    *ValidityInfo
	DeviceKeyInfo   map[string]any
	Status          map[string]any
}

// ValidityInfo contains credential validity dates.
type ValidityInfo struct {
	Signed     *time.Time
	ValidFrom  *time.Time
	ValidUntil *time.Time
}
