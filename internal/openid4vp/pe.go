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
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/dominikschlosser/wallet-core/internal/document"
	"github.com/dominikschlosser/wallet-core/internal/keys"
	"github.com/dominikschlosser/wallet-core/internal/readerauth"
	"github.com/dominikschlosser/wallet-core/internal/request"
)

// mdocFieldPath matches Presentation Exchange field paths addressing
// mdoc data elements, e.g. $['org.iso.18013.5.1']['family_name'].
var mdocFieldPath = regexp.MustCompile(`\$\['(.*?)'\]\['(.*?)'\]`)

// PEProcessor matches OpenID4VP authorization requests carrying a
// Presentation Exchange presentation_definition against the stored
// documents.
type PEProcessor struct {
	store document.Store
	trust *readerauth.TrustStore
	area  keys.SecureArea
	log   logrus.FieldLogger
}

func NewPEProcessor(cfg Config) (*PEProcessor, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("openid4vp: config missing document store")
	}
	if cfg.SecureArea == nil {
		return nil, fmt.Errorf("openid4vp: config missing secure area")
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PEProcessor{store: cfg.Store, trust: cfg.Trust, area: cfg.SecureArea, log: log}, nil
}

// inputDescriptor is the subset of a Presentation Exchange input
// descriptor the matcher consumes.
type inputDescriptor struct {
	ID     string
	Format document.Format
	// VCTValues restricts SD-JWT matches, taken from a $.vct field filter.
	VCTValues []string
	Items     []request.Item
}

// Process matches each input descriptor against the stored documents.
// Descriptors with no matching document are skipped; the request fails
// only when nothing matches at all.
func (p *PEProcessor) Process(req request.Request) request.ProcessedRequest {
	if req.Protocol != request.ProtocolOpenID4VPPresEx {
		return request.Failed{Cause: fmt.Errorf("openid4vp: PE processor received %s request", req.Protocol)}
	}
	payload, ok := req.Payload.(Payload)
	if !ok || payload.RequestObject == nil {
		return request.Failed{Cause: fmt.Errorf("openid4vp: unexpected payload type %T", req.Payload)}
	}
	reqObj := payload.RequestObject
	if reqObj.PresentationDefinition == nil {
		return request.Failed{Cause: fmt.Errorf("openid4vp: request carries no presentation_definition")}
	}

	descriptors, err := parseInputDescriptors(reqObj.PresentationDefinition)
	if err != nil {
		return request.Failed{Cause: fmt.Errorf("openid4vp: malformed presentation_definition: %w", err)}
	}

	var readerAuth *request.ReaderAuth
	if p.trust != nil && len(reqObj.X5C) > 0 {
		readerAuth = p.trust.EvaluateX5C(reqObj.X5C)
	}

	now := time.Now()
	var requested []request.RequestedDocument
	for _, desc := range descriptors {
		matched := false
		for _, doc := range p.store.List() {
			if !descriptorMatches(desc, doc, now) {
				continue
			}
			requested = append(requested, request.RequestedDocument{
				DocumentID: doc.ID,
				QueryID:    desc.ID,
				Items:      desc.Items,
				ReaderAuth: readerAuth,
			})
			matched = true
		}
		if !matched {
			p.log.WithField("descriptor", desc.ID).Debug("openid4vp: no document matches input descriptor")
		}
	}

	if len(requested) == 0 {
		return request.Failed{Cause: fmt.Errorf("openid4vp: no stored document matches any input descriptor")}
	}

	definitionID, _ := reqObj.PresentationDefinition["id"].(string)
	return &ProcessedPERequest{
		SuccessBase:  request.SuccessBase{RequestedDocuments: requested},
		reqObj:       reqObj,
		definitionID: definitionID,
		store:        p.store,
		area:         p.area,
		log:          p.log,
	}
}

// parseInputDescriptors extracts the descriptors from a raw
// presentation_definition map.
func parseInputDescriptors(pd map[string]any) ([]inputDescriptor, error) {
	rawDescriptors, ok := pd["input_descriptors"].([]any)
	if !ok || len(rawDescriptors) == 0 {
		return nil, fmt.Errorf("no input_descriptors")
	}

	var descriptors []inputDescriptor
	for i, raw := range rawDescriptors {
		descMap, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("input descriptor %d is not an object", i)
		}
		desc, err := parseInputDescriptor(descMap)
		if err != nil {
			return nil, fmt.Errorf("input descriptor %d: %w", i, err)
		}
		descriptors = append(descriptors, desc)
	}
	return descriptors, nil
}

func parseInputDescriptor(descMap map[string]any) (inputDescriptor, error) {
	desc := inputDescriptor{}
	desc.ID, _ = descMap["id"].(string)
	if desc.ID == "" {
		return desc, fmt.Errorf("missing id")
	}

	desc.Format = descriptorFormat(descMap)

	constraints, _ := descMap["constraints"].(map[string]any)
	fields, _ := constraints["fields"].([]any)
	for _, rawField := range fields {
		field, ok := rawField.(map[string]any)
		if !ok {
			continue
		}
		paths, _ := field["path"].([]any)
		if len(paths) == 0 {
			continue
		}
		path, _ := paths[0].(string)
		retain, _ := field["intent_to_retain"].(bool)

		if m := mdocFieldPath.FindStringSubmatch(path); m != nil {
			if desc.Format == "" {
				desc.Format = document.FormatMdoc
			}
			desc.Items = append(desc.Items, request.Item{
				Namespace:      m[1],
				Element:        m[2],
				IntentToRetain: retain,
			})
			continue
		}

		claim := strings.TrimPrefix(path, "$.")
		if claim == path || claim == "" {
			continue
		}
		if desc.Format == "" {
			desc.Format = document.FormatSDJWT
		}
		if claim == "vct" {
			desc.VCTValues = filterValues(field["filter"])
			continue
		}
		topLevel, _, _ := strings.Cut(claim, ".")
		desc.Items = append(desc.Items, request.Item{
			Element: topLevel,
			Path:    []any{topLevel},
		})
	}

	if len(desc.Items) == 0 {
		return desc, fmt.Errorf("no requestable fields")
	}
	return desc, nil
}

// descriptorFormat reads the descriptor's declared format, empty when
// absent so field paths decide.
func descriptorFormat(descMap map[string]any) document.Format {
	formats, _ := descMap["format"].(map[string]any)
	for key := range formats {
		switch key {
		case "mso_mdoc":
			return document.FormatMdoc
		case "dc+sd-jwt", "vc+sd-jwt":
			return document.FormatSDJWT
		}
	}
	return ""
}

// filterValues extracts the allowed values from a field filter, reading
// both const and enum forms.
func filterValues(filter any) []string {
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil
	}
	if c := gjson.GetBytes(filterJSON, "const"); c.Exists() {
		return []string{c.String()}
	}
	var values []string
	for _, v := range gjson.GetBytes(filterJSON, "enum").Array() {
		values = append(values, v.String())
	}
	return values
}

// descriptorMatches reports whether doc satisfies desc. Mdoc documents
// match on docType, which ISO 18013-7 puts in the descriptor id.
// SD-JWT documents match on vct and must hold every requested claim.
func descriptorMatches(desc inputDescriptor, doc document.Document, now time.Time) bool {
	if doc.Format != desc.Format || !doc.Usable(now) {
		return false
	}

	switch desc.Format {
	case document.FormatMdoc:
		if doc.DocType != desc.ID {
			return false
		}
		for _, item := range desc.Items {
			if _, ok := doc.Claims[item.Namespace+":"+item.Element]; !ok {
				return false
			}
		}
		return true
	case document.FormatSDJWT:
		if len(desc.VCTValues) > 0 {
			found := false
			for _, vct := range desc.VCTValues {
				if doc.VCT == vct {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		claimsJSON, err := json.Marshal(doc.Claims)
		if err != nil {
			return false
		}
		for _, item := range desc.Items {
			if !gjson.GetBytes(claimsJSON, item.Element).Exists() {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ProcessedPERequest is the success outcome of Process.
type ProcessedPERequest struct {
	request.SuccessBase

	reqObj       *ResolvedRequestObject
	definitionID string
	store        document.Store
	area         keys.SecureArea
	log          logrus.FieldLogger
}

// GenerateResponse builds the vp_token and presentation_submission.
// A single presentation is sent as a plain string with the descriptor
// map pointing at $; several presentations become a JSON array with
// $[i] paths.
func (p *ProcessedPERequest) GenerateResponse(disclosed request.DisclosedDocuments, _ keys.Algorithm) request.ResponseResult {
	if len(disclosed.Documents) == 0 {
		return request.Failure(fmt.Errorf("openid4vp: nothing disclosed"))
	}

	binding, err := newSessionBinding(p.reqObj)
	if err != nil {
		return request.Failure(err)
	}

	var tokens []string
	var descriptorMap []map[string]any
	var docIDs []string
	seen := make(map[string]bool)

	for _, dd := range disclosed.Documents {
		if seen[dd.QueryID] {
			p.log.WithField("descriptor", dd.QueryID).Debug("openid4vp: extra document for descriptor ignored")
			continue
		}

		stored, ok := p.store.Get(dd.DocumentID)
		if !ok {
			return request.Failure(fmt.Errorf("openid4vp: unknown document %s", dd.DocumentID))
		}

		signer, err := keys.SignerFor(p.area, stored.KeyID, dd.KeyUnlock)
		if err != nil {
			if errors.Is(err, keys.ErrKeyLocked) {
				return request.UserAuthRequired(&keys.UnlockData{KeyID: stored.KeyID})
			}
			return request.Failure(fmt.Errorf("openid4vp: obtaining signer for %s: %w", dd.DocumentID, err))
		}

		token, err := buildPresentation(stored, dd.Items, signer, p.reqObj, binding)
		if err != nil {
			return request.Failure(fmt.Errorf("openid4vp: building presentation for %s: %w", dd.DocumentID, err))
		}

		descriptorMap = append(descriptorMap, map[string]any{
			"id":     dd.QueryID,
			"format": string(stored.Format),
		})
		tokens = append(tokens, token)
		docIDs = append(docIDs, dd.DocumentID)
		seen[dd.QueryID] = true
	}

	var vpToken any
	if len(tokens) == 1 {
		vpToken = tokens[0]
		descriptorMap[0]["path"] = "$"
	} else {
		vpToken = tokens
		for i := range descriptorMap {
			descriptorMap[i]["path"] = fmt.Sprintf("$[%d]", i)
		}
	}

	submission := map[string]any{
		"id":             uuid.NewString(),
		"definition_id":  p.definitionID,
		"descriptor_map": descriptorMap,
	}

	resp, err := assembleResponse(request.ProtocolOpenID4VPPresEx, p.reqObj, vpToken, submission, binding.MDocNonce, binding.Transcript, docIDs, nil)
	if err != nil {
		return request.Failure(err)
	}
	return request.Success(resp)
}
