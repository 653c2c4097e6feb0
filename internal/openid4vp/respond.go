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
	"fmt"
	"net/url"

	"github.com/dominikschlosser/wallet-core/internal/request"
)

// assembleResponse serializes the authorization response as the
// direct_post form body. When the verifier asked for direct_post.jwt
// the whole response is wrapped in a JWE instead, with the
// mdoc-generated nonce as apu so the verifier can rebuild the session
// transcript.
func assembleResponse(protocol request.Protocol, reqObj *ResolvedRequestObject, vpToken any, submission map[string]any, mdocNonce string, transcript []byte, docIDs, queryIDs []string) (*request.Response, error) {
	form := url.Values{}

	if reqObj.ResponseMode == "direct_post.jwt" {
		jwe, err := EncryptResponse(vpToken, reqObj.State, submission, mdocNonce, reqObj)
		if err != nil {
			return nil, fmt.Errorf("encrypting response: %w", err)
		}
		form.Set("response", jwe)
	} else {
		if reqObj.State != "" {
			form.Set("state", reqObj.State)
		}
		switch v := vpToken.(type) {
		case string:
			form.Set("vp_token", v)
		default:
			tokenJSON, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("marshaling vp_token: %w", err)
			}
			form.Set("vp_token", string(tokenJSON))
		}
		if submission != nil {
			submissionJSON, err := json.Marshal(submission)
			if err != nil {
				return nil, fmt.Errorf("marshaling presentation_submission: %w", err)
			}
			form.Set("presentation_submission", string(submissionJSON))
		}
	}

	return &request.Response{
		Protocol:          protocol,
		Body:              []byte(form.Encode()),
		ContentType:       "application/x-www-form-urlencoded",
		SessionTranscript: transcript,
		DocumentIDs:       docIDs,
		QueryIDs:          queryIDs,
	}, nil
}
