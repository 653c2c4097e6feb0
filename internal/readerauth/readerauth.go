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

// Package readerauth evaluates verifier/reader authentication: it
// extracts the certificate chain from a COSE_Sign1 reader auth
// structure and checks it against the configured trust anchors.
package readerauth

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/sirupsen/logrus"

	"github.com/dominikschlosser/wallet-core/internal/request"
)

var cborDecMode cbor.DecMode

func init() {
	var err error
	cborDecMode, err = cbor.DecOptions{
		IntDec: cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// TrustStore holds reader trust anchors and produces ReaderAuth
// verdicts. Evaluation never fails the surrounding flow: an absent or
// broken reader auth yields an untrusted verdict, not an error.
type TrustStore struct {
	mu      sync.RWMutex
	anchors []*x509.Certificate
	log     logrus.FieldLogger
}

func NewTrustStore(log logrus.FieldLogger) *TrustStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TrustStore{log: log}
}

// AddAnchor registers a trust anchor certificate.
func (s *TrustStore) AddAnchor(cert *x509.Certificate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchors = append(s.anchors, cert)
}

// AddAnchorPEM registers every certificate in the PEM input.
func (s *TrustStore) AddAnchorPEM(data []byte) error {
	added := 0
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return fmt.Errorf("parsing trust anchor: %w", err)
		}
		s.AddAnchor(cert)
		added++
	}
	if added == 0 {
		return fmt.Errorf("no certificates in PEM input")
	}
	return nil
}

// Evaluate inspects a COSE_Sign1 reader authentication structure and
// returns the trust verdict for it, or nil when readerAuth is empty.
func (s *TrustStore) Evaluate(readerAuthCOSE []byte) *request.ReaderAuth {
	if len(readerAuthCOSE) == 0 {
		return nil
	}

	ra := &request.ReaderAuth{Raw: readerAuthCOSE}

	chain, err := extractX5Chain(readerAuthCOSE)
	if err != nil {
		s.log.WithError(err).Warn("readerauth: cannot extract certificate chain")
		return ra
	}
	if len(chain) == 0 {
		return ra
	}

	var certs []*x509.Certificate
	for _, der := range chain {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			s.log.WithError(err).Warn("readerauth: broken certificate in chain")
			return ra
		}
		certs = append(certs, cert)
	}

	ra.CertChain = chain
	ra.CommonName = certs[0].Subject.CommonName

	if err := s.verifyChain(certs); err != nil {
		s.log.WithError(err).Info("readerauth: chain not anchored in trust store")
		return ra
	}

	ra.Trusted = true
	return ra
}

// EvaluateX5C checks a JOSE x5c header chain (base64 DER strings), as
// carried by signed OpenID4VP request objects. Returns nil when x5c is
// empty.
func (s *TrustStore) EvaluateX5C(x5c []any) *request.ReaderAuth {
	if len(x5c) == 0 {
		return nil
	}

	ra := &request.ReaderAuth{}
	var certs []*x509.Certificate
	for _, entry := range x5c {
		b64, ok := entry.(string)
		if !ok {
			s.log.Warn("readerauth: x5c entry is not a string")
			return ra
		}
		der, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			s.log.WithError(err).Warn("readerauth: decoding x5c certificate")
			return ra
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			s.log.WithError(err).Warn("readerauth: parsing x5c certificate")
			return ra
		}
		certs = append(certs, cert)
		ra.CertChain = append(ra.CertChain, der)
	}

	ra.CommonName = certs[0].Subject.CommonName
	if err := s.verifyChain(certs); err != nil {
		s.log.WithError(err).Info("readerauth: x5c chain not anchored in trust store")
		return ra
	}
	ra.Trusted = true
	return ra
}

// verifyChain checks that the leaf chains up to a registered anchor.
func (s *TrustStore) verifyChain(certs []*x509.Certificate) error {
	s.mu.RLock()
	anchors := s.anchors
	s.mu.RUnlock()

	if len(anchors) == 0 {
		return fmt.Errorf("no trust anchors configured")
	}

	roots := x509.NewCertPool()
	for _, a := range anchors {
		roots.AddCert(a)
	}
	intermediates := x509.NewCertPool()
	for _, c := range certs[1:] {
		intermediates.AddCert(c)
	}

	_, err := certs[0].Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return fmt.Errorf("certificate chain not trusted: %w", err)
	}
	return nil
}

// extractX5Chain pulls the x5chain (COSE label 33) out of a COSE_Sign1
// unprotected header. x5chain can be a single cert or an array.
func extractX5Chain(coseSign1 []byte) ([][]byte, error) {
	var raw any
	if err := cborDecMode.Unmarshal(coseSign1, &raw); err != nil {
		return nil, fmt.Errorf("decoding COSE_Sign1: %w", err)
	}
	if tag, ok := raw.(cbor.Tag); ok {
		raw = tag.Content
	}

	arr, ok := raw.([]any)
	if !ok || len(arr) != 4 {
		return nil, fmt.Errorf("not a COSE_Sign1 structure")
	}

	unprotected, ok := arr[1].(map[any]any)
	if !ok {
		return nil, nil
	}
	x5chain, ok := unprotected[int64(33)]
	if !ok {
		if x5chain, ok = unprotected[uint64(33)]; !ok {
			return nil, nil
		}
	}

	switch v := x5chain.(type) {
	case []byte:
		return [][]byte{v}, nil
	case []any:
		var chain [][]byte
		for _, entry := range v {
			b, ok := entry.([]byte)
			if !ok {
				return nil, fmt.Errorf("x5chain entry is not a byte string")
			}
			chain = append(chain, b)
		}
		return chain, nil
	default:
		return nil, fmt.Errorf("unexpected x5chain type %T", x5chain)
	}
}
