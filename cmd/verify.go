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

package cmd

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/spf13/cobra"

	"github.com/dominikschlosser/wallet-core/internal/format"
	"github.com/dominikschlosser/wallet-core/internal/mdoc"
	"github.com/dominikschlosser/wallet-core/internal/output"
	"github.com/dominikschlosser/wallet-core/internal/sdjwt"
)

var verifyKeyFile string

var verifyCmd = &cobra.Command{
	Use:   "verify [input]",
	Short: "Verify a credential's issuer signature",
	Long:  "Verifies the issuer signature of an SD-JWT or mDOC credential against a public key (PEM, certificate, or JWK file).",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyKeyFile, "key", "", "issuer public key file (PEM public key, PEM certificate, or JWK)")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	if verifyKeyFile == "" {
		return fmt.Errorf("--key is required")
	}
	keyData, err := os.ReadFile(verifyKeyFile)
	if err != nil {
		return err
	}
	pub, err := parsePublicKey(keyData)
	if err != nil {
		return fmt.Errorf("reading issuer key: %w", err)
	}

	input := ""
	if len(args) > 0 {
		input = args[0]
	}
	raw, err := format.ReadInput(input)
	if err != nil {
		return err
	}

	opts := outputOptions()

	switch format.Detect(raw) {
	case format.FormatSDJWT, format.FormatJWT:
		token, err := sdjwt.Parse(raw)
		if err != nil {
			return fmt.Errorf("parsing SD-JWT: %w", err)
		}
		result := sdjwt.Verify(token, pub)
		output.PrintVerifyResultSDJWT(result, opts)
		if !result.SignatureValid {
			return fmt.Errorf("signature verification failed")
		}

	case format.FormatMDOC:
		doc, err := mdoc.Parse(raw)
		if err != nil {
			return fmt.Errorf("parsing mDOC: %w", err)
		}
		result := mdoc.Verify(doc, pub)
		output.PrintVerifyResultMDOC(result, opts)
		if !result.SignatureValid {
			return fmt.Errorf("signature verification failed")
		}

	default:
		return fmt.Errorf("unable to auto-detect credential format")
	}

	return nil
}

// parsePublicKey reads a PEM public key, a PEM certificate, or a JWK.
func parsePublicKey(data []byte) (crypto.PublicKey, error) {
	if block, _ := pem.Decode(data); block != nil {
		switch block.Type {
		case "PUBLIC KEY":
			return x509.ParsePKIXPublicKey(block.Bytes)
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, err
			}
			return cert.PublicKey, nil
		default:
			return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
		}
	}

	var jwk jose.JSONWebKey
	if err := jwk.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("key is neither PEM nor JWK: %w", err)
	}
	return jwk.Key, nil
}
