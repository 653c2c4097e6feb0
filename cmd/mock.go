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
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dominikschlosser/wallet-core/internal/mock"
)

var (
	mockVCT       string
	mockDocType   string
	mockNamespace string
	mockClaims    string
)

var mockCmd = &cobra.Command{
	Use:   "mock <sdjwt|mdoc>",
	Short: "Generate a mock credential with EUDI PID claims",
	Long:  "Generates a freshly signed test credential. sdjwt emits an SD-JWT with every claim selectively disclosable, mdoc emits a hex-encoded IssuerSigned structure. Claims default to the EUDI PID Rulebook set and can be overridden with --claims.",
	Args:  cobra.ExactArgs(1),
	RunE:  runMock,
}

func init() {
	mockCmd.Flags().StringVar(&mockVCT, "vct", mock.DefaultPIDVCT, "Verifiable Credential Type (sdjwt)")
	mockCmd.Flags().StringVar(&mockDocType, "doctype", "eu.europa.ec.eudi.pid.1", "Document type (mdoc)")
	mockCmd.Flags().StringVar(&mockNamespace, "namespace", "eu.europa.ec.eudi.pid.1", "Namespace (mdoc)")
	mockCmd.Flags().StringVar(&mockClaims, "claims", "", "Claims as JSON object (defaults to PID Rulebook claims)")
	rootCmd.AddCommand(mockCmd)
}

func runMock(cmd *cobra.Command, args []string) error {
	key, err := mock.GenerateKey()
	if err != nil {
		return fmt.Errorf("generating key: %w", err)
	}

	var claims map[string]any
	if mockClaims != "" {
		if err := json.Unmarshal([]byte(mockClaims), &claims); err != nil {
			return fmt.Errorf("parsing --claims: %w", err)
		}
	}

	switch args[0] {
	case "sdjwt":
		if claims == nil {
			claims = mock.SDJWTPIDClaims
		}
		token, err := mock.GenerateSDJWT(mock.SDJWTConfig{
			Issuer:    "https://issuer.example",
			VCT:       mockVCT,
			ExpiresIn: 90 * 24 * time.Hour,
			Claims:    claims,
			Key:       key,
		})
		if err != nil {
			return fmt.Errorf("generating SD-JWT: %w", err)
		}
		fmt.Println(token)

	case "mdoc":
		if claims == nil {
			claims = mock.MDOCPIDClaims
		}
		encoded, err := mock.GenerateMDOC(mock.MDOCConfig{
			DocType:   mockDocType,
			Namespace: mockNamespace,
			Claims:    claims,
			Key:       key,
		})
		if err != nil {
			return fmt.Errorf("generating mDOC: %w", err)
		}
		fmt.Println(encoded)

	default:
		return fmt.Errorf("unknown credential format %q (want sdjwt or mdoc)", args[0])
	}

	return nil
}
