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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dominikschlosser/wallet-core/internal/format"
	"github.com/dominikschlosser/wallet-core/internal/mdoc"
	"github.com/dominikschlosser/wallet-core/internal/output"
	"github.com/dominikschlosser/wallet-core/internal/sdjwt"
	"github.com/dominikschlosser/wallet-core/internal/statuslist"
)

var statusCmd = &cobra.Command{
	Use:   "status [input]",
	Short: "Check credential revocation via status list",
	Long:  "Extracts the status list reference from a credential and checks revocation status. This makes a network call to fetch the status list.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	input := ""
	if len(args) > 0 {
		input = args[0]
	}

	raw, err := format.ReadInput(input)
	if err != nil {
		return err
	}

	opts := outputOptions()

	var ref *statuslist.StatusRef

	switch format.Detect(raw) {
	case format.FormatSDJWT, format.FormatJWT:
		token, err := sdjwt.Parse(raw)
		if err != nil {
			return fmt.Errorf("parsing SD-JWT: %w", err)
		}
		ref = statuslist.RefFromClaims(token.ResolvedClaims)

	case format.FormatMDOC:
		doc, err := mdoc.Parse(raw)
		if err != nil {
			return fmt.Errorf("parsing mDOC: %w", err)
		}
		if doc.IssuerAuth == nil {
			return fmt.Errorf("no issuer auth found in mDOC")
		}
		ref = statuslist.RefFromMSO(doc.IssuerAuth.MSO)

	default:
		return fmt.Errorf("unable to auto-detect credential format")
	}

	if ref == nil {
		return fmt.Errorf("no status list reference found in credential")
	}

	if !opts.JSON {
		fmt.Printf("Checking status at: %s (index %d)\n", ref.URI, ref.Idx)
	}

	result, err := statuslist.NewChecker(nil, nil).Check(ref)
	if err != nil {
		return fmt.Errorf("status check failed: %w", err)
	}

	output.PrintStatusResult(result, opts)

	if !result.IsValid {
		return fmt.Errorf("credential is revoked")
	}

	return nil
}
