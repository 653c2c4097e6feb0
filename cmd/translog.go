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

	"github.com/spf13/cobra"

	"github.com/dominikschlosser/wallet-core/internal/format"
	"github.com/dominikschlosser/wallet-core/internal/output"
	"github.com/dominikschlosser/wallet-core/internal/translog"
)

var translogCmd = &cobra.Command{
	Use:   "translog <file>",
	Short: "Reconstruct what was disclosed from a persisted transaction log",
	Long:  "Parses a persisted presentation transaction log (JSON) and reconstructs the disclosed documents and claims from its raw response, without needing the original credentials.",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranslog,
}

func init() {
	rootCmd.AddCommand(translogCmd)
}

func runTranslog(cmd *cobra.Command, args []string) error {
	raw, err := format.ReadInput(args[0])
	if err != nil {
		return err
	}

	var entry translog.TransactionLog
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return fmt.Errorf("parsing transaction log: %w", err)
	}

	parsed, err := translog.ParsePresentation(entry)
	if err != nil {
		return fmt.Errorf("reconstructing presentation: %w", err)
	}

	output.PrintPresentationLog(parsed, outputOptions())
	return nil
}
