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

	"github.com/dominikschlosser/wallet-core/internal/dcql"
	"github.com/dominikschlosser/wallet-core/internal/document"
	"github.com/dominikschlosser/wallet-core/internal/format"
	"github.com/dominikschlosser/wallet-core/internal/mdoc"
	"github.com/dominikschlosser/wallet-core/internal/output"
	"github.com/dominikschlosser/wallet-core/internal/sdjwt"
)

var dcqlQueryFile string

var dcqlCmd = &cobra.Command{
	Use:   "dcql [credential...]",
	Short: "Generate or match a DCQL query against credentials",
	Long:  "Without --query, generates a DCQL (Digital Credentials Query Language) query covering the claims of the given credential. With --query, evaluates the query against the given credentials and reports the matches per credential query id.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDCQL,
}

func init() {
	dcqlCmd.Flags().StringVar(&dcqlQueryFile, "query", "", "DCQL query (file path or JSON) to match against the credentials")
	rootCmd.AddCommand(dcqlCmd)
}

func runDCQL(cmd *cobra.Command, args []string) error {
	docs := make([]document.Document, 0, len(args))
	for i, arg := range args {
		raw, err := format.ReadInput(arg)
		if err != nil {
			return err
		}
		doc, err := documentFromRaw(fmt.Sprintf("credential-%d", i+1), raw)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	if dcqlQueryFile == "" {
		// DCQL is a JSON query format, always output as JSON
		output.PrintJSON(dcql.FromDocument(docs[0]))
		return nil
	}

	rawQuery, err := format.ReadInput(dcqlQueryFile)
	if err != nil {
		return err
	}
	var query dcql.Query
	if err := json.Unmarshal([]byte(rawQuery), &query); err != nil {
		return fmt.Errorf("parsing DCQL query: %w", err)
	}

	matches := dcql.Evaluate(&query, docs, time.Now(), nil)
	if len(matches) == 0 {
		return fmt.Errorf("no credential satisfies the query")
	}
	output.PrintJSON(matches)
	return nil
}

// documentFromRaw wraps a raw credential string as a store document so
// the query engine can match against it.
func documentFromRaw(id, raw string) (document.Document, error) {
	switch format.Detect(raw) {
	case format.FormatSDJWT:
		token, err := sdjwt.Parse(raw)
		if err != nil {
			return document.Document{}, fmt.Errorf("parsing SD-JWT: %w", err)
		}
		vct, _ := token.ResolvedClaims["vct"].(string)
		return document.Document{
			ID:     id,
			Format: document.FormatSDJWT,
			VCT:    vct,
			Claims: token.ResolvedClaims,
			Raw:    []byte(raw),
			KeyID:  id,
		}, nil

	case format.FormatMDOC:
		parsed, err := mdoc.Parse(raw)
		if err != nil {
			return document.Document{}, fmt.Errorf("parsing mDOC: %w", err)
		}
		claims := make(map[string]any)
		for ns, items := range parsed.NameSpaces {
			for _, item := range items {
				claims[ns+":"+item.ElementIdentifier] = item.ElementValue
			}
		}
		return document.Document{
			ID:      id,
			Format:  document.FormatMdoc,
			DocType: parsed.DocType,
			Claims:  claims,
			Raw:     parsed.Raw,
			KeyID:   id,
		}, nil

	default:
		return document.Document{}, fmt.Errorf("unable to auto-detect credential format")
	}
}
