package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dominikschlosser/wallet-core/internal/format"
	"github.com/dominikschlosser/wallet-core/internal/output"
	"github.com/dominikschlosser/wallet-core/internal/trustlist"
)

var trustCmd = &cobra.Command{
	Use:   "trust <file|url>",
	Short: "Inspect an ETSI TS 119 602 trust list JWT",
	Long:  "Parses and displays the contents of an ETSI trust list JWT, including trusted entities and their X.509 certificates. Accepts a file path, URL, raw JWT string, or stdin.",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrust,
}

func init() {
	rootCmd.AddCommand(trustCmd)
}

func runTrust(cmd *cobra.Command, args []string) error {
	raw, err := format.ReadInput(args[0])
	if err != nil {
		return err
	}

	tl, err := trustlist.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing trust list: %w", err)
	}

	opts := outputOptions()
	output.PrintTrustList(tl, opts)

	if !opts.JSON {
		fmt.Printf("  Usable trust anchors: %d\n\n", len(tl.Anchors()))
	}
	return nil
}
