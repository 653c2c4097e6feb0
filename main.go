package main

import (
	"os"

	"github.com/dominikschlosser/wallet-core/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
