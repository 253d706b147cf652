// Package main is the entry point for ebay-seller-sync.
package main

import (
	"os"

	"github.com/donaldgifford/ebay-seller-sync/cmd/ebay-seller-sync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
