// Package main is the entry point for the essctl CLI.
package main

import "github.com/donaldgifford/ebay-seller-sync/cmd/essctl/cmd"

func main() {
	cmd.Execute()
}
