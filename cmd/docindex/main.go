// Package main provides the entry point for the docindex CLI.
package main

import (
	"os"

	"github.com/dshills/docindex/cmd/docindex/cmd"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := cmd.Execute(version, buildTime); err != nil {
		os.Exit(1)
	}
}
