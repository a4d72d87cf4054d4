// Package main is the entry point for the Alphonse console CLI.
package main

import (
	"os"

	"github.com/AlphonseHQ/console/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
