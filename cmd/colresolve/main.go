// Package main is the colresolve command.
package main

import (
	"os"

	"github.com/leapstack-labs/colresolve/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
