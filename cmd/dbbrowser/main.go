// Package main provides the dbbrowser command.
package main

import (
	"os"

	"github.com/leapstack-labs/dbbrowser/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
