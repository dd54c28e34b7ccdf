// Package main provides the entry point for the guidecore CLI.
package main

import (
	"os"

	"github.com/dubedition/guidecore/cmd/guidecore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
