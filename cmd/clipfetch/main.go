package main

import (
	"os"

	"github.com/clipfetch/clipfetch/internal/cli"
)

func main() {
	// Cobra already prints the error; just set the exit code.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
