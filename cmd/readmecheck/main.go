package main

import (
	"fmt"
	"os"

	"github.com/ppiankov/readmecheck/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
		}
		os.Exit(cli.ExitCode(err))
	}
}
