package main

import (
	"os"

	"github.com/toxitrace/toxitrace/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
