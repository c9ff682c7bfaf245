package main

import (
	"os"

	"github.com/manthysbr/floral/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
