package main

import (
	"os"

	"github.com/factorn/factord/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
