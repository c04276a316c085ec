package main

import (
	"os"

	"github.com/droprelay/droprelay/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
