package main

import (
	"os"

	"github.com/inferloop/patternscope/cmd/cli/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
