package main

import (
	"os"

	"github.com/chococrunch/pipeline/cmd/chococrunch/commands"
)

// main is the entry point for the ChocoCrunch CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
