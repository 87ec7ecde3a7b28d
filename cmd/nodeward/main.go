package main

import (
	"os"

	"github.com/nodeward/nodeward/cmd/nodeward/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
