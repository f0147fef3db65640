package main

import (
	"os"

	"github.com/dyluth/roost/cmd/roost/commands"
)

// Set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	// Errors were already printed by the printer package
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
