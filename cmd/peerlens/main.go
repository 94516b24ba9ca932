package main

import (
	"fmt"
	"os"

	"github.com/Shikha-SShikha/peerlens/cmd/peerlens/commands"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Set version information on root command
	commands.SetVersionInfo(version, commit, date)

	// Execute root command
	if err := commands.Execute(); err != nil {
		code := commands.ExitCode(err)
		if code == 1 {
			// Manual-review runs (exit 2) already reported per-manuscript
			// status; only hard failures print here.
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(code)
	}
}
