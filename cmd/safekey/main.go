// Package main is the entry point for the SafeKey CLI.
package main

import (
	"github.com/awnumar/memguard"

	"github.com/abdul-hamid-achik/safekey/cmd/safekey/cmd"
)

func main() {
	// Wipe guarded key material on Ctrl-C and on every exit path.
	memguard.CatchInterrupt()

	if err := cmd.Execute(); err != nil {
		memguard.SafeExit(1)
	}
	memguard.Purge()
}
