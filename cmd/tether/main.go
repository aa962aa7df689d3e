// Package main provides the tether CLI, a small front end over the
// relation-aware record layer: register the demo schema, save records with
// their relations from JSON input, and inspect what was persisted.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUserError)
	}
}
