// Show command for the tether CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tether/pkg/types"
)

var showCmd = &cobra.Command{
	Use:   "show <model> <id>",
	Short: "Show one record with its relations",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, id := args[0], args[1]

		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "show:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		rec, err := findByID(backend, model, id)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				fmt.Fprintf(os.Stderr, "show: %s %s not found\n", model, id)
				os.Exit(exitUserError)
			}
			fmt.Fprintln(os.Stderr, "show:", err)
			os.Exit(exitSysError)
		}

		return printOutput(recordOutput(rec, true))
	},
}
