// Delete command for the tether CLI. Cascade-flagged relations are deleted
// with the record.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tether/pkg/types"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <model> <id>",
	Short: "Delete a record and its cascade-flagged related records",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, id := args[0], args[1]

		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "delete:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		rec, err := findByID(backend, model, id)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				fmt.Fprintf(os.Stderr, "delete: %s %s not found\n", model, id)
				os.Exit(exitUserError)
			}
			fmt.Fprintln(os.Stderr, "delete:", err)
			os.Exit(exitSysError)
		}

		if err := rec.Delete(); err != nil {
			fmt.Fprintln(os.Stderr, "delete:", err)
			os.Exit(exitSysError)
		}

		fmt.Printf("Deleted %s: %s\n", model, id)
		return nil
	},
}
