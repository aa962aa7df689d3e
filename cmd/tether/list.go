// List command for the tether CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <model>",
	Short: "List all records of a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model := args[0]

		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "list:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		records, err := backend.FindAll(model, nil)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list:", err)
			os.Exit(exitUserError)
		}

		out := make([]map[string]any, 0, len(records))
		for _, rec := range records {
			out = append(out, recordOutput(rec, false))
		}
		if flagJSON {
			return printOutput(out)
		}
		if len(out) == 0 {
			fmt.Printf("No %s records\n", model)
			return nil
		}
		return printOutput(out)
	},
}
