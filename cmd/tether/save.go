// Save command for the tether CLI. Saves a record together with its
// assigned relations from one document.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/tether/pkg/types"
)

var (
	saveData string
	saveFile string
)

var saveCmd = &cobra.Command{
	Use:   "save <model>",
	Short: "Save a record and its related records from a data document",
	Long: `Save parses --data (JSON) or --file (YAML or JSON) as one document of
attribute and relation values, loads it into a record of the given model,
and persists everything in a single save: related records are validated
first, foreign keys are propagated, and collection membership is
synchronized.

When the document carries the model's primary key and a matching row
exists, that row is updated instead of inserted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model := args[0]

		data, err := saveDocument()
		if err != nil {
			fmt.Fprintln(os.Stderr, "save:", err)
			os.Exit(exitUserError)
		}

		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "save:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		rec, err := loadOrNewRecord(backend, model, data)
		if err != nil {
			fmt.Fprintln(os.Stderr, "save:", err)
			os.Exit(exitUserError)
		}
		if err := rec.Load(data); err != nil {
			fmt.Fprintln(os.Stderr, "save:", err)
			os.Exit(exitUserError)
		}

		if err := rec.Save(); err != nil {
			if errors.Is(err, types.ErrValidationFailed) {
				fmt.Fprintln(os.Stderr, "save: validation failed:", validationErrors(rec))
				os.Exit(exitUserError)
			}
			fmt.Fprintln(os.Stderr, "save:", err)
			os.Exit(exitSysError)
		}

		if flagJSON {
			return printOutput(recordOutput(rec, true))
		}
		fmt.Printf("Saved %s: %v\n", model, rec.Get(rec.PrimaryKeyColumns()[0]))
		return nil
	},
}

// saveDocument reads the attribute document from --data or --file. YAML
// decoding covers both formats for files since JSON is a YAML subset.
func saveDocument() (map[string]any, error) {
	switch {
	case saveData != "" && saveFile != "":
		return nil, fmt.Errorf("--data and --file are mutually exclusive")
	case saveData != "":
		var data map[string]any
		if err := json.Unmarshal([]byte(saveData), &data); err != nil {
			return nil, fmt.Errorf("invalid --data JSON: %w", err)
		}
		return data, nil
	case saveFile != "":
		raw, err := os.ReadFile(saveFile)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", saveFile, err)
		}
		var data map[string]any
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", saveFile, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("one of --data or --file is required")
	}
}

func init() {
	saveCmd.Flags().StringVar(&saveData, "data", "", "JSON document of attributes and relations")
	saveCmd.Flags().StringVar(&saveFile, "file", "", "path to a YAML or JSON document of attributes and relations")
}
