// Shared helpers for tether CLI commands.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mesh-intelligence/tether/internal/activerecord"
	"github.com/mesh-intelligence/tether/pkg/types"
)

// attachBackend registers the model catalog, resolves the data directory,
// and attaches the backend. A schema.yaml in the config directory replaces
// the built-in demo models. The caller must defer backend.Detach().
func attachBackend() (*activerecord.Backend, error) {
	models, err := loadCatalog()
	if err != nil {
		return nil, err
	}

	backend := activerecord.NewBackend()
	for _, m := range models {
		if err := backend.RegisterModel(m); err != nil {
			return nil, fmt.Errorf("register model: %w", err)
		}
	}

	cfg := types.Config{
		Backend: types.BackendSQLite,
		DataDir: resolveDataDir(),
	}
	if err := backend.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attach backend: %w", err)
	}
	return backend, nil
}

// schemaFileName is the optional model catalog in the config directory.
const schemaFileName = "schema.yaml"

// loadCatalog returns the models from schema.yaml when present, the demo
// models otherwise.
func loadCatalog() ([]*activerecord.Model, error) {
	path := filepath.Join(resolveConfigDir(), schemaFileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return demoModels(), nil
		}
		return nil, fmt.Errorf("stat schema file: %w", err)
	}
	models, err := activerecord.LoadModelsFile(path)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return models, nil
}

// findByID loads one record by a single-column primary key value.
func findByID(backend *activerecord.Backend, model, id string) (*activerecord.Record, error) {
	m, err := backend.Model(model)
	if err != nil {
		return nil, err
	}
	if len(m.PrimaryKey) != 1 {
		return nil, fmt.Errorf("model %s has a composite primary key", model)
	}
	return backend.Find(model, map[string]any{m.PrimaryKey[0]: id})
}

// loadOrNewRecord returns the existing record named by the primary key
// values in data, or a new record when the key is absent or unmatched.
func loadOrNewRecord(backend *activerecord.Backend, model string, data map[string]any) (*activerecord.Record, error) {
	m, err := backend.Model(model)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]any, len(m.PrimaryKey))
	for _, pk := range m.PrimaryKey {
		v, ok := data[pk]
		if !ok || v == nil {
			return backend.NewRecord(model)
		}
		keys[pk] = v
	}
	rec, err := backend.Find(model, keys)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return backend.NewRecord(model)
		}
		return nil, err
	}
	return rec, nil
}

// recordOutput flattens a record into its attribute map for display,
// including relation values when withRelations is set.
func recordOutput(rec *activerecord.Record, withRelations bool) map[string]any {
	out := make(map[string]any)
	for name, v := range rec.Attributes() {
		out[name] = v
	}
	if !withRelations || rec.Behavior() == nil {
		return out
	}
	for _, name := range rec.Behavior().Relations() {
		value := rec.Relation(name)
		if records, ok := value.([]types.Record); ok {
			items := make([]map[string]any, 0, len(records))
			for _, r := range records {
				if ar, ok := r.(*activerecord.Record); ok {
					items = append(items, recordOutput(ar, false))
				}
			}
			out[name] = items
			continue
		}
		if related, ok := value.(*activerecord.Record); ok && related != nil {
			out[name] = recordOutput(related, false)
			continue
		}
		out[name] = nil
	}
	return out
}

// printOutput renders a value as indented JSON when --json is set, as
// aligned key/value lines otherwise.
func printOutput(v any) error {
	if flagJSON {
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}
	switch value := v.(type) {
	case map[string]any:
		printRecordLines(value, "")
	case []map[string]any:
		for i, item := range value {
			if i > 0 {
				fmt.Println()
			}
			printRecordLines(item, "")
		}
	default:
		fmt.Println(value)
	}
	return nil
}

// printRecordLines prints one record map as indented key: value lines.
func printRecordLines(m map[string]any, indent string) {
	for _, key := range sortedKeys(m) {
		v := m[key]
		switch nested := v.(type) {
		case map[string]any:
			fmt.Printf("%s%s:\n", indent, key)
			printRecordLines(nested, indent+"  ")
		case []map[string]any:
			fmt.Printf("%s%s:\n", indent, key)
			for _, item := range nested {
				printRecordLines(item, indent+"  ")
			}
		default:
			fmt.Printf("%s%s: %v\n", indent, key, v)
		}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// validationErrors joins a record's attached errors for terminal output.
func validationErrors(rec *activerecord.Record) string {
	var out string
	for attr, messages := range rec.Errors() {
		for _, msg := range messages {
			if out != "" {
				out += "; "
			}
			out += attr + ": " + msg
		}
	}
	return out
}
