// Root command for the tether CLI.
package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// version is the CLI release identifier.
const version = "v0.1.0"

// Exit codes: user errors (bad input, validation failures) and system
// errors (storage, configuration).
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagJSON      bool
)

// configDataDir holds the data_dir value loaded from config.yaml.
// Set by PersistentPreRunE so all subcommands can use it.
var configDataDir string

var rootCmd = &cobra.Command{
	Use:     "tether",
	Short:   "Tether saves records together with their related records",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(resolveConfigDir())
		if err != nil {
			return err
		}
		configDataDir = cfg.GetString(cfgKeyDataDir)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: $(CWD)/.tether)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: $(CWD)/.tether-db)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
}

// resolveConfigDir returns the configuration directory:
// --config-dir flag > TETHER_CONFIG_DIR env > $(CWD)/.tether.
func resolveConfigDir() string {
	if flagConfigDir != "" {
		return flagConfigDir
	}
	if env := os.Getenv("TETHER_CONFIG_DIR"); env != "" {
		return env
	}
	return filepath.Join(".", ".tether")
}

// resolveDataDir returns the data directory:
// --data-dir flag > config.yaml data_dir > TETHER_DATA_DIR env >
// $(CWD)/.tether-db.
func resolveDataDir() string {
	if flagDataDir != "" {
		return flagDataDir
	}
	if configDataDir != "" {
		return configDataDir
	}
	if env := os.Getenv("TETHER_DATA_DIR"); env != "" {
		return env
	}
	return filepath.Join(".", ".tether-db")
}
