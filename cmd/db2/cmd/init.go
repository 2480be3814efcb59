/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ssargent/db2kit/pkg/config"
)

type initOptions struct {
	ConfigPath     string
	SchemaDir      string
	SnapshotDir    string
	Keys           []string
	APIKey         string
	GenerateAPIKey bool
	Force          bool
}

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a db2kit configuration",
	Long: `Write a configuration file with default settings and create the schema and
snapshot directories it names.

Examples:
  db2 init
  db2 init --schema-dir ./schemas --snapshot-dir ./data --key 0x1A2B3C4D5E6F7081
  db2 init --config ./db2kit.yaml --generate-api-key --force`,
	Args: cobra.NoArgs,
	// The configuration does not exist yet; skip building the container.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		opts := initOptions{}
		opts.ConfigPath, _ = flags.GetString("config")
		if flags.Changed("schema-dir") {
			opts.SchemaDir, _ = flags.GetString("schema-dir")
		}
		if flags.Changed("snapshot-dir") {
			opts.SnapshotDir, _ = flags.GetString("snapshot-dir")
		}
		opts.Keys, _ = flags.GetStringSlice("key")
		opts.APIKey, _ = flags.GetString("api-key")
		opts.GenerateAPIKey, _ = flags.GetBool("generate-api-key")
		opts.Force, _ = flags.GetBool("force")
		return runInit(cmd.OutOrStdout(), opts)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringSlice("key", nil, "Content encryption key id held by the caller, in hex (repeatable)")
	initCmd.Flags().String("api-key", "", "API key required by the REST API")
	initCmd.Flags().Bool("generate-api-key", false, "Generate a random API key")
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration file")
}

func runInit(w io.Writer, opts initOptions) error {
	path := opts.ConfigPath
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	if config.ConfigExists(path) && !opts.Force {
		return errors.Newf("config file %s already exists, use --force to overwrite it", path)
	}
	if opts.APIKey != "" && opts.GenerateAPIKey {
		return errors.New("--api-key and --generate-api-key are mutually exclusive")
	}

	cfg := config.DefaultConfig()
	if opts.SchemaDir != "" {
		cfg.SchemaDir = opts.SchemaDir
	}
	if opts.SnapshotDir != "" {
		cfg.SnapshotDir = opts.SnapshotDir
	}
	cfg.Keys = opts.Keys
	if _, err := cfg.KeyRing(); err != nil {
		return err
	}

	cfg.Server.APIKey = opts.APIKey
	if opts.GenerateAPIKey {
		key, err := generateAPIKey()
		if err != nil {
			return err
		}
		cfg.Server.APIKey = key
	}

	for _, dir := range []string{cfg.SchemaDir, cfg.SnapshotDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	if err := config.SaveConfig(cfg, path); err != nil {
		return err
	}

	fmt.Fprintf(w, "Configuration written to %s\n", path)
	fmt.Fprintf(w, "Schema directory:   %s\n", cfg.SchemaDir)
	fmt.Fprintf(w, "Snapshot directory: %s\n", cfg.SnapshotDir)
	fmt.Fprintf(w, "Encryption keys:    %d\n", len(cfg.Keys))
	if opts.GenerateAPIKey {
		fmt.Fprintf(w, "API key:            %s\n", cfg.Server.APIKey)
	}
	return nil
}

// generateAPIKey generates a random 256-bit API key
func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generate API key")
	}
	return hex.EncodeToString(b), nil
}
