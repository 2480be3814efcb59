/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ssargent/db2kit/pkg/config"
	"github.com/ssargent/db2kit/pkg/di"
)

var container *di.Container

var errNoContainer = errors.New("dependency container not initialized")

// SetContainer injects the dependency container used by every command.
// When nil, the root command builds one from the configuration file.
func SetContainer(c *di.Container) {
	container = c
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "db2",
	Short: "db2 - WDC3/WDC4 client database toolkit",
	Long: `db2 decodes WDC3 and WDC4 client database tables against YAML schemas.

Decoded tables can be inspected, dumped, exported to a local snapshot
store, or served read-only over a REST API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if container != nil {
			return nil
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		c, err := di.NewContainer(cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		SetContainer(c)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: ~/.config/db2kit/config.yaml)")
	rootCmd.PersistentFlags().String("schema-dir", "", "Directory of table schemas")
	rootCmd.PersistentFlags().String("snapshot-dir", "", "Directory of the snapshot store")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("workers", 0, "Sections decoded concurrently (0 uses every CPU)")
}

// loadConfig reads the configuration file, falling back to the defaults when
// none exists, and applies the global flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	explicit := path != ""
	if !explicit {
		path = config.GetDefaultConfigPath()
	}

	var cfg *config.Config
	switch {
	case config.ConfigExists(path):
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case explicit:
		return nil, errors.Newf("config file %s does not exist", path)
	default:
		cfg = config.DefaultConfig()
	}

	if flags.Changed("schema-dir") {
		cfg.SchemaDir, _ = flags.GetString("schema-dir")
	}
	if flags.Changed("snapshot-dir") {
		cfg.SnapshotDir, _ = flags.GetString("snapshot-dir")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("workers") {
		cfg.Decoder.Workers, _ = flags.GetInt("workers")
	}
	return cfg, nil
}
