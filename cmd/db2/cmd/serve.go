/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/ssargent/db2kit/pkg/api"
	"github.com/ssargent/db2kit/pkg/di"
)

// serveOptions overrides the server section of the configuration
type serveOptions struct {
	Schema string
	Port   int
	Bind   string
	APIKey string
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve <file>...",
	Short: "Start the REST API server",
	Long: `Decode table files into an in-memory catalog and serve them read-only
over the REST API until interrupted.

Examples:
  db2 serve ChrRaces.db2 ChrClasses.db2
  db2 serve ChrRaces.db2 --port 9000 --api-key mysecretkey`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts serveOptions
		opts.Schema, _ = cmd.Flags().GetString("schema")
		opts.Bind, _ = cmd.Flags().GetString("bind")
		opts.APIKey, _ = cmd.Flags().GetString("api-key")
		opts.Port, _ = cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") {
			opts.Port = 0
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, container, args, opts)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("schema", "s", "", "Schema name or file (default: derived from each file name)")
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("bind", "", "Address to bind server to")
	serveCmd.Flags().String("api-key", "", "API key required on /api/v1 requests")
}

func runServe(ctx context.Context, c *di.Container, paths []string, opts serveOptions) error {
	if c == nil {
		return errNoContainer
	}
	catalog := c.Catalog()
	for _, path := range paths {
		s, err := resolveSchema(c, path, opts.Schema)
		if err != nil {
			return err
		}
		e, err := catalog.LoadFile(path, s, c.DecodeOptions())
		if err != nil {
			return err
		}
		level.Info(c.Logger()).Log("msg", "loaded table", "table", e.Name, "file", path,
			"records", e.Table.Stats.Records, "skipped", e.Table.Stats.RecordsSkipped)
	}

	config := serverConfig(c, opts)
	starter := c.GetServerFactory().CreateServerStarter()
	return starter.StartServer(ctx, catalog, config, c.Logger())
}

func serverConfig(c *di.Container, opts serveOptions) api.ServerConfig {
	config := c.ServerConfig()
	if opts.Port != 0 {
		config.Port = opts.Port
	}
	if opts.Bind != "" {
		config.Bind = opts.Bind
	}
	if opts.APIKey != "" {
		config.APIKey = opts.APIKey
	}
	return config
}
