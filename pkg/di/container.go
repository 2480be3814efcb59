// Package di provides dependency injection container
package di

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-kit/log"

	"github.com/ssargent/db2kit/pkg/api"
	"github.com/ssargent/db2kit/pkg/config"
	"github.com/ssargent/db2kit/pkg/logging"
	"github.com/ssargent/db2kit/pkg/schema"
	"github.com/ssargent/db2kit/pkg/store"
	"github.com/ssargent/db2kit/pkg/wdc"
)

// SnapshotOpener opens the snapshot store at a directory
type SnapshotOpener func(dir string) (*store.SnapshotStore, error)

// Container holds all the dependencies for the application
type Container struct {
	config         *config.Config
	logger         log.Logger
	keys           wdc.KeyRing
	catalog        *store.Catalog
	serverFactory  api.ServerFactory
	snapshotOpener SnapshotOpener
}

// NewContainer creates a new dependency injection container from cfg,
// logging to w
func NewContainer(cfg *config.Config, w io.Writer) (*Container, error) {
	logger, err := logging.New(cfg.Logging, w)
	if err != nil {
		return nil, err
	}
	keys, err := cfg.KeyRing()
	if err != nil {
		return nil, err
	}
	return &Container{
		config:         cfg,
		logger:         logger,
		keys:           keys,
		catalog:        store.NewCatalog(),
		serverFactory:  api.NewServerFactory(),
		snapshotOpener: store.OpenSnapshotStore,
	}, nil
}

// Config returns the loaded configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the application logger
func (c *Container) Logger() log.Logger {
	return c.logger
}

// Catalog returns the shared table catalog
func (c *Container) Catalog() *store.Catalog {
	return c.catalog
}

// DecodeOptions returns the decoder options derived from the configuration
func (c *Container) DecodeOptions() wdc.Options {
	return wdc.Options{
		Logger:  c.logger,
		Keys:    c.keys,
		Workers: c.config.Decoder.Workers,
	}
}

// Schemas loads every schema file of the configured schema directory
func (c *Container) Schemas() (map[string]*schema.Schema, error) {
	return schema.LoadDir(c.config.SchemaDir)
}

// Schema resolves name to a schema: a schema file path when it ends in
// .yaml or .yml, otherwise a schema of the configured directory
func (c *Container) Schema(name string) (*schema.Schema, error) {
	if ext := strings.ToLower(filepath.Ext(name)); ext == ".yaml" || ext == ".yml" {
		return schema.LoadFile(name)
	}
	schemas, err := c.Schemas()
	if err != nil {
		return nil, err
	}
	s, ok := schemas[strings.ToLower(name)]
	if !ok {
		return nil, errors.Newf("no schema %q in %s", name, c.config.SchemaDir)
	}
	return s, nil
}

// OpenSnapshots opens the configured snapshot store
func (c *Container) OpenSnapshots() (*store.SnapshotStore, error) {
	return c.snapshotOpener(c.config.SnapshotDir)
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}

// SetSnapshotOpener allows overriding how the snapshot store is opened (for testing)
func (c *Container) SetSnapshotOpener(opener SnapshotOpener) {
	c.snapshotOpener = opener
}

// ServerConfig returns the API server configuration
func (c *Container) ServerConfig() api.ServerConfig {
	return api.ServerConfig{
		Bind:   c.config.Server.Bind,
		Port:   c.config.Server.Port,
		APIKey: c.config.Server.APIKey,
	}
}
