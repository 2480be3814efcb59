// Package api provides interfaces for dependency injection
package api

import (
	"context"

	"github.com/go-kit/log"

	"github.com/ssargent/db2kit/pkg/store"
)

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer serves catalog until ctx is cancelled
	StartServer(ctx context.Context, catalog *store.Catalog, config ServerConfig, logger log.Logger) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}
