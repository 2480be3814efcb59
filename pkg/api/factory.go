// Package api provides factory implementations for dependency injection
package api

import (
	"context"

	"github.com/go-kit/log"

	"github.com/ssargent/db2kit/pkg/store"
)

// DefaultServerFactory is the default implementation of ServerFactory
type DefaultServerFactory struct{}

// NewServerFactory creates a new server factory
func NewServerFactory() ServerFactory {
	return &DefaultServerFactory{}
}

// CreateServerStarter creates a server starter
func (f *DefaultServerFactory) CreateServerStarter() ServerStarter {
	return &DefaultServerStarter{}
}

// DefaultServerStarter is the default implementation of ServerStarter
type DefaultServerStarter struct{}

// StartServer starts the API server with the given configuration
func (s *DefaultServerStarter) StartServer(
	ctx context.Context,
	catalog *store.Catalog,
	config ServerConfig,
	logger log.Logger,
) error {
	return StartServer(ctx, catalog, config, logger)
}
