// Package di provides dependency injection configuration for the ShopSight server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/shopsight/shopsight-server/internal/config"
	"github.com/shopsight/shopsight-server/internal/di/providers"
	"github.com/shopsight/shopsight-server/internal/ingest"
	"github.com/shopsight/shopsight-server/internal/logger"
	"github.com/shopsight/shopsight-server/internal/search"
	"github.com/shopsight/shopsight-server/internal/store"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideBackend)
	do.Provide(injector, providers.ProvideSearchManager)
	do.Provide(injector, providers.ProvideObjectStore)

	// Catalog layer
	do.Provide(injector, providers.ProvideRegistry)
	do.Provide(injector, providers.ProvideLoader)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns after they are ready.
// This triggers lazy initialization in dependency order.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[store.Backend](injector)
	_ = do.MustInvoke[*search.Manager](injector)
	_ = do.MustInvoke[*providers.ObjectStoreHandle](injector)
	_ = do.MustInvoke[*providers.RegistryHandle](injector)
	_ = do.MustInvoke[*ingest.Loader](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
