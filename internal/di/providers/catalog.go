package providers

import (
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/shopsight/shopsight-server/internal/catalog"
	"github.com/shopsight/shopsight-server/internal/config"
	"github.com/shopsight/shopsight-server/internal/ingest"
	"github.com/shopsight/shopsight-server/internal/logger"
	"github.com/shopsight/shopsight-server/internal/search"
	"github.com/shopsight/shopsight-server/internal/store"
)

// RegistryHandle wraps the catalog registry with Shutdownable.
type RegistryHandle struct {
	*catalog.Registry
}

// Shutdown implements do.Shutdownable.
func (h *RegistryHandle) Shutdown() error {
	return h.Close()
}

// ProvideRegistry provides the catalog registry.
func ProvideRegistry(i do.Injector) (*RegistryHandle, error) {
	backend := do.MustInvoke[store.Backend](i)
	indexes := do.MustInvoke[*search.Manager](i)
	remoteHandle := do.MustInvoke[*ObjectStoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return &RegistryHandle{
		Registry: catalog.NewRegistry(remoteHandle.Store, backend, indexes, log.Logger),
	}, nil
}

// ProvideLoader provides the catalog loader.
func ProvideLoader(i do.Injector) (*ingest.Loader, error) {
	cfg := do.MustInvoke[*config.Config](i)
	backend := do.MustInvoke[store.Backend](i)
	indexes := do.MustInvoke[*search.Manager](i)
	remoteHandle := do.MustInvoke[*ObjectStoreHandle](i)
	registryHandle := do.MustInvoke[*RegistryHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	cacheDir := filepath.Join(cfg.Data.BasePath, "downloads")
	return ingest.NewLoader(
		remoteHandle.Store,
		backend,
		indexes,
		registryHandle.Registry,
		cfg.Ingest,
		cacheDir,
		log.Logger,
	), nil
}
