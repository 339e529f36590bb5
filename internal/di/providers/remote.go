package providers

import (
	"context"
	"io"

	"github.com/samber/do/v2"

	"github.com/shopsight/shopsight-server/internal/config"
	"github.com/shopsight/shopsight-server/internal/logger"
	"github.com/shopsight/shopsight-server/internal/remote"
)

// ObjectStoreHandle wraps the remote object store with lifecycle
// management. Store is nil when no catalog source is configured; the
// server then serves only locally present catalogs.
type ObjectStoreHandle struct {
	Store remote.ObjectStore
}

// Shutdown implements do.Shutdownable.
func (h *ObjectStoreHandle) Shutdown() error {
	if closer, ok := h.Store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// ProvideObjectStore provides the catalog source: a local directory
// when configured, otherwise cloud storage.
func ProvideObjectStore(i do.Injector) (*ObjectStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Remote.LocalPath != "" {
		log.Info("Reading catalogs from local directory", "path", cfg.Remote.LocalPath)
		return &ObjectStoreHandle{Store: remote.NewDir(cfg.Remote.LocalPath)}, nil
	}

	if cfg.Remote.Bucket == "" {
		log.Warn("No catalog source configured, serving local catalogs only")
		return &ObjectStoreHandle{}, nil
	}

	gcs, err := remote.NewGCS(context.Background(), cfg.Remote.Bucket, cfg.Remote.Customer, cfg.Remote.CredentialsFile)
	if err != nil {
		return nil, err
	}
	log.Info("Reading catalogs from cloud storage",
		"bucket", cfg.Remote.Bucket,
		"customer", cfg.Remote.Customer,
	)
	return &ObjectStoreHandle{Store: gcs}, nil
}
