package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/shopsight/shopsight-server/internal/config"
	"github.com/shopsight/shopsight-server/internal/logger"
	"github.com/shopsight/shopsight-server/internal/search"
	"github.com/shopsight/shopsight-server/internal/store"
	"github.com/shopsight/shopsight-server/internal/store/badger"
	"github.com/shopsight/shopsight-server/internal/store/sqlite"
)

// ProvideBackend provides the configured storage backend.
func ProvideBackend(i do.Injector) (store.Backend, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	var backend store.Backend
	var err error
	switch cfg.Data.Engine {
	case config.EngineSQLite:
		backend, err = sqlite.New(cfg.Data.BasePath)
	case config.EngineBadger:
		backend, err = badger.New(cfg.Data.BasePath)
	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.Data.Engine)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Storage backend initialized",
		"engine", backend.Engine(),
		"path", cfg.Data.BasePath,
		"aggregation", backend.Capabilities().Aggregation,
		"crawl_history", backend.Capabilities().CrawlHistory,
	)
	return backend, nil
}

// ProvideSearchManager provides the per-catalog search index manager.
func ProvideSearchManager(i do.Injector) (*search.Manager, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return search.NewManager(cfg.Data.BasePath)
}
