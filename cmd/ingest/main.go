// Package main provides the catalog ingestion CLI: discover catalogs
// in remote storage and load the ones missing locally, or load the
// catalogs named as arguments.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/shopsight/shopsight-server/internal/di"
	"github.com/shopsight/shopsight-server/internal/di/providers"
	"github.com/shopsight/shopsight-server/internal/ingest"
	"github.com/shopsight/shopsight-server/internal/logger"
)

func main() {
	injector := di.NewContainer()

	log := do.MustInvoke[*logger.Logger](injector)

	remoteHandle := do.MustInvoke[*providers.ObjectStoreHandle](injector)
	if remoteHandle.Store == nil {
		fmt.Fprintln(os.Stderr, "no catalog source configured: set CATALOG_BUCKET and CATALOG_CUSTOMER, or CATALOG_LOCAL_PATH")
		os.Exit(1)
	}

	loader := do.MustInvoke[*ingest.Loader](injector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	if slugs := flag.Args(); len(slugs) > 0 {
		err = loadNamed(ctx, loader, log, slugs)
	} else {
		err = sync(ctx, loader, log)
	}

	if shutdownErr := injector.Shutdown(); shutdownErr != nil {
		log.Error("Shutdown error", "error", shutdownErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingest failed: %v\n", err)
		os.Exit(1)
	}
}

func loadNamed(ctx context.Context, loader *ingest.Loader, log *logger.Logger, slugs []string) error {
	failed := 0
	for _, slug := range slugs {
		if _, err := loader.Load(ctx, slug); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			log.Error("Catalog load failed", "catalog", slug, "error", err)
		}
	}
	if failed == len(slugs) {
		return fmt.Errorf("all %d catalog loads failed", failed)
	}
	return nil
}

func sync(ctx context.Context, loader *ingest.Loader, log *logger.Logger) error {
	results, err := loader.Sync(ctx)
	if err != nil {
		return err
	}
	log.Info("Sync complete", "catalogs", len(results))
	return nil
}
