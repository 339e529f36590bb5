// Package ingest loads catalogs from remote object storage into the
// local store: download the latest snapshot, normalize every record,
// bulk-insert into a staged store generation with a staged search
// index, and swap both in atomically. A failed or cancelled load
// leaves the committed generation untouched.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/shopsight/shopsight-server/internal/catalog"
	"github.com/shopsight/shopsight-server/internal/config"
	"github.com/shopsight/shopsight-server/internal/domain"
	apperrors "github.com/shopsight/shopsight-server/internal/errors"
	"github.com/shopsight/shopsight-server/internal/normalize"
	"github.com/shopsight/shopsight-server/internal/remote"
	"github.com/shopsight/shopsight-server/internal/schema"
	"github.com/shopsight/shopsight-server/internal/search"
	"github.com/shopsight/shopsight-server/internal/store"
)

// batchSize is how many normalized products accumulate before a
// store/index flush. Cancellation is checked at flush boundaries.
const batchSize = 500

// Loader orchestrates catalog ingestion.
type Loader struct {
	remote   remote.ObjectStore
	backend  store.Backend
	indexes  *search.Manager
	registry *catalog.Registry
	cfg      config.IngestConfig
	cacheDir string
	logger   *slog.Logger

	// locks serializes loads of the same catalog; distinct catalogs
	// load independently.
	locks *SyncMap[string, *sync.Mutex]
}

// NewLoader creates a loader. registry may be nil for one-shot CLI
// ingestion where no server is running.
func NewLoader(
	remoteStore remote.ObjectStore,
	backend store.Backend,
	indexes *search.Manager,
	registry *catalog.Registry,
	cfg config.IngestConfig,
	cacheDir string,
	logger *slog.Logger,
) *Loader {
	return &Loader{
		remote:   remoteStore,
		backend:  backend,
		indexes:  indexes,
		registry: registry,
		cfg:      cfg,
		cacheDir: cacheDir,
		logger:   logger,
		locks:    NewSyncMap[string, *sync.Mutex](),
	}
}

// Result summarizes one catalog load.
type Result struct {
	Catalog  string `json:"catalog"`
	Snapshot string `json:"snapshot,omitempty"`
	Products int    `json:"products"`
	Skipped  int    `json:"skipped"`
	Crawls   int    `json:"crawls"`
}

// Load ingests one catalog end to end. Re-running against unchanged
// source data produces an identical stored state.
func (l *Loader) Load(ctx context.Context, slug string) (*Result, error) {
	mu, _ := l.locks.LoadOrStore(slug, &sync.Mutex{})
	mu.Lock()
	defer mu.Unlock()

	var objects []remote.Object
	err := l.withRetry(ctx, "list "+slug, func() error {
		var listErr error
		objects, listErr = l.remote.ListObjects(ctx, slug)
		return listErr
	})
	if err != nil {
		return nil, err
	}

	latest := remote.LatestSnapshot(objects)
	if len(latest) == 0 {
		return nil, apperrors.NotFoundf("catalog %s has no files in remote storage", slug)
	}

	files, err := l.download(ctx, latest)
	if err != nil {
		return nil, err
	}
	// Deterministic load order regardless of download completion order.
	sort.Slice(files, func(i, j int) bool { return files[i].object.Name < files[j].object.Name })

	result := &Result{Catalog: slug, Snapshot: latest[0].Snapshot}

	generation := uuid.NewString()[:8]
	if err := l.loadStaged(ctx, slug, generation, files, result); err != nil {
		return nil, err
	}

	l.logger.Info("catalog loaded",
		"catalog", slug,
		"snapshot", result.Snapshot,
		"products", result.Products,
		"skipped", result.Skipped,
		"crawls", result.Crawls,
	)
	return result, nil
}

// loadStaged fills a staging generation and commits it. Any failure
// discards the staging files and leaves the committed generation
// untouched.
func (l *Loader) loadStaged(ctx context.Context, slug, generation string, files []localFile, result *Result) (err error) {
	staging, err := l.backend.CreateStaging(slug, generation)
	if err != nil {
		return fmt.Errorf("creating staging store: %w", err)
	}
	stagingIdx, err := l.indexes.CreateStaging(slug, generation)
	if err != nil {
		staging.Close()
		l.backend.DiscardStaging(slug, generation)
		return fmt.Errorf("creating staging index: %w", err)
	}

	discard := func() {
		staging.Close()
		stagingIdx.Close()
		if derr := l.backend.DiscardStaging(slug, generation); derr != nil {
			l.logger.Warn("discarding staging store", "catalog", slug, "error", derr)
		}
		if derr := l.indexes.DiscardStaging(slug, generation); derr != nil {
			l.logger.Warn("discarding staging index", "catalog", slug, "error", derr)
		}
	}

	if err := l.fillStaging(ctx, slug, staging, stagingIdx, files, result); err != nil {
		discard()
		return err
	}

	if err := staging.Close(); err != nil {
		stagingIdx.Close()
		l.backend.DiscardStaging(slug, generation)
		l.indexes.DiscardStaging(slug, generation)
		return fmt.Errorf("closing staging store: %w", err)
	}
	if err := stagingIdx.Close(); err != nil {
		l.backend.DiscardStaging(slug, generation)
		l.indexes.DiscardStaging(slug, generation)
		return fmt.Errorf("closing staging index: %w", err)
	}

	if err := l.backend.Commit(slug, generation); err != nil {
		l.backend.DiscardStaging(slug, generation)
		l.indexes.DiscardStaging(slug, generation)
		return err
	}
	if err := l.indexes.Commit(slug, generation); err != nil {
		l.indexes.DiscardStaging(slug, generation)
		return err
	}

	return l.swapIntoRegistry(slug)
}

// fillStaging streams every file into the staging generation.
func (l *Loader) fillStaging(ctx context.Context, slug string, staging store.Catalog, stagingIdx *search.Index, files []localFile, result *Result) error {
	var batch []*domain.Product

	flush := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := staging.Put(batch); err != nil {
			return err
		}
		if err := stagingIdx.IndexProducts(batch); err != nil {
			return err
		}
		result.Products += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, f := range files {
		if isCrawlFile(f.object.Name) {
			crawls, err := readCrawls(f.path)
			if err != nil {
				return err
			}
			if err := staging.PutCrawls(crawls); err != nil {
				if apperrors.Is(err, apperrors.ErrBackendUnsupported) {
					l.logger.Debug("backend keeps no crawl history, skipping", "catalog", slug, "file", f.object.Name)
					continue
				}
				return err
			}
			result.Crawls += len(crawls)
			continue
		}

		err := forEachRawProduct(f.path, func(raw []byte) error {
			rec, err := schema.Decode(raw)
			if err != nil {
				result.Skipped++
				l.logger.Warn("skipping malformed record", "catalog", slug, "file", f.object.Name, "error", err)
				return nil
			}
			p, err := normalize.Normalize(rec)
			if err != nil {
				result.Skipped++
				l.logger.Warn("skipping unusable record", "catalog", slug, "file", f.object.Name, "error", err)
				return nil
			}
			batch = append(batch, p)
			if len(batch) >= batchSize {
				return flush()
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return flush()
}

// swapIntoRegistry opens the committed generation and makes it
// current.
func (l *Loader) swapIntoRegistry(slug string) error {
	if l.registry == nil {
		return nil
	}

	st, err := l.backend.Open(slug)
	if err != nil {
		return err
	}
	idx, err := l.indexes.Open(slug)
	if err != nil {
		st.Close()
		return err
	}
	l.registry.Swap(slug, catalog.Generation{Store: st, Index: idx})
	return nil
}

// Sync discovers remote catalogs and loads the ones without a local
// store. It fails only when every attempted load fails.
func (l *Loader) Sync(ctx context.Context) ([]*Result, error) {
	var slugs []string
	err := l.withRetry(ctx, "discover catalogs", func() error {
		var listErr error
		slugs, listErr = l.remote.ListCatalogs(ctx)
		return listErr
	})
	if err != nil {
		return nil, err
	}

	local, err := l.backend.List()
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(local))
	for _, slug := range local {
		have[slug] = true
	}

	var results []*Result
	attempted, failed := 0, 0
	for _, slug := range slugs {
		if have[slug] {
			l.logger.Debug("catalog already loaded, skipping", "catalog", slug)
			continue
		}
		attempted++

		res, err := l.Load(ctx, slug)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			failed++
			l.logger.Error("catalog load failed", "catalog", slug, "error", err)
			continue
		}
		results = append(results, res)
	}

	if attempted > 0 && failed == attempted {
		return nil, apperrors.Upstreamf("all %d catalog loads failed", attempted)
	}
	return results, nil
}
