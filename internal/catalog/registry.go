// Package catalog tracks which catalogs exist and hands out refcounted
// handles to their loaded generations. A load swaps in a fresh
// generation without disturbing requests still reading the old one.
package catalog

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	apperrors "github.com/shopsight/shopsight-server/internal/errors"
	"github.com/shopsight/shopsight-server/internal/remote"
	"github.com/shopsight/shopsight-server/internal/search"
	"github.com/shopsight/shopsight-server/internal/store"
)

// Generation pairs a product store with the search index built from it.
// Index may be nil when the catalog was loaded without one.
type Generation struct {
	Store store.Catalog
	Index *search.Index
}

func (g Generation) close(logger *slog.Logger, slug string) {
	if err := g.Store.Close(); err != nil {
		logger.Warn("closing catalog store", "catalog", slug, "error", err)
	}
	if g.Index != nil {
		if err := g.Index.Close(); err != nil {
			logger.Warn("closing search index", "catalog", slug, "error", err)
		}
	}
}

// entry is the live state of one catalog. refs counts leases against
// the current generation; retired generations close when their last
// lease releases.
type entry struct {
	gen  Generation
	refs int
}

// Registry is the authority on known catalog slugs and their loaded
// generations.
type Registry struct {
	remote  remote.ObjectStore
	backend store.Backend
	indexes *search.Manager
	logger  *slog.Logger

	mu      sync.RWMutex
	known   map[string]bool
	entries map[string]*entry
}

// NewRegistry creates a registry. remoteStore may be nil when the
// server runs against local data only.
func NewRegistry(remoteStore remote.ObjectStore, backend store.Backend, indexes *search.Manager, logger *slog.Logger) *Registry {
	return &Registry{
		remote:  remoteStore,
		backend: backend,
		indexes: indexes,
		logger:  logger,
		known:   make(map[string]bool),
		entries: make(map[string]*entry),
	}
}

// Slugs returns every known catalog slug, sorted.
func (r *Registry) Slugs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.known))
	for slug := range r.known {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}

// Refresh merges remote discovery with locally present stores into the
// known set. Remote failures are non-fatal when local stores exist.
func (r *Registry) Refresh(ctx context.Context) error {
	local, err := r.backend.List()
	if err != nil {
		return err
	}

	var remoteSlugs []string
	var remoteErr error
	if r.remote != nil {
		remoteSlugs, remoteErr = r.remote.ListCatalogs(ctx)
		if remoteErr != nil {
			r.logger.Warn("remote catalog discovery failed", "error", remoteErr)
		}
	}

	r.mu.Lock()
	for _, slug := range local {
		r.known[slug] = true
	}
	for _, slug := range remoteSlugs {
		r.known[slug] = true
	}
	r.mu.Unlock()

	if len(local) == 0 && remoteErr != nil {
		return remoteErr
	}
	return nil
}

// Lease pins one generation of a catalog for the duration of a request.
type Lease struct {
	Gen Generation

	release func()
	once    sync.Once
}

// Release lets the generation close once it has been swapped out.
// Safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(l.release)
}

// Acquire returns a lease on the current generation of a catalog,
// opening the committed store lazily on first use. Unknown or unloaded
// catalogs yield NOT_FOUND.
func (r *Registry) Acquire(slug string) (*Lease, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[slug]
	if !ok {
		gen, err := r.open(slug)
		if err != nil {
			return nil, err
		}
		e = &entry{gen: gen}
		r.entries[slug] = e
		r.known[slug] = true
	}

	e.refs++
	return r.lease(slug, e), nil
}

// open opens the committed store and, when present, its search index.
func (r *Registry) open(slug string) (Generation, error) {
	st, err := r.backend.Open(slug)
	if err != nil {
		return Generation{}, err
	}

	idx, err := r.indexes.Open(slug)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			st.Close()
			return Generation{}, err
		}
		idx = nil
	}
	return Generation{Store: st, Index: idx}, nil
}

func (r *Registry) lease(slug string, e *entry) *Lease {
	gen := e.gen
	return &Lease{
		Gen: gen,
		release: func() {
			r.mu.Lock()
			e.refs--
			retired := r.entries[slug] != e && e.refs == 0
			r.mu.Unlock()
			if retired {
				gen.close(r.logger, slug)
			}
		},
	}
}

// Swap installs a freshly loaded generation. The old generation closes
// immediately when idle, otherwise when its last lease releases.
func (r *Registry) Swap(slug string, gen Generation) {
	r.mu.Lock()
	old, had := r.entries[slug]
	r.entries[slug] = &entry{gen: gen}
	r.known[slug] = true
	closeNow := had && old.refs == 0
	r.mu.Unlock()

	if closeNow {
		old.gen.close(r.logger, slug)
	}
}

// Close closes every idle generation. Leased generations close on
// release as usual.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for slug, e := range r.entries {
		if e.refs == 0 {
			e.gen.close(r.logger, slug)
		}
		delete(r.entries, slug)
	}
	return nil
}
