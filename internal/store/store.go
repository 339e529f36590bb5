// Package store defines the local persistence contract for loaded
// catalogs. Each backend engine keeps one store per catalog under the
// data directory; loads write into a staging generation that is
// committed atomically over the live store.
package store

import (
	"database/sql"

	"github.com/shopsight/shopsight-server/internal/domain"
)

// Capabilities describes what a backend engine can do beyond basic
// product storage. Callers gate aggregation queries and crawl history
// on these flags instead of sniffing the engine name.
type Capabilities struct {
	// Aggregation reports whether the engine supports SQL aggregation
	// over the stored product documents.
	Aggregation bool
	// CrawlHistory reports whether the engine persists crawl metadata.
	CrawlHistory bool
}

// Backend manages the per-catalog stores of one engine.
type Backend interface {
	// Engine returns the engine name, "sqlite" or "badger".
	Engine() string

	Capabilities() Capabilities

	// List returns the slugs of every catalog with a committed store,
	// sorted.
	List() ([]string, error)

	// Open opens the committed store for a catalog. Returns a
	// NOT_FOUND error when the catalog has never been loaded.
	Open(slug string) (Catalog, error)

	// CreateStaging creates an empty staging store for a load. The
	// generation tag keeps concurrent stagings of different catalogs
	// apart on disk.
	CreateStaging(slug, generation string) (Catalog, error)

	// Commit replaces the committed store with the staging generation.
	// The staging catalog must be closed first. Readers holding the
	// old store keep a consistent view until they close it.
	Commit(slug, generation string) error

	// DiscardStaging removes a staging generation without committing.
	DiscardStaging(slug, generation string) error
}

// Catalog is one catalog's product store. Products keep their load
// order; List pages in that order.
type Catalog interface {
	Count() (int, error)

	// List returns a page of products in load order.
	List(limit, offset int) ([]*domain.Product, error)

	// Get returns one product by id, or a NOT_FOUND error.
	Get(id string) (*domain.Product, error)

	// GetMany returns the products for the given ids in input order,
	// silently skipping ids that do not exist.
	GetMany(ids []string) ([]*domain.Product, error)

	// ForEach streams every product in load order. Returning an error
	// from fn stops the walk and propagates the error.
	ForEach(fn func(*domain.Product) error) error

	// Put upserts a batch of products. Position is assigned from
	// arrival order for new ids and preserved for existing ones.
	Put(products []*domain.Product) error

	// PutCrawls appends crawl records, deduplicated by timestamp.
	// Engines without crawl history return BACKEND_UNSUPPORTED.
	PutCrawls(crawls []domain.Crawl) error

	// CrawlsByProductURL returns the crawl history of one product URL,
	// newest first. Engines without crawl history return
	// BACKEND_UNSUPPORTED.
	CrawlsByProductURL(productURL string) ([]domain.Crawl, error)

	Close() error
}

// AggregateQuerier exposes the underlying SQL handle for aggregation
// queries. Only catalogs of engines with the Aggregation capability
// implement it.
type AggregateQuerier interface {
	Querier() *sql.DB
}
