// Package badger implements the catalog store on Badger. One database
// directory per catalog. Products are kept under sequence keys so List
// pages in load order, with a secondary id index for point lookups.
// Badger is the basic engine: no aggregation, no crawl history.
package badger

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"encoding/json/v2"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/shopsight/shopsight-server/internal/domain"
	apperrors "github.com/shopsight/shopsight-server/internal/errors"
	"github.com/shopsight/shopsight-server/internal/store"
)

const dirSuffix = "_catalog.badger"

var (
	productPrefix = []byte("p/")
	idPrefix      = []byte("i/")
	nextSeqKey    = []byte("m/next")
)

// Backend manages the per-catalog Badger directories under one base
// directory.
type Backend struct {
	base string
}

// New creates a backend rooted at basePath, creating the directory if
// needed.
func New(basePath string) (*Backend, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Backend{base: basePath}, nil
}

func (b *Backend) Engine() string { return "badger" }

func (b *Backend) Capabilities() store.Capabilities {
	return store.Capabilities{}
}

func (b *Backend) path(slug string) string {
	return filepath.Join(b.base, slug+dirSuffix)
}

func (b *Backend) stagingPath(slug, generation string) string {
	return b.path(slug) + ".staging-" + generation
}

// List returns the slugs of every committed catalog directory, sorted.
func (b *Backend) List() ([]string, error) {
	entries, err := os.ReadDir(b.base)
	if err != nil {
		return nil, fmt.Errorf("reading data directory: %w", err)
	}
	var slugs []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !strings.HasSuffix(name, dirSuffix) {
			continue
		}
		slugs = append(slugs, strings.TrimSuffix(name, dirSuffix))
	}
	sort.Strings(slugs)
	return slugs, nil
}

// Open opens the committed database for a catalog.
func (b *Backend) Open(slug string) (store.Catalog, error) {
	path := b.path(slug)
	if _, err := os.Stat(path); err != nil {
		return nil, apperrors.NotFoundf("catalog %s has not been loaded", slug)
	}
	return open(path)
}

// CreateStaging creates an empty staging database for a load.
func (b *Backend) CreateStaging(slug, generation string) (store.Catalog, error) {
	path := b.stagingPath(slug, generation)
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("clearing stale staging db: %w", err)
	}
	return open(path)
}

// Commit moves the staging directory over the committed one. The old
// directory is renamed aside first so open handles keep working, then
// removed.
func (b *Backend) Commit(slug, generation string) error {
	staging := b.stagingPath(slug, generation)
	target := b.path(slug)
	trash := target + ".old-" + generation

	if _, err := os.Stat(target); err == nil {
		if err := os.Rename(target, trash); err != nil {
			return fmt.Errorf("moving old catalog aside: %w", err)
		}
	}
	if err := os.Rename(staging, target); err != nil {
		return fmt.Errorf("committing catalog %s: %w", slug, err)
	}
	if err := os.RemoveAll(trash); err != nil {
		return fmt.Errorf("removing old catalog: %w", err)
	}
	return nil
}

// DiscardStaging removes a staging directory without committing.
func (b *Backend) DiscardStaging(slug, generation string) error {
	if err := os.RemoveAll(b.stagingPath(slug, generation)); err != nil {
		return fmt.Errorf("discarding staging db: %w", err)
	}
	return nil
}

// Catalog is one catalog's Badger database.
type Catalog struct {
	db *badger.DB
}

func open(path string) (*Catalog, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &Catalog{db: db}, nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, len(productPrefix)+8)
	copy(key, productPrefix)
	binary.BigEndian.PutUint64(key[len(productPrefix):], seq)
	return key
}

func idKey(id string) []byte {
	return append(append([]byte{}, idPrefix...), id...)
}

func (c *Catalog) Count() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = productPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	return n, nil
}

func (c *Catalog) List(limit, offset int) ([]*domain.Product, error) {
	var out []*domain.Product
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = productPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		skipped := 0
		for it.Rewind(); it.Valid(); it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if len(out) >= limit {
				break
			}
			p, err := itemProduct(it.Item())
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return out, nil
}

func (c *Catalog) Get(id string) (*domain.Product, error) {
	var p *domain.Product
	err := c.db.View(func(txn *badger.Txn) error {
		got, err := getByID(txn, id)
		if err != nil {
			return err
		}
		p = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Catalog) GetMany(ids []string) ([]*domain.Product, error) {
	out := make([]*domain.Product, 0, len(ids))
	err := c.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			p, err := getByID(txn, id)
			if apperrors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func getByID(txn *badger.Txn, id string) (*domain.Product, error) {
	item, err := txn.Get(idKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, apperrors.NotFoundf("product %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up product %s: %w", id, err)
	}

	var ref []byte
	if err := item.Value(func(val []byte) error {
		ref = append([]byte{}, val...)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("reading index entry: %w", err)
	}

	item, err = txn.Get(ref)
	if err != nil {
		return nil, fmt.Errorf("reading product %s: %w", id, err)
	}
	return itemProduct(item)
}

func (c *Catalog) ForEach(fn func(*domain.Product) error) error {
	return c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = productPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			p, err := itemProduct(it.Item())
			if err != nil {
				return err
			}
			if err := fn(p); err != nil {
				return err
			}
		}
		return nil
	})
}

// Put upserts a batch of products. New ids get the next sequence keys
// in arrival order; existing ids are rewritten in place.
func (c *Catalog) Put(products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	return c.db.Update(func(txn *badger.Txn) error {
		next, err := readNextSeq(txn)
		if err != nil {
			return err
		}

		for _, p := range products {
			doc, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("encoding product %s: %w", p.ID, err)
			}

			key, err := existingSeqKey(txn, p.ID)
			if err != nil {
				return err
			}
			if key == nil {
				key = seqKey(next)
				next++
				if err := txn.Set(idKey(p.ID), key); err != nil {
					return fmt.Errorf("writing id index for %s: %w", p.ID, err)
				}
			}
			if err := txn.Set(key, doc); err != nil {
				return fmt.Errorf("writing product %s: %w", p.ID, err)
			}
		}

		seq := make([]byte, 8)
		binary.BigEndian.PutUint64(seq, next)
		if err := txn.Set(nextSeqKey, seq); err != nil {
			return fmt.Errorf("writing sequence counter: %w", err)
		}
		return nil
	})
}

// PutCrawls is unsupported on badger.
func (c *Catalog) PutCrawls([]domain.Crawl) error {
	return apperrors.BackendUnsupported("crawl history requires the sqlite engine")
}

// CrawlsByProductURL is unsupported on badger.
func (c *Catalog) CrawlsByProductURL(string) ([]domain.Crawl, error) {
	return nil, apperrors.BackendUnsupported("crawl history requires the sqlite engine")
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

func readNextSeq(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get(nextSeqKey)
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading sequence counter: %w", err)
	}
	var next uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt sequence counter")
		}
		next = binary.BigEndian.Uint64(val)
		return nil
	})
	return next, err
}

func existingSeqKey(txn *badger.Txn, id string) ([]byte, error) {
	item, err := txn.Get(idKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checking id index for %s: %w", id, err)
	}
	var key []byte
	err = item.Value(func(val []byte) error {
		key = append([]byte{}, val...)
		return nil
	})
	return key, err
}

func itemProduct(item *badger.Item) (*domain.Product, error) {
	var p *domain.Product
	err := item.Value(func(val []byte) error {
		var decoded domain.Product
		if err := json.Unmarshal(val, &decoded); err != nil {
			return fmt.Errorf("decoding stored product: %w", err)
		}
		p = &decoded
		return nil
	})
	return p, err
}
