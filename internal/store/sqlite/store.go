// Package sqlite implements the catalog store on SQLite. One database
// file per catalog, named <slug>_catalog.db, with the canonical product
// document stored as JSON next to a few extracted columns. SQLite is
// the full-capability engine: aggregation queries and crawl history
// both work here.
package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"encoding/json/v2"

	_ "modernc.org/sqlite"

	"github.com/shopsight/shopsight-server/internal/domain"
	apperrors "github.com/shopsight/shopsight-server/internal/errors"
	"github.com/shopsight/shopsight-server/internal/store"
)

//go:embed schema.sql
var schemaSQL string

const dbSuffix = "_catalog.db"

// Backend manages the per-catalog SQLite databases under one base
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

func (b *Backend) Engine() string { return "sqlite" }

func (b *Backend) Capabilities() store.Capabilities {
	return store.Capabilities{Aggregation: true, CrawlHistory: true}
}

func (b *Backend) path(slug string) string {
	return filepath.Join(b.base, slug+dbSuffix)
}

func (b *Backend) stagingPath(slug, generation string) string {
	return b.path(slug) + ".staging-" + generation
}

// List returns the slugs of every committed catalog database, sorted.
func (b *Backend) List() ([]string, error) {
	entries, err := os.ReadDir(b.base)
	if err != nil {
		return nil, fmt.Errorf("reading data directory: %w", err)
	}
	var slugs []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, dbSuffix) {
			continue
		}
		slugs = append(slugs, strings.TrimSuffix(name, dbSuffix))
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
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("clearing stale staging db: %w", err)
	}
	return open(path)
}

// Commit renames the staging database over the committed one. Open
// handles on the old file keep reading the unlinked inode until closed.
func (b *Backend) Commit(slug, generation string) error {
	staging := b.stagingPath(slug, generation)
	target := b.path(slug)
	for _, sidecar := range []string{target + "-wal", target + "-shm"} {
		if err := os.Remove(sidecar); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", sidecar, err)
		}
	}
	if err := os.Rename(staging, target); err != nil {
		return fmt.Errorf("committing catalog %s: %w", slug, err)
	}
	return nil
}

// DiscardStaging removes a staging database without committing.
func (b *Backend) DiscardStaging(slug, generation string) error {
	path := b.stagingPath(slug, generation)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("discarding staging db: %w", err)
	}
	return nil
}

// Catalog is one catalog's SQLite database.
type Catalog struct {
	db *sql.DB
}

func open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Querier exposes the database handle for aggregation queries.
func (c *Catalog) Querier() *sql.DB { return c.db }

func (c *Catalog) Count() (int, error) {
	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM products").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	return n, nil
}

func (c *Catalog) List(limit, offset int) ([]*domain.Product, error) {
	rows, err := c.db.Query(
		"SELECT extracted_product FROM products ORDER BY position, id LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

func (c *Catalog) Get(id string) (*domain.Product, error) {
	var doc string
	err := c.db.QueryRow("SELECT extracted_product FROM products WHERE id = ?", id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundf("product %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting product %s: %w", id, err)
	}
	return decodeProduct(doc)
}

func (c *Catalog) GetMany(ids []string) ([]*domain.Product, error) {
	out := make([]*domain.Product, 0, len(ids))
	for _, id := range ids {
		p, err := c.Get(id)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *Catalog) ForEach(fn func(*domain.Product) error) error {
	rows, err := c.db.Query("SELECT extracted_product FROM products ORDER BY position, id")
	if err != nil {
		return fmt.Errorf("iterating products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return fmt.Errorf("scanning product: %w", err)
		}
		p, err := decodeProduct(doc)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Put upserts a batch of products in one transaction. New ids get the
// next positions in arrival order; existing ids keep theirs.
func (c *Catalog) Put(products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRow("SELECT COALESCE(MAX(position), -1) + 1 FROM products").Scan(&next); err != nil {
		return fmt.Errorf("reading next position: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO products (id, name, url, position, extracted_product)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			extracted_product = excluded.extracted_product`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range products {
		doc, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding product %s: %w", p.ID, err)
		}
		if _, err := stmt.Exec(p.ID, p.Name, p.URL, next, string(doc)); err != nil {
			return fmt.Errorf("upserting product %s: %w", p.ID, err)
		}
		next++
	}

	return tx.Commit()
}

// PutCrawls appends crawl records. Records whose timestamp is already
// stored are skipped, matching upstream exports that resend history.
func (c *Catalog) PutCrawls(crawls []domain.Crawl) error {
	if len(crawls) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO crawls
			(catalog, product_url, crawl_url, page_content, crawl_timestamp, crawl_source, api_source)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing crawl insert: %w", err)
	}
	defer stmt.Close()

	for _, cr := range crawls {
		_, err := stmt.Exec(cr.Catalog, cr.ProductURL, cr.CrawlURL, cr.PageContent,
			cr.Timestamp, cr.Source, cr.APISource)
		if err != nil {
			return fmt.Errorf("inserting crawl: %w", err)
		}
	}

	return tx.Commit()
}

// CrawlsByProductURL returns the crawl history of one product URL,
// newest first.
func (c *Catalog) CrawlsByProductURL(productURL string) ([]domain.Crawl, error) {
	rows, err := c.db.Query(`
		SELECT catalog, product_url, crawl_url, page_content, crawl_timestamp, crawl_source, api_source
		FROM crawls
		WHERE product_url = ?
		ORDER BY crawl_timestamp DESC`, productURL)
	if err != nil {
		return nil, fmt.Errorf("querying crawls: %w", err)
	}
	defer rows.Close()

	var out []domain.Crawl
	for rows.Next() {
		var cr domain.Crawl
		var catalog, crawlURL, pageContent, source, apiSource sql.NullString
		if err := rows.Scan(&catalog, &cr.ProductURL, &crawlURL, &pageContent,
			&cr.Timestamp, &source, &apiSource); err != nil {
			return nil, fmt.Errorf("scanning crawl: %w", err)
		}
		cr.Catalog = catalog.String
		cr.CrawlURL = crawlURL.String
		cr.PageContent = pageContent.String
		cr.Source = source.String
		cr.APISource = apiSource.String
		out = append(out, cr)
	}
	return out, rows.Err()
}

// Close checkpoints the WAL and closes the database.
func (c *Catalog) Close() error {
	_, _ = c.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return c.db.Close()
}

func scanProducts(rows *sql.Rows) ([]*domain.Product, error) {
	var out []*domain.Product
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		p, err := decodeProduct(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func decodeProduct(doc string) (*domain.Product, error) {
	var p domain.Product
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("decoding stored product: %w", err)
	}
	return &p, nil
}
