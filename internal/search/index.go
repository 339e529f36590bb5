// Package search maintains one Bleve index per catalog, built during
// ingestion staging and committed alongside the product store. Queries
// return ranked product ids; the store supplies the documents.
package search

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"

	"github.com/shopsight/shopsight-server/internal/domain"
	apperrors "github.com/shopsight/shopsight-server/internal/errors"
)

const indexSuffix = "_index.bleve"

// Manager keeps the per-catalog indexes under one base directory, with
// the same staging-then-commit lifecycle as the product stores.
type Manager struct {
	base string
}

// NewManager creates a manager rooted at basePath, creating the
// directory if needed.
func NewManager(basePath string) (*Manager, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	return &Manager{base: basePath}, nil
}

func (m *Manager) path(slug string) string {
	return filepath.Join(m.base, slug+indexSuffix)
}

func (m *Manager) stagingPath(slug, generation string) string {
	return m.path(slug) + ".staging-" + generation
}

// Open opens the committed index for a catalog.
func (m *Manager) Open(slug string) (*Index, error) {
	path := m.path(slug)
	if _, err := os.Stat(path); err != nil {
		return nil, apperrors.NotFoundf("no search index for catalog %s", slug)
	}
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening search index: %w", err)
	}
	return &Index{idx: idx}, nil
}

// CreateStaging creates an empty staging index for a load.
func (m *Manager) CreateStaging(slug, generation string) (*Index, error) {
	path := m.stagingPath(slug, generation)
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("clearing stale staging index: %w", err)
	}
	idx, err := bleve.New(path, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating search index: %w", err)
	}
	return &Index{idx: idx}, nil
}

// Commit moves the staging index over the committed one.
func (m *Manager) Commit(slug, generation string) error {
	staging := m.stagingPath(slug, generation)
	target := m.path(slug)
	trash := target + ".old-" + generation

	if _, err := os.Stat(target); err == nil {
		if err := os.Rename(target, trash); err != nil {
			return fmt.Errorf("moving old index aside: %w", err)
		}
	}
	if err := os.Rename(staging, target); err != nil {
		return fmt.Errorf("committing index for %s: %w", slug, err)
	}
	if err := os.RemoveAll(trash); err != nil {
		return fmt.Errorf("removing old index: %w", err)
	}
	return nil
}

// DiscardStaging removes a staging index without committing.
func (m *Manager) DiscardStaging(slug, generation string) error {
	if err := os.RemoveAll(m.stagingPath(slug, generation)); err != nil {
		return fmt.Errorf("discarding staging index: %w", err)
	}
	return nil
}

// Index wraps one catalog's Bleve index.
type Index struct {
	idx bleve.Index
}

// toDocument builds the indexed shape as a map so field names match
// the mapping exactly. Absent price/rating are left out instead of
// indexed as zero.
func toDocument(p *domain.Product) map[string]any {
	doc := map[string]any{
		"id":           p.ID,
		"name":         p.Name,
		"description":  p.Description,
		"brand":        p.Brand,
		"availability": string(p.Availability),
	}
	if p.CurrentPrice != nil {
		doc["price"] = *p.CurrentPrice
	}
	if p.Rating != nil {
		doc["rating"] = p.Rating.Average
	}
	return doc
}

// IndexProducts indexes a batch of products. Batches are chunked to
// keep memory flat during full catalog loads.
func (i *Index) IndexProducts(products []*domain.Product) error {
	const batchSize = 500

	for start := 0; start < len(products); start += batchSize {
		end := min(start+batchSize, len(products))

		batch := i.idx.NewBatch()
		for _, p := range products[start:end] {
			if err := batch.Index(p.ID, toDocument(p)); err != nil {
				return fmt.Errorf("batch index %s: %w", p.ID, err)
			}
		}
		if err := i.idx.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// DocCount returns the number of indexed products.
func (i *Index) DocCount() (uint64, error) {
	return i.idx.DocCount()
}

// Close closes the index and releases resources.
func (i *Index) Close() error {
	return i.idx.Close()
}
