// Package query answers product browsing requests against one loaded
// catalog generation: positional listing, relevance search, filter
// expressions, and point lookups, all sharing one page envelope.
package query

import (
	"context"

	"github.com/shopsight/shopsight-server/internal/catalog"
	"github.com/shopsight/shopsight-server/internal/domain"
	apperrors "github.com/shopsight/shopsight-server/internal/errors"
)

// Page is the envelope every listing operation returns. Products is
// never null in JSON, an empty page serializes as [].
type Page struct {
	Products   []*domain.Product `json:"products"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
}

// Engine runs queries against one catalog generation.
type Engine struct {
	gen catalog.Generation
}

// New creates an engine over a leased generation. The caller keeps the
// lease alive for the engine's lifetime.
func New(gen catalog.Generation) *Engine {
	return &Engine{gen: gen}
}

func validatePagination(page, perPage int) error {
	if perPage <= 0 {
		return apperrors.InvalidArgumentf("per_page must be positive, got %d", perPage)
	}
	if page <= 0 {
		return apperrors.InvalidArgumentf("page must be positive, got %d", page)
	}
	return nil
}

// envelope builds the page envelope. Pages past the end come back
// empty with the requested page echoed, never clamped.
func envelope(products []*domain.Product, total, page, perPage int) *Page {
	if products == nil {
		products = []*domain.Product{}
	}
	return &Page{
		Products:   products,
		Total:      total,
		Page:       page,
		TotalPages: (total + perPage - 1) / perPage,
	}
}

// List returns one page of products in catalog position order.
func (e *Engine) List(page, perPage int) (*Page, error) {
	if err := validatePagination(page, perPage); err != nil {
		return nil, err
	}

	total, err := e.gen.Store.Count()
	if err != nil {
		return nil, err
	}

	products, err := e.gen.Store.List(perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	return envelope(products, total, page, perPage), nil
}

// Search returns one page of products ranked by relevance.
func (e *Engine) Search(ctx context.Context, queryString string, page, perPage int) (*Page, error) {
	if err := validatePagination(page, perPage); err != nil {
		return nil, err
	}
	if e.gen.Index == nil {
		return nil, apperrors.Internal("catalog has no search index")
	}

	res, err := e.gen.Index.Search(ctx, queryString, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}

	products, err := e.gen.Store.GetMany(res.IDs)
	if err != nil {
		return nil, err
	}
	return envelope(products, int(res.Total), page, perPage), nil
}

// Filter returns one page of the products matching a filter
// expression, in catalog position order.
func (e *Engine) Filter(expr string, page, perPage int) (*Page, error) {
	if err := validatePagination(page, perPage); err != nil {
		return nil, err
	}

	filter, err := Parse(expr)
	if err != nil {
		return nil, err
	}

	var matches []*domain.Product
	err = e.gen.Store.ForEach(func(p *domain.Product) error {
		if filter.Matches(p) {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	total := len(matches)
	start := min((page-1)*perPage, total)
	end := min(start+perPage, total)
	return envelope(matches[start:end], total, page, perPage), nil
}

// Get returns one product by id.
func (e *Engine) Get(id string) (*domain.Product, error) {
	return e.gen.Store.Get(id)
}
