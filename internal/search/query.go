package search

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Result is one page of ranked ids.
type Result struct {
	IDs   []string
	Total uint64
}

// Search runs a relevance query and returns the ranked product ids for
// one page. Results sort by score with an id tiebreak so equal-score
// hits page deterministically.
func (i *Index) Search(ctx context.Context, queryString string, limit, offset int) (*Result, error) {
	req := bleve.NewSearchRequestOptions(buildQuery(queryString), limit, offset, false)
	req.SortBy([]string{"-_score", "_id"})

	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("executing search: %w", err)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return &Result{IDs: ids, Total: res.Total}, nil
}

// buildQuery combines a boosted name match, description and brand
// matches, and a fuzzy name match for typo tolerance.
func buildQuery(queryString string) query.Query {
	if queryString == "" {
		return bleve.NewMatchAllQuery()
	}

	nameMatch := bleve.NewMatchQuery(queryString)
	nameMatch.SetField("name")
	nameMatch.SetBoost(3.0)

	descMatch := bleve.NewMatchQuery(queryString)
	descMatch.SetField("description")

	brandMatch := bleve.NewMatchQuery(queryString)
	brandMatch.SetField("brand")
	brandMatch.SetBoost(1.5)

	fuzzy := bleve.NewFuzzyQuery(queryString)
	fuzzy.SetField("name")
	fuzzy.SetFuzziness(1)
	fuzzy.SetBoost(0.8)

	return bleve.NewDisjunctionQuery(nameMatch, descMatch, brandMatch, fuzzy)
}
