// Package analytics computes catalog-wide aggregate statistics on
// demand. Basic analytics run a single pass over any backend; advanced
// analytics need a backend with SQL aggregation and are capability
// gated.
package analytics

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopsight/shopsight-server/internal/domain"
	"github.com/shopsight/shopsight-server/internal/store"
)

// analyzedFields is the fixed field list basic analytics reports on.
var analyzedFields = []string{
	"name", "description", "brand", "url", "image",
	"current_price", "original_price", "rating",
	"materials", "patterns", "sizes", "colors", "categories",
}

// FieldStats is one field's completeness summary.
type FieldStats struct {
	NullPercent   float64 `json:"null_percent"`
	DistinctCount int     `json:"distinct_count"`
}

// ImageStats summarizes image completeness across the catalog.
type ImageStats struct {
	MissingPrimaryCount   int     `json:"missing_primary_count"`
	MissingPrimaryPercent float64 `json:"missing_primary_percent"`
	MinVariantImages      int     `json:"min_variant_images"`
	AvgVariantImages      float64 `json:"avg_variant_images"`
	MaxVariantImages      int     `json:"max_variant_images"`
}

// Basic is the basic analytics report.
type Basic struct {
	TotalProducts int                   `json:"total_products"`
	Fields        map[string]FieldStats `json:"fields"`
	Images        ImageStats            `json:"images"`
}

// round1 rounds to one decimal place, half away from zero.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// fieldValues extracts a field's values for distinct counting. An
// empty slice means the field is null for this product.
func fieldValues(p *domain.Product, field string) []string {
	switch field {
	case "name":
		return nonEmpty(p.Name)
	case "description":
		return nonEmpty(p.Description)
	case "brand":
		return nonEmpty(p.Brand)
	case "url":
		return nonEmpty(p.URL)
	case "image":
		if img := p.PrimaryImage(); img != nil {
			return []string{img.URL}
		}
		return nil
	case "current_price":
		return floatValue(p.CurrentPrice)
	case "original_price":
		return floatValue(p.OriginalPrice)
	case "rating":
		if p.Rating == nil {
			return nil
		}
		return []string{fmt.Sprintf("%g", p.Rating.Average)}
	case "materials":
		return p.Materials
	case "patterns":
		return p.Patterns
	case "sizes":
		return p.Sizes
	case "colors":
		out := make([]string, 0, len(p.ColorInfo))
		for _, c := range p.ColorInfo {
			out = append(out, c.Label)
		}
		return out
	case "categories":
		out := make([]string, 0, len(p.Categories))
		for _, c := range p.Categories {
			out = append(out, c.Name)
		}
		return out
	}
	return nil
}

func nonEmpty(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return []string{s}
}

func floatValue(f *float64) []string {
	if f == nil {
		return nil
	}
	return []string{fmt.Sprintf("%g", *f)}
}

// ComputeBasic walks the catalog once and reports per-field null
// percentages, distinct counts, and image completeness. Percentages
// carry one decimal place.
func ComputeBasic(cat store.Catalog) (*Basic, error) {
	nulls := make(map[string]int, len(analyzedFields))
	distinct := make(map[string]map[string]struct{}, len(analyzedFields))
	for _, f := range analyzedFields {
		distinct[f] = make(map[string]struct{})
	}

	total := 0
	missingPrimary := 0
	variantImageTotal := 0
	minVariantImages := -1
	maxVariantImages := 0

	err := cat.ForEach(func(p *domain.Product) error {
		total++

		for _, field := range analyzedFields {
			values := fieldValues(p, field)
			if len(values) == 0 {
				nulls[field]++
				continue
			}
			for _, v := range values {
				distinct[field][v] = struct{}{}
			}
		}

		if p.PrimaryImage() == nil {
			missingPrimary++
		}

		n := variantImageCount(p)
		variantImageTotal += n
		if minVariantImages < 0 || n < minVariantImages {
			minVariantImages = n
		}
		if n > maxVariantImages {
			maxVariantImages = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := &Basic{
		TotalProducts: total,
		Fields:        make(map[string]FieldStats, len(analyzedFields)),
	}
	for _, field := range analyzedFields {
		stats := FieldStats{DistinctCount: len(distinct[field])}
		if total > 0 {
			stats.NullPercent = round1(float64(nulls[field]) / float64(total) * 100)
		}
		report.Fields[field] = stats
	}

	if total > 0 {
		report.Images = ImageStats{
			MissingPrimaryCount:   missingPrimary,
			MissingPrimaryPercent: round1(float64(missingPrimary) / float64(total) * 100),
			MinVariantImages:      minVariantImages,
			AvgVariantImages:      round1(float64(variantImageTotal) / float64(total)),
			MaxVariantImages:      maxVariantImages,
		}
	}
	return report, nil
}

// variantImageCount counts the distinct image URLs across a product's
// variants.
func variantImageCount(p *domain.Product) int {
	seen := make(map[string]struct{})
	for i := range p.Variants {
		if img := p.Variants[i].Image; img != nil && img.URL != "" {
			seen[img.URL] = struct{}{}
		}
	}
	return len(seen)
}
