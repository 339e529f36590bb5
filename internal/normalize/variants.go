package normalize

import (
	"sort"

	"github.com/shopsight/shopsight-server/internal/domain"
	"github.com/shopsight/shopsight-server/internal/schema"
)

func normalizeVariants(raw []schema.Product) []domain.Variant {
	if len(raw) == 0 {
		return nil
	}
	out := make([]domain.Variant, 0, len(raw))
	for i := range raw {
		rv := &raw[i]
		current, original, currency := ExtractPrice(rv)
		v := domain.Variant{
			ID:            rv.ID,
			Name:          rv.Name,
			URL:           rv.URL,
			CurrentPrice:  current,
			OriginalPrice: original,
			Currency:      currency,
			Availability:  MapAvailability(availabilitySource(rv)),
			Sizes:         rv.Sizes,
		}
		if rv.Image != nil && rv.Image.URL != "" {
			v.Image = &domain.Image{URL: rv.Image.URL, Width: rv.Image.Width.V, Height: rv.Image.Height.V}
		} else if len(rv.Images) > 0 && rv.Images[0].URL != "" {
			v.Image = &domain.Image{URL: rv.Images[0].URL, Width: rv.Images[0].Width.V, Height: rv.Images[0].Height.V}
		}
		if rv.ColorInfo != nil {
			v.Colors = rv.ColorInfo.Colors
			if len(v.Colors) == 0 {
				v.Colors = rv.ColorInfo.ColorFamilies
			}
		}
		out = append(out, v)
	}
	return out
}

// GroupVariants collapses variants by image URL: one entry per distinct
// URL, in first-seen order, carrying the union of colors and sizes seen
// across the variants sharing that image, split by stock state. Unions
// are sorted for deterministic output. Variants without an image group
// under the empty URL.
func GroupVariants(variants []domain.Variant) []domain.GroupedVariant {
	if len(variants) == 0 {
		return nil
	}

	type sets struct {
		inColors, outColors map[string]bool
		inSizes, outSizes   map[string]bool
	}
	byURL := make(map[string]*sets)
	var order []string

	for i := range variants {
		v := &variants[i]
		url := ""
		if v.Image != nil {
			url = v.Image.URL
		}
		s, ok := byURL[url]
		if !ok {
			s = &sets{
				inColors:  make(map[string]bool),
				outColors: make(map[string]bool),
				inSizes:   make(map[string]bool),
				outSizes:  make(map[string]bool),
			}
			byURL[url] = s
			order = append(order, url)
		}

		colors, sizes := s.inColors, s.inSizes
		if v.Availability != domain.AvailabilityInStock {
			colors, sizes = s.outColors, s.outSizes
		}
		for _, c := range v.Colors {
			colors[c] = true
		}
		for _, sz := range v.Sizes {
			sizes[sz] = true
		}
	}

	out := make([]domain.GroupedVariant, 0, len(order))
	for _, url := range order {
		s := byURL[url]
		out = append(out, domain.GroupedVariant{
			ImageURL:         url,
			InStockColors:    sortedKeys(s.inColors),
			OutOfStockColors: sortedKeys(s.outColors),
			InStockSizes:     sortedKeys(s.inSizes),
			OutOfStockSizes:  sortedKeys(s.outSizes),
		})
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
