// Package normalize maps raw vendor product records into the canonical
// domain model. All functions are pure: no I/O, no shared state.
package normalize

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/shopsight/shopsight-server/internal/domain"
	"github.com/shopsight/shopsight-server/internal/schema"
)

// ErrUnusableRecord marks a record with no derivable identity: no id, no
// product group id, and nothing to build a fallback id from. Callers skip
// and count these, they never abort a catalog load.
var ErrUnusableRecord = errors.New("record has no id, name, or url")

// Normalize converts one raw record to a canonical product. Missing
// optional data maps to nil/empty, never placeholders.
func Normalize(raw *schema.Product) (*domain.Product, error) {
	id := raw.ID
	if id == "" {
		id = raw.ProductGroupID
	}
	if id == "" {
		if raw.Name == "" && raw.URL == "" {
			return nil, ErrUnusableRecord
		}
		id = domain.FallbackID(raw.Name, raw.URL)
	}

	current, original, currency := ExtractPrice(raw)

	p := &domain.Product{
		ID:                   id,
		Name:                 strings.TrimSpace(raw.Name),
		Description:          strings.TrimSpace(raw.Description),
		URL:                  raw.URL,
		Brand:                strings.TrimSpace(raw.Brand.Value),
		Categories:           normalizeCategories(raw),
		Images:               collectImages(raw),
		CurrentPrice:         current,
		OriginalPrice:        original,
		Currency:             currency,
		Availability:         MapAvailability(availabilitySource(raw)),
		Rating:               normalizeRating(raw.AggRating()),
		Reviews:              normalizeReviews(raw.AllReviews()),
		Materials:            raw.Materials,
		Patterns:             raw.Patterns,
		Sizes:                raw.Sizes,
		ColorInfo:            normalizeColors(raw),
		Dimensions:           raw.Dimensions,
		Fit:                  raw.Fit,
		Audience:             normalizeAudience(raw.Audience),
		AdditionalAttributes: FormatAttributes(raw.Attributes()),
	}

	p.Variants = normalizeVariants(raw.HasVariant)
	p.GroupedVariants = GroupVariants(p.Variants)

	return p, nil
}

// availabilitySource picks the availability string to normalize: the
// product's own member, else the first offer's.
func availabilitySource(raw *schema.Product) string {
	if raw.Availability != "" {
		return raw.Availability
	}
	if raw.Offers != nil && len(raw.Offers.Offers) > 0 {
		return raw.Offers.Offers[0].Availability
	}
	return ""
}

// MapAvailability normalizes a schema.org availability URI or vendor
// string to the canonical enum. Matching is case-insensitive on letters
// only, so "https://schema.org/InStock", "OUT_OF_STOCK", and "instock"
// all map correctly. Unrecognized values map to UNKNOWN.
func MapAvailability(s string) domain.Availability {
	letters := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r
		}
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return -1
	}, s)

	switch {
	case strings.Contains(letters, "outofstock"):
		return domain.AvailabilityOutOfStock
	case strings.Contains(letters, "instock"):
		return domain.AvailabilityInStock
	case strings.Contains(letters, "preorder"):
		return domain.AvailabilityPreorder
	case strings.Contains(letters, "backorder"):
		return domain.AvailabilityBackorder
	default:
		return domain.AvailabilityUnknown
	}
}

// collectImages merges the primary image, the images list, and variant
// images, deduplicated by URL in first-seen order with the primary first.
func collectImages(raw *schema.Product) []domain.Image {
	var out []domain.Image
	seen := make(map[string]bool)

	add := func(img *schema.Image) {
		if img == nil || img.URL == "" || seen[img.URL] {
			return
		}
		seen[img.URL] = true
		out = append(out, domain.Image{URL: img.URL, Width: img.Width.V, Height: img.Height.V})
	}

	add(raw.Image)
	for i := range raw.Images {
		add(&raw.Images[i])
	}
	for i := range raw.HasVariant {
		v := &raw.HasVariant[i]
		add(v.Image)
		for j := range v.Images {
			add(&v.Images[j])
		}
	}
	return out
}

func normalizeCategories(raw *schema.Product) []domain.Category {
	if len(raw.Categories) > 0 {
		out := make([]domain.Category, 0, len(raw.Categories))
		for _, c := range raw.Categories {
			if c.Name == "" {
				continue
			}
			out = append(out, domain.Category{Name: c.Name, URL: c.URL})
		}
		return out
	}

	// Some vendors ship the category path as a BreadcrumbList.
	elems := raw.BreadcrumbList.ItemListElement
	if len(elems) == 0 {
		return nil
	}
	out := make([]domain.Category, 0, len(elems))
	for _, e := range elems {
		if e.Item.Name == "" {
			continue
		}
		out = append(out, domain.Category{Name: e.Item.Name, URL: e.Item.ID})
	}
	return out
}

func normalizeRating(r *schema.Rating) *domain.Rating {
	if r == nil {
		return nil
	}
	avg := r.Average()
	if avg == nil {
		return nil
	}
	return &domain.Rating{Average: *avg, Count: r.Total()}
}

func normalizeReviews(reviews []schema.Review) []domain.Review {
	if len(reviews) == 0 {
		return nil
	}
	out := make([]domain.Review, 0, len(reviews))
	for _, r := range reviews {
		review := domain.Review{
			Author: r.Author.Value,
			Date:   r.DatePublished,
			Body:   strings.TrimSpace(r.ReviewBody),
		}
		if avg := r.ReviewRating.Average(); avg != nil {
			review.Rating = *avg
		}
		out = append(out, review)
	}
	return out
}

func normalizeColors(raw *schema.Product) []domain.ColorSwatch {
	if raw.ColorInfo == nil {
		return nil
	}
	colors := raw.ColorInfo.Colors
	if len(colors) == 0 {
		colors = raw.ColorInfo.ColorFamilies
	}
	if len(colors) == 0 {
		return nil
	}

	// Pair each color with the image of a variant carrying that color.
	swatchFor := make(map[string]string)
	for i := range raw.HasVariant {
		v := &raw.HasVariant[i]
		if v.ColorInfo == nil || v.Image == nil || v.Image.URL == "" {
			continue
		}
		for _, c := range v.ColorInfo.Colors {
			if _, ok := swatchFor[c]; !ok {
				swatchFor[c] = v.Image.URL
			}
		}
	}

	out := make([]domain.ColorSwatch, 0, len(colors))
	for _, c := range colors {
		sw := domain.ColorSwatch{Label: c, SwatchURL: swatchFor[c]}
		if sw.SwatchURL == "" {
			sw.SwatchURL = raw.ColorInfo.SwatchURL
		}
		out = append(out, sw)
	}
	return out
}

func normalizeAudience(a *schema.Audience) *domain.Audience {
	if a == nil || (len(a.Genders) == 0 && len(a.AgeGroups) == 0) {
		return nil
	}
	return &domain.Audience{Genders: a.Genders, AgeGroups: a.AgeGroups}
}

// grpSuffix matches the grouping suffixes vendors append to attribute
// keys, e.g. "style_grp_001".
var grpSuffix = regexp.MustCompile(`_grp_\d+`)

// FormatAttributeLabel turns a raw attribute key into its display label:
// grouping suffixes stripped, underscores split, title-cased.
func FormatAttributeLabel(key string) string {
	key = grpSuffix.ReplaceAllString(key, "")
	key = strings.Trim(key, "_")
	if key == "" {
		return ""
	}
	words := strings.Split(key, "_")
	// Casers are stateful, so build one per call.
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// FormatAttributes converts the raw attribute map to the canonical tagged
// union keyed by display label. Empty values are dropped; on label
// collision the lexicographically first source key wins, keeping the
// result deterministic.
func FormatAttributes(attrs map[string]schema.Attribute) map[string]domain.AttributeValue {
	if len(attrs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(attrs))
	for key := range attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make(map[string]domain.AttributeValue, len(attrs))
	for _, key := range keys {
		val := attrs[key]
		label := FormatAttributeLabel(key)
		if label == "" {
			continue
		}
		if len(val.Text) == 0 && len(val.Numbers) == 0 {
			continue
		}
		if _, ok := out[label]; ok {
			continue
		}
		out[label] = domain.AttributeValue{Text: val.Text, Numbers: val.Numbers}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
