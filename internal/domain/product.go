// Package domain contains the canonical product model served by the ShopSight catalog API.
package domain

import (
	"crypto/sha1" //#nosec G505 -- Used for stable id derivation, not security
	"encoding/hex"
)

// Availability is the normalized stock state of a product or variant.
type Availability string

// Canonical availability values.
const (
	AvailabilityInStock    Availability = "IN_STOCK"
	AvailabilityOutOfStock Availability = "OUT_OF_STOCK"
	AvailabilityPreorder   Availability = "PREORDER"
	AvailabilityBackorder  Availability = "BACKORDER"
	AvailabilityUnknown    Availability = "UNKNOWN"
)

// Category is one element of a breadcrumb path.
type Category struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Image is a product image reference. URL is always set.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Rating holds the aggregate rating of a product.
type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Review is a single customer review.
type Review struct {
	Author string  `json:"author,omitempty"`
	Date   string  `json:"date,omitempty"`
	Rating float64 `json:"rating,omitempty"`
	Body   string  `json:"body,omitempty"`
}

// ColorSwatch pairs a color display name with its swatch image.
type ColorSwatch struct {
	Label     string `json:"label"`
	SwatchURL string `json:"swatch_url,omitempty"`
}

// Audience describes the target demographic of a product.
type Audience struct {
	Genders   []string `json:"genders,omitempty"`
	AgeGroups []string `json:"age_groups,omitempty"`
}

// AttributeValue is a tagged union for vendor-specific attributes:
// exactly one of Text or Numbers is populated.
type AttributeValue struct {
	Text    []string  `json:"text,omitempty"`
	Numbers []float64 `json:"numbers,omitempty"`
}

// Variant is a product variation differing by color, size, price,
// availability, or image.
type Variant struct {
	ID            string       `json:"id,omitempty"`
	Name          string       `json:"name,omitempty"`
	URL           string       `json:"url,omitempty"`
	Image         *Image       `json:"image,omitempty"`
	CurrentPrice  *float64     `json:"current_price,omitempty"`
	OriginalPrice *float64     `json:"original_price,omitempty"`
	Currency      string       `json:"currency,omitempty"`
	Availability  Availability `json:"availability"`
	Colors        []string     `json:"colors,omitempty"`
	Sizes         []string     `json:"sizes,omitempty"`
}

// GroupedVariant is the detail-view grouping of variants by image URL:
// one entry per distinct image with the union of colors and sizes
// observed across variants sharing that image, split by stock state.
type GroupedVariant struct {
	ImageURL         string   `json:"image_url"`
	InStockColors    []string `json:"in_stock_colors"`
	OutOfStockColors []string `json:"out_of_stock_colors"`
	InStockSizes     []string `json:"in_stock_sizes"`
	OutOfStockSizes  []string `json:"out_of_stock_sizes"`
}

// Product is the canonical record stored per catalog and served by the API.
// Absent data is nil/empty, never a placeholder string; current_price is
// nil rather than zero when unknown.
type Product struct {
	ID                   string                    `json:"id"`
	Name                 string                    `json:"name,omitempty"`
	Description          string                    `json:"description,omitempty"`
	URL                  string                    `json:"url,omitempty"`
	Brand                string                    `json:"brand,omitempty"`
	Categories           []Category                `json:"categories,omitempty"`
	Images               []Image                   `json:"images,omitempty"`
	CurrentPrice         *float64                  `json:"current_price,omitempty"`
	OriginalPrice        *float64                  `json:"original_price,omitempty"`
	Currency             string                    `json:"currency,omitempty"`
	Availability         Availability              `json:"availability"`
	Rating               *Rating                   `json:"rating,omitempty"`
	Reviews              []Review                  `json:"reviews,omitempty"`
	Materials            []string                  `json:"materials,omitempty"`
	Patterns             []string                  `json:"patterns,omitempty"`
	Sizes                []string                  `json:"sizes,omitempty"`
	ColorInfo            []ColorSwatch             `json:"color_info,omitempty"`
	Dimensions           string                    `json:"dimensions,omitempty"`
	Fit                  string                    `json:"fit,omitempty"`
	Audience             *Audience                 `json:"audience,omitempty"`
	AdditionalAttributes map[string]AttributeValue `json:"additional_attributes,omitempty"`
	Variants             []Variant                 `json:"variants,omitempty"`
	GroupedVariants      []GroupedVariant          `json:"grouped_variants,omitempty"`
}

// PrimaryImage returns the first image, or nil when the product has none.
func (p *Product) PrimaryImage() *Image {
	if len(p.Images) == 0 {
		return nil
	}
	return &p.Images[0]
}

// HasDiscount reports whether the product carries an original price above
// the current price.
func (p *Product) HasDiscount() bool {
	return p.CurrentPrice != nil && p.OriginalPrice != nil && *p.OriginalPrice > *p.CurrentPrice
}

// DiscountPercent returns the discount as a percentage of the original
// price, or 0 when the product has no discount.
func (p *Product) DiscountPercent() float64 {
	if !p.HasDiscount() || *p.OriginalPrice == 0 {
		return 0
	}
	return (*p.OriginalPrice - *p.CurrentPrice) / *p.OriginalPrice * 100
}

// FallbackID derives a stable product id from name and URL for records
// whose source carries no identifier.
func FallbackID(name, url string) string {
	sum := sha1.Sum([]byte(name + "\x00" + url)) //#nosec G401 -- Stable id derivation, not security
	return "p-" + hex.EncodeToString(sum[:10])
}
