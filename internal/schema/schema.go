// Package schema defines lenient decoding shapes for raw schema.org-style
// product records. Vendors disagree on scalar types and offer structure, so
// the types here accept every shape observed in real catalog exports and
// leave canonicalization to the normalize package.
package schema

import (
	"bytes"
	"encoding/json/v2"
	"strconv"
	"strings"
)

// Float is a tolerant numeric scalar: accepts JSON numbers, numeric
// strings, and null. Unparseable values decode as not-present rather
// than failing the record.
type Float struct {
	V     float64
	Valid bool
}

// UnmarshalJSON implements tolerant decoding.
func (f *Float) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil //nolint:nilerr // Unparseable scalar means not-present
	}
	f.V = v
	f.Valid = true
	return nil
}

// Ptr returns the value as *float64, nil when not present.
func (f *Float) Ptr() *float64 {
	if f == nil || !f.Valid {
		return nil
	}
	v := f.V
	return &v
}

// Int is a tolerant integer scalar, accepting numbers, numeric strings,
// and floats with zero fraction.
type Int struct {
	V     int
	Valid bool
}

// UnmarshalJSON implements tolerant decoding.
func (i *Int) UnmarshalJSON(data []byte) error {
	var f Float
	if err := f.UnmarshalJSON(data); err != nil || !f.Valid {
		return err
	}
	i.V = int(f.V)
	i.Valid = true
	return nil
}

// Name accepts either a bare string or an object carrying a "name" member.
// Covers brand, author, and seller shapes.
type Name struct {
	Value string
}

// UnmarshalJSON implements tolerant decoding.
func (n *Name) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		n.Value = s
		return nil
	}
	if trimmed[0] == '{' {
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil //nolint:nilerr // Unusable object means not-present
		}
		n.Value = obj.Name
	}
	return nil
}

// Image accepts either a bare URL string or an image object.
type Image struct {
	URL    string `json:"url"`
	Width  Int    `json:"width"`
	Height Int    `json:"height"`
}

// UnmarshalJSON implements tolerant decoding.
func (im *Image) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		im.URL = s
		return nil
	}
	type plain Image
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil //nolint:nilerr // Unusable object means not-present
	}
	*im = Image(p)
	return nil
}

// StringList accepts a bare string, a list of strings, or a list of mixed
// scalars rendered to strings.
type StringList []string

// UnmarshalJSON implements tolerant decoding.
func (l *StringList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		if s != "" {
			*l = StringList{s}
		}
		return nil
	}
	if trimmed[0] == '[' {
		var raw []any
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil //nolint:nilerr
		}
		out := make(StringList, 0, len(raw))
		for _, v := range raw {
			switch t := v.(type) {
			case string:
				if t != "" {
					out = append(out, t)
				}
			case float64:
				out = append(out, strconv.FormatFloat(t, 'f', -1, 64))
			}
		}
		*l = out
	}
	return nil
}

// Attribute is a vendor attribute value: an object tagging text or number
// lists, a bare string, or a bare list.
type Attribute struct {
	Text    StringList `json:"text"`
	Numbers []float64  `json:"numbers"`
}

// UnmarshalJSON implements tolerant decoding.
func (a *Attribute) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '{' {
		type plain Attribute
		var p plain
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return nil //nolint:nilerr
		}
		*a = Attribute(p)
		return nil
	}
	// Bare string or list: treat as text values, numbers as numbers.
	if trimmed[0] == '[' {
		var nums []float64
		if err := json.Unmarshal(trimmed, &nums); err == nil {
			a.Numbers = nums
			return nil
		}
	}
	var texts StringList
	if err := texts.UnmarshalJSON(trimmed); err == nil && len(texts) > 0 {
		a.Text = texts
	}
	return nil
}

// PriceSpecification is the schema.org PriceSpecification shape, either
// flat (price) or compound (priceComponent list tagged by priceType).
type PriceSpecification struct {
	Type           string               `json:"@type"`
	Price          *Float               `json:"price"`
	OriginalPrice  *Float               `json:"originalPrice"`
	PriceCurrency  string               `json:"priceCurrency"`
	PriceType      string               `json:"priceType"`
	PriceComponent []PriceSpecification `json:"priceComponent"`
}

// IsSale reports whether this component is tagged as a sale price.
func (ps *PriceSpecification) IsSale() bool {
	return strings.Contains(strings.ToLower(ps.PriceType), "sale")
}

// Offer is a single schema.org Offer.
type Offer struct {
	Type               string              `json:"@type"`
	Price              *Float              `json:"price"`
	PriceCurrency      string              `json:"priceCurrency"`
	Availability       string              `json:"availability"`
	SKU                string              `json:"sku"`
	PriceSpecification *PriceSpecification `json:"priceSpecification"`
}

// OfferSet is the polymorphic "offers" member: a single Offer, an
// AggregateOffer, an Offers wrapper object, or a bare list of Offers.
type OfferSet struct {
	// Aggregate is set when the source carried an AggregateOffer.
	Aggregate *AggregateOffer
	// Offers holds individual offers from any of the shapes.
	Offers []Offer
}

// AggregateOffer is the schema.org AggregateOffer shape.
type AggregateOffer struct {
	Type          string  `json:"@type"`
	LowPrice      *Float  `json:"lowPrice"`
	HighPrice     *Float  `json:"highPrice"`
	PriceCurrency string  `json:"priceCurrency"`
	OfferCount    Int     `json:"offerCount"`
	Offers        []Offer `json:"offers"`
}

// UnmarshalJSON classifies the offers member by shape.
func (os *OfferSet) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '[' {
		var offers []Offer
		if err := json.Unmarshal(trimmed, &offers); err != nil {
			return nil //nolint:nilerr
		}
		os.Offers = offers
		return nil
	}
	if trimmed[0] != '{' {
		return nil
	}

	var probe struct {
		Type      string  `json:"@type"`
		LowPrice  *Float  `json:"lowPrice"`
		HighPrice *Float  `json:"highPrice"`
		Offers    []Offer `json:"offers"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil //nolint:nilerr
	}

	if probe.Type == "AggregateOffer" || probe.LowPrice.Ptr() != nil || probe.HighPrice.Ptr() != nil {
		var agg AggregateOffer
		if err := json.Unmarshal(trimmed, &agg); err != nil {
			return nil //nolint:nilerr
		}
		os.Aggregate = &agg
		os.Offers = agg.Offers
		return nil
	}

	if probe.Offers != nil {
		// Offers wrapper object.
		os.Offers = probe.Offers
		return nil
	}

	var single Offer
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil //nolint:nilerr
	}
	os.Offers = []Offer{single}
	return nil
}

// Rating covers both the schema.org aggregateRating aliases and the
// snake_case form found in flattened exports.
type Rating struct {
	RatingValue   *Float `json:"ratingValue"`
	RatingCount   *Int   `json:"ratingCount"`
	AverageRating *Float `json:"average_rating"`
	Count         *Int   `json:"rating_count"`
}

// Average returns the rating value from whichever alias is present.
func (r *Rating) Average() *float64 {
	if r == nil {
		return nil
	}
	if v := r.RatingValue.Ptr(); v != nil {
		return v
	}
	return r.AverageRating.Ptr()
}

// Total returns the rating count from whichever alias is present.
func (r *Rating) Total() int {
	if r == nil {
		return 0
	}
	if r.RatingCount != nil && r.RatingCount.Valid {
		return r.RatingCount.V
	}
	if r.Count != nil && r.Count.Valid {
		return r.Count.V
	}
	return 0
}

// Review is the schema.org Review shape.
type Review struct {
	Author        Name    `json:"author"`
	DatePublished string  `json:"datePublished"`
	ReviewBody    string  `json:"reviewBody"`
	ReviewRating  *Rating `json:"reviewRating"`
}

// Category is a breadcrumb element with an optional url.
type Category struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// BreadcrumbList is the schema.org BreadcrumbList shape; some vendors ship
// the category path here instead of the categories member.
type BreadcrumbList struct {
	ItemListElement []struct {
		Position int `json:"position"`
		Item     struct {
			ID   string `json:"@id"`
			Name string `json:"name"`
		} `json:"item"`
	} `json:"itemListElement"`
}

// ColorInfo is the color attribute block of flattened exports.
type ColorInfo struct {
	ColorFamilies StringList `json:"color_families"`
	Colors        StringList `json:"colors"`
	SwatchURL     string     `json:"swatch_url"`
}

// Audience is the demographic block.
type Audience struct {
	Genders   StringList `json:"genders"`
	AgeGroups StringList `json:"age_groups"`
}

// PriceInfo is the flattened retail price block.
type PriceInfo struct {
	CurrencyCode  string `json:"currency_code"`
	Price         *Float `json:"price"`
	OriginalPrice *Float `json:"original_price"`
}

// Product is the raw record as shipped in catalog snapshot files. Every
// member is optional; aliases observed across vendors are all mapped.
type Product struct {
	ID             string `json:"id"`
	Type           string `json:"@type"`
	ProductGroupID string `json:"productGroupID"`
	Catalog        string `json:"catalog"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	URL            string `json:"url"`

	CurrentPrice  *Float              `json:"current_price"`
	OriginalPrice *Float              `json:"original_price"`
	PriceInfo     *PriceInfo          `json:"price_info"`
	Offers        *OfferSet           `json:"offers"`
	PriceSpec     *PriceSpecification `json:"priceSpecification"`

	Availability string `json:"availability"`

	Brand          Name           `json:"brand"`
	Categories     []Category     `json:"categories"`
	BreadcrumbList BreadcrumbList `json:"breadcrumbList"`

	Image  *Image  `json:"image"`
	Images []Image `json:"images"`

	AggregateRating *Rating  `json:"aggregateRating"`
	Rating          *Rating  `json:"rating"`
	Review          []Review `json:"review"`
	Reviews         []Review `json:"reviews"`

	Materials  StringList `json:"materials"`
	Patterns   StringList `json:"patterns"`
	Sizes      StringList `json:"sizes"`
	ColorInfo  *ColorInfo `json:"color_info"`
	Dimensions string     `json:"dimensions"`
	Fit        string     `json:"fit"`
	Audience   *Audience  `json:"audience"`

	// The upstream exporter misspells this member; both spellings appear
	// in the wild.
	AdditionalAttributes    map[string]Attribute `json:"additional_attributes"`
	AdditionalAttributesAlt map[string]Attribute `json:"addtional_attributes"`

	HasVariant []Product `json:"hasVariant"`
}

// Attributes merges the two additional-attribute spellings, preferring the
// correctly spelled member on key collision.
func (p *Product) Attributes() map[string]Attribute {
	if len(p.AdditionalAttributesAlt) == 0 {
		return p.AdditionalAttributes
	}
	merged := make(map[string]Attribute, len(p.AdditionalAttributes)+len(p.AdditionalAttributesAlt))
	for k, v := range p.AdditionalAttributesAlt {
		merged[k] = v
	}
	for k, v := range p.AdditionalAttributes {
		merged[k] = v
	}
	return merged
}

// AllReviews merges the review/reviews aliases in source order.
func (p *Product) AllReviews() []Review {
	if len(p.Reviews) == 0 {
		return p.Review
	}
	if len(p.Review) == 0 {
		return p.Reviews
	}
	out := make([]Review, 0, len(p.Review)+len(p.Reviews))
	out = append(out, p.Review...)
	out = append(out, p.Reviews...)
	return out
}

// AggRating returns whichever rating alias is present.
func (p *Product) AggRating() *Rating {
	if p.AggregateRating != nil {
		return p.AggregateRating
	}
	return p.Rating
}

// Decode parses one raw product record.
func Decode(data []byte) (*Product, error) {
	var p Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
