package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsight/shopsight-server/internal/domain"
	"github.com/shopsight/shopsight-server/internal/schema"
)

func decode(t *testing.T, raw string) *schema.Product {
	t.Helper()
	p, err := schema.Decode([]byte(raw))
	require.NoError(t, err)
	return p
}

func TestMapAvailability(t *testing.T) {
	tests := []struct {
		input string
		want  domain.Availability
	}{
		{"https://schema.org/InStock", domain.AvailabilityInStock},
		{"http://schema.org/OutOfStock", domain.AvailabilityOutOfStock},
		{"INSTOCK", domain.AvailabilityInStock},
		{"instock", domain.AvailabilityInStock},
		{"IN_STOCK", domain.AvailabilityInStock},
		{"OUT_OF_STOCK", domain.AvailabilityOutOfStock},
		{"PreOrder", domain.AvailabilityPreorder},
		{"preorder", domain.AvailabilityPreorder},
		{"BackOrder", domain.AvailabilityBackorder},
		{"https://schema.org/BackOrder", domain.AvailabilityBackorder},
		{"sold out everywhere", domain.AvailabilityUnknown},
		{"", domain.AvailabilityUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, MapAvailability(tt.input))
		})
	}
}

func TestExtractPrice_TopLevel(t *testing.T) {
	raw := decode(t, `{"id": "1", "current_price": 80, "original_price": 100}`)
	cur, orig, _ := ExtractPrice(raw)
	require.NotNil(t, cur)
	require.NotNil(t, orig)
	assert.Equal(t, 80.0, *cur)
	assert.Equal(t, 100.0, *orig)
}

func TestExtractPrice_OriginalMustExceedCurrent(t *testing.T) {
	raw := decode(t, `{"id": "1", "current_price": 100, "original_price": 100}`)
	cur, orig, _ := ExtractPrice(raw)
	require.NotNil(t, cur)
	assert.Nil(t, orig, "original price equal to current must be dropped")
}

func TestExtractPrice_AggregateOffer(t *testing.T) {
	raw := decode(t, `{"id": "1", "offers": {"@type": "AggregateOffer", "lowPrice": 39.99, "highPrice": 59.99, "priceCurrency": "USD"}}`)
	cur, orig, currency := ExtractPrice(raw)
	require.NotNil(t, cur)
	assert.Equal(t, 39.99, *cur)
	require.NotNil(t, orig)
	assert.Equal(t, 59.99, *orig)
	assert.Equal(t, "USD", currency)
}

func TestExtractPrice_CompoundSpecification(t *testing.T) {
	raw := decode(t, `{"id": "1", "priceSpecification": {"priceComponent": [
		{"price": 120, "priceType": "https://schema.org/ListPrice", "priceCurrency": "USD"},
		{"price": 90, "priceType": "https://schema.org/SalePrice"}
	]}}`)
	cur, orig, currency := ExtractPrice(raw)
	require.NotNil(t, cur)
	assert.Equal(t, 90.0, *cur, "sale component becomes final price")
	require.NotNil(t, orig)
	assert.Equal(t, 120.0, *orig, "regular component becomes original price")
	assert.Equal(t, "USD", currency)
}

func TestExtractPrice_SingleComponentIsFinal(t *testing.T) {
	raw := decode(t, `{"id": "1", "priceSpecification": {"priceComponent": [
		{"price": 45, "priceType": "https://schema.org/ListPrice"}
	]}}`)
	cur, orig, _ := ExtractPrice(raw)
	require.NotNil(t, cur)
	assert.Equal(t, 45.0, *cur)
	assert.Nil(t, orig)
}

func TestExtractPrice_OffersListFallback(t *testing.T) {
	raw := decode(t, `{"id": "1", "offers": {"offers": [
		{"price": 25, "priceCurrency": "EUR"},
		{"price": 99}
	]}}`)
	cur, _, currency := ExtractPrice(raw)
	require.NotNil(t, cur)
	assert.Equal(t, 25.0, *cur, "first offer entry wins")
	assert.Equal(t, "EUR", currency)
}

func TestExtractPrice_OfferSpecificationBeatsOfferPrice(t *testing.T) {
	raw := decode(t, `{"id": "1", "offers": {"offers": [
		{"price": 100, "priceSpecification": {"priceComponent": [
			{"price": 100, "priceType": "RegularPrice"},
			{"price": 70, "priceType": "SalePrice"}
		]}}
	]}}`)
	cur, orig, _ := ExtractPrice(raw)
	require.NotNil(t, cur)
	assert.Equal(t, 70.0, *cur)
	require.NotNil(t, orig)
	assert.Equal(t, 100.0, *orig)
}

func TestExtractPrice_NothingYieldsNil(t *testing.T) {
	raw := decode(t, `{"id": "1", "name": "No price"}`)
	cur, orig, _ := ExtractPrice(raw)
	assert.Nil(t, cur, "price must never be fabricated")
	assert.Nil(t, orig)
}

func TestNormalize_UnusableRecord(t *testing.T) {
	raw := decode(t, `{"description": "nothing to identify this"}`)
	_, err := Normalize(raw)
	assert.ErrorIs(t, err, ErrUnusableRecord)
}

func TestNormalize_FallbackID(t *testing.T) {
	raw := decode(t, `{"name": "Wool Sweater", "url": "https://shop.example.com/p/1"}`)
	p, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.FallbackID("Wool Sweater", "https://shop.example.com/p/1"), p.ID)

	// productGroupID outranks the composite fallback.
	raw = decode(t, `{"productGroupID": "grp-9", "name": "Wool Sweater"}`)
	p, err = Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "grp-9", p.ID)
}

func TestNormalize_NoPlaceholders(t *testing.T) {
	raw := decode(t, `{"id": "1"}`)
	p, err := Normalize(raw)
	require.NoError(t, err)

	assert.Empty(t, p.Name, "stored record must not carry display fallbacks")
	assert.Nil(t, p.CurrentPrice)
	assert.Equal(t, domain.AvailabilityUnknown, p.Availability)
}

func TestNormalize_ImageDedupe(t *testing.T) {
	raw := decode(t, `{
		"id": "1",
		"image": "https://img.example.com/a.jpg",
		"images": ["https://img.example.com/b.jpg", "https://img.example.com/a.jpg"],
		"hasVariant": [{"id": "1-s", "image": "https://img.example.com/c.jpg"}]
	}`)
	p, err := Normalize(raw)
	require.NoError(t, err)

	urls := make([]string, len(p.Images))
	for i, img := range p.Images {
		urls[i] = img.URL
	}
	assert.Equal(t, []string{
		"https://img.example.com/a.jpg",
		"https://img.example.com/b.jpg",
		"https://img.example.com/c.jpg",
	}, urls, "primary first, deduplicated, first-seen order")
}

func TestGroupVariants_SharedImage(t *testing.T) {
	// Three variants share one image and differ only in size.
	raw := decode(t, `{
		"id": "1",
		"hasVariant": [
			{"id": "1-s", "image": "https://img.example.com/x.jpg", "sizes": ["S"], "availability": "InStock"},
			{"id": "1-m", "image": "https://img.example.com/x.jpg", "sizes": ["M"], "availability": "OutOfStock"},
			{"id": "1-l", "image": "https://img.example.com/x.jpg", "sizes": ["L"], "availability": "InStock"}
		]
	}`)
	p, err := Normalize(raw)
	require.NoError(t, err)

	require.Len(t, p.GroupedVariants, 1)
	g := p.GroupedVariants[0]
	assert.Equal(t, "https://img.example.com/x.jpg", g.ImageURL)
	assert.Equal(t, []string{"L", "S"}, g.InStockSizes)
	assert.Equal(t, []string{"M"}, g.OutOfStockSizes)
}

func TestGroupVariants_DistinctImages(t *testing.T) {
	variants := []domain.Variant{
		{Image: &domain.Image{URL: "u1"}, Colors: []string{"Red"}, Availability: domain.AvailabilityInStock},
		{Image: &domain.Image{URL: "u2"}, Colors: []string{"Blue"}, Availability: domain.AvailabilityOutOfStock},
		{Image: &domain.Image{URL: "u1"}, Colors: []string{"Crimson"}, Availability: domain.AvailabilityInStock},
	}

	groups := GroupVariants(variants)
	require.Len(t, groups, 2)
	assert.Equal(t, "u1", groups[0].ImageURL, "first-seen image order")
	assert.Equal(t, []string{"Crimson", "Red"}, groups[0].InStockColors)
	assert.Equal(t, "u2", groups[1].ImageURL)
	assert.Equal(t, []string{"Blue"}, groups[1].OutOfStockColors)
}

func TestFormatAttributeLabel(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"style_grp_001", "Style"},
		{"heel_height_grp_012", "Heel Height"},
		{"vendor", "Vendor"},
		{"lengths_cm", "Lengths Cm"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAttributeLabel(tt.key))
		})
	}
}

func TestNormalize_Attributes(t *testing.T) {
	raw := decode(t, `{"id": "1", "addtional_attributes": {
		"style_grp_001": {"text": ["Classic", "Modern"]},
		"lengths_cm": {"numbers": [2.3, 15.4]},
		"empty_one": {}
	}}`)
	p, err := Normalize(raw)
	require.NoError(t, err)

	require.Len(t, p.AdditionalAttributes, 2)
	assert.Equal(t, []string{"Classic", "Modern"}, []string(p.AdditionalAttributes["Style"].Text))
	assert.Equal(t, []float64{2.3, 15.4}, p.AdditionalAttributes["Lengths Cm"].Numbers)
}

func TestNormalize_RatingAndReviews(t *testing.T) {
	raw := decode(t, `{
		"id": "1",
		"aggregateRating": {"ratingValue": "4.6", "ratingCount": 31},
		"reviews": [{"author": {"name": "Sam"}, "datePublished": "2024-11-02", "reviewBody": " Great. ", "reviewRating": {"ratingValue": 5}}]
	}`)
	p, err := Normalize(raw)
	require.NoError(t, err)

	require.NotNil(t, p.Rating)
	assert.Equal(t, 4.6, p.Rating.Average)
	assert.Equal(t, 31, p.Rating.Count)
	require.Len(t, p.Reviews, 1)
	assert.Equal(t, "Sam", p.Reviews[0].Author)
	assert.Equal(t, "Great.", p.Reviews[0].Body)
	assert.Equal(t, 5.0, p.Reviews[0].Rating)
}

func TestNormalize_BreadcrumbCategories(t *testing.T) {
	raw := decode(t, `{"id": "1", "breadcrumbList": {"itemListElement": [
		{"position": 1, "item": {"@id": "https://shop.example.com/women", "name": "Women"}},
		{"position": 2, "item": {"@id": "https://shop.example.com/women/tops", "name": "Tops"}}
	]}}`)
	p, err := Normalize(raw)
	require.NoError(t, err)

	require.Len(t, p.Categories, 2)
	assert.Equal(t, "Women", p.Categories[0].Name)
	assert.Equal(t, "https://shop.example.com/women/tops", p.Categories[1].URL)
}
