package analytics

import (
	"database/sql"
	"fmt"
	"math"
	"sort"

	"encoding/json/v2"

	"github.com/shopsight/shopsight-server/internal/domain"
	apperrors "github.com/shopsight/shopsight-server/internal/errors"
	"github.com/shopsight/shopsight-server/internal/store"
)

// VariantBucket is one row of the variant-count distribution.
type VariantBucket struct {
	VariantCount int      `json:"variant_count"`
	Products     int      `json:"products"`
	AvgPrice     *float64 `json:"avg_price"`
}

// DiscountBucket groups discounted products by discount depth.
type DiscountBucket struct {
	Range     string   `json:"range"`
	Products  int      `json:"products"`
	AvgRating *float64 `json:"avg_rating"`
}

// RatingStats summarizes ratings and their relationship to price.
type RatingStats struct {
	RatedProducts    int      `json:"rated_products"`
	AvgRating        float64  `json:"avg_rating"`
	MinRating        float64  `json:"min_rating"`
	MaxRating        float64  `json:"max_rating"`
	PriceCorrelation *float64 `json:"price_rating_correlation"`
}

// MaterialStats is one material's popularity row.
type MaterialStats struct {
	Material  string   `json:"material"`
	Products  int      `json:"products"`
	AvgPrice  *float64 `json:"avg_price"`
	TopBrands []string `json:"top_brands"`
}

// BrandStats is one brand leaderboard row.
type BrandStats struct {
	Brand     string   `json:"brand"`
	Products  int      `json:"products"`
	MinPrice  *float64 `json:"min_price"`
	AvgPrice  *float64 `json:"avg_price"`
	MaxPrice  *float64 `json:"max_price"`
	AvgRating *float64 `json:"avg_rating"`
}

// AudienceCell is one gender and age group combination.
type AudienceCell struct {
	Gender   string `json:"gender"`
	AgeGroup string `json:"age_group"`
	Products int    `json:"products"`
}

// AttributeStats covers one additional_attributes key.
type AttributeStats struct {
	Name            string   `json:"name"`
	Occurrences     int      `json:"occurrences"`
	DistinctValues  int      `json:"distinct_values"`
	CoveragePercent float64  `json:"coverage_percent"`
	SampleValues    []string `json:"sample_values"`
}

// Advanced is the advanced analytics report.
type Advanced struct {
	TotalProducts       int              `json:"total_products"`
	VariantDistribution []VariantBucket  `json:"variant_distribution"`
	DiscountBuckets     []DiscountBucket `json:"discount_buckets"`
	Ratings             RatingStats      `json:"ratings"`
	Materials           []MaterialStats  `json:"materials"`
	Brands              []BrandStats     `json:"brands"`
	Audience            []AudienceCell   `json:"audience"`
	Attributes          []AttributeStats `json:"attributes"`
}

const (
	topMaterials         = 20
	topBrands            = 20
	topBrandsPerMaterial = 3
	attributeSamples     = 5
)

// ComputeAdvanced runs the aggregation queries against a catalog. The
// backend must expose SQL aggregation; others get BACKEND_UNSUPPORTED.
func ComputeAdvanced(cat store.Catalog) (*Advanced, error) {
	q, ok := cat.(store.AggregateQuerier)
	if !ok {
		return nil, apperrors.BackendUnsupported("advanced analytics require an aggregating backend")
	}
	db := q.Querier()

	report := &Advanced{}

	if err := db.QueryRow("SELECT COUNT(*) FROM products").Scan(&report.TotalProducts); err != nil {
		return nil, fmt.Errorf("counting products: %w", err)
	}

	var err error
	if report.VariantDistribution, err = variantDistribution(db); err != nil {
		return nil, err
	}
	if report.DiscountBuckets, report.Ratings, err = priceAndRatings(db); err != nil {
		return nil, err
	}
	if report.Materials, err = materialPopularity(db); err != nil {
		return nil, err
	}
	if report.Brands, err = brandLeaderboard(db); err != nil {
		return nil, err
	}
	if report.Audience, err = audienceBreakdown(db); err != nil {
		return nil, err
	}
	if report.Attributes, err = attributeCoverage(db, report.TotalProducts); err != nil {
		return nil, err
	}
	return report, nil
}

func variantDistribution(db *sql.DB) ([]VariantBucket, error) {
	rows, err := db.Query(`
		SELECT COALESCE(json_array_length(extracted_product, '$.variants'), 0) AS variant_count,
		       COUNT(*) AS products,
		       AVG(json_extract(extracted_product, '$.current_price')) AS avg_price
		FROM products
		GROUP BY variant_count
		ORDER BY variant_count`)
	if err != nil {
		return nil, fmt.Errorf("variant distribution: %w", err)
	}
	defer rows.Close()

	var out []VariantBucket
	for rows.Next() {
		var b VariantBucket
		var avg sql.NullFloat64
		if err := rows.Scan(&b.VariantCount, &b.Products, &avg); err != nil {
			return nil, fmt.Errorf("scanning variant bucket: %w", err)
		}
		b.AvgPrice = nullableRound2(avg)
		out = append(out, b)
	}
	return out, rows.Err()
}

// discountRanges are the bucket edges in percent off original price.
var discountRanges = []struct {
	label string
	low   float64
	high  float64
}{
	{"1-24%", 1, 25},
	{"25-49%", 25, 50},
	{"50-74%", 50, 75},
	{"75%+", 75, 101},
}

// priceAndRatings reads every (price, original price, rating) triple
// once and derives both the discount buckets and the rating stats,
// including the price-rating correlation.
func priceAndRatings(db *sql.DB) ([]DiscountBucket, RatingStats, error) {
	rows, err := db.Query(`
		SELECT json_extract(extracted_product, '$.current_price'),
		       json_extract(extracted_product, '$.original_price'),
		       json_extract(extracted_product, '$.rating.average')
		FROM products`)
	if err != nil {
		return nil, RatingStats{}, fmt.Errorf("price and rating rows: %w", err)
	}
	defer rows.Close()

	type bucketAcc struct {
		products  int
		ratingSum float64
		rated     int
	}
	buckets := make([]bucketAcc, len(discountRanges))

	stats := RatingStats{MinRating: math.Inf(1), MaxRating: math.Inf(-1)}
	var ratingSum float64
	var prices, ratings []float64

	for rows.Next() {
		var cur, orig, rating sql.NullFloat64
		if err := rows.Scan(&cur, &orig, &rating); err != nil {
			return nil, RatingStats{}, fmt.Errorf("scanning price row: %w", err)
		}

		if rating.Valid {
			stats.RatedProducts++
			ratingSum += rating.Float64
			stats.MinRating = math.Min(stats.MinRating, rating.Float64)
			stats.MaxRating = math.Max(stats.MaxRating, rating.Float64)
			if cur.Valid {
				prices = append(prices, cur.Float64)
				ratings = append(ratings, rating.Float64)
			}
		}

		if !cur.Valid || !orig.Valid || orig.Float64 <= cur.Float64 || orig.Float64 == 0 {
			continue
		}
		pct := (orig.Float64 - cur.Float64) / orig.Float64 * 100
		for i, r := range discountRanges {
			if pct >= r.low && pct < r.high {
				buckets[i].products++
				if rating.Valid {
					buckets[i].ratingSum += rating.Float64
					buckets[i].rated++
				}
				break
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, RatingStats{}, err
	}

	out := make([]DiscountBucket, 0, len(discountRanges))
	for i, r := range discountRanges {
		b := DiscountBucket{Range: r.label, Products: buckets[i].products}
		if buckets[i].rated > 0 {
			avg := round2(buckets[i].ratingSum / float64(buckets[i].rated))
			b.AvgRating = &avg
		}
		out = append(out, b)
	}

	if stats.RatedProducts > 0 {
		stats.AvgRating = round2(ratingSum / float64(stats.RatedProducts))
	} else {
		stats.MinRating, stats.MaxRating = 0, 0
	}
	if corr, ok := correlation(prices, ratings); ok {
		c := round2(corr)
		stats.PriceCorrelation = &c
	}
	return out, stats, nil
}

// correlation computes the Pearson coefficient; it needs at least two
// pairs and nonzero variance on both sides.
func correlation(xs, ys []float64) (float64, bool) {
	n := float64(len(xs))
	if len(xs) < 2 {
		return 0, false
	}
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varX*varY), true
}

func materialPopularity(db *sql.DB) ([]MaterialStats, error) {
	rows, err := db.Query(`
		SELECT je.value AS material,
		       COUNT(*) AS products,
		       AVG(json_extract(p.extracted_product, '$.current_price')) AS avg_price
		FROM products p, json_each(p.extracted_product, '$.materials') je
		GROUP BY material
		ORDER BY products DESC, material
		LIMIT ?`, topMaterials)
	if err != nil {
		return nil, fmt.Errorf("material popularity: %w", err)
	}
	defer rows.Close()

	var out []MaterialStats
	index := make(map[string]int)
	for rows.Next() {
		var m MaterialStats
		var avg sql.NullFloat64
		if err := rows.Scan(&m.Material, &m.Products, &avg); err != nil {
			return nil, fmt.Errorf("scanning material: %w", err)
		}
		m.AvgPrice = nullableRound2(avg)
		index[m.Material] = len(out)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}

	brandRows, err := db.Query(`
		SELECT je.value AS material,
		       json_extract(p.extracted_product, '$.brand') AS brand,
		       COUNT(*) AS products
		FROM products p, json_each(p.extracted_product, '$.materials') je
		WHERE json_extract(p.extracted_product, '$.brand') IS NOT NULL
		GROUP BY material, brand
		ORDER BY material, products DESC, brand`)
	if err != nil {
		return nil, fmt.Errorf("material brands: %w", err)
	}
	defer brandRows.Close()

	for brandRows.Next() {
		var material, brand string
		var n int
		if err := brandRows.Scan(&material, &brand, &n); err != nil {
			return nil, fmt.Errorf("scanning material brand: %w", err)
		}
		if i, ok := index[material]; ok && len(out[i].TopBrands) < topBrandsPerMaterial {
			out[i].TopBrands = append(out[i].TopBrands, brand)
		}
	}
	return out, brandRows.Err()
}

func brandLeaderboard(db *sql.DB) ([]BrandStats, error) {
	rows, err := db.Query(`
		SELECT json_extract(extracted_product, '$.brand') AS brand,
		       COUNT(*) AS products,
		       MIN(json_extract(extracted_product, '$.current_price')),
		       AVG(json_extract(extracted_product, '$.current_price')),
		       MAX(json_extract(extracted_product, '$.current_price')),
		       AVG(json_extract(extracted_product, '$.rating.average'))
		FROM products
		WHERE json_extract(extracted_product, '$.brand') IS NOT NULL
		GROUP BY brand
		ORDER BY products DESC, brand
		LIMIT ?`, topBrands)
	if err != nil {
		return nil, fmt.Errorf("brand leaderboard: %w", err)
	}
	defer rows.Close()

	var out []BrandStats
	for rows.Next() {
		var b BrandStats
		var minP, avgP, maxP, avgR sql.NullFloat64
		if err := rows.Scan(&b.Brand, &b.Products, &minP, &avgP, &maxP, &avgR); err != nil {
			return nil, fmt.Errorf("scanning brand: %w", err)
		}
		b.MinPrice = nullableRound2(minP)
		b.AvgPrice = nullableRound2(avgP)
		b.MaxPrice = nullableRound2(maxP)
		b.AvgRating = nullableRound2(avgR)
		out = append(out, b)
	}
	return out, rows.Err()
}

func audienceBreakdown(db *sql.DB) ([]AudienceCell, error) {
	rows, err := db.Query(`
		SELECT g.value AS gender, a.value AS age_group, COUNT(*) AS products
		FROM products p,
		     json_each(p.extracted_product, '$.audience.genders') g,
		     json_each(p.extracted_product, '$.audience.age_groups') a
		GROUP BY gender, age_group
		ORDER BY products DESC, gender, age_group`)
	if err != nil {
		return nil, fmt.Errorf("audience breakdown: %w", err)
	}
	defer rows.Close()

	var out []AudienceCell
	for rows.Next() {
		var c AudienceCell
		if err := rows.Scan(&c.Gender, &c.AgeGroup, &c.Products); err != nil {
			return nil, fmt.Errorf("scanning audience cell: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func attributeCoverage(db *sql.DB, total int) ([]AttributeStats, error) {
	rows, err := db.Query(`
		SELECT je.key, je.value
		FROM products p, json_each(p.extracted_product, '$.additional_attributes') je`)
	if err != nil {
		return nil, fmt.Errorf("attribute coverage: %w", err)
	}
	defer rows.Close()

	type attrAcc struct {
		occurrences int
		distinct    map[string]struct{}
		samples     []string
	}
	acc := make(map[string]*attrAcc)

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning attribute: %w", err)
		}

		a := acc[key]
		if a == nil {
			a = &attrAcc{distinct: make(map[string]struct{})}
			acc[key] = a
		}
		a.occurrences++

		var av domain.AttributeValue
		if err := json.Unmarshal([]byte(value), &av); err != nil {
			continue
		}
		for _, v := range attributeStrings(av) {
			if _, seen := a.distinct[v]; !seen {
				a.distinct[v] = struct{}{}
				if len(a.samples) < attributeSamples {
					a.samples = append(a.samples, v)
				}
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]AttributeStats, 0, len(acc))
	for name, a := range acc {
		stats := AttributeStats{
			Name:           name,
			Occurrences:    a.occurrences,
			DistinctValues: len(a.distinct),
			SampleValues:   a.samples,
		}
		if total > 0 {
			stats.CoveragePercent = round1(float64(a.occurrences) / float64(total) * 100)
		}
		out = append(out, stats)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Occurrences != out[j].Occurrences {
			return out[i].Occurrences > out[j].Occurrences
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func attributeStrings(av domain.AttributeValue) []string {
	if len(av.Text) > 0 {
		return av.Text
	}
	out := make([]string, 0, len(av.Numbers))
	for _, n := range av.Numbers {
		out = append(out, fmt.Sprintf("%g", n))
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func nullableRound2(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	r := round2(v.Float64)
	return &r
}
