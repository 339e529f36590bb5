package normalize

import "github.com/shopsight/shopsight-server/internal/schema"

// ExtractPrice resolves the canonical price pair from the raw record
// using the ordered fallback chain:
//
//  1. top-level current_price/original_price (or the flattened price_info
//     block),
//  2. an AggregateOffer's lowPrice/highPrice,
//  3. a priceSpecification, flat or compound,
//  4. the first entry of the offers list.
//
// The first source that yields a current price wins. original is kept
// only when strictly greater than current; a missing price stays nil,
// never zero.
func ExtractPrice(raw *schema.Product) (current, original *float64, currency string) {
	if cur, orig, cc := topLevelPrice(raw); cur != nil {
		return cur, keepOriginal(cur, orig), cc
	}

	if raw.Offers != nil && raw.Offers.Aggregate != nil {
		agg := raw.Offers.Aggregate
		if low := agg.LowPrice.Ptr(); low != nil {
			return low, keepOriginal(low, agg.HighPrice.Ptr()), agg.PriceCurrency
		}
	}

	if raw.PriceSpec != nil {
		if cur, orig, cc := specPrice(raw.PriceSpec); cur != nil {
			return cur, keepOriginal(cur, orig), cc
		}
	}

	if raw.Offers != nil && len(raw.Offers.Offers) > 0 {
		offer := &raw.Offers.Offers[0]
		if offer.PriceSpecification != nil {
			if cur, orig, cc := specPrice(offer.PriceSpecification); cur != nil {
				if cc == "" {
					cc = offer.PriceCurrency
				}
				return cur, keepOriginal(cur, orig), cc
			}
		}
		if cur := offer.Price.Ptr(); cur != nil {
			return cur, nil, offer.PriceCurrency
		}
	}

	return nil, nil, ""
}

func topLevelPrice(raw *schema.Product) (current, original *float64, currency string) {
	if cur := raw.CurrentPrice.Ptr(); cur != nil {
		return cur, raw.OriginalPrice.Ptr(), ""
	}
	if raw.PriceInfo != nil {
		if cur := raw.PriceInfo.Price.Ptr(); cur != nil {
			return cur, raw.PriceInfo.OriginalPrice.Ptr(), raw.PriceInfo.CurrencyCode
		}
	}
	return nil, nil, ""
}

// specPrice resolves a price specification: a flat price, or a component
// list tagged by price type where the sale component becomes final and
// the regular component becomes original. A lone component of either
// type is treated as final.
func specPrice(spec *schema.PriceSpecification) (current, original *float64, currency string) {
	currency = spec.PriceCurrency

	if len(spec.PriceComponent) > 0 {
		var sale, regular *float64
		for i := range spec.PriceComponent {
			comp := &spec.PriceComponent[i]
			price := comp.Price.Ptr()
			if price == nil {
				continue
			}
			if comp.IsSale() {
				if sale == nil {
					sale = price
				}
			} else if regular == nil {
				regular = price
			}
			if currency == "" {
				currency = comp.PriceCurrency
			}
		}
		switch {
		case sale != nil:
			return sale, regular, currency
		case regular != nil:
			return regular, nil, currency
		}
	}

	if cur := spec.Price.Ptr(); cur != nil {
		return cur, spec.OriginalPrice.Ptr(), currency
	}
	return nil, nil, ""
}

// keepOriginal returns original only when strictly above current.
func keepOriginal(current, original *float64) *float64 {
	if current == nil || original == nil || *original <= *current {
		return nil
	}
	return original
}
