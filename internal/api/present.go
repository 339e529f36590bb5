package api

import (
	"fmt"

	"github.com/shopsight/shopsight-server/internal/domain"
)

// Display fallbacks for the detail view. Stored data never carries
// placeholder strings; these exist only at presentation time.
const (
	fallbackName  = "Unknown Product"
	fallbackPrice = "Price unavailable"
)

// ProductView is the detail-view shape of a product: the canonical
// record plus presentation fields with display fallbacks applied.
type ProductView struct {
	domain.Product
	DisplayName  string `json:"display_name"`
	PriceDisplay string `json:"price_display"`
}

func presentProduct(p *domain.Product) *ProductView {
	return &ProductView{
		Product:      *p,
		DisplayName:  displayName(p),
		PriceDisplay: displayPrice(p),
	}
}

func displayName(p *domain.Product) string {
	if p.Name == "" {
		return fallbackName
	}
	return p.Name
}

func displayPrice(p *domain.Product) string {
	if p.CurrentPrice == nil {
		return fallbackPrice
	}
	currency := p.Currency
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%.2f %s", *p.CurrentPrice, currency)
}
