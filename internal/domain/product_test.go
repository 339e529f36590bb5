package domain

import "testing"

func fptr(v float64) *float64 { return &v }

func TestPrimaryImage(t *testing.T) {
	p := &Product{}
	if p.PrimaryImage() != nil {
		t.Error("expected nil primary image for product without images")
	}

	p.Images = []Image{{URL: "https://example.com/a.jpg"}, {URL: "https://example.com/b.jpg"}}
	img := p.PrimaryImage()
	if img == nil || img.URL != "https://example.com/a.jpg" {
		t.Errorf("expected first image as primary, got %+v", img)
	}
}

func TestHasDiscount(t *testing.T) {
	tests := []struct {
		name     string
		current  *float64
		original *float64
		want     bool
	}{
		{"no prices", nil, nil, false},
		{"current only", fptr(10), nil, false},
		{"original above current", fptr(10), fptr(20), true},
		{"original equals current", fptr(10), fptr(10), false},
		{"original below current", fptr(20), fptr(10), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Product{CurrentPrice: tt.current, OriginalPrice: tt.original}
			if got := p.HasDiscount(); got != tt.want {
				t.Errorf("HasDiscount() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiscountPercent(t *testing.T) {
	p := &Product{CurrentPrice: fptr(75), OriginalPrice: fptr(100)}
	if got := p.DiscountPercent(); got != 25 {
		t.Errorf("DiscountPercent() = %v, want 25", got)
	}

	p = &Product{CurrentPrice: fptr(100)}
	if got := p.DiscountPercent(); got != 0 {
		t.Errorf("DiscountPercent() = %v, want 0 without original price", got)
	}
}

func TestFallbackID(t *testing.T) {
	a := FallbackID("Wool Sweater", "https://shop.example.com/p/1")
	b := FallbackID("Wool Sweater", "https://shop.example.com/p/1")
	if a != b {
		t.Errorf("FallbackID not stable: %q vs %q", a, b)
	}

	c := FallbackID("Wool Sweater", "https://shop.example.com/p/2")
	if a == c {
		t.Error("FallbackID collision for different URLs")
	}

	if a == "" || a[:2] != "p-" {
		t.Errorf("unexpected id format: %q", a)
	}
}
