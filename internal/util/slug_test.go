package util

import "testing"

func TestNormalizeCatalogSlug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		// Basic normalization
		{"lowercase", "LOFT", "loft"},
		{"spaces to dashes", "ann taylor", "ann-taylor"},
		{"underscores to dashes", "ann_taylor", "ann-taylor"},
		{"already normalized", "ann-taylor", "ann-taylor"},

		// Whitespace handling
		{"trim whitespace", "  loft  ", "loft"},
		{"multiple spaces", "ann   taylor", "ann-taylor"},
		{"tabs and spaces", "ann\t taylor", "ann-taylor"},

		// Special characters
		{"punctuation removal", "j.crew", "jcrew"},
		{"slash to dash", "outlet/clearance", "outlet-clearance"},
		{"apostrophe removal", "levi's", "levis"},

		// Dash handling
		{"multiple dashes", "ann--taylor", "ann-taylor"},
		{"leading dashes", "--loft", "loft"},
		{"trailing dashes", "loft--", "loft"},

		// Edge cases
		{"empty string", "", ""},
		{"only spaces", "   ", ""},
		{"only special chars", "!@#$%", ""},
		{"numbers allowed", "forever21", "forever21"},
		{"mixed case with numbers", "Forever 21 Plus", "forever-21-plus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeCatalogSlug(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeCatalogSlug(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
