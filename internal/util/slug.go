// Package util provides common utility functions.
package util

import (
	"regexp"
	"strings"
)

var (
	// Matches spaces, underscores, and slashes (for replacement with dashes).
	wordSeparatorRe = regexp.MustCompile(`[\s_/]+`)
	// Matches non-alphanumeric characters (except dashes).
	nonAlphanumericRe = regexp.MustCompile(`[^a-z0-9-]`)
	// Matches multiple consecutive dashes.
	multipleDashRe = regexp.MustCompile(`-+`)
)

// NormalizeCatalogSlug converts input to a canonical catalog slug.
// Remote prefixes, store directory names, and URL path parameters all
// reduce to the same identity through this function.
//
// Normalization rules:
//  1. Trim whitespace and lowercase
//  2. Replace spaces, underscores, and slashes with dashes
//  3. Remove non-alphanumeric characters (except dashes)
//  4. Collapse multiple dashes
//  5. Trim leading/trailing dashes
//
// Examples:
//
//	"Ann Taylor"  → "ann-taylor"
//	"ann_taylor"  → "ann-taylor"
//	"ANN-TAYLOR"  → "ann-taylor"
//	"  loft  "    → "loft"
func NormalizeCatalogSlug(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = wordSeparatorRe.ReplaceAllString(s, "-")
	s = nonAlphanumericRe.ReplaceAllString(s, "")
	s = multipleDashRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
