package usecase

import (
	"regexp"
	"strings"
)

// Compiled regex patterns for brand normalization
var (
	// Multiple spaces cleanup
	brandSpacePattern = regexp.MustCompile(`\s+`)

	// Punctuation left dangling at either end, e.g. "Lindt -" or ", Milka"
	brandEdgePunctuationPattern = regexp.MustCompile(`^[\s,\-;:.&]+|[\s,\-;:.&]+$`)
)

// brandNoiseWords are legal-form suffixes that split one brand into several keys
var brandNoiseWords = map[string]bool{
	"inc":     true,
	"inc.":    true,
	"ltd":     true,
	"ltd.":    true,
	"llc":     true,
	"gmbh":    true,
	"ag":      true,
	"sa":      true,
	"s.a.":    true,
	"s.a":     true,
	"spa":     true,
	"s.p.a.":  true,
	"co.":     true,
	"corp":    true,
	"corp.":   true,
	"company": true,
}

// BrandNormalizer derives the key under which brand occurrences are counted
type BrandNormalizer struct{}

// NewBrandNormalizer creates a new brand normalizer
func NewBrandNormalizer() *BrandNormalizer {
	return &BrandNormalizer{}
}

// Key returns the counting key for a brand field.
// The catalog stores a comma-separated brand list; the first entry is the brand owner.
// Returns "" when there is no usable brand.
func (n *BrandNormalizer) Key(brand string) string {
	if idx := strings.Index(brand, ","); idx >= 0 {
		brand = brand[:idx]
	}

	key := strings.ToLower(brand)
	key = brandSpacePattern.ReplaceAllString(key, " ")
	key = strings.TrimSpace(key)
	key = n.removeNoiseWords(key)
	key = brandEdgePunctuationPattern.ReplaceAllString(key, "")

	return key
}

// removeNoiseWords drops legal-form words, unless that would leave nothing
func (n *BrandNormalizer) removeNoiseWords(s string) string {
	words := strings.Fields(s)
	kept := make([]string, 0, len(words))

	for _, word := range words {
		if !brandNoiseWords[strings.Trim(word, ",;:")] {
			kept = append(kept, word)
		}
	}

	if len(kept) == 0 {
		return s
	}
	return strings.Join(kept, " ")
}
