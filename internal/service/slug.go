package service

import (
	"regexp"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// slugAlphabet is nanoid's URL-safe alphabet with the upper case removed.
	slugAlphabet      = "0123456789abcdefghijklmnopqrstuvwxyz_-"
	defaultSlugLength = 6
	minCustomSlugLen  = 3
	maxCustomSlugLen  = 32
)

var customSlugPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Slugs that would shadow routes served next to the redirect handler.
var reservedSlugs = map[string]struct{}{
	"api":     {},
	"docs":    {},
	"health":  {},
	"metrics": {},
}

// SlugGenerator produces random candidate slugs.
type SlugGenerator func() (string, error)

// NewSlugGenerator returns a generator of lowercase URL-safe slugs of the given length.
func NewSlugGenerator(length int) SlugGenerator {
	if length <= 0 {
		length = defaultSlugLength
	}
	return func() (string, error) {
		return gonanoid.Generate(slugAlphabet, length)
	}
}

// NormalizeSlug trims and lowercases a slug. Slugs are case-insensitive.
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

func isReserved(slug string) bool {
	_, ok := reservedSlugs[slug]
	return ok
}

// validateCustomSlug checks an already normalized slug.
func validateCustomSlug(slug string) error {
	if len(slug) < minCustomSlugLen || len(slug) > maxCustomSlugLen {
		return newError(KindValidation, "custom slug must be 3-32 characters")
	}
	if !customSlugPattern.MatchString(slug) {
		return newError(KindValidation, "custom slug may contain only letters, digits, '-' and '_'")
	}
	if isReserved(slug) {
		return newError(KindValidation, "custom slug is reserved")
	}
	return nil
}
