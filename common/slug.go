package common

import (
	"errors"
	"regexp"
	"strings"
)

// MaxSlugLen keeps room ids short enough for URLs and redis stream keys.
const MaxSlugLen = 48

var (
	ErrEmptySlug = errors.New("slug cannot be empty")
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
)

func Slugify(input, fallback string) (string, error) {
	slug := slugify(input)
	if slug == "" {
		slug = slugify(fallback)
	}
	if slug == "" {
		return "", ErrEmptySlug
	}
	return slug, nil
}

// SlugWithSuffix appends suffix to slug, shortening slug so the result still
// fits in MaxSlugLen.
func SlugWithSuffix(slug, suffix string) string {
	suffix = slugify(suffix)
	if suffix == "" {
		return slug
	}
	keep := MaxSlugLen - len(suffix) - 1
	if keep < 1 {
		return suffix
	}
	if len(slug) > keep {
		slug = strings.TrimRight(slug[:keep], "-")
	}
	return slug + "-" + suffix
}

func slugify(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	slug := strings.Trim(nonSlugChars.ReplaceAllString(lower, "-"), "-")
	if len(slug) > MaxSlugLen {
		slug = strings.TrimRight(slug[:MaxSlugLen], "-")
	}
	return slug
}
