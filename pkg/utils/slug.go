package utils

import (
	"regexp"
	"strings"
)

var (
	slugSeparatorRe = regexp.MustCompile(`[\s_/]+`)
	slugInvalidRe   = regexp.MustCompile(`[^a-z0-9-]`)
	slugDashRunRe   = regexp.MustCompile(`-+`)
)

// Slugify converts free text to a stable kebab-case slug. The same input
// always produces the same output; slugs carry hotel identity across runs.
//
//	"Fairmont Banff Springs" → "fairmont-banff-springs"
//	"Lech am Arlberg"        → "lech-am-arlberg"
func Slugify(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = slugSeparatorRe.ReplaceAllString(s, "-")
	s = slugInvalidRe.ReplaceAllString(s, "")
	s = slugDashRunRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// HotelID derives the dataset-unique id for a hotel from its
// (country, town, name) triple.
func HotelID(country, town, name string) string {
	return Slugify(country) + "-" + Slugify(town) + "-" + Slugify(name)
}
