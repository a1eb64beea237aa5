package normalize

import (
	"regexp"
	"strings"
)

var (
	nonSlugRuns = regexp.MustCompile(`[^a-z0-9-]+`)
	hyphenRuns  = regexp.MustCompile(`-{2,}`)
)

// Slugify lowers the parts, joins them with hyphens, replaces every run of
// characters outside [a-z0-9-] with a single hyphen, collapses repeated
// hyphens, and trims leading/trailing ones. The result matches
// ^[a-z0-9]+(-[a-z0-9]+)*$ or is empty.
func Slugify(parts ...string) string {
	joined := strings.ToLower(strings.Join(parts, "-"))
	s := nonSlugRuns.ReplaceAllString(joined, "-")
	s = hyphenRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// deriveSlug builds the listing identifier from company, title, and city.
// All three fields are required; a partial slug would be a misleading
// identifier, so anything missing yields the empty string.
func deriveSlug(company, title, city string) string {
	if company == "" || title == "" || city == "" {
		return ""
	}
	return Slugify(company, title, city)
}
