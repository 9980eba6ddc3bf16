// Package profile resolves source definitions against their inherited common
// profiles into fully populated, immutable SourceProfiles.
package profile

import (
	"maps"
	"regexp"
	"slices"
)

// Discovery modes for listing pages.
const (
	DiscoveryHTML = "html"
	DiscoveryFeed = "feed"
)

// DefaultMaxArticles caps a source when neither the source, its profile nor
// the settings name a limit.
const DefaultMaxArticles = 100

// DefaultUserAgent is sent when a profile configures no headers at all.
const DefaultUserAgent = "Mozilla/5.0"

// SourceProfile defines how to discover and extract articles for one source.
// Selector fields are fallback chains: ordered, independent CSS selectors.
type SourceProfile struct {
	Name             string
	BaseURL          string
	ArticleSelectors []string
	TitleSelectors   []string
	AuthorSelectors  []string
	ContentSelectors []string
	DateSelectors    []string // empty means date heuristics only
	DateFormats      []string
	Headers          map[string]string
	MaxArticles      int
	URLPattern       *regexp.Regexp   // links must match when set
	ExcludePatterns  []*regexp.Regexp // links matching any are dropped
	Discovery        string
}

// Clone returns a deep copy, so a cached profile cannot be changed through a
// returned value.
func (p SourceProfile) Clone() SourceProfile {
	p.ArticleSelectors = slices.Clone(p.ArticleSelectors)
	p.TitleSelectors = slices.Clone(p.TitleSelectors)
	p.AuthorSelectors = slices.Clone(p.AuthorSelectors)
	p.ContentSelectors = slices.Clone(p.ContentSelectors)
	p.DateSelectors = slices.Clone(p.DateSelectors)
	p.DateFormats = slices.Clone(p.DateFormats)
	p.Headers = maps.Clone(p.Headers)
	p.ExcludePatterns = slices.Clone(p.ExcludePatterns)
	return p
}

// AllowsURL reports whether a discovered link passes the profile's URL
// filters.
func (p *SourceProfile) AllowsURL(link string) bool {
	if p.URLPattern != nil && !p.URLPattern.MatchString(link) {
		return false
	}
	for _, re := range p.ExcludePatterns {
		if re.MatchString(link) {
			return false
		}
	}
	return true
}
