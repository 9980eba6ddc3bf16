package discovery

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/Vaibhav-Sahai/periodic-scraper/logger"
	"github.com/Vaibhav-Sahai/periodic-scraper/profile"
)

// CrawlTarget is a discovered article URL and the profile of the source that
// surfaced it. The target does not own the profile.
type CrawlTarget struct {
	URL     string
	Profile *profile.SourceProfile
}

// Crawler discovers article links on a source's listing page.
type Crawler struct {
	fetcher Fetcher
	log     logger.Logger
}

// NewCrawler creates a crawler that fetches listing pages through fetcher.
func NewCrawler(fetcher Fetcher, log logger.Logger) *Crawler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Crawler{fetcher: fetcher, log: log}
}

// Discover fetches the listing page at the profile's base URL and returns the
// article targets it links to along with their count. Targets are
// deduplicated, filtered and capped at the profile's MaxArticles in discovery
// order. A returned error means the listing could not be fetched or parsed and
// the source should be skipped.
func (c *Crawler) Discover(ctx context.Context, p *profile.SourceProfile) (iter.Seq[CrawlTarget], int, error) {
	body, err := c.fetcher.Fetch(ctx, p.BaseURL, p.Headers)
	if err != nil {
		return nil, 0, err
	}

	var links []string
	switch p.Discovery {
	case profile.DiscoveryFeed:
		links, err = FeedLinks(body, p)
	default:
		var doc *goquery.Document
		doc, err = ParseHTML(body)
		if err == nil {
			links = ListingLinks(doc, p)
		}
	}
	if err != nil {
		return nil, 0, fmt.Errorf("listing %s: %w", p.BaseURL, err)
	}

	c.log.Debug("Discovered article links",
		logger.String("source", p.Name),
		logger.String("listing", p.BaseURL),
		logger.Int("links", len(links)),
	)

	return func(yield func(CrawlTarget) bool) {
		for _, link := range links {
			if !yield(CrawlTarget{URL: link, Profile: p}) {
				return
			}
		}
	}, len(links), nil
}

// ListingLinks collects article links from a listing document. Every
// selector in the article chain contributes; the first occurrence of a link
// decides its position.
func ListingLinks(doc *goquery.Document, p *profile.SourceProfile) []string {
	c := newLinkCollector(p)

	for _, sel := range p.ArticleSelectors {
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			c.add(hrefOf(s))
			return !c.full()
		})
		if c.full() {
			break
		}
	}

	return c.links
}

// hrefOf returns the element's href, or that of its first descendant link
// when the selector matched a container.
func hrefOf(s *goquery.Selection) string {
	if href, ok := s.Attr("href"); ok {
		return href
	}
	href, _ := s.Find("a[href]").First().Attr("href")
	return href
}

// linkCollector resolves, filters, deduplicates and caps discovered links.
type linkCollector struct {
	base  *url.URL
	p     *profile.SourceProfile
	seen  map[string]struct{}
	links []string
}

func newLinkCollector(p *profile.SourceProfile) *linkCollector {
	base, _ := url.Parse(p.BaseURL)
	return &linkCollector{
		base: base,
		p:    p,
		seen: make(map[string]struct{}),
	}
}

func (c *linkCollector) full() bool {
	return c.p.MaxArticles > 0 && len(c.links) >= c.p.MaxArticles
}

func (c *linkCollector) add(href string) {
	if c.full() {
		return
	}

	link, ok := resolveURL(c.base, href)
	if !ok || !c.p.AllowsURL(link) {
		return
	}
	if _, dup := c.seen[link]; dup {
		return
	}

	c.seen[link] = struct{}{}
	c.links = append(c.links, link)
}

var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// resolveURL turns an href into an absolute http(s) URL without fragment.
// Empty, fragment-only and non-web links are rejected.
func resolveURL(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	lower := strings.ToLower(href)
	if slices.ContainsFunc(skippedSchemes, func(s string) bool { return strings.HasPrefix(lower, s) }) {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	u := ref
	if base != nil {
		u = base.ResolveReference(ref)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}

	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}
