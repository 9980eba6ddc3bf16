package discovery

import (
	"bytes"
	"fmt"

	"github.com/Vaibhav-Sahai/periodic-scraper/profile"
	"github.com/mmcdole/gofeed"
)

// FeedLinks collects article links from an RSS or Atom listing document.
// The gofeed library detects the format, so both are handled the same way.
// Links go through the same resolution, filters and cap as HTML listings.
func FeedLinks(body []byte, p *profile.SourceProfile) ([]string, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	c := newLinkCollector(p)
	for _, item := range feed.Items {
		link := item.Link
		if link == "" && len(item.Links) > 0 {
			link = item.Links[0]
		}
		c.add(link)
		if c.full() {
			break
		}
	}

	return c.links, nil
}
