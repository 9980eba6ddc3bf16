package discovery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// cleanText collapses runs of whitespace into single spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// firstText walks a fallback chain and returns the first non-empty text of
// the first selector that has any. Later selectors are only consulted when
// earlier ones match nothing with text.
func firstText(root *goquery.Selection, chain []string) string {
	for _, sel := range chain {
		text := ""
		root.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text = cleanText(s.Text())
			return text == ""
		})
		if text != "" {
			return text
		}
	}
	return ""
}

// collectText walks a fallback chain and joins the text of every element
// matched by the first selector that yields text, in document order,
// separated by paragraph breaks.
func collectText(root *goquery.Selection, chain []string) string {
	for _, sel := range chain {
		var parts []string
		root.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if text := cleanText(s.Text()); text != "" {
				parts = append(parts, text)
			}
		})
		if len(parts) > 0 {
			return strings.Join(parts, "\n\n")
		}
	}
	return ""
}
