package discovery

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/Vaibhav-Sahai/periodic-scraper/articles"
	"github.com/Vaibhav-Sahai/periodic-scraper/dates"
	"github.com/Vaibhav-Sahai/periodic-scraper/profile"
)

var (
	// ErrMissingTitle means no title selector produced any text.
	ErrMissingTitle = errors.New("missing title")
	// ErrEmptyBody means no content selector produced any text.
	ErrEmptyBody = errors.New("empty body")
)

// ExtractionError is a failure to extract one article. It skips that article
// only.
type ExtractionError struct {
	URL    string
	Reason error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return e.Reason
}

// ScrapedArticle holds extracted article data from a web page before
// conversion to an Article.
type ScrapedArticle struct {
	Title       string
	Content     string
	URL         string
	Authors     []string
	PublishedAt *time.Time
}

// Author returns the authors as one display string.
func (a *ScrapedArticle) Author() string {
	return strings.Join(a.Authors, ", ")
}

// ScrapedArticleToArticle converts scraped article data to an Article owned
// by the named source.
func ScrapedArticleToArticle(article *ScrapedArticle, sourceName string, fetchedAt time.Time) articles.Article {
	return articles.Article{
		ID:          articles.NewID(article.URL),
		SourceName:  sourceName,
		URL:         article.URL,
		Title:       article.Title,
		Author:      article.Author(),
		PublishedAt: article.PublishedAt,
		Body:        article.Content,
		FetchedAt:   fetchedAt.UTC(),
	}
}

// ExtractArticle extracts article data from HTML using the profile's selector
// chains. Title and body are mandatory; author and date are best-effort.
func ExtractArticle(doc *goquery.Document, p *profile.SourceProfile, articleURL string) (*ScrapedArticle, error) {
	article := &ScrapedArticle{URL: articleURL}

	article.Title = firstText(doc.Selection, p.TitleSelectors)
	if article.Title == "" {
		return nil, &ExtractionError{URL: articleURL, Reason: ErrMissingTitle}
	}

	article.Content = collectText(doc.Selection, p.ContentSelectors)
	if article.Content == "" {
		return nil, &ExtractionError{URL: articleURL, Reason: ErrEmptyBody}
	}

	article.Authors = extractAuthors(doc.Selection, p.AuthorSelectors)
	article.PublishedAt = extractDate(doc.Selection, p, articleURL)

	return article, nil
}

// ParseAuthors splits a single author string into multiple authors if it
// contains common delimiters.
func ParseAuthors(authorText string) []string {
	if authorText == "" {
		return []string{}
	}

	authors := []string{}

	// Split on ", " first, then " and "
	for _, sep := range []string{", ", " and "} {
		if !strings.Contains(authorText, sep) {
			continue
		}
		for part := range strings.SplitSeq(authorText, sep) {
			part = strings.TrimSpace(part)
			if part != "" {
				authors = append(authors, part)
			}
		}
		return authors
	}

	return []string{strings.TrimSpace(authorText)}
}

// extractAuthors collects every element of the first author selector that
// yields text, falling back to the author meta tag.
func extractAuthors(root *goquery.Selection, chain []string) []string {
	var authors []string

	for _, sel := range chain {
		root.Find(sel).Each(func(_ int, s *goquery.Selection) {
			for _, name := range ParseAuthors(cleanText(s.Text())) {
				name = strings.TrimPrefix(name, "By ")
				if name != "" && !slices.Contains(authors, name) {
					authors = append(authors, name)
				}
			}
		})
		if len(authors) > 0 {
			return authors
		}
	}

	if meta, ok := root.Find(`meta[name="author"]`).First().Attr("content"); ok {
		for _, name := range ParseAuthors(cleanText(meta)) {
			if !slices.Contains(authors, name) {
				authors = append(authors, name)
			}
		}
	}
	return authors
}

// extractDate reads the configured date selector. A value it finds but cannot
// parse leaves the date unknown. Only when the selector is absent or matches
// nothing are the date in the URL path, the article:published_time meta tag
// and time[datetime] consulted.
func extractDate(root *goquery.Selection, p *profile.SourceProfile, articleURL string) *time.Time {
	if raw, fromAttr := firstDateValue(root, p.DateSelectors); raw != "" {
		if t, ok := dates.Parse(raw, p.DateFormats); ok {
			return &t
		}
		if fromAttr {
			if t, ok := dates.ParseISO(raw); ok {
				return &t
			}
		}
		return nil
	}

	if t, ok := dates.FromURL(articleURL); ok {
		return &t
	}

	if meta, ok := root.Find(`meta[property="article:published_time"]`).First().Attr("content"); ok {
		if t, ok := dates.ParseISO(meta); ok {
			return &t
		}
	}

	if dt, ok := root.Find("time[datetime]").First().Attr("datetime"); ok {
		if t, ok := dates.ParseISO(dt); ok {
			return &t
		}
	}

	return nil
}

// firstDateValue returns the raw date of the first selector yielding one.
// Machine-readable datetime and content attributes win over element text.
func firstDateValue(root *goquery.Selection, chain []string) (raw string, fromAttr bool) {
	for _, sel := range chain {
		s := root.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		for _, attr := range []string{"datetime", "content"} {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), true
			}
		}
		if text := cleanText(s.Text()); text != "" {
			return text, false
		}
	}
	return "", false
}
