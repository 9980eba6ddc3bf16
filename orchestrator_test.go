package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Vaibhav-Sahai/periodic-scraper/articles"
	"github.com/Vaibhav-Sahai/periodic-scraper/config"
	"github.com/Vaibhav-Sahai/periodic-scraper/discovery"
	"github.com/Vaibhav-Sahai/periodic-scraper/logger"
	"github.com/Vaibhav-Sahai/periodic-scraper/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// fakeSite serves listing and article pages from memory and records every
// requested URL.
type fakeSite struct {
	mu       sync.Mutex
	pages    map[string]string
	requests []string
	onFetch  func(url string)
}

func newFakeSite() *fakeSite {
	return &fakeSite{pages: make(map[string]string)}
}

func (s *fakeSite) Fetch(_ context.Context, url string, headers map[string]string) ([]byte, error) {
	s.mu.Lock()
	s.requests = append(s.requests, url)
	page, ok := s.pages[url]
	hook := s.onFetch
	s.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	if !ok {
		return nil, &discovery.FetchError{URL: url, StatusCode: http.StatusNotFound, Err: discovery.ErrUnexpectedStatus}
	}
	return []byte(page), nil
}

func (s *fakeSite) listing(base string, paths ...string) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, p := range paths {
		fmt.Fprintf(&b, `<a class="story" href="%s">story</a>`, p)
	}
	b.WriteString("</body></html>")
	s.pages[base] = b.String()
}

func (s *fakeSite) article(url, title, date string) {
	s.pages[url] = fmt.Sprintf(`<html><body>
		<h1>%s</h1><span class="byline">Jane Doe</span>
		<div class="date">%s</div>
		<article><p>Paragraph one.</p><p>Paragraph two.</p></article>
	</body></html>`, title, date)
}

func (s *fakeSite) fetched(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r == url {
			n++
		}
	}
	return n
}

// memoryStore records every appended batch.
type memoryStore struct {
	existing []string
	batches  [][]articles.Article
	failNext bool
	urlsErr  error
}

func (m *memoryStore) Append(_ context.Context, batch []articles.Article) (int, error) {
	if m.failNext {
		m.failNext = false
		return 0, errors.New("disk full")
	}
	m.batches = append(m.batches, batch)
	return len(batch), nil
}

func (m *memoryStore) URLs(context.Context) ([]string, error) {
	return m.existing, m.urlsErr
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) all() []articles.Article {
	var out []articles.Article
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

func (m *memoryStore) sizes() []int {
	var out []int
	for _, b := range m.batches {
		out = append(out, len(b))
	}
	return out
}

func testCommon() map[string]config.ProfileFields {
	return map[string]config.ProfileFields{
		"site_common": {
			ArticleSelector: "a.story",
			TitleSelector:   "h1",
			AuthorSelector:  ".byline",
			ContentSelector: "article p",
			DateSelector:    ".date",
			DateFormats:     []string{"%Y-%m-%d"},
			Headers:         map[string]string{"User-Agent": "Mozilla/5.0"},
		},
	}
}

func source(name, base string) config.SourceDef {
	return config.SourceDef{Name: name, BaseURL: base, Inherit: "site_common"}
}

func testSettings() config.RunSettings {
	return config.RunSettings{
		StartDate:   time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC),
		KeepUndated: true,
	}
}

func newTestOrchestrator(site *fakeSite, store articles.Store, settings config.RunSettings) *Orchestrator {
	o := NewOrchestrator(site, store, settings, logger.NewNop())
	o.now = func() time.Time { return testNow }
	return o
}

// TestRun_FlushesOnInterval verifies 12 articles with interval 5 flush as
// 5, 5 and a final 2
func TestRun_FlushesOnInterval(t *testing.T) {
	site := newFakeSite()
	var paths []string
	for i := range 12 {
		u := fmt.Sprintf("https://a.example.com/news/%d", i)
		site.article(u, fmt.Sprintf("Story %d", i), "2025-03-01")
		paths = append(paths, u)
	}
	site.listing("https://a.example.com/", paths[:7]...)
	site.listing("https://b.example.com/", paths[7:]...)

	settings := testSettings()
	settings.SaveInterval = 5
	store := &memoryStore{}

	summary, err := newTestOrchestrator(site, store, settings).Run(context.Background(),
		[]config.SourceDef{source("a", "https://a.example.com/"), source("b", "https://b.example.com/")},
		testCommon())
	require.NoError(t, err)

	assert.Equal(t, []int{5, 5, 2}, store.sizes())
	assert.Equal(t, 3, summary.Flushes)
	assert.Equal(t, 12, summary.Written)

	var urls []string
	for _, a := range store.all() {
		urls = append(urls, a.URL)
	}
	assert.Equal(t, paths, urls, "no article flushed twice or dropped")
}

// TestRun_ZeroIntervalFlushesOnceAtEnd verifies a disabled interval
func TestRun_ZeroIntervalFlushesOnceAtEnd(t *testing.T) {
	site := newFakeSite()
	site.listing("https://a.example.com/", "/1", "/2", "/3")
	for _, p := range []string{"/1", "/2", "/3"} {
		site.article("https://a.example.com"+p, "Story", "2025-03-01")
	}

	store := &memoryStore{}
	_, err := newTestOrchestrator(site, store, testSettings()).Run(context.Background(),
		[]config.SourceDef{source("a", "https://a.example.com/")}, testCommon())
	require.NoError(t, err)
	assert.Equal(t, []int{3}, store.sizes())
}

// TestRun_ArticleFields verifies the persisted record
func TestRun_ArticleFields(t *testing.T) {
	site := newFakeSite()
	site.listing("https://a.example.com/", "/world/1")
	site.article("https://a.example.com/world/1", "Headline", "2025-03-01")

	store := &memoryStore{}
	_, err := newTestOrchestrator(site, store, testSettings()).Run(context.Background(),
		[]config.SourceDef{source("a_world", "https://a.example.com/")}, testCommon())
	require.NoError(t, err)

	all := store.all()
	require.Len(t, all, 1)
	a := all[0]
	assert.Equal(t, articles.NewID("https://a.example.com/world/1"), a.ID)
	assert.Equal(t, "a_world", a.SourceName)
	assert.Equal(t, "Headline", a.Title)
	assert.Equal(t, "Jane Doe", a.Author)
	assert.Equal(t, "Paragraph one.\n\nParagraph two.", a.Body)
	require.NotNil(t, a.PublishedAt)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), *a.PublishedAt)
	assert.Equal(t, testNow, a.FetchedAt)
}

// TestRun_DeduplicatesAcrossSources verifies a URL surfaced twice is fetched
// and saved once
func TestRun_DeduplicatesAcrossSources(t *testing.T) {
	site := newFakeSite()
	shared := "https://a.example.com/world/shared"
	site.listing("https://a.example.com/world", shared, shared)
	site.listing("https://a.example.com/politics", shared, "/politics/own")
	site.article(shared, "Shared", "2025-03-01")
	site.article("https://a.example.com/politics/own", "Own", "2025-03-01")

	store := &memoryStore{}
	summary, err := newTestOrchestrator(site, store, testSettings()).Run(context.Background(),
		[]config.SourceDef{source("world", "https://a.example.com/world"), source("politics", "https://a.example.com/politics")},
		testCommon())
	require.NoError(t, err)

	assert.Len(t, store.all(), 2)
	assert.Equal(t, 1, site.fetched(shared))
	assert.Equal(t, 1, summary.Sources[1].Duplicates)
	assert.Equal(t, "world", store.all()[0].SourceName)
}

// TestRun_SkipsExistingURLs verifies URLs already in the store are not
// fetched again
func TestRun_SkipsExistingURLs(t *testing.T) {
	site := newFakeSite()
	site.listing("https://a.example.com/", "/old", "/new")
	site.article("https://a.example.com/old", "Old", "2025-03-01")
	site.article("https://a.example.com/new", "New", "2025-03-01")

	store := &memoryStore{existing: []string{"https://a.example.com/old"}}
	summary, err := newTestOrchestrator(site, store, testSettings()).Run(context.Background(),
		[]config.SourceDef{source("a", "https://a.example.com/")}, testCommon())
	require.NoError(t, err)

	require.Len(t, store.all(), 1)
	assert.Equal(t, "https://a.example.com/new", store.all()[0].URL)
	assert.Equal(t, 0, site.fetched("https://a.example.com/old"))
	assert.Equal(t, 1, summary.Sources[0].Duplicates)
}

// TestRun_DateRange verifies out-of-range articles are discarded
func TestRun_DateRange(t *testing.T) {
	site := newFakeSite()
	site.listing("https://a.example.com/", "/before", "/boundary", "/inside", "/future", "/undated")
	site.article("https://a.example.com/before", "Before", "2025-02-19")
	site.article("https://a.example.com/boundary", "Boundary", "2025-02-20")
	site.article("https://a.example.com/inside", "Inside", "2025-02-21")
	site.article("https://a.example.com/future", "Future", "2025-04-01")
	site.article("https://a.example.com/undated", "Undated", "soon")

	store := &memoryStore{}
	summary, err := newTestOrchestrator(site, store, testSettings()).Run(context.Background(),
		[]config.SourceDef{source("a", "https://a.example.com/")}, testCommon())
	require.NoError(t, err)

	var titles []string
	for _, a := range store.all() {
		titles = append(titles, a.Title)
	}
	assert.Equal(t, []string{"Boundary", "Inside", "Undated"}, titles)

	src := summary.Sources[0]
	assert.Equal(t, 2, src.OutOfRange)
	assert.Equal(t, 1, src.Undated)
	assert.Equal(t, 3, src.Saved)
}

// TestRun_DropUndated verifies keep_undated false
func TestRun_DropUndated(t *testing.T) {
	site := newFakeSite()
	site.listing("https://a.example.com/", "/undated")
	site.article("https://a.example.com/undated", "Undated", "soon")

	settings := testSettings()
	settings.KeepUndated = false
	store := &memoryStore{}

	summary, err := newTestOrchestrator(site, store, settings).Run(context.Background(),
		[]config.SourceDef{source("a", "https://a.example.com/")}, testCommon())
	require.NoError(t, err)
	assert.Empty(t, store.all())
	assert.Equal(t, 1, summary.Sources[0].Undated)
}

// TestRun_FailuresAreIsolated verifies fetch, extraction and listing
// failures skip only the affected item
func TestRun_FailuresAreIsolated(t *testing.T) {
	site := newFakeSite()
	site.listing("https://a.example.com/", "/missing", "/notitle", "/good")
	site.pages["https://a.example.com/notitle"] = `<html><body><article><p>Body only.</p></article></body></html>`
	site.article("https://a.example.com/good", "Good", "2025-03-01")
	site.listing("https://c.example.com/", "/fine")
	site.article("https://c.example.com/fine", "Fine", "2025-03-01")

	store := &memoryStore{}
	summary, err := newTestOrchestrator(site, store, testSettings()).Run(context.Background(),
		[]config.SourceDef{
			source("a", "https://a.example.com/"),
			source("broken", "https://b.example.com/"),
			source("c", "https://c.example.com/"),
		}, testCommon())
	require.NoError(t, err)

	require.Len(t, summary.Sources, 3)
	assert.Equal(t, 1, summary.Sources[0].FetchFailures)
	assert.Equal(t, 1, summary.Sources[0].ExtractionFailures)
	assert.Equal(t, 1, summary.Sources[0].Saved)
	assert.NotEmpty(t, summary.Sources[1].ListingError)
	assert.Equal(t, 1, summary.Sources[2].Saved)
	assert.Len(t, store.all(), 2)
	assert.False(t, summary.Failed())
}

// TestRun_ConfigErrorBeforeFetch verifies a misconfigured source aborts the
// run without any request
func TestRun_ConfigErrorBeforeFetch(t *testing.T) {
	site := newFakeSite()
	site.listing("https://a.example.com/", "/1")

	store := &memoryStore{}
	bad := config.SourceDef{Name: "bad", BaseURL: "https://b.example.com/", Inherit: "nope"}

	summary, err := newTestOrchestrator(site, store, testSettings()).Run(context.Background(),
		[]config.SourceDef{source("a", "https://a.example.com/"), bad}, testCommon())
	require.Error(t, err)
	assert.Nil(t, summary)

	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "bad", cfgErr.Source)
	assert.ErrorIs(t, err, profile.ErrUnknownProfile)
	assert.Empty(t, site.requests)
}

// TestRun_AbortFlushesBuffer verifies cancellation stops between targets and
// still persists completed work
func TestRun_AbortFlushesBuffer(t *testing.T) {
	site := newFakeSite()
	site.listing("https://a.example.com/", "/1", "/2", "/3", "/4")
	for _, p := range []string{"/1", "/2", "/3", "/4"} {
		site.article("https://a.example.com"+p, "Story"+p, "2025-03-01")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	site.onFetch = func(url string) {
		if url == "https://a.example.com/2" {
			cancel()
		}
	}

	settings := testSettings()
	settings.SaveInterval = 10
	store := &memoryStore{}

	summary, err := newTestOrchestrator(site, store, settings).Run(ctx,
		[]config.SourceDef{source("a", "https://a.example.com/"), source("b", "https://b.example.com/")},
		testCommon())
	require.NoError(t, err)

	assert.True(t, summary.Aborted)
	assert.Equal(t, []int{2}, store.sizes())
	assert.Equal(t, 0, site.fetched("https://a.example.com/3"))
	assert.Equal(t, 0, site.fetched("https://b.example.com/"))
}

// TestRun_FlushFailureKeepsBuffer verifies a failed periodic save is retried
func TestRun_FlushFailureKeepsBuffer(t *testing.T) {
	site := newFakeSite()
	site.listing("https://a.example.com/", "/1", "/2", "/3")
	for _, p := range []string{"/1", "/2", "/3"} {
		site.article("https://a.example.com"+p, "Story", "2025-03-01")
	}

	settings := testSettings()
	settings.SaveInterval = 2
	store := &memoryStore{failNext: true}

	summary, err := newTestOrchestrator(site, store, settings).Run(context.Background(),
		[]config.SourceDef{source("a", "https://a.example.com/")}, testCommon())
	require.NoError(t, err)

	assert.Equal(t, []int{3}, store.sizes())
	assert.Equal(t, 3, summary.Written)
}

// TestRun_StoreErrorOnSeed verifies an unreadable store fails the run early
func TestRun_StoreErrorOnSeed(t *testing.T) {
	site := newFakeSite()
	store := &memoryStore{urlsErr: errors.New("corrupt")}

	_, err := newTestOrchestrator(site, store, testSettings()).Run(context.Background(),
		[]config.SourceDef{source("a", "https://a.example.com/")}, testCommon())
	require.Error(t, err)
	assert.Empty(t, site.requests)
}

// TestRun_CSVStoreEndToEnd verifies a run against the CSV store
func TestRun_CSVStoreEndToEnd(t *testing.T) {
	site := newFakeSite()
	site.listing("https://a.example.com/", "/1", "/2")
	site.article("https://a.example.com/1", "One", "2025-03-01")
	site.article("https://a.example.com/2", "Two", "2025-03-02")

	path := t.TempDir() + "/out.csv"
	store, err := articles.Open(path, "csv")
	require.NoError(t, err)

	_, err = newTestOrchestrator(site, store, testSettings()).Run(context.Background(),
		[]config.SourceDef{source("a", "https://a.example.com/")}, testCommon())
	require.NoError(t, err)

	// A second run appends nothing new.
	store, err = articles.Open(path, "csv")
	require.NoError(t, err)
	summary, err := newTestOrchestrator(site, store, testSettings()).Run(context.Background(),
		[]config.SourceDef{source("a", "https://a.example.com/")}, testCommon())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Written)
	assert.Equal(t, 2, summary.Sources[0].Duplicates)

	urls, err := store.URLs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com/1", "https://a.example.com/2"}, urls)
}

// TestSummary_Render verifies the summary table
func TestSummary_Render(t *testing.T) {
	summary := &Summary{
		Sources: []SourceSummary{
			{Name: "cnn_world", Discovered: 10, Saved: 7, OutOfRange: 3},
			{Name: "nyt_world", ListingError: "fetch failed"},
		},
		Written:    7,
		Flushes:    2,
		StartedAt:  testNow,
		FinishedAt: testNow.Add(90 * time.Second),
	}

	var buf bytes.Buffer
	summary.Render(&buf)

	out := buf.String()
	assert.Contains(t, out, "cnn_world")
	assert.Contains(t, out, "nyt_world")
	assert.Contains(t, out, "fetch failed")
	assert.Contains(t, out, "7 rows written in 2 flushes")
	assert.False(t, summary.Failed())
}

// TestRun_UnparseableDateIsUndated verifies an unreadable date selector value
// is not replaced by an older date from the URL
func TestRun_UnparseableDateIsUndated(t *testing.T) {
	site := newFakeSite()
	site.listing("https://a.example.com/", "/2020/01/05/story")
	site.article("https://a.example.com/2020/01/05/story", "Story", "not-a-date")

	store := &memoryStore{}
	summary, err := newTestOrchestrator(site, store, testSettings()).Run(context.Background(),
		[]config.SourceDef{source("a", "https://a.example.com/")}, testCommon())
	require.NoError(t, err)

	require.Len(t, store.all(), 1)
	assert.Nil(t, store.all()[0].PublishedAt)
	assert.Equal(t, 1, summary.Sources[0].Undated)
	assert.Equal(t, 0, summary.Sources[0].OutOfRange)
}
