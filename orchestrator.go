// Package scraper drives a scrape run: it resolves every configured source,
// discovers article links on each listing page, fetches and extracts the
// articles with request pacing and persists them in periodic batches.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Vaibhav-Sahai/periodic-scraper/articles"
	"github.com/Vaibhav-Sahai/periodic-scraper/config"
	"github.com/Vaibhav-Sahai/periodic-scraper/dates"
	"github.com/Vaibhav-Sahai/periodic-scraper/discovery"
	"github.com/Vaibhav-Sahai/periodic-scraper/logger"
	"github.com/Vaibhav-Sahai/periodic-scraper/profile"
)

// Orchestrator runs sources sequentially, in configuration order, and
// targets within a source in discovery order.
type Orchestrator struct {
	fetcher  discovery.Fetcher
	crawler  *discovery.Crawler
	store    articles.Store
	settings config.RunSettings
	log      logger.Logger
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator. Every request made through
// fetcher is paced per host by settings.RequestDelay.
func NewOrchestrator(fetcher discovery.Fetcher, store articles.Store, settings config.RunSettings, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.NewNop()
	}

	paced := discovery.NewPacedFetcher(fetcher, settings.RequestDelay)
	return &Orchestrator{
		fetcher:  paced,
		crawler:  discovery.NewCrawler(paced, log),
		store:    store,
		settings: settings,
		log:      log,
		now:      time.Now,
	}
}

// Run scrapes every source in defs. Profiles are all resolved before any
// request is made, so a *config.ConfigError aborts the run without network
// traffic. Fetch and extraction failures are counted in the summary and never
// stop the run. Cancelling ctx stops between targets; buffered articles are
// still flushed.
func (o *Orchestrator) Run(ctx context.Context, defs []config.SourceDef, common map[string]config.ProfileFields) (*Summary, error) {
	profiles, err := profile.NewResolver(common, o.settings.MaxArticlesPerSource).ResolveAll(defs)
	if err != nil {
		return nil, err
	}

	state := NewRunState(o.settings.StartDate)
	if err := o.seed(ctx, state); err != nil {
		return nil, err
	}

	summary := &Summary{StartedAt: o.now()}
	o.log.Info("Scrape run starting",
		logger.Int("sources", len(profiles)),
		logger.Time("start_date", o.settings.StartDate),
		logger.Duration("request_delay", o.settings.RequestDelay),
		logger.Int("save_interval", o.settings.SaveInterval),
	)

	for i := range profiles {
		if ctx.Err() != nil {
			break
		}

		src := SourceSummary{Name: profiles[i].Name}
		o.processSource(ctx, &profiles[i], state, &src, summary)
		summary.Sources = append(summary.Sources, src)

		o.log.Info("Finished source",
			logger.String("source", src.Name),
			logger.Int("discovered", src.Discovered),
			logger.Int("saved", src.Saved),
			logger.Int("failed", src.FetchFailures+src.ExtractionFailures),
		)
	}

	summary.Aborted = ctx.Err() != nil
	if summary.Aborted {
		o.log.Warn("Scrape run aborted, flushing buffered articles", logger.Int("pending", state.Pending()))
	}

	flushErr := o.flush(context.WithoutCancel(ctx), state, summary)
	summary.FinishedAt = o.now()

	o.log.Info("Scrape run finished",
		logger.Int("written", summary.Written),
		logger.Int("flushes", summary.Flushes),
		logger.Bool("aborted", summary.Aborted),
	)

	if flushErr != nil {
		return summary, fmt.Errorf("failed to flush articles: %w", flushErr)
	}
	return summary, nil
}

// seed marks every URL already in the store as seen, so re-runs only append
// new articles.
func (o *Orchestrator) seed(ctx context.Context, state *RunState) error {
	urls, err := o.store.URLs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load existing articles: %w", err)
	}
	for _, u := range urls {
		state.MarkSeen(u)
	}
	if len(urls) > 0 {
		o.log.Info("Loaded existing articles", logger.Int("count", len(urls)))
	}
	return nil
}

func (o *Orchestrator) processSource(ctx context.Context, p *profile.SourceProfile, state *RunState, src *SourceSummary, summary *Summary) {
	log := o.log.With(logger.String("source", p.Name))

	targets, discovered, err := o.crawler.Discover(ctx, p)
	if err != nil {
		src.ListingError = err.Error()
		log.Warn("Skipping source, listing page failed", logger.String("url", p.BaseURL), logger.Error(err))
		return
	}
	src.Discovered = discovered

	for target := range targets {
		if ctx.Err() != nil {
			return
		}

		if !state.MarkSeen(target.URL) {
			src.Duplicates++
			continue
		}

		article, ok := o.scrape(ctx, target, state, src, log)
		if !ok {
			continue
		}

		state.Accumulate(article)
		src.Saved = state.Count(p.Name)

		if o.settings.SaveInterval > 0 && state.Pending() >= o.settings.SaveInterval {
			if err := o.flush(context.WithoutCancel(ctx), state, summary); err != nil {
				log.Error("Periodic save failed, keeping articles buffered", logger.Error(err))
			}
		}
	}
}

// scrape fetches and extracts one target and applies the date policy. It
// reports false when the article is skipped.
func (o *Orchestrator) scrape(ctx context.Context, target discovery.CrawlTarget, state *RunState, src *SourceSummary, log logger.Logger) (articles.Article, bool) {
	p := target.Profile
	log = log.With(logger.String("url", target.URL))

	body, err := o.fetcher.Fetch(ctx, target.URL, p.Headers)
	if err != nil {
		if ctx.Err() == nil {
			src.FetchFailures++
			log.Warn("Failed to fetch article", logger.Error(err))
		}
		return articles.Article{}, false
	}

	doc, err := discovery.ParseHTML(body)
	if err != nil {
		src.ExtractionFailures++
		log.Warn("Failed to parse article", logger.Error(err))
		return articles.Article{}, false
	}

	scraped, err := discovery.ExtractArticle(doc, p, target.URL)
	if err != nil {
		src.ExtractionFailures++
		var extractErr *discovery.ExtractionError
		if errors.As(err, &extractErr) {
			log.Warn("Skipping article", logger.String("reason", extractErr.Reason.Error()))
		} else {
			log.Warn("Skipping article", logger.Error(err))
		}
		return articles.Article{}, false
	}

	now := o.now()
	switch {
	case scraped.PublishedAt == nil:
		src.Undated++
		if !o.settings.KeepUndated {
			log.Debug("Skipping undated article")
			return articles.Article{}, false
		}
		log.Warn("Article date unknown, keeping it")
	case !dates.InRange(*scraped.PublishedAt, state.StartDate, now):
		src.OutOfRange++
		log.Debug("Article outside date range", logger.Time("published_at", *scraped.PublishedAt))
		return articles.Article{}, false
	}

	return discovery.ScrapedArticleToArticle(scraped, p.Name, now), true
}

// flush appends the buffered articles to the store. On failure the buffer is
// kept so the next flush retries it.
func (o *Orchestrator) flush(ctx context.Context, state *RunState, summary *Summary) error {
	pending := state.Pending()
	if pending == 0 {
		return nil
	}

	written, err := o.store.Append(ctx, state.Buffer())
	if err != nil {
		return err
	}

	state.Flushed(pending)
	summary.Flushes++
	summary.Written += written

	o.log.Info("Saved articles",
		logger.Int("batch", pending),
		logger.Int("written", written),
	)
	return nil
}
