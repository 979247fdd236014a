package crawler

import (
	"context"
	"regexp"
	"sync"

	"github.com/gocolly/colly/v2"
	"github.com/schollz/progressbar/v3"

	"github.com/sitesync/sitesync/internal/config"
	"github.com/sitesync/sitesync/internal/converter"
	"github.com/sitesync/sitesync/internal/domain"
	"github.com/sitesync/sitesync/internal/store"
	"github.com/sitesync/sitesync/internal/utils"
)

// Crawler walks one site breadth-first from its start URLs, converts each
// HTML page to cleaned markdown and hands it to the scrape writer. A crawl
// stays on the site's host and respects the configured depth, page limit
// and exclude patterns.
type Crawler struct {
	site         *config.SiteConfig
	cfg          config.ScrapeConfig
	fetcher      domain.Fetcher
	converter    domain.Converter
	cleaner      domain.Cleaner
	writer       *store.ScrapeWriter
	logger       *utils.Logger
	showProgress bool
}

// Options contains the collaborators for a crawl
type Options struct {
	Site         *config.SiteConfig
	Config       config.ScrapeConfig
	Fetcher      domain.Fetcher
	Converter    domain.Converter
	Cleaner      domain.Cleaner
	Writer       *store.ScrapeWriter
	Logger       *utils.Logger
	ShowProgress bool
}

// New creates a Crawler for one site
func New(opts Options) *Crawler {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewDefaultLogger()
	}
	return &Crawler{
		site:         opts.Site,
		cfg:          opts.Config,
		fetcher:      opts.Fetcher,
		converter:    opts.Converter,
		cleaner:      opts.Cleaner,
		writer:       opts.Writer,
		logger:       logger.WithComponent("crawler").WithSite(opts.Site.Name),
		showProgress: opts.ShowProgress,
	}
}

// crawlState holds shared state between concurrent collector callbacks
type crawlState struct {
	visited        sync.Map
	mu             sync.Mutex
	pages          int
	bar            *progressbar.ProgressBar
	excludeRegexps []*regexp.Regexp
}

// Run executes the crawl and returns the number of pages stored
func (c *Crawler) Run(ctx context.Context) (int, error) {
	state := &crawlState{}
	patterns := append(append([]string{}, config.DefaultExcludePatterns...), c.site.Exclude...)
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			c.logger.Warn().Str("pattern", pattern).Err(err).Msg("Skipping invalid exclude pattern")
			continue
		}
		state.excludeRegexps = append(state.excludeRegexps, re)
	}
	if c.showProgress {
		state.bar = utils.NewProgressBar(-1, utils.DescCrawling)
	}

	maxDepth := c.site.MaxDepth
	if maxDepth == 0 {
		maxDepth = c.cfg.MaxDepth
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.MaxDepth(maxDepth),
	)
	collector.WithTransport(c.fetcher.Transport())

	workers := c.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	_ = collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: workers,
		Delay:       c.cfg.RandomDelayMin,
		RandomDelay: c.cfg.RandomDelayMax,
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if c.shouldVisit(link, state) {
			_ = e.Request.Visit(link)
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		c.processResponse(ctx, r, state)
	})

	collector.OnError(func(r *colly.Response, err error) {
		url := r.Request.URL.String()
		c.logger.Debug().Err(err).Str("url", url).Msg("Request failed")
		c.writer.AddFailure(url, err)
	})

	startURLs := c.site.StartURLs
	if len(startURLs) == 0 {
		startURLs = []string{c.site.BaseURL}
	}
	for _, url := range startURLs {
		state.visited.Store(url, true)
		if err := collector.Visit(url); err != nil {
			c.logger.Warn().Err(err).Str("url", url).Msg("Start URL rejected")
		}
	}

	done := make(chan struct{})
	go func() {
		collector.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return c.pageCount(state), ctx.Err()
	case <-done:
	}

	pages := c.pageCount(state)
	c.logger.Info().Int("pages", pages).Msg("Crawl completed")
	return pages, nil
}

func (c *Crawler) pageCount(state *crawlState) int {
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.pages
}

func (c *Crawler) shouldVisit(link string, state *crawlState) bool {
	if link == "" {
		return false
	}
	if !utils.IsSameDomain(link, c.site.BaseURL) {
		return false
	}
	if utils.IsWikiMaintenancePage(link) {
		return false
	}
	for _, re := range state.excludeRegexps {
		if re.MatchString(link) {
			return false
		}
	}

	state.mu.Lock()
	limited := c.site.MaxPages > 0 && state.pages >= c.site.MaxPages
	state.mu.Unlock()
	if limited {
		return false
	}

	if _, seen := state.visited.LoadOrStore(link, true); seen {
		return false
	}
	return true
}

func (c *Crawler) processResponse(ctx context.Context, r *colly.Response, state *crawlState) {
	if ctx.Err() != nil {
		return
	}

	url := r.Request.URL.String()
	if !converter.IsHTMLContent(r.Headers.Get("Content-Type")) {
		return
	}

	state.mu.Lock()
	if c.site.MaxPages > 0 && state.pages >= c.site.MaxPages {
		state.mu.Unlock()
		return
	}
	state.mu.Unlock()

	doc, err := c.converter.Convert(ctx, string(r.Body), url)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", url).Msg("Failed to convert page")
		c.writer.AddFailure(url, err)
		return
	}

	if c.cleaner != nil {
		doc.Markdown = c.cleaner.Clean(doc.Markdown)
		doc.ContentHash = converter.HashContent(doc.Markdown)
	}

	if doc.Markdown == "" {
		c.logger.Debug().Str("url", url).Msg("Page cleaned to empty, skipping")
		return
	}

	if _, err := c.writer.Add(ctx, doc); err != nil {
		c.logger.Warn().Err(err).Str("url", url).Msg("Failed to store page")
		c.writer.AddFailure(url, err)
		return
	}

	state.mu.Lock()
	state.pages++
	state.mu.Unlock()

	if state.bar != nil {
		_ = state.bar.Add(1)
	}
}
