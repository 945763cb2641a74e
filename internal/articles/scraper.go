// Package articles renders web pages in a stealth browser and turns them into markdown or
// into a list of article links.
package articles

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xkilldash9x/newsroom-scraper/api/schemas"
	"github.com/xkilldash9x/newsroom-scraper/internal/browser"
	"github.com/xkilldash9x/newsroom-scraper/internal/config"
	"github.com/xkilldash9x/newsroom-scraper/internal/platform/upstream"
)

const (
	// MethodBrowser and MethodHTTP say where an article listing came from.
	MethodBrowser = "browser"
	MethodHTTP    = "http"

	minArticleLinks = 3
)

// Fetcher downloads raw HTML without a browser.
type Fetcher interface {
	FetchHTML(ctx context.Context, pageURL string) (string, error)
}

// Scraper renders pages through the browser factory.
type Scraper struct {
	factory  browser.Factory
	fetcher  Fetcher
	markdown *markdownRenderer
	cfg      config.ScrapeConfig
	logger   *zap.Logger
}

// New creates a Scraper. A nil fetcher uses a plain HTTP client configured from up.
func New(cfg config.ScrapeConfig, factory browser.Factory, fetcher Fetcher, up config.UpstreamConfig, logger *zap.Logger) *Scraper {
	if fetcher == nil {
		fetcher = &httpFetcher{cfg: up, timeout: cfg.FallbackTimeout, logger: logger}
	}
	return &Scraper{
		factory:  factory,
		fetcher:  fetcher,
		markdown: newMarkdownRenderer(),
		cfg:      cfg,
		logger:   logger.Named("articles"),
	}
}

// rendered is one page as the browser saw it.
type rendered struct {
	title string
	html  string
}

func (s *Scraper) render(ctx context.Context, pageURL, waitFor string, timeout time.Duration) (rendered, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := s.factory.Create(ctx)
	if err != nil {
		return rendered{}, err
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			s.logger.Debug("Closing scrape page failed.", zap.Error(cerr))
		}
	}()

	if err := page.Navigate(ctx, pageURL); err != nil && !errors.Is(err, browser.ErrNavigationTimeout) {
		return rendered{}, err
	}
	if waitFor != "" {
		if err := page.WaitVisible(ctx, waitFor); err != nil {
			return rendered{}, fmt.Errorf("waiting for %q: %w", waitFor, err)
		}
	}
	if err := page.WaitSettled(ctx, s.cfg.SettleDelay); err != nil && ctx.Err() != nil {
		return rendered{}, ctx.Err()
	}

	html, err := page.Content(ctx)
	if err != nil {
		return rendered{}, err
	}
	title, _ := page.Title(ctx)
	return rendered{title: title, html: html}, nil
}

// Scrape renders pageURL and converts it to markdown. A zero timeout uses the configured one.
func (s *Scraper) Scrape(ctx context.Context, pageURL, waitFor string, timeout time.Duration) (schemas.ScrapeResponse, error) {
	res := schemas.ScrapeResponse{URL: pageURL}
	if _, err := parseTarget(pageURL); err != nil {
		return res, err
	}
	if timeout <= 0 {
		timeout = s.cfg.Timeout
	}

	page, err := s.render(ctx, pageURL, waitFor, timeout)
	if err != nil {
		return res, err
	}
	doc, err := parseHTML(page.html)
	if err != nil {
		return res, fmt.Errorf("parsing rendered page: %w", err)
	}
	md, err := s.markdown.Render(doc, pageURL)
	if err != nil {
		return res, fmt.Errorf("converting to markdown: %w", err)
	}

	res.Success = true
	res.Markdown = md
	res.Title = page.title
	if res.Title == "" {
		res.Title = pageTitle(doc, md)
	}
	res.Date = DateFromContent(md)
	res.HTMLLength = utf8.RuneCountInString(page.html)
	res.LinksCount = len(ExtractLinks(doc))
	return res, nil
}

// Articles lists up to limit article links found on a blog or news index page. When the
// rendered page shows too few article links the raw HTML is fetched over plain HTTP.
func (s *Scraper) Articles(ctx context.Context, pageURL string, limit int) (schemas.ArticlesResponse, error) {
	res := schemas.ArticlesResponse{SourceURL: pageURL, Articles: []schemas.Article{}}
	base, err := parseTarget(pageURL)
	if err != nil {
		return res, err
	}
	if limit <= 0 {
		limit = s.cfg.MaxArticles
	}

	method := MethodBrowser
	var links []Link
	page, renderErr := s.render(ctx, pageURL, "", s.cfg.ArticlesTimeout)
	if renderErr == nil {
		if doc, err := parseHTML(page.html); err == nil {
			links = ExtractLinks(doc)
		}
	} else {
		s.logger.Warn("Rendering listing failed, trying plain HTTP.", zap.String("url", pageURL), zap.Error(renderErr))
	}

	if s.countArticleLinks(base, links) < minArticleLinks {
		if fallback, err := s.fetchLinks(ctx, pageURL); err == nil && len(fallback) > 0 {
			links, method = fallback, MethodHTTP
		} else if renderErr != nil {
			return res, renderErr
		}
	}

	res.Success = true
	res.Method = method
	res.Articles = s.collect(base, links, limit)
	return res, nil
}

func (s *Scraper) fetchLinks(ctx context.Context, pageURL string) ([]Link, error) {
	html, err := s.fetcher.FetchHTML(ctx, pageURL)
	if err != nil {
		s.logger.Debug("Plain HTTP fallback failed.", zap.String("url", pageURL), zap.Error(err))
		return nil, err
	}
	doc, err := parseHTML(html)
	if err != nil {
		return nil, err
	}
	return ExtractLinks(doc), nil
}

func (s *Scraper) countArticleLinks(base *url.URL, links []Link) int {
	n := 0
	for _, l := range links {
		if u, ok := resolve(base, l.Href); ok && IsArticleURL(u, base, s.cfg.KnownPlatforms) {
			n++
		}
	}
	return n
}

// collect dedupes, filters and titles links in document order.
func (s *Scraper) collect(base *url.URL, links []Link, limit int) []schemas.Article {
	seen := make(map[string]struct{}, len(links))
	out := make([]schemas.Article, 0, min(limit, len(links)))
	for _, l := range links {
		if len(out) >= limit {
			break
		}
		u, ok := resolve(base, l.Href)
		if !ok {
			continue
		}
		key := u.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if !IsArticleURL(u, base, s.cfg.KnownPlatforms) {
			continue
		}
		raw := l.Text
		if raw == "" {
			raw = TitleFromURL(u)
		}
		title, ok := cleanTitle(raw)
		if !ok {
			continue
		}
		out = append(out, schemas.Article{URL: key, Title: title, Date: DateFromURL(u)})
	}
	return out
}

func parseTarget(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: must be an absolute http(s) URL", raw)
	}
	return u, nil
}

// httpFetcher is the plain HTTP fallback, sharing the platform client's stack.
type httpFetcher struct {
	cfg     config.UpstreamConfig
	timeout time.Duration
	logger  *zap.Logger
}

func (f *httpFetcher) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	u, err := parseTarget(pageURL)
	if err != nil {
		return "", err
	}
	cfg := f.cfg
	if f.timeout > 0 {
		cfg.Timeout = f.timeout
	}
	client, err := upstream.New(upstream.Options{
		BaseURL: u.Scheme + "://" + u.Host,
		Config:  cfg,
		Headers: map[string]string{"Accept": "text/html,application/xhtml+xml"},
		Logger:  f.logger,
	})
	if err != nil {
		return "", err
	}
	defer client.Close()

	res, err := client.Do(ctx, http.MethodGet, u.RequestURI(), nil)
	if err != nil {
		return "", err
	}
	if res.Status != http.StatusOK {
		return "", fmt.Errorf("fallback fetch of %s returned %d", pageURL, res.Status)
	}
	return string(res.Body), nil
}
