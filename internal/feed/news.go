package feed

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"

	"market-monitor/internal/logger"
	"market-monitor/internal/store"
	"market-monitor/internal/trace"
	"market-monitor/internal/types"
)

// fullTextLimit caps how much article body is handed to the classifier.
const fullTextLimit = 2000

// Scraper collects articles from the configured news sources. The article's
// absolute URL doubles as its stable item id.
type Scraper struct {
	sources       []store.NewsSource
	timeout       time.Duration
	maxItems      int
	fetchFullText bool
}

func NewScraper(cfg *store.Config) *Scraper {
	return &Scraper{
		sources:       cfg.News.Sources,
		timeout:       time.Duration(cfg.News.TimeoutSeconds) * time.Second,
		maxItems:      cfg.News.MaxItems,
		fetchFullText: cfg.News.FetchFullText,
	}
}

func (s *Scraper) Origin() types.Origin {
	return types.OriginNews
}

// Fetch scrapes every source in order. A failing source is logged and
// skipped; rate limiting between sources respects cancellation.
func (s *Scraper) Fetch(ctx context.Context) ([]types.Item, error) {
	if len(s.sources) == 0 {
		return nil, nil
	}

	ctx, span := trace.StartSpan(ctx, "scrape-news")
	defer span.End()

	perSource := s.maxItems / len(s.sources)
	if perSource < 1 {
		perSource = 1
	}

	items := []types.Item{}
	for i, source := range s.sources {
		found, err := s.scrapeSource(ctx, source, perSource)
		if err != nil {
			logger.ErrorWithErr(ctx, "Failed to scrape source", err, "source", source.Name)
			continue
		}
		items = append(items, found...)

		if i < len(s.sources)-1 {
			select {
			case <-ctx.Done():
				return items, ctx.Err()
			case <-time.After(time.Duration(source.RateLimitSeconds) * time.Second):
			}
		}
	}

	logger.Info(ctx, "News scraping completed", "sources", len(s.sources), "items", len(items))
	return items, nil
}

func (s *Scraper) scrapeSource(ctx context.Context, source store.NewsSource, maxItems int) ([]types.Item, error) {
	items := []types.Item{}

	c := colly.NewCollector(
		colly.AllowedDomains(getDomain(source.URL)),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	})

	c.OnHTML(source.Selectors.Article, func(e *colly.HTMLElement) {
		if len(items) >= maxItems {
			return
		}

		title := firstText(e.DOM, source.Selectors.Title)
		if title == "" {
			return
		}

		href, _ := e.DOM.Find(source.Selectors.URL).First().Attr("href")
		articleURL := e.Request.AbsoluteURL(href)
		if articleURL == "" {
			return
		}

		summary := ""
		if source.Selectors.Summary != "" {
			summary = firstText(e.DOM, source.Selectors.Summary)
		}

		items = append(items, types.Item{
			ID:       articleURL,
			Origin:   types.OriginNews,
			Headline: title,
			Summary:  summary,
			Source:   source.Name,
			URL:      articleURL,
			SeenAt:   time.Now().UTC(),
		})
	})

	c.OnError(func(r *colly.Response, err error) {
		logger.ErrorWithErr(ctx, "Scraping error", err, "source", source.Name, "url", r.Request.URL.String())
	})

	if err := c.Visit(source.URL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", source.URL, err)
	}
	c.Wait()

	for i := range items {
		items[i].Text = s.articleText(ctx, items[i])
	}

	return items, nil
}

// articleText builds the classifier input for an article: the extracted
// body when full-text fetching is on and succeeds, the listing summary
// otherwise, always prefixed with the headline.
func (s *Scraper) articleText(ctx context.Context, item types.Item) string {
	body := item.Summary
	if s.fetchFullText {
		if extracted := s.extractBody(ctx, item.URL); extracted != "" {
			body = extracted
		}
	}
	if body == "" {
		return item.Headline
	}
	return item.Headline + "\n\n" + body
}

func (s *Scraper) extractBody(ctx context.Context, articleURL string) string {
	article, err := readability.FromURL(articleURL, s.timeout)
	if err != nil {
		logger.Debug(ctx, "Readability extraction failed", "url", articleURL, "error", err)
		return ""
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > fullTextLimit {
		text = text[:fullTextLimit] + "..."
	}
	return text
}

// firstText returns the trimmed text of the first node matching selector.
// ChildText would concatenate every match, which garbles multi-link
// containers.
func firstText(sel *goquery.Selection, selector string) string {
	return strings.TrimSpace(sel.Find(selector).First().Text())
}

func getDomain(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
