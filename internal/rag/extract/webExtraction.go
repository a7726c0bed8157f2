package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"
	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/internal/security"
)

type webExtractor struct {
	guard *security.URLGuard
}

func newWebExtractor(guard *security.URLGuard) *webExtractor {
	return &webExtractor{guard: guard}
}

// Extract crawls from the source URL up to its configured depth, staying
// on the start domain. Pages that fail to fetch or parse are skipped.
func (w *webExtractor) Extract(ctx context.Context, source commonModels.Source) ([]commonModels.ExtractedItem, error) {
	if err := w.guard.Validate(source.URL); err != nil {
		return nil, fmt.Errorf("URL validation failed: %w", err)
	}

	start, err := url.Parse(source.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid source URL: %w", err)
	}

	depth := source.CrawlDepth
	if depth <= 0 {
		depth = config.DefaultCrawlDepth
	}

	collector := colly.NewCollector(
		colly.MaxDepth(depth),
		colly.AllowedDomains(start.Hostname()),
		colly.UserAgent(config.CrawlUserAgent),
	)
	collector.WithTransport(w.guard.SafeTransport())
	collector.SetRequestTimeout(config.CrawlTimeout)

	var items []commonModels.ExtractedItem

	collector.OnRequest(func(r *colly.Request) {
		select {
		case <-ctx.Done():
			r.Abort()
			return
		default:
		}
		if err := w.guard.Validate(r.URL.String()); err != nil {
			logger.Warn("Skipping unsafe URL", "url", r.URL.String(), "error", err)
			r.Abort()
		}
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		//errors here are just pages we won't follow (depth, revisit, domain)
		_ = e.Request.Visit(e.Attr("href"))
	})

	collector.OnResponse(func(r *colly.Response) {
		if !strings.Contains(strings.ToLower(r.Headers.Get("Content-Type")), "text/html") {
			return
		}

		item, err := w.extractPage(r.Body, r.Request.URL)
		if err != nil {
			logger.Warn("Error extracting page", "url", r.Request.URL.String(), "error", err)
			return
		}
		if strings.TrimSpace(item.Content) != "" {
			items = append(items, item)
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		logger.Warn("Error crawling page", "url", r.Request.URL.String(), "error", err)
	})

	if err := collector.Visit(source.URL); err != nil {
		return nil, fmt.Errorf("crawl failed for %s: %w", source.URL, err)
	}
	collector.Wait()

	return items, nil
}

func (w *webExtractor) extractPage(body []byte, pageURL *url.URL) (commonModels.ExtractedItem, error) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return commonModels.ExtractedItem{}, fmt.Errorf("readability failed: %w", err)
	}

	item := commonModels.ExtractedItem{
		URL:     pageURL.String(),
		Title:   article.Title,
		Content: strings.TrimSpace(article.TextContent),
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		if item.Title == "" {
			item.Title = strings.TrimSpace(doc.Find("title").First().Text())
		}
		item.PublishedAt = extractPublishDate(doc)
	}

	return item, nil
}

// extractPublishDate looks for JSON-LD datePublished first, then the
// article:published_time meta tag.
func extractPublishDate(doc *goquery.Document) *time.Time {
	var published *time.Time

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data map[string]any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		if t := parseDate(jsonLdDate(data)); t != nil {
			published = t
			return false
		}
		return true
	})
	if published != nil {
		return published
	}

	if content, ok := doc.Find(`meta[property="article:published_time"]`).Attr("content"); ok {
		return parseDate(content)
	}
	return nil
}

func jsonLdDate(data map[string]any) string {
	if date, ok := data["datePublished"].(string); ok {
		return date
	}
	if graph, ok := data["@graph"].([]any); ok {
		for _, entry := range graph {
			if m, ok := entry.(map[string]any); ok {
				if date, ok := m["datePublished"].(string); ok {
					return date
				}
			}
		}
	}
	return ""
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
