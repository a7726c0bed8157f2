package extract

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/internal/security"
	"github.com/mmcdole/gofeed"
)

type feedExtractor struct {
	guard  *security.URLGuard
	parser *gofeed.Parser
}

func newFeedExtractor(guard *security.URLGuard) *feedExtractor {
	parser := gofeed.NewParser()
	parser.UserAgent = config.CrawlUserAgent
	parser.Client = &http.Client{
		Transport:     guard.SafeTransport(),
		CheckRedirect: guard.ValidateRedirect,
		Timeout:       config.CrawlTimeout,
	}
	return &feedExtractor{guard: guard, parser: parser}
}

func (f *feedExtractor) Extract(ctx context.Context, source commonModels.Source) ([]commonModels.ExtractedItem, error) {
	if err := f.guard.Validate(source.URL); err != nil {
		return nil, fmt.Errorf("URL validation failed: %w", err)
	}

	feed, err := f.parser.ParseURLWithContext(source.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	entries := feed.Items
	if len(entries) > config.MaxFeedItems {
		entries = entries[:config.MaxFeedItems]
	}

	items := make([]commonModels.ExtractedItem, 0, len(entries))
	for _, entry := range entries {
		item, ok := f.extractEntry(entry)
		if !ok {
			logger.Warn("Skipping empty feed entry", "link", entry.Link)
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

func (f *feedExtractor) extractEntry(entry *gofeed.Item) (commonModels.ExtractedItem, bool) {
	title := entry.Title
	if title == "" {
		title = "Untitled"
	}

	// Prefer full content over the summary
	content := entry.Content
	if content == "" {
		content = entry.Description
	}
	content = cleanHTML(content)
	if strings.TrimSpace(content) == "" {
		return commonModels.ExtractedItem{}, false
	}

	return commonModels.ExtractedItem{
		URL:         entry.Link,
		Title:       title,
		Content:     content,
		PublishedAt: entry.PublishedParsed,
	}, true
}

// cleanHTML strips markup down to newline-separated plain text.
func cleanHTML(html string) string {
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style").Remove()

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return strings.Join(lines, "\n")
}
