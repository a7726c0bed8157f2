package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
	"github.com/mfales/ragengine/internal/domain/commonModels"
)

type fileExtractor struct{}

func newFileExtractor() *fileExtractor {
	return &fileExtractor{}
}

// Extract reads one uploaded document from the path in source.URL. The
// item carries no URL, identity falls back to the content hash.
func (f *fileExtractor) Extract(ctx context.Context, source commonModels.Source) ([]commonModels.ExtractedItem, error) {
	path := source.URL

	var content string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		content, err = extractPDF(path)
	case ".docx", ".odt", ".rtf", ".txt":
		content, err = cat.File(path)
	default:
		return nil, fmt.Errorf("unsupported document type: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", path, err)
	}

	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	title := source.Title
	if title == "" {
		title = filepath.Base(path)
	}

	return []commonModels.ExtractedItem{{
		Title:   title,
		Content: content,
	}}, nil
}

func extractPDF(path string) (string, error) {
	logger.Debug("extractPDF", "attempting extraction", path)
	f, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []string
	numPages := f.NumPage()
	logger.Debug("extractPDF", "number of pages", numPages)
	for i := 1; i <= numPages; i++ {
		page := f.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := protectExtract(page)
		if err != nil {
			// keep going with the remaining pages
			logger.Error("Error parsing page content", "page", i, "error", err)
			continue
		}
		pages = append(pages, content)
	}
	return strings.Join(pages, "\n\n"), nil
}

// protectExtract guards against pdf pages that hang the parser.
func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(time.Second * 10):
		return "", errors.New("timeout")
	}
}
