// Package scraper fetches web pages and reduces them to readable text plus
// the same-site links a crawler should follow.
package scraper

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/markdave123-py/chatspace/internal/apperrors"
	"github.com/markdave123-py/chatspace/internal/core"
)

type Scraper struct {
	fetcher          Fetcher
	logger           *zap.Logger
	minReadableChars int
}

func New(fetcher Fetcher, logger *zap.Logger) *Scraper {
	return &Scraper{
		fetcher:          fetcher,
		logger:           logger,
		minReadableChars: DefaultMinReadableChars,
	}
}

var _ core.Scraper = (*Scraper)(nil)

// Scrape fetches url and extracts its title, text and links. Every failure
// is reported as apperrors.ErrScrape.
func (s *Scraper) Scrape(ctx context.Context, url string) (*core.ScrapeResult, error) {
	raw, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrScrape, url, err)
	}

	res, err := ParsePage(raw, url, s.minReadableChars)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrScrape, url, err)
	}

	s.logger.Debug("scraped page",
		zap.String("url", url),
		zap.String("title", res.Title),
		zap.Int("content_len", len(res.Content)),
		zap.Int("links", len(res.Links)))
	return res, nil
}

func (s *Scraper) Close() error {
	return s.fetcher.Close()
}

// ParsePage extracts a ScrapeResult from raw HTML. Readable content shorter
// than minReadable characters falls back to the stripped body text.
func ParsePage(raw, pageURL string, minReadable int) (*core.ScrapeResult, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	// links first, from the untouched page
	links := extractLinks(doc, pageURL)

	res := &core.ScrapeResult{Links: links}
	text, heading := extractReadable(doc, minReadable)
	if utf8.RuneCountInString(text) >= minReadable {
		res.Content = text
		res.Title = heading
	} else {
		res.Content = fallbackText(doc)
	}
	if res.Title == "" {
		res.Title = documentTitle(doc)
	}
	return res, nil
}
