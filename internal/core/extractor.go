package core

import (
	"context"

	"github.com/markdave123-py/chatspace/internal/models"
)

// DocumentExtractor turns uploaded file bytes into plain text.
// ext is the lowercase extension without the dot ("pdf", "docx", "html", "md", "txt").
type DocumentExtractor interface {
	ExtractText(ctx context.Context, data []byte, ext string) (string, error)
}

// ScrapeResult is what the crawler keeps from one page.
type ScrapeResult struct {
	Title   string
	Content string
	Links   []string
}

// Scraper fetches a page and returns its readable text and same-site links.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*ScrapeResult, error)
}

// ScoredChunk is a retrieval hit.
type ScoredChunk struct {
	Chunk      models.DocumentChunk
	Similarity float64
}

// Retriever ranks a chat space's chunks against a query.
type Retriever interface {
	Search(ctx context.Context, chatSpaceID, query string, limit int) ([]ScoredChunk, error)
}

// KnowledgeConnector queries a tenant's external knowledge base.
type KnowledgeConnector interface {
	Query(ctx context.Context, endpoint, apiKey, query string) (string, error)
}
