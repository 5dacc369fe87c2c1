// Package vectorsearch ranks a chat space's chunks against a query by brute
// force cosine similarity. Chat spaces are small (a handful of documents), so
// a full scan per query is the whole index.
package vectorsearch

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/markdave123-py/chatspace/internal/apperrors"
	"github.com/markdave123-py/chatspace/internal/core"
	"github.com/markdave123-py/chatspace/internal/models"
)

const DefaultLimit = 5

// ChunkLoader is the slice of core.DbClient the searcher reads from.
type ChunkLoader interface {
	ListChunksByChatSpace(ctx context.Context, chatSpaceID string) ([]models.DocumentChunk, error)
}

type Searcher struct {
	db       ChunkLoader
	embedder core.EmbeddingProvider
}

func NewSearcher(db ChunkLoader, embedder core.EmbeddingProvider) *Searcher {
	return &Searcher{db: db, embedder: embedder}
}

var _ core.Retriever = (*Searcher)(nil)

// Search embeds the query and returns the top limit chunks by descending
// similarity. Ties keep storage order. No threshold is applied.
func (s *Searcher) Search(ctx context.Context, chatSpaceID, query string, limit int) ([]core.ScoredChunk, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", apperrors.ErrEmbedding, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 query vector, got %d", apperrors.ErrEmbedding, len(vecs))
	}
	queryVec := vecs[0]

	chunks, err := s.db.ListChunksByChatSpace(ctx, chatSpaceID)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}

	scored := make([]core.ScoredChunk, len(chunks))
	for i := range chunks {
		scored[i] = core.ScoredChunk{
			Chunk:      chunks[i],
			Similarity: CosineSimilarity(queryVec, chunks[i].Embedding),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// CosineSimilarity returns dot(a,b)/(|a||b|). Vectors of different length or
// with zero norm score 0, so they rank last among positive matches and never
// produce NaN.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
