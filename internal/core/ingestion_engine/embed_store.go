package ingestion_engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/chatspace/internal/apperrors"
	"github.com/markdave123-py/chatspace/internal/models"
)

// embedAndStore embeds chunks in batches, inserts them in one transaction,
// then marks the document completed and charges its bytes together. On any
// error the document is left without chunks and nothing is charged.
func (p *Pipeline) embedAndStore(ctx context.Context, doc models.Document, texts []string, size int64) (int, error) {
	if len(texts) == 0 {
		return 0, nil
	}

	vecs, err := p.embedBatches(ctx, texts)
	if err != nil {
		return 0, err
	}

	source := doc.SourceURL
	if source == "" {
		source = doc.FileName
	}
	now := p.now()
	rows := make([]models.DocumentChunk, len(texts))
	for i, text := range texts {
		rows[i] = models.DocumentChunk{
			ID:          p.newID(),
			DocumentID:  doc.ID,
			ChatSpaceID: doc.ChatSpaceID,
			Content:     text,
			Embedding:   vecs[i],
			ChunkIndex:  i,
			TokenCount:  approxTokens(text),
			Source:      source,
			CreatedAt:   now,
		}
	}

	// A crashed earlier run may have left rows behind for this document.
	if err := p.db.DeleteChunksByDocument(ctx, doc.ID); err != nil {
		return 0, fmt.Errorf("clear old chunks: %w", err)
	}
	if err := p.db.InsertDocumentChunks(ctx, rows); err != nil {
		return 0, fmt.Errorf("insert chunks: %w", err)
	}

	if err := p.db.CompleteDocument(ctx, doc.ID, doc.ChatSpaceID, size); err != nil {
		if derr := p.db.DeleteChunksByDocument(context.WithoutCancel(ctx), doc.ID); derr != nil {
			p.logger.Error("remove orphaned chunks failed", zap.String("document_id", doc.ID), zap.Error(derr))
		}
		return 0, fmt.Errorf("complete document: %w", err)
	}
	return len(rows), nil
}

// embedBatches embeds texts BatchSize at a time with at most
// EmbedConcurrency requests in flight. Output order matches input order.
func (p *Pipeline) embedBatches(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.EmbedConcurrency)

	for start := 0; start < len(texts); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(texts))
		g.Go(func() error {
			out, err := p.embedder.EmbedTexts(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(out) != end-start {
				return fmt.Errorf("%w: got %d vectors for %d chunks", apperrors.ErrEmbedding, len(out), end-start)
			}
			for i, v := range out {
				if len(v) == 0 {
					return fmt.Errorf("%w: empty vector for chunk %d", apperrors.ErrEmbedding, start+i)
				}
				vecs[start+i] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vecs, nil
}
