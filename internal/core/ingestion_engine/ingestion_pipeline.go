package ingestion_engine

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markdave123-py/chatspace/internal/apperrors"
	"github.com/markdave123-py/chatspace/internal/core"
	"github.com/markdave123-py/chatspace/internal/models"
)

const errNoContent = "No content extracted"

// DocumentOutcome is the per-document line of a processing summary.
type DocumentOutcome struct {
	DocumentID string                `json:"documentId"`
	Type       models.DocumentType   `json:"type"`
	SourceURL  string                `json:"sourceUrl,omitempty"`
	Status     models.DocumentStatus `json:"status"`
	Skipped    bool                  `json:"skipped,omitempty"`
	Error      string                `json:"error,omitempty"`
	Chunks     int                   `json:"chunks"`
	Bytes      int64                 `json:"bytes"`
}

// ProcessResult summarizes one processing run.
type ProcessResult struct {
	ChatSpaceID    string                 `json:"chatSpaceId"`
	Status         models.ChatSpaceStatus `json:"status"`
	Documents      []DocumentOutcome      `json:"documents"`
	Discovered     int                    `json:"discovered"`
	Requeued       int                    `json:"requeued"`
	DataUsageBytes int64                  `json:"dataUsageBytes"`
	Cancelled      bool                   `json:"cancelled,omitempty"`
}

// Pipeline drains a chat space's pending and failed documents, crawling
// child pages of url documents as it goes.
type Pipeline struct {
	db        core.DbClient
	obj       core.ObjectClient
	scraper   core.Scraper
	embedder  core.EmbeddingProvider
	extractor core.DocumentExtractor
	splitter  *TextSplitter
	cfg       IngestConfig
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewPipeline wires the collaborators. obj may be nil when uploads are not
// kept in object storage.
func NewPipeline(
	db core.DbClient,
	obj core.ObjectClient,
	scraper core.Scraper,
	embedder core.EmbeddingProvider,
	extractor core.DocumentExtractor,
	cfg IngestConfig,
	logger *zap.Logger,
) *Pipeline {
	cfg = cfg.withDefaults()
	return &Pipeline{
		db:        db,
		obj:       obj,
		scraper:   scraper,
		embedder:  embedder,
		extractor: extractor,
		splitter:  NewTextSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// crawlState is the run-local bookkeeping: the FIFO work queue, the URLs
// already seen this run and the document count toward MaxDocuments.
type crawlState struct {
	queue     []models.Document
	seen      map[string]struct{}
	totalDocs int
}

func (s *crawlState) push(doc models.Document) {
	s.queue = append(s.queue, doc)
	if doc.SourceURL != "" {
		s.seen[doc.SourceURL] = struct{}{}
	}
}

func (s *crawlState) pop() (models.Document, bool) {
	if len(s.queue) == 0 {
		return models.Document{}, false
	}
	doc := s.queue[0]
	s.queue = s.queue[1:]
	return doc, true
}

// usageMeter is the authoritative byte count within a run. The store is
// incremented alongside it so usage survives the run.
type usageMeter struct {
	used  int64
	limit int64
}

func (u *usageMeter) exhausted() bool { return u.used >= u.limit }

func (u *usageMeter) fits(size int64) bool { return u.used+size <= u.limit }

func (u *usageMeter) add(size int64) { u.used += size }

func (u *usageMeter) quotaMessage() string {
	return "Data usage limit exceeded (" + formatBytes(u.limit) + ")"
}

// ProcessChatSpace runs one ingestion pass. Per-document failures are
// recorded on the document and never abort the run. Cancelling ctx stops
// the run before the next queued document; the chat space still ends up
// published.
func (p *Pipeline) ProcessChatSpace(ctx context.Context, chatSpaceID string) (*ProcessResult, error) {
	cs, err := p.db.GetChatSpace(ctx, chatSpaceID)
	if err != nil {
		return nil, fmt.Errorf("load chat space: %w", err)
	}
	if cs == nil {
		return nil, fmt.Errorf("%w: chat space %s", apperrors.ErrNotFound, chatSpaceID)
	}

	log := p.logger.With(zap.String("chat_space_id", chatSpaceID))
	result := &ProcessResult{ChatSpaceID: chatSpaceID, Documents: make([]DocumentOutcome, 0)}

	requeued, err := p.db.RequeueStaleDocuments(ctx, chatSpaceID)
	if err != nil {
		return nil, fmt.Errorf("requeue stale documents: %w", err)
	}
	if requeued > 0 {
		log.Warn("requeued documents left in processing", zap.Int("count", requeued))
	}
	result.Requeued = requeued

	if err := p.db.SetChatSpaceStatus(ctx, chatSpaceID, models.ChatSpaceProcessing); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	state, err := p.loadQueue(ctx, chatSpaceID)
	if err != nil {
		p.restoreStatus(ctx, cs)
		return nil, err
	}
	usage := &usageMeter{used: cs.DataUsageBytes, limit: p.cfg.MaxDataUsageBytes}

	log.Info("processing started",
		zap.Int("queued", len(state.queue)),
		zap.Int("documents", state.totalDocs),
		zap.Int64("usage_bytes", usage.used))

	for {
		if ctx.Err() != nil {
			result.Cancelled = true
			log.Info("processing cancelled", zap.Int("remaining", len(state.queue)))
			break
		}
		doc, ok := state.pop()
		if !ok {
			break
		}

		outcome, links := p.processDocument(ctx, doc, usage)
		if outcome.Status == models.DocumentPending && ctx.Err() != nil {
			result.Cancelled = true
			result.Documents = append(result.Documents, outcome)
			break
		}
		result.Documents = append(result.Documents, outcome)

		if outcome.Status == models.DocumentCompleted && doc.Type == models.DocumentURL && len(links) > 0 {
			added, err := p.enqueueChildren(ctx, doc, links, state)
			result.Discovered += added
			if err != nil {
				log.Warn("link discovery failed", zap.String("document_id", doc.ID), zap.Error(err))
			}
		}
	}

	// The final write must land even when the run was cancelled.
	finalCtx := context.WithoutCancel(ctx)
	if err := p.db.MarkChatSpacePublished(finalCtx, chatSpaceID, p.now()); err != nil {
		return result, fmt.Errorf("mark published: %w", err)
	}
	result.Status = models.ChatSpacePublished
	result.DataUsageBytes = usage.used

	log.Info("processing finished",
		zap.Int("processed", len(result.Documents)),
		zap.Int("discovered", result.Discovered),
		zap.Int64("usage_bytes", usage.used),
		zap.Bool("cancelled", result.Cancelled))
	return result, nil
}

func (p *Pipeline) loadQueue(ctx context.Context, chatSpaceID string) (*crawlState, error) {
	docs, err := p.db.ListDocumentsByStatus(ctx, chatSpaceID, models.DocumentPending, models.DocumentFailed)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	total, err := p.db.CountDocuments(ctx, chatSpaceID)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	state := &crawlState{
		queue:     make([]models.Document, 0, len(docs)),
		seen:      make(map[string]struct{}, len(docs)),
		totalDocs: total,
	}
	for _, d := range docs {
		state.push(d)
	}
	return state, nil
}

// processDocument moves one document to a terminal state and returns the
// links found on it. A skipped or interrupted document is left pending.
func (p *Pipeline) processDocument(ctx context.Context, doc models.Document, usage *usageMeter) (DocumentOutcome, []string) {
	outcome := DocumentOutcome{DocumentID: doc.ID, Type: doc.Type, SourceURL: doc.SourceURL}
	log := p.logger.With(zap.String("document_id", doc.ID), zap.String("type", string(doc.Type)))

	if usage.exhausted() {
		return p.fail(ctx, outcome, usage.quotaMessage()), nil
	}

	if err := p.db.UpdateDocumentStatus(ctx, doc.ID, models.DocumentProcessing, ""); err != nil {
		return p.fail(ctx, outcome, err.Error()), nil
	}

	text, links, skipped, err := p.extract(ctx, doc)
	switch {
	case ctx.Err() != nil:
		return p.requeue(ctx, outcome, false), nil
	case err != nil:
		log.Warn("document extraction failed", zap.Error(err))
		return p.fail(ctx, outcome, err.Error()), nil
	case skipped:
		log.Info("document has no stored content, skipping")
		return p.requeue(ctx, outcome, true), nil
	case text == "":
		return p.fail(ctx, outcome, errNoContent), nil
	}

	size := int64(len(text))
	if !usage.fits(size) {
		return p.fail(ctx, outcome, usage.quotaMessage()), nil
	}

	chunks := p.splitter.Split(text)
	if len(chunks) == 0 {
		return p.fail(ctx, outcome, errNoContent), nil
	}

	n, err := p.embedAndStore(ctx, doc, chunks, size)
	if err != nil {
		if ctx.Err() != nil {
			return p.requeue(ctx, outcome, false), nil
		}
		log.Warn("document ingest failed", zap.Error(err))
		return p.fail(ctx, outcome, err.Error()), nil
	}
	usage.add(size)

	outcome.Status = models.DocumentCompleted
	outcome.Chunks = n
	outcome.Bytes = size
	log.Info("document ingested", zap.Int("chunks", n), zap.Int64("bytes", size))
	return outcome, links
}

// extract returns the text to ingest. skipped reports a file document with
// neither stored text nor a stored object.
func (p *Pipeline) extract(ctx context.Context, doc models.Document) (text string, links []string, skipped bool, err error) {
	switch {
	case doc.Type == models.DocumentURL:
		res, err := p.scraper.Scrape(ctx, doc.SourceURL)
		if err != nil {
			return "", nil, false, err
		}
		if doc.Title == "" && res.Title != "" {
			if err := p.db.UpdateDocumentContent(ctx, doc.ID, res.Title, doc.Content); err != nil {
				p.logger.Warn("store page title failed", zap.String("document_id", doc.ID), zap.Error(err))
			}
		}
		return res.Content, res.Links, false, nil

	case doc.Type == models.DocumentText:
		return doc.Content, nil, false, nil

	case doc.Type.IsFile():
		if doc.Content != "" {
			return doc.Content, nil, false, nil
		}
		if doc.StorageKey == "" || p.obj == nil || p.extractor == nil {
			return "", nil, true, nil
		}
		text, err := p.parseStoredFile(ctx, doc)
		return text, nil, false, err
	}
	return "", nil, true, nil
}

func (p *Pipeline) parseStoredFile(ctx context.Context, doc models.Document) (string, error) {
	rc, err := p.obj.GetObjectReader(ctx, p.cfg.Bucket, doc.StorageKey)
	if err != nil {
		return "", fmt.Errorf("get stored file: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, p.cfg.MaxFileBytes+1))
	if err != nil {
		return "", fmt.Errorf("read stored file: %w", err)
	}
	if int64(len(data)) > p.cfg.MaxFileBytes {
		return "", fmt.Errorf("%w: stored file exceeds %s", apperrors.ErrParse, formatBytes(p.cfg.MaxFileBytes))
	}

	ext := strings.TrimPrefix(path.Ext(doc.FileName), ".")
	if ext == "" {
		ext = string(doc.Type)
	}
	return p.extractor.ExtractText(ctx, data, ext)
}

// enqueueChildren queues links that extend the document's own URL. The
// document count is checked before every insert.
func (p *Pipeline) enqueueChildren(ctx context.Context, parent models.Document, links []string, state *crawlState) (int, error) {
	added := 0
	for _, link := range links {
		if state.totalDocs >= p.cfg.MaxDocuments {
			break
		}
		if !isChildLink(parent.SourceURL, link) {
			continue
		}
		if _, ok := state.seen[link]; ok {
			continue
		}
		exists, err := p.db.DocumentExistsBySource(ctx, parent.ChatSpaceID, link)
		if err != nil {
			return added, err
		}
		if exists {
			continue
		}

		now := p.now()
		child := models.Document{
			ID:          p.newID(),
			ChatSpaceID: parent.ChatSpaceID,
			Type:        models.DocumentURL,
			SourceURL:   link,
			Status:      models.DocumentPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := p.db.CreateDocument(ctx, &child); err != nil {
			return added, err
		}
		state.push(child)
		state.totalDocs++
		added++
	}
	return added, nil
}

// isChildLink reports whether link is a strict lexical extension of source.
func isChildLink(source, link string) bool {
	return source != "" && link != source && strings.HasPrefix(link, source)
}

func (p *Pipeline) fail(ctx context.Context, outcome DocumentOutcome, msg string) DocumentOutcome {
	if err := p.db.UpdateDocumentStatus(context.WithoutCancel(ctx), outcome.DocumentID, models.DocumentFailed, msg); err != nil {
		p.logger.Error("mark failed failed", zap.String("document_id", outcome.DocumentID), zap.Error(err))
	}
	outcome.Status = models.DocumentFailed
	outcome.Error = msg
	return outcome
}

func (p *Pipeline) requeue(ctx context.Context, outcome DocumentOutcome, skipped bool) DocumentOutcome {
	if err := p.db.UpdateDocumentStatus(context.WithoutCancel(ctx), outcome.DocumentID, models.DocumentPending, ""); err != nil {
		p.logger.Error("reset to pending failed", zap.String("document_id", outcome.DocumentID), zap.Error(err))
	}
	outcome.Status = models.DocumentPending
	outcome.Skipped = skipped
	return outcome
}

func (p *Pipeline) restoreStatus(ctx context.Context, cs *models.ChatSpace) {
	if err := p.db.SetChatSpaceStatus(context.WithoutCancel(ctx), cs.ID, cs.Status); err != nil {
		p.logger.Error("restore chat space status failed", zap.String("chat_space_id", cs.ID), zap.Error(err))
	}
}

func formatBytes(n int64) string {
	const mb = 1024 * 1024
	if n >= mb && n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}
