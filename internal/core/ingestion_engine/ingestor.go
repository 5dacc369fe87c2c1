package ingestion_engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/markdave123-py/chatspace/internal/apperrors"
)

// ChatSpaceProcessor is the unit of work the Ingestor schedules.
type ChatSpaceProcessor interface {
	ProcessChatSpace(ctx context.Context, chatSpaceID string) (*ProcessResult, error)
}

// Ingestor runs processing jobs, synchronously through Run or in the
// background through Enqueue. At most one run per chat space is active.
type Ingestor struct {
	processor ChatSpaceProcessor
	logger    *zap.Logger

	jobs chan string
	wg   sync.WaitGroup

	mu      sync.Mutex
	running map[string]context.CancelFunc
	queued  map[string]bool
}

// NewIngestor constructs the ingestor with a bounded job queue.
func NewIngestor(processor ChatSpaceProcessor, queueSize int, logger *zap.Logger) *Ingestor {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Ingestor{
		processor: processor,
		logger:    logger,
		jobs:      make(chan string, queueSize),
		running:   make(map[string]context.CancelFunc),
		queued:    make(map[string]bool),
	}
}

// Start launches numWorkers goroutines that drain the job queue until ctx
// is done.
func (i *Ingestor) Start(ctx context.Context, numWorkers int) {
	for w := 1; w <= numWorkers; w++ {
		i.wg.Add(1)
		go func(w int) {
			defer i.wg.Done()
			for {
				select {
				case <-ctx.Done():
					i.logger.Debug("ingestion worker stopping", zap.Int("worker", w))
					return
				case id := <-i.jobs:
					runCtx, done, ok := i.claimQueued(ctx, id)
					if !ok {
						continue
					}
					i.logger.Info("processing chat space", zap.String("chat_space_id", id), zap.Int("worker", w))
					if _, err := i.processor.ProcessChatSpace(runCtx, id); err != nil {
						i.logger.Error("background processing failed", zap.String("chat_space_id", id), zap.Error(err))
					}
					done()
				}
			}
		}(w)
	}
}

// Wait blocks until every worker has returned.
func (i *Ingestor) Wait() { i.wg.Wait() }

// Enqueue schedules a background run. It never blocks: a full queue is
// ErrServiceUnavailable, and a chat space already queued or running is
// ErrConflict.
func (i *Ingestor) Enqueue(chatSpaceID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.running[chatSpaceID]; ok || i.queued[chatSpaceID] {
		return fmt.Errorf("%w: chat space %s is already being processed", apperrors.ErrConflict, chatSpaceID)
	}
	select {
	case i.jobs <- chatSpaceID:
		i.queued[chatSpaceID] = true
		return nil
	default:
		return fmt.Errorf("%w: ingestion queue is full", apperrors.ErrServiceUnavailable)
	}
}

// Run processes a chat space on the caller's goroutine.
func (i *Ingestor) Run(ctx context.Context, chatSpaceID string) (*ProcessResult, error) {
	i.mu.Lock()
	if _, ok := i.running[chatSpaceID]; ok {
		i.mu.Unlock()
		return nil, fmt.Errorf("%w: chat space %s is already being processed", apperrors.ErrConflict, chatSpaceID)
	}
	runCtx, done := i.startLocked(ctx, chatSpaceID)
	i.mu.Unlock()
	defer done()

	return i.processor.ProcessChatSpace(runCtx, chatSpaceID)
}

// Cancel stops an active run before its next document and drops a queued
// one. It reports whether there was anything to cancel.
func (i *Ingestor) Cancel(chatSpaceID string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	found := false
	if cancel, ok := i.running[chatSpaceID]; ok {
		cancel()
		found = true
	}
	if i.queued[chatSpaceID] {
		delete(i.queued, chatSpaceID)
		found = true
	}
	return found
}

// IsRunning reports whether a run for the chat space is active.
func (i *Ingestor) IsRunning(chatSpaceID string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.running[chatSpaceID]
	return ok
}

// claimQueued turns a dequeued id into an active run unless it was
// cancelled while waiting or a synchronous run got there first.
func (i *Ingestor) claimQueued(ctx context.Context, chatSpaceID string) (context.Context, func(), bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.queued[chatSpaceID] {
		return nil, nil, false
	}
	delete(i.queued, chatSpaceID)
	if _, ok := i.running[chatSpaceID]; ok {
		return nil, nil, false
	}
	runCtx, done := i.startLocked(ctx, chatSpaceID)
	return runCtx, done, true
}

// startLocked registers a run. The caller holds i.mu.
func (i *Ingestor) startLocked(ctx context.Context, chatSpaceID string) (context.Context, func()) {
	runCtx, cancel := context.WithCancel(ctx)
	i.running[chatSpaceID] = cancel
	return runCtx, func() {
		cancel()
		i.mu.Lock()
		delete(i.running, chatSpaceID)
		i.mu.Unlock()
	}
}
