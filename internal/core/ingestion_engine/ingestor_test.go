package ingestion_engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/markdave123-py/chatspace/internal/apperrors"
)

// blockingProcessor holds each run open until released or cancelled.
type blockingProcessor struct {
	mu      sync.Mutex
	started chan string
	release chan struct{}
	done    []string
}

func newBlockingProcessor() *blockingProcessor {
	return &blockingProcessor{started: make(chan string, 8), release: make(chan struct{})}
}

func (b *blockingProcessor) ProcessChatSpace(ctx context.Context, id string) (*ProcessResult, error) {
	b.started <- id
	res := &ProcessResult{ChatSpaceID: id}
	select {
	case <-b.release:
	case <-ctx.Done():
		res.Cancelled = true
	}
	b.mu.Lock()
	b.done = append(b.done, id)
	b.mu.Unlock()
	return res, nil
}

func TestIngestor_RunRejectsConcurrentRunForSameChatSpace(t *testing.T) {
	defer goleak.VerifyNone(t)

	proc := newBlockingProcessor()
	ing := NewIngestor(proc, 4, zap.NewNop())

	type out struct {
		res *ProcessResult
		err error
	}
	first := make(chan out, 1)
	go func() {
		res, err := ing.Run(context.Background(), "cs1")
		first <- out{res, err}
	}()
	require.Equal(t, "cs1", <-proc.started)
	assert.True(t, ing.IsRunning("cs1"))

	_, err := ing.Run(context.Background(), "cs1")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.ErrorIs(t, ing.Enqueue("cs1"), apperrors.ErrConflict)

	close(proc.release)
	got := <-first
	require.NoError(t, got.err)
	assert.False(t, got.res.Cancelled)
	assert.False(t, ing.IsRunning("cs1"))
}

func TestIngestor_CancelStopsActiveRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	proc := newBlockingProcessor()
	ing := NewIngestor(proc, 4, zap.NewNop())

	result := make(chan *ProcessResult, 1)
	go func() {
		res, _ := ing.Run(context.Background(), "cs1")
		result <- res
	}()
	<-proc.started

	assert.True(t, ing.Cancel("cs1"))
	select {
	case res := <-result:
		assert.True(t, res.Cancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after Cancel")
	}
	assert.False(t, ing.Cancel("cs1"))
}

func TestIngestor_WorkersDrainQueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	proc := newBlockingProcessor()
	close(proc.release)
	ing := NewIngestor(proc, 4, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	ing.Start(ctx, 2)

	require.NoError(t, ing.Enqueue("cs1"))
	require.NoError(t, ing.Enqueue("cs2"))

	seen := map[string]bool{}
	for range 2 {
		select {
		case id := <-proc.started:
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("queued job was not picked up")
		}
	}
	assert.Equal(t, map[string]bool{"cs1": true, "cs2": true}, seen)

	cancel()
	ing.Wait()
}

func TestIngestor_CancelDropsQueuedJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	proc := newBlockingProcessor()
	ing := NewIngestor(proc, 4, zap.NewNop())

	require.NoError(t, ing.Enqueue("cs1"))
	assert.True(t, ing.Cancel("cs1"))

	ctx, cancel := context.WithCancel(context.Background())
	ing.Start(ctx, 1)

	select {
	case id := <-proc.started:
		t.Fatalf("cancelled job %s was processed", id)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	ing.Wait()
}

func TestIngestor_EnqueueWhenFull(t *testing.T) {
	ing := NewIngestor(newBlockingProcessor(), 1, zap.NewNop())

	require.NoError(t, ing.Enqueue("cs1"))
	assert.ErrorIs(t, ing.Enqueue("cs1"), apperrors.ErrConflict)
	assert.ErrorIs(t, ing.Enqueue("cs2"), apperrors.ErrServiceUnavailable)
}
