package services

import (
	"context"
	"strings"
	"sync"

	"github.com/markdave123-py/chatspace/internal/core"
	"github.com/markdave123-py/chatspace/internal/core/ingestion_engine"
)

type fakeLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	block bool
	calls [][]core.ChatMessage
	opts  []core.CompletionOptions
}

func (f *fakeLLM) Complete(ctx context.Context, messages []core.ChatMessage, opts core.CompletionOptions) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, messages)
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeLLM) systemPrompt(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i][0].Content
}

type fakeRetriever struct {
	mu    sync.Mutex
	hits  []core.ScoredChunk
	err   error
	calls int
}

func (f *fakeRetriever) Search(_ context.Context, _, _ string, _ int) ([]core.ScoredChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.hits, f.err
}

type fakeConnector struct {
	mu      sync.Mutex
	answer  string
	err     error
	queries []string
	keys    []string
}

func (f *fakeConnector) Query(_ context.Context, _, apiKey, query string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	f.keys = append(f.keys, apiKey)
	return f.answer, f.err
}

// keywordEmbedder places texts on three axes: mentions of sky, mentions of
// grass and a constant bias so no vector is zero.
type keywordEmbedder struct{}

func (keywordEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		t = strings.ToLower(t)
		var v [3]float32
		if strings.Contains(t, "sky") {
			v[0] = 1
		}
		if strings.Contains(t, "grass") {
			v[1] = 1
		}
		v[2] = 0.1
		out[i] = v[:]
	}
	return out, nil
}

type fakeIngestor struct {
	mu         sync.Mutex
	running    map[string]bool
	runs       []string
	enqueued   []string
	cancelled  []string
	enqueueErr error
}

func newFakeIngestor() *fakeIngestor {
	return &fakeIngestor{running: map[string]bool{}}
}

func (f *fakeIngestor) Run(_ context.Context, id string) (*ingestion_engine.ProcessResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, id)
	return &ingestion_engine.ProcessResult{ChatSpaceID: id}, nil
}

func (f *fakeIngestor) Enqueue(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.enqueued = append(f.enqueued, id)
	return nil
}

func (f *fakeIngestor) Cancel(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	was := f.running[id]
	delete(f.running, id)
	return was
}

func (f *fakeIngestor) IsRunning(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[id]
}
