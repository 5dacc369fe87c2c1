package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/markdave123-py/chatspace/internal/apperrors"
	"github.com/markdave123-py/chatspace/internal/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *OpenRouterClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewOpenRouterClient(OpenRouterConfig{
		BaseURL:  srv.URL,
		APIKey:   "platform-key",
		SiteURL:  "https://chat.example.com",
		SiteName: "ChatSpace",
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewOpenRouterClient_RequiresKey(t *testing.T) {
	_, err := NewOpenRouterClient(OpenRouterConfig{}, zap.NewNop())
	assert.Error(t, err)
}

func TestOpenRouter_EmbedTexts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer platform-key", r.Header.Get("Authorization"))
		assert.Equal(t, "https://chat.example.com", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "ChatSpace", r.Header.Get("X-Title"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultOpenRouterEmbed, req.Model)
		assert.Equal(t, []string{"a", "b"}, req.Input)

		// out of order on purpose
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	})

	vecs, err := c.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestOpenRouter_EmbedTexts_CountMismatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	})

	_, err := c.EmbedTexts(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, apperrors.ErrEmbedding)
}

func TestOpenRouter_Complete(t *testing.T) {
	t.Run("uses defaults", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer platform-key", r.Header.Get("Authorization"))

			var req chatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, DefaultOpenRouterChat, req.Model)
			require.Len(t, req.Messages, 2)
			assert.Equal(t, "system", req.Messages[0].Role)

			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hi there"}}]}`))
		})

		out, err := c.Complete(context.Background(), []core.ChatMessage{
			{Role: "system", Content: "be nice"},
			{Role: "user", Content: "hello"},
		}, core.CompletionOptions{})
		require.NoError(t, err)
		assert.Equal(t, "hi there", out)
	})

	t.Run("tenant overrides model and key", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer tenant-key", r.Header.Get("Authorization"))
			var req chatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "anthropic/claude-3.5-haiku", req.Model)
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
		})

		out, err := c.Complete(context.Background(), []core.ChatMessage{{Role: "user", Content: "q"}},
			core.CompletionOptions{Model: "anthropic/claude-3.5-haiku", APIKey: "tenant-key"})
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
	})

	t.Run("no choices yields empty answer", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		})

		out, err := c.Complete(context.Background(), []core.ChatMessage{{Role: "user", Content: "q"}}, core.CompletionOptions{})
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("client error is a completion error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
		})

		_, err := c.Complete(context.Background(), []core.ChatMessage{{Role: "user", Content: "q"}}, core.CompletionOptions{})
		assert.ErrorIs(t, err, apperrors.ErrCompletion)
	})
}

func TestOpenRouter_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"recovered"}}]}`))
	})
	c.cfg.MaxRetries = 2

	out, err := c.Complete(context.Background(), []core.ChatMessage{{Role: "user", Content: "q"}}, core.CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, retryDelay(0))
	assert.Equal(t, time.Second, retryDelay(2))
	assert.Equal(t, 4*time.Second, retryDelay(10))
}
