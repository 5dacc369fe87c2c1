package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/chatspace/internal/apperrors"
	"github.com/markdave123-py/chatspace/internal/core"
)

const (
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultOpenRouterEmbed   = "qwen/qwen3-embedding-4b"
	DefaultOpenRouterChat    = "google/gemini-2.5-flash"
)

type OpenRouterConfig struct {
	BaseURL    string
	APIKey     string
	EmbedModel string
	ChatModel  string
	// SiteURL and SiteName are sent as HTTP-Referer and X-Title for app attribution.
	SiteURL    string
	SiteName   string
	Timeout    time.Duration
	// MaxRetries for 429/5xx; 0 means the default of 2, negative disables.
	MaxRetries int
}

// OpenRouterClient talks to any OpenAI-compatible gateway for both
// embeddings and chat completions.
type OpenRouterClient struct {
	cfg    OpenRouterConfig
	http   *http.Client
	logger *zap.Logger
}

var (
	_ core.EmbeddingProvider = (*OpenRouterClient)(nil)
	_ core.LLMProvider       = (*OpenRouterClient)(nil)
)

func NewOpenRouterClient(cfg OpenRouterConfig, logger *zap.Logger) (*OpenRouterClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenRouterBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultOpenRouterEmbed
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultOpenRouterChat
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &OpenRouterClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedTexts embeds all texts in one request and returns vectors in input order.
func (c *OpenRouterClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out embeddingResponse
	body := embeddingRequest{Model: c.cfg.EmbedModel, Input: texts}
	if err := c.post(ctx, "/embeddings", c.cfg.APIKey, body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrEmbedding, err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", apperrors.ErrEmbedding, len(out.Data), len(texts))
	}

	sort.SliceStable(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })
	vecs := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

type chatRequest struct {
	Model    string             `json:"model"`
	Messages []core.ChatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete runs a chat completion. A tenant API key in opts replaces the
// platform key for this call only.
func (c *OpenRouterClient) Complete(ctx context.Context, messages []core.ChatMessage, opts core.CompletionOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.cfg.ChatModel
	}
	key := opts.APIKey
	if key == "" {
		key = c.cfg.APIKey
	}

	var out chatResponse
	if err := c.post(ctx, "/chat/completions", key, chatRequest{Model: model, Messages: messages}, &out); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrCompletion, err)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}

// post sends a JSON request, retrying 429 and 5xx with backoff.
func (c *OpenRouterClient) post(ctx context.Context, path, apiKey string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	url := c.cfg.BaseURL + path

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+apiKey)
		if c.cfg.SiteURL != "" {
			req.Header.Set("HTTP-Referer", c.cfg.SiteURL)
		}
		if c.cfg.SiteName != "" {
			req.Header.Set("X-Title", c.cfg.SiteName)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil || attempt >= c.cfg.MaxRetries {
				return err
			}
			if werr := c.wait(ctx, attempt, ""); werr != nil {
				return werr
			}
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			if attempt >= c.cfg.MaxRetries {
				return fmt.Errorf("%s %s: %s", http.MethodPost, path, resp.Status)
			}
			c.logger.Warn("model gateway busy, retrying",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1))
			if werr := c.wait(ctx, attempt, resp.Header.Get("Retry-After")); werr != nil {
				return werr
			}
			continue
		}
		if readErr != nil {
			return fmt.Errorf("read response: %w", readErr)
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("%s %s: %s: %s", http.MethodPost, path, resp.Status, truncate(string(data), 200))
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}

func (c *OpenRouterClient) wait(ctx context.Context, attempt int, retryAfter string) error {
	d := retryDelay(attempt)
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		d = time.Duration(secs) * time.Second
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryDelay backs off exponentially from 250ms, capped at 4s.
func retryDelay(attempt int) time.Duration {
	d := 250 * time.Millisecond << attempt
	if d > 4*time.Second || d <= 0 {
		d = 4 * time.Second
	}
	return d
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
