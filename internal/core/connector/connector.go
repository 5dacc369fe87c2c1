// Package connector queries a tenant's external knowledge base when the
// chat space itself has nothing relevant to say.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/markdave123-py/chatspace/internal/core"
)

const DefaultTimeout = 5 * time.Second

// Client POSTs {"query": ...} to the tenant endpoint with a Bearer key.
type Client struct {
	http    *http.Client
	timeout time.Duration
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{http: &http.Client{}, timeout: timeout}
}

var _ core.KnowledgeConnector = (*Client)(nil)

type queryRequest struct {
	Query string `json:"query"`
}

// Query returns the connector's answer as text. It looks for a "content"
// field, then "answer", and otherwise returns the raw JSON body.
func (c *Client) Query(ctx context.Context, endpoint, apiKey, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(queryRequest{Query: query})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build connector request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("connector request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read connector response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("connector returned %s", resp.Status)
	}

	return extractAnswer(body), nil
}

func extractAnswer(body []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return string(bytes.TrimSpace(body))
	}
	for _, key := range []string{"content", "answer"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}
		return string(raw)
	}
	return string(bytes.TrimSpace(body))
}
