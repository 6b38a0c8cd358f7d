// Package summarizer calls the external digest service used by signals
// with the AI summary selection policy.
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured is returned when the client has no base URL. Callers fall
// back to a plain digest instead of failing the notification.
var ErrNotConfigured = errors.New("summarizer not configured")

type Client struct {
	BaseURL string
	APIKey  string

	HTTP *http.Client
}

// Item is one article handed to the summarizer.
type Item struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url,omitempty"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Digest is the summarizer's answer: prose plus the ids it actually cited.
type Digest struct {
	Summary  string   `json:"summary"`
	CitedIDs []uint64 `json:"cited_ids"`
}

type summarizeRequest struct {
	Items []Item `json:"items"`
}

func (c *Client) Summarize(ctx context.Context, items []Item) (*Digest, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		return nil, ErrNotConfigured
	}
	if len(items) == 0 {
		return nil, errors.New("summarizer called with no items")
	}

	body, err := json.Marshal(summarizeRequest{Items: items})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/v1/summaries", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(c.APIKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("summarize http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var out Digest
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Summary) == "" {
		return nil, errors.New("summarizer returned an empty summary")
	}
	return &out, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: 30 * time.Second}
}
