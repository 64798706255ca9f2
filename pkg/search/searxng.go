// Package search issues web-search queries against a SearXNG-compatible backend.
//
// Search failures are never returned to the caller: a transport error, a
// non-2xx status, a malformed body or an empty result array all yield an
// empty Result, so that a failed search can only ever degrade an answer.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Defaults.
const (
	DefaultMaxResults = 3
	DefaultTimeout    = 15 * time.Second
)

// Snippet is one ranked search hit.
type Snippet struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Result is the bounded, rank-ordered snippet list for one query.
type Result struct {
	Query    string
	Snippets []Snippet
}

// Empty reports whether the result carries no snippets.
func (r Result) Empty() bool {
	return len(r.Snippets) == 0
}

// Text renders the result as "Title: ...\nContent: ..." blocks separated by a
// blank line. An empty result renders as "".
func (r Result) Text() string {
	blocks := make([]string, len(r.Snippets))
	for i, s := range r.Snippets {
		blocks[i] = fmt.Sprintf("Title: %s\nContent: %s", s.Title, s.Content)
	}
	return strings.Join(blocks, "\n\n")
}

// Executor runs a single search query.
type Executor interface {
	Search(ctx context.Context, query string) Result
}

// Config configures the SearXNG client.
// BaseURL: SearXNG instance address (required; an empty URL disables search)
// MaxResults: top-N snippets kept per query, defaults to 3
// Timeout: per-query timeout, defaults to 15 seconds
type Config struct {
	BaseURL    string
	MaxResults int
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is a SearXNG search executor.
type Client struct {
	client     *http.Client
	baseURL    string
	maxResults int
	logger     *slog.Logger
}

// NewClient creates a new SearXNG client.
func NewClient(cfg *Config) *Client {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		client:     client,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxResults: maxResults,
		logger:     logger.With("component", "search"),
	}
}

type searxngResponse struct {
	Results []struct {
		Title   *string `json:"title"`
		Content *string `json:"content"`
	} `json:"results"`
}

// Search issues GET <base>/search?q=<query>&format=json and keeps the top-N hits.
func (c *Client) Search(ctx context.Context, query string) Result {
	result := Result{Query: query}

	if c.baseURL == "" {
		c.logger.Error("search backend URL is not configured")
		return result
	}

	searchURL := fmt.Sprintf("%s/search?q=%s&format=json", c.baseURL, url.QueryEscape(query))
	c.logger.Info("querying search backend", "query", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		c.logger.Error("build search request", "query", query, "error", err)
		return result
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("search backend unreachable", "query", query, "error", err)
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("search backend returned error status", "query", query, "status", resp.StatusCode)
		return result
	}

	var body searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Error("decode search response", "query", query, "error", err)
		return result
	}

	if len(body.Results) == 0 {
		c.logger.Info("no results found", "query", query)
		return result
	}

	hits := body.Results
	if len(hits) > c.maxResults {
		hits = hits[:c.maxResults]
	}
	result.Snippets = make([]Snippet, len(hits))
	for i, hit := range hits {
		result.Snippets[i] = Snippet{
			Title:   valueOr(hit.Title, "No Title"),
			Content: valueOr(hit.Content, "No Content"),
		}
	}
	return result
}

func valueOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
